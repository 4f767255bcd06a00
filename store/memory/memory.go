// Package memory provides an in-memory warehousing.TxStore for tests and
// demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Records are cloned on the way in and on the way out, so callers never share
// memory with the store.
type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	warehouses   map[generic.WarehouseID]warehousing.Warehouse
	bookings     map[generic.BookingID]warehousing.Booking
	bookingNos   map[string]generic.BookingID
	weighbridges map[generic.BookingID]warehousing.Weighbridge
	deposits     map[string]warehousing.Deposit
	loans        map[string]warehousing.Loan
	shipments    map[generic.BookingID][]warehousing.Shipment
	invoices     map[string]warehousing.Invoice
	invoiceNos   map[string]bool
	trackingIDs  map[string]bool
	movements    []generic.Movement
	idempotency  map[string]bool
	audit        []generic.AuditEntry
}

func newState() *state {
	return &state{
		warehouses:   make(map[generic.WarehouseID]warehousing.Warehouse),
		bookings:     make(map[generic.BookingID]warehousing.Booking),
		bookingNos:   make(map[string]generic.BookingID),
		weighbridges: make(map[generic.BookingID]warehousing.Weighbridge),
		deposits:     make(map[string]warehousing.Deposit),
		loans:        make(map[string]warehousing.Loan),
		shipments:    make(map[generic.BookingID][]warehousing.Shipment),
		invoices:     make(map[string]warehousing.Invoice),
		invoiceNos:   make(map[string]bool),
		trackingIDs:  make(map[string]bool),
		idempotency:  make(map[string]bool),
	}
}

func New() *Memory {
	return &Memory{st: newState()}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are serialized.
func (m *Memory) WithTx(ctx context.Context, fn func(warehousing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.st.snapshot()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// snapshot copies every map and slice. Stored values are never mutated in
// place, so copying the containers is enough.
func (s *state) snapshot() *state {
	c := newState()
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.bookingNos {
		c.bookingNos[k] = v
	}
	for k, v := range s.weighbridges {
		c.weighbridges[k] = v
	}
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.shipments {
		c.shipments[k] = append([]warehousing.Shipment(nil), v...)
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.invoiceNos {
		c.invoiceNos[k] = v
	}
	for k, v := range s.trackingIDs {
		c.trackingIDs[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	c.movements = append([]generic.Movement(nil), s.movements...)
	c.audit = append([]generic.AuditEntry(nil), s.audit...)
	return c
}

func (m *Memory) read(fn func(*state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.st)
}

func (m *Memory) write(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

// =============================================================================
// LOCKED ACCESSORS
// =============================================================================

func (m *Memory) AppendMovement(ctx context.Context, mv generic.Movement) error {
	return m.write(func(s *state) error { return s.AppendMovement(ctx, mv) })
}

func (m *Memory) Movements(ctx context.Context, id generic.WarehouseID) (out []generic.Movement, err error) {
	err = m.read(func(s *state) error { out, err = s.Movements(ctx, id); return err })
	return out, err
}

func (m *Memory) MovementExists(ctx context.Context, key string) (ok bool, err error) {
	err = m.read(func(s *state) error { ok, err = s.MovementExists(ctx, key); return err })
	return ok, err
}

func (m *Memory) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	return m.write(func(s *state) error { return s.AppendAudit(ctx, e) })
}

func (m *Memory) AuditTrail(ctx context.Context, id generic.BookingID) (out []generic.AuditEntry, err error) {
	err = m.read(func(s *state) error { out, err = s.AuditTrail(ctx, id); return err })
	return out, err
}

func (m *Memory) SaveWarehouse(ctx context.Context, w *warehousing.Warehouse) error {
	return m.write(func(s *state) error { return s.SaveWarehouse(ctx, w) })
}

func (m *Memory) GetWarehouse(ctx context.Context, id generic.WarehouseID) (out *warehousing.Warehouse, err error) {
	err = m.read(func(s *state) error { out, err = s.GetWarehouse(ctx, id); return err })
	return out, err
}

func (m *Memory) ListWarehouses(ctx context.Context, f warehousing.WarehouseFilter) (out []warehousing.Warehouse, err error) {
	err = m.read(func(s *state) error { out, err = s.ListWarehouses(ctx, f); return err })
	return out, err
}

func (m *Memory) SaveBooking(ctx context.Context, b *warehousing.Booking) error {
	return m.write(func(s *state) error { return s.SaveBooking(ctx, b) })
}

func (m *Memory) GetBooking(ctx context.Context, id generic.BookingID) (out *warehousing.Booking, err error) {
	err = m.read(func(s *state) error { out, err = s.GetBooking(ctx, id); return err })
	return out, err
}

func (m *Memory) BookingNoExists(ctx context.Context, no string) (ok bool, err error) {
	err = m.read(func(s *state) error { ok, err = s.BookingNoExists(ctx, no); return err })
	return ok, err
}

func (m *Memory) ListBookings(ctx context.Context, f warehousing.BookingFilter) (out []warehousing.Booking, err error) {
	err = m.read(func(s *state) error { out, err = s.ListBookings(ctx, f); return err })
	return out, err
}

func (m *Memory) ExpiryCandidates(ctx context.Context, cutoff generic.DayKey) (out []warehousing.Booking, err error) {
	err = m.read(func(s *state) error { out, err = s.ExpiryCandidates(ctx, cutoff); return err })
	return out, err
}

func (m *Memory) SaveWeighbridge(ctx context.Context, wb *warehousing.Weighbridge) error {
	return m.write(func(s *state) error { return s.SaveWeighbridge(ctx, wb) })
}

func (m *Memory) GetWeighbridgeByBooking(ctx context.Context, id generic.BookingID) (out *warehousing.Weighbridge, err error) {
	err = m.read(func(s *state) error { out, err = s.GetWeighbridgeByBooking(ctx, id); return err })
	return out, err
}

func (m *Memory) SaveDeposit(ctx context.Context, d *warehousing.Deposit) error {
	return m.write(func(s *state) error { return s.SaveDeposit(ctx, d) })
}

func (m *Memory) GetDeposit(ctx context.Context, id string) (out *warehousing.Deposit, err error) {
	err = m.read(func(s *state) error { out, err = s.GetDeposit(ctx, id); return err })
	return out, err
}

func (m *Memory) ListDeposits(ctx context.Context, f warehousing.DepositFilter) (out []warehousing.Deposit, err error) {
	err = m.read(func(s *state) error { out, err = s.ListDeposits(ctx, f); return err })
	return out, err
}

func (m *Memory) SaveLoan(ctx context.Context, l *warehousing.Loan) error {
	return m.write(func(s *state) error { return s.SaveLoan(ctx, l) })
}

func (m *Memory) GetLoan(ctx context.Context, id string) (out *warehousing.Loan, err error) {
	err = m.read(func(s *state) error { out, err = s.GetLoan(ctx, id); return err })
	return out, err
}

func (m *Memory) LoanExists(ctx context.Context, id string) (ok bool, err error) {
	err = m.read(func(s *state) error { ok, err = s.LoanExists(ctx, id); return err })
	return ok, err
}

func (m *Memory) ListLoans(ctx context.Context, f warehousing.LoanFilter) (out []warehousing.Loan, err error) {
	err = m.read(func(s *state) error { out, err = s.ListLoans(ctx, f); return err })
	return out, err
}

func (m *Memory) SaveShipment(ctx context.Context, sh *warehousing.Shipment) error {
	return m.write(func(s *state) error { return s.SaveShipment(ctx, sh) })
}

func (m *Memory) ListShipments(ctx context.Context, id generic.BookingID) (out []warehousing.Shipment, err error) {
	err = m.read(func(s *state) error { out, err = s.ListShipments(ctx, id); return err })
	return out, err
}

func (m *Memory) SaveInvoice(ctx context.Context, inv *warehousing.Invoice) error {
	return m.write(func(s *state) error { return s.SaveInvoice(ctx, inv) })
}

func (m *Memory) GetInvoice(ctx context.Context, id string) (out *warehousing.Invoice, err error) {
	err = m.read(func(s *state) error { out, err = s.GetInvoice(ctx, id); return err })
	return out, err
}

func (m *Memory) InvoiceNoExists(ctx context.Context, no string) (ok bool, err error) {
	err = m.read(func(s *state) error { ok, err = s.InvoiceNoExists(ctx, no); return err })
	return ok, err
}

func (m *Memory) TrackingIDExists(ctx context.Context, id string) (ok bool, err error) {
	err = m.read(func(s *state) error { ok, err = s.TrackingIDExists(ctx, id); return err })
	return ok, err
}

func (m *Memory) ListInvoices(ctx context.Context, id generic.BookingID) (out []warehousing.Invoice, err error) {
	err = m.read(func(s *state) error { out, err = s.ListInvoices(ctx, id); return err })
	return out, err
}

// =============================================================================
// STATE - unlocked implementation, also the view handed to WithTx
// =============================================================================

func (s *state) AppendMovement(_ context.Context, mv generic.Movement) error {
	if mv.IdempotencyKey != "" {
		if s.idempotency[mv.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		s.idempotency[mv.IdempotencyKey] = true
	}
	// Keep movements ordered by effective date; equal dates keep append order.
	i := sort.Search(len(s.movements), func(i int) bool {
		return s.movements[i].EffectiveAt.After(mv.EffectiveAt)
	})
	s.movements = append(s.movements, generic.Movement{})
	copy(s.movements[i+1:], s.movements[i:])
	s.movements[i] = mv
	return nil
}

func (s *state) Movements(_ context.Context, id generic.WarehouseID) ([]generic.Movement, error) {
	var out []generic.Movement
	for _, mv := range s.movements {
		if mv.WarehouseID == id {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (s *state) MovementExists(_ context.Context, key string) (bool, error) {
	return s.idempotency[key], nil
}

func (s *state) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	s.audit = append(s.audit, e)
	return nil
}

func (s *state) AuditTrail(_ context.Context, id generic.BookingID) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range s.audit {
		if e.BookingID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// checkVersion implements the optimistic update rule shared by the versioned
// records.
func checkVersion(entity, id string, stored, given int64, exists bool) error {
	if given == 0 {
		if exists {
			return fmt.Errorf("%s %s: %w", entity, id, generic.ErrAlreadyExists)
		}
		return nil
	}
	if !exists || stored != given {
		return fmt.Errorf("%s %s: %w", entity, id, generic.ErrConcurrentModification)
	}
	return nil
}

func (s *state) SaveWarehouse(_ context.Context, w *warehousing.Warehouse) error {
	cur, ok := s.warehouses[w.ID]
	if err := checkVersion("warehouse", string(w.ID), cur.Version, w.Version, ok); err != nil {
		return err
	}
	w.Version++
	s.warehouses[w.ID] = w.Clone()
	return nil
}

func (s *state) GetWarehouse(_ context.Context, id generic.WarehouseID) (*warehousing.Warehouse, error) {
	w, ok := s.warehouses[id]
	if !ok {
		return nil, nil
	}
	c := w.Clone()
	return &c, nil
}

func (s *state) ListWarehouses(_ context.Context, f warehousing.WarehouseFilter) ([]warehousing.Warehouse, error) {
	out := make([]warehousing.Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		if w.Archived && !f.IncludeArchived {
			continue
		}
		if f.OwnerID != "" && w.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) SaveBooking(_ context.Context, b *warehousing.Booking) error {
	cur, ok := s.bookings[b.ID]
	if err := checkVersion("booking", string(b.ID), cur.Version, b.Version, ok); err != nil {
		return err
	}
	if owner, taken := s.bookingNos[b.BookingNo]; taken && owner != b.ID {
		return fmt.Errorf("booking number %s: %w", b.BookingNo, generic.ErrAlreadyExists)
	}
	if ok && cur.BookingNo != b.BookingNo {
		delete(s.bookingNos, cur.BookingNo)
	}
	b.Version++
	s.bookings[b.ID] = b.Clone()
	s.bookingNos[b.BookingNo] = b.ID
	return nil
}

func (s *state) GetBooking(_ context.Context, id generic.BookingID) (*warehousing.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	c := b.Clone()
	return &c, nil
}

func (s *state) BookingNoExists(_ context.Context, no string) (bool, error) {
	_, ok := s.bookingNos[no]
	return ok, nil
}

func sortBookings(out []warehousing.Booking) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].BookingNo < out[j].BookingNo
	})
}

func (s *state) ListBookings(_ context.Context, f warehousing.BookingFilter) ([]warehousing.Booking, error) {
	var out []warehousing.Booking
	for _, b := range s.bookings {
		if f.Matches(&b) {
			out = append(out, b.Clone())
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *state) ExpiryCandidates(_ context.Context, cutoff generic.DayKey) ([]warehousing.Booking, error) {
	var out []warehousing.Booking
	for _, b := range s.bookings {
		if b.Status != warehousing.BookingPending && b.Status != warehousing.BookingAccepted {
			continue
		}
		if b.Flags().Deposited || b.Dates.From.DayKey() >= cutoff {
			continue
		}
		out = append(out, b.Clone())
	}
	sortBookings(out)
	return out, nil
}

func (s *state) SaveWeighbridge(_ context.Context, wb *warehousing.Weighbridge) error {
	if _, ok := s.weighbridges[wb.BookingID]; ok {
		return fmt.Errorf("weighbridge for booking %s: %w", wb.BookingID, generic.ErrAlreadyExists)
	}
	s.weighbridges[wb.BookingID] = *wb
	return nil
}

func (s *state) GetWeighbridgeByBooking(_ context.Context, id generic.BookingID) (*warehousing.Weighbridge, error) {
	wb, ok := s.weighbridges[id]
	if !ok {
		return nil, nil
	}
	return &wb, nil
}

func (s *state) SaveDeposit(_ context.Context, d *warehousing.Deposit) error {
	if _, ok := s.deposits[d.ID]; !ok {
		for _, other := range s.deposits {
			if other.BookingID == d.BookingID {
				return fmt.Errorf("deposit for booking %s: %w", d.BookingID, generic.ErrAlreadyExists)
			}
		}
	}
	s.deposits[d.ID] = d.Clone()
	return nil
}

func (s *state) GetDeposit(_ context.Context, id string) (*warehousing.Deposit, error) {
	d, ok := s.deposits[id]
	if !ok {
		return nil, nil
	}
	c := d.Clone()
	return &c, nil
}

func (s *state) ListDeposits(_ context.Context, f warehousing.DepositFilter) ([]warehousing.Deposit, error) {
	var out []warehousing.Deposit
	for _, d := range s.deposits {
		if f.Matches(&d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepositDate.Equal(out[j].DepositDate) {
			return out[i].DepositDate.Before(out[j].DepositDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) SaveLoan(_ context.Context, l *warehousing.Loan) error {
	cur, ok := s.loans[l.ID]
	if err := checkVersion("loan", l.ID, cur.Version, l.Version, ok); err != nil {
		return err
	}
	if !ok {
		for _, other := range s.loans {
			if other.BookingID == l.BookingID && other.Pledge == l.Pledge {
				return fmt.Errorf("%w: %s already applied to %s", generic.ErrDuplicateApplication, l.Pledge, l.BookingID)
			}
		}
	}
	l.Version++
	s.loans[l.ID] = l.Clone()
	return nil
}

func (s *state) GetLoan(_ context.Context, id string) (*warehousing.Loan, error) {
	l, ok := s.loans[id]
	if !ok {
		return nil, nil
	}
	c := l.Clone()
	return &c, nil
}

func (s *state) LoanExists(_ context.Context, id string) (bool, error) {
	_, ok := s.loans[id]
	return ok, nil
}

func (s *state) ListLoans(_ context.Context, f warehousing.LoanFilter) ([]warehousing.Loan, error) {
	var out []warehousing.Loan
	for _, l := range s.loans {
		if f.Matches(&l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) SaveShipment(_ context.Context, sh *warehousing.Shipment) error {
	for _, existing := range s.shipments[sh.BookingID] {
		if existing.ID == sh.ID {
			return fmt.Errorf("shipment %s: %w", sh.ID, generic.ErrAlreadyExists)
		}
	}
	c := *sh
	c.Lines = append([]warehousing.ShipmentLine(nil), sh.Lines...)
	s.shipments[sh.BookingID] = append(s.shipments[sh.BookingID], c)
	return nil
}

func (s *state) ListShipments(_ context.Context, id generic.BookingID) ([]warehousing.Shipment, error) {
	src := s.shipments[id]
	out := make([]warehousing.Shipment, len(src))
	for i, sh := range src {
		sh.Lines = append([]warehousing.ShipmentLine(nil), sh.Lines...)
		out[i] = sh
	}
	return out, nil
}

func (s *state) SaveInvoice(_ context.Context, inv *warehousing.Invoice) error {
	if _, ok := s.invoices[inv.ID]; !ok {
		if inv.InvoiceNo != "" && s.invoiceNos[inv.InvoiceNo] {
			return fmt.Errorf("invoice number %s: %w", inv.InvoiceNo, generic.ErrAlreadyExists)
		}
		if inv.TrackingID != "" && s.trackingIDs[inv.TrackingID] {
			return fmt.Errorf("tracking id %s: %w", inv.TrackingID, generic.ErrAlreadyExists)
		}
	}
	if inv.InvoiceNo != "" {
		s.invoiceNos[inv.InvoiceNo] = true
	}
	if inv.TrackingID != "" {
		s.trackingIDs[inv.TrackingID] = true
	}
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *state) GetInvoice(_ context.Context, id string) (*warehousing.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (s *state) InvoiceNoExists(_ context.Context, no string) (bool, error) {
	return s.invoiceNos[no], nil
}

func (s *state) TrackingIDExists(_ context.Context, id string) (bool, error) {
	return s.trackingIDs[id], nil
}

func (s *state) ListInvoices(_ context.Context, id generic.BookingID) ([]warehousing.Invoice, error) {
	var out []warehousing.Invoice
	for _, inv := range s.invoices {
		if inv.BookingID == id {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

var (
	_ warehousing.TxStore = (*Memory)(nil)
	_ warehousing.Store   = (*state)(nil)
)
