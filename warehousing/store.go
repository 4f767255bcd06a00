package warehousing

import (
	"context"

	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// STORE - Persistence for the booking lifecycle
// =============================================================================

// Getters return (nil, nil) when the record does not exist.
//
// Warehouse, Booking and Loan are versioned: Save with Version 0 inserts and
// sets Version to 1, Save with Version N updates only if the stored version is
// still N (else generic.ErrConcurrentModification) and bumps it to N+1.
type Store interface {
	generic.MovementStore
	generic.AuditLog

	SaveWarehouse(ctx context.Context, w *Warehouse) error
	GetWarehouse(ctx context.Context, id generic.WarehouseID) (*Warehouse, error)
	ListWarehouses(ctx context.Context, filter WarehouseFilter) ([]Warehouse, error)

	SaveBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id generic.BookingID) (*Booking, error)
	BookingNoExists(ctx context.Context, bookingNo string) (bool, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)

	// ExpiryCandidates returns pending or accepted bookings that are not yet
	// deposited and whose from-date is before cutoff.
	ExpiryCandidates(ctx context.Context, cutoff generic.DayKey) ([]Booking, error)

	SaveWeighbridge(ctx context.Context, wb *Weighbridge) error
	GetWeighbridgeByBooking(ctx context.Context, bookingID generic.BookingID) (*Weighbridge, error)

	SaveDeposit(ctx context.Context, d *Deposit) error
	GetDeposit(ctx context.Context, id string) (*Deposit, error)
	ListDeposits(ctx context.Context, filter DepositFilter) ([]Deposit, error)

	SaveLoan(ctx context.Context, l *Loan) error
	GetLoan(ctx context.Context, id string) (*Loan, error)
	LoanExists(ctx context.Context, id string) (bool, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)

	SaveShipment(ctx context.Context, s *Shipment) error
	ListShipments(ctx context.Context, bookingID generic.BookingID) ([]Shipment, error)

	SaveInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	InvoiceNoExists(ctx context.Context, invoiceNo string) (bool, error)
	TrackingIDExists(ctx context.Context, trackingID string) (bool, error)
	ListInvoices(ctx context.Context, bookingID generic.BookingID) ([]Invoice, error)
}

// TxStore wraps Store with transaction support.
// Every multi-record transition runs through WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// FILTERS
// =============================================================================

type WarehouseFilter struct {
	OwnerID         string
	IncludeArchived bool
}

// BookingFilter fields are ANDed; empty fields match everything.
type BookingFilter struct {
	UserID       string
	WarehouseIDs []generic.WarehouseID
	Status       BookingStatus
}

type DepositFilter struct {
	WarehouseID generic.WarehouseID
	BookingID   generic.BookingID
	Grade       string
}

type LoanFilter struct {
	BookingID generic.BookingID
	Pledge    string
	Status    LoanStatus
}

// Matches is used by in-memory stores.
func (f BookingFilter) Matches(b *Booking) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if len(f.WarehouseIDs) > 0 {
		found := false
		for _, id := range f.WarehouseIDs {
			if id == b.WarehouseID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f DepositFilter) Matches(d *Deposit) bool {
	if f.WarehouseID != "" && d.WarehouseID != f.WarehouseID {
		return false
	}
	if f.BookingID != "" && d.BookingID != f.BookingID {
		return false
	}
	if f.Grade != "" && (d.Grade == nil || d.Grade.Grade != f.Grade) {
		return false
	}
	return true
}

func (f LoanFilter) Matches(l *Loan) bool {
	if f.BookingID != "" && l.BookingID != f.BookingID {
		return false
	}
	if f.Pledge != "" && l.Pledge != NormalizePledge(f.Pledge) {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	return true
}
