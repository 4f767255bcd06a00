/*
booking.go - Booking state machine

OPERATIONS:
  CreateBooking  prices the line items, checks remaining capacity; pending
                 unless the customer is the warehouse owner (auto-accepted)
  AcceptBooking  re-checks and commits capacity in the same transaction
  RejectBooking  terminal, releases capacity if it had been committed
  CancelBooking  terminal, same release rule, appends the reason

PRICING:
  days       = to - from + 1
  line total = pricePerDay(tier for bag weight) × quantity × days
  total      = Σ line totals

CAPACITY:
  Creation only checks. Capacity is committed at accept time, inside the
  transaction that flips the status, so two accepts racing for the last
  tonnes cannot both succeed.
*/
package warehousing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// CREATE
// =============================================================================

type ItemRequest struct {
	Commodity string
	Weight    decimal.Decimal
	Quantity  decimal.Decimal
}

type CreateBookingCommand struct {
	WarehouseID       generic.WarehouseID
	Dates             generic.DateRange
	Items             []ItemRequest
	RequestedCapacity decimal.Decimal
	TotalWeight       decimal.Decimal // defaults to RequestedCapacity
	NoOfBags          int
	BagSize           decimal.Decimal
	ProductName       string
	Contact           Contact
}

func (cmd CreateBookingCommand) validate(today generic.TimePoint) error {
	if cmd.WarehouseID == "" {
		return generic.NewValidationError("warehouse_id", "is required")
	}
	if err := cmd.Dates.Validate(); err != nil {
		return err
	}
	if cmd.Dates.From.Before(today) {
		return generic.NewValidationError("from_date", "must not be before today")
	}
	if len(cmd.Items) == 0 {
		return generic.NewValidationError("items", "at least one item is required")
	}
	for _, it := range cmd.Items {
		if strings.TrimSpace(it.Commodity) == "" {
			return generic.NewValidationError("items.commodity", "is required")
		}
		if !it.Quantity.IsPositive() {
			return generic.NewValidationError("items.quantity", "must be positive")
		}
	}
	if !cmd.RequestedCapacity.IsPositive() {
		return generic.NewValidationError("requested_capacity", "must be positive")
	}
	if cmd.TotalWeight.IsNegative() {
		return generic.NewValidationError("total_weight", "must not be negative")
	}
	if cmd.NoOfBags < 0 {
		return generic.NewValidationError("no_of_bags", "must not be negative")
	}
	return nil
}

// priceItems resolves every item against the warehouse's commodity tiers.
func priceItems(w *Warehouse, items []ItemRequest, days int) ([]LineItem, decimal.Decimal, error) {
	dayCount := decimal.NewFromInt(int64(days))
	total := decimal.Zero
	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		commodity, ok := w.Commodity(it.Commodity)
		if !ok {
			return nil, total, generic.NewNotFoundError("commodity", it.Commodity)
		}
		tier, ok := commodity.TierFor(it.Weight)
		if !ok {
			return nil, total, generic.NewNotFoundError("price tier",
				fmt.Sprintf("%s@%s", commodity.Name, it.Weight.String()))
		}
		lineTotal := tier.PricePerDay.Mul(it.Quantity).Mul(dayCount)
		lines = append(lines, LineItem{
			Commodity:   commodity.Name,
			Weight:      tier.Weight,
			PricePerDay: tier.PricePerDay,
			Quantity:    it.Quantity,
			Total:       lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, generic.Round2(total), nil
}

// CreateBooking books space. The warehouse owner booking their own warehouse
// is accepted immediately and capacity is committed in the same transaction.
func (s *Service) CreateBooking(ctx context.Context, actor Identity, cmd CreateBookingCommand) (*Booking, error) {
	if err := authorize(actor, bookerRoles...); err != nil {
		return nil, err
	}
	today := s.today()
	if err := cmd.validate(today); err != nil {
		return nil, err
	}

	var b *Booking
	var ownerID string
	err := s.Store.WithTx(ctx, func(tx Store) error {
		w, err := loadWarehouse(ctx, tx, cmd.WarehouseID)
		if err != nil {
			return err
		}
		if w.Archived || !w.Active {
			return fmt.Errorf("warehouse %s is not accepting bookings: %w", w.ID, generic.ErrPreconditionFailed)
		}
		ownerID = w.OwnerID

		lines, total, err := priceItems(w, cmd.Items, cmd.Dates.Days())
		if err != nil {
			return err
		}

		unit := w.Capacity.Total.Unit
		requested := generic.NewAmountFromDecimal(cmd.RequestedCapacity, unit)
		if requested.GreaterThan(w.Capacity.Remaining()) {
			return &generic.CapacityExceededError{
				WarehouseID: w.ID,
				Remaining:   w.Capacity.Remaining(),
				Requested:   requested,
			}
		}

		bookingNo, err := s.uniqueID(ctx, s.IDs.BookingNo, tx.BookingNoExists)
		if err != nil {
			return err
		}

		weight := cmd.TotalWeight
		if weight.IsZero() {
			weight = cmd.RequestedCapacity
		}
		now := s.now()
		b = &Booking{
			ID:                generic.BookingID(uuid.NewString()),
			BookingNo:         bookingNo,
			UserID:            actor.UserID,
			WarehouseID:       w.ID,
			Dates:             cmd.Dates,
			Contact:           cmd.Contact,
			ProductName:       cmd.ProductName,
			RequestedCapacity: requested,
			Items:             lines,
			TotalPrice:        total,
			PendingPrice:      total,
			TotalWeight:       generic.NewAmountFromDecimal(weight, unit),
			NoOfBags:          cmd.NoOfBags,
			BagSize:           cmd.BagSize,
			Status:            BookingPending,
			Stage:             StageBooked,
			CommittedCapacity: requested.Zero(),
			ReleasedCapacity:  requested.Zero(),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if actor.UserID == w.OwnerID {
			if err := s.commitCapacity(ctx, tx, w, b, actor); err != nil {
				return err
			}
			b.Status = BookingAccepted
			b.AcceptedBy = actor.UserID
		}

		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditBookingCreated, b, map[string]any{
			"booking_no": b.BookingNo,
			"status":     string(b.Status),
			"requested":  requested.Value.String(),
			"total":      total.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("booking_no", b.BookingNo).
		Str("warehouse_id", string(b.WarehouseID)).
		Str("status", string(b.Status)).
		Msg("booking created")

	if b.Status == BookingPending {
		s.notify(ctx, Notification{
			UserID:   ownerID,
			Message:  fmt.Sprintf("New booking request %s for %s", b.BookingNo, b.RequestedCapacity),
			Type:     NotifyInfo,
			Metadata: map[string]string{"booking_id": string(b.ID)},
		})
	}
	return b, nil
}

// =============================================================================
// ACCEPT / REJECT / CANCEL
// =============================================================================

// AcceptBooking commits the booking's capacity. Accepting twice fails with
// ErrAlreadyInState and never debits twice.
func (s *Service) AcceptBooking(ctx context.Context, actor Identity, id generic.BookingID) (*Booking, error) {
	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var w *Warehouse
		var err error
		b, w, err = loadForStaff(ctx, tx, actor, id)
		if err != nil {
			return err
		}

		switch b.Status {
		case BookingPending:
		case BookingAccepted:
			return transitionError(b, string(BookingAccepted), generic.ErrAlreadyInState)
		case BookingExpired:
			return transitionError(b, string(BookingAccepted), generic.ErrExpired)
		default:
			return transitionError(b, string(BookingAccepted), generic.ErrPreconditionFailed)
		}

		if err := s.commitCapacity(ctx, tx, w, b, actor); err != nil {
			return err
		}
		b.Status = BookingAccepted
		b.AcceptedBy = actor.UserID
		b.UpdatedAt = s.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditBookingAccepted, b, map[string]any{
			"committed": b.CommittedCapacity.Value.String(),
			"remaining": w.Capacity.Remaining().Value.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("booking_no", b.BookingNo).Str("accepted_by", actor.UserID).Msg("booking accepted")
	s.notify(ctx, Notification{
		UserID:   b.UserID,
		Message:  fmt.Sprintf("Your booking %s has been accepted", b.BookingNo),
		Type:     NotifySuccess,
		Metadata: map[string]string{"booking_id": string(b.ID)},
	})
	return b, nil
}

// RejectBooking is allowed while pending, or while accepted before any goods
// arrived.
func (s *Service) RejectBooking(ctx context.Context, actor Identity, id generic.BookingID, reason string) (*Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, generic.NewValidationError("reason", "is required")
	}

	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var w *Warehouse
		var err error
		b, w, err = loadForStaff(ctx, tx, actor, id)
		if err != nil {
			return err
		}

		switch {
		case b.Status == BookingRejected:
			return transitionError(b, string(BookingRejected), generic.ErrAlreadyInState)
		case b.Status == BookingPending:
		case b.Status == BookingAccepted && b.Stage == StageBooked:
		default:
			return transitionError(b, string(BookingRejected), generic.ErrPreconditionFailed)
		}

		if err := s.releaseOutstanding(ctx, tx, w, b, "reject", actor); err != nil {
			return err
		}
		b.Status = BookingRejected
		b.RejectedBy = actor.UserID
		b.Reasons = append(b.Reasons, reason)
		b.UpdatedAt = s.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditBookingRejected, b, map[string]any{"reason": reason})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, Notification{
		UserID:   b.UserID,
		Message:  fmt.Sprintf("Your booking %s has been rejected: %s", b.BookingNo, reason),
		Type:     NotifyWarning,
		Metadata: map[string]string{"booking_id": string(b.ID)},
	})
	return b, nil
}

// CancelBooking may be called by the customer or warehouse staff before any
// goods arrived.
func (s *Service) CancelBooking(ctx context.Context, actor Identity, id generic.BookingID, reason string) (*Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, generic.NewValidationError("reason", "is required")
	}

	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		b, err = loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		w, err := loadWarehouse(ctx, tx, b.WarehouseID)
		if err != nil {
			return err
		}
		if err := authorizeParty(actor, b, w); err != nil {
			return err
		}

		switch {
		case b.Status == BookingCancelled:
			return transitionError(b, string(BookingCancelled), generic.ErrAlreadyInState)
		case b.Status == BookingPending:
		case b.Status == BookingAccepted && b.Stage == StageBooked:
		default:
			return transitionError(b, string(BookingCancelled), generic.ErrPreconditionFailed)
		}

		if err := s.releaseOutstanding(ctx, tx, w, b, "cancel", actor); err != nil {
			return err
		}
		b.Status = BookingCancelled
		b.Reasons = append(b.Reasons, reason)
		b.UpdatedAt = s.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditBookingCancelled, b, map[string]any{"reason": reason})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("booking_no", b.BookingNo).Str("cancelled_by", actor.UserID).Msg("booking cancelled")
	return b, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) GetBooking(ctx context.Context, actor Identity, id generic.BookingID) (*Booking, error) {
	b, err := loadBooking(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	w, err := loadWarehouse(ctx, s.Store, b.WarehouseID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(actor, b, w); err != nil {
		return nil, err
	}
	return b, nil
}

// scopeFilter narrows filter to what actor may see: admins see everything,
// owners and managers their warehouses, customers their own bookings.
func (s *Service) scopeFilter(ctx context.Context, actor Identity, filter BookingFilter) (BookingFilter, error) {
	switch actor.Role {
	case RoleAdmin:
		return filter, nil
	case RoleOwner, RoleManager:
		all, err := s.Store.ListWarehouses(ctx, WarehouseFilter{IncludeArchived: true})
		if err != nil {
			return filter, err
		}
		allowed := make(map[generic.WarehouseID]bool)
		for i := range all {
			if all[i].IsStaff(actor.UserID) {
				allowed[all[i].ID] = true
			}
		}
		var scoped []generic.WarehouseID
		if len(filter.WarehouseIDs) == 0 {
			for id := range allowed {
				scoped = append(scoped, id)
			}
		} else {
			for _, id := range filter.WarehouseIDs {
				if allowed[id] {
					scoped = append(scoped, id)
				}
			}
		}
		if len(scoped) == 0 {
			// staff of nothing: match no warehouse
			scoped = []generic.WarehouseID{""}
		}
		filter.WarehouseIDs = scoped
		return filter, nil
	default:
		if actor.UserID == "" {
			return filter, fmt.Errorf("%w: missing user", generic.ErrForbidden)
		}
		filter.UserID = actor.UserID
		return filter, nil
	}
}

func (s *Service) ListBookings(ctx context.Context, actor Identity, filter BookingFilter) ([]Booking, error) {
	scoped, err := s.scopeFilter(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return s.Store.ListBookings(ctx, scoped)
}

// CountBookings tallies visible bookings per status. Every status is present
// in the result, zero or not.
func (s *Service) CountBookings(ctx context.Context, actor Identity, filter BookingFilter) (map[BookingStatus]int, error) {
	filter.Status = ""
	bookings, err := s.ListBookings(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	counts := map[BookingStatus]int{
		BookingPending:   0,
		BookingAccepted:  0,
		BookingExpired:   0,
		BookingRejected:  0,
		BookingCancelled: 0,
	}
	for i := range bookings {
		counts[bookings[i].Status]++
	}
	return counts, nil
}

func (s *Service) AuditTrail(ctx context.Context, actor Identity, id generic.BookingID) ([]generic.AuditEntry, error) {
	if _, err := s.GetBooking(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.Store.AuditTrail(ctx, id)
}
