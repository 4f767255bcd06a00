/*
capacity.go - Booking-level wrapper around the generic capacity ledger

PURPOSE:
  Ties capacity movements to bookings. Callers are always inside
  Store.WithTx, so the movement, the warehouse row and the booking row
  commit or roll back together.

RULES:
  - A booking is committed once: key "commit:<booking id>"
  - Releases are keyed by their cause: "release:<shipment id>",
    "release:cancel:<booking id>", "release:expire:<booking id>"
  - A booking never releases more than it committed (Outstanding)

RELEASE ON WITHDRAWAL:
  Shipping credits back capacity proportionally to the shipped share of the
  remaining weight:

    release = outstanding × shipped / remaining weight

  The shipment that empties the booking releases whatever is outstanding, so
  rounding never leaves capacity stranded.
*/
package warehousing

import (
	"context"
	"errors"

	"github.com/warp/warehouse-engine/generic"
)

// commitCapacity debits b's requested capacity from w and persists w.
func (s *Service) commitCapacity(ctx context.Context, tx Store, w *Warehouse, b *Booking, actor Identity) error {
	ledger := generic.NewCapacityLedger(tx)
	next, err := ledger.Commit(ctx, w.Capacity, generic.Movement{
		WarehouseID:    w.ID,
		BookingID:      b.ID,
		Delta:          b.RequestedCapacity,
		Reason:         "booking " + b.BookingNo + " accepted",
		IdempotencyKey: "commit:" + string(b.ID),
		EffectiveAt:    s.today(),
		CreatedBy:      actor.UserID,
	})
	if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return transitionError(b, string(BookingAccepted), generic.ErrAlreadyInState)
	}
	if err != nil {
		return err
	}

	w.Capacity = next
	w.UpdatedAt = s.now()
	if err := tx.SaveWarehouse(ctx, w); err != nil {
		return err
	}
	b.CommittedCapacity = b.RequestedCapacity
	return nil
}

// releaseCapacity credits up to amount of b's outstanding commitment back to
// w and persists w. It returns what was actually released.
func (s *Service) releaseCapacity(ctx context.Context, tx Store, w *Warehouse, b *Booking, amount generic.Amount, key, reason string, actor Identity) (generic.Amount, error) {
	amount = amount.Min(b.Outstanding())
	if !amount.IsPositive() {
		return b.RequestedCapacity.Zero(), nil
	}

	ledger := generic.NewCapacityLedger(tx)
	next, released, err := ledger.Release(ctx, w.Capacity, generic.Movement{
		WarehouseID:    w.ID,
		BookingID:      b.ID,
		Delta:          amount,
		Reason:         reason,
		IdempotencyKey: key,
		EffectiveAt:    s.today(),
		CreatedBy:      actor.UserID,
	})
	if err != nil {
		return amount.Zero(), err
	}

	w.Capacity = next
	w.UpdatedAt = s.now()
	if err := tx.SaveWarehouse(ctx, w); err != nil {
		return amount.Zero(), err
	}
	b.ReleasedCapacity = b.ReleasedCapacity.Add(released)
	return released, nil
}

// releaseOutstanding frees everything b still holds. Used when a booking
// ends without its goods leaving through shipping.
func (s *Service) releaseOutstanding(ctx context.Context, tx Store, w *Warehouse, b *Booking, cause string, actor Identity) error {
	if b.Status != BookingAccepted {
		return nil
	}
	_, err := s.releaseCapacity(ctx, tx, w, b, b.Outstanding(),
		"release:"+cause+":"+string(b.ID), "booking "+b.BookingNo+" "+cause, actor)
	return err
}

// proportionalRelease is outstanding × shipped / remaining, or everything
// outstanding when the shipment empties the booking.
func proportionalRelease(outstanding, shipped, remaining generic.Amount) generic.Amount {
	if !remaining.IsPositive() || !shipped.LessThan(remaining) {
		return outstanding
	}
	share := shipped.Value.Div(remaining.Value)
	return generic.NewAmountFromDecimal(outstanding.Value.Mul(share).Round(4), outstanding.Unit)
}

// CapacityHistory returns the ledger movements of a warehouse.
func (s *Service) CapacityHistory(ctx context.Context, warehouseID generic.WarehouseID) ([]generic.Movement, error) {
	if _, err := loadWarehouse(ctx, s.Store, warehouseID); err != nil {
		return nil, err
	}
	return generic.NewCapacityLedger(s.Store).Movements(ctx, warehouseID)
}

// VerifyCapacity replays the ledger and compares it with the stored filled
// capacity. A mismatch means the warehouse row was changed outside the ledger.
func (s *Service) VerifyCapacity(ctx context.Context, warehouseID generic.WarehouseID) (bool, generic.Amount, error) {
	w, err := loadWarehouse(ctx, s.Store, warehouseID)
	if err != nil {
		return false, generic.Amount{}, err
	}
	replayed, err := generic.NewCapacityLedger(s.Store).FilledFromHistory(ctx, warehouseID, w.Capacity.Total.Unit)
	if err != nil {
		return false, generic.Amount{}, err
	}
	return replayed.Value.Equal(w.Capacity.Filled.Value), replayed, nil
}
