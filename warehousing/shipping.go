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
// SHIPPING / WITHDRAWAL
// =============================================================================

type AddShippingCommand struct {
	BookingID   generic.BookingID
	WarehouseID generic.WarehouseID
	Mode        WithdrawalMode
	Lines       []ShipmentLine
	TotalBags   int
	TruckNumber string
	DriverName  string
}

func (cmd AddShippingCommand) validate() error {
	if cmd.BookingID == "" {
		return generic.NewValidationError("booking_id", "is required")
	}
	if cmd.WarehouseID == "" {
		return generic.NewValidationError("warehouse_id", "is required")
	}
	if cmd.Mode != WithdrawPartial && cmd.Mode != WithdrawFull {
		return generic.NewValidationError("withdrawl_status", fmt.Sprintf("unknown withdrawal mode %q", cmd.Mode))
	}
	if len(cmd.Lines) == 0 {
		return generic.NewValidationError("lines", "at least one line is required")
	}
	for _, l := range cmd.Lines {
		if strings.TrimSpace(l.ItemName) == "" {
			return generic.NewValidationError("lines.item_name", "is required")
		}
		if !l.Quantity.IsPositive() {
			return generic.NewValidationError("lines.quantity", "must be positive")
		}
	}
	if cmd.TotalBags < 0 {
		return generic.NewValidationError("total_bags", "must not be negative")
	}
	return nil
}

func (cmd AddShippingCommand) quantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range cmd.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

// verifyConsignment asks the classifier what it sees and compares it with the
// shipment. Without a classifier nothing is checked.
func (s *Service) verifyConsignment(ctx context.Context, b *Booking, cmd AddShippingCommand) error {
	if s.Classifier == nil {
		return nil
	}
	ref := b.WithdrawalID
	if ref == "" {
		ref = string(b.ID)
	}
	got, err := s.Classifier.Classify(ctx, ref)
	if err != nil {
		return fmt.Errorf("classify %s: %w", ref, err)
	}
	if got.SacksCount != cmd.TotalBags {
		return generic.NewValidationError("total_bags",
			fmt.Sprintf("classifier counted %d sacks, shipment declares %d", got.SacksCount, cmd.TotalBags))
	}
	if len(b.Items) > 0 && !strings.EqualFold(strings.TrimSpace(got.Commodity), b.Items[0].Commodity) {
		return generic.NewValidationError("commodity",
			fmt.Sprintf("classifier saw %q, booking holds %q", got.Commodity, b.Items[0].Commodity))
	}
	return nil
}

// AddShipping ships goods out of a graded booking, fully or in part. Capacity
// is credited back in proportion to the shipped share of the remaining weight.
func (s *Service) AddShipping(ctx context.Context, actor Identity, cmd AddShippingCommand) (*Shipment, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	// The classifier is remote; consult it before opening the transaction,
	// and only for staff of the booking's warehouse.
	pre, _, err := loadForStaff(ctx, s.Store, actor, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyConsignment(ctx, pre, cmd); err != nil {
		return nil, err
	}

	var sh *Shipment
	var b *Booking
	err = s.Store.WithTx(ctx, func(tx Store) error {
		var w *Warehouse
		var err error
		b, w, err = loadForStaff(ctx, tx, actor, cmd.BookingID)
		if err != nil {
			return err
		}
		if b.WarehouseID != cmd.WarehouseID {
			return generic.NewValidationError("warehouse_id",
				fmt.Sprintf("booking %s is stored in another warehouse", b.BookingNo))
		}
		if err := requireAccepted(b, StageWithdrawn.String()); err != nil {
			return err
		}
		switch b.Stage {
		case StageGraded, StagePartiallyWithdrawn:
		case StageWithdrawn:
			return transitionError(b, StageWithdrawn.String(), generic.ErrAlreadyInState)
		default:
			return transitionError(b, StageWithdrawn.String(),
				fmt.Errorf("%w: goods must be graded before shipping", generic.ErrPreconditionFailed))
		}

		remaining := b.TotalWeight
		qty := generic.NewAmountFromDecimal(cmd.quantity(), remaining.Unit)
		if qty.GreaterThan(remaining) {
			return &generic.InsufficientWeightError{Available: remaining, Requested: qty}
		}

		previous, err := tx.ListShipments(ctx, b.ID)
		if err != nil {
			return err
		}
		n := len(previous) + 1
		id := fmt.Sprintf("%s.%d", b.BookingNo, n)
		if cmd.Mode == WithdrawFull && n == 1 {
			id = b.BookingNo
		}

		shipped := qty
		if cmd.Mode == WithdrawFull {
			shipped = remaining
		}
		release := proportionalRelease(b.Outstanding(), shipped, remaining)
		released, err := s.releaseCapacity(ctx, tx, w, b, release,
			"release:"+id, "shipment "+id, actor)
		if err != nil {
			return err
		}

		now := s.now()
		lateFee := decimal.Zero
		if s.today().After(b.Dates.To) && s.Config.LateFee.IsPositive() {
			lateFee = s.Config.LateFee
			b.TotalPrice = b.TotalPrice.Add(lateFee)
			b.PendingPrice = b.PendingPrice.Add(lateFee)
		}

		b.TotalWeight = remaining.Sub(shipped)
		if b.TotalWeight.IsZero() {
			b.Stage = StageWithdrawn
		} else {
			b.Stage = StagePartiallyWithdrawn
		}
		b.UpdatedAt = now

		sh = &Shipment{
			ID:               id,
			BookingID:        b.ID,
			WarehouseID:      w.ID,
			WithdrawalID:     b.WithdrawalID,
			Mode:             cmd.Mode,
			Lines:            cmd.Lines,
			TotalBags:        cmd.TotalBags,
			TruckNumber:      cmd.TruckNumber,
			DriverName:       cmd.DriverName,
			Status:           ShipmentInTransit,
			Quantity:         shipped,
			ReleasedCapacity: released,
			LateFee:          lateFee,
			ShippedAt:        now,
			CreatedBy:        actor.UserID,
		}
		if err := tx.SaveShipment(ctx, sh); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditShipmentAdded, b, map[string]any{
			"shipment_id": id,
			"mode":        string(cmd.Mode),
			"quantity":    shipped.Value.String(),
			"released":    released.Value.String(),
			"late_fee":    lateFee.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("booking_no", b.BookingNo).
		Str("shipment_id", sh.ID).
		Str("quantity", sh.Quantity.String()).
		Str("stage", b.Stage.String()).
		Msg("shipment added")
	s.notify(ctx, Notification{
		UserID:   b.UserID,
		Message:  fmt.Sprintf("Shipment %s of %s has left the warehouse", sh.ID, sh.Quantity),
		Type:     NotifyInfo,
		Metadata: map[string]string{"booking_id": string(b.ID), "shipment_id": sh.ID},
	})
	return sh, nil
}

// AllocateWithdrawalID issues the withdrawal identifier of a booking. Calling
// it again returns the same identifier. It never changes the booking's stage.
func (s *Service) AllocateWithdrawalID(ctx context.Context, actor Identity, bookingID generic.BookingID) (string, error) {
	var id string
	err := s.Store.WithTx(ctx, func(tx Store) error {
		b, err := loadBooking(ctx, tx, bookingID)
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
		if b.WithdrawalID != "" {
			id = b.WithdrawalID
			return nil
		}
		if err := requireAccepted(b, "withdrawal id"); err != nil {
			return err
		}
		if b.Stage < StageDeposited || b.Stage == StageWithdrawn {
			return transitionError(b, "withdrawal id",
				fmt.Errorf("%w: goods are not in the warehouse", generic.ErrPreconditionFailed))
		}

		id = uuid.NewString()
		b.WithdrawalID = id
		b.UpdatedAt = s.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditWithdrawalIssued, b, map[string]any{"withdrawal_id": id})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) ListShipments(ctx context.Context, actor Identity, bookingID generic.BookingID) ([]Shipment, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.Store.ListShipments(ctx, bookingID)
}
