package warehousing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// WEIGHBRIDGE STAGE
// =============================================================================

type AddWeighbridgeCommand struct {
	BookingID   generic.BookingID
	Date        generic.TimePoint
	Time        string
	Gross       decimal.Decimal
	Tare        decimal.Decimal
	TruckNumber string
	DriverName  string
}

func (cmd AddWeighbridgeCommand) validate() error {
	if cmd.BookingID == "" {
		return generic.NewValidationError("booking_id", "is required")
	}
	if cmd.Date.IsZero() {
		return generic.NewValidationError("date", "is required")
	}
	if cmd.Gross.IsNegative() || cmd.Tare.IsNegative() {
		return generic.NewValidationError("weight", "gross and tare must not be negative")
	}
	if cmd.Tare.GreaterThan(cmd.Gross) {
		return generic.NewValidationError("tare_weight", "must not exceed gross weight")
	}
	return nil
}

// weighingWindow is [from, from + window days].
func (s *Service) weighingWindow(b *Booking) generic.DateRange {
	return generic.DateRange{From: b.Dates.From, To: b.Dates.From.AddDays(s.Config.ExpiryWindowDays)}
}

// AddWeighbridge records the measured weight of an accepted booking. The net
// weight becomes the weight held for the booking from here on.
func (s *Service) AddWeighbridge(ctx context.Context, actor Identity, cmd AddWeighbridgeCommand) (*Weighbridge, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	var wb *Weighbridge
	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var w *Warehouse
		var err error
		b, w, err = loadForStaff(ctx, tx, actor, cmd.BookingID)
		if err != nil {
			return err
		}

		existing, err := tx.GetWeighbridgeByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if existing != nil || b.Stage >= StageWeighed {
			return fmt.Errorf("weighbridge for booking %s: %w", b.BookingNo, generic.ErrAlreadyExists)
		}
		if err := requireAccepted(b, StageWeighed.String()); err != nil {
			return err
		}

		window := s.weighingWindow(b)
		if !window.Contains(cmd.Date) {
			return &generic.OutOfWindowError{What: "weighbridge date", Date: cmd.Date, Window: window}
		}

		unit := b.TotalWeight.Unit
		net := generic.NewAmountFromDecimal(cmd.Gross.Sub(cmd.Tare), unit)
		if net.GreaterThan(b.TotalWeight) {
			return generic.NewValidationError("net_weight",
				fmt.Sprintf("net weight %s exceeds booked weight %s", net, b.TotalWeight))
		}

		wb = &Weighbridge{
			ID:          uuid.NewString(),
			BookingID:   b.ID,
			WarehouseID: w.ID,
			Date:        cmd.Date,
			Time:        cmd.Time,
			Gross:       generic.NewAmountFromDecimal(cmd.Gross, unit),
			Tare:        generic.NewAmountFromDecimal(cmd.Tare, unit),
			Net:         net,
			TruckNumber: cmd.TruckNumber,
			DriverName:  cmd.DriverName,
			RecordedBy:  actor.UserID,
			CreatedAt:   s.now(),
		}
		if err := tx.SaveWeighbridge(ctx, wb); err != nil {
			return err
		}

		b.Stage = StageWeighed
		b.WeighbridgeID = wb.ID
		b.TotalWeight = net
		b.UpdatedAt = s.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditWeighbridgeAdded, b, map[string]any{
			"gross": wb.Gross.Value.String(),
			"tare":  wb.Tare.Value.String(),
			"net":   net.Value.String(),
			"date":  cmd.Date.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("booking_no", b.BookingNo).
		Str("net", wb.Net.String()).
		Msg("weighbridge recorded")
	return wb, nil
}

func (s *Service) GetWeighbridge(ctx context.Context, actor Identity, bookingID generic.BookingID) (*Weighbridge, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	wb, err := s.Store.GetWeighbridgeByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, generic.NewNotFoundError("weighbridge", string(bookingID))
	}
	return wb, nil
}
