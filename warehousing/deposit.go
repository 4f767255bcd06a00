package warehousing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// DEPOSIT STAGE
// =============================================================================

// A deposit requires the weighbridge record to exist already. The physical
// order is the other way round, but the intake desk only books goods in once
// the truck has been weighed.

type AddDepositCommand struct {
	BookingID        generic.BookingID
	DepositDate      generic.TimePoint
	Slot             string
	CommodityType    CommodityType
	RevalidationDate generic.TimePoint // required for non-exchange commodities
	ExpiryDate       generic.TimePoint // required for non-exchange commodities
}

func (cmd AddDepositCommand) validate() error {
	if cmd.BookingID == "" {
		return generic.NewValidationError("booking_id", "is required")
	}
	if cmd.DepositDate.IsZero() {
		return generic.NewValidationError("deposit_date", "is required")
	}
	switch cmd.CommodityType {
	case ExchangeCommodity:
	case NonExchangeCommodity:
		if cmd.RevalidationDate.IsZero() || cmd.ExpiryDate.IsZero() {
			return generic.NewValidationError("revalidation_date",
				"revalidation and expiry dates are required for non-exchange commodities")
		}
	default:
		return generic.NewValidationError("commodity_type", fmt.Sprintf("unknown commodity type %q", cmd.CommodityType))
	}
	return nil
}

// errDepositWindowClosed signals that the booking aged out and must be expired
// after the deposit transaction has rolled back.
var errDepositWindowClosed = errors.New("deposit window closed")

// AddDeposit books the goods in. A booking whose deposit window has passed is
// expired on the spot and the call fails with ErrExpired.
func (s *Service) AddDeposit(ctx context.Context, actor Identity, cmd AddDepositCommand) (*Deposit, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	var d *Deposit
	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var w *Warehouse
		var err error
		b, w, err = loadForStaff(ctx, tx, actor, cmd.BookingID)
		if err != nil {
			return err
		}

		wb, err := tx.GetWeighbridgeByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if wb == nil {
			return transitionError(b, StageDeposited.String(),
				fmt.Errorf("%w: no weighbridge record", generic.ErrPreconditionFailed))
		}
		if b.DepositID != "" || b.Stage >= StageDeposited {
			return fmt.Errorf("deposit for booking %s: %w", b.BookingNo, generic.ErrAlreadyExists)
		}
		if (b.Status == BookingPending || b.Status == BookingAccepted) &&
			s.today().After(b.Dates.From.AddDays(s.Config.ExpiryWindowDays)) {
			return errDepositWindowClosed
		}
		if err := requireAccepted(b, StageDeposited.String()); err != nil {
			return err
		}

		if !cmd.DepositDate.Equal(wb.Date) {
			return generic.NewValidationError("deposit_date",
				fmt.Sprintf("must match the weighbridge date %s", wb.Date))
		}
		if cmd.CommodityType == NonExchangeCommodity {
			window := generic.DateRange{From: cmd.DepositDate, To: cmd.ExpiryDate}
			if cmd.ExpiryDate.Before(cmd.DepositDate) || !window.Contains(cmd.RevalidationDate) {
				return &generic.OutOfWindowError{What: "revalidation date", Date: cmd.RevalidationDate, Window: window}
			}
		}

		now := s.now()
		d = &Deposit{
			ID:               uuid.NewString(),
			BookingID:        b.ID,
			WarehouseID:      w.ID,
			DepositDate:      cmd.DepositDate,
			Slot:             cmd.Slot,
			CommodityType:    cmd.CommodityType,
			RevalidationDate: cmd.RevalidationDate,
			ExpiryDate:       cmd.ExpiryDate,
			TotalWeight:      b.TotalWeight,
			TotalPrice:       b.TotalPrice,
			Status:           DepositPending,
			CreatedBy:        actor.UserID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.SaveDeposit(ctx, d); err != nil {
			return err
		}

		b.Stage = StageDeposited
		b.DepositID = d.ID
		b.UpdatedAt = now
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditDepositAdded, b, map[string]any{
			"deposit_id":   d.ID,
			"deposit_date": d.DepositDate.String(),
			"weight":       d.TotalWeight.Value.String(),
		})
	})

	if errors.Is(err, errDepositWindowClosed) {
		if _, expErr := s.expireBooking(ctx, cmd.BookingID, SystemIdentity); expErr != nil &&
			!errors.Is(expErr, generic.ErrAlreadyInState) {
			s.Log.Error().Err(expErr).Str("booking_id", string(cmd.BookingID)).Msg("failed to expire booking")
		}
		return nil, transitionError(b, StageDeposited.String(), generic.ErrExpired)
	}
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("booking_no", b.BookingNo).Str("deposit_id", d.ID).Msg("deposit recorded")
	return d, nil
}

func (s *Service) GetDeposit(ctx context.Context, actor Identity, id string) (*Deposit, error) {
	d, err := s.Store.GetDeposit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, generic.NewNotFoundError("deposit", id)
	}
	if _, err := s.GetBooking(ctx, actor, d.BookingID); err != nil {
		return nil, err
	}
	return d, nil
}
