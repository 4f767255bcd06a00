package warehousing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// GRADING STAGE
// =============================================================================

const (
	GradeI   = "grade-I"
	GradeII  = "grade-II"
	GradeIII = "grade-III"
)

type AddGradeCommand struct {
	DepositID      string
	GradeDate      generic.TimePoint
	Grade          string
	ForeignMatter  decimal.Decimal
	OtherFoodGrain decimal.Decimal
	Other          decimal.Decimal
	DamagedGrain   decimal.Decimal
	ImmatureGrain  decimal.Decimal
	WeevilledGrain decimal.Decimal
	AssignerName   string
}

func (cmd AddGradeCommand) validate() error {
	if cmd.DepositID == "" {
		return generic.NewValidationError("deposit_id", "is required")
	}
	if cmd.GradeDate.IsZero() {
		return generic.NewValidationError("grade_date", "is required")
	}
	if strings.TrimSpace(cmd.Grade) == "" {
		return generic.NewValidationError("grade", "is required")
	}
	for name, v := range map[string]decimal.Decimal{
		"foreign_matter":   cmd.ForeignMatter,
		"other_food_grain": cmd.OtherFoodGrain,
		"other":            cmd.Other,
		"damaged_grain":    cmd.DamagedGrain,
		"immature_grain":   cmd.ImmatureGrain,
		"weevilled_grain":  cmd.WeevilledGrain,
	} {
		if v.IsNegative() {
			return generic.NewValidationError(name, "must not be negative")
		}
	}
	return nil
}

// AddGrade writes the quality assessment onto the deposit and copies it onto
// the booking.
func (s *Service) AddGrade(ctx context.Context, actor Identity, cmd AddGradeCommand) (*Deposit, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	var d *Deposit
	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		d, err = tx.GetDeposit(ctx, cmd.DepositID)
		if err != nil {
			return err
		}
		if d == nil {
			return generic.NewNotFoundError("deposit", cmd.DepositID)
		}
		b, _, err = loadForStaff(ctx, tx, actor, d.BookingID)
		if err != nil {
			return err
		}

		if d.Status == DepositFinished || b.Stage >= StageGraded {
			return transitionError(b, StageGraded.String(), generic.ErrAlreadyInState)
		}
		if err := requireAccepted(b, StageGraded.String()); err != nil {
			return err
		}
		if b.Stage != StageDeposited {
			return transitionError(b, StageGraded.String(), generic.ErrPreconditionFailed)
		}

		window := generic.DateRange{From: d.DepositDate, To: b.Dates.To}
		if !window.Contains(cmd.GradeDate) {
			return &generic.OutOfWindowError{What: "grade date", Date: cmd.GradeDate, Window: window}
		}

		grade := &GradeDetails{
			Grade:          strings.TrimSpace(cmd.Grade),
			ForeignMatter:  cmd.ForeignMatter,
			OtherFoodGrain: cmd.OtherFoodGrain,
			Other:          cmd.Other,
			DamagedGrain:   cmd.DamagedGrain,
			ImmatureGrain:  cmd.ImmatureGrain,
			WeevilledGrain: cmd.WeevilledGrain,
			AssignerName:   cmd.AssignerName,
			GradeDate:      cmd.GradeDate,
			GradedBy:       actor.UserID,
		}
		now := s.now()

		d.Grade = grade
		d.Status = DepositFinished
		d.UpdatedAt = now
		if err := tx.SaveDeposit(ctx, d); err != nil {
			return err
		}

		copied := *grade
		b.Stage = StageGraded
		b.Grade = &copied
		b.DepositExpiry = d.ExpiryDate
		b.UpdatedAt = now
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditGradeAdded, b, map[string]any{
			"deposit_id": d.ID,
			"grade":      grade.Grade,
			"grade_date": cmd.GradeDate.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("booking_no", b.BookingNo).Str("grade", d.Grade.Grade).Msg("deposit graded")
	s.notify(ctx, Notification{
		UserID:   b.UserID,
		Message:  fmt.Sprintf("Your deposit for booking %s has been graded %s", b.BookingNo, d.Grade.Grade),
		Type:     NotifySuccess,
		Metadata: map[string]string{"booking_id": string(b.ID), "deposit_id": d.ID},
	})
	return d, nil
}

// gradeRank orders grade-I first and ungraded deposits last.
func gradeRank(d *Deposit) int {
	if d.Grade == nil {
		return 4
	}
	switch strings.ToLower(d.Grade.Grade) {
	case strings.ToLower(GradeI):
		return 0
	case strings.ToLower(GradeII):
		return 1
	case strings.ToLower(GradeIII):
		return 2
	}
	return 3
}

// SearchDeposits lists the deposits visible to actor, best grade first.
func (s *Service) SearchDeposits(ctx context.Context, actor Identity, filter DepositFilter) ([]Deposit, error) {
	deposits, err := s.Store.ListDeposits(ctx, filter)
	if err != nil {
		return nil, err
	}

	if actor.Role != RoleAdmin {
		visible := deposits[:0]
		warehouses := make(map[generic.WarehouseID]*Warehouse)
		for i := range deposits {
			d := &deposits[i]
			w, ok := warehouses[d.WarehouseID]
			if !ok {
				if w, err = s.Store.GetWarehouse(ctx, d.WarehouseID); err != nil {
					return nil, err
				}
				warehouses[d.WarehouseID] = w
			}
			if w != nil && authorizeStaff(actor, w) == nil {
				visible = append(visible, *d)
				continue
			}
			b, err := s.Store.GetBooking(ctx, d.BookingID)
			if err != nil {
				return nil, err
			}
			if b != nil && b.UserID == actor.UserID && actor.UserID != "" {
				visible = append(visible, *d)
			}
		}
		deposits = visible
	}

	sort.SliceStable(deposits, func(i, j int) bool {
		ri, rj := gradeRank(&deposits[i]), gradeRank(&deposits[j])
		if ri != rj {
			return ri < rj
		}
		return deposits[i].DepositDate.Before(deposits[j].DepositDate)
	})
	return deposits, nil
}
