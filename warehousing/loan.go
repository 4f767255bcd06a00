/*
loan.go - Loan sub-ledger

PURPOSE:
  A customer pledges the goods of a booking to a lender. Many lenders may be
  asked, but at most one loan per booking is ever live.

STATES:

  requested ──▶ approved ──▶ active ──▶ closed
      │            │
      ├──▶ rejected◀┘
      └──▶ terminated   (a sibling was approved)

RULES:
  - One application per (booking, pledge); pledge names are compared
    lower-cased and trimmed
  - No application while another loan on the booking is approved or active
  - Approving a loan marks every sibling terminated in the same
    transaction. Requested siblings also change status; rejected and
    closed ones keep theirs
  - total = round2(amount + amount × rate / 100)
*/
package warehousing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// NormalizePledge is the canonical form of a lender's identity.
func NormalizePledge(pledge string) string {
	return strings.ToLower(strings.TrimSpace(pledge))
}

var hundred = decimal.NewFromInt(100)

// LoanTotal is the amount plus simple interest, rounded to two places.
func LoanTotal(amount, rate decimal.Decimal) decimal.Decimal {
	return generic.Round2(amount.Add(amount.Mul(rate).Div(hundred)))
}

func loadLoan(ctx context.Context, st Store, id string) (*Loan, error) {
	l, err := st.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, generic.NewNotFoundError("loan", id)
	}
	return l, nil
}

func loanTransitionError(l *Loan, to LoanStatus, err error) error {
	return &generic.TransitionError{Entity: "loan", ID: l.ID, From: string(l.Status), To: string(to), Err: err}
}

// authorizeLender admits admins and the pledge the loan was addressed to.
func authorizeLender(actor Identity, l *Loan) error {
	if err := authorize(actor, lenderRoles...); err != nil {
		return err
	}
	if actor.Role == RolePledge && NormalizePledge(actor.UserID) != l.Pledge {
		return fmt.Errorf("%w: loan %s is addressed to another lender", generic.ErrForbidden, l.ID)
	}
	return nil
}

// =============================================================================
// APPLY
// =============================================================================

type ApplyForLoanCommand struct {
	BookingID    generic.BookingID
	Pledge       string
	Amount       decimal.Decimal
	InterestRate decimal.Decimal
	LoanType     string
	LoanTerm     string
}

func (cmd ApplyForLoanCommand) validate() error {
	if cmd.BookingID == "" {
		return generic.NewValidationError("booking_id", "is required")
	}
	if NormalizePledge(cmd.Pledge) == "" {
		return generic.NewValidationError("pledge", "is required")
	}
	if !cmd.Amount.IsPositive() {
		return generic.NewValidationError("amount", "must be positive")
	}
	if cmd.InterestRate.IsNegative() {
		return generic.NewValidationError("interest_rate", "must not be negative")
	}
	return nil
}

func (s *Service) ApplyForLoan(ctx context.Context, actor Identity, cmd ApplyForLoanCommand) (*Loan, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	pledge := NormalizePledge(cmd.Pledge)

	var l *Loan
	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		b, err = loadBooking(ctx, tx, cmd.BookingID)
		if err != nil {
			return err
		}
		if actor.UserID == "" || (actor.UserID != b.UserID && actor.Role != RoleAdmin) {
			return fmt.Errorf("%w: only the booking's customer may pledge it", generic.ErrForbidden)
		}
		if err := requireAccepted(b, "loan"); err != nil {
			return err
		}
		if !b.Flags().Deposited || !b.Flags().ItemInWarehouse {
			return transitionError(b, "loan", fmt.Errorf("%w: goods are not in the warehouse", generic.ErrPreconditionFailed))
		}

		siblings, err := tx.ListLoans(ctx, LoanFilter{BookingID: b.ID})
		if err != nil {
			return err
		}
		for i := range siblings {
			if siblings[i].Pledge == pledge {
				return fmt.Errorf("%w: %s already has an application from %s",
					generic.ErrDuplicateApplication, b.BookingNo, pledge)
			}
		}
		for i := range siblings {
			if siblings[i].Status.Locks() {
				return fmt.Errorf("%w: loan %s is %s", generic.ErrBookingLocked, siblings[i].ID, siblings[i].Status)
			}
		}

		id, err := s.uniqueID(ctx, s.IDs.LoanID, tx.LoanExists)
		if err != nil {
			return err
		}
		now := s.now()
		l = &Loan{
			ID:           id,
			BookingID:    b.ID,
			WarehouseID:  b.WarehouseID,
			ApplicantID:  actor.UserID,
			Pledge:       pledge,
			Amount:       cmd.Amount,
			InterestRate: cmd.InterestRate,
			TotalAmount:  LoanTotal(cmd.Amount, cmd.InterestRate),
			LoanType:     cmd.LoanType,
			LoanTerm:     cmd.LoanTerm,
			Status:       LoanRequested,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditLoanApplied, b, map[string]any{
			"loan_id": l.ID,
			"pledge":  pledge,
			"amount":  l.Amount.String(),
			"total":   l.TotalAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("loan_id", l.ID).Str("booking_no", b.BookingNo).Str("pledge", pledge).Msg("loan applied")
	s.notify(ctx, Notification{
		UserID:   pledge,
		Message:  fmt.Sprintf("New loan application %s for booking %s", l.ID, b.BookingNo),
		Type:     NotifyInfo,
		Metadata: map[string]string{"loan_id": l.ID},
	})
	return l, nil
}

// =============================================================================
// DECIDE
// =============================================================================

// AcceptLoan approves a requested loan on the given terms. A zero amount or
// rate falls back to the applied value. Every other loan on the booking is
// marked terminated; requested ones also move to the terminated status.
func (s *Service) AcceptLoan(ctx context.Context, actor Identity, loanID string, terms LoanTerms) (*Loan, error) {
	if terms.Amount.IsNegative() || terms.InterestRate.IsNegative() {
		return nil, generic.NewValidationError("terms", "amount and rate must not be negative")
	}

	var l *Loan
	var terminated int
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		l, err = loadLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := authorizeLender(actor, l); err != nil {
			return err
		}

		switch l.Status {
		case LoanRequested:
		case LoanApproved, LoanActive, LoanClosed:
			return loanTransitionError(l, LoanApproved, generic.ErrAlreadyInState)
		default:
			return loanTransitionError(l, LoanApproved, generic.ErrPreconditionFailed)
		}

		siblings, err := tx.ListLoans(ctx, LoanFilter{BookingID: l.BookingID})
		if err != nil {
			return err
		}
		for i := range siblings {
			if siblings[i].ID != l.ID && siblings[i].Status.Locks() {
				return loanTransitionError(l, LoanApproved, generic.ErrBookingLocked)
			}
		}

		if terms.Amount.IsZero() {
			terms.Amount = l.Amount
		}
		if terms.InterestRate.IsZero() {
			terms.InterestRate = l.InterestRate
		}
		now := s.now()
		l.Status = LoanApproved
		l.AcceptedTerms = &terms
		l.Amount = terms.Amount
		l.InterestRate = terms.InterestRate
		l.TotalAmount = LoanTotal(terms.Amount, terms.InterestRate)
		l.DecidedBy = actor.UserID
		l.UpdatedAt = now
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}

		for i := range siblings {
			sib := &siblings[i]
			if sib.ID == l.ID || sib.Terminated {
				continue
			}
			sib.Terminated = true
			if sib.Status == LoanRequested {
				sib.Status = LoanTerminated
			}
			sib.UpdatedAt = now
			if err := tx.SaveLoan(ctx, sib); err != nil {
				return err
			}
			terminated++
		}

		b, err := loadBooking(ctx, tx, l.BookingID)
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditLoanAccepted, b, map[string]any{
			"loan_id":    l.ID,
			"total":      l.TotalAmount.String(),
			"terminated": terminated,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("loan_id", l.ID).Int("terminated", terminated).Msg("loan approved")
	s.notify(ctx, Notification{
		UserID:   l.ApplicantID,
		Message:  fmt.Sprintf("Your loan %s has been approved", l.ID),
		Type:     NotifySuccess,
		Metadata: map[string]string{"loan_id": l.ID},
	})
	return l, nil
}

func (s *Service) RejectLoan(ctx context.Context, actor Identity, loanID, reason string) (*Loan, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, generic.NewValidationError("reason", "is required")
	}

	var l *Loan
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		l, err = loadLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := authorizeLender(actor, l); err != nil {
			return err
		}
		switch l.Status {
		case LoanRequested, LoanApproved:
		case LoanRejected:
			return loanTransitionError(l, LoanRejected, generic.ErrAlreadyInState)
		default:
			return loanTransitionError(l, LoanRejected, generic.ErrPreconditionFailed)
		}

		l.Status = LoanRejected
		l.RejectionReason = reason
		l.DecidedBy = actor.UserID
		l.UpdatedAt = s.now()
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}
		b, err := loadBooking(ctx, tx, l.BookingID)
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditLoanRejected, b, map[string]any{"loan_id": l.ID, "reason": reason})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, Notification{
		UserID:   l.ApplicantID,
		Message:  fmt.Sprintf("Your loan %s has been rejected: %s", l.ID, reason),
		Type:     NotifyWarning,
		Metadata: map[string]string{"loan_id": l.ID},
	})
	return l, nil
}

// =============================================================================
// DISBURSE / CLOSE
// =============================================================================

type DisburseLoanCommand struct {
	DisbursementDate generic.TimePoint // defaults to today
	MaturityDate     generic.TimePoint
}

func (s *Service) DisburseLoan(ctx context.Context, actor Identity, loanID string, cmd DisburseLoanCommand) (*Loan, error) {
	if cmd.DisbursementDate.IsZero() {
		cmd.DisbursementDate = s.today()
	}
	if !cmd.MaturityDate.IsZero() && cmd.MaturityDate.Before(cmd.DisbursementDate) {
		return nil, generic.NewValidationError("maturity_date", "must not be before the disbursement date")
	}
	return s.moveLoan(ctx, actor, loanID, LoanApproved, LoanActive, generic.AuditLoanDisbursed, func(l *Loan) {
		l.DisbursementDate = cmd.DisbursementDate
		l.MaturityDate = cmd.MaturityDate
	})
}

// CloseLoan marks a running loan as repaid. A closed loan no longer locks the
// booking.
func (s *Service) CloseLoan(ctx context.Context, actor Identity, loanID string) (*Loan, error) {
	return s.moveLoan(ctx, actor, loanID, LoanActive, LoanClosed, generic.AuditLoanClosed, nil)
}

func (s *Service) moveLoan(ctx context.Context, actor Identity, loanID string, from, to LoanStatus, action generic.AuditAction, apply func(*Loan)) (*Loan, error) {
	var l *Loan
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		l, err = loadLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := authorizeLender(actor, l); err != nil {
			return err
		}
		if l.Status == to {
			return loanTransitionError(l, to, generic.ErrAlreadyInState)
		}
		if l.Status != from {
			return loanTransitionError(l, to, generic.ErrPreconditionFailed)
		}
		l.Status = to
		if apply != nil {
			apply(l)
		}
		l.UpdatedAt = s.now()
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}
		b, err := loadBooking(ctx, tx, l.BookingID)
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, action, b, map[string]any{"loan_id": l.ID})
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("loan_id", l.ID).Str("status", string(to)).Msg("loan updated")
	return l, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// ListLoans scopes pledges to the loans addressed to them; everyone else but
// admins must name a booking they may see.
func (s *Service) ListLoans(ctx context.Context, actor Identity, filter LoanFilter) ([]Loan, error) {
	switch actor.Role {
	case RoleAdmin:
	case RolePledge:
		filter.Pledge = actor.UserID
	default:
		if filter.BookingID == "" {
			return nil, generic.NewValidationError("booking_id", "is required")
		}
		if _, err := s.GetBooking(ctx, actor, filter.BookingID); err != nil {
			return nil, err
		}
	}
	return s.Store.ListLoans(ctx, filter)
}
