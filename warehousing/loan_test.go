package warehousing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

func loanCmd(b *warehousing.Booking, pledge string) warehousing.ApplyForLoanCommand {
	return warehousing.ApplyForLoanCommand{
		BookingID:    b.ID,
		Pledge:       pledge,
		Amount:       dec("10000"),
		InterestRate: dec("12"),
		LoanType:     "warehouse receipt",
		LoanTerm:     "6 months",
	}
}

func TestLoanTotal(t *testing.T) {
	tests := []struct {
		amount, rate, want string
	}{
		{"10000", "12", "11200"},
		{"1000", "8.5", "1085"},
		{"333.33", "7.25", "357.50"},
		{"500", "0", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"@"+tt.rate, func(t *testing.T) {
			got := warehousing.LoanTotal(dec(tt.amount), dec(tt.rate))
			assert.True(t, got.Equal(dec(tt.want)), got.String())
		})
	}
}

func TestNormalizePledge(t *testing.T) {
	assert.Equal(t, "sbi", warehousing.NormalizePledge("  SBI "))
	assert.Equal(t, "", warehousing.NormalizePledge("   "))
}

// =============================================================================
// APPLY
// =============================================================================

func TestApplyForLoan_OnDepositedGoods(t *testing.T) {
	// GIVEN: Goods deposited in the warehouse
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")

	// WHEN: The farmer asks SBI for a loan, spelled loosely
	l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, " SBI "))

	// THEN: The application is requested with interest included
	require.NoError(t, err)
	assert.Equal(t, "LN-1", l.ID)
	assert.Equal(t, "sbi", l.Pledge)
	assert.Equal(t, warehousing.LoanRequested, l.Status)
	assert.True(t, l.TotalAmount.Equal(dec("11200")))
	assert.True(t, l.Flags().Requested)
	assert.False(t, l.Flags().Approved)
	f.notifier.AssertCalled(t, "Notify", f.ctx, sentTo("sbi"))
}

func TestApplyForLoan_Preconditions(t *testing.T) {
	f := newFixture(t)
	weighed := f.accepted(t, "100")
	f.weigh(t, weighed, "110", "30", "2026-03-02")
	deposited, _ := f.deposited(t, "110", "30")

	_, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(weighed, "sbi"))
	assert.ErrorIs(t, err, generic.ErrPreconditionFailed, "not deposited")

	_, err = f.svc.ApplyForLoan(f.ctx, trader, loanCmd(deposited, "sbi"))
	assert.ErrorIs(t, err, generic.ErrForbidden, "not the customer")

	_, err = f.svc.ApplyForLoan(f.ctx, owner, loanCmd(deposited, "sbi"))
	assert.ErrorIs(t, err, generic.ErrForbidden, "owner cannot pledge customer goods")

	bad := loanCmd(deposited, "sbi")
	bad.Amount = dec("0")
	_, err = f.svc.ApplyForLoan(f.ctx, farmer, bad)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.svc.ApplyForLoan(f.ctx, admin, loanCmd(deposited, "sbi"))
	assert.NoError(t, err, "admin may apply on behalf of the customer")
}

func TestApplyForLoan_DuplicatePledge(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	_, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)

	_, err = f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "SBI"))

	assert.ErrorIs(t, err, generic.ErrDuplicateApplication)
}

func TestApplyForLoan_LockedByApprovedLoan(t *testing.T) {
	// GIVEN: A booking with an approved loan
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)
	_, err = f.svc.AcceptLoan(f.ctx, sbi, l.ID, warehousing.LoanTerms{})
	require.NoError(t, err)

	// WHEN: Another lender is asked
	_, err = f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "axis"))

	// THEN: The booking is locked
	assert.ErrorIs(t, err, generic.ErrBookingLocked)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestAcceptLoan_TerminatesSiblings(t *testing.T) {
	// GIVEN: Three lenders asked for the same booking
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	fromSBI, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)
	fromHDFC, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "hdfc"))
	require.NoError(t, err)
	fromAxis, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "axis"))
	require.NoError(t, err)
	_, err = f.svc.RejectLoan(f.ctx, admin, fromAxis.ID, "insufficient collateral")
	require.NoError(t, err)

	// WHEN: SBI approves with its own terms
	approved, err := f.svc.AcceptLoan(f.ctx, sbi, fromSBI.ID, warehousing.LoanTerms{
		Amount:         dec("8000"),
		InterestRate:   dec("10"),
		RepaymentTerms: "bullet",
	})

	// THEN: SBI's loan carries the accepted terms and every sibling is
	// terminated
	require.NoError(t, err)
	assert.Equal(t, warehousing.LoanApproved, approved.Status)
	assert.False(t, approved.Flags().Terminated)
	assert.True(t, approved.TotalAmount.Equal(dec("8800")))
	require.NotNil(t, approved.AcceptedTerms)
	assert.Equal(t, "bullet", approved.AcceptedTerms.RepaymentTerms)

	all, err := f.svc.ListLoans(f.ctx, admin, warehousing.LoanFilter{BookingID: b.ID})
	require.NoError(t, err)
	byID := make(map[string]warehousing.Loan)
	for _, l := range all {
		byID[l.ID] = l
	}
	hdfcLoan, axisLoan := byID[fromHDFC.ID], byID[fromAxis.ID]
	assert.Equal(t, warehousing.LoanTerminated, hdfcLoan.Status)
	assert.True(t, hdfcLoan.Flags().Terminated)

	// The rejected sibling keeps its rejection and is terminated as well
	assert.Equal(t, warehousing.LoanRejected, axisLoan.Status)
	assert.Equal(t, "insufficient collateral", axisLoan.RejectionReason)
	assert.True(t, axisLoan.Flags().Rejected)
	assert.True(t, axisLoan.Flags().Terminated)
}

func TestAcceptLoan_ClosedSiblingIsTerminated(t *testing.T) {
	// GIVEN: An SBI loan that was repaid and a new application to HDFC
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	fromSBI, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)
	_, err = f.svc.AcceptLoan(f.ctx, sbi, fromSBI.ID, warehousing.LoanTerms{})
	require.NoError(t, err)
	_, err = f.svc.DisburseLoan(f.ctx, sbi, fromSBI.ID, warehousing.DisburseLoanCommand{})
	require.NoError(t, err)
	_, err = f.svc.CloseLoan(f.ctx, sbi, fromSBI.ID)
	require.NoError(t, err)
	fromHDFC, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "hdfc"))
	require.NoError(t, err)

	// WHEN: HDFC approves
	_, err = f.svc.AcceptLoan(f.ctx, hdfc, fromHDFC.ID, warehousing.LoanTerms{})

	// THEN: The closed loan stays closed and carries the terminated flag
	require.NoError(t, err)
	loans, err := f.svc.ListLoans(f.ctx, sbi, warehousing.LoanFilter{})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, warehousing.LoanClosed, loans[0].Status)
	assert.True(t, loans[0].Flags().Closed)
	assert.True(t, loans[0].Flags().Terminated)
}

func TestAcceptLoan_PartialTermsKeepTheAppliedValues(t *testing.T) {
	tests := []struct {
		name      string
		terms     warehousing.LoanTerms
		wantRate  string
		wantTotal string
	}{
		{"amount only", warehousing.LoanTerms{Amount: dec("8000")}, "12", "8960"},
		{"rate only", warehousing.LoanTerms{InterestRate: dec("10")}, "10", "11000"},
		{"neither", warehousing.LoanTerms{}, "12", "11200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: A loan applied for 10000 at 12%
			f := newFixture(t)
			b, _ := f.deposited(t, "110", "30")
			l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
			require.NoError(t, err)

			// WHEN: The lender sends only some of the terms
			got, err := f.svc.AcceptLoan(f.ctx, sbi, l.ID, tt.terms)

			// THEN: The missing ones come from the application
			require.NoError(t, err)
			assert.True(t, got.InterestRate.Equal(dec(tt.wantRate)), got.InterestRate.String())
			assert.True(t, got.TotalAmount.Equal(dec(tt.wantTotal)), got.TotalAmount.String())
			assert.True(t, got.AcceptedTerms.InterestRate.Equal(dec(tt.wantRate)))
		})
	}
}

func TestAcceptLoan_OtherLenderIsForbidden(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)

	_, err = f.svc.AcceptLoan(f.ctx, hdfc, l.ID, warehousing.LoanTerms{})
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = f.svc.AcceptLoan(f.ctx, farmer, l.ID, warehousing.LoanTerms{})
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestAcceptLoan_Twice(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)
	_, err = f.svc.AcceptLoan(f.ctx, sbi, l.ID, warehousing.LoanTerms{})
	require.NoError(t, err)

	_, err = f.svc.AcceptLoan(f.ctx, sbi, l.ID, warehousing.LoanTerms{})

	assert.ErrorIs(t, err, generic.ErrAlreadyInState)
}

func TestRejectLoan(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)

	_, err = f.svc.RejectLoan(f.ctx, sbi, l.ID, "")
	assert.ErrorIs(t, err, generic.ErrValidation)

	rejected, err := f.svc.RejectLoan(f.ctx, sbi, l.ID, "low grade")
	require.NoError(t, err)
	assert.Equal(t, warehousing.LoanRejected, rejected.Status)
	assert.Equal(t, "low grade", rejected.RejectionReason)
	assert.True(t, rejected.Flags().Rejected)
	assert.False(t, rejected.Flags().Approved)

	_, err = f.svc.RejectLoan(f.ctx, sbi, l.ID, "low grade")
	assert.ErrorIs(t, err, generic.ErrAlreadyInState)

	// A rejected loan does not lock the booking
	_, err = f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "hdfc"))
	assert.NoError(t, err)
}

// =============================================================================
// DISBURSE / CLOSE
// =============================================================================

func TestLoan_DisburseAndClose(t *testing.T) {
	// GIVEN: An approved loan
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	l, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)

	_, err = f.svc.DisburseLoan(f.ctx, sbi, l.ID, warehousing.DisburseLoanCommand{})
	assert.ErrorIs(t, err, generic.ErrPreconditionFailed, "not approved yet")

	_, err = f.svc.AcceptLoan(f.ctx, sbi, l.ID, warehousing.LoanTerms{})
	require.NoError(t, err)

	// WHEN: It is disbursed and later repaid
	active, err := f.svc.DisburseLoan(f.ctx, sbi, l.ID, warehousing.DisburseLoanCommand{
		MaturityDate: day("2026-09-01"),
	})
	require.NoError(t, err)
	closed, err := f.svc.CloseLoan(f.ctx, sbi, l.ID)
	require.NoError(t, err)

	// THEN: The loan walks through active to closed
	assert.Equal(t, warehousing.LoanActive, active.Status)
	assert.Equal(t, "2026-03-01", active.DisbursementDate.String())
	assert.Equal(t, "2026-09-01", active.MaturityDate.String())
	assert.Equal(t, warehousing.LoanClosed, closed.Status)
	assert.True(t, closed.Flags().Disbursed)

	_, err = f.svc.CloseLoan(f.ctx, sbi, l.ID)
	assert.ErrorIs(t, err, generic.ErrAlreadyInState)

	// AND: A closed loan frees the booking for a new lender
	_, err = f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "hdfc"))
	assert.NoError(t, err)
}

func TestDisburseLoan_MaturityBeforeDisbursement(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DisburseLoan(f.ctx, sbi, "LN-1", warehousing.DisburseLoanCommand{
		DisbursementDate: day("2026-03-10"),
		MaturityDate:     day("2026-03-01"),
	})

	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestListLoans_Scoping(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")
	_, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "sbi"))
	require.NoError(t, err)
	_, err = f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "hdfc"))
	require.NoError(t, err)

	mine, err := f.svc.ListLoans(f.ctx, sbi, warehousing.LoanFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "sbi", mine[0].Pledge)

	byCustomer, err := f.svc.ListLoans(f.ctx, farmer, warehousing.LoanFilter{BookingID: b.ID})
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)

	_, err = f.svc.ListLoans(f.ctx, farmer, warehousing.LoanFilter{})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.svc.ListLoans(f.ctx, trader, warehousing.LoanFilter{BookingID: b.ID})
	assert.ErrorIs(t, err, generic.ErrForbidden)
}
