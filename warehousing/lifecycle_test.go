/*
lifecycle_test.go - One booking from request to settled bill

THE STORY:
  A farmer books 100 MT of wheat storage. The owner accepts, the truck is
  weighed at 80 MT net, the goods are deposited and graded. The farmer
  pledges the goods to SBI, which approves and disburses. The loan is repaid,
  the goods leave in two shipments (the second one late) and the invoice
  and bills settle the account.

  Capacity must be back to 1000 MT at the end, and the movement history must
  replay to the stored fill at every step.
*/
package warehousing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

func (f *fixture) assertLedgerConsistent(t *testing.T) {
	t.Helper()
	w, err := f.svc.GetWarehouse(f.ctx, "wh-1")
	require.NoError(t, err)
	replayed, err := generic.NewCapacityLedger(f.store).FilledFromHistory(f.ctx, "wh-1", generic.UnitMT)
	require.NoError(t, err)
	assert.True(t, replayed.Equal(w.Capacity.Filled), "replayed %s, stored %s", replayed, w.Capacity.Filled)
	assert.NoError(t, w.Capacity.Validate())
}

func TestLifecycle_EndToEnd(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {

		// Booking
		b, err := f.svc.CreateBooking(f.ctx, farmer, bookingCmd("100"))
		require.NoError(t, err)
		_, err = f.svc.AcceptBooking(f.ctx, owner, b.ID)
		require.NoError(t, err)
		assert.True(t, f.remaining(t).Equal(dec("900")))
		f.assertLedgerConsistent(t)

		// Weighbridge, deposit, grading
		f.weigh(t, b, "110", "30", "2026-03-02")
		d := f.deposit(t, b, "2026-03-02")
		f.grade(t, d, warehousing.GradeI, "2026-03-04")
		require.Equal(t, warehousing.StageGraded, f.booking(t, b.ID).Stage)

		// Loan
		fromSBI, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "SBI"))
		require.NoError(t, err)
		fromHDFC, err := f.svc.ApplyForLoan(f.ctx, farmer, loanCmd(b, "hdfc"))
		require.NoError(t, err)
		_, err = f.svc.AcceptLoan(f.ctx, sbi, fromSBI.ID, warehousing.LoanTerms{})
		require.NoError(t, err)
		_, err = f.svc.DisburseLoan(f.ctx, sbi, fromSBI.ID, warehousing.DisburseLoanCommand{})
		require.NoError(t, err)
		_, err = f.svc.CloseLoan(f.ctx, sbi, fromSBI.ID)
		require.NoError(t, err)

		loans, err := f.svc.ListLoans(f.ctx, hdfc, warehousing.LoanFilter{})
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, fromHDFC.ID, loans[0].ID)
		assert.Equal(t, warehousing.LoanTerminated, loans[0].Status)

		// Withdrawal: half on time, the rest late
		_, err = f.svc.AllocateWithdrawalID(f.ctx, farmer, b.ID)
		require.NoError(t, err)
		f.setToday(t, "2026-03-08")
		first, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "40"))
		require.NoError(t, err)
		assert.True(t, first.ReleasedCapacity.Value.Equal(dec("50")))
		f.assertLedgerConsistent(t)

		f.setToday(t, "2026-03-15")
		last, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawFull, "40"))
		require.NoError(t, err)
		assert.True(t, last.LateFee.Equal(dec("1000")))
		assert.True(t, f.remaining(t).Equal(dec("1000")))
		f.assertLedgerConsistent(t)

		// Invoice and bills
		inv, err := f.svc.AddInvoice(f.ctx, owner, warehousing.AddInvoiceCommand{BookingID: b.ID})
		require.NoError(t, err)
		assert.True(t, inv.Amount.Equal(dec("1250")))

		_, err = f.svc.GenerateBill(f.ctx, farmer, warehousing.GenerateBillCommand{
			BookingID:      b.ID,
			PartialPayment: dec("1050"),
			ServiceCost:    dec("50"),
		})
		require.NoError(t, err)
		assert.True(t, f.booking(t, b.ID).PendingPrice.Equal(dec("250")))

		_, err = f.svc.MarkInvoicePaid(f.ctx, owner, inv.ID)
		require.NoError(t, err)

		// Final state
		got := f.booking(t, b.ID)
		assert.Equal(t, warehousing.BookingAccepted, got.Status)
		assert.Equal(t, warehousing.StageWithdrawn, got.Stage)
		assert.True(t, got.PendingPrice.IsZero())
		assert.True(t, got.Outstanding().IsZero())
		assert.Equal(t, warehousing.BookingFlags{
			WeighbridgeAdded: true,
			Deposited:        true,
			Graded:           true,
			Withdrawn:        true,
		}, got.Flags())

		trail, err := f.svc.AuditTrail(f.ctx, farmer, b.ID)
		require.NoError(t, err)
		var actions []generic.AuditAction
		for _, e := range trail {
			actions = append(actions, e.Action)
		}
		assert.Equal(t, []generic.AuditAction{
			generic.AuditBookingCreated,
			generic.AuditBookingAccepted,
			generic.AuditWeighbridgeAdded,
			generic.AuditDepositAdded,
			generic.AuditGradeAdded,
			generic.AuditLoanApplied,
			generic.AuditLoanApplied,
			generic.AuditLoanAccepted,
			generic.AuditLoanDisbursed,
			generic.AuditLoanClosed,
			generic.AuditWithdrawalIssued,
			generic.AuditShipmentAdded,
			generic.AuditShipmentAdded,
			generic.AuditInvoiceAdded,
			generic.AuditBillGenerated,
			generic.AuditInvoicePaid,
		}, actions)
	})
}

func TestLifecycle_FullWithdrawalEmptiesBooking(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// GIVEN: A pending 200 MT booking in a 1000 MT warehouse
		b := f.book(t, "200")
		require.Equal(t, warehousing.BookingPending, b.Status)
		require.True(t, f.remaining(t).Equal(dec("1000")))

		// WHEN: It is accepted, weighed at 205/5, deposited and graded
		_, err := f.svc.AcceptBooking(f.ctx, owner, b.ID)
		require.NoError(t, err)
		assert.True(t, f.remaining(t).Equal(dec("800")))

		wb := f.weigh(t, b, "205", "5", "2026-03-02")
		assert.True(t, wb.Net.Value.Equal(dec("200")))
		d := f.deposit(t, b, "2026-03-02")
		assert.True(t, f.booking(t, b.ID).Flags().Deposited)
		f.grade(t, d, warehousing.GradeII, "2026-03-05")
		assert.True(t, f.booking(t, b.ID).Flags().Graded)

		// AND: Everything leaves in one full shipment
		_, err = f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawFull, "200"))

		// THEN: The booking is withdrawn with no weight left and the space is back
		require.NoError(t, err)
		got := f.booking(t, b.ID)
		assert.True(t, got.Flags().Withdrawn)
		assert.True(t, got.TotalWeight.IsZero())
		assert.True(t, f.remaining(t).Equal(dec("1000")))
		f.assertLedgerConsistent(t)
	})
}
