package warehousing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

func reminderFor(userID, invoiceID string) any {
	return mock.MatchedBy(func(n warehousing.Notification) bool {
		return n.UserID == userID && n.Type == warehousing.NotifyWarning && n.Metadata["invoice_id"] == invoiceID
	})
}

// =============================================================================
// INVOICE
// =============================================================================

func TestAddInvoice_DefaultsToBookingPrice(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")

	inv, err := f.svc.AddInvoice(f.ctx, manager, warehousing.AddInvoiceCommand{BookingID: b.ID})

	require.NoError(t, err)
	assert.Equal(t, warehousing.KindInvoice, inv.Kind)
	assert.Equal(t, "IN-0001", inv.InvoiceNo)
	assert.Equal(t, "TRK-0001", inv.TrackingID)
	assert.True(t, inv.Amount.Equal(dec("250")))
	assert.True(t, inv.PendingPayment.Equal(dec("250")))
	assert.Equal(t, warehousing.InvoicePending, inv.Status)

	_, err = f.svc.AddInvoice(f.ctx, manager, warehousing.AddInvoiceCommand{BookingID: b.ID})
	assert.ErrorIs(t, err, generic.ErrAlreadyExists)
}

func TestAddInvoice_RequiresGrading(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")

	_, err := f.svc.AddInvoice(f.ctx, manager, warehousing.AddInvoiceCommand{BookingID: b.ID})
	assert.ErrorIs(t, err, generic.ErrPreconditionFailed)

	_, err = f.svc.AddInvoice(f.ctx, farmer, warehousing.AddInvoiceCommand{BookingID: b.ID})
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestMarkInvoicePaid_SettlesBooking(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	inv, err := f.svc.AddInvoice(f.ctx, manager, warehousing.AddInvoiceCommand{BookingID: b.ID})
	require.NoError(t, err)

	paid, err := f.svc.MarkInvoicePaid(f.ctx, owner, inv.ID)

	require.NoError(t, err)
	assert.Equal(t, warehousing.InvoicePaid, paid.Status)
	assert.True(t, paid.PendingPayment.IsZero())
	assert.True(t, f.booking(t, b.ID).PendingPrice.IsZero())

	_, err = f.svc.MarkInvoicePaid(f.ctx, owner, inv.ID)
	assert.ErrorIs(t, err, generic.ErrAlreadyInState)

	_, err = f.svc.RemindInvoice(f.ctx, owner, inv.ID)
	assert.ErrorIs(t, err, generic.ErrPreconditionFailed)
}

func TestRemindInvoice_NotifiesCustomer(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	inv, err := f.svc.AddInvoice(f.ctx, manager, warehousing.AddInvoiceCommand{BookingID: b.ID})
	require.NoError(t, err)

	_, err = f.svc.RemindInvoice(f.ctx, manager, inv.ID)

	require.NoError(t, err)
	f.notifier.AssertCalled(t, "Notify", f.ctx, reminderFor(farmer.UserID, inv.ID))

	_, err = f.svc.RemindInvoice(f.ctx, manager, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// BILL
// =============================================================================

func TestGenerateBill_ReducesPendingByNetPayment(t *testing.T) {
	// GIVEN: A graded booking with 250 pending
	f := newFixture(t)
	b := f.graded(t, "110", "30")

	// WHEN: The customer pays 150 of which 30 covers charges
	bill, err := f.svc.GenerateBill(f.ctx, farmer, warehousing.GenerateBillCommand{
		BookingID:      b.ID,
		PartialPayment: dec("150"),
		ServiceCost:    dec("20"),
		FumigationCost: dec("10"),
	})

	// THEN: 120 goes against the booking
	require.NoError(t, err)
	assert.Equal(t, warehousing.KindBill, bill.Kind)
	assert.True(t, bill.PendingPayment.Equal(dec("130")), bill.PendingPayment.String())
	assert.Equal(t, warehousing.InvoicePending, bill.Status)
	assert.True(t, f.booking(t, b.ID).PendingPrice.Equal(dec("130")))

	// WHEN: The remainder is paid
	last, err := f.svc.GenerateBill(f.ctx, farmer, warehousing.GenerateBillCommand{
		BookingID:      b.ID,
		PartialPayment: dec("130"),
	})

	// THEN: The bill is settled
	require.NoError(t, err)
	assert.True(t, last.PendingPayment.IsZero())
	assert.Equal(t, warehousing.InvoicePaid, last.Status)

	all, err := f.svc.ListInvoices(f.ctx, farmer, b.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGenerateBill_Rejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  warehousing.GenerateBillCommand
	}{
		{"negative cost", warehousing.GenerateBillCommand{PartialPayment: dec("10"), ServiceCost: dec("-1")}},
		{"above total price", warehousing.GenerateBillCommand{PartialPayment: dec("250.01")}},
		{"below other costs", warehousing.GenerateBillCommand{PartialPayment: dec("20"), ServiceCost: dec("15"), ExpiryMonitoringCost: dec("10")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.graded(t, "110", "30")
			tt.cmd.BookingID = b.ID

			_, err := f.svc.GenerateBill(f.ctx, farmer, tt.cmd)

			assert.ErrorIs(t, err, generic.ErrValidation)
			assert.True(t, f.booking(t, b.ID).PendingPrice.Equal(dec("250")))
		})
	}
}

func TestGenerateBill_CannotOverpay(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	_, err := f.svc.GenerateBill(f.ctx, farmer, warehousing.GenerateBillCommand{BookingID: b.ID, PartialPayment: dec("200")})
	require.NoError(t, err)

	_, err = f.svc.GenerateBill(f.ctx, farmer, warehousing.GenerateBillCommand{BookingID: b.ID, PartialPayment: dec("60")})

	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.True(t, f.booking(t, b.ID).PendingPrice.Equal(decimal.NewFromInt(50)))
}
