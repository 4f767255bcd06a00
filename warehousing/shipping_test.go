package warehousing_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

func shipCmd(b *warehousing.Booking, mode warehousing.WithdrawalMode, qty string) warehousing.AddShippingCommand {
	return warehousing.AddShippingCommand{
		BookingID:   b.ID,
		WarehouseID: b.WarehouseID,
		Mode:        mode,
		Lines:       []warehousing.ShipmentLine{{ItemName: "Wheat", Quantity: dec(qty)}},
		TotalBags:   20,
		TruckNumber: "MH15-CD-9876",
	}
}

// =============================================================================
// CAPACITY RELEASE
// =============================================================================

func TestAddShipping_ReleasesProportionally(t *testing.T) {
	// GIVEN: 100 MT committed, 80 MT actually weighed in and graded
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	require.True(t, f.remaining(t).Equal(dec("900")))

	// WHEN: A quarter of the goods leave
	first, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "20"))

	// THEN: A quarter of the commitment comes back
	require.NoError(t, err)
	assert.Equal(t, "BK-0001.1", first.ID)
	assert.Equal(t, warehousing.ShipmentInTransit, first.Status)
	assert.True(t, first.Quantity.Value.Equal(dec("20")))
	assert.True(t, first.ReleasedCapacity.Value.Equal(dec("25")), first.ReleasedCapacity.String())
	assert.True(t, f.remaining(t).Equal(dec("925")))

	got := f.booking(t, b.ID)
	assert.Equal(t, warehousing.StagePartiallyWithdrawn, got.Stage)
	assert.True(t, got.TotalWeight.Value.Equal(dec("60")))
	assert.True(t, got.Flags().ItemInWarehouse)

	// WHEN: The rest leaves in full
	second, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawFull, "60"))

	// THEN: Everything outstanding is released and the booking is empty
	require.NoError(t, err)
	assert.Equal(t, "BK-0001.2", second.ID)
	assert.True(t, second.ReleasedCapacity.Value.Equal(dec("75")))
	assert.True(t, f.remaining(t).Equal(dec("1000")))

	got = f.booking(t, b.ID)
	assert.Equal(t, warehousing.StageWithdrawn, got.Stage)
	assert.True(t, got.TotalWeight.IsZero())
	assert.True(t, got.Outstanding().IsZero())
	assert.False(t, got.Flags().ItemInWarehouse)

	shipments, err := f.svc.ListShipments(f.ctx, farmer, b.ID)
	require.NoError(t, err)
	assert.Len(t, shipments, 2)

	_, err = f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "1"))
	assert.ErrorIs(t, err, generic.ErrAlreadyInState)
}

func TestAddShipping_FirstFullShipmentUsesBookingNo(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "130", "30")

	sh, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawFull, "100"))

	require.NoError(t, err)
	assert.Equal(t, "BK-0001", sh.ID)
	assert.True(t, sh.ReleasedCapacity.Value.Equal(dec("100")))
	assert.Equal(t, warehousing.StageWithdrawn, f.booking(t, b.ID).Stage)
}

func TestAddShipping_ReplayedMovementsMatchWarehouse(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	_, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "30"))
	require.NoError(t, err)
	f.accepted(t, "200")

	replayed, err := generic.NewCapacityLedger(f.store).FilledFromHistory(f.ctx, "wh-1", generic.UnitMT)

	require.NoError(t, err)
	w, err := f.svc.GetWarehouse(f.ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, replayed.Equal(w.Capacity.Filled), "%s vs %s", replayed, w.Capacity.Filled)
}

// =============================================================================
// GUARDS
// =============================================================================

func TestAddShipping_InsufficientWeight(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")

	_, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "80.01"))

	assert.ErrorIs(t, err, generic.ErrInsufficientWeight)
	var iw *generic.InsufficientWeightError
	require.ErrorAs(t, err, &iw)
	assert.True(t, iw.Available.Value.Equal(dec("80")))
	assert.True(t, f.remaining(t).Equal(dec("900")))
}

func TestAddShipping_RequiresGrading(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")

	_, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "10"))

	assert.ErrorIs(t, err, generic.ErrPreconditionFailed)
}

func TestAddShipping_WrongWarehouse(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	cmd := shipCmd(b, warehousing.WithdrawPartial, "10")
	cmd.WarehouseID = "wh-2"

	_, err := f.svc.AddShipping(f.ctx, manager, cmd)

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestAddShipping_CustomerCannotShip(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")

	_, err := f.svc.AddShipping(f.ctx, farmer, shipCmd(b, warehousing.WithdrawPartial, "10"))

	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestAddShipping_LateFee(t *testing.T) {
	// GIVEN: A graded booking that ended on 2026-03-11
	f := newFixture(t)
	b := f.graded(t, "110", "30")

	// WHEN: Goods leave the day after
	f.setToday(t, "2026-03-12")
	sh, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "10"))

	// THEN: The late fee is charged on the booking
	require.NoError(t, err)
	assert.True(t, sh.LateFee.Equal(dec("1000")))
	got := f.booking(t, b.ID)
	assert.True(t, got.TotalPrice.Equal(dec("1250")))
	assert.True(t, got.PendingPrice.Equal(dec("1250")))
}

func TestAddShipping_OnTimeHasNoLateFee(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	f.setToday(t, "2026-03-11")

	sh, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "10"))

	require.NoError(t, err)
	assert.True(t, sh.LateFee.IsZero())
	assert.True(t, f.booking(t, b.ID).TotalPrice.Equal(dec("250")))
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestAddShipping_ClassifierMustAgree(t *testing.T) {
	tests := []struct {
		name string
		seen warehousing.Classification
		err  error
		want error
	}{
		{"agrees", warehousing.Classification{SacksCount: 20, Commodity: "wheat"}, nil, nil},
		{"sack count differs", warehousing.Classification{SacksCount: 18, Commodity: "Wheat"}, nil, generic.ErrValidation},
		{"commodity differs", warehousing.Classification{SacksCount: 20, Commodity: "Rice"}, nil, generic.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.graded(t, "110", "30")
			c := &mockClassifier{}
			c.On("Classify", mock.Anything, string(b.ID)).Return(tt.seen, tt.err)
			f.svc.Classifier = c

			_, err := f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "10"))

			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
				assert.Equal(t, warehousing.StageGraded, f.booking(t, b.ID).Stage)
			}
			c.AssertExpectations(t)
		})
	}
}

func TestAddShipping_ClassifierFailureBlocksShipment(t *testing.T) {
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	wid, err := f.svc.AllocateWithdrawalID(f.ctx, farmer, b.ID)
	require.NoError(t, err)

	boom := errors.New("classifier unavailable")
	c := &mockClassifier{}
	c.On("Classify", mock.Anything, wid).Return(warehousing.Classification{}, boom)
	f.svc.Classifier = c

	_, err = f.svc.AddShipping(f.ctx, manager, shipCmd(b, warehousing.WithdrawPartial, "10"))

	assert.ErrorIs(t, err, boom)
	c.AssertExpectations(t)
	assert.True(t, f.remaining(t).Equal(dec("900")))
}

func TestAddShipping_OutsidersNeverReachTheClassifier(t *testing.T) {
	// GIVEN: A graded booking and a classifier
	f := newFixture(t)
	b := f.graded(t, "110", "30")
	c := &mockClassifier{}
	f.svc.Classifier = c

	// WHEN: Someone who is not staff of wh-1 tries to ship
	for _, actor := range []warehousing.Identity{trader, farmer, {UserID: "owner-2", Role: warehousing.RoleOwner}} {
		_, err := f.svc.AddShipping(f.ctx, actor, shipCmd(b, warehousing.WithdrawPartial, "10"))

		// THEN: They are refused before any classifier call
		assert.ErrorIs(t, err, generic.ErrForbidden, actor.UserID)
	}
	c.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

// =============================================================================
// WITHDRAWAL ID
// =============================================================================

func TestAllocateWithdrawalID_Idempotent(t *testing.T) {
	f := newFixture(t)
	b, _ := f.deposited(t, "110", "30")

	first, err := f.svc.AllocateWithdrawalID(f.ctx, farmer, b.ID)
	require.NoError(t, err)
	again, err := f.svc.AllocateWithdrawalID(f.ctx, owner, b.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, again)
	got := f.booking(t, b.ID)
	assert.Equal(t, first, got.WithdrawalID)
	assert.Equal(t, warehousing.StageDeposited, got.Stage)
}

func TestAllocateWithdrawalID_NeedsGoodsInWarehouse(t *testing.T) {
	f := newFixture(t)
	b := f.accepted(t, "100")
	f.weigh(t, b, "110", "30", "2026-03-02")

	_, err := f.svc.AllocateWithdrawalID(f.ctx, farmer, b.ID)
	assert.ErrorIs(t, err, generic.ErrPreconditionFailed)

	_, err = f.svc.AllocateWithdrawalID(f.ctx, trader, b.ID)
	assert.ErrorIs(t, err, generic.ErrForbidden)
}
