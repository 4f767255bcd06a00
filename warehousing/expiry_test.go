package warehousing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// EXPIRY SWEEP
// =============================================================================

func TestExpireBookings_ExpiresStaleBookings(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// GIVEN: An accepted booking, a pending one and a deposited one, all from
		// 2026-03-02
		accepted := f.accepted(t, "100")
		pending := f.book(t, "50")
		deposited, _ := f.deposited(t, "110", "30")
		require.True(t, f.remaining(t).Equal(dec("800")))

		// WHEN: The sweep runs on 2026-03-10, past from + 7 days
		f.setToday(t, "2026-03-10")
		res, err := f.svc.ExpireBookings(f.ctx)

		// THEN: The two without goods expire and give their space back
		require.NoError(t, err)
		assert.Equal(t, "2026-03-03", res.Cutoff.String())
		assert.Equal(t, 2, res.Checked)
		assert.ElementsMatch(t, []string{accepted.BookingNo, pending.BookingNo}, res.Expired)
		assert.Zero(t, res.Failed)

		assert.Equal(t, warehousing.BookingExpired, f.booking(t, accepted.ID).Status)
		assert.Equal(t, warehousing.BookingExpired, f.booking(t, pending.ID).Status)
		assert.Equal(t, warehousing.BookingAccepted, f.booking(t, deposited.ID).Status)
		assert.True(t, f.remaining(t).Equal(dec("900")))
	})
}

func TestExpireBookings_LastDayOfWindowSurvives(t *testing.T) {
	f := newFixture(t)
	b := f.accepted(t, "100")

	// from + 7 days is still inside the window
	f.setToday(t, "2026-03-09")
	res, err := f.svc.ExpireBookings(f.ctx)

	require.NoError(t, err)
	assert.Empty(t, res.Expired)
	assert.Equal(t, warehousing.BookingAccepted, f.booking(t, b.ID).Status)
}

func TestExpireBookings_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// GIVEN: A sweep that already expired a booking
		b := f.accepted(t, "100")
		f.setToday(t, "2026-03-20")
		first, err := f.svc.ExpireBookings(f.ctx)
		require.NoError(t, err)
		require.Len(t, first.Expired, 1)

		// WHEN: It runs again
		second, err := f.svc.ExpireBookings(f.ctx)

		// THEN: Nothing changes and capacity is not credited twice
		require.NoError(t, err)
		assert.Empty(t, second.Expired)
		assert.Zero(t, second.Checked)
		assert.True(t, f.remaining(t).Equal(dec("1000")))

		moves, err := f.store.Movements(f.ctx, "wh-1")
		require.NoError(t, err)
		assert.Len(t, moves, 2)
		assert.True(t, f.booking(t, b.ID).Outstanding().IsZero())
	})
}

func TestExpireBookings_IgnoresDecidedBookings(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "100")
	_, err := f.svc.RejectBooking(f.ctx, owner, b.ID, "full")
	require.NoError(t, err)

	f.setToday(t, "2026-04-01")
	res, err := f.svc.ExpireBookings(f.ctx)

	require.NoError(t, err)
	assert.Zero(t, res.Checked)
	assert.Equal(t, warehousing.BookingRejected, f.booking(t, b.ID).Status)
}

func TestExpiredBooking_RefusesFurtherStages(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "100")
	f.setToday(t, "2026-03-20")
	_, err := f.svc.ExpireBookings(f.ctx)
	require.NoError(t, err)

	_, err = f.svc.AcceptBooking(f.ctx, owner, b.ID)

	assert.ErrorIs(t, err, generic.ErrExpired)
}
