/*
ledger_test.go - Capacity and ledger behaviour

READING THESE TESTS:
  Each test has a name that states the behaviour and GIVEN/WHEN/THEN
  comments. They cover:
  1. Capacity bounds - commit never overfills, release never underflows
  2. Idempotency - a key debits once
  3. Replay - summing movements reproduces filled capacity
*/
package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func mt(v float64) generic.Amount {
	return generic.NewAmount(v, generic.UnitMT)
}

func newLedger() (*generic.CapacityLedger, *store.Memory) {
	mem := store.NewMemory()
	return generic.NewCapacityLedger(mem), mem
}

func commitMove(booking string, v float64) generic.Movement {
	return generic.Movement{
		WarehouseID:    "wh-1",
		BookingID:      generic.BookingID(booking),
		Delta:          mt(v),
		IdempotencyKey: "commit:" + booking,
		EffectiveAt:    generic.NewTimePoint(2026, time.March, 1),
	}
}

// =============================================================================
// 1. CAPACITY BOUNDS
// =============================================================================

func TestCapacity_CommitWithinRemaining(t *testing.T) {
	c := generic.NewCapacity(mt(1000))

	c, err := c.Commit(mt(200))

	require.NoError(t, err)
	assert.True(t, c.Remaining().Equal(mt(800)))
	assert.NoError(t, c.Validate())
}

func TestCapacity_CommitExactlyRemaining(t *testing.T) {
	c := generic.Capacity{Total: mt(1000), Filled: mt(900)}

	c, err := c.Commit(mt(100))

	require.NoError(t, err)
	assert.True(t, c.Remaining().IsZero())
}

func TestCapacity_CommitOverRemainingFails(t *testing.T) {
	// GIVEN: 100 MT remaining
	c := generic.Capacity{Total: mt(1000), Filled: mt(900)}

	// WHEN: 100.5 MT is requested
	next, err := c.Commit(mt(100.5))

	// THEN: Nothing moves and the error carries the numbers
	require.ErrorIs(t, err, generic.ErrCapacityExceeded)
	var ce *generic.CapacityExceededError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Remaining.Equal(mt(100)))
	assert.True(t, ce.Requested.Equal(mt(100.5)))
	assert.Equal(t, c, next)
}

func TestCapacity_ReleaseIsClamped(t *testing.T) {
	c := generic.Capacity{Total: mt(1000), Filled: mt(50)}

	c = c.Release(mt(80))

	assert.True(t, c.Filled.IsZero())
	assert.True(t, c.Remaining().Equal(mt(1000)))
}

func TestCapacity_Validate(t *testing.T) {
	tests := []struct {
		name string
		c    generic.Capacity
		ok   bool
	}{
		{"empty", generic.NewCapacity(mt(10)), true},
		{"full", generic.Capacity{Total: mt(10), Filled: mt(10)}, true},
		{"overfilled", generic.Capacity{Total: mt(10), Filled: mt(11)}, false},
		{"negative filled", generic.Capacity{Total: mt(10), Filled: mt(-1)}, false},
		{"negative total", generic.Capacity{Total: mt(-1), Filled: mt(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, generic.ErrValidation)
			}
		})
	}
}

// =============================================================================
// 2. IDEMPOTENCY
// =============================================================================

func TestLedger_CommitTwiceWithSameKeyDebitsOnce(t *testing.T) {
	// GIVEN: A booking already committed
	ctx := context.Background()
	ledger, _ := newLedger()
	c := generic.NewCapacity(mt(1000))
	c, err := ledger.Commit(ctx, c, commitMove("bk-1", 200))
	require.NoError(t, err)

	// WHEN: The same commit is replayed
	again, err := ledger.Commit(ctx, c, commitMove("bk-1", 200))

	// THEN: It is rejected and capacity is unchanged
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	assert.True(t, again.Filled.Equal(mt(200)))

	moves, err := ledger.Movements(ctx, "wh-1")
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

func TestLedger_FailedCommitRecordsNothing(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()

	_, err := ledger.Commit(ctx, generic.NewCapacity(mt(10)), commitMove("bk-1", 11))

	require.ErrorIs(t, err, generic.ErrCapacityExceeded)
	var ce *generic.CapacityExceededError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, generic.WarehouseID("wh-1"), ce.WarehouseID)

	moves, _ := ledger.Movements(ctx, "wh-1")
	assert.Empty(t, moves)
}

func TestLedger_ReleaseRecordsActualAmount(t *testing.T) {
	// GIVEN: 30 MT filled
	ctx := context.Background()
	ledger, _ := newLedger()
	c, err := ledger.Commit(ctx, generic.NewCapacity(mt(100)), commitMove("bk-1", 30))
	require.NoError(t, err)

	// WHEN: 50 MT is released
	c, released, err := ledger.Release(ctx, c, generic.Movement{
		WarehouseID:    "wh-1",
		BookingID:      "bk-1",
		Delta:          mt(50),
		IdempotencyKey: "release:sh-1",
	})

	// THEN: Only what was filled comes back, and the movement says so
	require.NoError(t, err)
	assert.True(t, released.Equal(mt(30)))
	assert.True(t, c.Filled.IsZero())

	moves, _ := ledger.Movements(ctx, "wh-1")
	require.Len(t, moves, 2)
	assert.Equal(t, generic.MoveRelease, moves[1].Type)
	assert.True(t, moves[1].Delta.Equal(mt(-30)))
}

func TestLedger_ReleaseOfNothingRecordsNothing(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()

	c, released, err := ledger.Release(ctx, generic.NewCapacity(mt(100)), generic.Movement{
		WarehouseID: "wh-1", Delta: mt(10), IdempotencyKey: "release:x",
	})

	require.NoError(t, err)
	assert.True(t, released.IsZero())
	assert.True(t, c.Filled.IsZero())
	moves, _ := ledger.Movements(ctx, "wh-1")
	assert.Empty(t, moves)
}

// =============================================================================
// 3. REPLAY
// =============================================================================

func TestLedger_ReplayMatchesFilled(t *testing.T) {
	// GIVEN: Commits and releases across several bookings
	ctx := context.Background()
	ledger, _ := newLedger()
	c := generic.NewCapacity(mt(1000))

	var err error
	c, err = ledger.Commit(ctx, c, commitMove("bk-1", 200))
	require.NoError(t, err)
	c, err = ledger.Commit(ctx, c, commitMove("bk-2", 300.25))
	require.NoError(t, err)
	c, _, err = ledger.Release(ctx, c, generic.Movement{
		WarehouseID: "wh-1", BookingID: "bk-1", Delta: mt(50), IdempotencyKey: "release:sh-1",
	})
	require.NoError(t, err)

	// WHEN: The history is replayed
	replayed, err := ledger.FilledFromHistory(ctx, "wh-1", generic.UnitMT)

	// THEN: It reproduces the filled capacity exactly
	require.NoError(t, err)
	assert.True(t, replayed.Value.Equal(decimal.RequireFromString("450.25")), replayed.String())
	assert.True(t, replayed.Equal(c.Filled))
}

func TestMemory_AuditTrailIsPerBooking(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.AppendAudit(ctx, generic.AuditEntry{ID: "a1", BookingID: "bk-1", Action: generic.AuditBookingCreated}))
	require.NoError(t, mem.AppendAudit(ctx, generic.AuditEntry{ID: "a2", BookingID: "bk-2", Action: generic.AuditBookingCreated}))
	require.NoError(t, mem.AppendAudit(ctx, generic.AuditEntry{ID: "a3", BookingID: "bk-1", Action: generic.AuditBookingAccepted}))

	trail, err := mem.AuditTrail(ctx, "bk-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, generic.AuditBookingAccepted, trail[1].Action)
}
