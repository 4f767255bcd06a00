/*
ledger.go - Append-only capacity ledger

PURPOSE:
  The capacity ledger is the audit-grade history of every change to a
  warehouse's filled capacity. The warehouse row keeps the current
  Total/Filled for fast reads; the ledger explains how it got there and
  guarantees each booking is debited at most once.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. BOUNDED: 0 <= filled <= total after every movement
  3. IDEMPOTENT: Same idempotency key = same movement (no double debit)
  4. REPLAYABLE: Summing deltas reproduces the filled capacity

MOVEMENT FLOW:
  Accept booking (200 MT)      -> commit  +200   key commit:<booking>
  Partial shipment (50 of 200) -> release  -50   key release:<shipment>
  Final shipment               -> release -150   key release:<shipment>

  Replay: [+200, -50, -150] = 0 filled by this booking.

USAGE:
  Callers run the ledger inside the same store transaction that persists the
  warehouse row, so the movement and the new Capacity commit together:

    store.WithTx(ctx, func(tx Store) error {
        ledger := generic.NewCapacityLedger(tx)
        capacity, err := ledger.Commit(ctx, w.Capacity, movement)
        ...
        w.Capacity = capacity
        return tx.SaveWarehouse(ctx, w)
    })
*/
package generic

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Capacity movements
// =============================================================================

// Ledger applies capacity movements and records them.
type Ledger interface {
	// Commit debits mv.Delta from remaining capacity and records a commit.
	Commit(ctx context.Context, capacity Capacity, mv Movement) (Capacity, error)

	// Release credits mv.Delta back (clamped to what is filled) and records
	// the amount actually released.
	Release(ctx context.Context, capacity Capacity, mv Movement) (Capacity, Amount, error)

	// Movements returns the history of a warehouse. Read-only.
	Movements(ctx context.Context, warehouseID WarehouseID) ([]Movement, error)

	// FilledFromHistory replays all movements of a warehouse.
	FilledFromHistory(ctx context.Context, warehouseID WarehouseID, unit Unit) (Amount, error)
}

// =============================================================================
// CAPACITY LEDGER - Implementation using MovementStore
// =============================================================================

type CapacityLedger struct {
	Store MovementStore
}

func NewCapacityLedger(store MovementStore) *CapacityLedger {
	return &CapacityLedger{Store: store}
}

func (l *CapacityLedger) Commit(ctx context.Context, capacity Capacity, mv Movement) (Capacity, error) {
	if err := l.checkKey(ctx, mv.IdempotencyKey); err != nil {
		return capacity, err
	}

	next, err := capacity.Commit(mv.Delta)
	if err != nil {
		if ce, ok := err.(*CapacityExceededError); ok {
			ce.WarehouseID = mv.WarehouseID
		}
		return capacity, err
	}

	mv.Type = MoveCommit
	if err := l.append(ctx, mv); err != nil {
		return capacity, err
	}
	return next, nil
}

func (l *CapacityLedger) Release(ctx context.Context, capacity Capacity, mv Movement) (Capacity, Amount, error) {
	if err := l.checkKey(ctx, mv.IdempotencyKey); err != nil {
		return capacity, mv.Delta.Zero(), err
	}

	released := mv.Delta.Min(capacity.Filled)
	if !released.IsPositive() {
		return capacity, mv.Delta.Zero(), nil
	}

	mv.Type = MoveRelease
	mv.Delta = released.Neg()
	if err := l.append(ctx, mv); err != nil {
		return capacity, mv.Delta.Zero(), err
	}
	return capacity.Release(released), released, nil
}

func (l *CapacityLedger) Movements(ctx context.Context, warehouseID WarehouseID) ([]Movement, error) {
	return l.Store.Movements(ctx, warehouseID)
}

func (l *CapacityLedger) FilledFromHistory(ctx context.Context, warehouseID WarehouseID, unit Unit) (Amount, error) {
	moves, err := l.Store.Movements(ctx, warehouseID)
	if err != nil {
		return Amount{}, err
	}

	filled := NewAmount(0, unit)
	for _, m := range moves {
		filled = filled.Add(m.Delta)
	}
	return filled, nil
}

func (l *CapacityLedger) checkKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	exists, err := l.Store.MovementExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateIdempotencyKey
	}
	return nil
}

func (l *CapacityLedger) append(ctx context.Context, mv Movement) error {
	if mv.ID == "" {
		mv.ID = MovementID(uuid.NewString())
	}
	return l.Store.AppendMovement(ctx, mv)
}
