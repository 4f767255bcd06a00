/*
Package generic provides the domain-agnostic primitives of the warehouse engine.

PURPOSE:
  This package contains the value types and algorithms that do not know
  anything about bookings, deposits or loans: decimal quantities with units,
  day-granular time points, the capacity ledger, bounded-retry identifier
  generation and the error taxonomy shared by every stage.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 200 MT, 1500 INR, 40 bags)
  - Capacity: Total/filled storage of a warehouse, remaining is derived
  - Movement: An immutable capacity ledger entry (commit, release, adjustment)
  - Typed identifiers for warehouses, bookings and movements

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for weights and money
  2. Immutability: Movements are never modified, corrections are new entries
  3. Type Safety: Strong typing for IDs prevents mixing warehouse/booking IDs
  4. Derived state: Remaining capacity is computed, never stored separately

USAGE:
  capacity := generic.NewCapacity(generic.NewAmount(1000, generic.UnitMT))
  capacity, err := capacity.Commit(generic.NewAmount(200, generic.UnitMT))
  capacity.Remaining() // 800 MT

SEE ALSO:
  - ledger.go: Capacity ledger that records every movement
  - errors.go: Error taxonomy
  - idgen.go: Bounded-retry unique identifiers
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitMT     Unit = "MT"
	UnitKG     Unit = "kg"
	UnitBags   Unit = "bags"
	UnitRupees Unit = "INR"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// MustParseDecimal parses s and returns zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round2 rounds a monetary value to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WarehouseID string
type BookingID string
type MovementID string

// =============================================================================
// CAPACITY - Storage space of a warehouse
// =============================================================================

// Capacity is the storage accounting of one warehouse.
//
// INVARIANT: 0 <= Filled <= Total, therefore 0 <= Remaining() <= Total.
// Commit and Release are the only ways to move Filled.
type Capacity struct {
	Total  Amount
	Filled Amount
}

func NewCapacity(total Amount) Capacity {
	return Capacity{Total: total, Filled: total.Zero()}
}

// Remaining is the capacity not committed to accepted, non-withdrawn bookings.
func (c Capacity) Remaining() Amount {
	return c.Total.Sub(c.Filled)
}

// Validate checks the capacity invariant.
func (c Capacity) Validate() error {
	if c.Total.IsNegative() {
		return NewValidationError("total_capacity", "must not be negative")
	}
	if c.Filled.IsNegative() {
		return NewValidationError("filled_capacity", "must not be negative")
	}
	if c.Filled.GreaterThan(c.Total) {
		return NewValidationError("filled_capacity", "must not exceed total capacity")
	}
	return nil
}

// Commit debits requested space. Fails with CapacityExceededError when the
// request is larger than what remains.
func (c Capacity) Commit(requested Amount) (Capacity, error) {
	if requested.IsNegative() {
		return c, NewValidationError("requested_capacity", "must not be negative")
	}
	if requested.GreaterThan(c.Remaining()) {
		return c, &CapacityExceededError{
			Remaining: c.Remaining(),
			Requested: requested,
		}
	}
	c.Filled = c.Filled.Add(requested)
	return c, nil
}

// Release credits space back. The release is clamped to what is filled so the
// remaining capacity never exceeds the total.
func (c Capacity) Release(amount Amount) Capacity {
	if amount.IsNegative() {
		return c
	}
	c.Filled = c.Filled.Sub(amount.Min(c.Filled))
	return c
}

// =============================================================================
// MOVEMENT - Immutable capacity ledger entry
// =============================================================================

type MovementType string

const (
	MoveCommit     MovementType = "commit"     // Booking accepted, space debited
	MoveRelease    MovementType = "release"    // Goods shipped / booking ended, space credited
	MoveAdjustment MovementType = "adjustment" // Manual correction
)

type Movement struct {
	ID             MovementID
	WarehouseID    WarehouseID
	BookingID      BookingID
	Type           MovementType
	Delta          Amount // positive = filled grows, negative = filled shrinks
	Reason         string
	IdempotencyKey string
	EffectiveAt    TimePoint
	CreatedBy      string
}
