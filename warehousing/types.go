/*
Package warehousing implements the warehouse booking lifecycle on top of the
generic engine.

PURPOSE:
  A customer books space in a warehouse, the goods are weighed, deposited,
  graded, optionally pledged for a loan, shipped out (fully or in parts) and
  finally invoiced. Every stage is a guarded transition on the Booking; the
  warehouse's capacity moves only when a booking is accepted (debit) or its
  goods leave (credit).

LIFECYCLE:

  Status (commercial):   pending ──▶ accepted ──▶ expired | rejected | cancelled
                            │
                            └──▶ rejected | cancelled | expired

  Stage (physical), only while accepted:

    booked ──▶ weighed ──▶ deposited ──▶ graded ──▶ partially_withdrawn ──▶ withdrawn
                  ▲            ▲                         │        ▲
     weighbridge ─┘   deposit ─┘          shipment ──────┴────────┘

  The legacy boolean stage flags (deposited, weighbridge added, graded,
  withdrawn, item in warehouse) are a derived read-only view of Stage, so
  contradictory combinations cannot be stored.

KEY TYPES:
  Warehouse, Booking, Deposit, Weighbridge, Loan, Shipment, Invoice

SEE ALSO:
  - service.go: Service wiring and shared helpers
  - booking.go: Create/Accept/Reject/Cancel
  - expiry.go: Background expiry sweep
*/
package warehousing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// IDENTITY
// =============================================================================

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
	RoleFarmer  Role = "farmer"
	RoleTrader  Role = "trader"
	RoleFPO     Role = "fpo"
	RolePledge  Role = "pledge"
)

// ParseRole accepts the canonical names and the labels used by the identity
// provider ("Warehouse owner", "Farmer", "FPO").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "manager":
		return RoleManager, nil
	case "owner", "warehouse owner", "warehouse_owner":
		return RoleOwner, nil
	case "farmer":
		return RoleFarmer, nil
	case "trader":
		return RoleTrader, nil
	case "fpo":
		return RoleFPO, nil
	case "pledge":
		return RolePledge, nil
	}
	return "", generic.NewValidationError("role", fmt.Sprintf("unknown role %q", s))
}

// Identity is supplied by the authentication layer and trusted as-is.
type Identity struct {
	UserID string
	Role   Role
}

// SystemIdentity is the actor recorded for autonomous transitions.
var SystemIdentity = Identity{UserID: "system", Role: RoleAdmin}

// =============================================================================
// WAREHOUSE
// =============================================================================

// PriceTier is the per-day storage price for one bag weight.
type PriceTier struct {
	Weight      decimal.Decimal
	PricePerDay decimal.Decimal
}

type Commodity struct {
	Name    string
	AddedBy string
	Tiers   []PriceTier
}

// TierFor finds the tier whose weight matches exactly.
func (c Commodity) TierFor(weight decimal.Decimal) (PriceTier, bool) {
	for _, t := range c.Tiers {
		if t.Weight.Equal(weight) {
			return t, true
		}
	}
	return PriceTier{}, false
}

type Rating struct {
	UserID string
	Rating int
}

type Warehouse struct {
	ID          generic.WarehouseID
	Name        string
	OwnerID     string
	ManagerID   string
	Address     string
	Capacity    generic.Capacity
	Commodities []Commodity
	Ratings     []Rating
	AvgRating   decimal.Decimal
	Active      bool
	Archived    bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Commodity looks a commodity up by name, ignoring case.
func (w *Warehouse) Commodity(name string) (Commodity, bool) {
	for _, c := range w.Commodities {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Commodity{}, false
}

// IsStaff reports whether userID owns or manages the warehouse.
func (w *Warehouse) IsStaff(userID string) bool {
	return userID != "" && (w.OwnerID == userID || w.ManagerID == userID)
}

func (w Warehouse) Clone() Warehouse {
	c := w
	c.Commodities = make([]Commodity, len(w.Commodities))
	for i, com := range w.Commodities {
		com.Tiers = append([]PriceTier(nil), com.Tiers...)
		c.Commodities[i] = com
	}
	c.Ratings = append([]Rating(nil), w.Ratings...)
	return c
}

// =============================================================================
// BOOKING
// =============================================================================

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingExpired   BookingStatus = "expired"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingAccepted, BookingExpired, BookingRejected, BookingCancelled:
		return true
	}
	return false
}

// Stage is the physical progress of an accepted booking. Stages only move
// forward.
type Stage int

const (
	StageBooked Stage = iota
	StageWeighed
	StageDeposited
	StageGraded
	StagePartiallyWithdrawn
	StageWithdrawn
)

var stageNames = [...]string{"booked", "weighed", "deposited", "graded", "partially_withdrawn", "withdrawn"}

func (s Stage) String() string {
	if s < StageBooked || s > StageWithdrawn {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return StageBooked, fmt.Errorf("unknown stage %q", name)
}

// BookingFlags is the derived boolean view of a Stage.
type BookingFlags struct {
	WeighbridgeAdded bool
	Deposited        bool
	Graded           bool
	Withdrawn        bool
	ItemInWarehouse  bool
}

func (s Stage) Flags() BookingFlags {
	return BookingFlags{
		WeighbridgeAdded: s >= StageWeighed,
		Deposited:        s >= StageDeposited,
		Graded:           s >= StageGraded,
		Withdrawn:        s == StageWithdrawn,
		ItemInWarehouse:  s >= StageWeighed && s < StageWithdrawn,
	}
}

// LineItem is one priced commodity line of a booking.
type LineItem struct {
	Commodity   string
	Weight      decimal.Decimal // bag weight, selects the price tier
	PricePerDay decimal.Decimal
	Quantity    decimal.Decimal
	Total       decimal.Decimal
}

type Contact struct {
	Name   string
	Mobile string
	Email  string
}

// GradeDetails is the quality assessment of a deposit.
type GradeDetails struct {
	Grade          string
	ForeignMatter  decimal.Decimal
	OtherFoodGrain decimal.Decimal
	Other          decimal.Decimal
	DamagedGrain   decimal.Decimal
	ImmatureGrain  decimal.Decimal
	WeevilledGrain decimal.Decimal
	AssignerName   string
	GradeDate      generic.TimePoint
	GradedBy       string
}

type Booking struct {
	ID          generic.BookingID
	BookingNo   string
	UserID      string
	WarehouseID generic.WarehouseID
	Dates       generic.DateRange
	Contact     Contact
	ProductName string

	RequestedCapacity generic.Amount
	Items             []LineItem
	TotalPrice        decimal.Decimal
	PendingPrice      decimal.Decimal
	TotalWeight       generic.Amount // weight still held for this booking
	NoOfBags          int
	BagSize           decimal.Decimal

	Status BookingStatus
	Stage  Stage

	AcceptedBy string
	RejectedBy string
	Reasons    []string

	DepositID     string
	WeighbridgeID string
	Grade         *GradeDetails
	DepositExpiry generic.TimePoint
	WithdrawalID  string

	CommittedCapacity generic.Amount
	ReleasedCapacity  generic.Amount

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Booking) Flags() BookingFlags {
	return b.Stage.Flags()
}

// Outstanding is the capacity this booking still holds in its warehouse.
func (b *Booking) Outstanding() generic.Amount {
	out := b.CommittedCapacity.Sub(b.ReleasedCapacity)
	if out.IsNegative() {
		return out.Zero()
	}
	return out
}

func (b Booking) Clone() Booking {
	c := b
	c.Items = append([]LineItem(nil), b.Items...)
	c.Reasons = append([]string(nil), b.Reasons...)
	if b.Grade != nil {
		g := *b.Grade
		c.Grade = &g
	}
	return c
}

// =============================================================================
// WEIGHBRIDGE
// =============================================================================

type Weighbridge struct {
	ID          string
	BookingID   generic.BookingID
	WarehouseID generic.WarehouseID
	Date        generic.TimePoint
	Time        string
	Gross       generic.Amount
	Tare        generic.Amount
	Net         generic.Amount
	TruckNumber string
	DriverName  string
	RecordedBy  string
	CreatedAt   time.Time
}

// =============================================================================
// DEPOSIT
// =============================================================================

type CommodityType string

const (
	ExchangeCommodity    CommodityType = "exchangeCommodity"
	NonExchangeCommodity CommodityType = "non-exchangeCommodity"
)

type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositFinished DepositStatus = "finished"
)

type Deposit struct {
	ID               string
	BookingID        generic.BookingID
	WarehouseID      generic.WarehouseID
	DepositDate      generic.TimePoint
	Slot             string
	CommodityType    CommodityType
	RevalidationDate generic.TimePoint
	ExpiryDate       generic.TimePoint
	TotalWeight      generic.Amount
	TotalPrice       decimal.Decimal
	Status           DepositStatus
	Grade            *GradeDetails
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (d Deposit) Clone() Deposit {
	c := d
	if d.Grade != nil {
		g := *d.Grade
		c.Grade = &g
	}
	return c
}

// =============================================================================
// LOAN
// =============================================================================

type LoanStatus string

const (
	LoanRequested  LoanStatus = "requested"
	LoanApproved   LoanStatus = "approved"
	LoanActive     LoanStatus = "active" // disbursed and running
	LoanClosed     LoanStatus = "closed"
	LoanRejected   LoanStatus = "rejected"
	LoanTerminated LoanStatus = "terminated"
)

// LoanFlags is the derived boolean view of a LoanStatus.
type LoanFlags struct {
	Applied    bool
	Requested  bool
	Approved   bool
	Disbursed  bool
	Active     bool
	Closed     bool
	Rejected   bool
	Terminated bool
}

func (s LoanStatus) Flags() LoanFlags {
	return LoanFlags{
		Applied:    true,
		Requested:  s == LoanRequested,
		Approved:   s == LoanApproved || s == LoanActive || s == LoanClosed,
		Disbursed:  s == LoanActive || s == LoanClosed,
		Active:     s == LoanActive,
		Closed:     s == LoanClosed,
		Rejected:   s == LoanRejected,
		Terminated: s == LoanTerminated,
	}
}

// Locks reports whether a loan in this status blocks other loans on the
// same booking.
func (s LoanStatus) Locks() bool {
	return s == LoanApproved || s == LoanActive
}

type LoanTerms struct {
	Amount         decimal.Decimal
	InterestRate   decimal.Decimal
	RepaymentTerms string
}

type Loan struct {
	ID           string
	BookingID    generic.BookingID
	WarehouseID  generic.WarehouseID
	ApplicantID  string
	Pledge       string
	Amount       decimal.Decimal
	InterestRate decimal.Decimal
	TotalAmount  decimal.Decimal
	LoanType     string
	LoanTerm     string
	Status       LoanStatus
	// Terminated is set on every sibling when another loan on the booking
	// is approved, whatever the sibling's own status.
	Terminated       bool
	AcceptedTerms    *LoanTerms
	DecidedBy        string
	RejectionReason  string
	DisbursementDate generic.TimePoint
	MaturityDate     generic.TimePoint
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (l *Loan) Flags() LoanFlags {
	f := l.Status.Flags()
	f.Terminated = f.Terminated || l.Terminated
	return f
}

func (l Loan) Clone() Loan {
	c := l
	if l.AcceptedTerms != nil {
		t := *l.AcceptedTerms
		c.AcceptedTerms = &t
	}
	return c
}

// =============================================================================
// SHIPMENT
// =============================================================================

type WithdrawalMode string

const (
	WithdrawPartial WithdrawalMode = "partial"
	WithdrawFull    WithdrawalMode = "full"
)

type ShipmentLine struct {
	ItemName string
	Quantity decimal.Decimal
}

type Shipment struct {
	ID               string
	BookingID        generic.BookingID
	WarehouseID      generic.WarehouseID
	WithdrawalID     string
	Mode             WithdrawalMode
	Lines            []ShipmentLine
	TotalBags        int
	TruckNumber      string
	DriverName       string
	Status           string
	Quantity         generic.Amount
	ReleasedCapacity generic.Amount
	LateFee          decimal.Decimal
	ShippedAt        time.Time
	CreatedBy        string
}

// ShipmentInTransit is the only status a shipment is created with.
const ShipmentInTransit = "in_transit"

// =============================================================================
// INVOICE
// =============================================================================

type InvoiceKind string

const (
	KindInvoice InvoiceKind = "invoice"
	KindBill    InvoiceKind = "bill"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
)

type Invoice struct {
	ID                   string
	Kind                 InvoiceKind
	InvoiceNo            string
	TrackingID           string
	BookingID            generic.BookingID
	WarehouseID          generic.WarehouseID
	Amount               decimal.Decimal
	PartialPayment       decimal.Decimal
	ServiceCost          decimal.Decimal
	FumigationCost       decimal.Decimal
	ExpiryMonitoringCost decimal.Decimal
	PendingPayment       decimal.Decimal
	Status               InvoiceStatus
	CreatedBy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
