/*
Package storetest is the behavioural contract every warehousing.TxStore must
meet. store/memory and store/sqlite both run it, so the service sees the same
semantics whichever backend is wired in.

WHAT IS COVERED:
  - Optimistic versioning: Version 0 inserts, a stale version is refused
  - Uniqueness: one weighbridge and one deposit per booking, one application
    per lender, unique invoice numbers and tracking ids
  - Ordering: bookings by creation, shipments in the order they left,
    movements by effective date
  - Append-only ledger: idempotency keys are never reused
  - WithTx: an error rolls every write back
*/
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// Run exercises newStore against the store contract. newStore must return an
// empty store; cleanup is the caller's business.
func Run(t *testing.T, newStore func(t *testing.T) warehousing.TxStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st warehousing.TxStore)
	}{
		{"WarehouseVersioning", testWarehouseVersioning},
		{"ListWarehouses", testListWarehouses},
		{"BookingRoundTrip", testBookingRoundTrip},
		{"BookingVersioning", testBookingVersioning},
		{"ListBookings", testListBookings},
		{"ExpiryCandidates", testExpiryCandidates},
		{"WeighbridgeOncePerBooking", testWeighbridgeOncePerBooking},
		{"Deposits", testDeposits},
		{"Loans", testLoans},
		{"ShipmentsKeepOrder", testShipmentsKeepOrder},
		{"Invoices", testInvoices},
		{"Movements", testMovements},
		{"AuditTrail", testAuditTrail},
		{"WithTxRollsBack", testWithTxRollsBack},
		{"WithTxCommits", testWithTxCommits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

var (
	ctx = context.Background()
	t0  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

func day(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

func mt(v int) generic.Amount {
	return generic.NewAmountFromInt(v, generic.UnitMT)
}

func newWarehouse(id, name string) *warehousing.Warehouse {
	return &warehousing.Warehouse{
		ID:        generic.WarehouseID(id),
		Name:      name,
		OwnerID:   "owner-1",
		ManagerID: "manager-1",
		Address:   "MIDC, Nashik",
		Capacity:  generic.NewCapacity(mt(1000)),
		Commodities: []warehousing.Commodity{{
			Name:    "Wheat",
			AddedBy: "owner-1",
			Tiers: []warehousing.PriceTier{
				{Weight: decimal.NewFromInt(50), PricePerDay: decimal.RequireFromString("2.5")},
			},
		}},
		AvgRating: decimal.Zero,
		Active:    true,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

// newBooking returns a pending 100 MT booking of wh-1 starting on from.
// seq orders creation.
func newBooking(seq int, userID, from string) *warehousing.Booking {
	start := day(from)
	created := t0.Add(time.Duration(seq) * time.Minute)
	return &warehousing.Booking{
		ID:                generic.BookingID(fmt.Sprintf("b-%d", seq)),
		BookingNo:         fmt.Sprintf("BK-%04d", seq),
		UserID:            userID,
		WarehouseID:       "wh-1",
		Dates:             generic.DateRange{From: start, To: start.AddDays(9)},
		Contact:           warehousing.Contact{Name: "Ramesh", Mobile: "9800000000"},
		ProductName:       "Wheat",
		RequestedCapacity: mt(100),
		Items: []warehousing.LineItem{{
			Commodity:   "Wheat",
			Weight:      decimal.NewFromInt(50),
			PricePerDay: decimal.RequireFromString("2.5"),
			Quantity:    decimal.NewFromInt(10),
			Total:       decimal.NewFromInt(250),
		}},
		TotalPrice:        decimal.NewFromInt(250),
		PendingPrice:      decimal.NewFromInt(250),
		TotalWeight:       mt(0),
		NoOfBags:          20,
		BagSize:           decimal.NewFromInt(50),
		Status:            warehousing.BookingPending,
		Stage:             warehousing.StageBooked,
		CommittedCapacity: mt(0),
		ReleasedCapacity:  mt(0),
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

// seed stores wh-1 and the given bookings.
func seed(t *testing.T, st warehousing.Store, bookings ...*warehousing.Booking) {
	t.Helper()
	require.NoError(t, st.SaveWarehouse(ctx, newWarehouse("wh-1", "Nashik Central")))
	for _, b := range bookings {
		require.NoError(t, st.SaveBooking(ctx, b))
	}
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

// =============================================================================
// WAREHOUSES
// =============================================================================

func testWarehouseVersioning(t *testing.T, st warehousing.TxStore) {
	// GIVEN: A freshly inserted warehouse
	w := newWarehouse("wh-1", "Nashik Central")
	require.NoError(t, st.SaveWarehouse(ctx, w))
	assert.Equal(t, int64(1), w.Version)

	// WHEN: Two writers load it and both commit capacity
	a, err := st.GetWarehouse(ctx, "wh-1")
	require.NoError(t, err)
	b, err := st.GetWarehouse(ctx, "wh-1")
	require.NoError(t, err)

	a.Capacity, err = a.Capacity.Commit(mt(100))
	require.NoError(t, err)
	require.NoError(t, st.SaveWarehouse(ctx, a))

	b.Capacity, err = b.Capacity.Commit(mt(200))
	require.NoError(t, err)
	err = st.SaveWarehouse(ctx, b)

	// THEN: The second writer loses and the first write stands
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	got, err := st.GetWarehouse(ctx, "wh-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.Capacity.Filled.Value.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, generic.UnitMT, got.Capacity.Total.Unit)
	require.Len(t, got.Commodities, 1)
	assert.True(t, got.Commodities[0].Tiers[0].PricePerDay.Equal(decimal.RequireFromString("2.5")))

	// AND: Inserting the same id again is refused
	err = st.SaveWarehouse(ctx, newWarehouse("wh-1", "Duplicate"))
	assert.ErrorIs(t, err, generic.ErrAlreadyExists)

	missing, err := st.GetWarehouse(ctx, "wh-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testListWarehouses(t *testing.T, st warehousing.TxStore) {
	require.NoError(t, st.SaveWarehouse(ctx, newWarehouse("wh-2", "Pune Cold Store")))
	require.NoError(t, st.SaveWarehouse(ctx, newWarehouse("wh-1", "Nashik Central")))
	other := newWarehouse("wh-3", "Aurangabad")
	other.OwnerID = "owner-2"
	require.NoError(t, st.SaveWarehouse(ctx, other))
	archived := newWarehouse("wh-4", "Closed Shed")
	archived.Archived = true
	require.NoError(t, st.SaveWarehouse(ctx, archived))

	byName := func(w warehousing.Warehouse) string { return string(w.ID) }

	all, err := st.ListWarehouses(ctx, warehousing.WarehouseFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"wh-3", "wh-1", "wh-2"}, ids(all, byName))

	mine, err := st.ListWarehouses(ctx, warehousing.WarehouseFilter{OwnerID: "owner-1", IncludeArchived: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"wh-4", "wh-1", "wh-2"}, ids(mine, byName))
}

// =============================================================================
// BOOKINGS
// =============================================================================

func testBookingRoundTrip(t *testing.T, st warehousing.TxStore) {
	// GIVEN: A booking that has been through grading
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)

	b.Status = warehousing.BookingAccepted
	b.Stage = warehousing.StageGraded
	b.AcceptedBy = "owner-1"
	b.Reasons = []string{"late truck"}
	b.TotalWeight = mt(80)
	b.CommittedCapacity = mt(100)
	b.ReleasedCapacity = mt(25)
	b.DepositID = "dep-1"
	b.WeighbridgeID = "wb-1"
	b.WithdrawalID = "WD-1"
	b.DepositExpiry = day("2026-12-31")
	b.Grade = &warehousing.GradeDetails{
		Grade:         warehousing.GradeI,
		ForeignMatter: decimal.RequireFromString("0.5"),
		GradeDate:     day("2026-03-03"),
		GradedBy:      "manager-1",
	}
	require.NoError(t, st.SaveBooking(ctx, b))

	// WHEN: It is read back
	got, err := st.GetBooking(ctx, b.ID)

	// THEN: Every field survives
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "BK-0001", got.BookingNo)
	assert.Equal(t, "2026-03-02", got.Dates.From.String())
	assert.Equal(t, "2026-03-11", got.Dates.To.String())
	assert.Equal(t, "Ramesh", got.Contact.Name)
	assert.Equal(t, warehousing.BookingAccepted, got.Status)
	assert.Equal(t, warehousing.StageGraded, got.Stage)
	assert.Equal(t, []string{"late truck"}, got.Reasons)
	assert.Equal(t, "WD-1", got.WithdrawalID)
	assert.Equal(t, "2026-12-31", got.DepositExpiry.String())
	assert.True(t, got.Outstanding().Value.Equal(decimal.NewFromInt(75)))
	assert.True(t, got.TotalWeight.Value.Equal(decimal.NewFromInt(80)))
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Total.Equal(decimal.NewFromInt(250)))
	require.NotNil(t, got.Grade)
	assert.Equal(t, warehousing.GradeI, got.Grade.Grade)
	assert.True(t, got.Grade.ForeignMatter.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "2026-03-03", got.Grade.GradeDate.String())

	exists, err := st.BookingNoExists(ctx, "BK-0001")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = st.BookingNoExists(ctx, "BK-9999")
	require.NoError(t, err)
	assert.False(t, exists)

	missing, err := st.GetBooking(ctx, "b-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testBookingVersioning(t *testing.T, st warehousing.TxStore) {
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)
	stale := *b

	b.Status = warehousing.BookingAccepted
	require.NoError(t, st.SaveBooking(ctx, b))

	stale.Status = warehousing.BookingCancelled
	err := st.SaveBooking(ctx, &stale)

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	got, err := st.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, warehousing.BookingAccepted, got.Status)

	// A second booking may not reuse the booking number
	dup := newBooking(2, "farmer-2", "2026-03-02")
	dup.BookingNo = b.BookingNo
	assert.ErrorIs(t, st.SaveBooking(ctx, dup), generic.ErrAlreadyExists)
}

func testListBookings(t *testing.T, st warehousing.TxStore) {
	// GIVEN: Bookings of two customers in two warehouses
	require.NoError(t, st.SaveWarehouse(ctx, newWarehouse("wh-2", "Pune Cold Store")))
	b1 := newBooking(1, "farmer-1", "2026-03-02")
	b2 := newBooking(2, "farmer-2", "2026-03-02")
	b2.Status = warehousing.BookingAccepted
	b3 := newBooking(3, "farmer-1", "2026-03-05")
	b3.WarehouseID = "wh-2"
	seed(t, st, b3, b1, b2)

	bookingNo := func(b warehousing.Booking) string { return b.BookingNo }
	tests := []struct {
		name   string
		filter warehousing.BookingFilter
		want   []string
	}{
		{"everything in creation order", warehousing.BookingFilter{}, []string{"BK-0001", "BK-0002", "BK-0003"}},
		{"by customer", warehousing.BookingFilter{UserID: "farmer-1"}, []string{"BK-0001", "BK-0003"}},
		{"by warehouse", warehousing.BookingFilter{WarehouseIDs: []generic.WarehouseID{"wh-1"}}, []string{"BK-0001", "BK-0002"}},
		{"by status", warehousing.BookingFilter{Status: warehousing.BookingAccepted}, []string{"BK-0002"}},
		{"combined", warehousing.BookingFilter{UserID: "farmer-1", WarehouseIDs: []generic.WarehouseID{"wh-2"}}, []string{"BK-0003"}},
		{"no match", warehousing.BookingFilter{UserID: "trader-1"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListBookings(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got, bookingNo))
		})
	}
}

func testExpiryCandidates(t *testing.T, st warehousing.TxStore) {
	// GIVEN: Bookings in every state that matters to the sweep
	stale := newBooking(1, "farmer-1", "2026-03-02")
	acceptedStale := newBooking(2, "farmer-1", "2026-03-01")
	acceptedStale.Status = warehousing.BookingAccepted
	acceptedStale.Stage = warehousing.StageWeighed
	fresh := newBooking(3, "farmer-1", "2026-03-03")
	deposited := newBooking(4, "farmer-1", "2026-03-01")
	deposited.Status = warehousing.BookingAccepted
	deposited.Stage = warehousing.StageDeposited
	rejected := newBooking(5, "farmer-1", "2026-03-01")
	rejected.Status = warehousing.BookingRejected
	seed(t, st, stale, acceptedStale, fresh, deposited, rejected)

	// WHEN: The cutoff is 2026-03-03
	got, err := st.ExpiryCandidates(ctx, day("2026-03-03").DayKey())

	// THEN: Only undeposited, undecided bookings that started before it
	require.NoError(t, err)
	assert.Equal(t, []string{"BK-0001", "BK-0002"}, ids(got, func(b warehousing.Booking) string { return b.BookingNo }))
}

// =============================================================================
// STAGES
// =============================================================================

func testWeighbridgeOncePerBooking(t *testing.T, st warehousing.TxStore) {
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)
	wb := &warehousing.Weighbridge{
		ID:          "wb-1",
		BookingID:   b.ID,
		WarehouseID: b.WarehouseID,
		Date:        day("2026-03-02"),
		Time:        "10:30",
		Gross:       mt(110),
		Tare:        mt(30),
		Net:         mt(80),
		TruckNumber: "MH15-AB-1234",
		RecordedBy:  "manager-1",
		CreatedAt:   t0,
	}
	require.NoError(t, st.SaveWeighbridge(ctx, wb))

	again := *wb
	again.ID = "wb-2"
	assert.ErrorIs(t, st.SaveWeighbridge(ctx, &again), generic.ErrAlreadyExists)

	got, err := st.GetWeighbridgeByBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "wb-1", got.ID)
	assert.Equal(t, "2026-03-02", got.Date.String())
	assert.True(t, got.Net.Value.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, generic.UnitMT, got.Net.Unit)

	none, err := st.GetWeighbridgeByBooking(ctx, "b-404")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func newDeposit(id string, b *warehousing.Booking, date string) *warehousing.Deposit {
	return &warehousing.Deposit{
		ID:            id,
		BookingID:     b.ID,
		WarehouseID:   b.WarehouseID,
		DepositDate:   day(date),
		CommodityType: warehousing.ExchangeCommodity,
		TotalWeight:   mt(80),
		TotalPrice:    decimal.NewFromInt(250),
		Status:        warehousing.DepositPending,
		CreatedBy:     "manager-1",
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
}

func testDeposits(t *testing.T, st warehousing.TxStore) {
	// GIVEN: Three deposits, one graded I and one graded II
	b1 := newBooking(1, "farmer-1", "2026-03-02")
	b2 := newBooking(2, "farmer-1", "2026-03-02")
	b3 := newBooking(3, "farmer-2", "2026-03-02")
	seed(t, st, b1, b2, b3)

	d1 := newDeposit("dep-1", b1, "2026-03-04")
	d2 := newDeposit("dep-2", b2, "2026-03-02")
	d3 := newDeposit("dep-3", b3, "2026-03-03")
	for _, d := range []*warehousing.Deposit{d1, d2, d3} {
		require.NoError(t, st.SaveDeposit(ctx, d))
	}

	// Grading updates in place
	d1.Grade = &warehousing.GradeDetails{Grade: warehousing.GradeI, GradeDate: day("2026-03-05")}
	d1.Status = warehousing.DepositFinished
	require.NoError(t, st.SaveDeposit(ctx, d1))
	d2.Grade = &warehousing.GradeDetails{Grade: warehousing.GradeII, GradeDate: day("2026-03-05")}
	require.NoError(t, st.SaveDeposit(ctx, d2))

	// A second deposit for a booking is refused
	assert.ErrorIs(t, st.SaveDeposit(ctx, newDeposit("dep-4", b1, "2026-03-04")), generic.ErrAlreadyExists)

	got, err := st.GetDeposit(ctx, "dep-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, warehousing.DepositFinished, got.Status)
	require.NotNil(t, got.Grade)
	assert.Equal(t, "2026-03-05", got.Grade.GradeDate.String())

	depositID := func(d warehousing.Deposit) string { return d.ID }

	all, err := st.ListDeposits(ctx, warehousing.DepositFilter{WarehouseID: "wh-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dep-2", "dep-3", "dep-1"}, ids(all, depositID), "ordered by deposit date")

	gradeI, err := st.ListDeposits(ctx, warehousing.DepositFilter{Grade: warehousing.GradeI})
	require.NoError(t, err)
	assert.Equal(t, []string{"dep-1"}, ids(gradeI, depositID))

	byBooking, err := st.ListDeposits(ctx, warehousing.DepositFilter{BookingID: b3.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"dep-3"}, ids(byBooking, depositID))
}

// =============================================================================
// FINANCE
// =============================================================================

func newLoan(id string, b *warehousing.Booking, pledge string, seq int) *warehousing.Loan {
	created := t0.Add(time.Duration(seq) * time.Minute)
	return &warehousing.Loan{
		ID:           id,
		BookingID:    b.ID,
		WarehouseID:  b.WarehouseID,
		ApplicantID:  b.UserID,
		Pledge:       pledge,
		Amount:       decimal.NewFromInt(10000),
		InterestRate: decimal.NewFromInt(12),
		TotalAmount:  decimal.NewFromInt(11200),
		Status:       warehousing.LoanRequested,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func testLoans(t *testing.T, st warehousing.TxStore) {
	// GIVEN: Two applications on one booking and one on another
	b1 := newBooking(1, "farmer-1", "2026-03-02")
	b2 := newBooking(2, "farmer-1", "2026-03-02")
	seed(t, st, b1, b2)
	l1 := newLoan("LN-1", b1, "sbi", 1)
	l2 := newLoan("LN-2", b1, "hdfc", 2)
	l3 := newLoan("LN-3", b2, "sbi", 3)
	for _, l := range []*warehousing.Loan{l1, l2, l3} {
		require.NoError(t, st.SaveLoan(ctx, l))
		assert.Equal(t, int64(1), l.Version)
	}

	// WHEN: The lender approves with its own terms
	l1.Status = warehousing.LoanApproved
	l1.AcceptedTerms = &warehousing.LoanTerms{Amount: decimal.NewFromInt(8000), InterestRate: decimal.NewFromInt(10), RepaymentTerms: "bullet"}
	l1.DisbursementDate = day("2026-03-10")
	require.NoError(t, st.SaveLoan(ctx, l1))

	// THEN: The terms and version persist
	got, err := st.GetLoan(ctx, "LN-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, warehousing.LoanApproved, got.Status)
	require.NotNil(t, got.AcceptedTerms)
	assert.Equal(t, "bullet", got.AcceptedTerms.RepaymentTerms)
	assert.True(t, got.AcceptedTerms.Amount.Equal(decimal.NewFromInt(8000)))
	assert.Equal(t, "2026-03-10", got.DisbursementDate.String())
	assert.True(t, got.MaturityDate.IsZero())

	stale := *l2
	l2.Status = warehousing.LoanTerminated
	l2.Terminated = true
	require.NoError(t, st.SaveLoan(ctx, l2))
	stale.Status = warehousing.LoanApproved
	assert.ErrorIs(t, st.SaveLoan(ctx, &stale), generic.ErrConcurrentModification)

	terminated, err := st.GetLoan(ctx, "LN-2")
	require.NoError(t, err)
	assert.True(t, terminated.Terminated)
	assert.False(t, got.Terminated)

	// AND: A lender applies once per booking, whatever happened before
	assert.ErrorIs(t, st.SaveLoan(ctx, newLoan("LN-4", b1, "hdfc", 4)), generic.ErrDuplicateApplication)

	exists, err := st.LoanExists(ctx, "LN-3")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = st.LoanExists(ctx, "LN-4")
	require.NoError(t, err)
	assert.False(t, exists)

	loanID := func(l warehousing.Loan) string { return l.ID }
	tests := []struct {
		name   string
		filter warehousing.LoanFilter
		want   []string
	}{
		{"by booking", warehousing.LoanFilter{BookingID: b1.ID}, []string{"LN-1", "LN-2"}},
		{"by pledge", warehousing.LoanFilter{Pledge: " SBI "}, []string{"LN-1", "LN-3"}},
		{"by status", warehousing.LoanFilter{Status: warehousing.LoanTerminated}, []string{"LN-2"}},
		{"combined", warehousing.LoanFilter{BookingID: b2.ID, Pledge: "sbi"}, []string{"LN-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListLoans(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got, loanID))
		})
	}
}

func testShipmentsKeepOrder(t *testing.T, st warehousing.TxStore) {
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)

	for i, id := range []string{"BK-0001.2", "BK-0001.1", "BK-0001.3"} {
		sh := &warehousing.Shipment{
			ID:               id,
			BookingID:        b.ID,
			WarehouseID:      b.WarehouseID,
			Mode:             warehousing.WithdrawPartial,
			Lines:            []warehousing.ShipmentLine{{ItemName: "Wheat", Quantity: decimal.NewFromInt(10)}},
			TotalBags:        4,
			Status:           warehousing.ShipmentInTransit,
			Quantity:         mt(10),
			ReleasedCapacity: mt(12),
			LateFee:          decimal.Zero,
			ShippedAt:        t0.Add(time.Duration(i) * time.Hour),
			CreatedBy:        "manager-1",
		}
		require.NoError(t, st.SaveShipment(ctx, sh))
	}

	dup := &warehousing.Shipment{ID: "BK-0001.1", BookingID: b.ID, WarehouseID: b.WarehouseID, Mode: warehousing.WithdrawFull,
		Status: warehousing.ShipmentInTransit, Quantity: mt(1), ReleasedCapacity: mt(1), LateFee: decimal.Zero, ShippedAt: t0}
	assert.ErrorIs(t, st.SaveShipment(ctx, dup), generic.ErrAlreadyExists)

	got, err := st.ListShipments(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"BK-0001.2", "BK-0001.1", "BK-0001.3"},
		ids(got, func(sh warehousing.Shipment) string { return sh.ID }), "in the order they were saved")
	require.Len(t, got[0].Lines, 1)
	assert.Equal(t, "Wheat", got[0].Lines[0].ItemName)
	assert.True(t, got[0].ReleasedCapacity.Value.Equal(decimal.NewFromInt(12)))

	none, err := st.ListShipments(ctx, "b-404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInvoices(t *testing.T, st warehousing.TxStore) {
	// GIVEN: An invoice and a bill on one booking
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)
	inv := &warehousing.Invoice{
		ID: "inv-1", Kind: warehousing.KindInvoice, InvoiceNo: "IN-0001", TrackingID: "TRK-0001",
		BookingID: b.ID, WarehouseID: b.WarehouseID,
		Amount: decimal.NewFromInt(250), PendingPayment: decimal.NewFromInt(250),
		Status: warehousing.InvoicePending, CreatedBy: "manager-1", CreatedAt: t0, UpdatedAt: t0,
	}
	bill := &warehousing.Invoice{
		ID: "bill-1", Kind: warehousing.KindBill,
		BookingID: b.ID, WarehouseID: b.WarehouseID,
		Amount: decimal.NewFromInt(250), PartialPayment: decimal.NewFromInt(150),
		ServiceCost: decimal.NewFromInt(20), FumigationCost: decimal.NewFromInt(10),
		PendingPayment: decimal.NewFromInt(130),
		Status:         warehousing.InvoicePending, CreatedBy: "farmer-1",
		CreatedAt: t0.Add(time.Hour), UpdatedAt: t0.Add(time.Hour),
	}
	require.NoError(t, st.SaveInvoice(ctx, inv))
	require.NoError(t, st.SaveInvoice(ctx, bill))

	// WHEN: The invoice is paid
	inv.Status = warehousing.InvoicePaid
	inv.PendingPayment = decimal.Zero
	require.NoError(t, st.SaveInvoice(ctx, inv))

	// THEN: The update lands on the same record
	got, err := st.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, warehousing.InvoicePaid, got.Status)
	assert.True(t, got.PendingPayment.IsZero())

	all, err := st.ListInvoices(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-1", "bill-1"}, ids(all, func(i warehousing.Invoice) string { return i.ID }))
	assert.True(t, all[1].FumigationCost.Equal(decimal.NewFromInt(10)))
	assert.Empty(t, all[1].InvoiceNo)

	exists, err := st.InvoiceNoExists(ctx, "IN-0001")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = st.TrackingIDExists(ctx, "TRK-0001")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = st.TrackingIDExists(ctx, "TRK-0002")
	require.NoError(t, err)
	assert.False(t, exists)

	// AND: Invoice numbers and tracking ids stay unique
	clash := *inv
	clash.ID = "inv-2"
	clash.TrackingID = "TRK-0002"
	assert.ErrorIs(t, st.SaveInvoice(ctx, &clash), generic.ErrAlreadyExists)
	clash.InvoiceNo = "IN-0002"
	clash.TrackingID = "TRK-0001"
	assert.ErrorIs(t, st.SaveInvoice(ctx, &clash), generic.ErrAlreadyExists)
}

// =============================================================================
// LEDGER
// =============================================================================

func movement(id, key, date string, delta int) generic.Movement {
	return generic.Movement{
		ID:             generic.MovementID(id),
		WarehouseID:    "wh-1",
		BookingID:      "b-1",
		Type:           generic.MoveCommit,
		Delta:          mt(delta),
		Reason:         "booking accepted",
		IdempotencyKey: key,
		EffectiveAt:    day(date),
		CreatedBy:      "owner-1",
	}
}

func testMovements(t *testing.T, st warehousing.TxStore) {
	// GIVEN: Movements appended out of date order
	require.NoError(t, st.AppendMovement(ctx, movement("m-1", "commit:b-1", "2026-03-05", 100)))
	require.NoError(t, st.AppendMovement(ctx, movement("m-2", "commit:b-2", "2026-03-02", 50)))
	require.NoError(t, st.AppendMovement(ctx, movement("m-3", "release:s-1", "2026-03-05", -25)))
	other := movement("m-4", "commit:b-9", "2026-03-01", 10)
	other.WarehouseID = "wh-2"
	require.NoError(t, st.AppendMovement(ctx, other))

	// WHEN: A key is reused
	err := st.AppendMovement(ctx, movement("m-5", "commit:b-1", "2026-03-06", 100))

	// THEN: It is refused and history reads oldest first
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	got, err := st.Movements(ctx, "wh-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m-2", "m-1", "m-3"}, ids(got, func(m generic.Movement) string { return string(m.ID) }))
	assert.True(t, got[2].Delta.Value.Equal(decimal.NewFromInt(-25)))
	assert.Equal(t, generic.BookingID("b-1"), got[2].BookingID)

	exists, err := st.MovementExists(ctx, "commit:b-2")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = st.MovementExists(ctx, "commit:b-3")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testAuditTrail(t *testing.T, st warehousing.TxStore) {
	entries := []generic.AuditEntry{
		{ID: "a-1", Timestamp: t0, ActorID: "farmer-1", Action: generic.AuditBookingCreated, WarehouseID: "wh-1", BookingID: "b-1"},
		{ID: "a-2", Timestamp: t0, ActorID: "farmer-2", Action: generic.AuditBookingCreated, WarehouseID: "wh-1", BookingID: "b-2"},
		{ID: "a-3", Timestamp: t0.Add(time.Hour), ActorID: "owner-1", Action: generic.AuditBookingAccepted, WarehouseID: "wh-1", BookingID: "b-1",
			Payload: map[string]any{"committed": "100"}},
	}
	for _, e := range entries {
		require.NoError(t, st.AppendAudit(ctx, e))
	}

	got, err := st.AuditTrail(ctx, "b-1")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, generic.AuditBookingCreated, got[0].Action)
	assert.Equal(t, generic.AuditBookingAccepted, got[1].Action)
	assert.Equal(t, "owner-1", got[1].ActorID)
	assert.Equal(t, "100", got[1].Payload["committed"])
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testWithTxRollsBack(t *testing.T, st warehousing.TxStore) {
	// GIVEN: A warehouse with a pending booking
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)
	boom := fmt.Errorf("accept failed")

	// WHEN: A transaction writes to every part of the store and then fails
	err := st.WithTx(ctx, func(tx warehousing.Store) error {
		w, err := tx.GetWarehouse(ctx, "wh-1")
		if err != nil {
			return err
		}
		if w.Capacity, err = w.Capacity.Commit(mt(100)); err != nil {
			return err
		}
		if err := tx.SaveWarehouse(ctx, w); err != nil {
			return err
		}
		cur, err := tx.GetBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		cur.Status = warehousing.BookingAccepted
		if err := tx.SaveBooking(ctx, cur); err != nil {
			return err
		}
		if err := tx.AppendMovement(ctx, movement("m-1", "commit:b-1", "2026-03-02", 100)); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, generic.AuditEntry{ID: "a-1", Timestamp: t0, ActorID: "owner-1",
			Action: generic.AuditBookingAccepted, WarehouseID: "wh-1", BookingID: b.ID}); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing is visible afterwards
	assert.ErrorIs(t, err, boom)

	w, err := st.GetWarehouse(ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, w.Capacity.Filled.IsZero())
	assert.Equal(t, int64(1), w.Version)

	got, err := st.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, warehousing.BookingPending, got.Status)

	moves, err := st.Movements(ctx, "wh-1")
	require.NoError(t, err)
	assert.Empty(t, moves)
	exists, err := st.MovementExists(ctx, "commit:b-1")
	require.NoError(t, err)
	assert.False(t, exists)

	trail, err := st.AuditTrail(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func testWithTxCommits(t *testing.T, st warehousing.TxStore) {
	b := newBooking(1, "farmer-1", "2026-03-02")
	seed(t, st, b)

	err := st.WithTx(ctx, func(tx warehousing.Store) error {
		cur, err := tx.GetBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		cur.Status = warehousing.BookingAccepted
		if err := tx.SaveBooking(ctx, cur); err != nil {
			return err
		}
		return tx.AppendMovement(ctx, movement("m-1", "commit:b-1", "2026-03-02", 100))
	})

	require.NoError(t, err)
	got, err := st.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, warehousing.BookingAccepted, got.Status)
	assert.Equal(t, int64(2), got.Version)
	moves, err := st.Movements(ctx, "wh-1")
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}
