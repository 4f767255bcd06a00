package warehousing_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/store/memory"
	"github.com/warp/warehouse-engine/store/sqlite"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	owner   = warehousing.Identity{UserID: "owner-1", Role: warehousing.RoleOwner}
	manager = warehousing.Identity{UserID: "manager-1", Role: warehousing.RoleManager}
	farmer  = warehousing.Identity{UserID: "farmer-1", Role: warehousing.RoleFarmer}
	trader  = warehousing.Identity{UserID: "trader-1", Role: warehousing.RoleTrader}
	admin   = warehousing.Identity{UserID: "admin-1", Role: warehousing.RoleAdmin}
	sbi     = warehousing.Identity{UserID: "sbi", Role: warehousing.RolePledge}
	hdfc    = warehousing.Identity{UserID: "hdfc", Role: warehousing.RolePledge}
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n warehousing.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, id string) (warehousing.Classification, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(warehousing.Classification), args.Error(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

func sentTo(userID string) any {
	return mock.MatchedBy(func(n warehousing.Notification) bool { return n.UserID == userID })
}

type fixture struct {
	ctx      context.Context
	svc      *warehousing.Service
	store    warehousing.TxStore
	notifier *mockNotifier
}

// newFixture builds a service on 2026-03-01 with warehouse wh-1 (owner-1,
// manager-1, 1000 MT, Wheat at 2.5 per 50 kg bag per day).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New())
}

// forEachStore runs fn once on the memory store and once on SQLite.
func forEachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	stores := []struct {
		name string
		open func(t *testing.T) warehousing.TxStore
	}{
		{"memory", func(*testing.T) warehousing.TxStore { return memory.New() }},
		{"sqlite", func(t *testing.T) warehousing.TxStore {
			st, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		}},
	}
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			fn(t, newFixtureOn(t, s.open(t)))
		})
	}
}

func newFixtureOn(t *testing.T, st warehousing.TxStore) *fixture {
	t.Helper()
	svc := warehousing.NewService(st, zerolog.Nop())
	svc.IDs.BookingNo = generic.SequenceID("BK-0001", "BK-0002", "BK-0003", "BK-0004", "BK-0005")
	svc.IDs.LoanID = generic.SequenceID("LN-1", "LN-2", "LN-3", "LN-4")
	svc.IDs.InvoiceNo = generic.SequenceID("IN-0001", "IN-0002")
	svc.IDs.TrackingID = generic.SequenceID("TRK-0001", "TRK-0002")

	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()
	svc.Notifier = n

	f := &fixture{ctx: context.Background(), svc: svc, store: st, notifier: n}
	f.setToday(t, "2026-03-01")

	_, err := svc.CreateWarehouse(f.ctx, owner, warehousing.CreateWarehouseCommand{
		ID:            "wh-1",
		Name:          "Nashik Central",
		ManagerID:     manager.UserID,
		TotalCapacity: dec("1000"),
		Commodities: []warehousing.Commodity{{
			Name:  "Wheat",
			Tiers: []warehousing.PriceTier{{Weight: dec("50"), PricePerDay: dec("2.5")}},
		}},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) setToday(t *testing.T, date string) {
	t.Helper()
	f.svc.Clock = generic.FixedClock{At: day(date).Time.Add(9 * time.Hour)}
}

func (f *fixture) remaining(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.svc.GetWarehouse(f.ctx, "wh-1")
	require.NoError(t, err)
	return w.Capacity.Remaining().Value
}

func (f *fixture) booking(t *testing.T, id generic.BookingID) *warehousing.Booking {
	t.Helper()
	b, err := f.svc.GetBooking(f.ctx, admin, id)
	require.NoError(t, err)
	return b
}

func bookingCmd(capacity string) warehousing.CreateBookingCommand {
	return warehousing.CreateBookingCommand{
		WarehouseID: "wh-1",
		Dates:       generic.DateRange{From: day("2026-03-02"), To: day("2026-03-11")},
		Items: []warehousing.ItemRequest{
			{Commodity: "Wheat", Weight: dec("50"), Quantity: dec("10")},
		},
		RequestedCapacity: dec(capacity),
		NoOfBags:          20,
		Contact:           warehousing.Contact{Name: "Asha", Mobile: "9800000000"},
	}
}

// book creates a pending farmer booking for 2026-03-02..2026-03-11.
func (f *fixture) book(t *testing.T, capacity string) *warehousing.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(f.ctx, farmer, bookingCmd(capacity))
	require.NoError(t, err)
	return b
}

func (f *fixture) accepted(t *testing.T, capacity string) *warehousing.Booking {
	t.Helper()
	b, err := f.svc.AcceptBooking(f.ctx, owner, f.book(t, capacity).ID)
	require.NoError(t, err)
	return b
}

func (f *fixture) weigh(t *testing.T, b *warehousing.Booking, gross, tare, date string) *warehousing.Weighbridge {
	t.Helper()
	wb, err := f.svc.AddWeighbridge(f.ctx, manager, warehousing.AddWeighbridgeCommand{
		BookingID:   b.ID,
		Date:        day(date),
		Time:        "10:30",
		Gross:       dec(gross),
		Tare:        dec(tare),
		TruckNumber: "MH15-AB-1234",
	})
	require.NoError(t, err)
	return wb
}

func (f *fixture) deposit(t *testing.T, b *warehousing.Booking, date string) *warehousing.Deposit {
	t.Helper()
	d, err := f.svc.AddDeposit(f.ctx, manager, warehousing.AddDepositCommand{
		BookingID:     b.ID,
		DepositDate:   day(date),
		Slot:          "A-12",
		CommodityType: warehousing.ExchangeCommodity,
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) grade(t *testing.T, d *warehousing.Deposit, grade, date string) *warehousing.Deposit {
	t.Helper()
	graded, err := f.svc.AddGrade(f.ctx, manager, warehousing.AddGradeCommand{
		DepositID:     d.ID,
		GradeDate:     day(date),
		Grade:         grade,
		ForeignMatter: dec("0.5"),
		AssignerName:  "R. Patil",
	})
	require.NoError(t, err)
	return graded
}

// deposited takes a new 100 MT booking through weighing (net = gross - tare)
// and deposit on 2026-03-02.
func (f *fixture) deposited(t *testing.T, gross, tare string) (*warehousing.Booking, *warehousing.Deposit) {
	t.Helper()
	b := f.accepted(t, "100")
	f.weigh(t, b, gross, tare, "2026-03-02")
	d := f.deposit(t, b, "2026-03-02")
	return f.booking(t, b.ID), d
}

// graded takes a new 100 MT booking all the way to grade-I.
func (f *fixture) graded(t *testing.T, gross, tare string) *warehousing.Booking {
	t.Helper()
	b, d := f.deposited(t, gross, tare)
	f.grade(t, d, warehousing.GradeI, "2026-03-03")
	return f.booking(t, b.ID)
}
