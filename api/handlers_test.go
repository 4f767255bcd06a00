/*
handlers_test.go - HTTP tests for the API layer

Tests for:
- Identity headers and role checks
- Warehouse creation through the factory JSON
- Booking create / accept / duplicate accept
- Status mapping of domain errors (400, 403, 404, 409, 422)
- Request validation details
- Admin sweep and notification inbox
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/store/memory"
	"github.com/warp/warehouse-engine/warehousing"
)

const warehouseDoc = `{
  "id": "wh-1",
  "name": "Nashik Central",
  "unit": "MT",
  "total_capacity": "1000",
  "filled_capacity": "0",
  "commodities": [
    {"name": "Wheat", "tiers": [{"weight": "50", "price_per_day": "2.5"}]}
  ]
}`

type testServer struct {
	router http.Handler
	svc    *warehousing.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := warehousing.NewService(memory.New(), zerolog.Nop())
	svc.Clock = generic.FixedClock{At: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc.IDs.BookingNo = generic.SequenceID("BK-0001", "BK-0002", "BK-0003")

	h := NewHandler(svc, zerolog.Nop())
	return &testServer{router: NewRouter(h, nil), svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path, user, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	if role != "" {
		req.Header.Set(HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bookingBody(capacity string) string {
	return `{
	  "warehouse_id": "wh-1",
	  "from": "2026-03-02",
	  "to": "2026-03-11",
	  "items": [{"commodity": "Wheat", "weight": "50", "quantity": "10"}],
	  "requested_capacity": "` + capacity + `",
	  "contact": {"name": "Asha", "mobile": "9800000000"}
	}`
}

// seedWarehouse creates wh-1 owned by owner-1.
func (ts *testServer) seedWarehouse(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/warehouses", "owner-1", "owner", warehouseDoc)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// WAREHOUSES
// =============================================================================

func TestCreateWarehouse_OwnerCreates(t *testing.T) {
	ts := newTestServer(t)

	// WHEN: An owner posts a warehouse document
	rec := ts.do(t, http.MethodPost, "/api/warehouses", "owner-1", "owner", warehouseDoc)

	// THEN: The warehouse is created and owned by the caller
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decode[WarehouseDTO](t, rec)
	assert.Equal(t, "wh-1", dto.ID)
	assert.Equal(t, "owner-1", dto.OwnerID)
	assert.Equal(t, "1000", dto.RemainingCapacity.String())
	require.Len(t, dto.Commodities, 1)
	assert.Equal(t, "Wheat", dto.Commodities[0].Name)
}

func TestCreateWarehouse_WithoutIdentityIsForbidden(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/warehouses", "", "", warehouseDoc)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[ErrorResponse](t, rec).Code)
}

func TestCreateWarehouse_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.seedWarehouse(t)

	rec := ts.do(t, http.MethodPost, "/api/warehouses", "owner-1", "owner", warehouseDoc)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decode[ErrorResponse](t, rec).Code)
}

func TestIdentity_BadRoleHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/warehouses", "u-1", "astronaut", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWarehouse_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/warehouses/nope", "u-1", "farmer", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// BOOKINGS
// =============================================================================

func TestBooking_CreateAcceptAndCapacity(t *testing.T) {
	// GIVEN: A warehouse with 1000 MT free
	ts := newTestServer(t)
	ts.seedWarehouse(t)

	// WHEN: A farmer books 100 MT for ten days
	rec := ts.do(t, http.MethodPost, "/api/bookings", "farmer-1", "farmer", bookingBody("100"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[BookingDTO](t, rec)

	// THEN: It is pending and priced per day per bag
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "BK-0001", created.BookingNo)
	assert.Equal(t, "250", created.TotalPrice.String())

	// WHEN: The owner accepts it
	rec = ts.do(t, http.MethodPost, "/api/bookings/"+created.ID+"/accept", "owner-1", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", decode[BookingDTO](t, rec).Status)

	// THEN: Capacity is debited once and the ledger replays to it
	rec = ts.do(t, http.MethodGet, "/api/warehouses/wh-1", "owner-1", "owner", "")
	assert.Equal(t, "900", decode[WarehouseDTO](t, rec).RemainingCapacity.String())

	rec = ts.do(t, http.MethodGet, "/api/warehouses/wh-1/capacity", "owner-1", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	capacity := decode[CapacityDTO](t, rec)
	assert.True(t, capacity.Consistent)
	assert.Equal(t, "100", capacity.Replayed.String())
	assert.Len(t, capacity.Movements, 1)

	// AND: Accepting again is a conflict that changes nothing
	rec = ts.do(t, http.MethodPost, "/api/bookings/"+created.ID+"/accept", "owner-1", "owner", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_in_state", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/warehouses/wh-1", "owner-1", "owner", "")
	assert.Equal(t, "900", decode[WarehouseDTO](t, rec).RemainingCapacity.String())
}

func TestBooking_CapacityExceeded(t *testing.T) {
	ts := newTestServer(t)
	ts.seedWarehouse(t)

	rec := ts.do(t, http.MethodPost, "/api/bookings", "farmer-1", "farmer", bookingBody("1000.5"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "capacity_exceeded", decode[ErrorResponse](t, rec).Code)
}

func TestBooking_ValidationDetails(t *testing.T) {
	ts := newTestServer(t)
	ts.seedWarehouse(t)

	// WHEN: Required fields are missing and the date is malformed
	rec := ts.do(t, http.MethodPost, "/api/bookings", "farmer-1", "farmer",
		`{"warehouse_id": "wh-1", "from": "02/03/2026", "to": "2026-03-11", "items": []}`)

	// THEN: Each failing field is reported
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Code    string       `json:"code"`
		Details []FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Code)

	fields := map[string]string{}
	for _, fe := range body.Details {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, "date", fields["from"])
	assert.Equal(t, "min", fields["items"])
	assert.Equal(t, "required", fields["requested_capacity"])
}

func TestBooking_UnknownFieldRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/bookings/x/reject", "owner-1", "owner",
		`{"reason": "full", "extra": true}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBooking_ListScopedToCustomer(t *testing.T) {
	ts := newTestServer(t)
	ts.seedWarehouse(t)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/bookings", "farmer-1", "farmer", bookingBody("10")).Code)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/bookings", "farmer-2", "farmer", bookingBody("10")).Code)

	rec := ts.do(t, http.MethodGet, "/api/bookings", "farmer-1", "farmer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]BookingDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "farmer-1", list[0].UserID)

	rec = ts.do(t, http.MethodGet, "/api/bookings/counts", "owner-1", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[map[string]int](t, rec)["pending"])

	rec = ts.do(t, http.MethodGet, "/api/bookings?status=bogus", "owner-1", "owner", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ADMIN / NOTIFICATIONS
// =============================================================================

func TestTriggerSweep_AdminOnly(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/sweep", "farmer-1", "farmer", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/admin/sweep", "root", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[SweepResultDTO](t, rec)
	assert.Equal(t, "2026-02-22", res.Cutoff)
}

type fakeInbox struct {
	items []warehousing.Notification
	limit int64
}

func (f *fakeInbox) Inbox(_ context.Context, _ string, limit int64) ([]warehousing.Notification, error) {
	f.limit = limit
	return f.items, nil
}

func TestListNotifications(t *testing.T) {
	ts := newTestServer(t)

	// Without an inbox the list is empty
	rec := ts.do(t, http.MethodGet, "/api/notifications", "owner-1", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]NotificationDTO](t, rec))

	// With an inbox the limit is passed through
	inbox := &fakeInbox{items: []warehousing.Notification{{
		UserID:    "owner-1",
		Message:   "New booking request BK-0001",
		Type:      warehousing.NotifyInfo,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}}}
	h := NewHandler(ts.svc, zerolog.Nop())
	h.Inbox = inbox
	router := NewRouter(h, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications?limit=5", nil)
	req.Header.Set(HeaderUserID, "owner-1")
	req.Header.Set(HeaderRole, "owner")
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)

	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, int64(5), inbox.limit)
	got := decode[[]NotificationDTO](t, out)
	require.Len(t, got, 1)
	assert.Equal(t, "info", got[0].Type)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind   string
		status int
	}{
		{"validation", http.StatusBadRequest},
		{"forbidden", http.StatusForbidden},
		{"not_found", http.StatusNotFound},
		{"booking_locked", http.StatusConflict},
		{"duplicate_application", http.StatusConflict},
		{"insufficient_weight", http.StatusUnprocessableEntity},
		{"out_of_window", http.StatusUnprocessableEntity},
		{"internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.kind))
		})
	}
}
