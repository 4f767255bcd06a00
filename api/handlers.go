/*
handlers.go - HTTP API handlers for the warehouse booking lifecycle

PURPOSE:
  Exposes warehousing.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to the domain layer.

ENDPOINTS:
  Warehouses:
    POST   /api/warehouses                     Create from factory JSON
    GET    /api/warehouses                     List (?owner_id, ?include_archived)
    GET    /api/warehouses/{id}                Get
    POST   /api/warehouses/{id}/archive        Archive
    PUT    /api/warehouses/{id}/commodities    Add or replace a commodity
    POST   /api/warehouses/{id}/ratings        Rate 1..5
    GET    /api/warehouses/{id}/capacity       Movement history + replay check

  Bookings:
    POST   /api/bookings                       Create
    GET    /api/bookings                       List (?status, ?warehouse_id)
    GET    /api/bookings/counts                Count by status
    GET    /api/bookings/{id}                  Get (with derived flags)
    GET    /api/bookings/{id}/audit            Transition history
    POST   /api/bookings/{id}/accept|reject|cancel

  Stages, loans and invoices: see stage_handlers.go and finance_handlers.go.

IDENTITY:
  identityMiddleware reads X-User-ID and X-User-Role. The headers are
  trusted as-is; authentication happens in front of this service. Requests
  without them reach the service with an empty identity and are refused by
  every operation that needs an actor.

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}; code is
  generic.Kind(err) and selects the HTTP status:
  - 400: validation
  - 403: forbidden
  - 404: not found
  - 409: already exists / already in state / duplicate / locked / concurrent
  - 422: precondition, out of window, capacity, weight, expired
  - 500: everything else (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - validate.go: Request validation
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/warehouse-engine/factory"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Inbox reads stored notifications of a user.
type Inbox interface {
	Inbox(ctx context.Context, userID string, limit int64) ([]warehousing.Notification, error)
}

// Sweeper runs the expiry sweep on demand.
type Sweeper interface {
	RunNow(ctx context.Context) (warehousing.SweepResult, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service          *warehousing.Service
	WarehouseFactory *factory.WarehouseFactory
	Sweeper          Sweeper // optional, falls back to Service.ExpireBookings
	Inbox            Inbox   // optional
	Log              zerolog.Logger
}

// NewHandler creates a new handler around svc.
func NewHandler(svc *warehousing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Service:          svc,
		WarehouseFactory: factory.NewWarehouseFactory(),
		Log:              log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

type identityKey struct{}

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := warehousing.Identity{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID))}
		if raw := r.Header.Get(HeaderRole); raw != "" {
			role, err := warehousing.ParseRole(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid role header", err)
				return
			}
			id.Role = role
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) warehousing.Identity {
	id, _ := r.Context().Value(identityKey{}).(warehousing.Identity)
	return id
}

// =============================================================================
// WAREHOUSE HANDLERS
// =============================================================================

// CreateWarehouse accepts a factory.WarehouseJSON document.
func (h *Handler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	cmd, err := h.WarehouseFactory.ParseWarehouse(body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	wh, err := h.Service.CreateWarehouse(r.Context(), identityFrom(r), cmd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWarehouseDTO(wh))
}

func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	filter := warehousing.WarehouseFilter{
		OwnerID:         r.URL.Query().Get("owner_id"),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}
	list, err := h.Service.ListWarehouses(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]WarehouseDTO, len(list))
	for i := range list {
		dtos[i] = toWarehouseDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	wh, err := h.Service.GetWarehouse(r.Context(), warehouseID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseDTO(wh))
}

func (h *Handler) ArchiveWarehouse(w http.ResponseWriter, r *http.Request) {
	wh, err := h.Service.ArchiveWarehouse(r.Context(), identityFrom(r), warehouseID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseDTO(wh))
}

// UpsertCommodity accepts a factory.CommodityJSON document.
func (h *Handler) UpsertCommodity(w http.ResponseWriter, r *http.Request) {
	var cj factory.CommodityJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c := warehousing.Commodity{Name: strings.TrimSpace(cj.Name)}
	for _, t := range cj.Tiers {
		c.Tiers = append(c.Tiers, warehousing.PriceTier{Weight: t.Weight, PricePerDay: t.PricePerDay})
	}

	wh, err := h.Service.UpsertCommodity(r.Context(), identityFrom(r), warehouseID(r), c)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseDTO(wh))
}

func (h *Handler) RateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	wh, err := h.Service.RateWarehouse(r.Context(), identityFrom(r), warehouseID(r), req.Rating)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseDTO(wh))
}

// GetCapacity returns the movement history and whether replaying it
// reproduces the stored filled capacity.
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	id := warehouseID(r)
	movements, err := h.Service.CapacityHistory(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ok, replayed, err := h.Service.VerifyCapacity(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dto := CapacityDTO{
		WarehouseID: string(id),
		Consistent:  ok,
		Replayed:    replayed.Value,
		Movements:   make([]MovementDTO, len(movements)),
	}
	for i, mv := range movements {
		dto.Movements[i] = toMovementDTO(mv)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	cmd := warehousing.CreateBookingCommand{
		WarehouseID:       generic.WarehouseID(req.WarehouseID),
		Dates:             generic.DateRange{From: date(req.From), To: date(req.To)},
		RequestedCapacity: dec(req.RequestedCapacity),
		TotalWeight:       dec(req.TotalWeight),
		NoOfBags:          req.NoOfBags,
		BagSize:           dec(req.BagSize),
		ProductName:       req.ProductName,
		Contact: warehousing.Contact{
			Name:   req.Contact.Name,
			Mobile: req.Contact.Mobile,
			Email:  req.Contact.Email,
		},
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, warehousing.ItemRequest{
			Commodity: it.Commodity,
			Weight:    dec(it.Weight),
			Quantity:  dec(it.Quantity),
		})
	}

	b, err := h.Service.CreateBooking(r.Context(), identityFrom(r), cmd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

func bookingFilter(r *http.Request) (warehousing.BookingFilter, error) {
	q := r.URL.Query()
	filter := warehousing.BookingFilter{}
	if s := q.Get("status"); s != "" {
		status := warehousing.BookingStatus(s)
		if !status.Valid() {
			return filter, generic.NewValidationError("status", "unknown booking status "+strconv.Quote(s))
		}
		filter.Status = status
	}
	if id := q.Get("warehouse_id"); id != "" {
		filter.WarehouseIDs = []generic.WarehouseID{generic.WarehouseID(id)}
	}
	return filter, nil
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := bookingFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.Service.ListBookings(r.Context(), identityFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(list))
}

func (h *Handler) CountBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := bookingFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	counts, err := h.Service.CountBookings(r.Context(), identityFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.GetBooking(r.Context(), identityFrom(r), bookingID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.AuditTrail(r.Context(), identityFrom(r), bookingID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:        e.ID,
			Timestamp: timeString(e.Timestamp),
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.AcceptBooking(r.Context(), identityFrom(r), bookingID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	b, err := h.Service.RejectBooking(r.Context(), identityFrom(r), bookingID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	b, err := h.Service.CancelBooking(r.Context(), identityFrom(r), bookingID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// ADMIN / NOTIFICATIONS
// =============================================================================

// TriggerSweep runs the expiry sweep now. Admin only.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if id := identityFrom(r); id.Role != warehousing.RoleAdmin || id.UserID == "" {
		writeError(w, http.StatusForbidden, "Admin role required", nil)
		return
	}

	var (
		res warehousing.SweepResult
		err error
	)
	if h.Sweeper != nil {
		res, err = h.Sweeper.RunNow(r.Context())
	} else {
		res, err = h.Service.ExpireBookings(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepResultDTO(res))
}

// ListNotifications returns the caller's stored notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if id.UserID == "" {
		writeError(w, http.StatusForbidden, "Missing user", nil)
		return
	}
	if h.Inbox == nil {
		writeJSON(w, http.StatusOK, []NotificationDTO{})
		return
	}

	limit := int64(50)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	items, err := h.Inbox.Inbox(r.Context(), id.UserID, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]NotificationDTO, len(items))
	for i, n := range items {
		dtos[i] = NotificationDTO{
			Message:   n.Message,
			Type:      string(n.Type),
			Metadata:  n.Metadata,
			CreatedAt: timeString(n.CreatedAt),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func warehouseID(r *http.Request) generic.WarehouseID {
	return generic.WarehouseID(chi.URLParam(r, "id"))
}

func bookingID(r *http.Request) generic.BookingID {
	return generic.BookingID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps generic.Kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "already_exists", "already_in_state", "duplicate_application",
		"booking_locked", "concurrent_modification", "duplicate_idempotency_key":
		return http.StatusConflict
	case "precondition_failed", "out_of_window", "capacity_exceeded",
		"insufficient_weight", "expired":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := generic.Kind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, status, ErrorResponse{Error: "Internal error", Code: kind})
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    kind,
		Details: err.Error(),
	})
}
