/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging (method, path, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard
  5. Identity:   X-User-ID / X-User-Role into the request context

ROUTE GROUPS:
  /api/warehouses/*     Warehouse registry and capacity
  /api/bookings/*       Booking lifecycle, stages, loans, invoices
  /api/deposits/*       Deposit search and grading
  /api/loans/*          Loan decisions
  /api/invoices/*       Payment status
  /api/admin/*          Admin operations
  /api/notifications    Caller's inbox
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured. An empty
// corsOrigins allows the local dashboard only.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderUserID, HeaderRole},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(identityMiddleware)

		// Warehouse routes
		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", h.ListWarehouses)
			r.Post("/", h.CreateWarehouse)
			r.Get("/{id}", h.GetWarehouse)
			r.Post("/{id}/archive", h.ArchiveWarehouse)
			r.Put("/{id}/commodities", h.UpsertCommodity)
			r.Post("/{id}/ratings", h.RateWarehouse)
			r.Get("/{id}/capacity", h.GetCapacity)
		})

		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Get("/counts", h.CountBookings)
			r.Get("/{id}", h.GetBooking)
			r.Get("/{id}/audit", h.GetAuditTrail)
			r.Post("/{id}/accept", h.AcceptBooking)
			r.Post("/{id}/reject", h.RejectBooking)
			r.Post("/{id}/cancel", h.CancelBooking)

			r.Post("/{id}/weighbridge", h.AddWeighbridge)
			r.Get("/{id}/weighbridge", h.GetWeighbridge)
			r.Post("/{id}/deposit", h.AddDeposit)
			r.Post("/{id}/withdrawal-id", h.AllocateWithdrawalID)
			r.Post("/{id}/shipments", h.AddShipping)
			r.Get("/{id}/shipments", h.ListShipments)

			r.Post("/{id}/loans", h.ApplyForLoan)
			r.Get("/{id}/loans", h.ListLoans)
			r.Post("/{id}/invoices", h.AddInvoice)
			r.Get("/{id}/invoices", h.ListInvoices)
			r.Post("/{id}/bills", h.GenerateBill)
		})

		// Deposit routes
		r.Route("/deposits", func(r chi.Router) {
			r.Get("/", h.SearchDeposits)
			r.Get("/{id}", h.GetDeposit)
			r.Post("/{id}/grade", h.AddGrade)
		})

		// Loan decision routes
		r.Route("/loans", func(r chi.Router) {
			r.Post("/{id}/accept", h.AcceptLoan)
			r.Post("/{id}/reject", h.RejectLoan)
			r.Post("/{id}/disburse", h.DisburseLoan)
			r.Post("/{id}/close", h.CloseLoan)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/{id}/paid", h.MarkInvoicePaid)
			r.Post("/{id}/remind", h.RemindInvoice)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
		})

		r.Get("/notifications", h.ListNotifications)
	})

	return r
}

// requestLogger logs one line per request after it completes.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				ev := log.Info()
				if ww.Status() >= http.StatusInternalServerError {
					ev = log.Error()
				}
				ev.Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
