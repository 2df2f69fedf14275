/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logger:     Structured request logging (zap) + Prometheus counters
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /healthz               Liveness
  /metrics               Prometheus scrape endpoint
  /api/rules/*           Fine rule management
  /api/calculate         Stateless calculation
  /api/calculations/*    Calculation history
  /api/statistics        History statistics
  /api/hierarchy/*       Org chart
  /api/cases/*           Case access synchronization
  /api/users/*           Dashboards, assignable users, inbox
  /api/sync/*            Scheduler runs

SECURITY NOTE:
  No authentication middleware. The actor of a reassignment is taken from
  the request body and checked against the role matrix only.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger, h.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Post("/validate", h.ValidateRule)
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)
		})

		// Calculation routes
		r.Post("/calculate", h.Calculate)
		r.Route("/calculations", func(r chi.Router) {
			r.Get("/", h.ListCalculations)
			r.Post("/", h.SaveCalculation)
			r.Get("/{id}", h.GetCalculation)
			r.Post("/{id}/approve", h.ApproveCalculation)
		})
		r.Get("/statistics", h.Statistics)

		// Hierarchy routes
		r.Route("/hierarchy", func(r chi.Router) {
			r.Get("/", h.GetHierarchy)
			r.Get("/officers/{id}", h.GetOfficerChain)
		})

		// Case routes
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.ListCases)
			r.Post("/", h.CreateCase)
			r.Get("/{id}/sync", h.GetCaseSync)
			r.Post("/{id}/reassign", h.ReassignCase)
			r.Get("/{id}/access", h.GetCaseAccess)
			r.Get("/{id}/permissions", h.GetCasePermissions)
			r.Post("/{id}/activities", h.SyncCaseActivities)
		})

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/dashboard", h.GetDashboard)
			r.Get("/{id}/assignable", h.GetAssignableUsers)
			r.Get("/{id}/notifications", h.GetNotifications)
		})

		// Sync routes
		r.Route("/sync", func(r chi.Router) {
			r.Get("/runs", h.ListSyncRuns)
			r.Post("/run", h.TriggerSync)
		})
	})

	return r
}

// requestLogger logs each request with zap and feeds the HTTP metrics. The
// route label is chi's pattern so IDs do not explode cardinality.
func requestLogger(logger *zap.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
			)
		})
	}
}
