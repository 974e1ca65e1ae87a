/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     zap request logging (logging.RequestLogger)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend
  6. Auth:       Principal from JWT, on every /api route except signup

ROUTE GROUPS:
  /healthz              Liveness (public)
  /api/signup           Tenant registration (public)
  /api/lots/*           Lot lifecycle and sales
  /api/transactions/*   Sales history and export
  /api/dashboard/*      Reporting
  /api/users            User management
  /api/settings         Tenant settings

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/lot-ledger/logging"
)

type RouterConfig struct {
	// AllowedOrigins for CORS. Empty means "*", which disables credentialed
	// cross-origin requests.
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Auth, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = h.Logger
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// Cookies are accepted as credentials, so only named origins may send them.
	credentials := !slices.Contains(origins, "*")

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: credentials,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", h.Signup)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			// Lot routes
			r.Route("/lots", func(r chi.Router) {
				r.Get("/", h.ListLots)
				r.Post("/", h.CreateLot)
				r.Get("/next-number", h.NextLotNumber)
				r.Get("/{id}", h.GetLot)
				r.Put("/{id}", h.ReplaceLot)
				r.Delete("/{id}", h.DeleteLot)
				r.Post("/{id}/sales", h.RecordSale)
			})

			// Transaction routes
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Get("/export", h.ExportTransactions)
				r.Get("/{id}", h.GetTransaction)
			})

			// Reporting routes
			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/", h.Dashboard)
				r.Get("/charts", h.Charts)
			})

			// Account routes
			r.Post("/users", h.AddUser)
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Code: "not_found"})
	})

	return r
}
