package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	coffeemiddleware "github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/middleware"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/validation"
)

// Permissions required by the protected drink routes.
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

// RouterOptions controls the construction of the coffee HTTP router.
type RouterOptions struct {
	DrinkService  DrinkService
	Validator     validation.Validator
	Verifier      coffeemiddleware.TokenVerifier
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns a permissive policy for the drinks API.
func DefaultCORSOptions() cors.Options {
	return CORSOptionsFor([]string{"*"})
}

// CORSOptionsFor builds the CORS policy for the given origins.
func CORSOptionsFor(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Pinger is satisfied by *bun.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingHealthHandler reports 503 while the database is unreachable.
func PingHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		defaultHealthHandler(w, r)
	}
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the drink handlers mounted.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	if opts.DrinkService == nil {
		return nil, errors.New("router requires a drink service")
	}
	if opts.Validator == nil {
		return nil, errors.New("router requires a request validator")
	}

	authz, err := coffeemiddleware.NewAuthorizer(coffeemiddleware.AuthzDependencies{
		Verifier: opts.Verifier,
		OnError:  WriteError,
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, ErrMethodNotAllowed)
	})

	MountDrinkRoutes(r, NewDrinkHandlers(opts.DrinkService, opts.Validator), authz)

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	return r, nil
}

// MountDrinkRoutes registers the drink endpoints. Only GET /drinks is public.
func MountDrinkRoutes(r chi.Router, h *DrinkHandlers, authz *coffeemiddleware.Authorizer) {
	r.Get("/drinks", h.ListShort)

	r.With(authz.Require(PermissionGetDrinksDetail)).Get("/drinks-detail", h.ListLong)
	r.With(authz.Require(PermissionPostDrinks)).Post("/drinks", h.Create)
	r.With(authz.Require(PermissionPatchDrinks)).Patch("/drinks/{id:[0-9]+}", h.Update)
	r.With(authz.Require(PermissionDeleteDrinks)).Delete("/drinks/{id:[0-9]+}", h.Delete)
}

// NewH2CHandler wraps the router with an h2c server to provide HTTP/2 over
// cleartext.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	return h2c.NewHandler(router, &http2.Server{}), nil
}
