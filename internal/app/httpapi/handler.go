// Package httpapi exposes the store directory, reward eligibility and store
// session endpoints over HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/cartrewards/service_layer/internal/app"
	"github.com/cartrewards/service_layer/internal/app/metrics"
	"github.com/cartrewards/service_layer/internal/app/services/rewards"
	"github.com/cartrewards/service_layer/internal/app/services/stores"
	"github.com/cartrewards/service_layer/internal/app/storage"
	svcerrors "github.com/cartrewards/service_layer/internal/errors"
	"github.com/cartrewards/service_layer/internal/httputil"
	"github.com/cartrewards/service_layer/internal/middleware"
	"github.com/cartrewards/service_layer/pkg/logger"
)

// Options configures the HTTP surface around the application.
type Options struct {
	// AllowedOrigins feeds CORS and the websocket origin check. Empty allows
	// every origin.
	AllowedOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	Logger      *logger.Logger
	// StartedAt anchors the uptime reported by /healthz.
	StartedAt time.Time
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	log       *logger.Logger
	upgrader  websocket.Upgrader
	startedAt time.Time
}

// NewHandler returns the router exposing the REST API, the cart session
// websocket, /healthz and /metrics.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("http")
	}
	started := opts.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := middleware.NewCORSMiddleware(origins)

	h := &handler{
		app:       application,
		log:       log,
		startedAt: started,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.AllowsOrigin(origin)
			},
		},
	}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stores", h.listStores).Methods(http.MethodGet)
	api.HandleFunc("/stores", h.createStore).Methods(http.MethodPost)
	api.HandleFunc("/stores/{shopifyStoreId}", h.getStore).Methods(http.MethodGet)
	api.HandleFunc("/stores/{shopifyStoreId}", h.updateStore).Methods(http.MethodPatch)
	api.HandleFunc("/stores/{shopifyStoreId}/milestones", h.storeMilestones).Methods(http.MethodGet)

	api.HandleFunc("/rewards/eligibility", h.eligibility).Methods(http.MethodPost)
	api.HandleFunc("/rewards/selection", h.selection).Methods(http.MethodPost)
	api.HandleFunc("/rewards/session", h.rewardSession).Methods(http.MethodGet)

	api.HandleFunc("/session", h.session).Methods(http.MethodGet)
	api.HandleFunc("/session/resolve", h.resolveSession).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, svcerrors.NotFound("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	// CORS wraps the router so preflight requests are answered before route
	// method matching.
	var next http.Handler = r
	if opts.RateLimiter != nil {
		next = opts.RateLimiter.Handler(next)
	}
	next = cors.Handler(next)
	return middleware.NewTracingMiddleware(log).Handler(next)
}

// writeError maps domain and storage errors onto HTTP responses.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *stores.ValidationError
	switch {
	case svcerrors.GetServiceError(err) != nil:
		httputil.WriteError(w, err)
	case errors.As(err, &validation):
		httputil.WriteError(w, svcerrors.BadRequest(validation.Error(), err).WithDetails("field", validation.Field))
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteError(w, svcerrors.NotFound("store not found"))
	case errors.Is(err, storage.ErrConflict):
		httputil.WriteError(w, svcerrors.Conflict("store already exists", err))
	case errors.Is(err, rewards.ErrInvalidCartValue),
		errors.Is(err, rewards.ErrUnknownProduct),
		errors.Is(err, rewards.ErrProductRequired):
		httputil.WriteError(w, svcerrors.BadRequest(err.Error(), err))
	default:
		h.log.WithTrace(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		httputil.WriteError(w, err)
	}
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := httputil.DecodeJSON(r.Body, dst); err != nil {
		httputil.WriteError(w, svcerrors.BadRequest("invalid request body: "+err.Error(), err))
		return false
	}
	return true
}
