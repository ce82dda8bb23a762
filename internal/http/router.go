package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Categories     []models.Category
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter mounts the handler's routes. Lookup routes are rate limited and
// carry the request timeout; health and metrics are not.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(opts.Logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter))
	if opts.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	api.HandleFunc("/location", h.GetLocation).Methods(http.MethodGet)
	for _, c := range opts.Categories {
		api.HandleFunc("/"+c.String(), h.GetCategory(c)).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(h.NotFound)

	return cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{CorrelationIDHeader},
		ExposedHeaders: []string{CorrelationIDHeader},
	}).Handler(router)
}
