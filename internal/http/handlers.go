// Package http serves the gateway over HTTP: one route for location lookup,
// one route per registered category, health and metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
	"github.com/kjstillabower/location-gateway/internal/provider"
	"github.com/kjstillabower/location-gateway/internal/service"
	"github.com/kjstillabower/location-gateway/internal/traffic"
	"github.com/kjstillabower/location-gateway/internal/validation"
)

// Gateway is the subset of service.Gateway the handlers call.
type Gateway interface {
	Location(ctx context.Context, query string) (models.Location, error)
	LocationByID(ctx context.Context, id int64) (models.Location, error)
	Records(ctx context.Context, category models.Category, loc models.Location) (any, error)
}

// HealthConfig holds the checks and thresholds for GET /health.
type HealthConfig struct {
	// StorePing is required; an unreachable store degrades the service.
	StorePing func(ctx context.Context) error
	// CachePing, when set, is reported under checks.cache. A cache failure
	// never degrades the service.
	CachePing func(ctx context.Context) error
	// ErrorWindow and ErrorRatePct enable the error-rate check when both are positive.
	ErrorWindow  time.Duration
	ErrorRatePct int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	gateway      Gateway
	healthConfig *HealthConfig
	logger       *zap.Logger
	minQueryLen  int
	maxQueryLen  int

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. Query lengths outside (0, max] fall back
// to the validation defaults.
func NewHandler(gateway Gateway, healthConfig *HealthConfig, logger *zap.Logger, minQueryLen, maxQueryLen int) *Handler {
	if minQueryLen <= 0 {
		minQueryLen = validation.DefaultMinQueryLen
	}
	if maxQueryLen <= 0 {
		maxQueryLen = validation.DefaultMaxQueryLen
	}
	return &Handler{
		gateway:      gateway,
		healthConfig: healthConfig,
		logger:       logger,
		minQueryLen:  minQueryLen,
		maxQueryLen:  maxQueryLen,
	}
}

// SetShuttingDown flips health to shutting-down. Call when SIGTERM/SIGINT is received.
func (h *Handler) SetShuttingDown(v bool) { h.shuttingDown.Store(v) }

// IsShuttingDown reports whether the process is draining.
func (h *Handler) IsShuttingDown() bool { return h.shuttingDown.Load() }

// GetLocation handles GET /location?data=<query>.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateQuery(r.URL.Query().Get("data"), h.minQueryLen, h.maxQueryLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	loc, err := h.gateway.Location(r.Context(), query)
	if err != nil {
		recordFailure(writeServiceError(w, r, "location", err))
		return
	}
	traffic.Record(traffic.Success)
	writeJSON(w, http.StatusOK, loc)
}

// GetCategory returns the handler for GET /<category>. The location is given
// either as ?location_id=<id> of a stored location or as ?data=<query>.
func (h *Handler) GetCategory(category models.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := h.requestLocation(w, r)
		if !ok {
			return
		}

		records, err := h.gateway.Records(r.Context(), category, loc)
		if err != nil {
			recordFailure(writeServiceError(w, r, category.String(), err))
			return
		}
		traffic.Record(traffic.Success)
		writeJSON(w, http.StatusOK, records)
	}
}

// requestLocation resolves the request's location and writes the error
// response itself when it cannot.
func (h *Handler) requestLocation(w http.ResponseWriter, r *http.Request) (models.Location, bool) {
	params := r.URL.Query()
	if raw := params.Get("location_id"); raw != "" {
		id, err := validation.ParseLocationID(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
			return models.Location{}, false
		}
		loc, err := h.gateway.LocationByID(r.Context(), id)
		if err != nil {
			recordFailure(writeServiceError(w, r, "location", err))
			return models.Location{}, false
		}
		return loc, true
	}

	query, err := validation.ValidateQuery(params.Get("data"), h.minQueryLen, h.maxQueryLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return models.Location{}, false
	}
	loc, err := h.gateway.Location(r.Context(), query)
	if err != nil {
		recordFailure(writeServiceError(w, r, "location", err))
		return models.Location{}, false
	}
	return loc, true
}

// NotFound answers every unrouted path with the fixed not-found body.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"status":       http.StatusNotFound,
		"responseText": "This item could not be found..",
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "location-gateway",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > error rate > healthy.
// The cache check is informational only.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := make(map[string]string)
	if h.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}, checks
	}

	if h.healthConfig.CachePing != nil {
		checks["cache"] = checkString(h.healthConfig.CachePing(ctx))
	}
	if h.healthConfig.StorePing != nil {
		err := h.healthConfig.StorePing(ctx)
		checks["store"] = checkString(err)
		if err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}, checks
		}
	}

	if h.healthConfig.ErrorWindow > 0 && h.healthConfig.ErrorRatePct > 0 {
		failures, total := traffic.ErrorRate(h.healthConfig.ErrorWindow)
		if total > 0 && failures*100 >= h.healthConfig.ErrorRatePct*total {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}, checks
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}, checks
}

func checkString(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

// httpStatuser is implemented by upstream errors that carry their own status.
type httpStatuser interface {
	HTTPStatus() int
}

// recordFailure counts server-side failures toward the health error rate.
// Client-caused outcomes such as unknown locations are not recorded.
func recordFailure(status int) {
	if status >= http.StatusInternalServerError {
		traffic.Record(traffic.Failure)
	}
}

// writeServiceError maps a gateway error onto a response and returns the
// status written. Store and unknown failures never leak their message.
func writeServiceError(w http.ResponseWriter, r *http.Request, what string, err error) int {
	logger := observability.LoggerFromContext(r.Context())
	var statuser httpStatuser

	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownLocation):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", err.Error())
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownCategory):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return http.StatusNotFound
	case errors.As(err, &statuser):
		logger.Warn("upstream error", zap.String("resource", what), zap.Error(err))
		writeError(w, r, statuser.HTTPStatus(), "UPSTREAM_ERROR", "Unable to fetch "+what+" data")
		return statuser.HTTPStatus()
	case errors.Is(err, provider.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "location not found")
		return http.StatusNotFound
	case errors.Is(err, provider.ErrCircuitOpen):
		logger.Warn("upstream unavailable", zap.String("resource", what), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch "+what+" data")
		return http.StatusServiceUnavailable
	default:
		logger.Error("request failed", zap.String("resource", what), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return http.StatusInternalServerError
	}
}
