package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skyrisk/internal/core"
	"skyrisk/internal/dashboard"
	"skyrisk/internal/types"
)

// RiskService scores explicit coordinates without a session.
type RiskService interface {
	Assess(ctx context.Context, lat, lon float64, date string) (*dashboard.Assessment, error)
}

// ClimatologyLister returns the full monthly table.
type ClimatologyLister interface {
	All(ctx context.Context) ([]types.ClimatologyRecord, error)
}

// RiskHandler serves the stateless risk and climatology endpoints.
type RiskHandler struct {
	service     RiskService
	climatology ClimatologyLister
	clock       types.Clock
	logger      *slog.Logger
}

// NewRiskHandler creates a RiskHandler. A nil clock uses the system time.
func NewRiskHandler(svc RiskService, clim ClimatologyLister, clock types.Clock, logger *slog.Logger) *RiskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RiskHandler{service: svc, climatology: clim, clock: clock, logger: logger}
}

// RegisterRoutes mounts the risk endpoints on the /v1 router.
func (h *RiskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/risk", h.HandleAssess)
	r.Get("/climatology", h.HandleClimatology)
}

// HandleAssess handles GET /v1/risk?lat=&lon=&date=. The date defaults to
// today in UTC.
func (h *RiskHandler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseCoordinate(q.Get("lat"), "lat", types.ErrCodeValidationInvalidLat)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	lon, err := parseCoordinate(q.Get("lon"), "lon", types.ErrCodeValidationInvalidLon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	date := q.Get("date")
	if date == "" {
		date = h.clock.Now().UTC().Format(types.DateLayout)
	} else if _, err := types.ParseDate(date); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.Assess(r.Context(), lat, lon, date)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeInternalUnexpected {
			h.logger.ErrorContext(r.Context(), "risk assessment failed", "error", err)
		}
		core.Error(w, r, err)
		return
	}

	// Scores carry jitter, so responses must not be shared.
	w.Header().Set("Cache-Control", "no-store")
	core.Data(w, r, http.StatusOK, result)
}

// HandleClimatology handles GET /v1/climatology.
func (h *RiskHandler) HandleClimatology(w http.ResponseWriter, r *http.Request) {
	records, err := h.climatology.All(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	core.Data(w, r, http.StatusOK, records)
}

func parseCoordinate(raw, name string, code types.ErrorCode) (float64, error) {
	if raw == "" {
		return 0, types.NewAppError(types.ErrCodeValidationMissingField,
			name+" query parameter is required", nil)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, types.NewAppError(code, name+" must be a valid number", nil)
	}
	return v, nil
}
