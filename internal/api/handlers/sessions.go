// Package handlers contains the HTTP handlers of the SkyRisk API.
//
// Handlers depend on small service interfaces declared here rather than on
// concrete types, so they can be tested with in-package mocks.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skyrisk/internal/core"
	"skyrisk/internal/dashboard"
	"skyrisk/internal/location"
	"skyrisk/internal/types"
)

// DashboardService is the session side of dashboard.Controller.
type DashboardService interface {
	NewSession(ctx context.Context) dashboard.ViewState
	Session(ctx context.Context, id string) (dashboard.ViewState, error)
	SetDate(ctx context.Context, id, date string) (dashboard.ViewState, error)
	SetCity(ctx context.Context, id, query string) (dashboard.ViewState, error)
	Dismiss(ctx context.Context, id string) (dashboard.ViewState, error)
	UseMyLocation(ctx context.Context, id string, report *location.PositionReport) (dashboard.ViewState, error)
	SearchCity(ctx context.Context, id string) (dashboard.ViewState, error)
}

// SessionHandler exposes dashboard sessions over HTTP. Every successful
// response carries the derived View of the session.
type SessionHandler struct {
	service   DashboardService
	validator *core.Validator
	logger    *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(svc DashboardService, val *core.Validator, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &SessionHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the session endpoints on r (expected at /v1/sessions).
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreate)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/date", h.HandleSetDate)
		r.Put("/city", h.HandleSetCity)
		r.Post("/locate", h.HandleLocate)
		r.Post("/search", h.HandleSearch)
		r.Post("/dismiss", h.HandleDismiss)
	})
}

// SetDateRequest is the body of PUT /v1/sessions/{id}/date.
type SetDateRequest struct {
	Date string `json:"date" validate:"required,iso_date"`
}

// SetCityRequest is the body of PUT /v1/sessions/{id}/city. An empty city
// clears the search field.
type SetCityRequest struct {
	City string `json:"city" validate:"max=100"`
}

// SearchRequest is the optional body of POST /v1/sessions/{id}/search.
// When City is set it replaces the session's search field first.
type SearchRequest struct {
	City *string `json:"city,omitempty" validate:"omitnil,max=100"`
}

// HandleCreate handles POST /v1/sessions.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	state := h.service.NewSession(r.Context())
	w.Header().Set("Location", "/v1/sessions/"+state.SessionID)
	core.Data(w, r, http.StatusCreated, dashboard.Derive(state))
}

// HandleGet handles GET /v1/sessions/{id}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.Session(r.Context(), sessionID(r)))
}

// HandleSetDate handles PUT /v1/sessions/{id}/date.
func (h *SessionHandler) HandleSetDate(w http.ResponseWriter, r *http.Request) {
	var req SetDateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.service.SetDate(r.Context(), sessionID(r), req.Date))
}

// HandleSetCity handles PUT /v1/sessions/{id}/city.
func (h *SessionHandler) HandleSetCity(w http.ResponseWriter, r *http.Request) {
	var req SetCityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.service.SetCity(r.Context(), sessionID(r), req.City))
}

// HandleLocate handles POST /v1/sessions/{id}/locate. The body is the
// browser's geolocation outcome.
func (h *SessionHandler) HandleLocate(w http.ResponseWriter, r *http.Request) {
	var report location.PositionReport
	if err := core.DecodeJSON(w, r, &report); err != nil {
		core.Error(w, r, err)
		return
	}
	h.respond(w, r)(h.service.UseMyLocation(r.Context(), sessionID(r), &report))
}

// HandleSearch handles POST /v1/sessions/{id}/search.
func (h *SessionHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if r.ContentLength != 0 {
		var req SearchRequest
		if !h.decode(w, r, &req) {
			return
		}
		if req.City != nil {
			if _, err := h.service.SetCity(r.Context(), id, *req.City); err != nil {
				core.Error(w, r, err)
				return
			}
		}
	}
	h.respond(w, r)(h.service.SearchCity(r.Context(), id))
}

// HandleDismiss handles POST /v1/sessions/{id}/dismiss.
func (h *SessionHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.Dismiss(r.Context(), sessionID(r)))
}

// decode reads and validates a JSON body, writing the error response itself
// when it fails.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

// respond returns a writer for a (state, error) pair so service calls can
// be passed straight through.
func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request) func(dashboard.ViewState, error) {
	return func(state dashboard.ViewState, err error) {
		if err != nil {
			if types.CodeOf(err) == types.ErrCodeInternalUnexpected {
				h.logger.ErrorContext(r.Context(), "session request failed",
					"session_id", sessionID(r), "error", err)
			}
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, http.StatusOK, dashboard.Derive(state))
	}
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}
