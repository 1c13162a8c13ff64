package waitlist

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/booking"
	"github.com/labkeeper/labkeeper/internal/platform/httpx"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// Handler wires HTTP endpoints for the waitlist.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a waitlist handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoutes registers waitlist routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWaitlist, authz.ActionView))
		r.Get("/", h.handleList)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWaitlist, authz.ActionCreate))
		r.Post("/", h.handleEnqueue)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWaitlist, authz.ActionEdit))
		r.Post("/{id}/cancel", h.handleCancel)
	})
}

type enqueueRequest struct {
	EquipmentID string    `json:"equipment_id" validate:"required,uuid4"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
}

type entryResponse struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	EquipmentID string    `json:"equipment_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		PrincipalID: e.PrincipalID,
		EquipmentID: e.EquipmentID,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
	}
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Error())
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	e, err := h.service.Enqueue(r.Context(), p, req.EquipmentID, booking.Interval{Start: req.StartTime, End: req.EndTime})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(e))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	if err := h.service.Cancel(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	items, err := h.service.List(r.Context(), p, r.URL.Query().Get("equipment_id"))
	if err != nil {
		h.logger.Error("list waitlist", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotPending):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Illegal State Transition", err.Error())
	case errors.Is(err, ErrInvalidInterval):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error("waitlist request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
