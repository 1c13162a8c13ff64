package equipment

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/platform/httpx"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// Handler wires HTTP endpoints for equipment management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs an equipment handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoutes registers equipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceEquipment, authz.ActionView))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceEquipment, authz.ActionEdit))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
	})
}

type equipmentRequest struct {
	Name            string  `json:"name" validate:"required"`
	Category        string  `json:"category"`
	Rate            float64 `json:"rate" validate:"gte=0"`
	RateUnit        string  `json:"rate_unit" validate:"required"`
	UnitMinutes     int     `json:"unit_minutes" validate:"gte=0"`
	RoundingMode    string  `json:"rounding_mode" validate:"omitempty,oneof=ceiling nearest"`
	RequiresBooking bool    `json:"requires_booking"`
	Note            string  `json:"note"`
}

type equipmentResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Rate            float64 `json:"rate"`
	RateUnit        string  `json:"rate_unit"`
	UnitMinutes     int     `json:"unit_minutes"`
	RoundingMode    string  `json:"rounding_mode"`
	RequiresBooking bool    `json:"requires_booking"`
	Note            string  `json:"note"`
}

func toResponse(e Equipment) equipmentResponse {
	return equipmentResponse{
		ID:              e.ID,
		Name:            e.Name,
		Category:        e.Category,
		Rate:            e.Rate,
		RateUnit:        e.RateUnit,
		UnitMinutes:     e.UnitMinutes,
		RoundingMode:    string(e.RoundingMode),
		RequiresBooking: e.RequiresBooking,
		Note:            e.Note,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list equipment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]equipmentResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get equipment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	e, err := h.service.Create(r.Context(), p.ID, CreateInput{
		Name:            req.Name,
		Category:        req.Category,
		Rate:            req.Rate,
		RateUnit:        req.RateUnit,
		UnitMinutes:     req.UnitMinutes,
		RoundingMode:    RoundingMode(req.RoundingMode),
		RequiresBooking: req.RequiresBooking,
		Note:            req.Note,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(e))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	e, err := h.service.Update(r.Context(), p.ID, chi.URLParam(r, "id"), UpdateInput{
		Name:            req.Name,
		Category:        req.Category,
		Rate:            req.Rate,
		RateUnit:        req.RateUnit,
		UnitMinutes:     req.UnitMinutes,
		RoundingMode:    RoundingMode(req.RoundingMode),
		RequiresBooking: req.RequiresBooking,
		Note:            req.Note,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (equipmentRequest, bool) {
	var req equipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Error())
			return req, false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrNegativeRate), errors.Is(err, ErrInvalidGranularity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("equipment request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
