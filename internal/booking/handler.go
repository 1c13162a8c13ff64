package booking

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/billing"
	"github.com/labkeeper/labkeeper/internal/equipment"
	"github.com/labkeeper/labkeeper/internal/platform/httpx"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// Handler wires HTTP endpoints for reservations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a booking handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoutes registers reservation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceReservation, authz.ActionView))
		r.Get("/", h.handleList)
		r.Post("/estimate", h.handleEstimate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceReservation, authz.ActionCreate))
		r.Post("/", h.handleCreate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceReservation, authz.ActionEdit))
		r.Post("/{id}/check-in", h.handleCheckIn)
		r.Post("/{id}/check-out", h.handleCheckOut)
		r.Post("/{id}/cancel", h.handleCancel)
		r.Post("/{id}/no-show", h.handleNoShow)
	})
}

type createRequest struct {
	EquipmentID string    `json:"equipment_id" validate:"required,uuid4"`
	ProjectID   string    `json:"project_id" validate:"omitempty,uuid4"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Note        string    `json:"note"`
}

type estimateRequest struct {
	EquipmentID string    `json:"equipment_id" validate:"required,uuid4"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
}

type checkOutRequest struct {
	Cycles int `json:"cycles" validate:"gte=0"`
}

type reservationResponse struct {
	ID              string     `json:"id"`
	PrincipalID     string     `json:"principal_id"`
	CompanyID       string     `json:"company_id"`
	EquipmentID     string     `json:"equipment_id"`
	ProjectID       string     `json:"project_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`
	Status          string     `json:"status"`
	Note            string     `json:"note,omitempty"`
}

type usageResponse struct {
	ID              string    `json:"id"`
	ReservationID   string    `json:"reservation_id"`
	EquipmentID     string    `json:"equipment_id"`
	DurationMinutes int       `json:"duration_minutes"`
	Cycles          int       `json:"cycles"`
	RecordedAt      time.Time `json:"recorded_at"`
}

func toReservationResponse(r Reservation) reservationResponse {
	return reservationResponse{
		ID:              r.ID,
		PrincipalID:     r.PrincipalID,
		CompanyID:       r.CompanyID,
		EquipmentID:     r.EquipmentID,
		ProjectID:       r.ProjectID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		ActualStartTime: r.ActualStartTime,
		ActualEndTime:   r.ActualEndTime,
		Status:          string(r.Status),
		Note:            r.Note,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	res, err := h.service.Create(r.Context(), p, CreateInput{
		EquipmentID: req.EquipmentID,
		ProjectID:   req.ProjectID,
		Start:       req.StartTime,
		End:         req.EndTime,
		Note:        req.Note,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReservationResponse(res))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	items, err := h.service.List(r.Context(), p, r.URL.Query().Get("equipment_id"), limit)
	if err != nil {
		h.logger.Error("list reservations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]reservationResponse, 0, len(items))
	for _, res := range items {
		out = append(out, toReservationResponse(res))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	res, err := h.service.CheckIn(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	var req checkOutRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	_, usage, err := h.service.CheckOut(r.Context(), p, chi.URLParam(r, "id"), req.Cycles)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usageResponse{
		ID:              usage.ID,
		ReservationID:   usage.ReservationID,
		EquipmentID:     usage.EquipmentID,
		DurationMinutes: usage.DurationMinutes,
		Cycles:          usage.Cycles,
		RecordedAt:      usage.RecordedAt,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	res, err := h.service.Cancel(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *Handler) handleNoShow(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	res, err := h.service.MarkNoShow(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := h.service.EstimateCost(r.Context(), req.EquipmentID, Interval{Start: req.StartTime, End: req.EndTime})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"amount": amount})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Error())
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// respondServiceError keeps the three caller-visible failure families
// distinguishable: conflict, permission, malformed input.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var (
		overlapErr    *OverlapError
		validationErr *ValidationError
		transitionErr *TransitionError
	)
	switch {
	case errors.As(err, &overlapErr):
		httpx.JSON(w, http.StatusConflict, httpx.ProblemDetail{
			Type:   "urn:labkeeper:overlap-conflict",
			Title:  "Overlap Conflict",
			Status: http.StatusConflict,
			Detail: overlapErr.Error(),
		})
	case errors.As(err, &validationErr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationErr.Error())
	case errors.As(err, &transitionErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Illegal State Transition", transitionErr.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, equipment.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, billing.ErrDuplicateUsage):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("reservation request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
