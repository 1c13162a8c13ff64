package billing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/platform/httpx"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// Handler wires HTTP endpoints for usage and charges.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler constructs a billing handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers usage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceUsageRecord, authz.ActionView))
		r.Get("/", h.handleList)
	})
}

type chargeResponse struct {
	UsageID         string    `json:"usage_id"`
	ReservationID   string    `json:"reservation_id"`
	PrincipalID     string    `json:"principal_id"`
	EquipmentID     string    `json:"equipment_id"`
	DurationMinutes int       `json:"duration_minutes"`
	Cycles          int       `json:"cycles"`
	RecordedAt      time.Time `json:"recorded_at"`
	Amount          float64   `json:"amount"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	charges, err := h.service.ListCharges(r.Context(), p, r.URL.Query().Get("equipment_id"), limit)
	if err != nil {
		h.logger.Error("list charges", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]chargeResponse, 0, len(charges))
	for _, c := range charges {
		out = append(out, chargeResponse{
			UsageID:         c.Usage.ID,
			ReservationID:   c.Usage.ReservationID,
			PrincipalID:     c.Usage.PrincipalID,
			EquipmentID:     c.Usage.EquipmentID,
			DurationMinutes: c.Usage.DurationMinutes,
			Cycles:          c.Usage.Cycles,
			RecordedAt:      c.Usage.RecordedAt,
			Amount:          c.Amount,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
