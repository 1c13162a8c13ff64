package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/labkeeper/labkeeper/internal/waitlist"
)

// PromotionHandler consumes freed-window events and promotes the next
// pending waitlist entry. It lives entirely outside the reservation
// create/cancel path.
type PromotionHandler struct {
	service *waitlist.Service
	client  *Client
	logger  *slog.Logger
}

// NewPromotionHandler constructs a PromotionHandler.
func NewPromotionHandler(service *waitlist.Service, client *Client, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{service: service, client: client, logger: logger}
}

// HandleWaitlistPromote processes TaskTypeWaitlistPromote tasks.
func (h *PromotionHandler) HandleWaitlistPromote(ctx context.Context, t *asynq.Task) error {
	var payload WaitlistPromotePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return h.service.PromoteNext(ctx, payload.EquipmentID, payload.StartTime, payload.EndTime, notifierFunc(h.notify))
}

func (h *PromotionHandler) notify(ctx context.Context, e waitlist.Entry) error {
	if h.client == nil {
		return nil
	}
	return h.client.Notify(ctx, NotifyPayload{
		PrincipalID: e.PrincipalID,
		Kind:        "waitlist_slot_available",
		EquipmentID: e.EquipmentID,
	})
}

type notifierFunc func(ctx context.Context, e waitlist.Entry) error

func (f notifierFunc) SlotAvailable(ctx context.Context, e waitlist.Entry) error {
	return f(ctx, e)
}

// HandleNotifyTask processes TaskTypeNotify tasks. The delivery transport is
// an external collaborator; the worker records the dispatch and hands off.
func HandleNotifyTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if logger != nil {
			logger.Info("dispatch notification",
				slog.String("principal", payload.PrincipalID),
				slog.String("kind", payload.Kind),
				slog.String("equipment", payload.EquipmentID))
		}
		return nil
	}
}
