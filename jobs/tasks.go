// Package jobs wires background task processing for work that must stay off
// the request path: waitlist promotion and notification dispatch.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/labkeeper/labkeeper/internal/booking"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWaitlistPromote is emitted when a reservation cancellation
	// frees a window on a piece of equipment.
	TaskTypeWaitlistPromote = "waitlist:promote"
	// TaskTypeNotify is the task type for outbound notifications. The
	// delivery transport lives outside this service.
	TaskTypeNotify = "notify:send"
)

// WaitlistPromotePayload identifies the freed window.
type WaitlistPromotePayload struct {
	EquipmentID string    `json:"equipment_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// NotifyPayload describes a notification to dispatch.
type NotifyPayload struct {
	PrincipalID string `json:"principal_id"`
	Kind        string `json:"kind"`
	EquipmentID string `json:"equipment_id,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// NewWaitlistPromoteTask constructs an Asynq task for a freed window.
func NewWaitlistPromoteTask(payload WaitlistPromotePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWaitlistPromote, data), nil
}

// NewNotifyTask constructs an Asynq task for a notification.
func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotify, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// ReservationCancelled enqueues a waitlist promotion task for the freed
// window. Implements the booking service's EventPublisher.
func (c *Client) ReservationCancelled(ctx context.Context, equipmentID string, slot booking.Interval) error {
	task, err := NewWaitlistPromoteTask(WaitlistPromotePayload{
		EquipmentID: equipmentID,
		StartTime:   slot.Start,
		EndTime:     slot.End,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Notify enqueues a notification task.
func (c *Client) Notify(ctx context.Context, payload NotifyPayload) error {
	task, err := NewNotifyTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
