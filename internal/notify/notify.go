// Package notify broadcasts job lifecycle events to connected clients.
//
// Delivery is fire and forget: no acknowledgment, no persistence, no replay
// for listeners that connect after an event fired.
package notify

import "context"

// Event types
const (
	TypeProgress  = "progress"
	TypeCompleted = "completed"
	TypeFailed    = "failed"
)

// Event is one job lifecycle notification.
type Event struct {
	Type     string  `json:"type"`
	JobID    string  `json:"job_id"`
	UserID   string  `json:"-"` // routing only, not sent to clients
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Title    string  `json:"title,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Notifier publishes events to whoever is listening right now.
type Notifier interface {
	Publish(ctx context.Context, ev *Event)
}

// Discard is a Notifier that drops everything. Useful in tests and when no
// push channel is configured.
type Discard struct{}

func (Discard) Publish(context.Context, *Event) {}
