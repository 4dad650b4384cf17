package reminder

import (
	"context"
	"errors"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

// Notification is what reaches the user when a reminder fires.
type Notification struct {
	UserID     string  `json:"-"`
	Medication string  `json:"medication"`
	Dose       string  `json:"dose,omitempty"`
	TimeLocal  string  `json:"time_local"`
	FiredAt    int64   `json:"fired_at"`
	Payload    Payload `json:"payload"`
}

// Notifier delivers a fired reminder through one channel. Failures are
// reported but never stop the coordinator.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// MultiNotifier fans out to every channel; one failing channel does not
// keep the others from delivering.
type MultiNotifier []Notifier

func (m MultiNotifier) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HubNotifier pushes fired reminders to the owner's live WebSocket
// connections.
type HubNotifier struct {
	hub *websocket.Hub
}

func NewHubNotifier(hub *websocket.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (h *HubNotifier) Send(_ context.Context, n Notification) error {
	h.hub.SendReminderFired(n.UserID, n)
	return nil
}
