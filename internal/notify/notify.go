// Package notify raises desktop notifications over D-Bus.
package notify

import "context"

// Urgency represents notification priority levels per freedesktop spec.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its server-assigned ID.
	// Returns 0 and nil error if notifications are unavailable.
	Notify(ctx context.Context, n Notification) (uint32, error)
	// Close withdraws a notification by ID.
	Close(ctx context.Context, id uint32) error
}

// stubNotifier swallows all calls. It serves non-Linux builds and Linux
// hosts without a session bus, so the daemon runs headless.
type stubNotifier struct{}

func (s *stubNotifier) Notify(context.Context, Notification) (uint32, error) {
	return 0, nil
}

func (s *stubNotifier) Close(context.Context, uint32) error {
	return nil
}
