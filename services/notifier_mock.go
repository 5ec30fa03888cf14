package services

import (
	"context"
	"sync"
)

// RecordingNotifier is a Notifier for tests that keeps every notification.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

// NewRecordingNotifier creates an empty recording notifier
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// SetAsMockForTesting installs this notifier as the process notifier
func (r *RecordingNotifier) SetAsMockForTesting() {
	SetNotifier(r)
}

func (r *RecordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of every recorded notification
func (r *RecordingNotifier) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfType returns recorded notifications with the given type
func (r *RecordingNotifier) OfType(notificationType string) []Notification {
	var out []Notification
	for _, n := range r.Sent() {
		if n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}
