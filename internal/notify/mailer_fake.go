package notify

import (
	"context"
	"sync"
)

// RecordingMailer captures sent notifications for assertions. FailFirst
// makes the first N sends fail to exercise retry paths.
type RecordingMailer struct {
	mu        sync.Mutex
	sent      []Notification
	FailFirst int
	failed    int
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) Send(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed < m.FailFirst {
		m.failed++
		return errSendFailed
	}
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of delivered notifications in order.
func (m *RecordingMailer) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification{}, m.sent...)
}

// SentOfKind filters delivered notifications by kind.
func (m *RecordingMailer) SentOfKind(kind Kind) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
