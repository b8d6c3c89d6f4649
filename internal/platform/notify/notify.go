// Package notify is the outbound notification sink for scheduling
// events. Delivery is best-effort: callers log publish failures and
// never roll back the mutation that produced the event.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the routing key for an outbound notification.
type EventType string

const (
	EventRescheduleRequested EventType = "reschedule.requested"
	EventRescheduleApproved  EventType = "reschedule.approved"
	EventRescheduleRejected  EventType = "reschedule.rejected"
	EventRescheduleCancelled EventType = "reschedule.cancelled"
	EventExceptionCreated    EventType = "exception.created"
	EventSlotBooked          EventType = "slot.booked"
)

// Event is a single outbound notification.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	Type          EventType         `json:"type"`
	RecipientID   string            `json:"recipient_id"`
	RecipientRole string            `json:"recipient_role"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	Data          map[string]string `json:"data,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewEvent builds an event with an assigned ID and timestamp.
func NewEvent(t EventType, recipientID, recipientRole, subject, body string) *Event {
	return &Event{
		ID:            uuid.New(),
		Type:          t,
		RecipientID:   recipientID,
		RecipientRole: recipientRole,
		Subject:       subject,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
	}
}

// Notifier publishes notification events to a delivery channel.
type Notifier interface {
	Publish(ctx context.Context, e *Event) error
}

// Noop discards all events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *Event) error { return nil }

// Mock records published events for tests.
type Mock struct {
	mu         sync.Mutex
	events     []*Event
	ShouldFail bool
	FailError  string
}

func (m *Mock) Publish(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if m.ShouldFail {
		msg := m.FailError
		if msg == "" {
			msg = "publish failed"
		}
		return errors.New(msg)
	}
	return nil
}

// Events returns a copy of the recorded events.
func (m *Mock) Events() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}
