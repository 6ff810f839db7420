package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"courtbook/internal/models"
)

const (
	EventReservationCreated     = "reservation_created"
	EventReservationConfirmed   = "reservation_confirmed"
	EventReservationCancelled   = "reservation_cancelled"
	EventReservationRescheduled = "reservation_rescheduled"
	EventReservationsCompleted  = "reservations_completed"
)

// ReservationEventPayload is the snapshot handed to notification consumers.
type ReservationEventPayload struct {
	ReservationID int64  `json:"reservation_id"`
	CourtID       int64  `json:"court_id"`
	RequesterID   string `json:"requester_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	PreviousDate  string `json:"previous_date,omitempty"`
	PreviousStart string `json:"previous_start,omitempty"`
	PreviousEnd   string `json:"previous_end,omitempty"`
	ChangedBy     string `json:"changed_by,omitempty"`
	Privileged    bool   `json:"privileged,omitempty"`
}

// NewReservationPayload snapshots r.
func NewReservationPayload(r *models.Reservation, changedBy string, privileged bool) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID: r.ID,
		CourtID:       r.CourtID,
		RequesterID:   r.RequesterID,
		Date:          models.FormatDate(r.Date),
		StartTime:     r.StartTime.String(),
		EndTime:       r.EndTime.String(),
		Status:        r.Status,
		ChangedBy:     changedBy,
		Privileged:    privileged,
	}
}

// SweepPayload reports a completion sweep.
type SweepPayload struct {
	Completed int64     `json:"completed"`
	At        time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber synchronously and joins their errors. A
// failing handler does not stop the others.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
