package events

import "time"

// Billing event types published to the bus.
const (
	SubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	SubscriptionRenewed   = "SUBSCRIPTION_RENEWED"
	SubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	RenewalFailed         = "SUBSCRIPTION_RENEWAL_FAILED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SUBSCRIPTION_ACTIVATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func NewEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
