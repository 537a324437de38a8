// Package events carries entitlement changes from the ledger to notification sinks.
// Delivery is fire-and-forget: a failing sink never affects the ledger.
package events

import (
	"context"
	"encoding/json"
	"time"

	"sales-offers-billing/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const TopicEntitlement = "billing.entitlement"

type EntitlementEvent struct {
	Type             string     `json:"type"`
	AccountId        uuid.UUID  `json:"account_id"`
	SubscriptionId   uuid.UUID  `json:"subscription_id"`
	PlanName         string     `json:"plan_name"`
	Email            string     `json:"email,omitempty"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt EntitlementEvent)
}

// BusPublisher writes entitlement events to an in-process watermill topic.
type BusPublisher struct {
	publisher message.Publisher
	logger    logger.ILogger
}

func NewBusPublisher(publisher message.Publisher, log logger.ILogger) *BusPublisher {
	return &BusPublisher{publisher: publisher, logger: log}
}

func (p *BusPublisher) Publish(ctx context.Context, evt EntitlementEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error(logger.ModuleEvents, "Failed to encode entitlement event", map[string]interface{}{"error": err.Error(), "type": evt.Type})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(TopicEntitlement, msg); err != nil {
		p.logger.Error(logger.ModuleEvents, "Failed to publish entitlement event", map[string]interface{}{
			"error":           err.Error(),
			"type":            evt.Type,
			"subscription_id": evt.SubscriptionId.String(),
		})
	}
}
