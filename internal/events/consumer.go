package events

import (
	"context"
	"encoding/json"
	"time"

	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/pkg/mailer"
	pkgEvents "sales-offers-billing/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Forwarder relays events to the cross-service bus.
type Forwarder interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Consumer sends customer notices and forwards events for every entitlement change.
type Consumer struct {
	subscriber message.Subscriber
	mailer     mailer.IEmailService
	forwarder  Forwarder
	logger     logger.ILogger
}

func NewConsumer(subscriber message.Subscriber, mail mailer.IEmailService, forwarder Forwarder, log logger.ILogger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		mailer:     mail,
		forwarder:  forwarder,
		logger:     log,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, TopicEntitlement)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.handle(ctx, msg)
		}
	}()
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	// Ack first; nothing downstream may cause a redelivery.
	msg.Ack()

	var evt EntitlementEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		c.logger.Error(logger.ModuleEvents, "Dropping malformed entitlement event", map[string]interface{}{"error": err.Error()})
		return
	}

	c.notify(evt)
	c.forward(ctx, evt)
}

func (c *Consumer) notify(evt EntitlementEvent) {
	if c.mailer == nil || evt.Email == "" || evt.EndTime == nil {
		return
	}

	var err error
	switch evt.Type {
	case pkgEvents.SubscriptionActivated:
		err = c.mailer.SendSubscriptionActivated(evt.Email, evt.PlanName, *evt.EndTime)
	case pkgEvents.SubscriptionRenewed:
		err = c.mailer.SendSubscriptionRenewed(evt.Email, evt.PlanName, *evt.EndTime)
	default:
		return
	}
	if err != nil {
		c.logger.Warn(logger.ModuleEvents, "Failed to send subscription email", map[string]interface{}{
			"error":           err.Error(),
			"type":            evt.Type,
			"subscription_id": evt.SubscriptionId.String(),
		})
	}
}

func (c *Consumer) forward(ctx context.Context, evt EntitlementEvent) {
	if c.forwarder == nil {
		return
	}

	data := map[string]interface{}{
		"account_id":        evt.AccountId.String(),
		"subscription_id":   evt.SubscriptionId.String(),
		"plan_name":         evt.PlanName,
		"payment_reference": evt.PaymentReference,
	}
	if evt.EndTime != nil {
		data["end_time"] = evt.EndTime.Format(time.RFC3339)
	}
	if evt.Reason != "" {
		data["reason"] = evt.Reason
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := pkgEvents.BaseEvent{Type: evt.Type, Data: data, OccurredAt: evt.OccurredAt}
	if err := c.forwarder.Publish(ctx, out); err != nil {
		c.logger.Warn(logger.ModuleEvents, "Failed to forward event to NATS", map[string]interface{}{
			"error": err.Error(),
			"type":  evt.Type,
		})
	}
}
