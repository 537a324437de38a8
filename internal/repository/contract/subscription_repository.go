package contract

import (
	"context"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	// Plans
	CreatePlan(ctx context.Context, plan *entity.SubscriptionPlan) error
	UpdatePlan(ctx context.Context, plan *entity.SubscriptionPlan) error
	FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.SubscriptionPlan, error)
	FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.SubscriptionPlan, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, subscription *entity.Subscription) error
	FindOneSubscription(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)
	FindAllSubscriptions(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error)

	// Activate moves a pending subscription to active. token is stored only when non-nil.
	// It returns false when the subscription is not pending or the account already holds
	// another subscription that is active at start.
	Activate(ctx context.Context, id uuid.UUID, start, end time.Time, reference string, token *string) (bool, error)
	ExtendEndTime(ctx context.Context, id uuid.UUID, end time.Time) error
	// Cancel returns false when the subscription was not active.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
