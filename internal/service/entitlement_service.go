// FILE: internal/service/entitlement_service.go
// Quota checks against the account's effectively active subscription
package service

import (
	"context"
	"fmt"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/apperror"

	"github.com/google/uuid"
)

const freeTierName = "Free"

type QuotaDecision struct {
	Feature  entity.FeatureKey
	Allowed  bool
	Limit    int
	Used     int
	PlanName string
}

func (d QuotaDecision) Unlimited() bool {
	return d.Limit == entity.UnlimitedQuota
}

// Err returns a *apperror.QuotaExceededError when the action is not allowed.
func (d QuotaDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return &apperror.QuotaExceededError{Feature: string(d.Feature), Limit: d.Limit, Used: d.Used}
}

// EvaluateQuota is the pure decision over a features map.
func EvaluateQuota(features entity.PlanFeatures, key entity.FeatureKey, usage int) QuotaDecision {
	limit := features.Limit(key)
	return QuotaDecision{
		Feature: key,
		Allowed: limit == entity.UnlimitedQuota || usage < limit,
		Limit:   limit,
		Used:    usage,
	}
}

type EntitlementService interface {
	CheckQuota(ctx context.Context, accountId uuid.UUID, key entity.FeatureKey, usage int) (QuotaDecision, error)
}

type entitlementService struct {
	ledger SubscriptionService
}

func NewEntitlementService(ledger SubscriptionService) EntitlementService {
	return &entitlementService{ledger: ledger}
}

// CheckQuota never writes. Subscription state is re-read on every call.
func (s *entitlementService) CheckQuota(ctx context.Context, accountId uuid.UUID, key entity.FeatureKey, usage int) (QuotaDecision, error) {
	if !key.IsKnown() {
		return QuotaDecision{}, fmt.Errorf("feature %q: %w", key, apperror.ErrInvalidInput)
	}
	if usage < 0 {
		return QuotaDecision{}, fmt.Errorf("usage %d: %w", usage, apperror.ErrInvalidInput)
	}

	sub, err := s.ledger.GetActiveSubscription(ctx, accountId)
	if err != nil {
		return QuotaDecision{}, err
	}

	features := entity.FreeTierFeatures()
	planName := freeTierName
	if sub != nil {
		features = sub.PlanSnapshot.Features
		planName = sub.PlanSnapshot.Name
	}

	decision := EvaluateQuota(features, key, usage)
	decision.PlanName = planName
	return decision, nil
}
