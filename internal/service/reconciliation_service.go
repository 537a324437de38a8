// FILE: internal/service/reconciliation_service.go
// Applies gateway outcomes to the ledger exactly once per payment reference
package service

import (
	"context"
	"fmt"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/events"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/repository/unitofwork"
	pkgEvents "sales-offers-billing/pkg/events"
	"sales-offers-billing/pkg/gateway"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type ReconcileResult struct {
	Payment      *entity.Payment
	Subscription *entity.Subscription
	// Applied is true only for the call that performed the transition.
	Applied bool
}

type ReconciliationService interface {
	Reconcile(ctx context.Context, reference string, outcome gateway.Outcome) (*ReconcileResult, error)
}

type reconciliationService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  events.Publisher
	logger     logger.ILogger
	now        func() time.Time
}

func NewReconciliationService(uowFactory unitofwork.RepositoryFactory, publisher events.Publisher, log logger.ILogger) ReconciliationService {
	return &reconciliationService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *reconciliationService) Reconcile(ctx context.Context, reference string, outcome gateway.Outcome) (*ReconcileResult, error) {
	ctx, span := otel.Tracer("billing").Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", reference),
		attribute.String("payment.outcome", string(outcome.Kind)),
	)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	payment, err := uow.PaymentRepository().FindOne(ctx, specification.ByReference{Reference: reference})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", reference, apperror.ErrNotFound)
	}

	if payment.Status.IsTerminal() {
		return s.current(ctx, uow, payment)
	}

	switch outcome.Kind {
	case gateway.Succeeded:
		return s.applySuccess(ctx, payment, outcome)
	case gateway.Rejected, gateway.PrepaidCardRejected:
		return s.applyRejection(ctx, uow, payment, outcome)
	default:
		// StillPending, NotFound, GatewayUnavailable leave state untouched
		return s.current(ctx, uow, payment)
	}
}

func (s *reconciliationService) applyRejection(ctx context.Context, uow unitofwork.UnitOfWork, payment *entity.Payment, outcome gateway.Outcome) (*ReconcileResult, error) {
	reason := outcome.Reason
	if outcome.Kind == gateway.PrepaidCardRejected {
		reason = entity.FailureReasonPrepaidCard
	}
	if reason == "" {
		reason = "rejected by gateway"
	}

	won, err := uow.PaymentRepository().TransitionStatus(ctx, payment.Reference,
		entity.PaymentStatusPending, entity.PaymentStatusFailed, reason, s.now())
	if err != nil {
		return nil, err
	}
	if !won {
		return s.reload(ctx, payment.Reference)
	}

	s.logger.Info(logger.ModuleReconcile, "Payment failed", map[string]interface{}{
		"reference": payment.Reference,
		"outcome":   string(outcome.Kind),
		"reason":    reason,
	})

	result, err := s.reload(ctx, payment.Reference)
	if err != nil {
		return nil, err
	}
	result.Applied = true
	return result, nil
}

// grant describes the entitlement change a successful payment produced.
type grant struct {
	eventType    string
	subscription *entity.Subscription
	end          time.Time
	token        *string
}

func (s *reconciliationService) applySuccess(ctx context.Context, payment *entity.Payment, outcome gateway.Outcome) (*ReconcileResult, error) {
	now := s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	won, err := uow.PaymentRepository().TransitionStatus(ctx, payment.Reference,
		entity.PaymentStatusPending, entity.PaymentStatusCompleted, "", now)
	if err != nil {
		return nil, err
	}
	if !won {
		_ = uow.Rollback()
		s.logger.Debug(logger.ModuleReconcile, "Lost reconcile race", map[string]interface{}{"reference": payment.Reference})
		return s.reload(ctx, payment.Reference)
	}

	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx, specification.ByID{ID: payment.SubscriptionId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription %s: %w", payment.SubscriptionId, apperror.ErrNotFound)
	}

	var g grant
	if payment.Purpose == entity.PaymentPurposeRenewal {
		g, err = s.extend(ctx, uow, sub, sub.PlanSnapshot.Duration(), payment.Reference)
	} else {
		g, err = s.activate(ctx, uow, sub, payment, outcome, now)
	}
	if err != nil {
		s.logger.Error(logger.ModuleReconcile, "Failed to apply payment", map[string]interface{}{
			"reference":       payment.Reference,
			"purpose":         string(payment.Purpose),
			"subscription_id": sub.Id.String(),
			"error":           err.Error(),
		})
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info(logger.ModuleReconcile, "Entitlement granted", map[string]interface{}{
		"reference":       payment.Reference,
		"event":           g.eventType,
		"subscription_id": g.subscription.Id.String(),
		"end_time":        g.end,
		"stored_token":    entity.MaskToken(g.token),
	})

	end := g.end
	s.publisher.Publish(ctx, events.EntitlementEvent{
		Type:             g.eventType,
		AccountId:        g.subscription.AccountId,
		SubscriptionId:   g.subscription.Id,
		PlanName:         g.subscription.PlanSnapshot.Name,
		Email:            g.subscription.AccountEmail,
		PaymentReference: payment.Reference,
		EndTime:          &end,
		OccurredAt:       now,
	})

	result, err := s.reload(ctx, payment.Reference)
	if err != nil {
		return nil, err
	}
	result.Applied = true
	return result, nil
}

// activate starts the purchased subscription. When the account already holds an active
// subscription the payment extends that one instead, so an account never has two grants.
func (s *reconciliationService) activate(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription, payment *entity.Payment, outcome gateway.Outcome, now time.Time) (grant, error) {
	end := now.Add(sub.PlanSnapshot.Duration())
	var token *string
	if sub.BillingMode == entity.BillingModeAuto && outcome.AuthorizationToken != "" {
		t := outcome.AuthorizationToken
		token = &t
	}

	repo := uow.SubscriptionRepository()
	activated, err := repo.Activate(ctx, sub.Id, now, end, payment.Reference, token)
	if err != nil {
		return grant{}, err
	}
	if activated {
		return grant{eventType: pkgEvents.SubscriptionActivated, subscription: sub, end: end, token: token}, nil
	}

	existing, err := repo.FindOneSubscription(ctx,
		specification.ByAccount{AccountID: sub.AccountId},
		specification.ExcludingID{ID: sub.Id},
		specification.EffectivelyActive{Now: now},
	)
	if err != nil {
		return grant{}, err
	}
	if existing == nil {
		return grant{}, fmt.Errorf("subscription %s is %s: %w", sub.Id, sub.Status, apperror.ErrConflict)
	}

	s.logger.Warn(logger.ModuleReconcile, "Account already active, crediting existing subscription", map[string]interface{}{
		"reference":       payment.Reference,
		"subscription_id": sub.Id.String(),
		"credited_to":     existing.Id.String(),
	})
	return s.extend(ctx, uow, existing, sub.PlanSnapshot.Duration(), payment.Reference)
}

// extend pushes an active subscription's end time forward from its previous end.
func (s *reconciliationService) extend(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription, by time.Duration, reference string) (grant, error) {
	if sub.EndTime == nil {
		return grant{}, fmt.Errorf("subscription %s has no end time: %w", sub.Id, apperror.ErrConflict)
	}
	end := sub.EndTime.Add(by)
	if err := uow.SubscriptionRepository().ExtendEndTime(ctx, sub.Id, end); err != nil {
		return grant{}, fmt.Errorf("extend subscription %s for payment %s: %w", sub.Id, reference, err)
	}
	return grant{eventType: pkgEvents.SubscriptionRenewed, subscription: sub, end: end}, nil
}

func (s *reconciliationService) reload(ctx context.Context, reference string) (*ReconcileResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	payment, err := uow.PaymentRepository().FindOne(ctx, specification.ByReference{Reference: reference})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", reference, apperror.ErrNotFound)
	}
	return s.current(ctx, uow, payment)
}

func (s *reconciliationService) current(ctx context.Context, uow unitofwork.UnitOfWork, payment *entity.Payment) (*ReconcileResult, error) {
	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx, specification.ByID{ID: payment.SubscriptionId})
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{Payment: payment, Subscription: sub}, nil
}
