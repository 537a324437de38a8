// FILE: internal/service/renewal_service.go
// Auto-renewal job: charges stored tokens for subscriptions nearing expiry
package service

import (
	"context"
	"fmt"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/events"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/repository/unitofwork"
	pkgEvents "sales-offers-billing/pkg/events"
	"sales-offers-billing/pkg/gateway"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type RenewalReport struct {
	Candidates int
	Renewed    int
	Failed     int
	Skipped    int
	Errors     []string
}

type RenewalService interface {
	RunOnce(ctx context.Context) RenewalReport
}

type renewalService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   gateway.Provider
	reconciler ReconciliationService
	publisher  events.Publisher
	logger     logger.ILogger
	window     time.Duration
	timeout    time.Duration
	now        func() time.Time
}

func NewRenewalService(
	uowFactory unitofwork.RepositoryFactory,
	provider gateway.Provider,
	reconciler ReconciliationService,
	publisher events.Publisher,
	log logger.ILogger,
	windowDays int,
	gatewayTimeout time.Duration,
) RenewalService {
	if windowDays <= 0 {
		windowDays = 3
	}
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &renewalService{
		uowFactory: uowFactory,
		provider:   provider,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     log,
		window:     time.Duration(windowDays) * 24 * time.Hour,
		timeout:    gatewayTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *renewalService) RunOnce(ctx context.Context) RenewalReport {
	ctx, span := otel.Tracer("billing").Start(ctx, "RenewalRun")
	defer span.End()

	var report RenewalReport
	now := s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	candidates, err := uow.SubscriptionRepository().FindAllSubscriptions(ctx,
		specification.DueForRenewal{Now: now, Until: now.Add(s.window)},
		specification.OrderBy{Field: "end_time"},
	)
	if err != nil {
		s.logger.Error(logger.ModuleRenewal, "Failed to load renewal candidates", map[string]interface{}{"error": err.Error()})
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.Candidates = len(candidates)

	for _, sub := range candidates {
		if ctx.Err() != nil {
			break
		}
		renewed, skipped, err := s.renew(ctx, sub)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sub.Id, err))
			s.logger.Error(logger.ModuleRenewal, "Renewal failed", map[string]interface{}{
				"subscription_id": sub.Id.String(),
				"error":           err.Error(),
			})
		case skipped:
			report.Skipped++
		case renewed:
			report.Renewed++
		default:
			report.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("renewal.candidates", report.Candidates),
		attribute.Int("renewal.renewed", report.Renewed),
		attribute.Int("renewal.failed", report.Failed),
	)
	s.logger.Info(logger.ModuleRenewal, "Renewal run finished", map[string]interface{}{
		"candidates": report.Candidates,
		"renewed":    report.Renewed,
		"failed":     report.Failed,
		"skipped":    report.Skipped,
	})
	return report
}

// renew charges one subscription. It returns renewed=false with a nil error when the
// gateway declined the charge.
func (s *renewalService) renew(ctx context.Context, sub *entity.Subscription) (renewed bool, skipped bool, err error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	inFlight, err := uow.PaymentRepository().FindOne(ctx,
		specification.BySubscription{SubscriptionID: sub.Id},
		specification.Filter("purpose", string(entity.PaymentPurposeRenewal)),
		specification.ByStatus{Status: string(entity.PaymentStatusPending)},
	)
	if err != nil {
		return false, false, err
	}
	if inFlight != nil {
		return s.settle(ctx, sub, inFlight)
	}

	payment := &entity.Payment{
		AccountId:       sub.AccountId,
		SubscriptionId:  sub.Id,
		Amount:          sub.PlanSnapshot.Price,
		Currency:        sub.PlanSnapshot.Currency,
		Method:          entity.PaymentMethodStoredToken,
		Reference:       entity.NewPaymentReference(),
		Purpose:         entity.PaymentPurposeRenewal,
		Status:          entity.PaymentStatusPending,
		GatewayProvider: s.provider.Name(),
	}
	if err := uow.PaymentRepository().Create(ctx, payment); err != nil {
		return false, false, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	outcome := s.provider.ChargeStoredToken(chargeCtx, gateway.ChargeRequest{
		Token:       *sub.AuthorizationToken,
		Email:       sub.AccountEmail,
		AmountMinor: gateway.ToMinorUnits(sub.PlanSnapshot.Price),
		Currency:    sub.PlanSnapshot.Currency,
		Reference:   payment.Reference,
	})
	cancel()

	if outcome.Kind == gateway.Succeeded {
		return s.complete(ctx, payment.Reference, outcome)
	}

	reason := outcome.Reason
	if reason == "" {
		reason = string(outcome.Kind)
	}
	won, err := uow.PaymentRepository().TransitionStatus(ctx, payment.Reference,
		entity.PaymentStatusPending, entity.PaymentStatusFailed, reason, s.now())
	if err != nil {
		return false, false, err
	}
	if !won {
		// A webhook settled the charge while the call was outstanding
		current, err := uow.PaymentRepository().FindOne(ctx, specification.ByReference{Reference: payment.Reference})
		if err != nil {
			return false, false, err
		}
		return current != nil && current.Status == entity.PaymentStatusCompleted, false, nil
	}

	s.logger.Warn(logger.ModuleRenewal, "Renewal charge not successful", map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"reference":       payment.Reference,
		"outcome":         string(outcome.Kind),
		"reason":          reason,
		"token":           entity.MaskToken(sub.AuthorizationToken),
	})
	s.publisher.Publish(ctx, events.EntitlementEvent{
		Type:             pkgEvents.RenewalFailed,
		AccountId:        sub.AccountId,
		SubscriptionId:   sub.Id,
		PlanName:         sub.PlanSnapshot.Name,
		PaymentReference: payment.Reference,
		EndTime:          sub.EndTime,
		Reason:           reason,
	})
	return false, false, nil
}

// complete applies a successful charge through the reconciler so a webhook for the same
// reference and this run extend the subscription only once.
func (s *renewalService) complete(ctx context.Context, reference string, outcome gateway.Outcome) (bool, bool, error) {
	result, err := s.reconciler.Reconcile(ctx, reference, outcome)
	if err != nil {
		return false, false, fmt.Errorf("renewal payment %s: %w", reference, err)
	}
	return result.Payment.Status == entity.PaymentStatusCompleted, false, nil
}

// settle resolves a renewal payment left pending by an earlier run by asking the gateway
// what happened to it. Undecided charges stay pending and the subscription is skipped.
func (s *renewalService) settle(ctx context.Context, sub *entity.Subscription, payment *entity.Payment) (bool, bool, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	outcome := s.provider.Verify(verifyCtx, payment.Reference)
	cancel()

	switch {
	case outcome.Kind == gateway.Succeeded:
		return s.complete(ctx, payment.Reference, outcome)
	case outcome.IsRejection(), outcome.Kind == gateway.NotFound:
		if outcome.Kind == gateway.NotFound {
			outcome = gateway.Outcome{Kind: gateway.Rejected, Reason: "charge not found at gateway"}
		}
		result, err := s.reconciler.Reconcile(ctx, payment.Reference, outcome)
		if err != nil {
			return false, false, fmt.Errorf("renewal payment %s: %w", payment.Reference, err)
		}
		s.logger.Warn(logger.ModuleRenewal, "Stale renewal payment closed", map[string]interface{}{
			"subscription_id": sub.Id.String(),
			"reference":       payment.Reference,
			"status":          string(result.Payment.Status),
		})
		return result.Payment.Status == entity.PaymentStatusCompleted, false, nil
	default:
		s.logger.Warn(logger.ModuleRenewal, "Renewal already in flight", map[string]interface{}{
			"subscription_id": sub.Id.String(),
			"reference":       payment.Reference,
			"outcome":         string(outcome.Kind),
		})
		return false, true, nil
	}
}
