// FILE: internal/service/payment_service.go
// Purchase, verify-poll and webhook entry points. All outcomes funnel through reconciliation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-offers-billing/internal/dto"
	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/pkg/webhookauth"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/repository/unitofwork"
	"sales-offers-billing/pkg/gateway"

	"github.com/google/uuid"
)

type PurchaseInput struct {
	AccountId   uuid.UUID
	Email       string
	PlanId      uuid.UUID
	BillingMode entity.BillingMode
}

type VerifyResult struct {
	Reference      string
	Status         entity.PaymentStatus
	SubscriptionId uuid.UUID
	// Pending is set when the gateway has not settled the payment yet.
	Pending bool
	Message string
}

type PaymentService interface {
	Purchase(ctx context.Context, in PurchaseInput) (*dto.CreateSubscriptionResponse, error)
	Verify(ctx context.Context, accountId uuid.UUID, reference string) (*VerifyResult, error)
	// HandleWebhook fails only for bad signatures or unparseable payloads.
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

type paymentService struct {
	uowFactory    unitofwork.RepositoryFactory
	plans         PlanService
	ledger        SubscriptionService
	reconciler    ReconciliationService
	provider      gateway.Provider
	authenticator *webhookauth.Authenticator
	logger        logger.ILogger
	callbackURL   string
	timeout       time.Duration
}

func NewPaymentService(
	uowFactory unitofwork.RepositoryFactory,
	plans PlanService,
	ledger SubscriptionService,
	reconciler ReconciliationService,
	provider gateway.Provider,
	authenticator *webhookauth.Authenticator,
	log logger.ILogger,
	callbackURL string,
	gatewayTimeout time.Duration,
) PaymentService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &paymentService{
		uowFactory:    uowFactory,
		plans:         plans,
		ledger:        ledger,
		reconciler:    reconciler,
		provider:      provider,
		authenticator: authenticator,
		logger:        log,
		callbackURL:   callbackURL,
		timeout:       gatewayTimeout,
	}
}

func (s *paymentService) Purchase(ctx context.Context, in PurchaseInput) (*dto.CreateSubscriptionResponse, error) {
	plan, err := s.plans.GetPlan(ctx, in.PlanId)
	if err != nil {
		return nil, err
	}

	sub, payment, err := s.ledger.CreateSubscription(ctx, CreateSubscriptionInput{
		AccountId:   in.AccountId,
		Email:       in.Email,
		Plan:        plan,
		BillingMode: in.BillingMode,
		Provider:    s.provider.Name(),
	})
	if err != nil {
		return nil, err
	}

	if plan.IsFree() {
		result, err := s.reconciler.Reconcile(ctx, payment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
		if err != nil {
			return nil, err
		}
		return &dto.CreateSubscriptionResponse{
			SubscriptionId: sub.Id,
			Status:         string(result.Subscription.Status),
		}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	initResult, err := s.provider.Initiate(initCtx, gateway.InitiateRequest{
		Reference:     payment.Reference,
		Email:         in.Email,
		AmountMinor:   gateway.ToMinorUnits(plan.Price),
		Currency:      plan.Currency,
		CallbackURL:   s.callbackURL,
		PlanName:      plan.Name,
		HostedPageURL: plan.HostedPageURL,
	})
	if err != nil {
		s.logger.Warn(logger.ModuleGateway, "Payment initiation failed", map[string]interface{}{
			"reference": payment.Reference,
			"error":     err.Error(),
		})
		if !errors.Is(err, apperror.ErrGatewayUnavailable) {
			// Misconfigured or refused outright: this attempt can never complete
			s.abandon(ctx, payment.Reference, err.Error())
		}
		return nil, err
	}

	return &dto.CreateSubscriptionResponse{
		SubscriptionId:   sub.Id,
		PaymentURL:       initResult.RedirectURL,
		PaymentReference: payment.Reference,
		AccessCode:       initResult.AccessCode,
		Status:           string(sub.Status),
	}, nil
}

func (s *paymentService) abandon(ctx context.Context, reference, reason string) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := uow.PaymentRepository().TransitionStatus(ctx, reference,
		entity.PaymentStatusPending, entity.PaymentStatusCancelled, reason, time.Now().UTC()); err != nil {
		s.logger.Error(logger.ModuleBilling, "Failed to cancel payment", map[string]interface{}{
			"reference": reference,
			"error":     err.Error(),
		})
	}
}

func (s *paymentService) Verify(ctx context.Context, accountId uuid.UUID, reference string) (*VerifyResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	payment, err := uow.PaymentRepository().FindOne(ctx,
		specification.ByReference{Reference: reference},
		specification.ByAccount{AccountID: accountId},
	)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", reference, apperror.ErrNotFound)
	}
	if payment.Status.IsTerminal() {
		return terminalResult(payment)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	outcome := s.provider.Verify(verifyCtx, reference)
	cancel()

	switch outcome.Kind {
	case gateway.GatewayUnavailable:
		s.logger.Warn(logger.ModuleGateway, "Verify failed, payment left pending", map[string]interface{}{
			"reference": reference,
			"reason":    outcome.Reason,
		})
		return nil, fmt.Errorf("%w: %s", apperror.ErrGatewayUnavailable, outcome.Reason)
	case gateway.NotFound:
		return nil, fmt.Errorf("payment %s at gateway: %w", reference, apperror.ErrNotFound)
	case gateway.StillPending:
		return &VerifyResult{
			Reference:      reference,
			Status:         payment.Status,
			SubscriptionId: payment.SubscriptionId,
			Pending:        true,
			Message:        "Payment is still being processed",
		}, nil
	}

	result, err := s.reconciler.Reconcile(ctx, reference, outcome)
	if err != nil {
		return nil, err
	}
	return terminalResult(result.Payment)
}

func terminalResult(payment *entity.Payment) (*VerifyResult, error) {
	switch payment.Status {
	case entity.PaymentStatusCompleted:
		return &VerifyResult{
			Reference:      payment.Reference,
			Status:         payment.Status,
			SubscriptionId: payment.SubscriptionId,
			Message:        "Payment verified. Subscription is active",
		}, nil
	case entity.PaymentStatusFailed:
		if payment.FailureReason == entity.FailureReasonPrepaidCard {
			return nil, apperror.ErrPrepaidCardRejected
		}
		return nil, apperror.NewRejection(apperror.ErrRejectedByGateway, payment.FailureReason)
	case entity.PaymentStatusCancelled:
		return nil, apperror.NewRejection(apperror.ErrRejectedByGateway, "payment was cancelled")
	default:
		return &VerifyResult{
			Reference:      payment.Reference,
			Status:         payment.Status,
			SubscriptionId: payment.SubscriptionId,
			Pending:        true,
			Message:        "Payment is still being processed",
		}, nil
	}
}

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := s.authenticate(body, signature); err != nil {
		s.logger.Warn(logger.ModuleWebhook, "Rejected webhook with invalid signature", map[string]interface{}{
			"body_size": len(body),
		})
		return err
	}

	var payload dto.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("webhook payload: %w", apperror.ErrInvalidInput)
	}

	reference, outcome, ok := webhookOutcome(&payload)
	if !ok {
		s.logger.Info(logger.ModuleWebhook, "Ignoring webhook event", map[string]interface{}{
			"event":     payload.Event,
			"reference": reference,
		})
		return nil
	}

	result, err := s.reconciler.Reconcile(ctx, reference, outcome)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn(logger.ModuleWebhook, "Webhook for unknown reference dropped", map[string]interface{}{"reference": reference})
		} else {
			s.logger.Error(logger.ModuleWebhook, "Webhook reconcile failed", map[string]interface{}{
				"reference": reference,
				"error":     err.Error(),
			})
		}
		return nil
	}

	s.logger.Info(logger.ModuleWebhook, "Webhook processed", map[string]interface{}{
		"reference": reference,
		"outcome":   string(outcome.Kind),
		"applied":   result.Applied,
		"status":    string(result.Payment.Status),
	})
	return nil
}

// authenticate accepts either a header signature over the raw body or, when no
// header is present, a Midtrans signature_key inside the body.
func (s *paymentService) authenticate(body []byte, signature string) error {
	if strings.TrimSpace(signature) != "" {
		return s.authenticator.Authenticate(body, signature)
	}
	var payload dto.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return apperror.ErrSignatureInvalid
	}
	if payload.Event != "" {
		return apperror.ErrSignatureInvalid
	}
	return s.authenticator.AuthenticateNotification(payload.OrderId, payload.StatusCode, payload.GrossAmount, payload.SignatureKey)
}

// webhookOutcome maps a notification onto a gateway outcome. ok is false for events
// that do not settle a payment.
func webhookOutcome(p *dto.WebhookPayload) (string, gateway.Outcome, bool) {
	if p.Event != "" {
		reference := p.Data.Reference
		if reference == "" {
			return "", gateway.Outcome{}, false
		}
		switch p.Event {
		case "charge.success":
			token := ""
			if p.Data.Authorization.Reusable {
				token = p.Data.Authorization.AuthorizationCode
			}
			return reference, gateway.SuccessOutcome(p.Data.Authorization.CardType, token), true
		case "charge.failed":
			reason := p.Data.GatewayResponse
			if reason == "" {
				reason = "charge failed"
			}
			return reference, gateway.Outcome{Kind: gateway.Rejected, Reason: reason}, true
		default:
			return reference, gateway.Outcome{}, false
		}
	}

	if p.OrderId == "" {
		return "", gateway.Outcome{}, false
	}
	switch strings.ToLower(p.TransactionStatus) {
	case "settlement":
		return p.OrderId, gateway.SuccessOutcome("", p.SavedTokenId), true
	case "capture":
		if strings.EqualFold(p.FraudStatus, "challenge") {
			return p.OrderId, gateway.Outcome{}, false
		}
		return p.OrderId, gateway.SuccessOutcome("", p.SavedTokenId), true
	case "deny", "cancel", "expire", "failure":
		return p.OrderId, gateway.Outcome{Kind: gateway.Rejected, Reason: p.TransactionStatus}, true
	default:
		return p.OrderId, gateway.Outcome{}, false
	}
}
