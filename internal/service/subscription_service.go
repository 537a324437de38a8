// FILE: internal/service/subscription_service.go
// Subscription ledger: owns subscription and payment records
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"sales-offers-billing/internal/dto"
	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/events"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/repository/unitofwork"
	pkgEvents "sales-offers-billing/pkg/events"

	"github.com/google/uuid"
)

type CreateSubscriptionInput struct {
	AccountId   uuid.UUID
	Email       string
	Plan        *entity.SubscriptionPlan
	BillingMode entity.BillingMode
	Method      entity.PaymentMethod
	Provider    string
}

type SubscriptionService interface {
	// CreateSubscription writes a pending subscription and its pending payment in one transaction.
	CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*entity.Subscription, *entity.Payment, error)
	// GetActiveSubscription returns nil when the account has no effectively active subscription.
	GetActiveSubscription(ctx context.Context, accountId uuid.UUID) (*entity.Subscription, error)
	Cancel(ctx context.Context, accountId uuid.UUID) (*entity.Subscription, error)
	GetCurrentSummary(ctx context.Context, accountId uuid.UUID) (*dto.SubscriptionSummaryResponse, error)
	// ListPayments returns the account's payments, newest first. A non-positive limit returns all.
	ListPayments(ctx context.Context, accountId uuid.UUID, limit, offset int) ([]*entity.Payment, error)
}

type subscriptionService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  events.Publisher
	logger     logger.ILogger
	now        func() time.Time
}

func NewSubscriptionService(uowFactory unitofwork.RepositoryFactory, publisher events.Publisher, log logger.ILogger) SubscriptionService {
	return &subscriptionService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*entity.Subscription, *entity.Payment, error) {
	if in.Plan == nil {
		return nil, nil, fmt.Errorf("plan: %w", apperror.ErrNotFound)
	}
	if in.BillingMode == "" {
		in.BillingMode = entity.BillingModeManual
	}
	if !in.BillingMode.IsValid() {
		return nil, nil, fmt.Errorf("billing mode %q: %w", in.BillingMode, apperror.ErrInvalidInput)
	}
	method := in.Method
	if method == "" {
		method = entity.PaymentMethodCard
	}
	if in.Plan.IsFree() {
		method = entity.PaymentMethodFree
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, err
	}
	defer uow.Rollback()

	active, err := uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByAccount{AccountID: in.AccountId},
		specification.EffectivelyActive{Now: s.now()},
	)
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		return nil, nil, fmt.Errorf("account already has an active subscription: %w", apperror.ErrConflict)
	}

	sub := &entity.Subscription{
		AccountId:    in.AccountId,
		AccountEmail: in.Email,
		PlanId:       in.Plan.Id,
		PlanSnapshot: in.Plan.Snapshot(),
		Status:       entity.SubscriptionStatusPending,
		BillingMode:  in.BillingMode,
	}
	if err := uow.SubscriptionRepository().CreateSubscription(ctx, sub); err != nil {
		return nil, nil, err
	}

	payment := &entity.Payment{
		AccountId:       in.AccountId,
		SubscriptionId:  sub.Id,
		Amount:          in.Plan.Price,
		Currency:        in.Plan.Currency,
		Method:          method,
		Reference:       entity.NewPaymentReference(),
		Purpose:         entity.PaymentPurposePurchase,
		Status:          entity.PaymentStatusPending,
		GatewayProvider: in.Provider,
	}
	if err := uow.PaymentRepository().Create(ctx, payment); err != nil {
		return nil, nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, err
	}

	s.logger.Info(logger.ModuleBilling, "Subscription created", map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"account_id":      in.AccountId.String(),
		"plan":            in.Plan.Name,
		"reference":       payment.Reference,
		"billing_mode":    string(in.BillingMode),
	})
	return sub, payment, nil
}

func (s *subscriptionService) GetActiveSubscription(ctx context.Context, accountId uuid.UUID) (*entity.Subscription, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByAccount{AccountID: accountId},
		specification.EffectivelyActive{Now: s.now()},
		specification.OrderBy{Field: "end_time", Desc: true},
	)
}

func (s *subscriptionService) Cancel(ctx context.Context, accountId uuid.UUID) (*entity.Subscription, error) {
	sub, err := s.GetActiveSubscription(ctx, accountId)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("active subscription: %w", apperror.ErrNotFound)
	}

	now := s.now()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	cancelled, err := uow.SubscriptionRepository().Cancel(ctx, sub.Id, now)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, fmt.Errorf("active subscription: %w", apperror.ErrNotFound)
	}

	sub.Status = entity.SubscriptionStatusCancelled
	sub.CancelledAt = &now

	s.logger.Info(logger.ModuleBilling, "Subscription cancelled", map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"account_id":      accountId.String(),
	})
	s.publisher.Publish(ctx, events.EntitlementEvent{
		Type:           pkgEvents.SubscriptionCancelled,
		AccountId:      sub.AccountId,
		SubscriptionId: sub.Id,
		PlanName:       sub.PlanSnapshot.Name,
		Email:          sub.AccountEmail,
		OccurredAt:     now,
	})
	return sub, nil
}

func (s *subscriptionService) GetCurrentSummary(ctx context.Context, accountId uuid.UUID) (*dto.SubscriptionSummaryResponse, error) {
	sub, err := s.GetActiveSubscription(ctx, accountId)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("active subscription: %w", apperror.ErrNotFound)
	}

	now := s.now()
	daysRemaining := 0
	if sub.EndTime != nil {
		daysRemaining = int(math.Ceil(sub.EndTime.Sub(now).Hours() / 24))
	}

	return &dto.SubscriptionSummaryResponse{
		SubscriptionId: sub.Id,
		PlanId:         sub.PlanId,
		PlanName:       sub.PlanSnapshot.Name,
		Price:          sub.PlanSnapshot.Price.StringFixed(2),
		Currency:       sub.PlanSnapshot.Currency,
		Status:         string(sub.DisplayStatus(now)),
		BillingMode:    string(sub.BillingMode),
		AutoRenew:      sub.BillingMode == entity.BillingModeAuto && sub.HasStoredToken(),
		StoredCard:     entity.MaskToken(sub.AuthorizationToken),
		StartTime:      sub.StartTime,
		EndTime:        sub.EndTime,
		DaysRemaining:  daysRemaining,
		Features:       sub.PlanSnapshot.Features,
	}, nil
}

func (s *subscriptionService) ListPayments(ctx context.Context, accountId uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	specs := []specification.Specification{
		specification.ByAccount{AccountID: accountId},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		specs = append(specs, specification.Pagination{Limit: limit, Offset: offset})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.PaymentRepository().FindAll(ctx, specs...)
}
