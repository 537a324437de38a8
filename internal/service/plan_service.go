// FILE: internal/service/plan_service.go
// Plan catalog: read-mostly registry of purchasable plans
package service

import (
	"context"
	"fmt"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/repository/memory"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type PlanService interface {
	ListActivePlans(ctx context.Context) ([]*entity.SubscriptionPlan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*entity.SubscriptionPlan, error)
	GetPlanBySlug(ctx context.Context, slug string) (*entity.SubscriptionPlan, error)

	// SavePlan creates the plan or updates the existing plan with the same slug.
	// Changing commercial terms bumps the version; issued subscriptions keep their snapshot.
	SavePlan(ctx context.Context, plan *entity.SubscriptionPlan) (*entity.SubscriptionPlan, bool, error)
}

type planService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.PlanCache
}

func NewPlanService(uowFactory unitofwork.RepositoryFactory, cache *memory.PlanCache) PlanService {
	return &planService{
		uowFactory: uowFactory,
		cache:      cache,
	}
}

func (s *planService) ListActivePlans(ctx context.Context) ([]*entity.SubscriptionPlan, error) {
	if plans, ok := s.cache.GetActive(); ok {
		return plans, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.SubscriptionRepository().FindAllPlans(ctx,
		specification.ActivePlans{},
		specification.OrderBy{Field: "sort_order"},
		specification.OrderBy{Field: "price"},
	)
	if err != nil {
		return nil, err
	}

	s.cache.SetActive(plans)
	return plans, nil
}

func (s *planService) GetPlan(ctx context.Context, id uuid.UUID) (*entity.SubscriptionPlan, error) {
	key := id.String()
	if plan, ok := s.cache.Get(key); ok {
		return plan, nil
	}
	return s.findActive(ctx, key, specification.ByID{ID: id})
}

func (s *planService) GetPlanBySlug(ctx context.Context, slug string) (*entity.SubscriptionPlan, error) {
	if plan, ok := s.cache.Get(slug); ok {
		return plan, nil
	}
	return s.findActive(ctx, slug, specification.BySlug{Slug: slug})
}

func (s *planService) findActive(ctx context.Context, key string, spec specification.Specification) (*entity.SubscriptionPlan, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, spec, specification.ActivePlans{})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %s: %w", key, apperror.ErrNotFound)
	}

	s.cache.Set(key, plan)
	return plan, nil
}

func (s *planService) SavePlan(ctx context.Context, plan *entity.SubscriptionPlan) (*entity.SubscriptionPlan, bool, error) {
	defer s.cache.Flush()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SubscriptionRepository()

	existing, err := repo.FindOnePlan(ctx, specification.BySlug{Slug: plan.Slug})
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		if plan.Version == 0 {
			plan.Version = 1
		}
		if err := repo.CreatePlan(ctx, plan); err != nil {
			return nil, false, err
		}
		return plan, true, nil
	}

	termsChanged := !existing.Price.Equal(plan.Price) ||
		existing.DurationDays != plan.DurationDays ||
		existing.Currency != plan.Currency ||
		!featuresEqual(existing.Features, plan.Features)

	existing.Name = plan.Name
	existing.Description = plan.Description
	existing.Price = plan.Price
	existing.Currency = plan.Currency
	existing.DurationDays = plan.DurationDays
	existing.Features = plan.Features
	existing.MarketingPoints = plan.MarketingPoints
	existing.HostedPageURL = plan.HostedPageURL
	existing.IsActive = plan.IsActive
	existing.SortOrder = plan.SortOrder
	if termsChanged {
		existing.Version++
	}

	if err := repo.UpdatePlan(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func featuresEqual(a, b entity.PlanFeatures) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}
