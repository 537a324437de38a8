package implementation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/repository/implementation"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestPaymentRepository_TransitionStatusIsConditional(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := implementation.NewPaymentRepository(db)
	ctx := context.Background()

	payment := &entity.Payment{
		AccountId:      uuid.New(),
		SubscriptionId: uuid.New(),
		Amount:         testutil.ProPlan().Price,
		Currency:       "KES",
		Method:         entity.PaymentMethodCard,
		Reference:      entity.NewPaymentReference(),
		Purpose:        entity.PaymentPurposePurchase,
		Status:         entity.PaymentStatusPending,
	}
	require.NoError(t, repo.Create(ctx, payment))
	assert.NotEqual(t, uuid.Nil, payment.Id)

	won, err := repo.TransitionStatus(ctx, payment.Reference, entity.PaymentStatusPending, entity.PaymentStatusCompleted, "", now)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.TransitionStatus(ctx, payment.Reference, entity.PaymentStatusPending, entity.PaymentStatusFailed, "late", now)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindOne(ctx, specification.ByReference{Reference: payment.Reference})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, stored.Status)
	assert.Empty(t, stored.FailureReason)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.Amount.Equal(payment.Amount))
}

func TestPaymentRepository_FindOneMissing(t *testing.T) {
	repo := implementation.NewPaymentRepository(testutil.NewTestDB(t))

	p, err := repo.FindOne(context.Background(), specification.ByReference{Reference: "PAY-missing"})
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestSubscriptionRepository_ActivateAndExtend(t *testing.T) {
	factory, db := testutil.NewFactory(t)
	repo := implementation.NewSubscriptionRepository(db)
	ctx := context.Background()
	plan := testutil.SeedPlan(t, factory, testutil.ProPlan())

	sub := &entity.Subscription{
		AccountId:    uuid.New(),
		AccountEmail: "seller@example.com",
		PlanId:       plan.Id,
		PlanSnapshot: plan.Snapshot(),
		Status:       entity.SubscriptionStatusPending,
		BillingMode:  entity.BillingModeAuto,
	}
	require.NoError(t, repo.CreateSubscription(ctx, sub))

	// Extending is only valid for active subscriptions
	err := repo.ExtendEndTime(ctx, sub.Id, now.Add(time.Hour))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	end := now.Add(plan.Duration())
	activated, err := repo.Activate(ctx, sub.Id, now, end, "PAY-1", testutil.StringPtr("AUTH_1"))
	require.NoError(t, err)
	assert.True(t, activated)

	// Only a pending subscription can be activated
	activated, err = repo.Activate(ctx, sub.Id, now.Add(time.Hour), end.Add(time.Hour), "PAY-1b", nil)
	require.NoError(t, err)
	assert.False(t, activated)

	stored, err := repo.FindOneSubscription(ctx, specification.ByID{ID: sub.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)
	assert.Equal(t, "PAY-1", stored.PaymentReference)
	assert.True(t, stored.HasStoredToken())
	assert.Equal(t, "Pro Seller", stored.PlanSnapshot.Name)
	assert.Equal(t, 50, stored.PlanSnapshot.Features[entity.FeatureMaxOffers])

	require.NoError(t, repo.ExtendEndTime(ctx, sub.Id, end.Add(plan.Duration())))

	cancelled, err := repo.Cancel(ctx, sub.Id, now)
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = repo.Cancel(ctx, sub.Id, now)
	require.NoError(t, err)
	assert.False(t, cancelled)

	activated, err = repo.Activate(ctx, uuid.New(), now, end, "PAY-2", nil)
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestSubscriptionRepository_ActivateRefusesSecondGrantForAccount(t *testing.T) {
	factory, db := testutil.NewFactory(t)
	repo := implementation.NewSubscriptionRepository(db)
	ctx := context.Background()
	plan := testutil.SeedPlan(t, factory, testutil.ProPlan())
	accountId := uuid.New()

	held := testutil.SeedActiveSubscription(t, factory, accountId, plan, entity.BillingModeManual, now.Add(24*time.Hour), nil)
	pending := &entity.Subscription{
		AccountId:    accountId,
		AccountEmail: "seller@example.com",
		PlanId:       plan.Id,
		PlanSnapshot: plan.Snapshot(),
		Status:       entity.SubscriptionStatusPending,
		BillingMode:  entity.BillingModeManual,
	}
	require.NoError(t, repo.CreateSubscription(ctx, pending))

	activated, err := repo.Activate(ctx, pending.Id, now, now.Add(plan.Duration()), "PAY-dup", nil)
	require.NoError(t, err)
	assert.False(t, activated)

	stored, err := repo.FindOneSubscription(ctx, specification.ByID{ID: pending.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusPending, stored.Status)

	// A lapsed grant no longer blocks activation
	activated, err = repo.Activate(ctx, pending.Id, now.Add(48*time.Hour), now.Add(48*time.Hour+plan.Duration()), "PAY-next", nil)
	require.NoError(t, err)
	assert.True(t, activated)

	others, err := repo.FindAllSubscriptions(ctx,
		specification.ByAccount{AccountID: accountId},
		specification.ExcludingID{ID: held.Id},
	)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, pending.Id, others[0].Id)
}

func TestSpecifications_EffectivelyActiveAndDueForRenewal(t *testing.T) {
	factory, db := testutil.NewFactory(t)
	repo := implementation.NewSubscriptionRepository(db)
	ctx := context.Background()
	plan := testutil.SeedPlan(t, factory, testutil.ProPlan())
	token := testutil.StringPtr("AUTH_tok")

	due := testutil.SeedActiveSubscription(t, factory, uuid.New(), plan, entity.BillingModeAuto, now.Add(48*time.Hour), token)
	later := testutil.SeedActiveSubscription(t, factory, uuid.New(), plan, entity.BillingModeAuto, now.Add(10*24*time.Hour), token)
	expired := testutil.SeedActiveSubscription(t, factory, uuid.New(), plan, entity.BillingModeAuto, now.Add(-time.Minute), token)
	testutil.SeedActiveSubscription(t, factory, uuid.New(), plan, entity.BillingModeAuto, now.Add(time.Hour), testutil.StringPtr(""))

	candidates, err := repo.FindAllSubscriptions(ctx, specification.DueForRenewal{Now: now, Until: now.Add(72 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, due.Id, candidates[0].Id)

	active, err := repo.FindOneSubscription(ctx, specification.ByAccount{AccountID: later.AccountId}, specification.EffectivelyActive{Now: now})
	require.NoError(t, err)
	assert.NotNil(t, active)

	gone, err := repo.FindOneSubscription(ctx, specification.ByAccount{AccountID: expired.AccountId}, specification.EffectivelyActive{Now: now})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSubscriptionRepository_CreatePlanKeepsInactiveFlag(t *testing.T) {
	factory, db := testutil.NewFactory(t)
	repo := implementation.NewSubscriptionRepository(db)
	ctx := context.Background()

	retired := testutil.ProPlan()
	retired.IsActive = false
	testutil.SeedPlan(t, factory, retired)
	assert.False(t, retired.IsActive)

	var isActive bool
	require.NoError(t, db.Raw("SELECT is_active FROM subscription_plans WHERE id = ?", retired.Id).Scan(&isActive).Error)
	assert.False(t, isActive)

	active, err := repo.FindAllPlans(ctx, specification.ActivePlans{})
	require.NoError(t, err)
	assert.Empty(t, active)
}
