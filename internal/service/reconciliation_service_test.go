package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/testutil"
	pkgEvents "sales-offers-billing/pkg/events"
	"sales-offers-billing/pkg/gateway"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func createPending(t *testing.T, f *billingFixture, plan *entity.SubscriptionPlan, mode entity.BillingMode) (*entity.Subscription, *entity.Payment) {
	t.Helper()
	sub, payment, err := f.ledger.CreateSubscription(context.Background(), CreateSubscriptionInput{
		AccountId:   uuid.New(),
		Email:       "seller@example.com",
		Plan:        plan,
		BillingMode: mode,
		Provider:    "fake",
	})
	require.NoError(t, err)
	return sub, payment
}

func TestReconcile_SuccessIsAppliedOnce(t *testing.T) {
	f := newBillingFixture(t)
	f.at(fixedNow)
	plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
	sub, payment := createPending(t, f, plan, entity.BillingModeManual)
	ctx := context.Background()

	first, err := f.reconciler.Reconcile(ctx, payment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, entity.PaymentStatusCompleted, first.Payment.Status)
	require.NotNil(t, first.Payment.CompletedAt)

	// Later webhook replay after the clock moved on must not touch anything
	f.at(fixedNow.Add(time.Hour))
	second, err := f.reconciler.Reconcile(ctx, payment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
	require.NoError(t, err)
	assert.False(t, second.Applied)

	stored := f.subscription(t, sub.Id)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)
	require.NotNil(t, stored.EndTime)
	assert.WithinDuration(t, fixedNow.Add(30*24*time.Hour), *stored.EndTime, time.Second)
	assert.Equal(t, payment.Reference, stored.PaymentReference)

	assert.Len(t, f.publisher.OfType(pkgEvents.SubscriptionActivated), 1)
}

func TestReconcile_ConcurrentDeliveriesActivateOnce(t *testing.T) {
	f := newBillingFixture(t)
	f.at(fixedNow)
	plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
	_, payment := createPending(t, f, plan, entity.BillingModeManual)

	const workers = 8
	var wg sync.WaitGroup
	applied := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reconciler.Reconcile(context.Background(), payment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
			if assert.NoError(t, err) {
				applied <- res.Applied
			}
		}()
	}
	wg.Wait()
	close(applied)

	count := 0
	for a := range applied {
		if a {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, f.publisher.OfType(pkgEvents.SubscriptionActivated), 1)
}

func TestReconcile_RejectionIsTerminal(t *testing.T) {
	f := newBillingFixture(t)
	f.at(fixedNow)
	plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
	sub, payment := createPending(t, f, plan, entity.BillingModeManual)
	ctx := context.Background()

	res, err := f.reconciler.Reconcile(ctx, payment.Reference, gateway.Outcome{Kind: gateway.Rejected, Reason: "Declined"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entity.PaymentStatusFailed, res.Payment.Status)
	assert.Equal(t, "Declined", res.Payment.FailureReason)

	// A late success for a failed payment is ignored
	res, err = f.reconciler.Reconcile(ctx, payment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, entity.PaymentStatusFailed, res.Payment.Status)

	assert.Equal(t, entity.SubscriptionStatusPending, f.subscription(t, sub.Id).Status)
	assert.Empty(t, f.publisher.Events)
}

func TestReconcile_PrepaidCardThenFreshPurchase(t *testing.T) {
	f := newBillingFixture(t)
	f.at(fixedNow)
	plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
	ctx := context.Background()
	accountId := uuid.New()

	sub, payment, err := f.ledger.CreateSubscription(ctx, CreateSubscriptionInput{
		AccountId: accountId, Email: "seller@example.com", Plan: plan,
	})
	require.NoError(t, err)

	res, err := f.reconciler.Reconcile(ctx, payment.Reference, gateway.SuccessOutcome("visa prepaid", "AUTH_x"))
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, res.Payment.Status)
	assert.Equal(t, entity.FailureReasonPrepaidCard, res.Payment.FailureReason)
	assert.Equal(t, entity.SubscriptionStatusPending, f.subscription(t, sub.Id).Status)

	again, _, err := f.ledger.CreateSubscription(ctx, CreateSubscriptionInput{
		AccountId: accountId, Email: "seller@example.com", Plan: plan,
	})
	require.NoError(t, err)
	assert.NotEqual(t, sub.Id, again.Id)
}

func TestReconcile_StoresTokenOnlyForAutoBilling(t *testing.T) {
	tests := []struct {
		name      string
		mode      entity.BillingMode
		wantToken bool
	}{
		{name: "auto keeps token", mode: entity.BillingModeAuto, wantToken: true},
		{name: "manual drops token", mode: entity.BillingModeManual, wantToken: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBillingFixture(t)
			f.at(fixedNow)
			plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
			sub, payment := createPending(t, f, plan, tt.mode)

			_, err := f.reconciler.Reconcile(context.Background(), payment.Reference, gateway.SuccessOutcome("visa", "AUTH_reusable"))
			require.NoError(t, err)

			stored := f.subscription(t, sub.Id)
			assert.Equal(t, tt.wantToken, stored.HasStoredToken())
		})
	}
}

func TestReconcile_NonFinalOutcomesLeaveStateUntouched(t *testing.T) {
	for _, kind := range []gateway.OutcomeKind{gateway.StillPending, gateway.GatewayUnavailable, gateway.NotFound} {
		t.Run(string(kind), func(t *testing.T) {
			f := newBillingFixture(t)
			f.at(fixedNow)
			plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
			_, payment := createPending(t, f, plan, entity.BillingModeManual)

			res, err := f.reconciler.Reconcile(context.Background(), payment.Reference, gateway.Outcome{Kind: kind})
			require.NoError(t, err)
			assert.False(t, res.Applied)
			assert.Equal(t, entity.PaymentStatusPending, res.Payment.Status)
		})
	}
}

func TestReconcile_UnknownReference(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.reconciler.Reconcile(context.Background(), "PAY-missing", gateway.Outcome{Kind: gateway.Succeeded})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestReconcile_SecondPendingPurchaseCreditsActiveSubscription(t *testing.T) {
	f := newBillingFixture(t)
	f.at(fixedNow)
	plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
	ctx := context.Background()
	accountId := uuid.New()

	in := CreateSubscriptionInput{AccountId: accountId, Email: "seller@example.com", Plan: plan, Provider: "fake"}
	first, firstPayment, err := f.ledger.CreateSubscription(ctx, in)
	require.NoError(t, err)
	second, secondPayment, err := f.ledger.CreateSubscription(ctx, in)
	require.NoError(t, err)

	_, err = f.reconciler.Reconcile(ctx, firstPayment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
	require.NoError(t, err)

	f.at(fixedNow.Add(time.Hour))
	result, err := f.reconciler.Reconcile(ctx, secondPayment.Reference, gateway.Outcome{Kind: gateway.Succeeded})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, entity.PaymentStatusCompleted, result.Payment.Status)

	held := f.subscription(t, first.Id)
	assert.Equal(t, entity.SubscriptionStatusActive, held.Status)
	assert.WithinDuration(t, fixedNow.Add(60*24*time.Hour), *held.EndTime, time.Second)
	assert.Equal(t, entity.SubscriptionStatusPending, f.subscription(t, second.Id).Status)

	var active int64
	require.NoError(t, f.db.Table("subscriptions").
		Where("account_id = ? AND status = ? AND end_time > ?", accountId, "active", fixedNow.Add(time.Hour)).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)

	assert.Len(t, f.publisher.OfType(pkgEvents.SubscriptionActivated), 1)
	renewed := f.publisher.OfType(pkgEvents.SubscriptionRenewed)
	require.Len(t, renewed, 1)
	assert.Equal(t, first.Id, renewed[0].SubscriptionId)
}

func TestReconcile_RenewalReferenceExtendsFromPreviousEnd(t *testing.T) {
	f := newBillingFixture(t)
	f.at(fixedNow)
	plan := testutil.SeedPlan(t, f.factory, testutil.ProPlan())
	ctx := context.Background()

	prevEnd := fixedNow.Add(2 * 24 * time.Hour)
	sub := testutil.SeedActiveSubscription(t, f.factory, uuid.New(), plan, entity.BillingModeAuto, prevEnd, testutil.StringPtr("AUTH_keep"))
	renewal := &entity.Payment{
		AccountId:      sub.AccountId,
		SubscriptionId: sub.Id,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Method:         entity.PaymentMethodStoredToken,
		Reference:      entity.NewPaymentReference(),
		Purpose:        entity.PaymentPurposeRenewal,
		Status:         entity.PaymentStatusPending,
	}
	require.NoError(t, f.factory.NewUnitOfWork(ctx).PaymentRepository().Create(ctx, renewal))

	result, err := f.reconciler.Reconcile(ctx, renewal.Reference, gateway.Outcome{Kind: gateway.Succeeded})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	stored := f.subscription(t, sub.Id)
	assert.WithinDuration(t, prevEnd.Add(30*24*time.Hour), *stored.EndTime, time.Second)
	assert.WithinDuration(t, *sub.StartTime, *stored.StartTime, time.Second)
	assert.Equal(t, "AUTH_keep", *stored.AuthorizationToken)
	assert.Len(t, f.publisher.OfType(pkgEvents.SubscriptionRenewed), 1)
	assert.Empty(t, f.publisher.OfType(pkgEvents.SubscriptionActivated))
}
