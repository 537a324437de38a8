package service

import (
	"context"
	"testing"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/pkg/webhookauth"
	"sales-offers-billing/internal/repository/memory"
	"sales-offers-billing/internal/repository/specification"
	"sales-offers-billing/internal/repository/unitofwork"
	"sales-offers-billing/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testWebhookSecret     = "sk_test_webhook"
	testMidtransServerKey = "SB-Mid-server-test"
)

type billingFixture struct {
	db         *gorm.DB
	factory    unitofwork.RepositoryFactory
	provider   *testutil.FakeProvider
	publisher  *testutil.RecordingPublisher
	auth       *webhookauth.Authenticator
	plans      PlanService
	ledger     *subscriptionService
	reconciler *reconciliationService
	payments   PaymentService
	renewals   *renewalService
	entitle    EntitlementService
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()

	factory, db := testutil.NewFactory(t)
	log := logger.NewNopLogger()
	provider := testutil.NewFakeProvider()
	publisher := &testutil.RecordingPublisher{}
	auth := webhookauth.NewAuthenticator(testWebhookSecret, webhookauth.WithMidtransServerKey(testMidtransServerKey))

	plans := NewPlanService(factory, memory.NewPlanCache(time.Minute))
	ledger := NewSubscriptionService(factory, publisher, log).(*subscriptionService)
	reconciler := NewReconciliationService(factory, publisher, log).(*reconciliationService)
	payments := NewPaymentService(factory, plans, ledger, reconciler, provider, auth, log,
		"https://app.example.com/payment/callback", time.Second)
	renewals := NewRenewalService(factory, provider, reconciler, publisher, log, 3, time.Second).(*renewalService)

	return &billingFixture{
		db:         db,
		factory:    factory,
		provider:   provider,
		publisher:  publisher,
		auth:       auth,
		plans:      plans,
		ledger:     ledger,
		reconciler: reconciler,
		payments:   payments,
		renewals:   renewals,
		entitle:    NewEntitlementService(ledger),
	}
}

// at pins the clock of every time-aware service.
func (f *billingFixture) at(now time.Time) {
	clock := func() time.Time { return now }
	f.ledger.now = clock
	f.reconciler.now = clock
	f.renewals.now = clock
}

func (f *billingFixture) payment(t *testing.T, reference string) *entity.Payment {
	t.Helper()
	ctx := context.Background()
	p, err := f.factory.NewUnitOfWork(ctx).PaymentRepository().FindOne(ctx, specification.ByReference{Reference: reference})
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *billingFixture) subscription(t *testing.T, id uuid.UUID) *entity.Subscription {
	t.Helper()
	ctx := context.Background()
	sub, err := f.factory.NewUnitOfWork(ctx).SubscriptionRepository().FindOneSubscription(ctx, specification.ByID{ID: id})
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}
