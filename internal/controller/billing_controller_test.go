package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/pkg/serverutils"
	"sales-offers-billing/internal/pkg/webhookauth"
	"sales-offers-billing/internal/repository/memory"
	"sales-offers-billing/internal/service"
	"sales-offers-billing/internal/testutil"
	"sales-offers-billing/pkg/gateway"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret     = "jwt-test-secret"
	testWebhookSecret = "sk_test_webhook"
	testServerKey     = "SB-Mid-server-test"
)

type routesFixture struct {
	app      *fiber.App
	provider *testutil.FakeProvider
	auth     *webhookauth.Authenticator
	plan     *entity.SubscriptionPlan
	free     *entity.SubscriptionPlan
}

func newRoutesFixture(t *testing.T) *routesFixture {
	t.Helper()

	factory, _ := testutil.NewFactory(t)
	log := logger.NewNopLogger()
	provider := testutil.NewFakeProvider()
	publisher := &testutil.RecordingPublisher{}
	auth := webhookauth.NewAuthenticator(testWebhookSecret, webhookauth.WithMidtransServerKey(testServerKey))

	plans := service.NewPlanService(factory, memory.NewPlanCache(time.Minute))
	ledger := service.NewSubscriptionService(factory, publisher, log)
	reconciler := service.NewReconciliationService(factory, publisher, log)
	payments := service.NewPaymentService(factory, plans, ledger, reconciler, provider, auth, log, "https://app.example.com/cb", time.Second)
	entitlements := service.NewEntitlementService(ledger)

	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler})
	api := app.Group("/api")
	jwt := serverutils.NewJwtMiddleware(testJWTSecret)
	NewPlanController(plans).RegisterRoutes(api, jwt)
	NewSubscriptionController(payments, ledger).RegisterRoutes(api, jwt)
	NewPaymentController(payments, ledger, log).RegisterRoutes(api, jwt)
	NewEntitlementController(entitlements).RegisterRoutes(api, jwt)

	return &routesFixture{
		app:      app,
		provider: provider,
		auth:     auth,
		plan:     testutil.SeedPlan(t, factory, testutil.ProPlan()),
		free:     testutil.SeedPlan(t, factory, testutil.FreePlan()),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *routesFixture) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env
}

func authed(t *testing.T, method, path string, userID uuid.UUID, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	token, err := serverutils.SignToken(testJWTSecret, userID, "seller@example.com")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestPlansRouteIsPublic(t *testing.T) {
	f := newRoutesFixture(t)

	status, env := f.do(t, httptest.NewRequest(http.MethodGet, "/api/plans", nil))
	require.Equal(t, http.StatusOK, status)

	var plans []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, 2)
	assert.Equal(t, "basic-seller", plans[0]["slug"])
	assert.Equal(t, "2999.00", plans[1]["price"])
}

func TestSubscriptionRoutesRequireToken(t *testing.T) {
	f := newRoutesFixture(t)

	status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/subscriptions/current", nil))
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/cancel", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	status, _ = f.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPurchaseVerifyFlow(t *testing.T) {
	f := newRoutesFixture(t)
	user := uuid.New()

	status, env := f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.plan.Id.String(), user, map[string]string{"billing_mode": "auto"}))
	require.Equal(t, http.StatusCreated, status, env.Message)

	var created struct {
		SubscriptionId   uuid.UUID `json:"subscription_id"`
		PaymentURL       string    `json:"payment_url"`
		PaymentReference string    `json:"payment_reference"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.PaymentURL)

	// Gateway has not settled yet
	status, _ = f.do(t, authed(t, http.MethodPost, "/api/payments/verify", user, map[string]string{"reference": created.PaymentReference}))
	assert.Equal(t, http.StatusAccepted, status)

	// Gateway settles
	f.provider.VerifyOutcome = gateway.SuccessOutcome("visa", "AUTH_route")
	status, env = f.do(t, authed(t, http.MethodPost, "/api/payments/verify", user, map[string]string{"reference": created.PaymentReference}))
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = f.do(t, authed(t, http.MethodGet, "/api/subscriptions/current", user, nil))
	require.Equal(t, http.StatusOK, status)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "active", summary["status"])
	assert.Equal(t, true, summary["auto_renew"])

	// Already subscribed
	status, _ = f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.plan.Id.String(), user, nil))
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = f.do(t, authed(t, http.MethodGet, "/api/payments", user, nil))
	require.Equal(t, http.StatusOK, status)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "completed", history[0]["status"])

	status, _ = f.do(t, authed(t, http.MethodPost, "/api/subscriptions/cancel", user, nil))
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, authed(t, http.MethodGet, "/api/subscriptions/current", user, nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPurchaseErrorStatuses(t *testing.T) {
	f := newRoutesFixture(t)
	user := uuid.New()

	status, _ := f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+uuid.NewString(), user, nil))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, authed(t, http.MethodPost, "/api/subscriptions/not-a-uuid", user, nil))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.plan.Id.String(), user, map[string]string{"billing_mode": "weekly"}))
	assert.Equal(t, http.StatusBadRequest, status)

	f.provider.InitiateErr = fmt.Errorf("%w: connection refused", apperror.ErrGatewayUnavailable)
	status, _ = f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.plan.Id.String(), user, nil))
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestFreePlanActivatesWithoutPayment(t *testing.T) {
	f := newRoutesFixture(t)
	user := uuid.New()

	status, env := f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.free.Id.String(), user, nil))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Subscription activated", env.Message)
	assert.Empty(t, f.provider.Initiated)
}

func TestVerifyUnknownReference(t *testing.T) {
	f := newRoutesFixture(t)

	status, _ := f.do(t, authed(t, http.MethodPost, "/api/payments/verify", uuid.New(), map[string]string{"reference": "PAY-nope"}))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, authed(t, http.MethodPost, "/api/payments/verify", uuid.New(), map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebhookRoute(t *testing.T) {
	f := newRoutesFixture(t)
	user := uuid.New()

	_, env := f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.plan.Id.String(), user, nil))
	var created struct {
		PaymentReference string `json:"payment_reference"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"authorization":{"card_type":"visa"}}}`, created.PaymentReference))

	t.Run("bad signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", "deadbeef")
		status, _ := f.do(t, req)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = f.do(t, authed(t, http.MethodGet, "/api/subscriptions/current", user, nil))
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("valid signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
		req.Header.Set("signature", f.auth.Sign(body))
		status, _ := f.do(t, req)
		assert.Equal(t, http.StatusOK, status)

		status, _ = f.do(t, authed(t, http.MethodGet, "/api/subscriptions/current", user, nil))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("replay is acknowledged", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", f.auth.Sign(body))
		status, _ := f.do(t, req)
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestEntitlementRoute(t *testing.T) {
	f := newRoutesFixture(t)
	user := uuid.New()

	status, env := f.do(t, authed(t, http.MethodGet, "/api/entitlements/max_offers?usage=5", user, nil))
	require.Equal(t, http.StatusOK, status)
	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.Equal(t, false, decision["allowed"])
	assert.EqualValues(t, 5, decision["limit"])
	assert.Equal(t, "Free", decision["plan_name"])

	status, _ = f.do(t, authed(t, http.MethodGet, "/api/entitlements/max_widgets", user, nil))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebhookRoute_MidtransNotification(t *testing.T) {
	f := newRoutesFixture(t)
	user := uuid.New()

	_, env := f.do(t, authed(t, http.MethodPost, "/api/subscriptions/"+f.plan.Id.String(), user, nil))
	var created struct {
		PaymentReference string `json:"payment_reference"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	notification := func(signature string) []byte {
		return []byte(fmt.Sprintf(`{"order_id":%q,"transaction_status":"settlement","status_code":"200","gross_amount":"2999.00","signature_key":%q}`,
			created.PaymentReference, signature))
	}

	t.Run("wrong signature key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(notification("deadbeef")))
		status, _ := f.do(t, req)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = f.do(t, authed(t, http.MethodGet, "/api/subscriptions/current", user, nil))
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("signed body without header", func(t *testing.T) {
		body := notification(f.auth.SignNotification(created.PaymentReference, "200", "2999.00"))
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
		status, _ := f.do(t, req)
		assert.Equal(t, http.StatusOK, status)

		status, _ = f.do(t, authed(t, http.MethodGet, "/api/subscriptions/current", user, nil))
		assert.Equal(t, http.StatusOK, status)
	})
}
