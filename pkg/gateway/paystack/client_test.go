package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("sk_test", WithBaseURL(srv.URL), WithHTTPClient(srv.Client())), srv
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func verifyResponse(status, cardType string, reusable bool) map[string]interface{} {
	return map[string]interface{}{
		"status":  true,
		"message": "Verification successful",
		"data": map[string]interface{}{
			"status":           status,
			"reference":        "ref-1",
			"amount":           299900,
			"currency":         "KES",
			"gateway_response": "Declined",
			"channel":          "card",
			"authorization": map[string]interface{}{
				"authorization_code": "AUTH_abc123",
				"card_type":          cardType,
				"reusable":           reusable,
			},
		},
	}
}

func TestInitiate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(299900), body["amount"])
		assert.Equal(t, "ref-1", body["reference"])
		assert.Equal(t, "seller@example.com", body["email"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]interface{}{
				"authorization_url": "https://checkout.paystack.com/abc",
				"access_code":       "abc",
				"reference":         "ref-1",
			},
		})
	})

	res, err := client.Initiate(context.Background(), gateway.InitiateRequest{
		Reference:   "ref-1",
		Email:       "seller@example.com",
		AmountMinor: 299900,
		Currency:    "KES",
		PlanName:    "Pro Seller",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.RedirectURL)
	assert.Equal(t, "abc", res.AccessCode)
}

func TestInitiateHostedPageSkipsGateway(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	res, err := client.Initiate(context.Background(), gateway.InitiateRequest{
		Reference:     "ref-1",
		Email:         "seller@example.com",
		HostedPageURL: "https://paystack.com/pay/pro-seller",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://paystack.com/pay/pro-seller?email=seller%40example.com&reference=ref-1", res.RedirectURL)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestInitiateWithoutCredentials(t *testing.T) {
	client := NewClient("")
	_, err := client.Initiate(context.Background(), gateway.InitiateRequest{Reference: "ref-1", AmountMinor: 100})
	assert.ErrorIs(t, err, apperror.ErrPlanNotConfigured)
}

func TestInitiateServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.Initiate(context.Background(), gateway.InitiateRequest{Reference: "ref-1", AmountMinor: 100})
	assert.ErrorIs(t, err, apperror.ErrGatewayUnavailable)
}

func TestInitiateRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": false, "message": "Invalid email"})
	})
	_, err := client.Initiate(context.Background(), gateway.InitiateRequest{Reference: "ref-1", AmountMinor: 100})
	assert.ErrorIs(t, err, apperror.ErrRejectedByGateway)
	assert.Contains(t, err.Error(), "Invalid email")
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      interface{}
		wantKind  gateway.OutcomeKind
		wantToken string
	}{
		{"success with reusable card", http.StatusOK, verifyResponse("success", "visa DEBIT", true), gateway.Succeeded, "AUTH_abc123"},
		{"success without reusable card", http.StatusOK, verifyResponse("success", "visa DEBIT", false), gateway.Succeeded, ""},
		{"prepaid card", http.StatusOK, verifyResponse("success", "visa PREPAID", true), gateway.PrepaidCardRejected, ""},
		{"failed", http.StatusOK, verifyResponse("failed", "visa DEBIT", true), gateway.Rejected, ""},
		{"abandoned", http.StatusOK, verifyResponse("abandoned", "", false), gateway.Rejected, ""},
		{"ongoing", http.StatusOK, verifyResponse("ongoing", "", false), gateway.StillPending, ""},
		{"unknown reference", http.StatusBadRequest, map[string]interface{}{"status": false, "message": "Transaction reference not found"}, gateway.NotFound, ""},
		{"404", http.StatusNotFound, map[string]interface{}{"status": false, "message": "Not found"}, gateway.NotFound, ""},
		{"server error", http.StatusInternalServerError, map[string]interface{}{}, gateway.GatewayUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})

			outcome := client.Verify(context.Background(), "ref-1")
			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, tt.wantToken, outcome.AuthorizationToken)
		})
	}
}

func TestVerifyRejectionCarriesReason(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, verifyResponse("failed", "visa DEBIT", true))
	})
	outcome := client.Verify(context.Background(), "ref-1")
	assert.Equal(t, "Declined", outcome.Reason)
}

func TestVerifyNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient("sk_test", WithBaseURL(srv.URL))
	srv.Close()

	outcome := client.Verify(context.Background(), "ref-1")
	assert.Equal(t, gateway.GatewayUnavailable, outcome.Kind)
}

func TestChargeStoredToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/charge_authorization", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AUTH_abc123", body["authorization_code"])
		assert.Equal(t, float64(299900), body["amount"])

		writeJSON(w, http.StatusOK, verifyResponse("success", "visa DEBIT", false))
	})

	outcome := client.ChargeStoredToken(context.Background(), gateway.ChargeRequest{
		Token:       "AUTH_abc123",
		Email:       "seller@example.com",
		AmountMinor: 299900,
		Currency:    "KES",
		Reference:   "renew-1",
	})
	assert.Equal(t, gateway.Succeeded, outcome.Kind)
	assert.Equal(t, "AUTH_abc123", outcome.AuthorizationToken)
}

func TestChargeStoredTokenDeclined(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, verifyResponse("failed", "visa DEBIT", true))
	})
	outcome := client.ChargeStoredToken(context.Background(), gateway.ChargeRequest{Token: "AUTH_abc123", Reference: "renew-1"})
	assert.Equal(t, gateway.Rejected, outcome.Kind)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 6; i++ {
		assert.Equal(t, gateway.GatewayUnavailable, client.Verify(context.Background(), "ref-1").Kind)
	}
	outcome := client.Verify(context.Background(), "ref-1")

	assert.Equal(t, gateway.GatewayUnavailable, outcome.Kind)
	assert.Contains(t, outcome.Reason, "circuit breaker open")
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
}
