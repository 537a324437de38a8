// Package paystack implements gateway.Provider against the Paystack REST API.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/pkg/gateway"
)

const DefaultBaseURL = "https://api.paystack.co"

type Client struct {
	secretKey string
	baseURL   string
	timeout   time.Duration
	http      *gateway.BreakerClient
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = gateway.NewBreakerClient(httpClient, "paystack")
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewClient(secretKey string, opts ...Option) *Client {
	c := &Client{
		secretKey: secretKey,
		baseURL:   DefaultBaseURL,
		timeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = gateway.NewBreakerClient(nil, "paystack")
	}
	return c
}

func (c *Client) Name() string {
	return "paystack"
}

// envelope is the common Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type authorization struct {
	AuthorizationCode string `json:"authorization_code"`
	CardType          string `json:"card_type"`
	Channel           string `json:"channel"`
	Reusable          bool   `json:"reusable"`
}

type transactionData struct {
	Status          string        `json:"status"`
	Reference       string        `json:"reference"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	GatewayResponse string        `json:"gateway_response"`
	Channel         string        `json:"channel"`
	Authorization   authorization `json:"authorization"`
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	if req.HostedPageURL != "" {
		link, err := gateway.HostedPageLink(req.HostedPageURL, req.Reference, req.Email)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hosted page url", apperror.ErrPlanNotConfigured)
		}
		return &gateway.InitiateResult{RedirectURL: link}, nil
	}
	if c.secretKey == "" {
		return nil, apperror.ErrPlanNotConfigured
	}

	payload := map[string]interface{}{
		"email":        req.Email,
		"amount":       req.AmountMinor,
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
		"metadata": map[string]interface{}{
			"plan_name": req.PlanName,
		},
	}

	status, env, err := c.send(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 || !env.Status {
		return nil, apperror.NewRejection(apperror.ErrRejectedByGateway, env.Message)
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed initialize response", apperror.ErrGatewayUnavailable)
	}
	if data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: missing authorization url", apperror.ErrGatewayUnavailable)
	}

	return &gateway.InitiateResult{
		RedirectURL: data.AuthorizationURL,
		AccessCode:  data.AccessCode,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) gateway.Outcome {
	if c.secretKey == "" {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: "gateway credentials not configured"}
	}

	status, env, err := c.send(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: err.Error()}
	}
	if status == http.StatusNotFound || (status == http.StatusBadRequest && strings.Contains(strings.ToLower(env.Message), "not found")) {
		return gateway.Outcome{Kind: gateway.NotFound, Reason: env.Message}
	}
	if status >= 400 || !env.Status {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: env.Message}
	}

	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: "malformed verify response"}
	}
	return toOutcome(data)
}

func (c *Client) ChargeStoredToken(ctx context.Context, req gateway.ChargeRequest) gateway.Outcome {
	if c.secretKey == "" {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: "gateway credentials not configured"}
	}

	payload := map[string]interface{}{
		"authorization_code": req.Token,
		"email":              req.Email,
		"amount":             req.AmountMinor,
		"currency":           req.Currency,
		"reference":          req.Reference,
	}

	status, env, err := c.send(ctx, http.MethodPost, "/transaction/charge_authorization", payload)
	if err != nil {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: err.Error()}
	}
	if status >= 400 || !env.Status {
		return gateway.Outcome{Kind: gateway.Rejected, Reason: env.Message}
	}

	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: "malformed charge response"}
	}
	outcome := toOutcome(data)
	if outcome.Kind == gateway.Succeeded && outcome.AuthorizationToken == "" {
		outcome.AuthorizationToken = req.Token
	}
	return outcome
}

func toOutcome(data transactionData) gateway.Outcome {
	var outcome gateway.Outcome
	switch strings.ToLower(data.Status) {
	case "success":
		token := ""
		if data.Authorization.Reusable {
			token = data.Authorization.AuthorizationCode
		}
		outcome = gateway.SuccessOutcome(data.Authorization.CardType, token)
	case "failed", "abandoned", "reversed":
		reason := data.GatewayResponse
		if reason == "" {
			reason = data.Status
		}
		outcome = gateway.Outcome{Kind: gateway.Rejected, Reason: reason, CardType: data.Authorization.CardType}
	default:
		// ongoing, pending, processing, queued, send_otp
		outcome = gateway.Outcome{Kind: gateway.StillPending, Reason: data.Status}
	}
	outcome.AmountMinor = data.Amount
	if outcome.Channel == "" {
		outcome.Channel = data.Channel
	}
	return outcome
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) (int, *envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", apperror.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, apperror.ErrGatewayUnavailable) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: %v", apperror.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return resp.StatusCode, &envelope{Message: http.StatusText(resp.StatusCode)}, nil
		}
		return 0, nil, fmt.Errorf("%w: malformed response body", apperror.ErrGatewayUnavailable)
	}
	return resp.StatusCode, &env, nil
}
