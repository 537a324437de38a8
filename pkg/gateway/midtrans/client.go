// Package midtrans implements gateway.Provider with Midtrans Snap and Core API.
package midtrans

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/pkg/gateway"

	mt "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/sony/gobreaker/v2"
)

type Client struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
	breaker   *gobreaker.CircuitBreaker[any]
}

func NewClient(serverKey string, production bool) *Client {
	env := mt.Sandbox
	if production {
		env = mt.Production
	}

	c := &Client{serverKey: serverKey}
	c.snap.New(serverKey, env)
	c.core.New(serverKey, env)
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "midtrans",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return c
}

func (c *Client) Name() string {
	return "midtrans"
}

// Midtrans amounts are whole currency units.
func grossAmount(amountMinor int64) int64 {
	return amountMinor / 100
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	if req.HostedPageURL != "" {
		link, err := gateway.HostedPageLink(req.HostedPageURL, req.Reference, req.Email)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hosted page url", apperror.ErrPlanNotConfigured)
		}
		return &gateway.InitiateResult{RedirectURL: link}, nil
	}
	if c.serverKey == "" {
		return nil, apperror.ErrPlanNotConfigured
	}

	snapReq := &snap.Request{
		TransactionDetails: mt.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: grossAmount(req.AmountMinor),
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		Callbacks: &snap.Callbacks{
			Finish: req.CallbackURL,
		},
		CustomerDetail: &mt.CustomerDetails{
			Email: req.Email,
		},
		Items: &[]mt.ItemDetails{
			{
				ID:    req.Reference,
				Price: grossAmount(req.AmountMinor),
				Qty:   1,
				Name:  req.PlanName,
			},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}

	result, err := c.execute(ctx, func() (any, error) {
		resp, midErr := c.snap.CreateTransaction(snapReq)
		if midErr != nil {
			return nil, toError(midErr)
		}
		return resp, nil
	})
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			return nil, apperror.NewRejection(apperror.ErrRejectedByGateway, rej.message)
		}
		return nil, err
	}

	resp := result.(*snap.Response)
	return &gateway.InitiateResult{
		RedirectURL: resp.RedirectURL,
		AccessCode:  resp.Token,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) gateway.Outcome {
	if c.serverKey == "" {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: "gateway credentials not configured"}
	}

	result, err := c.execute(ctx, func() (any, error) {
		resp, midErr := c.core.CheckTransaction(reference)
		if midErr != nil {
			return nil, toError(midErr)
		}
		return resp, nil
	})
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) && rej.status == http.StatusNotFound {
			return gateway.Outcome{Kind: gateway.NotFound, Reason: rej.message}
		}
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: err.Error()}
	}

	resp := result.(*coreapi.TransactionStatusResponse)
	if resp.StatusCode == "404" {
		return gateway.Outcome{Kind: gateway.NotFound, Reason: resp.StatusMessage}
	}
	return statusOutcome(resp.TransactionStatus, resp.FraudStatus, resp.StatusMessage, "")
}

func (c *Client) ChargeStoredToken(ctx context.Context, req gateway.ChargeRequest) gateway.Outcome {
	if c.serverKey == "" {
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: "gateway credentials not configured"}
	}

	chargeReq := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: mt.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: grossAmount(req.AmountMinor),
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: req.Token,
		},
	}

	result, err := c.execute(ctx, func() (any, error) {
		resp, midErr := c.core.ChargeTransaction(chargeReq)
		if midErr != nil {
			return nil, toError(midErr)
		}
		return resp, nil
	})
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			return gateway.Outcome{Kind: gateway.Rejected, Reason: rej.message}
		}
		return gateway.Outcome{Kind: gateway.GatewayUnavailable, Reason: err.Error()}
	}

	resp := result.(*coreapi.ChargeResponse)
	return statusOutcome(resp.TransactionStatus, "", resp.StatusMessage, req.Token)
}

// statusOutcome maps Midtrans transaction_status values onto outcomes.
func statusOutcome(transactionStatus, fraudStatus, message, token string) gateway.Outcome {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		if strings.EqualFold(fraudStatus, "challenge") {
			return gateway.Outcome{Kind: gateway.StillPending, Reason: "fraud challenge"}
		}
		return gateway.SuccessOutcome("", token)
	case "settlement":
		return gateway.SuccessOutcome("", token)
	case "deny", "cancel", "expire", "failure":
		return gateway.Outcome{Kind: gateway.Rejected, Reason: transactionStatus}
	case "pending", "authorize", "":
		return gateway.Outcome{Kind: gateway.StillPending, Reason: message}
	default:
		return gateway.Outcome{Kind: gateway.StillPending, Reason: transactionStatus}
	}
}

// rejection is a 4xx answer; it does not count against the breaker.
type rejection struct {
	status  int
	message string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("midtrans %d: %s", r.status, r.message)
}

func toError(midErr *mt.Error) error {
	if midErr.StatusCode >= 400 && midErr.StatusCode < 500 && midErr.StatusCode != http.StatusTooManyRequests {
		return &rejection{status: midErr.StatusCode, message: midErr.GetMessage()}
	}
	return fmt.Errorf("%w: %s", apperror.ErrGatewayUnavailable, midErr.GetMessage())
}

// execute runs a blocking SDK call through the breaker and honors ctx cancellation.
func (c *Client) execute(ctx context.Context, call func() (any, error)) (any, error) {
	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)

	go func() {
		var rejected *rejection
		value, err := c.breaker.Execute(func() (any, error) {
			v, callErr := call()
			if errors.As(callErr, &rejected) {
				return nil, nil
			}
			return v, callErr
		})
		if rejected != nil {
			err = rejected
		}
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", apperror.ErrGatewayUnavailable, ctx.Err())
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, gobreaker.ErrOpenState) || errors.Is(r.err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: circuit breaker open", apperror.ErrGatewayUnavailable)
			}
			return nil, r.err
		}
		return r.value, nil
	}
}
