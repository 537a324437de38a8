// Package gateway defines the payment gateway adapter and the outcomes it reports.
package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

type OutcomeKind string

const (
	Succeeded           OutcomeKind = "succeeded"
	Rejected            OutcomeKind = "rejected"
	PrepaidCardRejected OutcomeKind = "prepaid_card_rejected"
	StillPending        OutcomeKind = "still_pending"
	NotFound            OutcomeKind = "not_found"
	GatewayUnavailable  OutcomeKind = "gateway_unavailable"
)

// Outcome is the normalized result of asking a gateway about one payment.
type Outcome struct {
	Kind               OutcomeKind
	AuthorizationToken string // set on Succeeded when the gateway returned a reusable token
	Reason             string
	CardType           string
	Channel            string
	AmountMinor        int64
}

func (o Outcome) IsRejection() bool {
	return o.Kind == Rejected || o.Kind == PrepaidCardRejected
}

type InitiateRequest struct {
	Reference     string
	Email         string
	AmountMinor   int64
	Currency      string
	CallbackURL   string
	PlanName      string
	HostedPageURL string
}

type InitiateResult struct {
	RedirectURL string
	AccessCode  string
}

type ChargeRequest struct {
	Token       string
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
}

// Provider is implemented by each supported payment gateway.
// Verify and ChargeStoredToken never return transport errors; those become
// GatewayUnavailable outcomes.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, reference string) Outcome
	ChargeStoredToken(ctx context.Context, req ChargeRequest) Outcome
}

// ToMinorUnits converts a major-unit amount to the smallest currency unit.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// IsPrepaidCard reports whether a gateway card type describes a prepaid card.
func IsPrepaidCard(cardType string) bool {
	return strings.Contains(strings.ToLower(cardType), "prepaid")
}

// SuccessOutcome builds a Succeeded outcome, downgrading prepaid cards.
func SuccessOutcome(cardType, token string) Outcome {
	if IsPrepaidCard(cardType) {
		return Outcome{
			Kind:     PrepaidCardRejected,
			Reason:   "prepaid cards are not accepted",
			CardType: cardType,
		}
	}
	return Outcome{
		Kind:               Succeeded,
		AuthorizationToken: token,
		CardType:           cardType,
	}
}

// HostedPageLink embeds reference and email into a pre-hosted payment page URL.
func HostedPageLink(pageURL, reference, email string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("reference", reference)
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
