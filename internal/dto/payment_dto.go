// FILE: internal/dto/payment_dto.go
package dto

import (
	"time"

	"sales-offers-billing/internal/entity"

	"github.com/google/uuid"
)

type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
}

type PaymentResponse struct {
	Id             uuid.UUID  `json:"id"`
	SubscriptionId uuid.UUID  `json:"subscription_id"`
	Reference      string     `json:"reference"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	Method         string     `json:"method"`
	Purpose        string     `json:"purpose"`
	Status         string     `json:"status"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewPaymentResponse(p *entity.Payment) *PaymentResponse {
	return &PaymentResponse{
		Id:             p.Id,
		SubscriptionId: p.SubscriptionId,
		Reference:      p.Reference,
		Amount:         p.Amount.StringFixed(2),
		Currency:       p.Currency,
		Method:         string(p.Method),
		Purpose:        string(p.Purpose),
		Status:         string(p.Status),
		FailureReason:  p.FailureReason,
		CompletedAt:    p.CompletedAt,
		CreatedAt:      p.CreatedAt,
	}
}

// WebhookPayload is the subset of the gateway notification we act on.
// Paystack sends event/data; Midtrans sends order_id/transaction_status at the top level.
type WebhookPayload struct {
	Event             string `json:"event"`
	OrderId           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	SavedTokenId      string `json:"saved_token_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	Data              struct {
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		GatewayResponse string `json:"gateway_response"`
		Authorization   struct {
			AuthorizationCode string `json:"authorization_code"`
			CardType          string `json:"card_type"`
			Reusable          bool   `json:"reusable"`
		} `json:"authorization"`
	} `json:"data"`
}

type QuotaResponse struct {
	Feature   string `json:"feature"`
	Allowed   bool   `json:"allowed"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Unlimited bool   `json:"unlimited"`
	PlanName  string `json:"plan_name"`
}
