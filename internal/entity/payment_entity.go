package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string
type PaymentMethod string
type PaymentPurpose string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"

	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodMpesa        PaymentMethod = "mpesa"
	PaymentMethodStoredToken  PaymentMethod = "stored_token"
	PaymentMethodFree         PaymentMethod = "free"

	PaymentPurposePurchase PaymentPurpose = "purchase"
	PaymentPurposeRenewal  PaymentPurpose = "renewal"
)

// FailureReasonPrepaidCard is recorded when a prepaid card is refused.
const FailureReasonPrepaidCard = "prepaid cards are not accepted"

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

type Payment struct {
	Id              uuid.UUID
	AccountId       uuid.UUID
	SubscriptionId  uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Method          PaymentMethod
	Reference       string // Idempotency key for every downstream signal
	Purpose         PaymentPurpose
	Status          PaymentStatus
	FailureReason   string
	GatewayProvider string
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPaymentReference returns a globally unique payment reference.
func NewPaymentReference() string {
	return uuid.NewString()
}
