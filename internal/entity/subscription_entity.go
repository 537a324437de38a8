// FILE: internal/entity/subscription_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionStatus string
type BillingMode string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"

	BillingModeManual BillingMode = "manual"
	BillingModeAuto   BillingMode = "auto"
)

func (m BillingMode) IsValid() bool {
	return m == BillingModeManual || m == BillingModeAuto
}

type SubscriptionPlan struct {
	Id              uuid.UUID
	Name            string
	Slug            string
	Description     string
	Price           decimal.Decimal
	Currency        string
	DurationDays    int
	Features        PlanFeatures
	MarketingPoints []string // Display bullets for the pricing page
	HostedPageURL   string   // Optional pre-hosted gateway page
	Version         int      // Bumped on every administrative change
	IsActive        bool
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p *SubscriptionPlan) IsFree() bool {
	return p.Price.Sign() <= 0
}

func (p *SubscriptionPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// Snapshot captures the plan terms a subscription was issued under.
func (p *SubscriptionPlan) Snapshot() PlanSnapshot {
	return PlanSnapshot{
		PlanId:       p.Id,
		Name:         p.Name,
		Price:        p.Price,
		Currency:     p.Currency,
		DurationDays: p.DurationDays,
		Features:     p.Features.Clone(),
		Version:      p.Version,
	}
}

// PlanSnapshot is immutable once stored on a subscription. Later plan edits do not
// reach it.
type PlanSnapshot struct {
	PlanId       uuid.UUID       `json:"plan_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DurationDays int             `json:"duration_days"`
	Features     PlanFeatures    `json:"features"`
	Version      int             `json:"version"`
}

func (s PlanSnapshot) Duration() time.Duration {
	return time.Duration(s.DurationDays) * 24 * time.Hour
}

type Subscription struct {
	Id                 uuid.UUID
	AccountId          uuid.UUID
	AccountEmail       string // captured at purchase for gateway calls and notices
	PlanId             uuid.UUID
	PlanSnapshot       PlanSnapshot
	Status             SubscriptionStatus
	BillingMode        BillingMode
	StartTime          *time.Time
	EndTime            *time.Time
	PaymentReference   string
	AuthorizationToken *string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsEffectivelyActive is the only entitlement predicate. A stored "active" status with
// an end time in the past is treated as expired.
func (s *Subscription) IsEffectivelyActive(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive || s.EndTime == nil {
		return false
	}
	return s.EndTime.After(now)
}

// DisplayStatus reports "expired" for lapsed active subscriptions without writing it back.
func (s *Subscription) DisplayStatus(now time.Time) SubscriptionStatus {
	if s.Status == SubscriptionStatusActive && !s.IsEffectivelyActive(now) {
		return SubscriptionStatusExpired
	}
	return s.Status
}

func (s *Subscription) HasStoredToken() bool {
	return s.AuthorizationToken != nil && *s.AuthorizationToken != ""
}

// MaskToken keeps the last four characters of a gateway authorization token.
func MaskToken(token *string) string {
	if token == nil || *token == "" {
		return ""
	}
	t := *token
	if len(t) <= 4 {
		return "****"
	}
	return "****" + t[len(t)-4:]
}
