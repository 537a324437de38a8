package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SubscriptionPlan struct {
	Id              uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	Name            string                      `gorm:"type:varchar(255);uniqueIndex;not null"`
	Slug            string                      `gorm:"type:varchar(255);uniqueIndex;not null"`
	Description     string                      `gorm:"type:text"`
	Price           decimal.Decimal             `gorm:"type:decimal(12,2);not null"`
	Currency        string                      `gorm:"type:varchar(3);not null;default:'KES'"`
	DurationDays    int                         `gorm:"not null"`
	Features        datatypes.JSON              // {"max_offers": 50, ...}; -1 = unlimited
	MarketingPoints datatypes.JSONSlice[string] // Pricing page bullets
	HostedPageURL   string                      `gorm:"type:varchar(512)"`
	Version         int                         `gorm:"not null;default:1"`
	IsActive        bool                        `gorm:"not null"`
	SortOrder       int                         `gorm:"default:0"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

type Subscription struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	AccountId          uuid.UUID      `gorm:"type:uuid;not null;index:idx_subscriptions_account_status,priority:1"`
	AccountEmail       string         `gorm:"type:varchar(255);not null"`
	PlanId             uuid.UUID      `gorm:"type:uuid;not null;index"`
	PlanSnapshot       datatypes.JSON `gorm:"not null"`
	Status             string         `gorm:"type:varchar(20);not null;index:idx_subscriptions_account_status,priority:2"`
	BillingMode        string         `gorm:"type:varchar(20);not null;default:'manual'"`
	StartTime          *time.Time
	EndTime            *time.Time `gorm:"index"`
	PaymentReference   string     `gorm:"type:varchar(100)"`
	AuthorizationToken *string    `gorm:"type:varchar(255)"`
	CancelledAt        *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
