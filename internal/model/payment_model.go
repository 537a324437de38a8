package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Payment struct {
	Id              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountId       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SubscriptionId  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency        string          `gorm:"type:varchar(3);not null"`
	Method          string          `gorm:"type:varchar(30);not null"`
	Reference       string          `gorm:"type:varchar(100);uniqueIndex;not null"`
	Purpose         string          `gorm:"type:varchar(20);not null;default:'purchase'"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
	FailureReason   string          `gorm:"type:text"`
	GatewayProvider string          `gorm:"type:varchar(30)"`
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
