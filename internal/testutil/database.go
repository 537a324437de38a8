// Package testutil provides an in-memory ledger database and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/repository/unitofwork"
	"sales-offers-billing/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with the billing schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewFactory returns a repository factory over a fresh test database.
func NewFactory(t *testing.T) (unitofwork.RepositoryFactory, *gorm.DB) {
	t.Helper()
	db := NewTestDB(t)
	return unitofwork.NewRepositoryFactory(db), db
}

// ProPlan is the 2999 KES, 30 day plan used across scenarios.
func ProPlan() *entity.SubscriptionPlan {
	return &entity.SubscriptionPlan{
		Name:         "Pro Seller",
		Slug:         "pro-seller",
		Price:        decimal.NewFromInt(2999),
		Currency:     "KES",
		DurationDays: 30,
		Features: entity.PlanFeatures{
			entity.FeatureMaxOffers: 50,
		},
		IsActive:  true,
		SortOrder: 2,
	}
}

// FreePlan is a zero-price plan.
func FreePlan() *entity.SubscriptionPlan {
	return &entity.SubscriptionPlan{
		Name:         "Basic Seller",
		Slug:         "basic-seller",
		Price:        decimal.Zero,
		Currency:     "KES",
		DurationDays: 30,
		Features: entity.PlanFeatures{
			entity.FeatureMaxOffers: 5,
		},
		IsActive:  true,
		SortOrder: 1,
	}
}

// SeedPlan persists plan and returns it with its generated id.
func SeedPlan(t *testing.T, factory unitofwork.RepositoryFactory, plan *entity.SubscriptionPlan) *entity.SubscriptionPlan {
	t.Helper()
	if plan.Version == 0 {
		plan.Version = 1
	}
	ctx := context.Background()
	require.NoError(t, factory.NewUnitOfWork(ctx).SubscriptionRepository().CreatePlan(ctx, plan))
	return plan
}

// SeedActiveSubscription writes an active subscription ending at end.
func SeedActiveSubscription(t *testing.T, factory unitofwork.RepositoryFactory, accountId uuid.UUID, plan *entity.SubscriptionPlan, mode entity.BillingMode, end time.Time, token *string) *entity.Subscription {
	t.Helper()
	ctx := context.Background()
	start := end.Add(-plan.Duration())
	sub := &entity.Subscription{
		AccountId:          accountId,
		AccountEmail:       "seller@example.com",
		PlanId:             plan.Id,
		PlanSnapshot:       plan.Snapshot(),
		Status:             entity.SubscriptionStatusActive,
		BillingMode:        mode,
		StartTime:          &start,
		EndTime:            &end,
		AuthorizationToken: token,
	}
	require.NoError(t, factory.NewUnitOfWork(ctx).SubscriptionRepository().CreateSubscription(ctx, sub))
	return sub
}

func StringPtr(s string) *string {
	return &s
}
