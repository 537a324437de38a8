package main

import (
	"context"
	"log"
	"os"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/repository/memory"
	"sales-offers-billing/internal/repository/unitofwork"
	"sales-offers-billing/internal/service"
	"sales-offers-billing/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DefaultPlans is the starter catalog for a fresh install.
func DefaultPlans(currency string) []*entity.SubscriptionPlan {
	return []*entity.SubscriptionPlan{
		{
			Name:         "Basic Seller",
			Slug:         "basic-seller",
			Description:  "Get started listing offers",
			Price:        decimal.Zero,
			Currency:     currency,
			DurationDays: 30,
			Features: entity.PlanFeatures{
				entity.FeatureMaxOffers: 5,
			},
			MarketingPoints: []string{"Up to 5 active offers", "Basic storefront"},
			IsActive:        true,
			SortOrder:       1,
		},
		{
			Name:         "Pro Seller",
			Slug:         "pro-seller",
			Description:  "For growing sellers",
			Price:        decimal.NewFromInt(2999),
			Currency:     currency,
			DurationDays: 30,
			Features: entity.PlanFeatures{
				entity.FeatureMaxOffers:        50,
				entity.FeatureFeaturedListings: 5,
			},
			MarketingPoints: []string{"Up to 50 active offers", "5 featured listings", "Priority placement"},
			IsActive:        true,
			SortOrder:       2,
		},
		{
			Name:         "Enterprise",
			Slug:         "enterprise",
			Description:  "Unlimited offers for large catalogs",
			Price:        decimal.NewFromInt(9999),
			Currency:     currency,
			DurationDays: 30,
			Features: entity.PlanFeatures{
				entity.FeatureMaxOffers:        entity.UnlimitedQuota,
				entity.FeatureFeaturedListings: entity.UnlimitedQuota,
				entity.FeatureAnalyticsExports: entity.UnlimitedQuota,
			},
			MarketingPoints: []string{"Unlimited offers", "Unlimited featured listings", "Analytics exports"},
			IsActive:        true,
			SortOrder:       3,
		},
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	currency := os.Getenv("PAYMENT_CURRENCY")
	if currency == "" {
		currency = "KES"
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	plans := service.NewPlanService(unitofwork.NewRepositoryFactory(db), memory.NewPlanCache(0))

	color.Cyan("Seeding plan catalog...\n")
	failed := 0
	for _, p := range DefaultPlans(currency) {
		saved, created, err := plans.SavePlan(context.Background(), p)
		if err != nil {
			color.Red("  %-14s failed: %v", p.Slug, err)
			failed++
			continue
		}
		if created {
			color.Green("  %-14s created  %s %s / %dd (v%d)", saved.Slug, saved.Price.StringFixed(2), saved.Currency, saved.DurationDays, saved.Version)
		} else {
			color.Yellow("  %-14s updated  %s %s / %dd (v%d)", saved.Slug, saved.Price.StringFixed(2), saved.Currency, saved.DurationDays, saved.Version)
		}
	}

	if failed > 0 {
		color.Red("Plan seeding finished with %d error(s)", failed)
		os.Exit(1)
	}
	color.Green("Plan seeding completed!")
}
