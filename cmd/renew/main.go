// Command renew runs a single auto-renewal pass and prints the report.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"sales-offers-billing/internal/bootstrap"
	"sales-offers-billing/internal/config"
	"sales-offers-billing/pkg/database"

	"github.com/fatih/color"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	container := bootstrap.NewContainer(db, cfg)
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// Deliver the emails and NATS events produced by this pass
	go func() {
		if err := container.EventConsumer.Start(ctx); err != nil {
			log.Printf("Consumer error: %v", err)
		}
	}()

	color.Cyan("Running auto-renewal (window %d days)...\n", cfg.Renewal.WindowDays)
	report, ran := container.RenewalScheduler.Tick(ctx)
	if !ran {
		color.Yellow("Another renewal pass holds the lock, nothing to do")
		return 0
	}

	color.White("Candidates: %d", report.Candidates)
	color.Green("Renewed:    %d", report.Renewed)
	color.Yellow("Skipped:    %d", report.Skipped)
	if report.Failed > 0 {
		color.Red("Failed:     %d", report.Failed)
		for _, e := range report.Errors {
			color.Red("  - %s", e)
		}
	}

	// Give the consumer a moment to drain the in-process bus
	time.Sleep(2 * time.Second)
	if report.Failed > 0 {
		return 1
	}
	return 0
}
