package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sales-offers-billing/internal/bootstrap"
	"sales-offers-billing/internal/config"
	"sales-offers-billing/internal/server"
	"sales-offers-billing/internal/tracer"
	"sales-offers-billing/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting entitlement event consumer...")
		if err := container.EventConsumer.Start(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	if cfg.Renewal.Enabled {
		if err := container.RenewalScheduler.Start(ctx); err != nil {
			log.Fatalf("Unable to start renewal scheduler: %v", err)
		}
		defer container.RenewalScheduler.Stop()
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
