package bootstrap

import (
	"context"
	"log"

	"sales-offers-billing/internal/config"
	"sales-offers-billing/internal/controller"
	"sales-offers-billing/internal/events"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/pkg/mailer"
	"sales-offers-billing/internal/pkg/serverutils"
	"sales-offers-billing/internal/pkg/webhookauth"
	"sales-offers-billing/internal/repository/memory"
	"sales-offers-billing/internal/repository/unitofwork"
	"sales-offers-billing/internal/scheduler"
	"sales-offers-billing/internal/service"
	"sales-offers-billing/pkg/gateway"
	"sales-offers-billing/pkg/gateway/midtrans"
	"sales-offers-billing/pkg/gateway/paystack"
	pktNats "sales-offers-billing/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	PlanController         controller.PlanController
	SubscriptionController controller.ISubscriptionController
	PaymentController      controller.IPaymentController
	EntitlementController  controller.IEntitlementController
	JwtMiddleware          fiber.Handler

	// Background Services (Exposed for main.go to run)
	EventConsumer    *events.Consumer
	RenewalScheduler *scheduler.RenewalScheduler
	RenewalService   service.RenewalService

	Logger logger.ILogger

	closers []func()
}

// NewProvider selects the payment gateway adapter named in config.
func NewProvider(cfg config.PaymentConfig) gateway.Provider {
	switch cfg.Provider {
	case "midtrans":
		return midtrans.NewClient(cfg.MidtransServerKey, cfg.MidtransProduction)
	default:
		return paystack.NewClient(cfg.PaystackSecretKey,
			paystack.WithBaseURL(cfg.PaystackBaseURL),
			paystack.WithTimeout(cfg.Timeout),
		)
	}
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	renewalLogger := logger.NewIsolatedLogger(cfg.App.RenewalLogFilePath)

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	publisher := events.NewBusPublisher(pubSub, sysLogger)

	// 3. Infrastructure
	// NATS
	var forwarder events.Forwarder
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		forwarder = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (renewal runs unlocked)", err)
	}

	provider := NewProvider(cfg.Payment)
	log.Printf("[INFO] Using Payment Provider: %s", provider.Name())

	// 4. Services
	planCache := memory.NewPlanCache(cfg.Catalog.PlanCacheTTL)
	planService := service.NewPlanService(uowFactory, planCache)
	subscriptionService := service.NewSubscriptionService(uowFactory, publisher, sysLogger)
	reconciliationService := service.NewReconciliationService(uowFactory, publisher, sysLogger)
	paymentService := service.NewPaymentService(
		uowFactory,
		planService,
		subscriptionService,
		reconciliationService,
		provider,
		webhookauth.NewAuthenticator(cfg.Payment.WebhookSecret, webhookauth.WithMidtransServerKey(cfg.Payment.MidtransServerKey)),
		sysLogger,
		cfg.Payment.CallbackURL,
		cfg.Payment.Timeout,
	)
	entitlementService := service.NewEntitlementService(subscriptionService)
	renewalService := service.NewRenewalService(
		uowFactory,
		provider,
		reconciliationService,
		publisher,
		renewalLogger,
		cfg.Renewal.WindowDays,
		cfg.Payment.Timeout,
	)

	consumer := events.NewConsumer(pubSub, emailService, forwarder, sysLogger)
	renewalScheduler := scheduler.NewRenewalScheduler(renewalService, rdb, renewalLogger, cfg.Renewal.Interval, cfg.Renewal.LockTTL)

	closers := []func(){
		func() { _ = pubSub.Close() },
		func() { _ = rdb.Close() },
		func() { _ = sysLogger.Sync() },
		func() { _ = renewalLogger.Sync() },
	}
	if natsPub != nil {
		closers = append(closers, natsPub.Close)
	}

	// 5. Controllers
	return &Container{
		PlanController:         controller.NewPlanController(planService),
		SubscriptionController: controller.NewSubscriptionController(paymentService, subscriptionService),
		PaymentController:      controller.NewPaymentController(paymentService, subscriptionService, sysLogger),
		EntitlementController:  controller.NewEntitlementController(entitlementService),
		JwtMiddleware:          serverutils.NewJwtMiddleware(cfg.Auth.JWTSecret),

		EventConsumer:    consumer,
		RenewalScheduler: renewalScheduler,
		RenewalService:   renewalService,
		Logger:           sysLogger,
		closers:          closers,
	}
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
