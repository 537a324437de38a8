package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Renewal  RenewalConfig
	Catalog  CatalogConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	RenewalLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type AuthConfig struct {
	JWTSecret string
}

type PaymentConfig struct {
	Provider           string // "paystack" or "midtrans"
	PaystackSecretKey  string
	PaystackBaseURL    string
	MidtransServerKey  string
	MidtransProduction bool
	WebhookSecret      string
	CallbackURL        string
	Currency           string
	Timeout            time.Duration
}

type RenewalConfig struct {
	Enabled    bool
	Interval   time.Duration
	WindowDays int
	LockTTL    time.Duration
}

type CatalogConfig struct {
	PlanCacheTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	paystackSecret := getEnv("PAYSTACK_SECRET_KEY", "")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "billing.log"),
			RenewalLogFilePath: getEnv("RENEWAL_LOG_FILE_PATH", "renewal.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Sales Offers"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Payment: PaymentConfig{
			Provider:           strings.ToLower(getEnv("PAYMENT_PROVIDER", "paystack")),
			PaystackSecretKey:  paystackSecret,
			PaystackBaseURL:    getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			MidtransServerKey:  getEnv("MIDTRANS_SERVER_KEY", ""),
			MidtransProduction: getEnvAsBool("MIDTRANS_IS_PRODUCTION", false),
			// Paystack signs webhooks with the account secret key
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", paystackSecret),
			CallbackURL:   getEnv("PAYMENT_CALLBACK_URL", "http://localhost:5173/payment/callback"),
			Currency:      getEnv("PAYMENT_CURRENCY", "KES"),
			Timeout:       getEnvAsDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		Renewal: RenewalConfig{
			Enabled:    getEnvAsBool("RENEWAL_ENABLED", true),
			Interval:   getEnvAsDuration("RENEWAL_INTERVAL", time.Hour),
			WindowDays: getEnvAsInt("RENEWAL_WINDOW_DAYS", 3),
			LockTTL:    getEnvAsDuration("RENEWAL_LOCK_TTL", 10*time.Minute),
		},
		Catalog: CatalogConfig{
			PlanCacheTTL: getEnvAsDuration("PLAN_CACHE_TTL", 5*time.Minute),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
