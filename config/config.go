package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "shop-service/pkg/aws"
)

// Config holds all environment-driven settings for the shop service.
type Config struct {
	Env  string
	Port string
	// BaseURL is the public origin used for the provider redirect URLs.
	BaseURL string

	RedisURL      string
	CartTTL       time.Duration
	ProductCache  time.Duration
	SessionCookie string

	// CatalogBackend selects "postgres" or "memory".
	CatalogBackend   string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookKey     string
	Currency             string
	// VerifyPayment makes the success return check the session with Stripe
	// before stock is committed.
	VerifyPayment bool

	AdminAPIKey         string
	AllowedOrigins      []string
	CheckoutSNSTopicARN string
	// ImageBucket enables presigned product image uploads.
	ImageBucket        string
	ImagePublicBaseURL string
}

// Secrets Manager names consulted when AWS_USE_SECRETS=true.
const (
	stripeSecretName = "shop/STRIPE_KEYS"
	dbSecretName     = "shop/DB_CREDENTIALS"
)

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override. Missing Stripe keys are not fatal here: checkout
// reports them to the visitor instead.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8086"),
		BaseURL:              strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8086"), "/"),
		RedisURL:             getEnv("REDIS_URL", "redis://redis:6379"),
		CartTTL:              getDuration("CART_TTL", 7*24*time.Hour),
		ProductCache:         getDuration("PRODUCT_CACHE_TTL", 10*time.Minute),
		SessionCookie:        getEnv("SESSION_COOKIE", "shop_session"),
		CatalogBackend:       getEnv("CATALOG_BACKEND", "postgres"),
		PostgresUser:         os.Getenv("POSTGRES_USER"),
		PostgresPassword:     os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:           os.Getenv("POSTGRES_DB"),
		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:     getEnv("POSTGRES_TIMEZONE", "Europe/London"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookKey:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:             strings.ToLower(getEnv("SHOP_CURRENCY", "gbp")),
		VerifyPayment:        getBool("VERIFY_PAYMENT", true),
		AdminAPIKey:          os.Getenv("ADMIN_API_KEY"),
		AllowedOrigins:       splitList(os.Getenv("ALLOWED_ORIGINS")),
		CheckoutSNSTopicARN:  os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),
		ImageBucket:          os.Getenv("S3_BUCKET_IMAGES"),
		ImagePublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			cfg.applySecrets(context.Background(), aws_pkg.NewSecretsManagerStore(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides Stripe keys and database credentials with the
// non-empty values found in Secrets Manager.
func (c *Config) applySecrets(ctx context.Context, store aws_pkg.SecretStore) {
	if m, err := store.Lookup(ctx, stripeSecretName); err == nil {
		override(&c.StripeSecretKey, m["STRIPE_SECRET_KEY"])
		override(&c.StripePublishableKey, m["STRIPE_PUBLISHABLE_KEY"])
		override(&c.StripeWebhookKey, m["STRIPE_WEBHOOK_SECRET"])
	}
	if m, err := store.Lookup(ctx, dbSecretName); err == nil {
		override(&c.PostgresUser, m["POSTGRES_USER"])
		override(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&c.PostgresDB, m["POSTGRES_DB"])
		override(&c.PostgresHost, m["POSTGRES_HOST"])
		override(&c.PostgresPort, m["POSTGRES_PORT"])
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	switch c.CatalogBackend {
	case "memory":
	case "postgres":
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" {
			return fmt.Errorf("database config incomplete")
		}
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive")
	}
	return nil
}

// StripeConfigured reports whether both Stripe keys are present.
func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != "" && c.StripePublishableKey != ""
}

// PostgresDSN builds the gorm postgres DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(o), "/")); o != "" {
			out = append(out, o)
		}
	}
	return out
}
