package payment

import (
	"errors"
	"strings"
	"time"

	"github.com/storefront/backend/internal/infrastructure/config"
)

// StripeConfig contains configuration for the Stripe payment intent adapter
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string
	// WebhookSecret verifies the Stripe-Signature header (whsec_xxx)
	WebhookSecret string
	// IgnoreAPIVersionMismatch accepts events rendered with another API version
	IgnoreAPIVersionMismatch bool
	// Timeout bounds a single HTTP call to Stripe
	Timeout time.Duration
	// MaxNetworkRetries is passed to the Stripe backend
	MaxNetworkRetries int64
	// MinimumAmount is the smallest chargeable amount in minor units
	MinimumAmount int64
	// BreakerMaxFailures consecutive transport failures open the breaker
	BreakerMaxFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open
	BreakerOpenTimeout time.Duration
}

// Errors for configuration validation
var (
	ErrStripeMissingSecretKey     = errors.New("stripe: missing secret key")
	ErrStripeInvalidSecretKey     = errors.New("stripe: secret key must start with sk_ or rk_")
	ErrStripeMissingWebhookSecret = errors.New("stripe: missing webhook secret")
)

// StripeConfigFromAppConfig maps the application settings onto the adapter config
func StripeConfigFromAppConfig(cfg config.StripeConfig) *StripeConfig {
	return &StripeConfig{
		SecretKey:                cfg.SecretKey,
		WebhookSecret:            cfg.WebhookSecret,
		IgnoreAPIVersionMismatch: cfg.IgnoreAPIVersionMismatch,
		Timeout:                  cfg.Timeout,
		MaxNetworkRetries:        cfg.MaxNetworkRetries,
		MinimumAmount:            cfg.MinimumAmount,
		BreakerMaxFailures:       cfg.BreakerMaxFailures,
		BreakerOpenTimeout:       cfg.BreakerOpenTimeout,
	}
}

// Validate validates the configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return ErrStripeMissingSecretKey
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return ErrStripeInvalidSecretKey
	}
	if c.WebhookSecret == "" {
		return ErrStripeMissingWebhookSecret
	}
	return nil
}

// IsTestMode reports whether the key targets Stripe test mode
func (c *StripeConfig) IsTestMode() bool {
	return strings.Contains(c.SecretKey, "_test_")
}

func (c *StripeConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxNetworkRetries <= 0 {
		c.MaxNetworkRetries = 2
	}
	if c.MinimumAmount <= 0 {
		c.MinimumAmount = 50
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
}
