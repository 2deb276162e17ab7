package config

import (
	"time"

	pkgconfig "github.com/Skotchmaster/shop_payments/pkg/config"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/gateway"
)

type Config struct {
	pkgconfig.Config

	MerchantID     string
	GatewayBaseURL string
	GatewayTimeout time.Duration
	CallbackURL    string

	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	IntentTTL           time.Duration
	IntentSweepInterval time.Duration

	StoreID string

	KafkaTopic string
	OrderIndex string
}

// Load reads the environment and exits when a required value is missing.
func Load() *Config {
	base := pkgconfig.Load()
	if base.ServiceName == "" {
		base.ServiceName = "payment"
	}

	cfg := &Config{
		Config: base,

		MerchantID:     pkgconfig.EnvDefault("ZARINPAL_MERCHANT_ID", ""),
		GatewayBaseURL: gatewayBaseURL(),
		GatewayTimeout: pkgconfig.EnvDurationDefault("GATEWAY_TIMEOUT", 10*time.Second),
		CallbackURL:    pkgconfig.EnvDefault("PAYMENT_CALLBACK_URL", ""),

		BreakerFailures:    pkgconfig.EnvIntDefault("GATEWAY_BREAKER_FAILURES", 5),
		BreakerOpenTimeout: pkgconfig.EnvDurationDefault("GATEWAY_BREAKER_OPEN_TIMEOUT", 30*time.Second),

		IntentTTL:           pkgconfig.EnvDurationDefault("INTENT_TTL", 15*time.Minute),
		IntentSweepInterval: pkgconfig.EnvDurationDefault("INTENT_SWEEP_INTERVAL", time.Minute),

		StoreID: pkgconfig.EnvDefault("STORE_ID", ""),

		KafkaTopic: pkgconfig.EnvDefault("KAFKA_TOPIC", "payment_events"),
		OrderIndex: pkgconfig.EnvDefault("ES_ORDER_INDEX", "orders"),
	}

	pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	pkgconfig.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	pkgconfig.MustNonEmpty(cfg.MerchantID, "ZARINPAL_MERCHANT_ID")
	pkgconfig.MustNonEmpty(cfg.CallbackURL, "PAYMENT_CALLBACK_URL")

	return cfg
}

// ZARINPAL_BASE_URL wins over ZARINPAL_SANDBOX.
func gatewayBaseURL() string {
	if v := pkgconfig.EnvDefault("ZARINPAL_BASE_URL", ""); v != "" {
		return v
	}
	if pkgconfig.EnvBoolDefault("ZARINPAL_SANDBOX", false) {
		return gateway.SandboxBaseURL
	}
	return gateway.ProductionBaseURL
}
