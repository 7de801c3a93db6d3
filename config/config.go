package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects all environment-backed settings the payment core reads.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Port string

	// Paystack gateway
	PaystackSecretKey string
	PaystackBaseURL   string
	CallbackURL       string

	// Money
	BaseCurrency        string
	SupportedCurrencies []string
	MinPaymentAmount    float64

	// Lifecycle windows
	PaymentExpiry time.Duration
	RateCacheTTL  time.Duration
}

// Load reads the configuration from the environment, falling back to
// development defaults for everything except the gateway secret.
func Load() *Config {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackURL:       getEnv("PAYMENT_CALLBACK_URL", "https://example.com/payments/callback"),
		BaseCurrency:      getEnv("BASE_CURRENCY", "USD"),
		MinPaymentAmount:  getEnvFloat("MIN_PAYMENT_AMOUNT", 1.0),
		PaymentExpiry:     getEnvDuration("PAYMENT_EXPIRY", 30*time.Minute),
		RateCacheTTL:      getEnvDuration("RATE_CACHE_TTL", 24*time.Hour),
	}

	supported := getEnv("SUPPORTED_CURRENCIES", "USD,NGN,GHS,ZAR,KES")
	for _, code := range strings.Split(supported, ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			cfg.SupportedCurrencies = append(cfg.SupportedCurrencies, code)
		}
	}

	return cfg
}

// IsCurrencySupported checks a currency code against the configured set.
func (c *Config) IsCurrencySupported(code string) bool {
	code = strings.ToUpper(code)
	for _, s := range c.SupportedCurrencies {
		if s == code {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
