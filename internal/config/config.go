package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in WHATSAPP_PROVIDER.
const (
	ProviderTwilio = "twilio"
	ProviderDirect = "direct"
)

// Config holds gateway configuration loaded from the environment.
type Config struct {
	Port     string
	LogLevel string

	// Persistence. DatabaseURL selects postgres; when empty the sqlite
	// fallback at DBPath is used.
	DatabaseURL string
	DBPath      string

	// Provider selection, resolved once at startup.
	Provider string

	// Twilio transport credentials.
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string

	// Direct Cloud API transport credentials.
	WhatsAppAPIURL string
	WhatsAppToken  string
	PhoneNumberID  string

	// Webhook verification.
	VerifyToken   string
	SkipSignature bool

	ProviderTimeout time.Duration
}

// Load reads configuration from the environment, preferring a local .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DBPath:               getEnv("DB_PATH", "./flowchat.db"),
		Provider:             strings.ToLower(getEnv("WHATSAPP_PROVIDER", ProviderDirect)),
		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		WhatsAppAPIURL:       getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppToken:        getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:        getEnv("PHONE_NUMBER_ID", ""),
		VerifyToken:          getEnv("VERIFY_TOKEN", ""),
		SkipSignature:        getEnvBool("WEBHOOK_SKIP_SIGNATURE", false),
		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
	}

	switch cfg.Provider {
	case ProviderTwilio, ProviderDirect:
	default:
		return nil, fmt.Errorf("config: unknown WHATSAPP_PROVIDER %q", cfg.Provider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
