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
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	AppSecret    []byte
	FrontendURL  string
	CookieSecure bool

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	StripeSecret string
	Currency     string

	MailHost string
	MailPort int
	MailUser string
	MailPass string
	MailFrom string

	CSRFEnabled bool

	ReconcileSchedule string
	ReconcileGrace    time.Duration
}

// Load reads .env (when present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not loaded: %v, using system environment", err)
	}

	frontendURL := EnvDefault("FRONTEND_URL", "http://localhost:7777")

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 4444),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AppSecret:    []byte(os.Getenv("APP_SECRET")),
		FrontendURL:  frontendURL,
		CookieSecure: EnvBoolDefault("COOKIE_SECURE", strings.HasPrefix(frontendURL, "https://")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "items"),

		StripeSecret: os.Getenv("STRIPE_SECRET"),
		Currency:     strings.ToLower(EnvDefault("CURRENCY", "usd")),

		MailHost: os.Getenv("MAIL_HOST"),
		MailPort: EnvIntDefault("MAIL_PORT", 587),
		MailUser: os.Getenv("MAIL_USER"),
		MailPass: os.Getenv("MAIL_PASS"),
		MailFrom: EnvDefault("MAIL_FROM", "shop@example.com"),

		CSRFEnabled: EnvBoolDefault("CSRF_ENABLED", false),

		ReconcileSchedule: EnvDefault("RECONCILE_SCHEDULE", "@every 5m"),
		ReconcileGrace:    EnvDurationDefault("RECONCILE_GRACE", 10*time.Minute),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
