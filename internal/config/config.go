package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must(); the
// checkout tunables fall back to defaults that match the reference cinema
// deployment (5 minute seat lease, 10 minute pending window).
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	DBMigrate bool   // apply the embedded schema on startup

	JWTSecret string // secret used to verify access tokens

	PublicBaseURL string // externally visible base URL used for provider callbacks
	SuccessPath   string // path the provider redirects to after approval
	FailPath      string // path the provider redirects to on failure
	Timezone      *time.Location

	CatalogTimeout    time.Duration // bound for catalog reads
	SeatLeaseTTL      time.Duration // lifetime of a seat lease taken at checkout
	PendingBookingTTL time.Duration // PENDING bookings older than this are swept
	SweepInterval     time.Duration // how often the sweeper runs
	ConfirmLockTTL    time.Duration // lifetime of the in-flight confirmation lock

	BookingDataSecret string // HMAC key for the bookingData callback payload
	EventsEnabled     bool   // publish and consume booking events over RabbitMQ

	Payment PaymentConfig
}

// PaymentConfig selects and configures the external payment provider.
type PaymentConfig struct {
	Provider        string // "toss" or "stripe"
	TossSecretKey   string
	TossAPIBase     string
	StripeSecretKey string
	StripeCurrency  string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:       must("APP_ENV"),      // environment (dev/test/prod)
		Port:      must("APP_PORT"),     // port to bind the HTTP server
		DBUser:    must("DB_USER"),      // database user
		DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:    must("DB_HOST"),      // database host
		DBPort:    must("DB_PORT"),      // database port
		DBName:    must("DB_NAME"),      // database name
		DBMigrate: envBool("DB_MIGRATE", false),
		JWTSecret: must("JWT_SECRET"), // secret used for verifying JWTs

		PublicBaseURL: envStr("PUBLIC_BASE_URL", "http://localhost:8080"),
		SuccessPath:   envStr("CHECKOUT_SUCCESS_PATH", "/payment/success"),
		FailPath:      envStr("CHECKOUT_FAIL_PATH", "/payment/fail"),
		Timezone:      loadLocation(envStr("APP_TIMEZONE", "Asia/Seoul")),

		CatalogTimeout:    envDur("CATALOG_TIMEOUT", 5*time.Second),
		SeatLeaseTTL:      envDur("SEAT_LEASE_TTL", 5*time.Minute),
		PendingBookingTTL: envDur("PENDING_BOOKING_TTL", 10*time.Minute),
		SweepInterval:     envDur("SWEEP_INTERVAL", time.Minute),
		ConfirmLockTTL:    envDur("CONFIRM_LOCK_TTL", 30*time.Second),

		BookingDataSecret: must("BOOKING_DATA_SECRET"),
		EventsEnabled:     envBool("EVENTS_ENABLED", true),

		Payment: PaymentConfig{
			Provider:        envStr("PAYMENT_PROVIDER", "toss"),
			TossSecretKey:   os.Getenv("TOSS_SECRET_KEY"),
			TossAPIBase:     envStr("TOSS_API_BASE", "https://api.tosspayments.com"),
			StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			StripeCurrency:  envStr("STRIPE_CURRENCY", "krw"),
		},
	}
	switch cfg.Payment.Provider {
	case "toss":
		if cfg.Payment.TossSecretKey == "" {
			log.Fatalf("missing required env var: %s", "TOSS_SECRET_KEY")
		}
	case "stripe":
		if cfg.Payment.StripeSecretKey == "" {
			log.Fatalf("missing required env var: %s", "STRIPE_SECRET_KEY")
		}
	default:
		log.Fatalf("invalid PAYMENT_PROVIDER: %q", cfg.Payment.Provider)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// loadLocation falls back to UTC when the zone database lacks name.
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("config: unknown APP_TIMEZONE %q, using UTC", name)
		return time.UTC
	}
	return loc
}
