package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig configures the token bucket placed in front of the
// checkout endpoints (starting a checkout and confirming payment).  The
// defaults allow a short burst per user and route.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("CHECKOUT_RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("CHECKOUT_RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   envInt("CHECKOUT_RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("CHECKOUT_RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            envDur("CHECKOUT_RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("CHECKOUT_RATE_LIMIT_KEY_STRATEGY", "user_route"),
		Prefix:         envStr("CHECKOUT_RATE_LIMIT_PREFIX", "rl:checkout"),
		Debug:          envBool("CHECKOUT_RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
