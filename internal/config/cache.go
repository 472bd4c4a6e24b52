package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the catalog response cache.  Only the
// read-only catalog routes (bookable movies, theaters) are wrapped; seat
// occupancy is server-authoritative and is never cached.  When Enabled is
// false or no Redis client is configured, caching is disabled.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CATALOG_CACHE_* variables.  All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CATALOG_CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CATALOG_CACHE_METHODS", "GET")),
		TTL:          envDur("CATALOG_CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CATALOG_CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CATALOG_CACHE_PREFIX", "catalog"),
		MaxBodyBytes: envInt("CATALOG_CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
