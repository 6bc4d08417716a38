package config

import "time"

// PricingConfig defines settings for the price quote cache.  When
// CacheEnabled is false or no Redis client is configured, every quote
// is recomputed.
type PricingConfig struct {
    CacheEnabled bool
    CacheTTL     time.Duration
    CachePrefix  string
}

// LoadPricingConfig reads environment variables to build a PricingConfig.
// Defaults are used when variables are not set.
func LoadPricingConfig() PricingConfig {
    c := PricingConfig{
        CacheEnabled: envBool("PRICING_CACHE_ENABLED", true),
        CacheTTL:     envDur("PRICING_CACHE_TTL", 2*time.Minute),
        CachePrefix:  envStr("PRICING_CACHE_PREFIX", "price"),
    }
    if c.CacheTTL <= 0 {
        c.CacheTTL = 2 * time.Minute
    }
    return c
}
