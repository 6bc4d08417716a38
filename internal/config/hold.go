package config

import "time"

// HoldConfig controls seat hold lifetimes and the expiry sweeper.
type HoldConfig struct {
    DefaultTTL    time.Duration // hold time when the caller does not ask for one
    MaxTTL        time.Duration // upper bound on a hold's remaining lifetime
    LockPrefix    string        // Redis key prefix for seat locks
    SessionPrefix string        // Redis key prefix for hold records
    RetryAttempts int           // attempts for transient lock-store errors
    SweepInterval time.Duration // how often expired holds are reconciled
    SweepBatch    int           // held seats read per page while sweeping
}

func LoadHoldConfig() HoldConfig {
    c := HoldConfig{
        DefaultTTL:    envDur("HOLD_DEFAULT_TTL", 5*time.Minute),
        MaxTTL:        envDur("HOLD_MAX_TTL", 15*time.Minute),
        LockPrefix:    envStr("HOLD_LOCK_PREFIX", "seatlock"),
        SessionPrefix: envStr("HOLD_SESSION_PREFIX", "hold"),
        RetryAttempts: envInt("HOLD_RETRY_ATTEMPTS", 3),
        SweepInterval: envDur("HOLD_SWEEP_INTERVAL", 30*time.Second),
        SweepBatch:    envInt("HOLD_SWEEP_BATCH", 500),
    }
    if c.DefaultTTL <= 0 {
        c.DefaultTTL = 5 * time.Minute
    }
    if c.MaxTTL < c.DefaultTTL {
        c.MaxTTL = c.DefaultTTL
    }
    if c.RetryAttempts < 1 {
        c.RetryAttempts = 1
    }
    if c.SweepInterval <= 0 {
        c.SweepInterval = 30 * time.Second
    }
    return c
}
