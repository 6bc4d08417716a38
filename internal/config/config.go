package config // package config loads application configuration from environment variables

import (
    "strings"

    "github.com/joho/godotenv"
)

// Store backends.
const (
    BackendMySQL  = "mysql"
    BackendMemory = "memory"
)

// Config holds the process-level configuration values.  Each field
// corresponds to an environment variable.  Component settings (holds,
// pricing, booking, broker, Redis, rate limiting) have their own loaders.
type Config struct {
    Env           string // application environment (e.g. "dev", "prod")
    Port          string // HTTP port to listen on
    Store         string // store backend: mysql or memory
    SeedFile      string // JSON seed of flights and routes (optional)
    DBUser        string // database username
    DBPass        string // database password (optional)
    DBHost        string // database host address
    DBPort        string // database port number
    DBName        string // database name
    DBMaxConns    int    // connection pool size
    DBAutoMigrate bool   // apply the embedded schema on start-up
    JWTSecret     string // secret used to verify access tokens
    LogLevel      string // debug, info, warn or error
    LogFormat     string // json or text
}

// Load reads configuration values from the environment, after merging a
// .env file when one is present, and returns a Config.  Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message.  Database settings are only
// required for the mysql backend.
func Load() Config {
    _ = godotenv.Load() // a missing .env file is fine; the real environment wins

    cfg := Config{
        Env:           envStr("APP_ENV", "dev"),
        Port:          envStr("APP_PORT", "8080"),
        Store:         strings.ToLower(envStr("STORE_BACKEND", BackendMySQL)),
        SeedFile:      envStr("SEED_FILE", ""),
        JWTSecret:     must("JWT_SECRET"),
        DBMaxConns:    envInt("DB_MAX_CONNS", 25),
        DBAutoMigrate: envBool("DB_AUTO_MIGRATE", false),
        LogLevel:      envStr("LOG_LEVEL", "info"),
        LogFormat:     envStr("LOG_FORMAT", "json"),
    }
    if cfg.Store == BackendMySQL {
        cfg.DBUser = must("DB_USER")
        cfg.DBPass = envStr("DB_PASS", "")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = envStr("DB_PORT", "3306")
        cfg.DBName = must("DB_NAME")
    }
    return cfg
}
