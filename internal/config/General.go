package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AccountID is the NEAR account the agent liquidates and rebalances with.
	AccountID string

	// LiquidatorMode is "live" to submit transactions, anything else runs dry.
	LiquidatorMode string

	// ShowWhales makes the scan log the accounts with the largest borrowed sums.
	ShowWhales bool

	// LogLevel is passed to logger.Initialize.
	LogLevel string

	// LogFile, when set, receives a copy of every log line.
	LogFile string

	// WebPort is the port of the HTTP API. Empty disables the server.
	WebPort string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// NEAR_ACCOUNT_ID is required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AccountID, err = getEnv("NEAR_ACCOUNT_ID")
	if err != nil {
		return err
	}

	LiquidatorMode = strings.ToLower(getEnvOrDefault("LIQUIDATOR_MODE", "dryrun"))
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = os.Getenv("LOG_FILE")
	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	ShowWhales, err = getEnvAsBool("SHOW_WHALES", false)
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("AccountID", AccountID).
		Str("NearEnv", NearEnv).
		Str("LiquidatorMode", LiquidatorMode).
		Msg("Configuration loaded successfully.")

	return nil
}

// IsLive reports whether real transactions may be broadcast.
func IsLive() bool {
	return LiquidatorMode == "live"
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back to def.
func getEnvOrDefault(key, def string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return def
}

// getEnvAsInt retrieves an optional integer environment variable.
func getEnvAsInt(key string, def int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an optional boolean environment variable.
func getEnvAsBool(key string, def bool) (bool, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid boolean, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDecimal retrieves an optional decimal environment variable. Thresholds are read
// as exact decimals so no binary float reaches the engine.
func getEnvAsDecimal(key string, def decimal.Decimal) (decimal.Decimal, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, errors.New("environment variable " + key + " must be a valid decimal, got: " + valueStr)
	}
	return value, nil
}
