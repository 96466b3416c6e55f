package config

import (
	"fmt"

	"github.com/burrowland/liquidator/internal/state"
)

// LoadDBConfig reads the Postgres settings. ok is false when DB_NAME is unset: the agent
// then runs without cycle history.
func LoadDBConfig() (cfg state.DBConfig, ok bool, err error) {
	dbName := getEnvOrDefault("DB_NAME", "")
	if dbName == "" {
		return state.DBConfig{}, false, nil
	}

	port, err := getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return state.DBConfig{}, false, err
	}
	user := getEnvOrDefault("DB_USER", "")
	if user == "" {
		return state.DBConfig{}, false, fmt.Errorf("DB_USER environment variable not set")
	}

	return state.DBConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     port,
		User:     user,
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}, true, nil
}
