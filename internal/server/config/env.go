package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "PILOTLOG_"

// parseEnv overlays PILOTLOG_* variables. A .env file in the working
// directory is loaded first when present; real variables take precedence.
func parseEnv(config *Config) error {
	_ = godotenv.Load()

	config.EndpointAddr = getEnv("ADDR", config.EndpointAddr)
	config.DatabaseDSN = getEnv("DATABASE_DSN", config.DatabaseDSN)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)

	if v, ok := lookupEnv("IDEMPOTENCY_CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sIDEMPOTENCY_CACHE_SIZE value: %w", EnvPrefix, err)
		}
		config.IdempotencyCacheSize = n
	}

	for name, dst := range map[string]*time.Duration{
		"IDEMPOTENCY_TTL":  &config.IdempotencyTTL,
		"SHUTDOWN_TIMEOUT": &config.ShutdownTimeout,
	} {
		if v, ok := lookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s value: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(EnvPrefix + key)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := lookupEnv(key); exists {
		return value
	}
	return defaultValue
}
