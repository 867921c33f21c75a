package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/pilotlog/internal/flagx"
	"github.com/dmitrijs2005/pilotlog/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "30s" style
// strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddr         string         `json:"endpoint_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	IdempotencyCacheSize int            `json:"idempotency_cache_size"`
	IdempotencyTTL       timex.Duration `json:"idempotency_ttl"`
	ShutdownTimeout      timex.Duration `json:"shutdown_timeout"`
	LogLevel             string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every non-empty value into config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.IdempotencyCacheSize != 0 {
		config.IdempotencyCacheSize = c.IdempotencyCacheSize
	}
	if c.IdempotencyTTL.Duration != 0 {
		config.IdempotencyTTL = time.Duration(c.IdempotencyTTL.Duration)
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = time.Duration(c.ShutdownTimeout.Duration)
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	return nil
}
