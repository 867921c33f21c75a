package config

import (
	"errors"
	"time"
)

// Config holds runtime settings of the pilotlog client.
//
// Durations: OnlineCheckInterval is the health probe period, SyncInterval the
// period of background full syncs, PushEntryTimeout bounds each push call and
// SyncCycleTimeout bounds a whole cycle. Zero timeouts disable the bound.
type Config struct {
	ServerURL    string
	DatabasePath string

	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	PushEntryTimeout    time.Duration
	SyncCycleTimeout    time.Duration

	MetricsAddr string
	LogFile     string
	LogLevel    string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "pilotlog.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.PushEntryTimeout = 10 * time.Second
	c.SyncCycleTimeout = 2 * time.Minute
	c.MetricsAddr = ""
	c.LogFile = ""
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// Validate reports settings the client cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server url is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.OnlineCheckInterval <= 0 {
		errs = append(errs, errors.New("online check interval must be positive"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync interval must be positive"))
	}
	if c.PushEntryTimeout < 0 || c.SyncCycleTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}
