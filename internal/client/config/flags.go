package config

import (
	"github.com/spf13/pflag"
)

// Flags binds client settings to a pflag set. Only flags the user actually
// set override the defaults and the JSON file.
type Flags struct {
	fs     *pflag.FlagSet
	values Config
	path   string
}

// RegisterFlags adds the client flags to fs, typically the persistent flags
// of the cobra root command.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	f.values.LoadDefaults()
	v := &f.values

	fs.StringVarP(&f.path, "config", "c", "", "path to a JSON config file")
	fs.StringVarP(&v.ServerURL, "server", "s", v.ServerURL, "base URL of the sync server")
	fs.StringVarP(&v.DatabasePath, "db", "d", v.DatabasePath, "path to the local SQLite logbook")
	fs.DurationVar(&v.OnlineCheckInterval, "online-check-interval", v.OnlineCheckInterval, "server reachability probe period")
	fs.DurationVar(&v.SyncInterval, "sync-interval", v.SyncInterval, "background full sync period")
	fs.DurationVar(&v.PushEntryTimeout, "push-timeout", v.PushEntryTimeout, "timeout of a single push call (0 disables)")
	fs.DurationVar(&v.SyncCycleTimeout, "cycle-timeout", v.SyncCycleTimeout, "timeout of a full sync cycle (0 disables)")
	fs.StringVar(&v.MetricsAddr, "metrics-addr", v.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringVar(&v.LogFile, "log-file", v.LogFile, "write JSON logs to this rotated file instead of stderr")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "debug, info, warn or error")
	fs.StringVar(&v.S3Endpoint, "s3-endpoint", v.S3Endpoint, "S3-compatible endpoint for backups")
	fs.StringVar(&v.S3Region, "s3-region", v.S3Region, "S3 region")
	fs.StringVar(&v.S3Bucket, "s3-bucket", v.S3Bucket, "S3 bucket for backups")
	fs.StringVar(&v.S3AccessKey, "s3-access-key", v.S3AccessKey, "S3 access key")
	fs.StringVar(&v.S3SecretKey, "s3-secret-key", v.S3SecretKey, "S3 secret key")
	return f
}

// overlay copies every explicitly set flag from f.values into cfg.
func (f *Flags) overlay(cfg *Config) {
	setters := map[string]func(){
		"server":                func() { cfg.ServerURL = f.values.ServerURL },
		"db":                    func() { cfg.DatabasePath = f.values.DatabasePath },
		"online-check-interval": func() { cfg.OnlineCheckInterval = f.values.OnlineCheckInterval },
		"sync-interval":         func() { cfg.SyncInterval = f.values.SyncInterval },
		"push-timeout":          func() { cfg.PushEntryTimeout = f.values.PushEntryTimeout },
		"cycle-timeout":         func() { cfg.SyncCycleTimeout = f.values.SyncCycleTimeout },
		"metrics-addr":          func() { cfg.MetricsAddr = f.values.MetricsAddr },
		"log-file":              func() { cfg.LogFile = f.values.LogFile },
		"log-level":             func() { cfg.LogLevel = f.values.LogLevel },
		"s3-endpoint":           func() { cfg.S3Endpoint = f.values.S3Endpoint },
		"s3-region":             func() { cfg.S3Region = f.values.S3Region },
		"s3-bucket":             func() { cfg.S3Bucket = f.values.S3Bucket },
		"s3-access-key":         func() { cfg.S3AccessKey = f.values.S3AccessKey },
		"s3-secret-key":         func() { cfg.S3SecretKey = f.values.S3SecretKey },
	}
	f.fs.Visit(func(fl *pflag.Flag) {
		if set, ok := setters[fl.Name]; ok {
			set()
		}
	})
}

// Load builds the effective Config: defaults, then the JSON file named by
// --config, then explicitly set flags. It must be called after flag parsing.
func (f *Flags) Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if f.path != "" {
		if err := parseJson(cfg, f.path); err != nil {
			return nil, err
		}
	}
	f.overlay(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
