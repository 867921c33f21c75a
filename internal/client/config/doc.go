// Package config loads runtime configuration for the pilotlog client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with --config / -c.
//  3. Command-line flags registered by RegisterFlags, applied only when set.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "3s" or integer
// nanoseconds. Keys that are absent keep the earlier value:
//
//	{
//	  "server_url": "https://logbook.example.com",
//	  "database_path": "/var/lib/pilotlog/logbook.db",
//	  "online_check_interval": "3s",
//	  "sync_interval": "5m",
//	  "push_entry_timeout": "10s",
//	  "sync_cycle_timeout": "2m",
//	  "log_file": "/var/log/pilotlog/agent.log",
//	  "s3_bucket": "logbook-backups"
//	}
package config
