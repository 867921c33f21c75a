package config

import (
	"flag"

	"github.com/dmitrijs2005/pilotlog/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-d string     PostgreSQL DSN
//	-n int        idempotency cache size
//	-t duration   idempotency cache TTL
//	-g duration   shutdown grace period
//	-l string     log level
//
// Args are filtered with flagx.FilterArgs first so -c/-config and unknown
// flags do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-n", "-t", "-g", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.IdempotencyCacheSize, "n", config.IdempotencyCacheSize, "idempotency cache size")
	fs.DurationVar(&config.IdempotencyTTL, "t", config.IdempotencyTTL, "idempotency cache TTL")
	fs.DurationVar(&config.ShutdownTimeout, "g", config.ShutdownTimeout, "shutdown grace period")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
