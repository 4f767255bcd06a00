/*
main.go - Application entry point

PURPOSE:
  Starts the warehouse booking engine. All work is done by cobra commands:

    serve   HTTP API + background expiry sweep (default)
    sweep   Run one expiry sweep and exit
    seed    Load warehouse definitions from a JSON file

STARTUP SEQUENCE (serve):
  1. Load config (config/config.yaml, WAREHOUSE_* env)
  2. Configure zerolog from logging.level / logging.pretty
  3. Open SQLite store (migrations run on open)
  4. Build notifier chain (log, optionally Redis) and classifier
  5. Start HTTP server and expiry sweeper under one errgroup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper (waits for a running sweep)
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close Redis and the database

EXAMPLES:
  ./server serve --config ./deploy
  WAREHOUSE_DATABASE_PATH=":memory:" ./server serve
  ./server seed --file warehouses.json
  ./server sweep

SEE ALSO:
  - config/config.go: Every setting and its default
  - api/server.go: Router configuration
*/
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
