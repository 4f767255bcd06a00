package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/warp/warehouse-engine/classify"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/notify"
	"github.com/warp/warehouse-engine/store/sqlite"
	"github.com/warp/warehouse-engine/warehousing"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Warehouse booking engine",
	Long:  `Books warehouse space and tracks each booking through weighing, deposit, grading, loans, withdrawal and billing.`,
	// Running the binary without a subcommand serves the API.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory holding config.yaml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// app is everything a command needs, built from config.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	store   *sqlite.Store
	redis   *notify.Redis
	service *warehousing.Service
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close redis")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := setupLogging(cfg.Logging)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	lateFee, err := cfg.LateFee()
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := warehousing.NewService(store, logger)
	svc.Config.ExpiryWindowDays = cfg.Booking.ExpiryWindowDays
	svc.Config.IDAttempts = cfg.Booking.IDAttempts
	svc.Config.LateFee = lateFee

	a := &app{cfg: cfg, log: logger, store: store, service: svc}

	notifiers := notify.Multi{notify.NewLog(logger)}
	if cfg.Redis.Enabled {
		r, err := notify.NewRedis(cfg.Redis)
		if err != nil {
			// Notifications are best effort; run without the inbox.
			logger.Warn().Err(err).Msg("Failed to connect to redis, continuing without notification inbox")
		} else {
			a.redis = r
			notifiers = append(notifiers, r)
		}
	}
	svc.Notifier = notifiers

	if c := classify.New(cfg.Classifier); c != nil {
		svc.Classifier = c
	} else {
		logger.Info().Msg("Classifier not configured, consignment verification disabled")
	}

	return a, nil
}

func setupLogging(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return log.Logger
}
