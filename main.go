package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/logging"
	"catalog/internal/models"
	"catalog/internal/server"
	"catalog/pkg/rabbitmq"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"port":      "PORT",
	"db-driver": "DB_DRIVER",
	"db-dsn":    "DB_DSN",
	"log-level": "LOG_LEVEL",
}

func newRootCmd() (*cobra.Command, error) {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "catalog",
		Short:        "Product catalog with server-rendered pages and a JSON API",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml when present)")
	flags.String("port", "", "HTTP port (env PORT)")
	flags.String("db-driver", "", "sqlite, postgres or memory (env DB_DRIVER)")
	flags.String("db-dsn", "", "database file or connection string (env DB_DSN)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	if err := bindFlags(v, flags, flagKeys); err != nil {
		return nil, err
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), v)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or extend the products table and exit",
			RunE: func(*cobra.Command, []string) error {
				return runMigrate(v)
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Log product events published to RabbitMQ",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWatch(cmd.Context(), v)
			},
		},
	)
	return root, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func setup(v *viper.Viper) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, logger, err := setup(v)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := server.Run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runMigrate(v *viper.Viper) error {
	cfg, logger, err := setup(v)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.DBDriver == database.DriverMemory {
		return errors.New("the memory driver has no schema to migrate")
	}
	db, err := database.Open(database.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return err
	}
	logger.Info("schema up to date", zap.String("driver", cfg.DBDriver))
	return database.Close(db)
}

func runWatch(ctx context.Context, v *viper.Viper) error {
	cfg, logger, err := setup(v)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is not set")
	}
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("watching product events", zap.String("queue", client.Queue()))
	err = client.ConsumeProductEvents(ctx, func(e models.ProductEvent) error {
		logger.Info("product event",
			zap.String("type", e.Type),
			zap.Uint("id", e.ProductID),
			zap.Time("occurred_at", e.OccurredAt))
		return nil
	})
	if err != nil {
		return fmt.Errorf("stopped watching: %w", err)
	}
	return nil
}
