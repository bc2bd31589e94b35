package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"sitecarbon/internal/app"
	"sitecarbon/internal/platform/config"
	"sitecarbon/internal/platform/logger"
)

type env struct {
	cfg    config.Server
	logger *slog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var (
		envFile  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:           "deliveryctl",
		Short:         "Operate the construction delivery pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, "text")
			e.out = cmd.OutOrStdout()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newMigrateCmd(e),
		newSeedCmd(e),
		newTemplateCmd(e),
		newUploadCmd(e),
		newPendingCmd(e),
		newResolveCmd(e),
	)
	return cmd
}

var errNoDatabase = errors.New("DATABASE_URL is not set")

// openApp builds the service graph against Postgres.
func (e *env) openApp(ctx context.Context) (*app.App, error) {
	if e.cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	return app.New(ctx, e.cfg, e.logger, prometheus.NewRegistry())
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
