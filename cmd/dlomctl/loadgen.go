package main

import (
	"context"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/loadgen"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
	"github.com/spf13/cobra"
)

// runTimeout bounds a whole run.
const runTimeout = 10 * time.Minute

func newLoadgenCommand() *cobra.Command {
	cfg := loadgen.DefaultConfig()
	total := runTimeout

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Create, price and verify random schedules against a running service",
		Example: `  dlomctl loadgen --url http://localhost:9080 --schedules 500 --events 6
  dlomctl loadgen --token $(cat editor.jwt) --workers 32`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), total)
			defer cancel()

			_, err := loadgen.Run(ctx, cfg, logger.Named("loadgen"))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.IntVar(&cfg.Schedules, "schedules", cfg.Schedules, "number of schedules to create")
	f.IntVar(&cfg.Events, "events", cfg.Events, "unlock events per schedule")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.StringVar(&cfg.Token, "token", "", "bearer token when the API requires auth")
	f.StringVar(&cfg.AsOf, "as-of", cfg.AsOf, "valuation date for every calculation")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every verified schedule")
	f.DurationVar(&total, "total-timeout", total, "upper bound for the whole run")

	return cmd
}
