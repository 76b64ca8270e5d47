package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/marketdata"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errMissingMarket is returned when neither explicit market values nor a symbol are usable.
var errMissingMarket = errors.New("set --spot and --vol, or --symbol")

// scheduleFile is the on-disk schedule format. JSON files parse too.
type scheduleFile struct {
	Name          string  `yaml:"name"`
	TotalQuantity float64 `yaml:"totalQuantity"`
	UnlockEvents  []struct {
		UnlockDate string  `yaml:"unlockDate"`
		Amount     float64 `yaml:"amount"`
	} `yaml:"unlockEvents"`
}

type computeOptions struct {
	file        string
	asOf        string
	spot        float64
	vol         float64
	rate        float64
	symbol      string
	history     string
	greeks      bool
	parallelism int
	// explicit is set when both --spot and --vol were given.
	explicit bool
}

// computeOutput is what compute prints.
type computeOutput struct {
	Name   string              `json:"name,omitempty"`
	AsOf   time.Time           `json:"asOf"`
	Market dlom.MarketSnapshot `json:"market"`
	types.ResultPayload
}

func newComputeCommand() *cobra.Command {
	opts := computeOptions{rate: 0.03}

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Price a schedule file without a running service",
		Example: `  dlomctl compute --file schedule.yaml --spot 150 --vol 0.87
  dlomctl compute --file schedule.json --symbol SOL --as-of 2025-01-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.explicit = cmd.Flags().Changed("spot") && cmd.Flags().Changed("vol")
			return runCompute(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "schedule file (YAML or JSON)")
	f.StringVar(&opts.asOf, "as-of", "", "valuation date, RFC3339 or YYYY-MM-DD (default now)")
	f.Float64Var(&opts.spot, "spot", 0, "spot price in USD")
	f.Float64Var(&opts.vol, "vol", 0, "annualized volatility as a fraction")
	f.Float64Var(&opts.rate, "rate", opts.rate, "risk-free rate")
	f.StringVar(&opts.symbol, "symbol", "", "look up spot and volatility for this token")
	f.StringVar(&opts.history, "history", "", "symbol,date,close CSV used with --symbol")
	f.BoolVar(&opts.greeks, "greeks", false, "include put Greeks per event")
	f.IntVar(&opts.parallelism, "parallelism", 1, "price events on this many goroutines")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("spot", "symbol")
	cmd.MarkFlagsMutuallyExclusive("vol", "symbol")

	return cmd
}

func runCompute(ctx context.Context, opts computeOptions, out io.Writer) error {
	log := logger.Named("compute")

	sf, err := readScheduleFile(opts.file)
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	if opts.asOf != "" {
		if asOf, err = types.ParseDate(opts.asOf); err != nil {
			return err
		}
	}

	schedule := dlom.Schedule{TotalQuantity: sf.TotalQuantity}
	for i, ev := range sf.UnlockEvents {
		d, err := types.ParseDate(ev.UnlockDate)
		if err != nil {
			return fmt.Errorf("unlock event %d: %w", i, err)
		}
		schedule.UnlockEvents = append(schedule.UnlockEvents, dlom.UnlockEvent{UnlockDate: d, Amount: ev.Amount})
	}

	market, err := resolveMarket(ctx, opts)
	if err != nil {
		return err
	}

	engine := dlom.NewEngine(dlom.WithParallelism(opts.parallelism), dlom.WithGreeks(opts.greeks))
	res, err := engine.Compute(schedule, market, asOf)
	if err != nil {
		return err
	}
	if !res.Alternatives.OrderedChronologically {
		log.Warn(ctx, "unlock events are not in date order; headline uses the positionally last event",
			logger.String("name", sf.Name))
	}
	log.Debug(ctx, "computed", logger.Int("events", len(res.PerEvent)), logger.Float64("discount_percent", res.DiscountPercent))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(computeOutput{
		Name:          sf.Name,
		AsOf:          asOf,
		Market:        market,
		ResultPayload: types.FromResult(res),
	})
}

func readScheduleFile(path string) (*scheduleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}
	var sf scheduleFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse schedule file %s: %w", path, err)
	}
	return &sf, nil
}

func resolveMarket(ctx context.Context, opts computeOptions) (dlom.MarketSnapshot, error) {
	if opts.symbol == "" {
		if !opts.explicit {
			return dlom.MarketSnapshot{}, errMissingMarket
		}
		return dlom.MarketSnapshot{Spot: opts.spot, Volatility: opts.vol, RiskFreeRate: opts.rate}, nil
	}

	var provider marketdata.Provider = marketdata.NewStubProvider()
	if opts.history != "" {
		hp, err := marketdata.LoadHistoryFile(opts.history)
		if err != nil {
			return dlom.MarketSnapshot{}, err
		}
		provider = hp
	}
	return marketdata.Snapshot(ctx, provider, opts.symbol, opts.rate)
}
