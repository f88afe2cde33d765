package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/sells-group/road-distance-cli/internal/config"
	"github.com/sells-group/road-distance-cli/internal/enrich"
	"github.com/sells-group/road-distance-cli/internal/resilience"
	"github.com/sells-group/road-distance-cli/pkg/bingmaps"
)

// runPipeline loads the facility table, adds a distance column per
// reference, writes the result and prints a preview to out.
func runPipeline(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := zap.L().With(zap.String("run_id", uuid.NewString()))
	log.Info("starting road distance run",
		zap.String("input", cfg.Files.Input),
		zap.String("output", cfg.Files.Output),
		zap.Int("references", len(cfg.References)),
		zap.Int("workers", cfg.Throttle.Workers),
		zap.Duration("interval", cfg.Throttle.Interval()),
	)

	client := bingmaps.NewClient(cfg.Bing.Key,
		bingmaps.WithBaseURL(cfg.Bing.BaseURL),
		bingmaps.WithTimeout(cfg.Bing.Timeout()),
		bingmaps.WithDistanceUnit(cfg.Bing.DistanceUnit),
		bingmaps.WithLogger(log.Named("bingmaps")),
	)

	retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
	retry.OnRetry = resilience.RetryLogger(log, "road_distance")

	opts := []enrich.Option{
		enrich.WithWorkers(cfg.Throttle.Workers),
		enrich.WithInterval(cfg.Throttle.Interval()),
		enrich.WithRetryPolicy(retry),
		enrich.WithLogger(log),
	}

	bar := newProgressBar(cfg)
	if bar != nil {
		opts = append(opts, enrich.WithProgress(bar))
	}

	table, err := enrich.New(client, cfg.References, cfg.Files.Input, opts...).Enrich(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}

	if err := table.Write(cfg.Files.Output); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info("wrote road distances",
		zap.String("path", cfg.Files.Output),
		zap.Int("rows", table.Len()),
		zap.Int("columns", table.Width()),
	)

	table.Preview(out, cfg.Preview.Rows)
	return nil
}

// newProgressBar returns nil when stderr is not a terminal. The total is
// unknown until the table is loaded, so the bar counts up.
func newProgressBar(cfg *config.Config) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Road distances (%d references)", len(cfg.References))),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
