// Command carfeed runs the Encar listing batch: search, enrich, normalize,
// format and persist. With -schedule it repeats on a cron spec.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/pipeline"
	"github.com/WessleyAI/carfeed/engine/store"
	"github.com/WessleyAI/carfeed/pkg/config"
	"github.com/WessleyAI/carfeed/pkg/metrics"
	"github.com/WessleyAI/carfeed/pkg/schedule"
)

// exitNoListings distinguishes "nothing survived" from other failures.
const exitNoListings = 3

type flags struct {
	configPath string
	resume     bool
	logLevel   string
	metrics    bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "YAML config file")
	flag.BoolVar(&f.resume, "resume", false, "skip listings already in the journal")
	flag.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.BoolVar(&f.metrics, "metrics", true, "serve /metrics on metrics.port")
	overrides := registerOverrides(flag.CommandLine)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(f.logLevel)}))
	slog.SetDefault(logger)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	if err := overrides.apply(flag.CommandLine, cfg); err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, f, logger)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoListings):
		logger.Error("no listings survived; previous output left untouched", "err", err)
		os.Exit(exitNoListings)
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted; persisted listings kept in the journal")
		os.Exit(130)
	default:
		logger.Error("carfeed failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, logger *slog.Logger) error {
	reg := metrics.New()
	if f.metrics && cfg.Metrics.Port > 0 {
		reg.ServeAsync(ctx, cfg.Metrics.Port, logger)
	}

	a, err := newApp(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if cfg.Schedule == "" {
		return a.batch(ctx, f.resume)
	}
	s, err := schedule.New(cfg.Schedule, func(ctx context.Context) error {
		return a.batch(ctx, f.resume)
	}, logger)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// batch runs one pass. Without resume a leftover journal is dropped first,
// so only this pass can be resumed later. A completed pass discards the
// journal since the snapshot now holds everything in it.
func (a *app) batch(ctx context.Context, resume bool) error {
	var prior *domain.ListingSet
	if resume {
		set, err := store.LoadJournal(a.journalPath)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		prior = set
	}

	journal := store.NewJournal(a.journalPath)
	if !resume {
		if err := journal.Discard(); err != nil {
			return fmt.Errorf("reset journal: %w", err)
		}
	}
	proc := pipeline.New(pipeline.Deps{
		Searcher:   a.client,
		Enricher:   a.client,
		Normalizer: a.normalizer,
		Sinks:      append([]pipeline.Sink{journal}, a.sinks...),
		Finalizers: a.finalizers,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	_, rep, err := proc.Run(ctx, pipeline.Options{
		Filters:  a.filters,
		MaxPages: a.maxPages,
		Workers:  a.workers,
		Prior:    prior,
	})
	a.logger.Info("batch report",
		"run", rep.RunID,
		"duration", rep.Finished.Sub(rep.Started),
		"stubs", rep.Stubs,
		"produced", rep.Produced,
		"resumed", rep.Resumed,
		"degraded", rep.Degraded,
		"dropped", rep.Dropped,
		"sink_errors", rep.SinkErrors,
	)
	if err != nil {
		if cerr := journal.Close(); cerr != nil {
			a.logger.Warn("journal close", "err", cerr)
		}
		return err
	}
	return journal.Discard()
}

// outputPath resolves name under dir unless it is already absolute.
func outputPath(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
