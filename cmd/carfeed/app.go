package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/carfeed/engine/encar"
	"github.com/WessleyAI/carfeed/engine/graph"
	"github.com/WessleyAI/carfeed/engine/message"
	"github.com/WessleyAI/carfeed/engine/normalize"
	"github.com/WessleyAI/carfeed/engine/pipeline"
	"github.com/WessleyAI/carfeed/engine/store"
	"github.com/WessleyAI/carfeed/pkg/config"
	"github.com/WessleyAI/carfeed/pkg/fn"
	"github.com/WessleyAI/carfeed/pkg/metrics"
	"github.com/WessleyAI/carfeed/pkg/resilience"
)

// app holds everything one or more batches share.
type app struct {
	client      *encar.Client
	normalizer  *normalize.Normalizer
	sinks       []pipeline.Sink
	finalizers  []pipeline.Finalizer
	filters     encar.Filters
	maxPages    int
	workers     int
	journalPath string
	logger      *slog.Logger
	metrics     *metrics.Registry
	closers     []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *metrics.Registry) (*app, error) {
	out := cfg.Output
	a := &app{
		client:      encar.NewClient(encarConfig(cfg.Encar), logger, reg),
		normalizer:  normalize.New(normalize.Deps{Renderer: formatter(cfg.Message), Logger: logger}),
		filters:     filters(cfg.Search),
		maxPages:    cfg.Search.MaxPages,
		workers:     cfg.Pipeline.Workers,
		journalPath: outputPath(out.Dir, out.Journal),
		logger:      logger,
		metrics:     reg,
		finalizers: []pipeline.Finalizer{
			store.Snapshot{Path: outputPath(out.Dir, out.Snapshot)},
		},
	}
	if out.Markdown != "" {
		a.finalizers = append(a.finalizers, store.MarkdownTable{Path: outputPath(out.Dir, out.Markdown)})
	}
	if out.DownloadPhotos {
		a.client.WithPhotos(&encar.PhotoDownloader{Client: a.client, Dir: outputPath(out.Dir, out.PhotosDir)})
	}
	if err := a.connectSinks(ctx, cfg.Sinks); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

// connectSinks opens every sink whose URL is configured.
func (a *app) connectSinks(ctx context.Context, sc config.SinksConfig) error {
	if sc.DatabaseURL != "" {
		pool, err := store.NewPostgresPool(ctx, sc.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		pg := store.NewPostgresSink(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		a.sinks = append(a.sinks, pg)
		a.logger.Info("postgres sink enabled")
	}

	if sc.Neo4jURL != "" {
		auth := neo4j.NoAuth()
		if sc.Neo4jPassword != "" {
			auth = neo4j.BasicAuth(sc.Neo4jUser, sc.Neo4jPassword, "")
		}
		driver, err := neo4j.NewDriverWithContext(sc.Neo4jURL, auth)
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		a.closers = append(a.closers, driver.Close)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j connect: %w", err)
		}
		g := graph.New(driver, sc.Neo4jDatabase)
		if err := g.EnsureConstraints(ctx); err != nil {
			return err
		}
		a.sinks = append(a.sinks, g)
		a.logger.Info("neo4j sink enabled")
	}

	if sc.NATSURL != "" {
		nc, err := nats.Connect(sc.NATSURL, nats.Name("carfeed"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return nc.Drain() })
		a.sinks = append(a.sinks, store.NewNATSSink(nc, sc.NATSSubject))
		a.logger.Info("nats sink enabled", "subject", sc.NATSSubject)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func encarConfig(c config.EncarConfig) encar.Config {
	paths := encar.Paths{
		Search:      c.Paths["search"],
		Profile:     c.Paths["profile"],
		Diagnosis:   c.Paths["diagnosis"],
		Inspection:  c.Paths["inspection"],
		Description: c.Paths["description"],
	}
	return encar.Config{
		BaseURL:       c.BaseURL,
		PhotoBaseURL:  c.PhotoBaseURL,
		DetailPageURL: c.DetailPageURL,
		Paths:         paths,
		Headers:       c.Headers,
		Cookies:       c.Cookies,
		Timeout:       c.Timeout,
		RateLimit:     c.RateLimit,
		Burst:         c.Burst,
		Retry: fn.RetryOpts{
			MaxAttempts: c.Retry.MaxAttempts,
			InitialWait: c.Retry.InitialWait,
			MaxWait:     c.Retry.MaxWait,
			Jitter:      true,
		},
		Breaker: resilience.BreakerOpts{
			FailThreshold: c.Breaker.FailThreshold,
			Timeout:       c.Breaker.Timeout,
			HalfOpenMax:   1,
		},
	}
}

func filters(s config.SearchConfig) encar.Filters {
	return encar.Filters{
		Manufacturer: s.Manufacturer,
		ModelGroup:   s.ModelGroup,
		YearFrom:     s.YearFrom,
		YearTo:       s.YearTo,
	}
}

func formatter(m config.MessageConfig) *message.Formatter {
	escape, link := m.Escape, m.LinkEscape
	if escape == "" {
		escape = message.MarkdownV2Escape
	}
	if link == "" {
		link = message.MarkdownV2LinkEscape
	}
	return message.New(escape, link)
}
