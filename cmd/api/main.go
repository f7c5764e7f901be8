// Command api serves persisted listings to the conversational front end,
// one listing per call per session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/graph"
	"github.com/WessleyAI/carfeed/engine/session"
	"github.com/WessleyAI/carfeed/engine/store"
	"github.com/WessleyAI/carfeed/pkg/config"
	"github.com/WessleyAI/carfeed/pkg/metrics"
	"github.com/WessleyAI/carfeed/pkg/natsutil"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	snapshot := snapshotPath(cfg.Output)
	set, err := loadSnapshot(snapshot, logger)
	if err != nil {
		return err
	}
	feed := session.NewFeed(set)
	reg.GaugeFunc("carfeed_feed_listings", "Listings available to sessions.", func() int64 { return int64(feed.Len()) })

	// --- Cursor store ---
	var cursors session.CursorStore = session.NewMemoryCursors()
	if cfg.Session.RedisURL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.Session.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cursors = session.NewRedisCursors(rdb, cfg.Session.TTL)
		logger.Info("redis cursors enabled")
	}

	srv := &server{
		browser:  session.NewBrowser(feed, cursors),
		snapshot: snapshot,
		logger:   logger,
		metrics:  reg,
	}

	// --- Optional listing graph ---
	if sc := cfg.Sinks; sc.Neo4jURL != "" {
		auth := neo4j.NoAuth()
		if sc.Neo4jPassword != "" {
			auth = neo4j.BasicAuth(sc.Neo4jUser, sc.Neo4jPassword, "")
		}
		driver, err := neo4j.NewDriverWithContext(sc.Neo4jURL, auth)
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		srv.graph = graph.New(driver, sc.Neo4jDatabase)
	}

	// --- Live updates from the batch ---
	if cfg.Sinks.NATSURL != "" {
		nc, err := nats.Connect(cfg.Sinks.NATSURL, nats.Name("carfeed-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		sub, err := natsutil.Subscribe(nc, cfg.Sinks.NATSSubject, func(_ context.Context, l domain.CanonicalListing) {
			feed.Put(l)
		}, func(msg *nats.Msg, err error) {
			logger.Warn("bad listing message", "subject", msg.Subject, "err", err)
		})
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("following listing updates", "subject", cfg.Sinks.NATSSubject)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.API.Port, "listings", feed.Len())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

func snapshotPath(o config.OutputConfig) string {
	if filepath.IsAbs(o.Snapshot) || o.Dir == "" {
		return o.Snapshot
	}
	return filepath.Join(o.Dir, o.Snapshot)
}

// loadSnapshot reads the last batch output. A missing file starts empty.
func loadSnapshot(path string, logger *slog.Logger) (*domain.ListingSet, error) {
	set, err := store.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("no snapshot yet; starting empty", "path", path)
		return &domain.ListingSet{}, nil
	}
	if err != nil {
		return nil, err
	}
	return set, nil
}
