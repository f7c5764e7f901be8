// Package pipeline drives one batch: search, enrich, normalize, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/encar"
	"github.com/WessleyAI/carfeed/pkg/fn"
	"github.com/WessleyAI/carfeed/pkg/metrics"
)

// DefaultWorkers is the listing worker pool size.
const DefaultWorkers = 4

// Searcher lists stubs for a filter set.
type Searcher interface {
	SearchAll(ctx context.Context, f encar.Filters, maxPages int) ([]encar.ListingStub, error)
}

// Normalizer turns an aggregate into a canonical listing.
type Normalizer interface {
	Normalize(agg encar.DetailAggregate) (domain.CanonicalListing, error)
}

// Sink receives each listing as soon as it is produced. Put must be safe for
// concurrent use.
type Sink interface {
	Name() string
	Put(ctx context.Context, l domain.CanonicalListing) error
}

// Finalizer writes whole-batch artifacts once every listing is known.
type Finalizer interface {
	Finalize(ctx context.Context, set *domain.ListingSet) error
}

// Deps holds the external dependencies of a Processor.
type Deps struct {
	Searcher   Searcher
	Enricher   encar.Enricher
	Normalizer Normalizer
	Sinks      []Sink
	Finalizers []Finalizer
	Logger     *slog.Logger
	Metrics    *metrics.Registry
}

// Options select what one run processes.
type Options struct {
	Filters  encar.Filters
	MaxPages int
	Workers  int
	// Prior holds listings persisted by an earlier run. Their ids are not
	// fetched again and they are included in the finalized set.
	Prior *domain.ListingSet
}

// Report summarizes a run.
type Report struct {
	RunID      string
	Started    time.Time
	Finished   time.Time
	Stubs      int
	Resumed    int
	Produced   int
	Degraded   int
	Dropped    map[string]int
	SinkErrors map[string]int
	SearchErr  error
}

// Processor runs batches.
type Processor struct {
	deps    Deps
	logger  *slog.Logger
	metrics *metrics.Registry
}

// New builds a Processor. Searcher, Enricher and Normalizer are required.
func New(deps Deps) *Processor {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.New()
	}
	return &Processor{deps: deps, logger: log.With("component", "pipeline"), metrics: reg}
}

// NewPipeline composes enrich → normalize with logging taps and spans.
// onDegraded is called for every listing with an absent detail document.
func NewPipeline(deps Deps, log *slog.Logger, onDegraded func()) fn.Stage[encar.ListingStub, domain.CanonicalListing] {
	enrich := fn.Then(LoggedTap[encar.ListingStub]("enrich", log), NewEnrich(deps.Enricher, onDegraded))
	normalize := fn.Then(LoggedTap[encar.DetailAggregate]("normalize", log), NewNormalize(deps.Normalizer))
	return fn.Then(fn.TracedStage("carfeed.enrich", enrich), fn.TracedStage("carfeed.normalize", normalize))
}

// NewEnrich wraps an Enricher as a stage. Enrichment itself never fails; a
// cancelled context does, including one cancelled while the detail fetches
// were in flight: their absent documents are not real absences.
func NewEnrich(e encar.Enricher, onDegraded func()) fn.Stage[encar.ListingStub, encar.DetailAggregate] {
	return func(ctx context.Context, s encar.ListingStub) fn.Result[encar.DetailAggregate] {
		if err := ctx.Err(); err != nil {
			return fn.Err[encar.DetailAggregate](err)
		}
		agg := e.Enrich(ctx, s)
		if err := ctx.Err(); err != nil {
			return fn.Err[encar.DetailAggregate](err)
		}
		for _, ferr := range agg.Errors {
			if errors.Is(ferr, context.Canceled) {
				return fn.Err[encar.DetailAggregate](ferr)
			}
		}
		if agg.Degraded() && onDegraded != nil {
			onDegraded()
		}
		return fn.Ok(agg)
	}
}

// NewNormalize wraps a Normalizer as a stage.
func NewNormalize(n Normalizer) fn.Stage[encar.DetailAggregate, domain.CanonicalListing] {
	return fn.TryStage(n.Normalize)
}

// LoggedTap returns a pass-through stage that logs at debug level.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return fn.Tap(func(ctx context.Context, _ T) {
		log.DebugContext(ctx, "stage.enter", "stage", name)
	})
}

// Run executes one batch. It returns the finalized set (prior listings
// first, then new ones in search order) and a report. With zero listings it
// returns domain.ErrNoListings and runs no finalizer. On cancellation the
// listings already handed to sinks stay there, finalizers are skipped and
// the context error is returned.
func (p *Processor) Run(ctx context.Context, opts Options) (*domain.ListingSet, Report, error) {
	rep := Report{
		RunID:      uuid.NewString(),
		Started:    time.Now(),
		Dropped:    make(map[string]int),
		SinkErrors: make(map[string]int),
	}
	set, err := p.run(ctx, opts, &rep)
	rep.Finished = time.Now()
	return set, rep, err
}

func (p *Processor) run(ctx context.Context, opts Options, rep *Report) (*domain.ListingSet, error) {
	log := p.logger.With("run", rep.RunID)

	stubs, err := p.deps.Searcher.SearchAll(ctx, opts.Filters, opts.MaxPages)
	if err != nil {
		rep.SearchErr = err
		log.Warn("search stopped early", "stubs", len(stubs), "err", err)
	}
	rep.Stubs = len(stubs)

	set := &domain.ListingSet{}
	if opts.Prior != nil {
		for _, l := range opts.Prior.Listings() {
			set.Put(l)
		}
	}
	pending := fn.Filter(stubs, func(s encar.ListingStub) bool { return !set.Has(s.ID) })
	rep.Resumed = len(stubs) - len(pending)
	if rep.Resumed > 0 {
		log.Info("resuming", "skipped", rep.Resumed)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var (
		sinkMu   sync.Mutex
		degraded atomic.Int64
	)
	stage := NewPipeline(p.deps, log, func() {
		degraded.Add(1)
		p.metrics.Counter("carfeed_listings_degraded_total", "Listings with at least one absent detail document.").Inc()
	})
	results := fn.ParMapResult(ctx, pending, workers, func(ctx context.Context, s encar.ListingStub) fn.Result[domain.CanonicalListing] {
		start := time.Now()
		r := stage(ctx, s)
		p.metrics.Histogram("carfeed_listing_seconds", "Per-listing enrich and normalize time.", nil).Since(start)
		if err := ctx.Err(); err != nil {
			return fn.Err[domain.CanonicalListing](err)
		}
		if l, err := r.Unwrap(); err == nil {
			for name, n := range p.persist(ctx, log, l) {
				sinkMu.Lock()
				rep.SinkErrors[name] += n
				sinkMu.Unlock()
			}
		}
		return r
	})
	rep.Degraded = int(degraded.Load())

	for i, r := range results {
		l, err := r.Unwrap()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				rep.Dropped["cancelled"]++
				continue
			}
			reason := domain.Reason(err)
			rep.Dropped[reason]++
			p.metrics.Counter(metrics.WithLabels("carfeed_listings_dropped_total", "reason", reason),
				"Listings rejected during normalization.").Inc()
			log.Warn("listing dropped", logAttrs(pending[i].ID, err)...)
			continue
		}
		set.Put(l)
		rep.Produced++
		p.metrics.Counter("carfeed_listings_produced_total", "Listings normalized and persisted.").Inc()
	}

	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled", "produced", rep.Produced)
		return set, err
	}
	if set.Len() == 0 {
		if rep.SearchErr != nil {
			return set, errors.Join(domain.ErrNoListings, rep.SearchErr)
		}
		return set, domain.ErrNoListings
	}
	for _, f := range p.deps.Finalizers {
		if err := f.Finalize(ctx, set); err != nil {
			return set, fmt.Errorf("pipeline: finalize: %w", err)
		}
	}
	log.Info("run complete", "stubs", rep.Stubs, "produced", rep.Produced, "resumed", rep.Resumed,
		"degraded", rep.Degraded, "dropped", rep.Dropped)
	return set, nil
}

// persist hands l to every sink and returns failure counts per sink.
func (p *Processor) persist(ctx context.Context, log *slog.Logger, l domain.CanonicalListing) map[string]int {
	var failed map[string]int
	for _, s := range p.deps.Sinks {
		if err := s.Put(ctx, l); err != nil {
			if failed == nil {
				failed = make(map[string]int)
			}
			failed[s.Name()]++
			p.metrics.Counter(metrics.WithLabels("carfeed_sink_errors_total", "sink", s.Name()),
				"Sink write failures.").Inc()
			log.Error("sink put failed", "sink", s.Name(), "listing", l.ID, "err", err)
		}
	}
	return failed
}

func logAttrs(id string, err error) []any {
	attrs := []any{"listing", id, "err", err}
	var me *domain.MappingError
	if errors.As(err, &me) {
		attrs = append(attrs, "table", me.Table, "token", me.Token)
	}
	return attrs
}
