package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/store"
	"github.com/WessleyAI/carfeed/pkg/config"
	"github.com/WessleyAI/carfeed/pkg/metrics"
)

const searchPage = `{"Count":2,"SearchResults":[
 {"Id":"100","Manufacturer":"현대","Model":"아반떼","FuelType":"가솔린","Price":1500,"Year":201800,"Mileage":50000,"SellType":"일반"},
 {"Id":"200","Manufacturer":"현대","Model":"아반떼","FuelType":"가솔린","Price":"1700","Year":"202001.0","Mileage":"12000","SellType":"일반"}
]}`

type encarStub struct {
	mu      sync.Mutex
	details map[string]int
	rows    string
}

func (e *encarStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search/"):
			if strings.Contains(r.URL.Query().Get("sr"), "|0|") {
				e.mu.Lock()
				rows := e.rows
				e.mu.Unlock()
				w.Write([]byte(rows))
				return
			}
			w.Write([]byte(`{"Count":2,"SearchResults":[]}`))
		case strings.Contains(r.URL.Path, "/diagnosis/"):
			e.count(r.URL.Path)
			w.Write([]byte(`{"items":[{"name":"HOOD","resultCode":"REPLACEMENT"}]}`))
		case strings.Contains(r.URL.Path, "/record/"):
			e.count(r.URL.Path)
			w.Write([]byte(`{"myAccidentCnt":0,"otherAccidentCnt":1,"myAccidentCost":0,"otherAccidentCost":350000}`))
		default:
			e.count(r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func (e *encarStub) count(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range []string{"100", "200"} {
		if strings.Contains(path, "/"+id) {
			e.details[id]++
		}
	}
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Encar.BaseURL = baseURL
	cfg.Encar.RateLimit = 1000
	cfg.Encar.Burst = 100
	cfg.Encar.Retry.InitialWait = time.Millisecond
	cfg.Encar.Retry.MaxWait = time.Millisecond
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler), metrics.New())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestBatchWritesArtifacts(t *testing.T) {
	stub := &encarStub{details: map[string]int{}, rows: searchPage}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	a := newTestApp(t, cfg)
	if err := a.batch(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	set, err := store.Load(filepath.Join(cfg.Output.Dir, cfg.Output.Snapshot))
	if err != nil {
		t.Fatal(err)
	}
	if got := set.IDs(); len(got) != 2 || got[0] != "100" || got[1] != "200" {
		t.Fatalf("ids = %v", got)
	}
	l, _ := set.Get("100")
	if l.Manufacturer != "Hyundai" || l.Model != "Avante" || l.Price != 15000000 || l.Year != 2018 {
		t.Errorf("listing = %+v", l)
	}
	if len(l.ReplacedParts) != 1 || l.ReplacedParts[0] != "капот" || l.Condition != domain.ConditionDamagePresent {
		t.Errorf("diagnosis = %v %s", l.ReplacedParts, l.Condition)
	}
	if l.OtherAccidentCost != 350000 || l.ShortMessage == "" {
		t.Errorf("profile/message = %+v", l)
	}

	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, cfg.Output.Markdown)); err != nil {
		t.Errorf("markdown table: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, cfg.Output.Journal)); !os.IsNotExist(err) {
		t.Error("journal should be discarded after a completed batch")
	}
}

func TestBatchResumeSkipsJournaled(t *testing.T) {
	stub := &encarStub{details: map[string]int{}, rows: searchPage}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	j := store.NewJournal(filepath.Join(cfg.Output.Dir, cfg.Output.Journal))
	if err := j.Put(context.Background(), domain.CanonicalListing{ID: "100", Manufacturer: "Hyundai", ShortMessage: "kept"}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	a := newTestApp(t, cfg)
	if err := a.batch(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if stub.details["100"] != 0 {
		t.Errorf("journaled listing fetched %d times", stub.details["100"])
	}
	if stub.details["200"] == 0 {
		t.Error("new listing was not fetched")
	}
	set, _ := store.Load(filepath.Join(cfg.Output.Dir, cfg.Output.Snapshot))
	if l, ok := set.Get("100"); !ok || l.ShortMessage != "kept" {
		t.Errorf("resumed listing = %+v", l)
	}
}

func TestBatchWithoutResumeDropsStaleJournal(t *testing.T) {
	rows := `{"Count":1,"SearchResults":[{"Id":"1","Manufacturer":"Unknown신규","Model":"x","FuelType":"가솔린","Price":1,"Year":201900,"Mileage":1}]}`
	stub := &encarStub{details: map[string]int{}, rows: rows}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	journalPath := filepath.Join(cfg.Output.Dir, cfg.Output.Journal)
	j := store.NewJournal(journalPath)
	if err := j.Put(context.Background(), domain.CanonicalListing{ID: "999", Manufacturer: "Kia", ShortMessage: "stale"}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	a := newTestApp(t, cfg)
	if err := a.batch(context.Background(), false); !errors.Is(err, domain.ErrNoListings) {
		t.Fatalf("err = %v, want ErrNoListings", err)
	}

	// The unfinished pass is resumed with working search results.
	stub.mu.Lock()
	stub.rows = searchPage
	stub.mu.Unlock()
	if err := a.batch(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	set, err := store.Load(filepath.Join(cfg.Output.Dir, cfg.Output.Snapshot))
	if err != nil {
		t.Fatal(err)
	}
	if set.Has("999") {
		t.Error("listing from an earlier interrupted run was resurrected")
	}
	if got := set.IDs(); len(got) != 2 {
		t.Errorf("ids = %v", got)
	}
}

func TestBatchNoListingsKeepsPreviousSnapshot(t *testing.T) {
	rows := `{"Count":1,"SearchResults":[{"Id":"1","Manufacturer":"Unknown신규","Model":"x","FuelType":"가솔린","Price":1,"Year":201900,"Mileage":1}]}`
	stub := &encarStub{details: map[string]int{}, rows: rows}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	snap := filepath.Join(cfg.Output.Dir, cfg.Output.Snapshot)
	if err := os.WriteFile(snap, []byte(`{"9":{"id":"9"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	a := newTestApp(t, cfg)
	err := a.batch(context.Background(), false)
	if !errors.Is(err, domain.ErrNoListings) {
		t.Fatalf("err = %v, want ErrNoListings", err)
	}
	raw, _ := os.ReadFile(snap)
	if string(raw) != `{"9":{"id":"9"}}` {
		t.Errorf("snapshot overwritten: %s", raw)
	}
}

func TestOverridesApplyOnlyVisitedFlags(t *testing.T) {
	fs := flag.NewFlagSet("carfeed", flag.ContinueOnError)
	o := registerOverrides(fs)
	if err := fs.Parse([]string{"-workers", "9", "-year-from", "2020", "-schedule", "@every 6h"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Search.ModelGroup = "from-file"
	if err := o.apply(fs, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Workers != 9 || cfg.Search.YearFrom != 2020 || cfg.Schedule != "@every 6h" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Search.ModelGroup != "from-file" {
		t.Error("unset flag clobbered file value")
	}

	fs = flag.NewFlagSet("carfeed", flag.ContinueOnError)
	o = registerOverrides(fs)
	fs.Parse([]string{"-year-to", "2030"})
	if err := o.apply(fs, config.Default()); err == nil {
		t.Error("out-of-range year should fail validation")
	}
}

func TestEncarConfigMapping(t *testing.T) {
	c := config.Default().Encar
	c.Paths = map[string]string{"profile": "/p/%s"}
	got := encarConfig(c)
	if got.Paths.Profile != "/p/%s" || got.Paths.Search != "" {
		t.Errorf("paths = %+v", got.Paths)
	}
	if got.Retry.MaxAttempts != 3 || !got.Retry.Jitter || got.Breaker.FailThreshold != 5 {
		t.Errorf("resilience = %+v %+v", got.Retry, got.Breaker)
	}
}

func TestOutputPath(t *testing.T) {
	if got := outputPath("data", "a.json"); got != filepath.Join("data", "a.json") {
		t.Errorf("got %s", got)
	}
	if got := outputPath("data", "/abs/a.json"); got != "/abs/a.json" {
		t.Errorf("got %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug || parseLevel("nope") != slog.LevelInfo {
		t.Fail()
	}
}
