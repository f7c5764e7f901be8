package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/message"
)

func listing(id string, parts ...string) domain.CanonicalListing {
	return domain.NewCanonicalListing(domain.ListingFields{
		ID:                 id,
		Manufacturer:       "Hyundai",
		Model:              "Avante",
		Price:              15000000,
		Year:               2018,
		FuelType:           "Бензин",
		Mileage:            50000,
		URL:                "http://x/" + id,
		ReplacedParts:      parts,
		DiagnosisNarrative: "narrative | with pipe",
		Inspection: &domain.Inspection{
			Outers: []domain.OuterPanel{{Name: "후드", Status: "교환"}},
		},
		Description: "line1\nline2",
	}, message.NewMarkdownV2())
}

func sampleSet() *domain.ListingSet {
	set := &domain.ListingSet{}
	set.Put(listing("30", "капот"))
	set.Put(listing("10"))
	set.Put(listing("20"))
	return set
}

func TestSnapshot_PersistReloadIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cars.json")
	set := sampleSet()
	if err := (Snapshot{Path: path}).Finalize(context.Background(), set); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.IDs(), set.IDs()) {
		t.Fatalf("order = %v", back.IDs())
	}
	if !reflect.DeepEqual(back.Listings(), set.Listings()) {
		t.Errorf("reloaded listings differ:\n%+v\n%+v", back.Listings(), set.Listings())
	}
}

func TestSnapshot_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cars.json")
	s := Snapshot{Path: path}
	if err := s.Finalize(context.Background(), sampleSet()); err != nil {
		t.Fatal(err)
	}
	one := &domain.ListingSet{}
	one.Put(listing("99"))
	if err := s.Finalize(context.Background(), one); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil || back.Len() != 1 {
		t.Fatalf("len=%d err=%v", back.Len(), err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("[]"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestJournal_PutAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j", "cars.jsonl")
	j := NewJournal(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("journal must be created lazily")
	}

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := j.Put(context.Background(), listing(id)); err != nil {
				t.Error(err)
			}
		}(id)
	}
	wg.Wait()
	if err := j.Put(context.Background(), listing("2", "капот")); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	set, err := LoadJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 4 {
		t.Fatalf("len = %d", set.Len())
	}
	if l, _ := set.Get("2"); len(l.ReplacedParts) != 1 {
		t.Errorf("later record should win: %+v", l)
	}
}

func TestLoadJournal_TornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.jsonl")
	j := NewJournal(path)
	j.Put(context.Background(), listing("1"))
	j.Close()

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString(`{"id":"2","manuf`)
	f.Close()

	set, err := LoadJournal(path)
	if err != nil {
		t.Fatalf("torn tail should be ignored: %v", err)
	}
	if set.Len() != 1 || !set.Has("1") {
		t.Errorf("ids = %v", set.IDs())
	}
}

func TestLoadJournal_CorruptMiddle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.jsonl")
	os.WriteFile(path, []byte("garbage\n{\"id\":\"1\"}\n"), 0o644)
	if _, err := LoadJournal(path); err == nil {
		t.Error("expected error for corrupt line")
	}
}

func TestLoadJournal_Missing(t *testing.T) {
	set, err := LoadJournal(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil || set.Len() != 0 {
		t.Errorf("got %v, %v", set, err)
	}
}

func TestJournal_Discard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.jsonl")
	j := NewJournal(path)
	if err := j.Discard(); err != nil {
		t.Fatalf("discard of unopened journal: %v", err)
	}
	j.Put(context.Background(), listing("1"))
	if err := j.Discard(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("journal file still present")
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleSet())
	lines := strings.Split(strings.TrimSuffix(md, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header, separator and 3 rows, got %d:\n%s", len(lines), md)
	}
	if !strings.HasPrefix(lines[0], "| id | manufacturer | model | price |") {
		t.Errorf("header = %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "| -- | ------------ |") {
		t.Errorf("separator = %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "| 30 | Hyundai | Avante | 15000000 | 2018 |") {
		t.Errorf("row = %s", lines[2])
	}
	if !strings.Contains(lines[2], `narrative \| with pipe`) || !strings.Contains(lines[2], "line1<br>line2") {
		t.Errorf("cells not escaped: %s", lines[2])
	}
	if got := strings.Count(lines[0], "|") - 1; got != len(MarkdownColumns) {
		t.Errorf("columns = %d", got)
	}
}

func TestMarkdownTable_Finalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.md")
	if err := (MarkdownTable{Path: path}).Finalize(context.Background(), sampleSet()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "| 20 |") {
		t.Errorf("file = %q, %v", data, err)
	}
}

type execCall struct {
	sql  string
	args []any
}

type mockExecer struct {
	calls []execCall
	err   error
}

func (m *mockExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.calls = append(m.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), m.err
}

func TestPostgresSink_Put(t *testing.T) {
	db := &mockExecer{}
	sink := NewPostgresSink(db)
	sink.clock = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	if err := sink.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Put(context.Background(), listing("7", "капот")); err != nil {
		t.Fatal(err)
	}
	if len(db.calls) != 2 || !strings.Contains(db.calls[0].sql, "CREATE TABLE IF NOT EXISTS listings") {
		t.Fatalf("calls = %+v", db.calls)
	}
	c := db.calls[1]
	if !strings.Contains(c.sql, "ON CONFLICT (id) DO UPDATE") || len(c.args) != 21 {
		t.Fatalf("upsert = %s (%d args)", c.sql, len(c.args))
	}
	if c.args[0] != "7" || c.args[3] != int64(15000000) || c.args[14] != "damage present" {
		t.Errorf("args = %v", c.args)
	}
	if parts, ok := c.args[12].([]string); !ok || len(parts) != 1 {
		t.Errorf("replaced_parts = %#v", c.args[12])
	}
	if sink.Name() != "postgres" {
		t.Error("name")
	}
}

func TestPostgresSink_EmptyPartsNotNull(t *testing.T) {
	db := &mockExecer{}
	l := listing("8")
	l.ReplacedParts = nil
	NewPostgresSink(db).Put(context.Background(), l)
	if parts, ok := db.calls[0].args[12].([]string); !ok || parts == nil {
		t.Errorf("replaced_parts = %#v", db.calls[0].args[12])
	}
}

func TestPostgresSink_Error(t *testing.T) {
	db := &mockExecer{err: errors.New("conn reset")}
	if err := NewPostgresSink(db).Put(context.Background(), listing("1")); err == nil {
		t.Error("expected error")
	}
	if err := NewPostgresSink(db).EnsureSchema(context.Background()); err == nil {
		t.Error("expected error")
	}
}

type capturePublisher struct{ msgs []*nats.Msg }

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func TestNATSSink_Put(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewNATSSink(pub, "")
	if err := sink.Put(context.Background(), listing("5")); err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != DefaultSubject {
		t.Fatalf("msgs = %+v", pub.msgs)
	}
	if pub.msgs[0].Header.Get("Nats-Msg-Id") != "5" || !strings.Contains(string(pub.msgs[0].Data), `"id":"5"`) {
		t.Errorf("msg = %+v", pub.msgs[0])
	}
}
