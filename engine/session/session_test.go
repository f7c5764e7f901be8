package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WessleyAI/carfeed/engine/domain"
)

func feedOf(ids ...string) *Feed {
	set := &domain.ListingSet{}
	for _, id := range ids {
		l := domain.CanonicalListing{ID: id}
		if id != "" && id[0] != '-' {
			l.ShortMessage = "short " + id
		}
		set.Put(l)
	}
	return NewFeed(set)
}

func TestNextListingWalksInOrder(t *testing.T) {
	b := NewBrowser(feedOf("a", "b", "c"), NewMemoryCursors())
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		n, msg, err := b.NextListing(ctx, "chat-1")
		if err != nil {
			t.Fatal(err)
		}
		if n != i+1 || msg != "short "+id {
			t.Errorf("call %d = (%d, %q)", i, n, msg)
		}
	}
	if _, _, err := b.NextListing(ctx, "chat-1"); !errors.Is(err, ErrEndOfResults) {
		t.Fatalf("err = %v, want ErrEndOfResults", err)
	}
	// Stays at the end.
	if _, _, err := b.NextListing(ctx, "chat-1"); !errors.Is(err, ErrEndOfResults) {
		t.Fatalf("err = %v, want ErrEndOfResults", err)
	}
}

func TestNextListingSkipsListingsWithoutMessage(t *testing.T) {
	b := NewBrowser(feedOf("a", "-x", "b"), NewMemoryCursors())
	ctx := context.Background()

	b.NextListing(ctx, "s")
	n, msg, err := b.NextListing(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || msg != "short b" {
		t.Errorf("got (%d, %q), want (2, short b)", n, msg)
	}
	cur, _ := b.Current(ctx, "s")
	if cur.LastIndex != 2 || cur.NextNumber != 3 {
		t.Errorf("cursor = %+v", cur)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	b := NewBrowser(feedOf("a", "b"), NewMemoryCursors())
	ctx := context.Background()

	b.NextListing(ctx, "one")
	b.NextListing(ctx, "one")
	n, msg, err := b.NextListing(ctx, "two")
	if err != nil || n != 1 || msg != "short a" {
		t.Errorf("two = (%d, %q, %v)", n, msg, err)
	}
}

func TestResetStartsOver(t *testing.T) {
	b := NewBrowser(feedOf("a"), NewMemoryCursors())
	ctx := context.Background()

	b.NextListing(ctx, "s")
	if err := b.Reset(ctx, "s"); err != nil {
		t.Fatal(err)
	}
	n, _, err := b.NextListing(ctx, "s")
	if err != nil || n != 1 {
		t.Errorf("after reset = (%d, %v)", n, err)
	}
}

func TestFeedGrowthResumesCursor(t *testing.T) {
	feed := feedOf("a")
	b := NewBrowser(feed, NewMemoryCursors())
	ctx := context.Background()

	b.NextListing(ctx, "s")
	if _, _, err := b.NextListing(ctx, "s"); !errors.Is(err, ErrEndOfResults) {
		t.Fatal("expected end of results")
	}
	feed.Put(domain.CanonicalListing{ID: "b", ShortMessage: "short b"})
	n, msg, err := b.NextListing(ctx, "s")
	if err != nil || n != 2 || msg != "short b" {
		t.Errorf("got (%d, %q, %v)", n, msg, err)
	}
}

func TestEmptySessionRejected(t *testing.T) {
	b := NewBrowser(feedOf("a"), NewMemoryCursors())
	if _, _, err := b.NextListing(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmptyFeed(t *testing.T) {
	b := NewBrowser(NewFeed(nil), NewMemoryCursors())
	if _, _, err := b.NextListing(context.Background(), "s"); !errors.Is(err, ErrEndOfResults) {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentCallsHandOutDistinctNumbers(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%d", i)
	}
	b := NewBrowser(feedOf(ids...), NewMemoryCursors())

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for i := 0; i < len(ids); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _, err := b.NextListing(context.Background(), "s")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != len(ids) {
		t.Errorf("distinct numbers = %d, want %d", len(seen), len(ids))
	}
}

type failingStore struct{ *MemoryCursors }

func (failingStore) Save(context.Context, string, Cursor) error { return errors.New("down") }

func TestSaveFailureSurfaces(t *testing.T) {
	b := NewBrowser(feedOf("a"), failingStore{NewMemoryCursors()})
	if _, _, err := b.NextListing(context.Background(), "s"); err == nil {
		t.Fatal("expected error")
	}
}

type fakeKV struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisCursors(t *testing.T) {
	kv := newFakeKV()
	rc := NewRedisCursors(kv, time.Hour)
	ctx := context.Background()

	if _, ok, err := rc.Load(ctx, "s"); ok || err != nil {
		t.Fatalf("missing = (%v, %v)", ok, err)
	}
	if err := rc.Save(ctx, "s", Cursor{LastIndex: 4, NextNumber: 3}); err != nil {
		t.Fatal(err)
	}
	if kv.ttls[KeyPrefix+"s"] != time.Hour {
		t.Errorf("ttl = %v", kv.ttls[KeyPrefix+"s"])
	}
	c, ok, err := rc.Load(ctx, "s")
	if err != nil || !ok || c != (Cursor{LastIndex: 4, NextNumber: 3}) {
		t.Errorf("load = (%+v, %v, %v)", c, ok, err)
	}
	if err := rc.Reset(ctx, "s"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := rc.Load(ctx, "s"); ok {
		t.Error("cursor survived reset")
	}
}

func TestRedisCursorsErrors(t *testing.T) {
	kv := newFakeKV()
	kv.data[KeyPrefix+"bad"] = "{not json"
	rc := NewRedisCursors(kv, 0)
	if _, _, err := rc.Load(context.Background(), "bad"); err == nil {
		t.Error("expected decode error")
	}
	kv.err = errors.New("conn refused")
	if _, _, err := rc.Load(context.Background(), "s"); err == nil {
		t.Error("expected transport error")
	}
}
