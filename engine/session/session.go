// Package session pages through a published listing set one listing at a
// time, remembering where each conversation left off.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// ErrEndOfResults is returned once a session has seen every listing.
var ErrEndOfResults = errors.New("session: end of results")

// Cursor tracks one session's position. LastIndex is the last position in
// the listing set that was scanned (-1 before the first call) and
// NextNumber is the display number the next shown listing gets.
type Cursor struct {
	LastIndex  int `json:"last_index"`
	NextNumber int `json:"next_number"`
}

// Start is the cursor of a session that has not been seen yet.
func Start() Cursor { return Cursor{LastIndex: -1, NextNumber: 1} }

// CursorStore persists cursors by session id. Load reports false when the
// session has no cursor.
type CursorStore interface {
	Load(ctx context.Context, session string) (Cursor, bool, error)
	Save(ctx context.Context, session string, c Cursor) error
	Reset(ctx context.Context, session string) error
}

// Feed is the listing set sessions page through. It can be swapped or
// extended while sessions read it.
type Feed struct {
	mu  sync.RWMutex
	set *domain.ListingSet
}

// NewFeed wraps set; a nil set starts empty.
func NewFeed(set *domain.ListingSet) *Feed {
	if set == nil {
		set = &domain.ListingSet{}
	}
	return &Feed{set: set}
}

// Replace swaps in a fresh set. Existing cursors keep their positions.
func (f *Feed) Replace(set *domain.ListingSet) {
	f.mu.Lock()
	f.set = set
	f.mu.Unlock()
}

// Put adds or updates one listing.
func (f *Feed) Put(l domain.CanonicalListing) {
	f.mu.Lock()
	f.set.Put(l)
	f.mu.Unlock()
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.set.Len()
}

// Get looks up a listing by id.
func (f *Feed) Get(id string) (domain.CanonicalListing, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.set.Get(id)
}

// next finds the first listing after index from that has a short message.
func (f *Feed) next(from int) (int, domain.CanonicalListing, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := from + 1; i < f.set.Len(); i++ {
		if l := f.set.At(i); l.ShortMessage != "" {
			return i, l, true
		}
	}
	return 0, domain.CanonicalListing{}, false
}

// Browser hands out listings to sessions.
type Browser struct {
	feed  *Feed
	store CursorStore
	locks sync.Map
}

// NewBrowser creates a Browser over feed with cursors kept in store.
func NewBrowser(feed *Feed, store CursorStore) *Browser {
	return &Browser{feed: feed, store: store}
}

// Feed returns the underlying feed.
func (b *Browser) Feed() *Feed { return b.feed }

func (b *Browser) lock(session string) func() {
	v, _ := b.locks.LoadOrStore(session, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// NextListing returns the display number and short message of the next
// listing for session and advances its cursor. Listings without a short
// message are skipped without consuming a number. When nothing is left it
// returns ErrEndOfResults and leaves the cursor where it is.
func (b *Browser) NextListing(ctx context.Context, session string) (int, string, error) {
	if session == "" {
		return 0, "", fmt.Errorf("session: empty session id")
	}
	defer b.lock(session)()

	cur, ok, err := b.store.Load(ctx, session)
	if err != nil {
		return 0, "", fmt.Errorf("session: load %s: %w", session, err)
	}
	if !ok {
		cur = Start()
	}

	idx, l, found := b.feed.next(cur.LastIndex)
	if !found {
		return 0, "", ErrEndOfResults
	}
	number := cur.NextNumber
	cur = Cursor{LastIndex: idx, NextNumber: number + 1}
	if err := b.store.Save(ctx, session, cur); err != nil {
		return 0, "", fmt.Errorf("session: save %s: %w", session, err)
	}
	return number, l.ShortMessage, nil
}

// Current returns the cursor of session without advancing it.
func (b *Browser) Current(ctx context.Context, session string) (Cursor, error) {
	cur, ok, err := b.store.Load(ctx, session)
	if err != nil {
		return Cursor{}, fmt.Errorf("session: load %s: %w", session, err)
	}
	if !ok {
		return Start(), nil
	}
	return cur, nil
}

// Reset forgets session so its next call starts from the first listing.
func (b *Browser) Reset(ctx context.Context, session string) error {
	defer b.lock(session)()
	if err := b.store.Reset(ctx, session); err != nil {
		return fmt.Errorf("session: reset %s: %w", session, err)
	}
	return nil
}
