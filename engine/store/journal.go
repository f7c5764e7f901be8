// Package store persists canonical listings: an append-only JSONL journal,
// an atomic JSON snapshot, a Markdown table, and optional Postgres and NATS
// sinks.
package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// Journal appends one JSON line per listing. The file is created on the
// first Put so a run that produces nothing leaves no file behind.
type Journal struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// NewJournal returns a journal writing to path.
func NewJournal(path string) *Journal { return &Journal{path: path} }

func (j *Journal) Name() string { return "journal" }

// Put appends l as a single write so a crash never leaves half a record
// followed by a valid one.
func (j *Journal) Put(_ context.Context, l domain.CanonicalListing) error {
	line, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("store: journal encode %s: %w", l.ID, err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
			return fmt.Errorf("store: journal dir: %w", err)
		}
		f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("store: journal open: %w", err)
		}
		j.f = f
	}
	if _, err := j.f.Write(line); err != nil {
		return fmt.Errorf("store: journal write %s: %w", l.ID, err)
	}
	return nil
}

// Close flushes and closes the file if it was opened.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := errors.Join(j.f.Sync(), j.f.Close())
	j.f = nil
	return err
}

// Discard closes the journal and removes the file. A later Put starts a
// fresh file.
func (j *Journal) Discard() error {
	if err := j.Close(); err != nil {
		return err
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: journal remove: %w", err)
	}
	return nil
}

// LoadJournal replays a journal. A missing file is an empty set. A torn
// final line (no trailing newline, undecodable) is ignored; any other bad
// line is an error. Later records for an id replace earlier ones.
func LoadJournal(path string) (*domain.ListingSet, error) {
	set := &domain.ListingSet{}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: journal open: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("store: journal read: %w", err)
		}
		torn := errors.Is(err, io.EOF)
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var l domain.CanonicalListing
			if uerr := json.Unmarshal(trimmed, &l); uerr != nil {
				if torn {
					break
				}
				return nil, fmt.Errorf("store: journal line %d: %w", n, uerr)
			}
			set.Put(l)
		}
		if torn {
			break
		}
	}
	return set, nil
}
