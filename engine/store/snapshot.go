package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// Snapshot writes the whole id → listing mapping as one JSON document.
type Snapshot struct {
	Path string
}

// Finalize replaces the snapshot atomically.
func (s Snapshot) Finalize(_ context.Context, set *domain.ListingSet) error {
	data, err := json.MarshalIndent(set, "", "    ")
	if err != nil {
		return fmt.Errorf("store: snapshot encode: %w", err)
	}
	return writeAtomic(s.Path, append(data, '\n'))
}

// Load reads a snapshot back, keeping its order.
func Load(path string) (*domain.ListingSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: snapshot read: %w", err)
	}
	set := &domain.ListingSet{}
	if err := json.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("store: snapshot decode %s: %w", path, err)
	}
	return set, nil
}

// writeAtomic writes data to a temp file next to path and renames it over
// path, so readers see either the old or the new content.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", name, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return fmt.Errorf("store: chmod %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("store: rename to %s: %w", path, err)
	}
	return nil
}
