package encar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/WessleyAI/carfeed/pkg/fn"
	"github.com/WessleyAI/carfeed/pkg/resilience"
)

// PhotoDownloader saves listing photos to {Dir}/{id}/{i}.jpg.
type PhotoDownloader struct {
	Client *Client
	Dir    string
}

// SavePhotos downloads every url. A failed photo does not stop the rest;
// the joined error lists every failure.
func (d *PhotoDownloader) SavePhotos(ctx context.Context, id string, urls []string) error {
	dir := filepath.Join(d.Dir, filepath.Base(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("encar: photos dir: %w", err)
	}
	var errs []error
	for i, u := range urls {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res := resilience.CallResult(d.Client.breakers[EndpointPhoto], ctx, func(ctx context.Context) fn.Result[[]byte] {
			return d.Client.doGet(ctx, EndpointPhoto, u)
		})
		data, err := res.Unwrap()
		if err != nil {
			errs = append(errs, fmt.Errorf("photo %d: %w", i, err))
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d.jpg", i)), data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("photo %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
