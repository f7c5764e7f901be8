package encar

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/pkg/fn"
	"github.com/WessleyAI/carfeed/pkg/metrics"
)

// PhotoSink receives the photo URLs of each enriched stub.
type PhotoSink interface {
	SavePhotos(ctx context.Context, id string, urls []string) error
}

// Enricher fetches detail documents. The pipeline depends on this rather
// than on *Client.
type Enricher interface {
	Enrich(ctx context.Context, stub ListingStub) DetailAggregate
}

func (c *Client) detailURL(tmpl, id string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + fmt.Sprintf(tmpl, url.PathEscape(id))
}

// Enrich fetches the four detail documents concurrently. A document that
// cannot be fetched is left nil and recorded in Errors; Enrich itself never
// fails.
func (c *Client) Enrich(ctx context.Context, stub ListingStub) DetailAggregate {
	agg := DetailAggregate{Stub: stub}
	fetch := func(doc Endpoint, load func() error) func() *domain.TransientFetchError {
		return func() *domain.TransientFetchError {
			if err := load(); err != nil {
				c.logger.Warn("detail fetch failed", "listing", stub.ID, "endpoint", doc, "err", err)
				c.metrics.Counter(metrics.WithLabels("carfeed_fetch_degraded_total", "document", string(doc)),
					"Detail documents degraded to absent.").Inc()
				return &domain.TransientFetchError{Listing: stub.ID, Document: string(doc), Err: err}
			}
			return nil
		}
	}

	errs := fn.FanOut(
		fetch(EndpointProfile, func() error {
			r := getJSON[Profile](ctx, c, EndpointProfile, c.detailURL(c.cfg.Paths.Profile, stub.ID))
			v, err := r.Unwrap()
			agg.Profile = v
			return err
		}),
		fetch(EndpointDiagnosis, func() error {
			r := getJSON[Diagnosis](ctx, c, EndpointDiagnosis, c.detailURL(c.cfg.Paths.Diagnosis, stub.ID))
			v, err := r.Unwrap()
			agg.Diagnosis = v
			return err
		}),
		fetch(EndpointInspection, func() error {
			r := getJSON[Inspection](ctx, c, EndpointInspection, c.detailURL(c.cfg.Paths.Inspection, stub.ID))
			v, err := r.Unwrap()
			agg.Inspection = v
			return err
		}),
		fetch(EndpointDescription, func() error {
			r := getJSON[Description](ctx, c, EndpointDescription, c.detailURL(c.cfg.Paths.Description, stub.ID))
			v, err := r.Unwrap()
			agg.Description = v
			return err
		}),
		func() *domain.TransientFetchError {
			if c.photos != nil && len(stub.Photos) > 0 {
				if err := c.photos.SavePhotos(ctx, stub.ID, c.PhotoURLs(stub)); err != nil {
					c.logger.Warn("photo download failed", "listing", stub.ID, "err", err)
				}
			}
			return nil
		},
	)
	for _, e := range errs {
		if e != nil {
			agg.Errors = append(agg.Errors, e)
		}
	}
	return agg
}

// WithPhotos attaches a PhotoSink triggered on every Enrich.
func (c *Client) WithPhotos(p PhotoSink) *Client {
	c.photos = p
	return c
}
