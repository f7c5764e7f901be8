package encar

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/pkg/fn"
)

// Query renders the search expression for f.
func Query(f Filters) string {
	from, to := domain.EncodeYearRange(f.YearFrom, f.YearTo)
	return fmt.Sprintf("(And.Hidden.N._.(C.CarType.Y._.(C.Manufacturer.%s._.ModelGroup.%s.))_.Year.range(%s..%s).)",
		f.Manufacturer, f.ModelGroup, from, to)
}

// SearchURL is the request URL for one result page.
func (c *Client) SearchURL(f Filters, page int) string {
	sr := fmt.Sprintf("|PriceAsc|%d|%d", page*PageSize, PageSize)
	return fmt.Sprintf("%s%s?count=true&q=%s&sr=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Paths.Search, url.QueryEscape(Query(f)), url.QueryEscape(sr))
}

// Search fetches one page. Rentals are filtered out, so a non-empty page may
// yield no stubs.
func (c *Client) Search(ctx context.Context, f Filters, page int) ([]ListingStub, error) {
	stubs, _, err := c.searchPage(ctx, f, page)
	return stubs, err
}

func (c *Client) searchPage(ctx context.Context, f Filters, page int) ([]ListingStub, int, error) {
	res := getJSON[searchResponse](ctx, c, EndpointSearch, c.SearchURL(f, page))
	resp, err := res.Unwrap()
	if err != nil {
		return nil, 0, fmt.Errorf("encar: search page %d: %w", page, err)
	}
	stubs := make([]ListingStub, 0, len(resp.SearchResults))
	for _, row := range resp.SearchResults {
		s := c.stub(row)
		if s.Rental() {
			continue
		}
		stubs = append(stubs, s)
	}
	return stubs, len(resp.SearchResults), nil
}

// SearchAll walks pages from 0 until an empty page, a failure, or maxPages
// pages (maxPages <= 0 means no limit). Stubs collected before a failure are
// returned along with it. Duplicate ids keep their first occurrence.
func (c *Client) SearchAll(ctx context.Context, f Filters, maxPages int) ([]ListingStub, error) {
	var out []ListingStub
	for page := 0; maxPages <= 0 || page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return uniqueStubs(out), err
		}
		stubs, raw, err := c.searchPage(ctx, f, page)
		if err != nil {
			return uniqueStubs(out), err
		}
		if raw == 0 {
			c.logger.Info("search exhausted", "page", page, "stubs", len(out))
			break
		}
		out = append(out, stubs...)
	}
	return uniqueStubs(out), nil
}

func uniqueStubs(stubs []ListingStub) []ListingStub {
	return fn.UniqueBy(stubs, func(s ListingStub) string { return s.ID })
}

func (c *Client) stub(row searchRow) ListingStub {
	id := row.ID.String()
	photos := make([]string, 0, len(row.Photos))
	for _, p := range row.Photos {
		if p.Location != "" {
			photos = append(photos, p.Location)
		}
	}
	return ListingStub{
		ID:           id,
		Manufacturer: row.Manufacturer,
		Model:        row.Model,
		Badge:        row.Badge,
		FuelType:     row.FuelType,
		Price:        row.Price,
		Year:         row.Year,
		Mileage:      row.Mileage,
		SellType:     row.SellType,
		Photos:       photos,
		URL:          fmt.Sprintf(c.cfg.DetailPageURL, id),
	}
}

// PhotoURLs joins the stub's photo locations to the photo host.
func (c *Client) PhotoURLs(s ListingStub) []string {
	base := strings.TrimRight(c.cfg.PhotoBaseURL, "/")
	out := make([]string, len(s.Photos))
	for i, loc := range s.Photos {
		if !strings.HasPrefix(loc, "/") {
			loc = "/" + loc
		}
		out[i] = base + loc
	}
	return out
}
