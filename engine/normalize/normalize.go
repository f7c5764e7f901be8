// Package normalize converts enriched Encar listings into canonical listings.
package normalize

import (
	"errors"
	"log/slog"

	"github.com/WessleyAI/carfeed/engine/catalog"
	"github.com/WessleyAI/carfeed/engine/diagnosis"
	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/encar"
)

// Normalizer maps source tokens through a catalog, interprets the diagnosis
// and attaches display strings.
type Normalizer struct {
	catalog  *catalog.Catalog
	analyzer *diagnosis.Analyzer
	renderer domain.Renderer
	logger   *slog.Logger
}

// Deps are the collaborators a Normalizer uses. Nil fields take defaults.
type Deps struct {
	Catalog  *catalog.Catalog
	Renderer domain.Renderer
	Logger   *slog.Logger
}

// New builds a Normalizer.
func New(d Deps) *Normalizer {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Normalizer{
		catalog:  d.Catalog,
		analyzer: diagnosis.NewAnalyzer(d.Catalog),
		renderer: d.Renderer,
		logger:   d.Logger.With("component", "normalize"),
	}
}

// Normalize produces the canonical listing for agg. Mapping, range and
// diagnosis-code failures reject the listing; the returned error is a
// *domain.ListingError wrapping the cause.
func (n *Normalizer) Normalize(agg encar.DetailAggregate) (domain.CanonicalListing, error) {
	l, err := n.normalize(agg)
	if err != nil {
		return domain.CanonicalListing{}, &domain.ListingError{ID: agg.Stub.ID, Err: err}
	}
	return l, nil
}

func (n *Normalizer) normalize(agg encar.DetailAggregate) (domain.CanonicalListing, error) {
	s := agg.Stub
	f := domain.ListingFields{ID: s.ID, URL: s.URL}

	var err error
	if f.Manufacturer, err = n.catalog.Manufacturer(s.Manufacturer); err != nil {
		return domain.CanonicalListing{}, err
	}
	if f.Model, err = n.catalog.Model(s.Model); err != nil {
		return domain.CanonicalListing{}, err
	}
	if f.Price, err = domain.NormalizePrice(s.Price.String()); err != nil {
		return domain.CanonicalListing{}, err
	}
	encoded, err := domain.ParseCount("year", s.Year.String())
	if err != nil {
		return domain.CanonicalListing{}, err
	}
	if f.Year, err = domain.DecodeYear(encoded); err != nil {
		return domain.CanonicalListing{}, err
	}
	if f.FuelType, err = n.catalog.Fuel(s.FuelType); err != nil {
		return domain.CanonicalListing{}, err
	}
	if f.Mileage, err = domain.ParseCount("mileage", s.Mileage.String()); err != nil {
		return domain.CanonicalListing{}, err
	}

	if p := agg.Profile; p != nil {
		f.AccidentCount = p.MyAccidentCnt
		f.OtherAccidentCount = p.OtherAccidentCnt
		f.AccidentCost = p.MyAccidentCost
		f.OtherAccidentCost = p.OtherAccidentCost
	}

	diag, err := n.analyzer.Analyze(agg.Diagnosis)
	if err != nil {
		return domain.CanonicalListing{}, err
	}
	f.ReplacedParts = diag.ReplacedParts
	f.DiagnosisNarrative = diag.Narrative
	f.CheckerComment = diag.CheckerComment
	f.OuterPanelComment = diag.OuterPanelComment

	insp, err := Inspection(agg.Inspection)
	switch {
	case errors.Is(err, domain.ErrMalformedInspection):
		n.logger.Warn("inspection discarded", "listing", s.ID, "err", err)
	case err != nil:
		return domain.CanonicalListing{}, err
	default:
		f.Inspection = insp
	}

	if agg.Description != nil && agg.Description.Contents != nil {
		f.Description = DescriptionText(agg.Description.Contents.Text)
	}

	l := domain.NewCanonicalListing(f, n.renderer)
	if err := domain.ValidateListing(l); err != nil {
		return domain.CanonicalListing{}, err
	}
	return l, nil
}
