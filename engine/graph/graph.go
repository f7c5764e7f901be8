// Package graph mirrors listings into Neo4j as a Make → Model → Listing
// hierarchy with replaced parts hanging off each listing.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// ListingGraph is a pipeline sink backed by Neo4j.
type ListingGraph struct {
	opener SessionOpener
}

// New creates a ListingGraph on top of driver.
func New(driver neo4j.DriverWithContext, database string) *ListingGraph {
	return NewWithOpener(driverOpener{driver: driver, database: database})
}

// NewWithOpener creates a ListingGraph with a custom session source.
func NewWithOpener(o SessionOpener) *ListingGraph {
	return &ListingGraph{opener: o}
}

var constraints = []string{
	`CREATE CONSTRAINT listing_id IF NOT EXISTS FOR (l:Listing) REQUIRE l.id IS UNIQUE`,
	`CREATE CONSTRAINT make_name IF NOT EXISTS FOR (m:Make) REQUIRE m.name IS UNIQUE`,
	`CREATE CONSTRAINT part_name IF NOT EXISTS FOR (p:Part) REQUIRE p.name IS UNIQUE`,
}

// EnsureConstraints creates the uniqueness constraints the merges rely on.
func (g *ListingGraph) EnsureConstraints(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	for _, c := range constraints {
		if _, err := sess.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("graph: constraint: %w", err)
		}
	}
	return nil
}

func (g *ListingGraph) Name() string { return "neo4j" }

const upsertListing = `MERGE (mk:Make {name: $make})
MERGE (m:Model {name: $model, make: $make})
MERGE (mk)-[:HAS_MODEL]->(m)
MERGE (l:Listing {id: $id})
SET l += $props
MERGE (l)-[:OF_MODEL]->(m)`

const replaceParts = `MATCH (l:Listing {id: $id})
OPTIONAL MATCH (l)-[r:REPLACED]->(:Part)
DELETE r
WITH DISTINCT l
UNWIND $parts AS part
MERGE (p:Part {name: part})
MERGE (l)-[:REPLACED]->(p)`

// Put upserts the listing, its model and make, and its replaced parts in
// one write transaction.
func (g *ListingGraph) Put(ctx context.Context, l domain.CanonicalListing) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	parts := l.ReplacedParts
	if parts == nil {
		parts = []string{}
	}
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx, upsertListing, map[string]any{
			"id":    l.ID,
			"make":  l.Manufacturer,
			"model": l.Model,
			"props": listingToMap(l),
		}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, replaceParts, map[string]any{"id": l.ID, "parts": parts})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: put %s: %w", l.ID, err)
	}
	return nil
}

// Summary is the subset of a listing stored on the Listing node.
type Summary struct {
	ID        string `json:"id"`
	Price     int64  `json:"price"`
	Year      int    `json:"year"`
	Mileage   int    `json:"mileage"`
	FuelType  string `json:"fuel_type"`
	Condition string `json:"condition"`
	URL       string `json:"url"`
}

// ListingsByModel returns the listings of one make and model, cheapest first.
func (g *ListingGraph) ListingsByModel(ctx context.Context, manufacturer, model string) ([]Summary, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Make {name: $make})-[:HAS_MODEL]->(:Model {name: $model})<-[:OF_MODEL]-(l:Listing)
RETURN l ORDER BY l.price ASC`
	result, err := sess.Run(ctx, cypher, map[string]any{"make": manufacturer, "model": model})
	if err != nil {
		return nil, fmt.Errorf("graph: listings by model: %w", err)
	}
	var out []Summary
	for result.Next(ctx) {
		v, ok := result.Record().Get("l")
		if !ok {
			return nil, fmt.Errorf("graph: record has no l field")
		}
		node, ok := v.(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("graph: unexpected type %T", v)
		}
		out = append(out, summaryFromProps(node.Props))
	}
	return out, result.Err()
}

// ModelsWithReplacedPart counts listings per model that had part replaced.
func (g *ListingGraph) ModelsWithReplacedPart(ctx context.Context, part string) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Part {name: $part})<-[:REPLACED]-(:Listing)-[:OF_MODEL]->(m:Model)
RETURN m.make + ' ' + m.name AS model, count(*) AS n`
	result, err := sess.Run(ctx, cypher, map[string]any{"part": part})
	if err != nil {
		return nil, fmt.Errorf("graph: replaced part: %w", err)
	}
	out := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		name, _ := rec.Get("model")
		n, _ := rec.Get("n")
		s, _ := name.(string)
		c, _ := n.(int64)
		out[s] = c
	}
	return out, result.Err()
}

func listingToMap(l domain.CanonicalListing) map[string]any {
	return map[string]any{
		"id":                  l.ID,
		"price":               l.Price,
		"year":                int64(l.Year),
		"mileage":             int64(l.Mileage),
		"fuel_type":           l.FuelType,
		"url":                 l.URL,
		"accident_count":      int64(l.AccidentCount),
		"accident_cost":       l.AccidentCost,
		"other_accident_cost": l.OtherAccidentCost,
		"condition":           string(l.Condition),
		"narrative":           l.DiagnosisNarrative,
	}
}

func summaryFromProps(p map[string]any) Summary {
	str := func(k string) string { s, _ := p[k].(string); return s }
	num := func(k string) int64 { n, _ := p[k].(int64); return n }
	return Summary{
		ID:        str("id"),
		Price:     num("price"),
		Year:      int(num("year")),
		Mileage:   int(num("mileage")),
		FuelType:  str("fuel_type"),
		Condition: str("condition"),
		URL:       str("url"),
	}
}
