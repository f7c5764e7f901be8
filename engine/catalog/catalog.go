// Package catalog holds the closed translation tables that map source-language
// tokens onto canonical values.
package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// Table names, as reported in MappingError.
const (
	TableManufacturer = "manufacturer"
	TableModel        = "model"
	TableFuel         = "fuel"
	TablePart         = "part"
)

// Entry maps one source token to its canonical value.
type Entry struct {
	Token string
	Value string
}

// Tables is the raw material a Catalog is built from. Order matters for the
// model table: it breaks ties between equally long matches.
type Tables struct {
	Manufacturers []Entry
	Models        []Entry
	Fuels         []Entry
	Parts         []Entry
}

// Catalog answers lookups against validated Tables. Safe for concurrent use
// since it is never written after New returns.
type Catalog struct {
	manufacturers map[string]string
	models        []Entry
	fuels         map[string]string
	parts         map[string]string
}

// New validates t and builds a Catalog from it.
func New(t Tables) (*Catalog, error) {
	c := &Catalog{models: append([]Entry(nil), t.Models...)}
	var err error
	if c.manufacturers, err = index(TableManufacturer, t.Manufacturers); err != nil {
		return nil, err
	}
	if _, err = index(TableModel, t.Models); err != nil {
		return nil, err
	}
	if c.fuels, err = index(TableFuel, t.Fuels); err != nil {
		return nil, err
	}
	if c.parts, err = index(TablePart, t.Parts); err != nil {
		return nil, err
	}
	return c, nil
}

func index(table string, entries []Entry) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: %s table is empty", table)
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Token) == "" || strings.TrimSpace(e.Value) == "" {
			return nil, fmt.Errorf("catalog: %s table has blank entry %q→%q", table, e.Token, e.Value)
		}
		if prev, dup := m[e.Token]; dup {
			return nil, fmt.Errorf("catalog: %s token %q mapped twice (%q, %q)", table, e.Token, prev, e.Value)
		}
		m[e.Token] = e.Value
	}
	return m, nil
}

// Manufacturer maps a manufacturer token by exact match.
func (c *Catalog) Manufacturer(token string) (string, error) {
	return lookup(c.manufacturers, TableManufacturer, token)
}

// Fuel maps a fuel token by exact match.
func (c *Catalog) Fuel(token string) (string, error) {
	return lookup(c.fuels, TableFuel, token)
}

// Part maps a diagnosis item name to its display name.
func (c *Catalog) Part(name string) (string, error) {
	return lookup(c.parts, TablePart, name)
}

// Model finds the model token contained in raw. The token with the most
// characters wins; equal lengths go to the earlier table entry.
func (c *Catalog) Model(raw string) (string, error) {
	best, bestLen := -1, 0
	for i, e := range c.models {
		if !strings.Contains(raw, e.Token) {
			continue
		}
		if n := utf8.RuneCountInString(e.Token); best < 0 || n > bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return "", &domain.MappingError{Table: TableModel, Token: raw}
	}
	return c.models[best].Value, nil
}

func lookup(m map[string]string, table, token string) (string, error) {
	v, ok := m[token]
	if !ok {
		return "", &domain.MappingError{Table: table, Token: token}
	}
	return v, nil
}
