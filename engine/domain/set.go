package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ListingSet is an insertion-ordered id → listing mapping. The zero value is
// ready to use. It is not safe for concurrent use.
type ListingSet struct {
	order []string
	byID  map[string]CanonicalListing
}

// Put adds or replaces a listing. Replacing keeps the original position.
func (s *ListingSet) Put(l CanonicalListing) {
	if s.byID == nil {
		s.byID = make(map[string]CanonicalListing)
	}
	if _, ok := s.byID[l.ID]; !ok {
		s.order = append(s.order, l.ID)
	}
	s.byID[l.ID] = l
}

// Get returns the listing stored under id.
func (s *ListingSet) Get(id string) (CanonicalListing, bool) {
	l, ok := s.byID[id]
	return l, ok
}

// Has reports whether id is present.
func (s *ListingSet) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Len is the number of listings.
func (s *ListingSet) Len() int { return len(s.order) }

// IDs returns the ids in insertion order.
func (s *ListingSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// At returns the i-th listing in insertion order.
func (s *ListingSet) At(i int) CanonicalListing {
	return s.byID[s.order[i]]
}

// Listings returns all listings in insertion order.
func (s *ListingSet) Listings() []CanonicalListing {
	out := make([]CanonicalListing, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// MarshalJSON writes a JSON object whose keys follow insertion order.
func (s ListingSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order.
func (s *ListingSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("listing set: expected object, got %v", tok)
	}
	*s = ListingSet{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("listing set: expected key, got %v", tok)
		}
		var l CanonicalListing
		if err := dec.Decode(&l); err != nil {
			return fmt.Errorf("listing set: %s: %w", key, err)
		}
		if l.ID == "" {
			l.ID = key
		}
		s.Put(l)
	}
	_, err = dec.Token()
	return err
}
