package normalize

import (
	"fmt"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/encar"
)

// Inspection converts the raw inspection document. A nil document yields
// nil, nil. A missing item status is recorded as not reported; a missing
// title anywhere makes the whole document malformed.
func Inspection(raw *encar.Inspection) (*domain.Inspection, error) {
	if raw == nil {
		return nil, nil
	}
	out := &domain.Inspection{}
	for gi, inner := range raw.Inners {
		name, ok := title(inner.Type)
		if !ok {
			return nil, malformed("inner group %d has no title", gi)
		}
		group := domain.InspectionGroup{Name: name, Items: make([]domain.InspectionItem, 0, len(inner.Children))}
		for ci, child := range inner.Children {
			itemName, ok := title(child.Type)
			if !ok {
				return nil, malformed("inner %q item %d has no title", name, ci)
			}
			status, reported := title(child.StatusType)
			group.Items = append(group.Items, domain.InspectionItem{Name: itemName, Status: status, Reported: reported})
		}
		out.Inners = append(out.Inners, group)
	}
	for oi, outer := range raw.Outers {
		name, ok := title(outer.Type)
		if !ok {
			return nil, malformed("outer panel %d has no title", oi)
		}
		if len(outer.StatusTypes) == 0 {
			return nil, malformed("outer panel %q has no status", name)
		}
		status, ok := title(&outer.StatusTypes[0])
		if !ok {
			return nil, malformed("outer panel %q status has no title", name)
		}
		out.Outers = append(out.Outers, domain.OuterPanel{Name: name, Status: status})
	}
	return out, nil
}

func title(t *encar.Title) (string, bool) {
	if t == nil || t.Title == nil {
		return "", false
	}
	return *t.Title, true
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrMalformedInspection}, args...)...)
}
