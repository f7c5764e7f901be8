// Package domain defines the canonical listing model produced by the pipeline
// and the error taxonomy every stage reports with.
package domain

// Condition is the derived overall state of a listing.
type Condition string

const (
	ConditionExcellent     Condition = "excellent"
	ConditionDamagePresent Condition = "damage present"
)

// DeriveCondition is excellent only with no own accidents and no replaced parts.
func DeriveCondition(accidentCount int, replacedParts []string) Condition {
	if accidentCount == 0 && len(replacedParts) == 0 {
		return ConditionExcellent
	}
	return ConditionDamagePresent
}

// InspectionItem is one inner inspection line. Reported is false when the
// source carried no status for the item.
type InspectionItem struct {
	Name     string `json:"name"`
	Status   string `json:"status,omitempty"`
	Reported bool   `json:"reported"`
}

// InspectionGroup is a named group of inner inspection items (engine, gearbox, ...).
type InspectionGroup struct {
	Name  string           `json:"name"`
	Items []InspectionItem `json:"items"`
}

// OuterPanel is the status of one body panel.
type OuterPanel struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Inspection is the normalized panel-inspection report.
type Inspection struct {
	Inners []InspectionGroup `json:"inners,omitempty"`
	Outers []OuterPanel      `json:"outers,omitempty"`
}

// CanonicalListing is a fully normalized listing. Values are built once by
// NewCanonicalListing and treated as read-only afterwards.
type CanonicalListing struct {
	ID                 string      `json:"id"`
	Manufacturer       string      `json:"manufacturer"`
	Model              string      `json:"model"`
	Price              int64       `json:"price"`
	Year               int         `json:"year"`
	FuelType           string      `json:"fuel_type"`
	Mileage            int         `json:"mileage"`
	URL                string      `json:"url"`
	AccidentCount      int         `json:"accident_count"`
	OtherAccidentCount int         `json:"other_accident_count"`
	AccidentCost       int64       `json:"accident_cost"`
	OtherAccidentCost  int64       `json:"other_accident_cost"`
	ReplacedParts      []string    `json:"replaced_parts"`
	DiagnosisNarrative string      `json:"diagnosis_narrative"`
	Condition          Condition   `json:"condition"`
	Inspection         *Inspection `json:"inspection,omitempty"`
	Description        string      `json:"description,omitempty"`
	CheckerComment     string      `json:"checker_comment,omitempty"`
	OuterPanelComment  string      `json:"outer_panel_comment,omitempty"`
	ShortMessage       string      `json:"short_answer_msg"`
	FullMessage        string      `json:"full_answer_msg"`
}

// ListingFields is everything a CanonicalListing is derived from, minus the
// display strings which are rendered from the result.
type ListingFields struct {
	ID                 string
	Manufacturer       string
	Model              string
	Price              int64
	Year               int
	FuelType           string
	Mileage            int
	URL                string
	AccidentCount      int
	OtherAccidentCount int
	AccidentCost       int64
	OtherAccidentCost  int64
	ReplacedParts      []string
	DiagnosisNarrative string
	Inspection         *Inspection
	Description        string
	CheckerComment     string
	OuterPanelComment  string
}

// Renderer produces the short and full display strings for a listing.
type Renderer interface {
	Format(l CanonicalListing) (short, full string)
}

// NewCanonicalListing derives the condition, renders the display strings and
// returns the finished listing. ReplacedParts is copied so later changes to
// the caller's slice cannot leak in.
func NewCanonicalListing(f ListingFields, r Renderer) CanonicalListing {
	parts := make([]string, len(f.ReplacedParts))
	copy(parts, f.ReplacedParts)

	l := CanonicalListing{
		ID:                 f.ID,
		Manufacturer:       f.Manufacturer,
		Model:              f.Model,
		Price:              f.Price,
		Year:               f.Year,
		FuelType:           f.FuelType,
		Mileage:            f.Mileage,
		URL:                f.URL,
		AccidentCount:      f.AccidentCount,
		OtherAccidentCount: f.OtherAccidentCount,
		AccidentCost:       f.AccidentCost,
		OtherAccidentCost:  f.OtherAccidentCost,
		ReplacedParts:      parts,
		DiagnosisNarrative: f.DiagnosisNarrative,
		Condition:          DeriveCondition(f.AccidentCount, parts),
		Inspection:         f.Inspection,
		Description:        f.Description,
		CheckerComment:     f.CheckerComment,
		OuterPanelComment:  f.OuterPanelComment,
	}
	if r != nil {
		l.ShortMessage, l.FullMessage = r.Format(l)
	}
	return l
}

// Excellent reports whether the listing is in excellent condition.
func (l CanonicalListing) Excellent() bool {
	return l.Condition == ConditionExcellent
}
