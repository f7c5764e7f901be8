package encar

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// Number is a raw numeric field. The API sends some numbers as JSON strings
// and others as JSON numbers; both decode to their literal text.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
	default:
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return fmt.Errorf("encar: number field: %w", err)
		}
		*n = Number(num.String())
	}
	return nil
}

func (n Number) String() string { return string(n) }

// Filters selects the listings a search returns.
type Filters struct {
	Manufacturer string
	ModelGroup   string
	YearFrom     int
	YearTo       int
}

// ListingStub is one search-result row, before enrichment.
type ListingStub struct {
	ID           string
	Manufacturer string
	Model        string
	Badge        string
	FuelType     string
	Price        Number
	Year         Number
	Mileage      Number
	SellType     string
	Photos       []string
	URL          string
}

// Rental reports whether the stub is a rental offer.
func (s ListingStub) Rental() bool { return s.SellType == sellTypeRental }

const sellTypeRental = "렌트"

type searchResponse struct {
	Count         int         `json:"Count"`
	SearchResults []searchRow `json:"SearchResults"`
}

type searchRow struct {
	ID           Number `json:"Id"`
	Manufacturer string `json:"Manufacturer"`
	Model        string `json:"Model"`
	Badge        string `json:"Badge"`
	FuelType     string `json:"FuelType"`
	Price        Number `json:"Price"`
	Year         Number `json:"Year"`
	Mileage      Number `json:"Mileage"`
	SellType     string `json:"SellType"`
	Photos       []struct {
		Location string `json:"location"`
	} `json:"Photos"`
}

// Profile is the ownership and accident record.
type Profile struct {
	MyAccidentCnt     int   `json:"myAccidentCnt"`
	OtherAccidentCnt  int   `json:"otherAccidentCnt"`
	MyAccidentCost    int64 `json:"myAccidentCost"`
	OtherAccidentCost int64 `json:"otherAccidentCost"`
}

// DiagnosisItem is one line of the official diagnosis.
type DiagnosisItem struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	Result     string `json:"result"`
	ResultCode string `json:"resultCode"`
}

// Diagnosis is the official diagnosis document.
type Diagnosis struct {
	Items []DiagnosisItem `json:"items"`
}

// Title is the {"title": ...} wrapper the inspection document uses everywhere.
type Title struct {
	Title *string `json:"title"`
}

// InspectionChild is an inner inspection line.
type InspectionChild struct {
	Type       *Title `json:"type"`
	StatusType *Title `json:"statusType"`
}

// InspectionInner is a group of inner lines.
type InspectionInner struct {
	Type     *Title            `json:"type"`
	Children []InspectionChild `json:"children"`
}

// InspectionOuter is one body panel.
type InspectionOuter struct {
	Type        *Title  `json:"type"`
	StatusTypes []Title `json:"statusTypes"`
}

// Inspection is the raw panel-inspection document. Pointer fields keep
// "absent" apart from "empty".
type Inspection struct {
	Inners []InspectionInner `json:"inners"`
	Outers []InspectionOuter `json:"outers"`
}

// Description is the seller's free-text description document.
type Description struct {
	Contents *struct {
		Text string `json:"text"`
	} `json:"contents"`
}

// DetailAggregate is a stub plus whichever detail documents could be fetched.
type DetailAggregate struct {
	Stub        ListingStub
	Profile     *Profile
	Diagnosis   *Diagnosis
	Inspection  *Inspection
	Description *Description
	// Errors lists the documents that degraded to absent.
	Errors []*domain.TransientFetchError
}

// Degraded reports whether any detail document failed to load.
func (a DetailAggregate) Degraded() bool { return len(a.Errors) > 0 }
