// Package diagnosis turns the official diagnosis codes into a replaced-parts
// list and a one-sentence narrative.
package diagnosis

import (
	"strings"

	"github.com/WessleyAI/carfeed/engine/catalog"
	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/engine/encar"
)

// Items carrying inspector free text rather than a code.
const (
	CheckerComment    = "CHECKER_COMMENT"
	OuterPanelComment = "OUTER_PANEL_COMMENT"
)

const (
	codeNormal      = "NORMAL"
	codeReplacement = "REPLACEMENT"
)

// Narrative sentences.
const (
	NarrativeAbsent    = "Информация об официальной диагностике от Encar отсутствует"
	NarrativeExcellent = "Официальная диагностика от Encar показала что автомобиль в отличном состоянии, без замененных деталей"
	narrativeReplaced  = "Официальная диагностика от Encar показала что были заменены следующие детали: "
)

// Result is the outcome of analyzing one diagnosis document.
type Result struct {
	ReplacedParts     []string
	Narrative         string
	CheckerComment    string
	OuterPanelComment string
}

// Analyzer interprets diagnosis documents against a part-name table.
type Analyzer struct {
	parts *catalog.Catalog
}

// NewAnalyzer returns an Analyzer. A nil catalog uses catalog.Default.
func NewAnalyzer(c *catalog.Catalog) *Analyzer {
	if c == nil {
		c = catalog.Default()
	}
	return &Analyzer{parts: c}
}

// Analyze interprets doc. A nil doc is "no diagnosis available" and is not
// an error. Replaced parts keep document order.
func (a *Analyzer) Analyze(doc *encar.Diagnosis) (Result, error) {
	if doc == nil {
		return Result{Narrative: NarrativeAbsent}, nil
	}
	var res Result
	for _, item := range doc.Items {
		switch item.Name {
		case CheckerComment:
			res.CheckerComment = item.Result
			continue
		case OuterPanelComment:
			res.OuterPanelComment = item.Result
			continue
		}
		code := item.ResultCode
		if code == "" {
			code = item.Code
		}
		switch {
		case strings.EqualFold(code, codeNormal):
		case strings.EqualFold(code, codeReplacement):
			part, err := a.parts.Part(item.Name)
			if err != nil {
				return Result{}, err
			}
			res.ReplacedParts = append(res.ReplacedParts, part)
		default:
			return Result{}, &domain.UnrecognizedDiagnosisCode{Item: item.Name, Code: code}
		}
	}
	res.Narrative = Narrative(res.ReplacedParts)
	return res, nil
}

// Narrative renders the sentence for a present document.
func Narrative(replaced []string) string {
	if len(replaced) == 0 {
		return NarrativeExcellent
	}
	return narrativeReplaced + strings.Join(replaced, ", ")
}
