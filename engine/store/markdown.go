package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// MarkdownColumns are the table headers, one per canonical field.
var MarkdownColumns = []string{
	"id", "manufacturer", "model", "price", "year", "fuel_type", "mileage", "url",
	"accident_count", "other_accident_count", "accident_cost", "other_accident_cost",
	"replaced_parts", "diagnosis_narrative", "condition", "description",
	"checker_comment", "outer_panel_comment",
	"short_answer_msg", "full_answer_msg",
}

// MarkdownTable renders the final mapping as a Markdown table file.
type MarkdownTable struct {
	Path string
}

// Finalize writes the table atomically.
func (m MarkdownTable) Finalize(_ context.Context, set *domain.ListingSet) error {
	return writeAtomic(m.Path, []byte(RenderMarkdown(set)))
}

// RenderMarkdown returns the table text: a header row, a separator row, and
// one row per listing in set order.
func RenderMarkdown(set *domain.ListingSet) string {
	var b strings.Builder
	writeRow(&b, MarkdownColumns)
	seps := make([]string, len(MarkdownColumns))
	for i, h := range MarkdownColumns {
		seps[i] = strings.Repeat("-", len(h))
	}
	writeRow(&b, seps)
	for _, l := range set.Listings() {
		writeRow(&b, markdownCells(l))
	}
	return b.String()
}

func markdownCells(l domain.CanonicalListing) []string {
	return []string{
		l.ID, l.Manufacturer, l.Model,
		strconv.FormatInt(l.Price, 10), strconv.Itoa(l.Year), l.FuelType, strconv.Itoa(l.Mileage), l.URL,
		strconv.Itoa(l.AccidentCount), strconv.Itoa(l.OtherAccidentCount),
		strconv.FormatInt(l.AccidentCost, 10), strconv.FormatInt(l.OtherAccidentCost, 10),
		strings.Join(l.ReplacedParts, ", "), l.DiagnosisNarrative, string(l.Condition), l.Description,
		l.CheckerComment, l.OuterPanelComment,
		l.ShortMessage, l.FullMessage,
	}
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteByte(' ')
		b.WriteString(cellEscaper.Replace(c))
		b.WriteString(" |")
	}
	b.WriteByte('\n')
}
