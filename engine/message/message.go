// Package message renders canonical listings into the short and full
// display texts shown to end users.
package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// Telegram MarkdownV2 reserved characters.
const (
	MarkdownV2Escape     = "_*[]()~`>#+-=|{}.!\\"
	MarkdownV2LinkEscape = ")\\"
)

// Field labels.
const (
	LabelManufacturer = "Марка"
	LabelModel        = "Модель"
	LabelYear         = "Год выпуска"
	LabelMileage      = "Пробег"
	LabelFuel         = "Топливо"
	LabelPrice        = "Цена"
	LabelCondition    = "Состояние"
	LabelAccidents    = "Количество аварий"
	LabelOwnDamage    = "Страховая история (ущерб нанесённый автомобилю)"
	LabelOtherDamage  = "Страховая история (ущерб нанесённый другим автомобилям)"
	LabelDiagnosis    = "Диагностика"
	LinkText          = "Ссылка на автомобиль"
)

const (
	conditionExcellent = "Отличное"
	conditionDamaged   = "Присутствуют повреждения"
	unitKilometres     = "км"
	unitWon            = "₩"
)

// Formatter renders listings with a configurable escape policy.
type Formatter struct {
	text *strings.Replacer
	link *strings.Replacer
}

// New returns a Formatter escaping literal text with the characters in
// escape and link targets with the characters in linkEscape. Each escaped
// character is prefixed with a backslash.
func New(escape, linkEscape string) *Formatter {
	return &Formatter{text: replacer(escape), link: replacer(linkEscape)}
}

// NewMarkdownV2 returns a Formatter for Telegram MarkdownV2.
func NewMarkdownV2() *Formatter { return New(MarkdownV2Escape, MarkdownV2LinkEscape) }

func replacer(set string) *strings.Replacer {
	var pairs []string
	seen := map[rune]bool{}
	for _, r := range set {
		if seen[r] {
			continue
		}
		seen[r] = true
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// Format returns the short and full messages for l.
func (f *Formatter) Format(l domain.CanonicalListing) (string, string) {
	var head strings.Builder
	f.field(&head, LabelManufacturer, l.Manufacturer)
	f.field(&head, LabelModel, l.Model)
	f.field(&head, LabelYear, strconv.Itoa(l.Year))
	f.field(&head, LabelMileage, fmt.Sprintf("%d %s", l.Mileage, unitKilometres))
	f.field(&head, LabelFuel, l.FuelType)
	f.field(&head, LabelPrice, fmt.Sprintf("%d %s", l.Price, unitWon))

	link := fmt.Sprintf("[%s](%s)\n", f.text.Replace(LinkText), f.link.Replace(l.URL))

	var short, full strings.Builder
	short.WriteString(head.String())
	condition := conditionDamaged
	if l.Excellent() {
		condition = conditionExcellent
	}
	f.field(&short, LabelCondition, condition)
	short.WriteString(link)

	full.WriteString(head.String())
	f.field(&full, LabelAccidents, strconv.Itoa(l.AccidentCount))
	f.field(&full, LabelOwnDamage, fmt.Sprintf("%d %s", l.AccidentCost, unitWon))
	f.field(&full, LabelOtherDamage, fmt.Sprintf("%d %s", l.OtherAccidentCost, unitWon))
	f.field(&full, LabelDiagnosis, l.DiagnosisNarrative)
	full.WriteString(link)

	return short.String(), full.String()
}

func (f *Formatter) field(b *strings.Builder, label, value string) {
	b.WriteByte('*')
	b.WriteString(f.text.Replace(label))
	b.WriteString(":* ")
	b.WriteString(f.text.Replace(value))
	b.WriteByte('\n')
}
