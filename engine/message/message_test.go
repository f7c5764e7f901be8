package message

import (
	"strings"
	"testing"

	"github.com/WessleyAI/carfeed/engine/domain"
)

func listing(accidents int, parts ...string) domain.CanonicalListing {
	return domain.NewCanonicalListing(domain.ListingFields{
		ID:                 "1001",
		Manufacturer:       "Hyundai",
		Model:              "Avante",
		Price:              15000000,
		Year:               2018,
		FuelType:           "Бензин",
		Mileage:            50000,
		URL:                "http://x",
		AccidentCount:      accidents,
		AccidentCost:       300000,
		OtherAccidentCost:  0,
		ReplacedParts:      parts,
		DiagnosisNarrative: "Информация об официальной диагностике от Encar отсутствует",
	}, nil)
}

func TestFormat_Plain(t *testing.T) {
	short, full := New("", "").Format(listing(0))

	wantShort := "*Марка:* Hyundai\n" +
		"*Модель:* Avante\n" +
		"*Год выпуска:* 2018\n" +
		"*Пробег:* 50000 км\n" +
		"*Топливо:* Бензин\n" +
		"*Цена:* 15000000 ₩\n" +
		"*Состояние:* Отличное\n" +
		"[Ссылка на автомобиль](http://x)\n"
	if short != wantShort {
		t.Errorf("short:\n%s\nwant:\n%s", short, wantShort)
	}

	wantFull := "*Марка:* Hyundai\n" +
		"*Модель:* Avante\n" +
		"*Год выпуска:* 2018\n" +
		"*Пробег:* 50000 км\n" +
		"*Топливо:* Бензин\n" +
		"*Цена:* 15000000 ₩\n" +
		"*Количество аварий:* 0\n" +
		"*Страховая история (ущерб нанесённый автомобилю):* 300000 ₩\n" +
		"*Страховая история (ущерб нанесённый другим автомобилям):* 0 ₩\n" +
		"*Диагностика:* Информация об официальной диагностике от Encar отсутствует\n" +
		"[Ссылка на автомобиль](http://x)\n"
	if full != wantFull {
		t.Errorf("full:\n%s\nwant:\n%s", full, wantFull)
	}
}

func TestFormat_DamageCondition(t *testing.T) {
	f := New("", "")
	for _, l := range []domain.CanonicalListing{listing(1), listing(0, "капот")} {
		short, full := f.Format(l)
		if !strings.Contains(short, "*Состояние:* Присутствуют повреждения\n") {
			t.Errorf("short = %s", short)
		}
		if strings.Contains(full, LabelCondition) {
			t.Error("full message must not carry condition")
		}
	}
}

func TestFormat_MarkdownV2Escaping(t *testing.T) {
	l := listing(0)
	l.Model = "Santa Fe (TM)"
	l.URL = "https://www.encar.com/dc/dc_cardetailview.do?carid=1_(2)"
	short, full := NewMarkdownV2().Format(l)

	if !strings.Contains(short, `*Модель:* Santa Fe \(TM\)`) {
		t.Errorf("value not escaped: %s", short)
	}
	if !strings.Contains(full, `*Страховая история \(ущерб нанесённый автомобилю\):*`) {
		t.Errorf("label not escaped: %s", full)
	}
	wantLink := `[Ссылка на автомобиль](https://www.encar.com/dc/dc_cardetailview.do?carid=1_(2\))` + "\n"
	if !strings.HasSuffix(short, wantLink) || !strings.HasSuffix(full, wantLink) {
		t.Errorf("link = %q", short[strings.LastIndex(short, "["):])
	}
	if !strings.HasPrefix(short, "*Марка:* Hyundai\n") {
		t.Errorf("bold markers must stay unescaped: %s", short)
	}
}

func TestFormat_ImplementsRenderer(t *testing.T) {
	var r domain.Renderer = NewMarkdownV2()
	f := listingFields()
	l := domain.NewCanonicalListing(f, r)
	if l.ShortMessage == "" || l.FullMessage == "" {
		t.Fatal("messages not attached")
	}
}

func listingFields() domain.ListingFields {
	return domain.ListingFields{ID: "1", Manufacturer: "KIA", Model: "K5", Year: 2020, URL: "http://x"}
}

func TestReplacer_Dedupes(t *testing.T) {
	if got := replacer("..!").Replace("a.b!"); got != `a\.b\!` {
		t.Errorf("got %q", got)
	}
}
