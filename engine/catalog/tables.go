package catalog

import "fmt"

// Canonical values. Every one of them must be reachable from some source
// token in the default tables.
var (
	CanonicalManufacturers = []string{"Hyundai", "KIA", "Genesis", "Chevrolet"}
	CanonicalFuels         = []string{"Дизель", "Бензин", "Бензин и газ"}
)

// DefaultTables returns a fresh copy of the built-in translation tables.
func DefaultTables() Tables {
	return Tables{
		Manufacturers: []Entry{
			{"현대", "Hyundai"},
			{"기아", "KIA"},
			{"제네시스", "Genesis"},
			{"쉐보레", "Chevrolet"},
		},
		Models: []Entry{
			{"그랜저", "Grandeur"},
			{"아반떼", "Avante"},
			{"소나타", "Sonata"},
			{"산타페", "Santa Fe"},
			{"스타렉스", "Starex"},
			{"투싼", "Tucson"},
			{"카니발", "Carnival"},
			{"K5", "K5"},
			{"K7", "K7"},
			{"쏘렌토", "Sorento"},
			{"레이", "Ray"},
			{"모닝", "Morning"},
			{"EQ900", "EQ900"},
			{"G70", "G70"},
			{"G80", "G80"},
			{"G90", "G90"},
			{"GV70", "GV70"},
			{"GV80", "GV80"},
			{"GV90", "GV90"},
			{"스파크", "Spark"},
			{"말리부", "Malibu"},
			{"트랙스", "Trax"},
			{"크루즈", "Cruze"},
			{"올란도", "Orlando"},
			{"트레일블레이저", "Trailblazer"},
		},
		Fuels: []Entry{
			{"디젤", "Дизель"},
			{"가솔린", "Бензин"},
			{"가솔린+LPG", "Бензин и газ"},
		},
		Parts: []Entry{
			{"FRONT_DOOR_LEFT", "левая передняя дверь"},
			{"FRONT_DOOR_RIGHT", "правая передняя дверь"},
			{"BACK_DOOR_LEFT", "левая задняя дверь"},
			{"BACK_DOOR_RIGHT", "правая задняя дверь"},
			{"FRONT_FENDER_LEFT", "левое переднее крыло"},
			{"FRONT_FENDER_RIGHT", "правое переднее крыло"},
			{"BACK_FENDER_LEFT", "левое заднее крыло"},
			{"BACK_FENDER_RIGHT", "правое заднее крыло"},
			{"TRUNK_LID", "крышка багажника"},
			{"HOOD", "капот"},
		},
	}
}

var defaultCatalog = mustDefault()

func mustDefault() *Catalog {
	t := DefaultTables()
	if err := checkCoverage(t); err != nil {
		panic(err)
	}
	c, err := New(t)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the process-wide catalog built from DefaultTables.
func Default() *Catalog { return defaultCatalog }

func checkCoverage(t Tables) error {
	if err := covers("manufacturer", t.Manufacturers, CanonicalManufacturers); err != nil {
		return err
	}
	return covers("fuel", t.Fuels, CanonicalFuels)
}

func covers(table string, entries []Entry, canonical []string) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Value] = true
	}
	for _, v := range canonical {
		if !seen[v] {
			return fmt.Errorf("catalog: %s %q has no source token", table, v)
		}
	}
	for v := range seen {
		if !contains(canonical, v) {
			return fmt.Errorf("catalog: %s value %q is not canonical", table, v)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
