package fn

import (
	"errors"
	"strconv"
	"testing"
)

func TestResult(t *testing.T) {
	if v, err := Ok(42).Unwrap(); err != nil || v != 42 {
		t.Fatalf("Ok: got %d, %v", v, err)
	}
	boom := errors.New("boom")
	r := Err[int](boom)
	if !r.IsErr() || r.Error() != boom {
		t.Fatalf("Err: got %v", r.Error())
	}
	if Err[int](nil).IsErr() {
		t.Fatal("Err(nil) should be a success")
	}
}

func TestErrfWraps(t *testing.T) {
	base := errors.New("base")
	if err := Errf[int]("ctx: %w", base).Error(); !errors.Is(err, base) || err.Error() != "ctx: base" {
		t.Fatalf("got %v", err)
	}
}

func TestFromPair(t *testing.T) {
	if v, err := FromPair(strconv.Atoi("12")).Unwrap(); err != nil || v != 12 {
		t.Fatalf("got %d, %v", v, err)
	}
	if !FromPair(strconv.Atoi("nope")).IsErr() {
		t.Fatal("expected failure")
	}
}

func TestFilterAndUniqueBy(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(even) != 2 || even[0] != 2 || even[1] != 4 {
		t.Fatalf("Filter: %v", even)
	}

	type kv struct{ k, v string }
	got := UniqueBy([]kv{{"a", "1"}, {"b", "2"}, {"a", "3"}}, func(e kv) string { return e.k })
	if len(got) != 2 || got[0].v != "1" || got[1].k != "b" {
		t.Fatalf("UniqueBy: %v", got)
	}
}
