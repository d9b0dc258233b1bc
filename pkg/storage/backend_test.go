package storage

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func openTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	s, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "costs.db"))
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSaveAndLoadBatch(t *testing.T) {
	s := openTestBackend(t)

	first, err := s.SaveBatch([]AttributeCost{NewAttributeCost("age", 1.5), NewAttributeCost("city", 2.25)})
	if err != nil {
		t.Fatalf("save first batch: %v", err)
	}
	second, err := s.SaveBatch([]AttributeCost{{Attribute: "zip"}})
	if err != nil {
		t.Fatalf("save second batch: %v", err)
	}
	if first == second || first == "" {
		t.Fatalf("expected distinct batch ids, got %q and %q", first, second)
	}

	all, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 costs, got %d", len(all))
	}
	if all[0].Attribute != "age" || *all[0].Cost != 1.5 {
		t.Errorf("first row: %+v", all[0])
	}
	if all[2].Attribute != "zip" || all[2].Cost != nil {
		t.Errorf("missing cost should load as nil: %+v", all[2])
	}

	batch, err := s.LoadBatch(first)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 costs in first batch, got %d", len(batch))
	}

	if err := s.Truncate(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	all, _ = s.Load()
	if len(all) != 0 {
		t.Fatalf("expected empty store after truncate, got %d", len(all))
	}
}

func TestLaterBatchKeepsEarlierOne(t *testing.T) {
	s := openTestBackend(t)

	first, err := s.SaveBatch([]AttributeCost{NewAttributeCost("age", 1), NewAttributeCost("city", 2)})
	if err != nil {
		t.Fatalf("save first batch: %v", err)
	}
	second, err := s.SaveBatch([]AttributeCost{NewAttributeCost("age", 4)})
	if err != nil {
		t.Fatalf("save second batch: %v", err)
	}

	old, err := s.LoadBatch(first)
	if err != nil {
		t.Fatalf("load first batch: %v", err)
	}
	if len(old) != 2 || *old[0].Cost != 1 {
		t.Fatalf("first batch should be intact, got %+v", old)
	}
	if recent, _ := s.LoadBatch(second); len(recent) != 1 || *recent[0].Cost != 4 {
		t.Fatalf("second batch: %+v", recent)
	}

	all, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 2 || all[0].Attribute != "age" || *all[0].Cost != 4 || *all[1].Cost != 2 {
		t.Fatalf("expected the newest cost per attribute, got %+v", all)
	}
}

func TestValidateCosts(t *testing.T) {
	ok := DefaultCosts([]string{"a", "b", "c", "d"})
	if err := ValidateCosts(ok); err != nil {
		t.Fatalf("default costs should validate: %v", err)
	}

	// two zero costs sum to exactly one
	if err := ValidateCosts([]AttributeCost{NewAttributeCost("a", 0), NewAttributeCost("b", 0)}); err != nil {
		t.Fatalf("sum of one should validate: %v", err)
	}

	tooCheap := []AttributeCost{NewAttributeCost("a", 0), NewAttributeCost("b", 0), NewAttributeCost("c", 0)}
	if err := ValidateCosts(tooCheap); !errors.Is(err, ErrInvalidCost) {
		t.Fatalf("expected probability error, got %v", err)
	}

	if err := ValidateCosts([]AttributeCost{{Attribute: "a"}}); !errors.Is(err, ErrInvalidCost) {
		t.Fatalf("expected missing cost error, got %v", err)
	}
	if err := ValidateCosts([]AttributeCost{NewAttributeCost("a", -0.1)}); !errors.Is(err, ErrInvalidCost) {
		t.Fatalf("expected negative cost error, got %v", err)
	}
}

func TestResolveCostsFallsBackToDefaults(t *testing.T) {
	bad := []AttributeCost{NewAttributeCost("x", 0), NewAttributeCost("y", -1)}
	got, err := ResolveCosts(bad)
	if !errors.Is(err, ErrInvalidCost) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(got) != 2 || got[1].Attribute != "y" || *got[1].Cost != math.Log(2) {
		t.Fatalf("expected uniform defaults, got %+v", got)
	}

	good := []AttributeCost{NewAttributeCost("x", 3)}
	got, err = ResolveCosts(good)
	if err != nil || *got[0].Cost != 3 {
		t.Fatalf("valid costs should pass through: %+v %v", got, err)
	}
}
