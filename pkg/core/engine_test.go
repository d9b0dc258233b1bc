package core

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"modl/pkg/common"
	"modl/pkg/config"
	"modl/pkg/core/bins"
	"modl/pkg/model"
	"modl/pkg/storage"
)

func testConfig(storePath string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Path: storePath},
		Search: config.SearchConfig{
			Model:          "multinomial",
			ExactThreshold: 64,
		},
		Histogram: config.HistogramConfig{
			MaxHierarchyLevel:     8,
			MinCentralBinExponent: -64,
			MaxCentralBinExponent: 64,
			MantissaBits:          10,
		},
		System: config.SystemConfig{Workers: 2},
	}
}

func newTestEngine(t *testing.T, storePath string) *Engine {
	t.Helper()
	e, err := NewEngine(testConfig(storePath))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func clusterAtoms() []common.Atom {
	return []common.Atom{
		{Frequency: 20, LowerBound: 0, UpperBound: 1},
		{Frequency: 20, LowerBound: 1, UpperBound: 2},
		{Frequency: 0, LowerBound: 2, UpperBound: 14},
		{Frequency: 20, LowerBound: 14, UpperBound: 15},
		{Frequency: 20, LowerBound: 15, UpperBound: 16},
	}
}

func TestNewEngineRejectsModel(t *testing.T) {
	for _, name := range []string{"histogram", "bogus"} {
		cfg := testConfig("")
		cfg.Search.Model = name
		if _, err := NewEngine(cfg); err == nil {
			t.Errorf("model %q: expected error", name)
		}
	}
}

func TestEngineGroup(t *testing.T) {
	e := newTestEngine(t, "")

	res, err := e.Group([]int{50, 30, 10, 5, 5})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if res.Grouping == nil || res.Grouping.GroupCount != 5 {
		t.Fatalf("expected 5 groups, got %+v", res.Grouping)
	}
	if res.Partition.K() != 5 {
		t.Fatalf("expected 5 parts, got %d", res.Partition.K())
	}
	if res.Cost != res.Partition.Cost {
		t.Errorf("partition cost %g != result cost %g", res.Partition.Cost, res.Cost)
	}
	if diff := res.Cost - res.ModelCost - res.DataCost; diff > model.Epsilon || diff < -model.Epsilon {
		t.Errorf("cost %g does not decompose into %g + %g", res.Cost, res.ModelCost, res.DataCost)
	}
	if res.NullCost <= 0 {
		t.Errorf("expected positive null cost, got %g", res.NullCost)
	}

	res, err = e.Group([]int{1000000, 100, 100, 100, 100, 100, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if !res.Grouping.Garbage || res.Partition.K() != 7 {
		t.Fatalf("expected 7 groups with garbage, got %+v", res.Grouping)
	}
	if res.Partition.Parts[6].Frequency != 20 {
		t.Errorf("garbage group should hold the 20 rare values, got %d", res.Partition.Parts[6].Frequency)
	}
}

func TestEngineGroupErrors(t *testing.T) {
	e := newTestEngine(t, "")

	if _, err := e.Group(nil); !errors.Is(err, common.ErrEmptyTable) {
		t.Errorf("expected empty table error, got %v", err)
	}
	if _, err := e.Group([]int{1, 5}); !errors.Is(err, common.ErrUnsortedTable) {
		t.Errorf("expected unsorted error, got %v", err)
	}
	if _, err := e.Group([]int{5, 0}); !errors.Is(err, common.ErrNegativeFrequency) {
		t.Errorf("expected error on zero count, got %v", err)
	}
	if e.stats.FailureCount != 3 {
		t.Errorf("expected 3 failures recorded, got %d", e.stats.FailureCount)
	}
}

func TestEngineDiscretize(t *testing.T) {
	e := newTestEngine(t, "")

	res, err := e.Discretize(clusterAtoms())
	if err != nil {
		t.Fatalf("discretize: %v", err)
	}
	cuts := res.Partition.Cuts()
	if len(cuts) != 2 || cuts[0] != 1 || cuts[1] != 2 {
		t.Fatalf("expected cuts [1 2], got %v", cuts)
	}
	if res.Level <= 0 {
		t.Errorf("clustered data should compress, level %g", res.Level)
	}

	// the greedy path must agree on this table
	e.conf.Search.ExactThreshold = 0
	greedy, err := e.Discretize(clusterAtoms())
	if err != nil {
		t.Fatalf("discretize: %v", err)
	}
	if greedy.Partition.K() != 3 {
		t.Errorf("greedy: expected 3 intervals, got %d", greedy.Partition.K())
	}

	if _, err := e.Discretize([]common.Atom{{Frequency: 3}, {Frequency: 4}}); !errors.Is(err, ErrPrecondition) {
		t.Errorf("expected precondition error on unbounded atoms, got %v", err)
	}
	unsorted := []common.Atom{{Frequency: 1, LowerBound: 5, UpperBound: 6}, {Frequency: 1, LowerBound: 0, UpperBound: 1}}
	if _, err := e.Discretize(unsorted); !errors.Is(err, common.ErrUnsortedTable) {
		t.Errorf("expected unsorted error, got %v", err)
	}
}

func TestEngineHistogram(t *testing.T) {
	e := newTestEngine(t, "")

	res, err := e.Histogram(clusteredValues())
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}
	if res.Partition.K() < 2 || res.HierarchyLevel < 1 {
		t.Fatalf("expected a multi-interval histogram, got %d intervals at level %d", res.Partition.K(), res.HierarchyLevel)
	}
	if res.NullCost != model.ReferenceNullCost(100, 10) {
		t.Errorf("null cost: got %g", res.NullCost)
	}
	if len(res.Trace) == 0 {
		t.Error("expected a granularity trace")
	}

	if _, err := e.Histogram(nil); !errors.Is(err, bins.ErrNoValue) {
		t.Errorf("expected no value error, got %v", err)
	}
}

func TestEngineHistogramWideDomain(t *testing.T) {
	e := newTestEngine(t, "")

	res, err := e.Histogram([]float64{-1e308, 0, 1, 2, 1e308})
	if err != nil {
		t.Fatalf("histogram of finite values: %v", err)
	}
	if math.IsInf(res.Cost, 0) || math.IsNaN(res.Cost) {
		t.Fatalf("cost should be finite, got %g", res.Cost)
	}
	for _, step := range res.Trace {
		if math.IsInf(step.Cost, 0) || math.IsNaN(step.Cost) {
			t.Errorf("level %d: cost %g", step.Level, step.Cost)
		}
	}
	if _, err := json.Marshal(res); err != nil {
		t.Errorf("result should encode: %v", err)
	}
}

func TestEngineBatch(t *testing.T) {
	e := newTestEngine(t, "")

	reqs := []Request{
		{Name: "color", Op: OpGroup, Counts: []int{50, 30, 10, 5, 5}},
		{Name: "age", Op: OpDiscretize, Atoms: clusterAtoms()},
		{Name: "income", Op: OpHistogram, Values: clusteredValues()},
	}
	results, err := e.Batch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	for i, r := range results {
		if r.Name != reqs[i].Name {
			t.Errorf("result %d: name %q, want %q", i, r.Name, reqs[i].Name)
		}
	}
	if results[0].Model != "multinomial" || results[1].Model != "histogram" {
		t.Errorf("unexpected models %q %q", results[0].Model, results[1].Model)
	}

	reqs = append(reqs, Request{Name: "broken", Op: "sort"})
	if _, err := e.Batch(context.Background(), reqs); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("expected unknown op error, got %v", err)
	}
}

func TestEngineCostStore(t *testing.T) {
	e := newTestEngine(t, filepath.Join(t.TempDir(), "data", "costs.db"))

	batchID, costs, err := e.ExportCosts(context.Background(), []Request{
		{Name: "color", Op: OpGroup, Counts: []int{50, 30, 10, 5, 5}},
		{Name: "age", Op: OpDiscretize, Atoms: clusterAtoms()},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(costs) != 2 {
		t.Fatalf("expected 2 costs, got %d", len(costs))
	}
	if err := storage.ValidateCosts(costs); err != nil {
		t.Errorf("exported costs should validate: %v", err)
	}

	loaded, err := e.LoadCosts(batchID)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Attribute != "age" {
		t.Fatalf("unexpected loaded costs %+v", loaded)
	}

	// exported costs import back unchanged
	reimported, roundTrip, err := e.ImportCosts(costs)
	if err != nil {
		t.Fatalf("reimport exported costs: %v", err)
	}
	if reimported == "" || reimported == batchID {
		t.Errorf("expected a new batch id, got %q", reimported)
	}
	for i := range costs {
		if roundTrip[i].Attribute != costs[i].Attribute || *roundTrip[i].Cost != *costs[i].Cost {
			t.Errorf("cost %d changed: %+v -> %+v", i, costs[i], roundTrip[i])
		}
	}
	if again, _ := e.LoadCosts(batchID); len(again) != 2 {
		t.Errorf("earlier batch should survive a reimport, got %+v", again)
	}

	bad := []storage.AttributeCost{storage.NewAttributeCost("color", 0), storage.NewAttributeCost("age", 0), storage.NewAttributeCost("zip", 0)}
	rejected, resolved, err := e.ImportCosts(bad)
	if !errors.Is(err, storage.ErrInvalidCost) {
		t.Fatalf("expected invalid cost error, got %v", err)
	}
	if rejected != "" || resolved == nil || *resolved[0].Cost == 0 {
		t.Fatalf("expected unsaved default costs, got %q %+v", rejected, resolved)
	}
	if got := e.Stats()["rejected_imports"]; got != uint64(1) {
		t.Errorf("rejected imports: got %v", got)
	}
	if _, _, err := e.ImportCosts(nil); !errors.Is(err, ErrNoCosts) {
		t.Errorf("expected ErrNoCosts, got %v", err)
	}

	// the rejected import left the validated costs in place
	all, err := e.LoadCosts("")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 stored costs, got %d (%v)", len(all), err)
	}
	for _, c := range all {
		if *c.Cost == *resolved[0].Cost {
			t.Errorf("default cost persisted for %q", c.Attribute)
		}
	}
	if err := e.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
}

func TestEngineWithoutStore(t *testing.T) {
	e := newTestEngine(t, "")

	if _, err := e.LoadCosts(""); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
	batchID, costs, err := e.ExportCosts(context.Background(), []Request{{Name: "x", Op: OpGroup, Counts: []int{3, 2}}})
	if err != nil || batchID != "" || len(costs) != 1 {
		t.Errorf("export without store: %q %v %v", batchID, costs, err)
	}
	if e.Stats()["store_enabled"] != false {
		t.Error("store should be reported disabled")
	}
}
