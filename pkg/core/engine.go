package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"modl/pkg/common"
	"modl/pkg/config"
	"modl/pkg/core/bins"
	"modl/pkg/model"
	"modl/pkg/monitor"
	"modl/pkg/storage"
)

var (
	ErrPrecondition = errors.New("precondition violated")
	ErrNoStore      = errors.New("cost store disabled")
	ErrUnknownOp    = errors.New("unknown operation")
	ErrNoCosts      = errors.New("no attribute cost to import")
)

// Op names a search served by the engine.
type Op string

const (
	OpGroup      Op = "group"
	OpDiscretize Op = "discretize"
	OpHistogram  Op = "histogram"
)

// Request is one search in a batch. Which input field is read depends on Op.
type Request struct {
	Name   string        `json:"name"`
	Op     Op            `json:"op"`
	Counts []int         `json:"counts,omitempty"`
	Atoms  []common.Atom `json:"atoms,omitempty"`
	Values []float64     `json:"values,omitempty"`
}

// Result is the outcome of one search.
type Result struct {
	Name      string           `json:"name,omitempty"`
	Model     string           `json:"model"`
	Partition common.Partition `json:"partition"`
	Cost      float64          `json:"cost"`
	ModelCost float64          `json:"model_cost"`
	DataCost  float64          `json:"data_cost"`
	NullCost  float64          `json:"null_cost"`
	Level     float64          `json:"level"`

	Grouping       *Grouping    `json:"grouping,omitempty"`
	HierarchyLevel int          `json:"hierarchy_level,omitempty"`
	Trace          []LevelTrace `json:"trace,omitempty"`
}

// Engine serves partition searches under one configuration.
type Engine struct {
	conf    *config.Config
	kind    model.Kind
	backend storage.Backend
	stats   *monitor.SearchStats
}

func NewEngine(cfg *config.Config) (*Engine, error) {
	kind, err := model.ParseKind(cfg.Search.Model)
	if err != nil {
		return nil, err
	}
	if kind == model.Histogram {
		return nil, fmt.Errorf("search model %q is reserved for histograms", cfg.Search.Model)
	}

	e := &Engine{
		conf:  cfg,
		kind:  kind,
		stats: monitor.NewSearchStats(),
	}

	if cfg.Storage.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		backend, err := storage.NewSQLiteBackend(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		e.backend = backend
		log.Printf("[MODL] Cost store opened at %s", cfg.Storage.Path)
	}
	log.Printf("[MODL] Engine ready (model=%s, fixed-size bins=%v)", kind, cfg.Histogram.EnforceFixedSizeBins)
	return e, nil
}

// guard turns a precondition panic into an error and records the search.
func (e *Engine) guard(name string, fn func() (Result, error)) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPrecondition, r)
		}
		if err != nil {
			e.stats.RecordFailure(name)
			return
		}
		e.stats.RecordSearch(name, res.Partition.K(), time.Since(start))
	}()
	return fn()
}

func finish(res *Result, m model.CostModel) {
	parts := res.Partition.Parts
	res.Cost = m.PartitionGlobalCost(parts)
	res.ModelCost = model.GlobalModelCost(m, parts)
	res.DataCost = model.GlobalDataCost(m, parts)
	if res.NullCost > 0 {
		res.Level = 1 - res.Cost/res.NullCost
	}
}

// Group chooses the groups of a categorical variable from its value counts,
// sorted by descending frequency.
func (e *Engine) Group(counts []int) (Result, error) {
	return e.guard(e.kind.String(), func() (Result, error) {
		ft, err := common.NewFrequencyTableFromCounts(counts)
		if err != nil {
			return Result{}, err
		}
		if ft.AtomAt(ft.AtomCount()-1).Frequency == 0 {
			return Result{}, fmt.Errorf("grouping needs positive counts: %w", common.ErrNegativeFrequency)
		}

		g := HierarchicalGroupCount(ft, e.conf.Search.MaxGroups)
		e.stats.RecordEvaluations(evaluations(g))

		p := model.ParamsForTable(ft, model.Params{
			HyperParametersCost: e.conf.Search.HyperParametersCost,
			HierarchyLevel:      len(g.Levels),
			MaxPartCount:        e.conf.Search.MaxGroups,
		})
		m, err := model.New(e.kind, p)
		if err != nil {
			return Result{}, err
		}

		res := Result{Model: e.kind.String(), Grouping: &g, Partition: GroupPartition(ft, g.GroupCount)}
		res.NullCost = m.PartitionGlobalCost(GroupPartition(ft, 1).Parts)
		finish(&res, m)
		res.Partition.Cost = res.Cost
		return res, nil
	})
}

func evaluations(g Grouping) int {
	n := 0
	for _, l := range g.Levels {
		n += l.Evaluated
	}
	return n
}

// Discretize partitions value-ordered bounded atoms with the histogram cost
// model. Small tables are solved exactly, larger ones by optimized greedy merge.
func (e *Engine) Discretize(atoms []common.Atom) (Result, error) {
	return e.guard(model.Histogram.String(), func() (Result, error) {
		ft, err := common.NewFrequencyTable(common.OrderAscendingValue, atoms)
		if err != nil {
			return Result{}, err
		}
		if ft.TotalFrequency() == 0 {
			return Result{}, fmt.Errorf("discretization needs instances: %w", ErrPrecondition)
		}

		minLength := math.Inf(1)
		for _, a := range atoms {
			if a.Bounded() {
				minLength = math.Min(minLength, a.UpperBound-a.LowerBound)
			}
		}
		if math.IsInf(minLength, 1) {
			return Result{}, fmt.Errorf("discretization needs bounded atoms: %w", ErrPrecondition)
		}

		lower, upper := ft.AtomAt(0).LowerBound, ft.AtomAt(ft.AtomCount()-1).UpperBound
		p := e.histogramBase()
		p.InstanceCount = ft.TotalFrequency()
		p.PartileCount = ft.AtomCount()
		p.MinBinLength = minLength
		p.MaxPartCount = e.conf.Search.MaxIntervals
		p.CentralBinExponent = clampInt(math.Ilogb(upper-lower), p.MinCentralBinExponent, p.MaxCentralBinExponent)
		p.HyperParametersCost = boundCost(lower) + boundCost(upper) + model.DomainBoundsMantissaCost(e.conf.Histogram.MantissaBits)
		m, err := model.New(model.Histogram, p)
		if err != nil {
			return Result{}, err
		}

		var partition common.Partition
		if ft.AtomCount() <= e.conf.Search.ExactThreshold {
			partition = OptimalPartition(m, ft, e.conf.Search.MaxIntervals)
		} else {
			partition = OptimizedGreedyMerge(m, ft, e.conf.Search.MaxIntervals)
		}

		res := Result{Model: model.Histogram.String(), Partition: partition}
		res.NullCost = m.PartitionGlobalCost([]common.Part{common.MergePart(ft, 0, ft.AtomCount()-1)})
		finish(&res, m)
		return res, nil
	})
}

func (e *Engine) histogramBase() model.Params {
	h := e.conf.Histogram
	return model.Params{
		MinCentralBinExponent: h.MinCentralBinExponent,
		MaxCentralBinExponent: h.MaxCentralBinExponent,
		EnforceFixedSizeBins:  h.EnforceFixedSizeBins,
	}
}

// Histogram builds the best floating-point histogram of raw values over all hierarchy levels.
func (e *Engine) Histogram(values []float64) (Result, error) {
	return e.guard(model.Histogram.String(), func() (Result, error) {
		b, err := bins.NewBuilder(values, e.conf.Histogram.MaxHierarchyLevel)
		if err != nil {
			return Result{}, err
		}
		base := HistogramParams(b, e.histogramBase(), e.conf.Histogram.MantissaBits)
		h, err := OptimizeGranularity(b, base, e.conf.Search.MaxIntervals)
		if err != nil {
			return Result{}, err
		}
		m, err := model.New(model.Histogram, h.Params)
		if err != nil {
			return Result{}, err
		}
		log.Printf("[Search] Histogram of %d values: level %d, %d intervals", len(values), h.Level, h.Partition.K())

		res := Result{
			Model:          model.Histogram.String(),
			Partition:      h.Partition,
			HierarchyLevel: h.Level,
			Trace:          h.Trace,
			NullCost:       model.ReferenceNullCost(len(values), e.conf.Histogram.MantissaBits),
		}
		finish(&res, m)
		return res, nil
	})
}

// Run dispatches one request.
func (e *Engine) Run(req Request) (Result, error) {
	var (
		res Result
		err error
	)
	switch req.Op {
	case OpGroup:
		res, err = e.Group(req.Counts)
	case OpDiscretize:
		res, err = e.Discretize(req.Atoms)
	case OpHistogram:
		res, err = e.Histogram(req.Values)
	default:
		return Result{}, fmt.Errorf("%q: %w", req.Op, ErrUnknownOp)
	}
	res.Name = req.Name
	if err != nil {
		return res, fmt.Errorf("%s %q: %w", req.Op, req.Name, err)
	}
	return res, nil
}

// Batch runs independent searches concurrently, at most System.Workers at a
// time. Results keep the order of the requests.
func (e *Engine) Batch(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	if e.conf.System.Workers > 0 {
		g.SetLimit(e.conf.System.Workers)
	}
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Run(req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExportCosts derives one construction cost per request, log(n) plus the model
// cost of its best partition, and persists them as a batch.
func (e *Engine) ExportCosts(ctx context.Context, reqs []Request) (string, []storage.AttributeCost, error) {
	results, err := e.Batch(ctx, reqs)
	if err != nil {
		return "", nil, err
	}
	base := math.Log(float64(len(reqs)))
	costs := make([]storage.AttributeCost, len(results))
	for i, r := range results {
		costs[i] = storage.NewAttributeCost(r.Name, base+r.ModelCost)
	}
	if err := storage.ValidateCosts(costs); err != nil {
		return "", nil, err
	}
	if e.backend == nil {
		return "", costs, nil
	}
	batchID, err := e.backend.SaveBatch(costs)
	if err != nil {
		return "", nil, err
	}
	log.Printf("[Store] Exported %d attribute costs (batch %s)", len(costs), batchID)
	return batchID, costs, nil
}

// ImportCosts validates imported costs and persists them under a new batch.
// Invalid costs are not persisted: the uniform defaults are returned in their
// place together with the validation error.
func (e *Engine) ImportCosts(costs []storage.AttributeCost) (string, []storage.AttributeCost, error) {
	if len(costs) == 0 {
		return "", nil, ErrNoCosts
	}
	resolved, verr := storage.ResolveCosts(costs)
	if verr != nil {
		e.stats.RecordRejectedImport()
		log.Printf("[Store] Import rejected, falling back to defaults: %v", verr)
		return "", resolved, verr
	}
	if e.backend == nil {
		return "", resolved, nil
	}
	batchID, err := e.backend.SaveBatch(resolved)
	if err != nil {
		return "", nil, err
	}
	log.Printf("[Store] Imported %d attribute costs (batch %s)", len(resolved), batchID)
	return batchID, resolved, nil
}

// LoadCosts returns the persisted costs, or those of one batch when batchID is set.
func (e *Engine) LoadCosts(batchID string) ([]storage.AttributeCost, error) {
	if e.backend == nil {
		return nil, ErrNoStore
	}
	if batchID != "" {
		return e.backend.LoadBatch(batchID)
	}
	return e.backend.Load()
}

func (e *Engine) Reset() error {
	if e.backend == nil {
		return ErrNoStore
	}
	return e.backend.Truncate()
}

func (e *Engine) Close() {
	if e.backend != nil {
		e.backend.Close()
	}
}

func (e *Engine) Stats() map[string]interface{} {
	stats := e.stats.Snapshot()
	stats["model"] = e.kind.String()
	stats["workers"] = e.conf.System.Workers
	stats["fixed_size_bins"] = e.conf.Histogram.EnforceFixedSizeBins
	stats["store_enabled"] = e.backend != nil
	return stats
}
