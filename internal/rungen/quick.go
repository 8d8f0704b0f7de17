package rungen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/modelgen"
	"github.com/defilantech/modelsearch/internal/searchconst"
	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// dimension is one axis of the coordinate lattice Quick hill-climbs over:
// a single model's search parameter, carrying its own native value bounds
// (Parameter.Realize's domain, not a 0-based lattice offset).
type dimension struct {
	modelName string
	paramName string
	param     searchspace.Parameter
	low, high int
}

func (d dimension) clip(v int) int {
	if v < d.low {
		return d.low
	}
	if v > d.high {
		return d.high
	}
	return v
}

// Coordinate is one point in the lattice, one slot per dimension, in the
// same order as Quick.dims.
type Coordinate []int

func (c Coordinate) key() string {
	var sb strings.Builder
	for i, v := range c {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	return sb.String()
}

func (c Coordinate) equal(o Coordinate) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

func (c Coordinate) l1Distance(o Coordinate) int {
	total := 0
	for i := range c {
		d := c[i] - o[i]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total
}

// coordState is what CoordinateData tracks per visited coordinate.
type coordState struct {
	measured    bool
	measurement *measurement.RunConfigMeasurement
	visits      int
}

// Quick is a coordinate-descent hill climb over the flattened search space
// of every model passed in (composing models included flat, same as
// modelgen.NewForModel's per-model treatment), one shared load axis taken
// from the first model that contributes a concurrency/request_rate
// dimension. A neighborhood of lattice points around the current "home" is
// sampled until enough of it is measured, then home steps to the best
// neighbor found; a step that lands on a worse-than-passing home (after
// home itself has passed once) triggers a step back toward the best
// coordinate seen so far.
//
// Grounded on
// original_source/model_analyzer/config/generate/quick_run_config_generator.py.
// Its supporting types (coordinate.py, coordinate_data.py, neighborhood.py,
// search_config.py) were not present in the retrieved corpus, so the
// neighborhood enumeration (an L1-ball clipped to per-dimension bounds) and
// CoordinateData (a measurement+visit-count map keyed by coordinate) are
// reconstructed here from the generator's own call sites and spec.md's
// description of the algorithm, not transliterated from a source file.
// Per-model combo assembly (instance_group/max_batch_size/dynamic_batching)
// mirrors modelgen's Automatic/Brute combo shape rather than
// base_model_config_generator.py's ModelConfigVariant, since RunConfig here
// carries modelgen.ParamCombo values directly (see rungen.go).
type Quick struct {
	models []*profile.ModelProfileSpec
	dims   []dimension

	loadDimIdx int // index into dims of the shared load axis, or -1

	coordData map[string]*coordState

	home               Coordinate
	coordinateToMeasure Coordinate
	bestCoordinate     Coordinate
	bestMeasurement    *measurement.RunConfigMeasurement
	homeHasPassed      bool
	done               bool

	neighborhood  []Coordinate
	slowMode      bool

	firstCall bool
}

// NewQuick builds a Quick generator over models (composing models included
// flat in the slice, same convention as rungen.NewBruteBinary).
func NewQuick(models []*profile.ModelProfileSpec, bounds searchspace.RunConfigSearchBounds) (*Quick, error) {
	q := &Quick{
		models:     models,
		coordData:  make(map[string]*coordState),
		loadDimIdx: -1,
		firstCall:  true,
	}

	loadAssigned := false
	for _, m := range models {
		params, err := searchspace.Derive(m, bounds)
		if err != nil {
			return nil, fmt.Errorf("rungen: deriving search space for %q: %w", m.ModelName, err)
		}

		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p := params[name]
			if (name == "concurrency" || name == "request_rate") && loadAssigned {
				continue
			}
			low, high := dimensionBounds(p)
			if low == high {
				// Fixed single value: nothing to search, skip the axis
				// entirely rather than wasting a coordinate slot on it.
				continue
			}
			q.dims = append(q.dims, dimension{modelName: m.ModelName, paramName: name, param: p, low: low, high: high})
			if name == "concurrency" || name == "request_rate" {
				q.loadDimIdx = len(q.dims) - 1
				loadAssigned = true
			}
		}
	}

	q.home = q.startingCoordinate()
	q.coordinateToMeasure = q.home
	q.bestCoordinate = q.home
	q.recordVisit(q.home)
	q.neighborhood = q.buildNeighborhood(q.home, searchconst.QuickDefaultRadius)

	return q, nil
}

func dimensionBounds(p searchspace.Parameter) (int, int) {
	switch p.Category {
	case searchspace.CategoryInteger, searchspace.CategoryExponential:
		return p.MinRange, p.MaxRange
	default:
		return 0, p.Count() - 1
	}
}

func (q *Quick) startingCoordinate() Coordinate {
	c := make(Coordinate, len(q.dims))
	for i, d := range q.dims {
		c[i] = d.low
	}
	return c
}

// Next returns the current coordinate-to-measure's RunConfig, or ok=false
// once the search has converged or run out of neighbors to try.
func (q *Quick) Next() (RunConfig, bool) {
	if q.firstCall {
		q.firstCall = false
		return q.buildRunConfig(q.home), true
	}
	if q.done {
		return RunConfig{}, false
	}
	return q.buildRunConfig(q.coordinateToMeasure), true
}

// SetLastResults records the measurement for the coordinate most recently
// returned by Next, updates the running best, then steps the state machine.
func (q *Quick) SetLastResults(m *measurement.RunConfigMeasurement) {
	q.setMeasurement(q.coordinateToMeasure, m)

	if m != nil {
		q.updateBest(q.coordinateToMeasure, m)
		if q.measuringHome() && m.IsPassingConstraints() {
			q.homeHasPassed = true
		}
	}

	q.step()
}

func (q *Quick) measuringHome() bool {
	return q.coordinateToMeasure.equal(q.home)
}

func (q *Quick) setMeasurement(c Coordinate, m *measurement.RunConfigMeasurement) {
	st := q.coordData[c.key()]
	if st == nil {
		st = &coordState{}
		q.coordData[c.key()] = st
	}
	st.measured = true
	st.measurement = m
}

func (q *Quick) measurementAt(c Coordinate) (*measurement.RunConfigMeasurement, bool) {
	st := q.coordData[c.key()]
	if st == nil || !st.measured {
		return nil, false
	}
	return st.measurement, true
}

func (q *Quick) recordVisit(c Coordinate) {
	st := q.coordData[c.key()]
	if st == nil {
		st = &coordState{}
		q.coordData[c.key()] = st
	}
	st.visits++
}

func (q *Quick) visitCount(c Coordinate) int {
	st := q.coordData[c.key()]
	if st == nil {
		return 0
	}
	return st.visits
}

func (q *Quick) updateBest(c Coordinate, m *measurement.RunConfigMeasurement) {
	if isBetterMeasurement(m, q.bestMeasurement) {
		q.bestCoordinate = c
		q.bestMeasurement = m
	}
}

// isBetterMeasurement reports whether candidate should replace best:
// passing beats failing, and among two results in the same pass/fail
// class the existing comparator (constraint tightness, then weighted
// score) decides.
func isBetterMeasurement(candidate, best *measurement.RunConfigMeasurement) bool {
	if candidate == nil {
		return false
	}
	if best == nil {
		return true
	}
	bestPass := best.IsPassingConstraints()
	candPass := candidate.IsPassingConstraints()
	switch {
	case !bestPass && candPass:
		return true
	case bestPass && !candPass:
		return false
	case !bestPass && !candPass:
		score, ok := best.CompareConstraints(candidate)
		return ok && score > 0
	default:
		return candidate.IsBetterThan(best)
	}
}

// step decides the next coordinateToMeasure, possibly ending the search.
func (q *Quick) step() {
	if q.shouldStepBack() {
		q.takeStepBack()
		return
	}
	if q.enoughNeighborsInitialized() {
		q.takeStep()
		return
	}
	q.pickCoordinateToInitialize()
}

// shouldStepBack fires right after measuring home itself came back missing,
// or failing after home had previously passed once (the sticky bit).
func (q *Quick) shouldStepBack() bool {
	if !q.measuringHome() {
		return false
	}
	m, ok := q.measurementAt(q.home)
	if !ok {
		return true
	}
	if !m.IsPassingConstraints() && q.homeHasPassed {
		return true
	}
	return false
}

func (q *Quick) enoughNeighborsInitialized() bool {
	need := searchconst.QuickMinInitNeighbors
	if need > len(q.neighborhood) {
		need = len(q.neighborhood)
	}
	count := 0
	for _, c := range q.neighborhood {
		if _, ok := q.measurementAt(c); ok {
			count++
		}
	}
	return count >= need
}

func (q *Quick) pickCoordinateToInitialize() {
	for _, c := range q.neighborhood {
		if _, ok := q.measurementAt(c); !ok {
			q.coordinateToMeasure = c
			return
		}
	}
	q.done = true
}

func (q *Quick) takeStep() {
	newHome := q.determineNewHome()
	q.determineIfDone(newHome)
	q.home = newHome
	q.coordinateToMeasure = newHome
	q.recreateNeighborhood(false)
}

func (q *Quick) takeStepBack() {
	newHome := q.nearestNeighborTo(q.bestCoordinate)
	if newHome.equal(q.home) {
		q.done = true
	}
	q.home = newHome
	q.coordinateToMeasure = newHome
	q.recreateNeighborhood(true)
}

// determineNewHome picks the best-measured coordinate in the current
// neighborhood (home included), defaulting to home when nothing beats it.
func (q *Quick) determineNewHome() Coordinate {
	best := q.home
	var bestM *measurement.RunConfigMeasurement
	if m, ok := q.measurementAt(q.home); ok {
		bestM = m
	}
	for _, c := range q.neighborhood {
		m, ok := q.measurementAt(c)
		if !ok {
			continue
		}
		if isBetterMeasurement(m, bestM) {
			best = c
			bestM = m
		}
	}
	return best
}

func (q *Quick) nearestNeighborTo(target Coordinate) Coordinate {
	best := q.home
	bestDist := q.home.l1Distance(target)
	for _, c := range q.neighborhood {
		if d := c.l1Distance(target); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func (q *Quick) determineIfDone(newHome Coordinate) {
	if newHome.equal(q.home) {
		q.done = true
	}
	if q.visitCount(newHome) >= searchconst.QuickMaxHomeVisits {
		q.done = true
	}
}

func (q *Quick) recreateNeighborhood(forceSlowMode bool) {
	radius := searchconst.QuickDefaultRadius
	if forceSlowMode {
		radius = searchconst.QuickSlowModeRadius
	}
	q.slowMode = forceSlowMode
	q.neighborhood = q.buildNeighborhood(q.home, radius)
	q.recordVisit(q.home)
}

// buildNeighborhood enumerates every lattice point within L1 distance
// radius of home, clipped to each dimension's bounds, home itself
// included.
func (q *Quick) buildNeighborhood(home Coordinate, radius int) []Coordinate {
	if len(q.dims) == 0 {
		return []Coordinate{home}
	}

	seen := make(map[string]bool)
	var out []Coordinate
	coord := make(Coordinate, len(q.dims))

	var rec func(i, budget int)
	rec = func(i, budget int) {
		if i == len(q.dims) {
			k := coord.key()
			if !seen[k] {
				seen[k] = true
				cp := make(Coordinate, len(coord))
				copy(cp, coord)
				out = append(out, cp)
			}
			return
		}
		d := q.dims[i]
		for delta := -budget; delta <= budget; delta++ {
			v := home[i] + delta
			if v < d.low || v > d.high {
				continue
			}
			coord[i] = v
			used := delta
			if used < 0 {
				used = -used
			}
			rec(i+1, budget-used)
		}
	}
	rec(0, radius)
	return out
}

// buildRunConfig realizes coordinate values per dimension and assembles one
// ParamCombo per model plus the shared load value.
func (q *Quick) buildRunConfig(c Coordinate) RunConfig {
	perModel := make(map[string]map[string]interface{}, len(q.models))
	for _, m := range q.models {
		perModel[m.ModelName] = make(map[string]interface{})
	}

	load := 0
	for i, d := range q.dims {
		v, err := d.param.Realize(d.clip(c[i]))
		if err != nil {
			continue
		}
		if i == q.loadDimIdx {
			if iv, ok := v.(int); ok {
				load = iv
			}
			continue
		}
		perModel[d.modelName][d.paramName] = v
	}

	variants := make([]ModelVariant, len(q.models))
	for i, m := range q.models {
		variants[i] = ModelVariant{ModelName: m.ModelName, Combo: buildQuickCombo(m, perModel[m.ModelName])}
	}

	return RunConfig{Variants: variants, Load: load}
}

func buildQuickCombo(model *profile.ModelProfileSpec, values map[string]interface{}) modelgen.ParamCombo {
	combo := modelgen.ParamCombo{}

	kind := "KIND_GPU"
	if model.CPUOnly {
		kind = "KIND_CPU"
	}
	if v, ok := values["instance_group"]; ok {
		combo["instance_group"] = []interface{}{modelgen.ParamCombo{"count": v, "kind": kind}}
	}
	if v, ok := values["max_batch_size"]; ok {
		combo["max_batch_size"] = v
	}
	if v, ok := values["max_queue_delay_microseconds"]; ok {
		combo["dynamic_batching"] = modelgen.ParamCombo{"max_queue_delay_microseconds": v}
	} else if model.SupportsDynamicBatching() {
		combo["dynamic_batching"] = modelgen.ParamCombo{}
	}
	return combo
}
