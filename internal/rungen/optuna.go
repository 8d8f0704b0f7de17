package rungen

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/modelgen"
	"github.com/defilantech/modelsearch/internal/searchconst"
	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// optunaParameterNames is the fixed set of dimensions Optuna is allowed to
// search, per optuna_run_config_generator.py's own optuna_parameter_list.
var optunaParameterNames = []string{"batch_sizes", "instance_group", "concurrency", "request_rate", "max_queue_delay_microseconds"}

// optunaTrial is one sampled/scored point, kept for fitting the next
// proposal distribution.
type optunaTrial struct {
	values map[string]int
	score  float64
	scored bool
}

// Optuna drives a single model (matching the generator it is grounded on,
// which never grew multi-model support) through a from-scratch
// Tree-structured-Parzen-Estimator-style search: after a short random
// startup, each new trial's per-dimension value is drawn from a Gaussian
// fit to the better half of trials seen so far (a deliberate
// simplification of TPE's l(x)/g(x) acquisition ranking, substituting
// gonum's distuv.Normal for optuna.samplers.TPESampler, which has no Go
// binding), clipped and snapped back onto the dimension's valid lattice.
// Trials score by comparing against the default-config baseline
// measurement, matching _calculate_score's default_measurement.compare_measurements.
//
// Grounded on
// original_source/model_analyzer/config/generate/optuna_run_config_generator.py.
type Optuna struct {
	model  *profile.ModelProfileSpec
	params map[string]searchspace.Parameter
	dims   []string // ordered subset of optunaParameterNames present in params

	baseline *measurement.RunConfigMeasurement
	trials   []*optunaTrial
	current  *optunaTrial

	trialNumber     int
	maxTrials       int
	minTrials       int
	bestTrialNumber int
	bestScore       float64

	firstCall bool
	done      bool
}

// NewOptuna builds an Optuna generator over model's search space. totalSpaceSize
// is searchspace.TotalSize(params), maxPctOfSpace/searchconst.OptunaMaxTrials and
// searchconst.OptunaMinTrials bound the trial count per
// _determine_minimum/maximum_number_of_configs_to_search (the percentage-of-
// search-space path, since the explicit-trial-count override fields have no
// equivalent flag wired through this port's config surface).
func NewOptuna(model *profile.ModelProfileSpec, bounds searchspace.RunConfigSearchBounds) (*Optuna, error) {
	params, err := searchspace.Derive(model, bounds)
	if err != nil {
		return nil, err
	}

	o := &Optuna{
		model:     model,
		params:    params,
		firstCall: true,
	}
	for _, name := range optunaParameterNames {
		if _, ok := params[name]; ok {
			o.dims = append(o.dims, name)
		}
	}

	total := searchspace.TotalSize(params)
	maxTrials := total * searchconst.OptunaMaxPctOfSpace / 100
	if maxTrials > searchconst.OptunaMaxTrials {
		maxTrials = searchconst.OptunaMaxTrials
	}
	if maxTrials < 1 {
		maxTrials = 1
	}
	o.maxTrials = maxTrials

	minTrials := searchconst.OptunaMinTrials
	if minTrials > maxTrials {
		minTrials = maxTrials
	}
	o.minTrials = minTrials

	o.bestScore = math.Inf(-1)
	return o, nil
}

// Next returns the default config first (to establish the baseline), then
// one sampled trial config per call until maxTrials is reached or an early
// termination threshold fires.
func (o *Optuna) Next() (RunConfig, bool) {
	if o.firstCall {
		o.firstCall = false
		o.current = nil
		return RunConfig{Variants: []ModelVariant{{ModelName: o.model.ModelName, Combo: modelgen.DefaultConfigParams}}}, true
	}
	if o.done || o.trialNumber >= o.maxTrials {
		return RunConfig{}, false
	}

	o.trialNumber++
	o.current = &optunaTrial{values: o.sampleTrial()}
	rc := RunConfig{
		Variants: []ModelVariant{{ModelName: o.model.ModelName, Combo: o.buildCombo(o.current.values)}},
		Load:     o.currentLoad(),
	}
	return rc, true
}

// SetLastResults records the measurement for the baseline (first call) or
// the most recent trial, scores it, and checks the early-exit condition.
func (o *Optuna) SetLastResults(m *measurement.RunConfigMeasurement) {
	if o.baseline == nil {
		o.baseline = m
		return
	}
	if o.current == nil {
		return
	}

	o.current.scored = true
	o.current.score = o.score(m)
	o.trials = append(o.trials, o.current)

	if o.current.score > o.bestScore {
		o.bestScore = o.current.score
		o.bestTrialNumber = o.trialNumber
	}

	if o.trialNumber >= o.minTrials && o.trialNumber-o.bestTrialNumber >= searchconst.OptunaEarlyExitThreshold {
		o.done = true
	}
}

// score mirrors _calculate_score: how much better m is than the baseline,
// or NoMeasurementScore when the harness produced nothing.
func (o *Optuna) score(m *measurement.RunConfigMeasurement) float64 {
	if m == nil || o.baseline == nil {
		return searchconst.OptunaNoMeasurementScore
	}
	return m.Compare(o.baseline)
}

// sampleTrial draws one candidate value per dimension: uniformly during a
// short random startup, then from a Gaussian fit to the better half of
// scored trials so far.
func (o *Optuna) sampleTrial() map[string]int {
	values := make(map[string]int, len(o.dims))

	scored := scoredTrials(o.trials)
	useRandom := len(scored) < searchconst.OptunaRandomStartupTrials

	for _, name := range o.dims {
		p := o.params[name]
		low, high := dimensionBounds(p)
		if low >= high {
			values[name] = low
			continue
		}

		if useRandom {
			values[name] = low + int(distuv.Uniform{Min: 0, Max: float64(high - low + 1)}.Rand())
			if values[name] > high {
				values[name] = high
			}
			continue
		}

		mean, std := goodGroupStats(scored, name)
		if std <= 0 {
			std = float64(high-low+1) / 4
		}
		n := distuv.Normal{Mu: mean, Sigma: std}
		v := int(math.Round(n.Rand()))
		if v < low {
			v = low
		}
		if v > high {
			v = high
		}
		values[name] = v
	}

	return values
}

func scoredTrials(trials []*optunaTrial) []*optunaTrial {
	out := make([]*optunaTrial, 0, len(trials))
	for _, t := range trials {
		if t.scored {
			out = append(out, t)
		}
	}
	return out
}

// goodGroupStats fits a Gaussian to name's values among the better half
// (by score) of scored trials — a stand-in for TPE's l(x) density.
func goodGroupStats(scored []*optunaTrial, name string) (mean, std float64) {
	if len(scored) == 0 {
		return 0, 0
	}
	sorted := make([]*optunaTrial, len(scored))
	copy(sorted, scored)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	cut := len(sorted) / 2
	if cut < 1 {
		cut = 1
	}
	good := sorted[:cut]

	values := make([]float64, 0, len(good))
	for _, t := range good {
		if v, ok := t.values[name]; ok {
			values = append(values, float64(v))
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	mean = stat.Mean(values, nil)
	if len(values) == 1 {
		return mean, 0
	}
	std = stat.StdDev(values, nil)
	return mean, std
}

// buildCombo realizes a sampled trial's dimension indexes into a param
// combo of dynamic_batching and instance_group settings. It does not
// derive a concurrency value from instance_count and batch_size.
func (o *Optuna) buildCombo(values map[string]int) modelgen.ParamCombo {
	combo := modelgen.ParamCombo{}

	realized := make(map[string]interface{}, len(values))
	for name, idx := range values {
		v, err := o.params[name].Realize(idx)
		if err != nil {
			continue
		}
		realized[name] = v
	}

	if o.model.SupportsDynamicBatching() {
		combo["dynamic_batching"] = modelgen.ParamCombo{}
	}
	if v, ok := realized["max_queue_delay_microseconds"]; ok {
		combo["dynamic_batching"] = modelgen.ParamCombo{"max_queue_delay_microseconds": v}
	}

	if v, ok := realized["instance_group"]; ok {
		kind := "KIND_GPU"
		if o.model.CPUOnly {
			kind = "KIND_CPU"
		}
		combo["instance_group"] = []interface{}{modelgen.ParamCombo{"count": v, "kind": kind}}
	}

	return combo
}

// currentLoad returns the load value for the most recently sampled trial
// (the default call contributes no load, matching the baseline run using
// whatever the served default config already specifies).
func (o *Optuna) currentLoad() int {
	if o.current == nil {
		return 0
	}
	name := "concurrency"
	if _, ok := o.params["request_rate"]; ok {
		name = "request_rate"
	}
	idx, ok := o.current.values[name]
	if !ok {
		return 0
	}
	v, err := o.params[name].Realize(idx)
	if err != nil {
		return 0
	}
	iv, _ := v.(int)
	return iv
}
