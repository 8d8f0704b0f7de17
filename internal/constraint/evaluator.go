// Package constraint implements the Constraint Evaluator (component E):
// per-model (and optional global-default) min/max bounds over record tags,
// with a pass/fail check and a failure-distance metric used to rank
// configurations that all fail.
//
// Grounded on
// original_source/model_analyzer/result/constraint_manager.py, with
// `compare_constraints`'s contract taken from
// run_config_measurement.py's method of the same name.
package constraint

import "fmt"

// Bound is a single {min?, max?} constraint on one record tag.
type Bound struct {
	Min    float64
	HasMin bool
	Max    float64
	HasMax bool
}

// Set is the {tag -> Bound} constraints for one model.
type Set map[string]Bound

// Evaluator holds per-model constraint sets plus an optional global
// default applied to models that declare none of their own, and the
// latency-budget override used to resolve the tighter-bound-wins policy
// between a profile's per-model perf_latency_p99 bound and a run-wide
// latency budget.
type Evaluator struct {
	perModel      map[string]Set
	global        Set
	latencyBudget float64
	hasLatencyBudget bool
}

// NewEvaluator builds an Evaluator from per-model constraint sets and an
// optional global default set (pass nil for none).
func NewEvaluator(perModel map[string]Set, global Set) *Evaluator {
	return &Evaluator{perModel: perModel, global: global}
}

// SetLatencyBudget installs a run-wide latency budget (milliseconds) on
// perf_latency_p99. If a model's own constraint set also bounds
// perf_latency_p99, the tighter (lower) max wins.
func (e *Evaluator) SetLatencyBudget(ms float64) {
	e.latencyBudget = ms
	e.hasLatencyBudget = true
}

// constraintsFor resolves the effective constraint set for a model: its
// own set if declared, else the global default, with the latency budget
// folded in per the tighter-wins policy.
func (e *Evaluator) constraintsFor(modelName string) Set {
	set, ok := e.perModel[modelName]
	if !ok {
		set = e.global
	}
	return e.withLatencyBudget(set)
}

func (e *Evaluator) withLatencyBudget(set Set) Set {
	if !e.hasLatencyBudget {
		return set
	}
	merged := make(Set, len(set)+1)
	for k, v := range set {
		merged[k] = v
	}
	b := merged["perf_latency_p99"]
	if !b.HasMax || e.latencyBudget < b.Max {
		b.Max = e.latencyBudget
		b.HasMax = true
	}
	merged["perf_latency_p99"] = b
	return merged
}

// Metric is the minimal shape the evaluator needs from a measured value:
// tag and numeric value. internal/measurement's MCM/RCM types satisfy
// this directly via their per-tag record accessors.
type Metric struct {
	Tag   string
	Value float64
}

// ModelMetrics is one model's measured metrics within an RCM, keyed by
// model name for Satisfies/FailurePercentage.
type ModelMetrics map[string][]Metric

// Satisfies reports whether every model's metrics respect their
// constraints. A model with no applicable constraint set always passes.
func (e *Evaluator) Satisfies(data ModelMetrics) bool {
	for modelName, metrics := range data {
		set := e.constraintsFor(modelName)
		if len(set) == 0 {
			continue
		}
		for _, m := range metrics {
			bound, ok := set[m.Tag]
			if !ok {
				continue
			}
			if failurePercentage(m.Value, bound) > 0 {
				return false
			}
		}
	}
	return true
}

// FailurePercentage sums, across every model and every violated bound,
// the fractional distance from the bound, scaled ×100.
func (e *Evaluator) FailurePercentage(data ModelMetrics) float64 {
	var total float64
	for modelName, metrics := range data {
		set := e.constraintsFor(modelName)
		if len(set) == 0 {
			continue
		}
		for _, m := range metrics {
			bound, ok := set[m.Tag]
			if !ok {
				continue
			}
			total += failurePercentage(m.Value, bound)
		}
	}
	return total * 100
}

// failurePercentage returns the fractional overshoot of value past bound,
// or 0 if value satisfies bound.
func failurePercentage(value float64, bound Bound) float64 {
	if bound.HasMin && value < bound.Min {
		return (bound.Min - value) / bound.Min
	}
	if bound.HasMax && value > bound.Max {
		return (value - bound.Max) / bound.Max
	}
	return 0
}

// Comparable is the minimal interface CompareConstraints needs from an
// RCM: its pass/fail state and failure data, supplied by the caller
// (internal/measurement) rather than imported here to avoid a dependency
// cycle (measurement depends on constraint, not the reverse).
type Comparable struct {
	Passing bool
	Data    ModelMetrics
}

// CompareConstraints returns (a.failure - b.failure)/100 when both fail,
// or ok=false when either passes — the caller should fall back to regular
// score comparison in that case.
func (e *Evaluator) CompareConstraints(a, b Comparable) (score float64, ok bool) {
	if a.Passing || b.Passing {
		return 0, false
	}
	selfFailing := e.FailurePercentage(a.Data)
	otherFailing := e.FailurePercentage(b.Data)
	return (selfFailing - otherFailing) / 100, true
}

// Validate rejects malformed bounds (min > max) at profile-load time.
func Validate(set Set) error {
	for tag, b := range set {
		if b.HasMin && b.HasMax && b.Min > b.Max {
			return fmt.Errorf("constraint: tag %q has min %v greater than max %v", tag, b.Min, b.Max)
		}
	}
	return nil
}
