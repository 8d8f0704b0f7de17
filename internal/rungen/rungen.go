// Package rungen implements the Run-Config Generators (component I): the
// top-level strategies an Orchestrator pulls candidates from, each
// combining per-model config variants (component H) with an inference
// load value (component G) into one concurrent RunConfig to measure.
//
// Grounded on
// original_source/model_analyzer/config/generate/brute_plus_binary_parameter_search_run_config_generator.py,
// quick_run_config_generator.py, and optuna_run_config_generator.py, whose
// shared ConfigGeneratorInterface.get_configs/set_last_results protocol is
// mirrored here as Generator.
package rungen

import (
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/modelgen"
)

// ModelVariant is one model's contribution to a RunConfig: the base model
// name and the config-parameter combo applied to it.
type ModelVariant struct {
	ModelName string
	Combo     modelgen.ParamCombo

	// VariantName is left empty by every generator here; the Orchestrator
	// fills it in via internal/variant.Manager.GetVariantName immediately
	// before materializing and measuring the config, so the same name is
	// used for the model repo write, the harness's MCM, and the Result
	// Store key.
	VariantName string
}

// RunConfig is one concurrent profiling candidate: a config variant for
// every model measured together (one entry for a single-model profile,
// more for an ensemble/BLS and its composing models), plus the harness
// load (concurrency or request-rate value) applied uniformly across the
// top-level models in the run.
type RunConfig struct {
	Variants []ModelVariant
	Load     int

	// BatchSize is the harness-side request batch size (parameters.
	// batch_sizes), independent of any model's own max_batch_size combo
	// value. Zero means unset/not swept.
	BatchSize int
}

// Clone returns a deep-enough copy of rc for phase-2 mutation (changing
// only Load), so the binary search phase never mutates a phase-1 config
// still referenced elsewhere.
func (rc RunConfig) Clone() RunConfig {
	variants := make([]ModelVariant, len(rc.Variants))
	copy(variants, rc.Variants)
	return RunConfig{Variants: variants, Load: rc.Load, BatchSize: rc.BatchSize}
}

// VariantNames returns the current Variants' VariantName fields, in order.
func (rc RunConfig) VariantNames() []string {
	names := make([]string, len(rc.Variants))
	for i, v := range rc.Variants {
		names[i] = v.VariantName
	}
	return names
}

// Generator is the pull-based protocol every run-config generator
// implements: the caller repeatedly calls Next to get a RunConfig to
// measure, runs it through the harness, and reports the result via
// SetLastResults (nil on a missing measurement) before calling Next again.
type Generator interface {
	// Next returns the next RunConfig to measure, or ok=false when the
	// generator is exhausted.
	Next() (RunConfig, bool)

	// SetLastResults reports the measurement for the most recently
	// returned RunConfig, or nil if the harness call produced nothing.
	SetLastResults(m *measurement.RunConfigMeasurement)
}
