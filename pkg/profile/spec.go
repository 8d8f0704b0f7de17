/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package profile holds the user-facing, YAML-loadable description of what
// to search over: one ModelProfileSpec per model, frozen after load.
//
// Grounded on
// original_source/model_analyzer/config/generate/model_profile_spec.py for
// field shape (parameters/model_config_parameters/default config) and on
// the teacher's api/v1alpha1/model_types.go for the struct-tag/doc-comment
// convention (yaml tags here in place of json+kubebuilder, since this is a
// flat file, not a CRD).
package profile

import (
	"fmt"
)

// InstanceGroup describes one entry of model_config_parameters.instance_group:
// an explicit device kind plus the list of instance counts to sweep.
type InstanceGroup struct {
	// Kind is "KIND_CPU" or "KIND_GPU". Empty leaves the device kind
	// unspecified.
	Kind string `yaml:"kind,omitempty"`
	// Count is the enumerated list of instance counts to try for this kind.
	// When the first entry's Count is empty, search-space derivation sweeps
	// the run-config-search min/max instance count instead.
	Count []int `yaml:"count,omitempty"`
}

// DynamicBatching holds the dynamic_batching.max_queue_delay_microseconds
// sweep list, when the user wants to search it explicitly.
type DynamicBatching struct {
	MaxQueueDelayMicroseconds []int `yaml:"max_queue_delay_microseconds,omitempty"`
}

// ModelConfigParameters is the model_config_parameters tree: the knobs that
// get written into the served model's own config rather than passed to the
// load generator.
type ModelConfigParameters struct {
	InstanceGroup   []InstanceGroup  `yaml:"instance_group,omitempty"`
	MaxBatchSize    []int            `yaml:"max_batch_size,omitempty"`
	DynamicBatching *DynamicBatching `yaml:"dynamic_batching,omitempty"`
}

// Parameters is the parameters map: batch_sizes plus exactly one of
// concurrency or request_rate.
type Parameters struct {
	BatchSizes  []int `yaml:"batch_sizes,omitempty"`
	Concurrency []int `yaml:"concurrency,omitempty"`
	RequestRate []int `yaml:"request_rate,omitempty"`
}

// Constraint is a single {min?, max?} bound on one record tag.
type Constraint struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// ModelProfileSpec is the immutable per-model input to the search engine:
// everything the Search-Space Parameters and Constraint Evaluator
// components need, loaded once at startup and never mutated.
type ModelProfileSpec struct {
	// ModelName is the base model name under which variants are minted.
	ModelName string `yaml:"model_name"`

	// CPUOnly marks this model for CPU-only profiling. The CLI wires the
	// internal/telemetry CPU collector instead of the GPU one when every
	// model in the profile set is CPUOnly.
	CPUOnly bool `yaml:"cpu_only,omitempty"`

	// Objectives are the tags to optimize for, each with a weight in
	// [0,1]; normalized to sum to 1 at load time.
	Objectives map[string]float64 `yaml:"objectives,omitempty"`

	// Constraints are per-model min/max bounds keyed by record tag.
	Constraints map[string]Constraint `yaml:"constraints,omitempty"`

	// ModelWeighting is this model's relative importance when profiled
	// concurrently with other models in the same run config; normalized
	// to sum to 1 across all models in a profile run.
	ModelWeighting float64 `yaml:"model_weighting,omitempty"`

	// PerfAnalyzerFlags are opaque flags forwarded to the harness.
	PerfAnalyzerFlags map[string]string `yaml:"perf_analyzer_flags,omitempty"`

	// Parameters is the runtime-load / batch-size sweep configuration.
	Parameters Parameters `yaml:"parameters,omitempty"`

	// ModelConfigParameters is the served-config sweep configuration.
	ModelConfigParameters *ModelConfigParameters `yaml:"model_config_parameters,omitempty"`

	// ComposingModels names the sub-models of an ensemble/BLS model, each
	// itself searched as a nested model within the same run config.
	ComposingModels []string `yaml:"composing_models,omitempty"`

	// defaultConfig is read once from the model repository at startup;
	// not user-authored, so it carries no yaml tag.
	defaultConfig map[string]interface{}

	// isComposing is set by the loader once the full profile set is known:
	// true if this spec's ModelName appears in another spec's
	// ComposingModels.
	isComposing bool
}

// SetComposing marks this spec as a composing (sub-)model of an ensemble or
// BLS model. Called by the loader after all specs in a profile set are
// parsed.
func (m *ModelProfileSpec) SetComposing(v bool) {
	m.isComposing = v
}

// SetDefaultConfig attaches the served default configuration read at
// startup. The CLI calls it once per model before search begins.
func (m *ModelProfileSpec) SetDefaultConfig(cfg map[string]interface{}) {
	m.defaultConfig = cfg
}

// DefaultConfig returns the model's served default configuration document.
func (m *ModelProfileSpec) DefaultConfig() map[string]interface{} {
	return m.defaultConfig
}

// SupportsBatching reports whether the default config declares a non-zero
// max_batch_size.
func (m *ModelProfileSpec) SupportsBatching() bool {
	v, ok := m.defaultConfig["max_batch_size"]
	if !ok {
		return false
	}
	switch n := v.(type) {
	case int:
		return n != 0
	case float64:
		return n != 0
	default:
		return false
	}
}

// IsEnsemble reports whether the default config declares ensemble
// scheduling.
func (m *ModelProfileSpec) IsEnsemble() bool {
	_, ok := m.defaultConfig["ensemble_scheduling"]
	return ok
}

// SupportsDynamicBatching reports whether the default config already
// declares a dynamic_batching section.
func (m *ModelProfileSpec) SupportsDynamicBatching() bool {
	_, ok := m.defaultConfig["dynamic_batching"]
	return ok
}

// IsComposing reports whether this spec is itself one of another model's
// ComposingModels.
func (m *ModelProfileSpec) IsComposing() bool {
	return m.isComposing
}

// IsRequestRateSpecified reports whether this model's parameters populate
// request_rate rather than concurrency.
func (m *ModelProfileSpec) IsRequestRateSpecified() bool {
	return len(m.Parameters.RequestRate) > 0
}

// Validate enforces the concurrency-XOR-request_rate invariant and
// normalizes Objectives to sum to 1.
func (m *ModelProfileSpec) Validate() error {
	hasConcurrency := len(m.Parameters.Concurrency) > 0
	hasRequestRate := len(m.Parameters.RequestRate) > 0
	if hasConcurrency && hasRequestRate {
		return fmt.Errorf("profile %q: concurrency and request_rate are mutually exclusive", m.ModelName)
	}

	normalizeWeights(m.Objectives)
	return nil
}

// normalizeWeights scales w in place so its values sum to 1, leaving an
// empty or all-zero map untouched.
func normalizeWeights(w map[string]float64) {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for k, v := range w {
		w[k] = v / sum
	}
}
