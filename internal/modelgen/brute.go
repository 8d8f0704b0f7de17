package modelgen

import (
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// Brute generates every model config combination named explicitly by a
// model's model_config_parameters (or just the default config, when
// search is disabled or default_only is set), pre-computing the full
// [param combo][max batch size] grid up front.
//
// Grounded on
// original_source/model_analyzer/config/generate/manual_model_config_generator.py.
type Brute struct {
	base

	configs     [][]ParamCombo // configs[comboIndex][maxBatchSizeIndex]
	configIndex int
	mbsIndex    int
}

// NewBrute builds a Brute generator for model. searchDisabled selects the
// "just the default config" fallback used when model_config_parameters is
// absent and search has been turned off entirely.
func NewBrute(model *profile.ModelProfileSpec, defaultOnly, earlyExitEnable, searchDisabled bool) *Brute {
	b := &Brute{base: newBase(model.ModelName, defaultOnly, earlyExitEnable)}
	b.configs = b.buildConfigs(model, searchDisabled)
	return b
}

func (b *Brute) buildConfigs(model *profile.ModelProfileSpec, searchDisabled bool) [][]ParamCombo {
	if b.defaultOnly {
		return [][]ParamCombo{{DefaultConfigParams}}
	}

	params := model.ModelConfigParameters
	if params == nil {
		if searchDisabled {
			return [][]ParamCombo{{DefaultConfigParams}}
		}
		// Automatic search would normally take over in this case; Brute
		// is only ever constructed when explicit parameters exist or
		// search is disabled, per Factory's routing.
		return [][]ParamCombo{{DefaultConfigParams}}
	}

	combos := generateCombinations(nonMaxBatchSizeAxes(params))

	var out [][]ParamCombo
	for _, combo := range combos {
		if len(params.MaxBatchSize) == 0 {
			out = append(out, []ParamCombo{combo})
			continue
		}
		var withMBS []ParamCombo
		for _, mbs := range params.MaxBatchSize {
			extended := make(ParamCombo, len(combo)+1)
			for k, v := range combo {
				extended[k] = v
			}
			extended["max_batch_size"] = mbs
			withMBS = append(withMBS, extended)
		}
		out = append(out, withMBS)
	}
	return out
}

// Next returns the next param combo in the pre-generated grid, walking
// the max-batch-size sub-axis before stepping to the next combo.
func (b *Brute) Next() (ParamCombo, bool) {
	if b.doneWalking() {
		return nil, false
	}
	return b.configs[b.configIndex][b.mbsIndex], true
}

// SetLastResults advances the walk: first along the max-batch-size
// sub-axis, then (once that sub-axis is exhausted or plateaus) along the
// combo axis.
func (b *Brute) SetLastResults(results []*measurement.RunConfigMeasurement) {
	b.recordLastResults(results)
	b.mbsIndex++

	if b.doneWalkingMaxBatchSize() {
		b.resetMaxBatchSize()
		b.mbsIndex = 0
		b.configIndex++
	}
}

func (b *Brute) doneWalking() bool {
	return b.configIndex >= len(b.configs)
}

func (b *Brute) doneWalkingMaxBatchSize() bool {
	if b.configIndex >= len(b.configs) {
		return true
	}
	if b.mbsIndex >= len(b.configs[b.configIndex]) {
		return true
	}
	if b.earlyExitEnable && b.lastResultsErroneous() {
		return true
	}
	if b.earlyExitEnable && !b.lastResultsIncreasedThroughput() {
		b.printMaxBatchSizePlateauWarning()
		return true
	}
	return false
}
