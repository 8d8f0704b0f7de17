package modelgen

import (
	"fmt"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// Automatic generates model configs by nesting two exponential/linear
// walks: instance_group count steps linearly from MinInstanceCount to
// MaxInstanceCount, and for each instance count, max_batch_size doubles
// from MinModelBatch until MaxModelBatch or a throughput plateau.
//
// Grounded on
// original_source/model_analyzer/config/generate/automatic_model_config_generator.py.
type Automatic struct {
	base

	model        *profile.ModelProfileSpec
	bounds       searchspace.RunConfigSearchBounds
	instanceKind string

	currInstanceCount int
	currMaxBatchSize  int
}

// NewAutomatic builds an Automatic generator for model. It panics if
// earlyExitEnable is false: the source raises
// TritonModelAnalyzerException in this case, since automatic search has no
// other way to terminate the max-batch-size axis.
func NewAutomatic(model *profile.ModelProfileSpec, bounds searchspace.RunConfigSearchBounds, defaultOnly, earlyExitEnable bool) *Automatic {
	if !earlyExitEnable {
		panic(fmt.Sprintf("modelgen: early exit disable is not supported in automatic model config generator (model %q)", model.ModelName))
	}

	a := &Automatic{
		base:              newBase(model.ModelName, defaultOnly, earlyExitEnable),
		model:             model,
		bounds:            bounds,
		currInstanceCount: bounds.MinInstanceCount,
	}
	if model.CPUOnly {
		a.instanceKind = "KIND_CPU"
	} else {
		a.instanceKind = "KIND_GPU"
	}

	a.resetMaxBatchSize()
	return a
}

// resetMaxBatchSize clears the throughput history and reseeds
// currMaxBatchSize at the start of a new instance-count walk: the model's
// minimum batch size if it supports batching at all, otherwise pinned at
// the max (a single iteration, since there is nothing to sweep).
func (a *Automatic) resetMaxBatchSize() {
	a.base.resetMaxBatchSize()
	if a.model.SupportsBatching() {
		a.currMaxBatchSize = a.bounds.MinModelBatch
	} else {
		a.currMaxBatchSize = a.bounds.MaxModelBatch
	}
}

func (a *Automatic) doneWalking() bool {
	return a.currInstanceCount > a.bounds.MaxInstanceCount
}

// Next returns the default combo (default-only mode) or the current
// instance_group/max_batch_size/dynamic_batching combo, or ok=false once
// the instance-count axis is exhausted.
func (a *Automatic) Next() (ParamCombo, bool) {
	if a.doneWalking() {
		return nil, false
	}
	if a.defaultOnly {
		return DefaultConfigParams, true
	}

	combo := ParamCombo{
		"instance_group": []interface{}{ParamCombo{
			"count": a.currInstanceCount,
			"kind":  a.instanceKind,
		}},
	}
	if a.model.SupportsBatching() {
		combo["max_batch_size"] = a.currMaxBatchSize
	}
	if a.model.SupportsDynamicBatching() {
		combo["dynamic_batching"] = ParamCombo{}
	}
	return combo, true
}

// SetLastResults advances the walk: double max_batch_size first, stepping
// to the next instance count only once that axis plateaus, hits its
// limit, or every result for the combo was a miss.
func (a *Automatic) SetLastResults(results []*measurement.RunConfigMeasurement) {
	a.stepMaxBatchSize(results)

	if a.doneWalkingMaxBatchSize() {
		a.resetMaxBatchSize()
		a.currInstanceCount++
	}
}

func (a *Automatic) stepMaxBatchSize(results []*measurement.RunConfigMeasurement) {
	a.currMaxBatchSize *= 2
	a.recordLastResults(results)
}

func (a *Automatic) doneWalkingMaxBatchSize() bool {
	if a.lastResultsErroneous() {
		return true
	}
	if a.maxBatchSizeLimitReached() {
		return true
	}
	if !a.lastResultsIncreasedThroughput() {
		a.printMaxBatchSizePlateauWarning()
		return true
	}
	return false
}

func (a *Automatic) maxBatchSizeLimitReached() bool {
	return a.currMaxBatchSize > a.bounds.MaxModelBatch
}
