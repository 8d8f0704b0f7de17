package measurement

import (
	"strings"

	"github.com/defilantech/modelsearch/internal/constraint"
	"github.com/defilantech/modelsearch/internal/record"
	"github.com/defilantech/modelsearch/internal/searchconst"
)

// RunConfigMeasurement is a collection of MCMs measured together (the
// multi-model concurrent profile case) plus a shared per-GPU record map.
type RunConfigMeasurement struct {
	mcms       []*ModelConfigMeasurement
	mcmWeights []float64
	gpuData    map[string][]record.Record
	avgGPU     map[string]record.Record // tag -> averaged-across-GPUs record
	evaluator  *constraint.Evaluator
}

// NewRCM builds an RCM from its per-GPU record map. MCMs are attached
// afterward via AddModelConfigMeasurement.
func NewRCM(gpuData map[string][]record.Record) *RunConfigMeasurement {
	rcm := &RunConfigMeasurement{gpuData: gpuData}
	rcm.avgGPU = averageAcrossDevices(gpuData)
	return rcm
}

// averageAcrossDevices flattens {device -> []Record} into {tag ->
// averaged record}, matching _average_list's "average every GPU's value
// for a given tag" behavior.
func averageAcrossDevices(gpuData map[string][]record.Record) map[string]record.Record {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	polarity := make(map[string]record.Polarity)

	for _, records := range gpuData {
		for _, r := range records {
			sums[r.Tag()] += r.Value()
			counts[r.Tag()]++
			polarity[r.Tag()] = r.Polarity()
		}
	}

	out := make(map[string]record.Record, len(sums))
	for tag, sum := range sums {
		avg := sum / float64(counts[tag])
		r, err := record.FromTag(tag, avg)
		if err != nil {
			continue
		}
		out[tag] = r
	}
	return out
}

// VariantsKey returns the Result Store key for this RCM: its MCMs' variant
// names joined by ",".
func (rcm *RunConfigMeasurement) VariantsKey() string {
	names := make([]string, len(rcm.mcms))
	for i, m := range rcm.mcms {
		names[i] = m.VariantName
	}
	return strings.Join(names, ",")
}

// AddModelConfigMeasurement appends one model's measurement to this RCM.
func (rcm *RunConfigMeasurement) AddModelConfigMeasurement(mcm *ModelConfigMeasurement) {
	rcm.mcms = append(rcm.mcms, mcm)
}

// SetModelConfigWeighting normalizes and installs the per-model-slot
// weighting used by Compare.
func (rcm *RunConfigMeasurement) SetModelConfigWeighting(weights []float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		rcm.mcmWeights = weights
		return
	}
	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / sum
	}
	rcm.mcmWeights = normalized
}

// SetEvaluator installs the Constraint Evaluator used by IsPassingConstraints.
func (rcm *RunConfigMeasurement) SetEvaluator(e *constraint.Evaluator) {
	rcm.evaluator = e
}

// ModelConfigMeasurements returns the MCMs in insertion order.
func (rcm *RunConfigMeasurement) ModelConfigMeasurements() []*ModelConfigMeasurement {
	return rcm.mcms
}

// AvgGPUMetric returns the across-device-averaged GPU record for tag.
func (rcm *RunConfigMeasurement) AvgGPUMetric(tag string) (record.Record, bool) {
	r, ok := rcm.avgGPU[tag]
	return r, ok
}

// GPUData returns the underlying per-device GPU records, for checkpointing.
func (rcm *RunConfigMeasurement) GPUData() map[string][]record.Record {
	return rcm.gpuData
}

// data builds the {model name -> []Metric} view the Constraint Evaluator
// needs.
func (rcm *RunConfigMeasurement) data() constraint.ModelMetrics {
	out := make(constraint.ModelMetrics, len(rcm.mcms))
	for _, m := range rcm.mcms {
		out[m.ModelName()] = m.Metrics()
	}
	return out
}

// IsPassingConstraints delegates to the installed Constraint Evaluator.
func (rcm *RunConfigMeasurement) IsPassingConstraints() bool {
	if rcm.evaluator == nil {
		return true
	}
	return rcm.evaluator.Satisfies(rcm.data())
}

// Compare returns a signed score: positive means rcm is better than other,
// negative means other is better, and |score| < CompareEpsilon means
// equal. Per-model-slot scores are combined using the model-config
// weighting installed via SetModelConfigWeighting.
func (rcm *RunConfigMeasurement) Compare(other *RunConfigMeasurement) float64 {
	var total float64
	for i, m := range rcm.mcms {
		if i >= len(other.mcms) {
			break
		}
		weight := 1.0
		if i < len(rcm.mcmWeights) {
			weight = rcm.mcmWeights[i]
		}
		total += weight * m.WeightedScore(other.mcms[i])
	}
	return total
}

// IsBetterThan reports whether rcm scores strictly better than other,
// beyond the fixed comparison epsilon.
func (rcm *RunConfigMeasurement) IsBetterThan(other *RunConfigMeasurement) bool {
	return rcm.Compare(other) > searchconst.CompareEpsilon
}

// CompareConstraints defers to the installed evaluator's
// tighter-to-passing comparison.
func (rcm *RunConfigMeasurement) CompareConstraints(other *RunConfigMeasurement) (score float64, ok bool) {
	if rcm.evaluator == nil {
		return 0, false
	}
	return rcm.evaluator.CompareConstraints(
		constraint.Comparable{Passing: rcm.IsPassingConstraints(), Data: rcm.data()},
		constraint.Comparable{Passing: other.IsPassingConstraints(), Data: other.data()},
	)
}
