// Package measurement implements ModelConfigMeasurement (MCM) and
// RunConfigMeasurement (RCM): the two composite measurement types that sit
// between raw aggregated records and the Result Store.
//
// Grounded on
// original_source/model_analyzer/result/model_config_measurement.py and
// run_config_measurement.py.
package measurement

import (
	"github.com/defilantech/modelsearch/internal/constraint"
	"github.com/defilantech/modelsearch/internal/record"
	"github.com/defilantech/modelsearch/internal/searchconst"
)

// ModelConfigMeasurement is one model variant's non-GPU records plus the
// perf parameters (batch size, concurrency or request-rate) that produced
// them, and the metric-weighting map used to compare it against another
// MCM.
type ModelConfigMeasurement struct {
	VariantName   string
	PerfParams    map[string]interface{}
	nonGPU        map[string]record.Record
	metricWeights map[string]float64
}

// NewMCM builds an MCM from a variant name, its perf parameters, and its
// non-GPU records. The default metric weighting is {perf_throughput: 1},
// matching the source's ModelConfigMeasurement default.
func NewMCM(variantName string, perfParams map[string]interface{}, nonGPU []record.Record) *ModelConfigMeasurement {
	byTag := make(map[string]record.Record, len(nonGPU))
	for _, r := range nonGPU {
		byTag[r.Tag()] = r
	}
	return &ModelConfigMeasurement{
		VariantName:   variantName,
		PerfParams:    perfParams,
		nonGPU:        byTag,
		metricWeights: map[string]float64{record.TagPerfThroughput: 1},
	}
}

// SetMetricWeighting installs a normalized objective weighting, e.g. from
// profile.ModelProfileSpec.Objectives.
func (m *ModelConfigMeasurement) SetMetricWeighting(objectives map[string]float64) {
	var sum float64
	for _, w := range objectives {
		sum += w
	}
	if sum == 0 {
		return
	}
	weights := make(map[string]float64, len(objectives))
	for tag, w := range objectives {
		weights[tag] = w / sum
	}
	m.metricWeights = weights
}

// ModelName extracts the base model name from the variant name, splitting
// on the first "_config_" the way model_config_name.partition does.
func (m *ModelConfigMeasurement) ModelName() string {
	const sep = "_config_"
	for i := 0; i+len(sep) <= len(m.VariantName); i++ {
		if m.VariantName[i:i+len(sep)] == sep {
			return m.VariantName[:i]
		}
	}
	return m.VariantName
}

// GetMetric returns the record for tag, or ok=false if this MCM has no
// such metric.
func (m *ModelConfigMeasurement) GetMetric(tag string) (record.Record, bool) {
	r, ok := m.nonGPU[tag]
	return r, ok
}

// GetMetricValue returns the numeric value for tag, or defaultValue if
// absent.
func (m *ModelConfigMeasurement) GetMetricValue(tag string, defaultValue float64) float64 {
	if r, ok := m.nonGPU[tag]; ok {
		return r.Value()
	}
	return defaultValue
}

// Metrics returns every metric tracked by this MCM, for constraint
// evaluation.
func (m *ModelConfigMeasurement) Metrics() []constraint.Metric {
	out := make([]constraint.Metric, 0, len(m.nonGPU))
	for tag, r := range m.nonGPU {
		out = append(out, constraint.Metric{Tag: tag, Value: r.Value()})
	}
	return out
}

// Records returns the underlying non-GPU records, for checkpointing.
func (m *ModelConfigMeasurement) Records() []record.Record {
	out := make([]record.Record, 0, len(m.nonGPU))
	for _, r := range m.nonGPU {
		out = append(out, r)
	}
	return out
}

// Weights returns the installed metric weighting, for checkpointing.
func (m *ModelConfigMeasurement) Weights() map[string]float64 {
	return m.metricWeights
}

// WeightedScore computes this MCM's weighted score against other: for each
// objective, the normalized gain `(self - other).value() / mean(values)`,
// scaled by its weight and summed. A present-vs-absent metric on either
// side (e.g. a GPU metric queried against a CPU-only run) returns ±1
// immediately, matching the source's cross-device handling.
func (m *ModelConfigMeasurement) WeightedScore(other *ModelConfigMeasurement) float64 {
	var score float64
	for objective, weight := range m.metricWeights {
		selfMetric, selfOK := m.nonGPU[objective]
		otherMetric, otherOK := other.nonGPU[objective]

		switch {
		case selfOK && !otherOK:
			return 1
		case otherOK && !selfOK:
			return -1
		case !selfOK && !otherOK:
			continue
		}

		diff, err := selfMetric.Sub(otherMetric)
		if err != nil {
			continue
		}
		avg := (selfMetric.Value() + otherMetric.Value()) / 2
		if avg == 0 {
			continue
		}
		score += weight * (diff.Value() / avg)
	}
	return score
}

// IsBetterThan reports whether m scores strictly better than other, beyond
// the fixed comparison epsilon.
func (m *ModelConfigMeasurement) IsBetterThan(other *ModelConfigMeasurement) bool {
	return m.WeightedScore(other) > searchconst.CompareEpsilon
}
