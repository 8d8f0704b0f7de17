package measurement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/constraint"
	"github.com/defilantech/modelsearch/internal/record"
)

func TestModelNameSplitsOnConfigSeparator(t *testing.T) {
	mcm := NewMCM("llama3_config_4", nil, nil)
	assert.Equal(t, "llama3", mcm.ModelName())

	def := NewMCM("llama3_config_default", nil, nil)
	assert.Equal(t, "llama3", def.ModelName())
}

func TestWeightedScoreDefaultsToThroughputOnly(t *testing.T) {
	self := NewMCM("llama3_config_0", nil, []record.Record{record.Throughput(120)})
	other := NewMCM("llama3_config_1", nil, []record.Record{record.Throughput(100)})

	assert.True(t, self.IsBetterThan(other))
	assert.False(t, other.IsBetterThan(self))
}

func TestWeightedScoreHandlesMissingMetricOnOneSide(t *testing.T) {
	self := NewMCM("a", nil, []record.Record{record.Throughput(100)})
	other := NewMCM("b", nil, nil)

	assert.Equal(t, 1.0, self.WeightedScore(other))
	assert.Equal(t, -1.0, other.WeightedScore(self))
}

func TestSetMetricWeightingNormalizes(t *testing.T) {
	self := NewMCM("a", nil, []record.Record{
		record.Throughput(150),
		record.LatencyP99(10),
	})
	other := NewMCM("b", nil, []record.Record{
		record.Throughput(100),
		record.LatencyP99(10),
	})
	self.SetMetricWeighting(map[string]float64{
		record.TagPerfThroughput: 3,
		record.TagPerfLatencyP99: 1,
	})
	other.SetMetricWeighting(map[string]float64{
		record.TagPerfThroughput: 3,
		record.TagPerfLatencyP99: 1,
	})

	assert.True(t, self.IsBetterThan(other))
}

func TestAvgGPUMetricAveragesAcrossDevices(t *testing.T) {
	rcm := NewRCM(map[string][]record.Record{
		"gpu-0": {record.GPUUtilizationPct("gpu-0", 40)},
		"gpu-1": {record.GPUUtilizationPct("gpu-1", 60)},
	})
	avg, ok := rcm.AvgGPUMetric(record.TagGPUUtilization)
	require.True(t, ok)
	assert.InDelta(t, 50.0, avg.Value(), 1e-9)
}

func TestVariantsKeyJoinsMCMNames(t *testing.T) {
	rcm := NewRCM(nil)
	rcm.AddModelConfigMeasurement(NewMCM("llama3_config_0", nil, nil))
	rcm.AddModelConfigMeasurement(NewMCM("mistral_config_1", nil, nil))
	assert.Equal(t, "llama3_config_0,mistral_config_1", rcm.VariantsKey())
}

func TestIsPassingConstraintsWithoutEvaluatorDefaultsTrue(t *testing.T) {
	rcm := NewRCM(nil)
	assert.True(t, rcm.IsPassingConstraints())
}

func TestIsPassingConstraintsDelegatesToEvaluator(t *testing.T) {
	rcm := NewRCM(nil)
	rcm.AddModelConfigMeasurement(NewMCM("llama3_config_0", nil, []record.Record{record.LatencyP99(80)}))
	eval := constraint.NewEvaluator(map[string]constraint.Set{
		"llama3": {"perf_latency_p99": constraint.Bound{Max: 50, HasMax: true}},
	}, nil)
	rcm.SetEvaluator(eval)

	assert.False(t, rcm.IsPassingConstraints())
}

func TestCompareFavorsHigherThroughput(t *testing.T) {
	a := NewRCM(nil)
	a.AddModelConfigMeasurement(NewMCM("llama3_config_0", nil, []record.Record{record.Throughput(150)}))

	b := NewRCM(nil)
	b.AddModelConfigMeasurement(NewMCM("llama3_config_1", nil, []record.Record{record.Throughput(100)}))

	assert.True(t, a.IsBetterThan(b))
	assert.False(t, b.IsBetterThan(a))
}
