package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/constraint"
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/record"
)

func rcmWithThroughput(variant string, throughput float64) *measurement.RunConfigMeasurement {
	rcm := measurement.NewRCM(nil)
	rcm.AddModelConfigMeasurement(measurement.NewMCM(variant, nil, []record.Record{record.Throughput(throughput)}))
	return rcm
}

func TestAddAndContains(t *testing.T) {
	s := New()
	assert.False(t, s.Contains("llama3_config_0"))

	s.Add("llama3_config_0", "run-1", "llama3", rcmWithThroughput("llama3_config_0", 100))
	assert.True(t, s.Contains("llama3_config_0"))
}

func TestGetReturnsOnlyForKnownFingerprint(t *testing.T) {
	s := New()
	rcm := rcmWithThroughput("llama3_config_0", 100)
	s.Add("llama3_config_0", "run-1", "llama3", rcm)

	got, ok := s.Get("llama3_config_0", "run-1")
	require.True(t, ok)
	assert.Same(t, rcm, got)

	_, ok = s.Get("llama3_config_0", "run-2")
	assert.False(t, ok)
}

func TestTopNOrdersPassingByBetterFirst(t *testing.T) {
	s := New()
	s.Add("llama3_config_0", "r0", "llama3", rcmWithThroughput("llama3_config_0", 100))
	s.Add("llama3_config_1", "r1", "llama3", rcmWithThroughput("llama3_config_1", 200))
	s.Add("llama3_config_2", "r2", "llama3", rcmWithThroughput("llama3_config_2", 150))

	top := s.TopN(2, "llama3", false)
	require.Len(t, top, 2)
	assert.Equal(t, "llama3_config_1", top[0].VariantsKey())
	assert.Equal(t, "llama3_config_2", top[1].VariantsKey())
}

func TestTopNReturnsOnlyPassingEvenIfFewerThanRequested(t *testing.T) {
	s := New()
	eval := constraint.NewEvaluator(map[string]constraint.Set{
		"llama3": {record.TagPerfLatencyP99: constraint.Bound{Max: 50, HasMax: true}},
	}, nil)

	passing := rcmWithThroughput("llama3_config_0", 100)
	s.Add("llama3_config_0", "r0", "llama3", passing)

	failing1 := measurement.NewRCM(nil)
	failing1.AddModelConfigMeasurement(measurement.NewMCM("llama3_config_1", nil, []record.Record{record.LatencyP99(80)}))
	failing1.SetEvaluator(eval)
	s.Add("llama3_config_1", "r1", "llama3", failing1)

	top := s.TopN(3, "llama3", false)
	require.Len(t, top, 1)
	assert.Equal(t, "llama3_config_0", top[0].VariantsKey())
}

func TestTopNFallsBackToFailingWhenNoPassingAtAll(t *testing.T) {
	s := New()
	eval := constraint.NewEvaluator(map[string]constraint.Set{
		"llama3": {record.TagPerfLatencyP99: constraint.Bound{Max: 50, HasMax: true}},
	}, nil)

	failing1 := measurement.NewRCM(nil)
	failing1.AddModelConfigMeasurement(measurement.NewMCM("llama3_config_1", nil, []record.Record{record.LatencyP99(80)}))
	failing1.SetEvaluator(eval)
	s.Add("llama3_config_1", "r1", "llama3", failing1)

	failing2 := measurement.NewRCM(nil)
	failing2.AddModelConfigMeasurement(measurement.NewMCM("llama3_config_2", nil, []record.Record{record.LatencyP99(90)}))
	failing2.SetEvaluator(eval)
	s.Add("llama3_config_2", "r2", "llama3", failing2)

	top := s.TopN(1, "llama3", false)
	require.Len(t, top, 1)
	assert.Equal(t, "llama3_config_1", top[0].VariantsKey())
}

func TestTopNFiltersByModel(t *testing.T) {
	s := New()
	s.Add("llama3_config_0", "r0", "llama3", rcmWithThroughput("llama3_config_0", 100))
	s.Add("mistral_config_0", "r1", "mistral", rcmWithThroughput("mistral_config_0", 999))

	top := s.TopN(5, "llama3", false)
	require.Len(t, top, 1)
	assert.Equal(t, "llama3_config_0", top[0].VariantsKey())
}

func TestTopNIncludesDefaultWhenRequested(t *testing.T) {
	s := New()
	s.Add("llama3_config_default", "r0", "llama3", rcmWithThroughput("llama3_config_default", 10))
	s.Add("llama3_config_0", "r1", "llama3", rcmWithThroughput("llama3_config_0", 200))
	s.Add("llama3_config_1", "r2", "llama3", rcmWithThroughput("llama3_config_1", 150))

	top := s.TopN(1, "llama3", true)
	require.Len(t, top, 2)
	assert.Equal(t, "llama3_config_0", top[0].VariantsKey())
	assert.Equal(t, "llama3_config_default", top[1].VariantsKey())
}

func TestModelStatisticsCountsPassingAndFailing(t *testing.T) {
	s := New()
	eval := constraint.NewEvaluator(map[string]constraint.Set{
		"llama3": {record.TagPerfLatencyP99: constraint.Bound{Max: 50, HasMax: true}},
	}, nil)

	s.Add("llama3_config_0", "r0", "llama3", rcmWithThroughput("llama3_config_0", 100))

	failing := measurement.NewRCM(nil)
	failing.AddModelConfigMeasurement(measurement.NewMCM("llama3_config_1", nil, []record.Record{record.LatencyP99(80)}))
	failing.SetEvaluator(eval)
	s.Add("llama3_config_1", "r1", "llama3", failing)

	stats := s.ModelStatistics("llama3")
	assert.Equal(t, 1, stats.Passing)
	assert.Equal(t, 1, stats.Failing)
}

func TestCheckpointRestoreRoundTrip(t *testing.T) {
	s := New()
	s.Add("llama3_config_0", "r0", "llama3", rcmWithThroughput("llama3_config_0", 100))
	s.Add("llama3_config_1", "r1", "llama3", rcmWithThroughput("llama3_config_1", 200))

	path := filepath.Join(t.TempDir(), "checkpoint.gob")
	require.NoError(t, s.Checkpoint(path))

	restored := New()
	require.NoError(t, restored.Restore(path))

	assert.True(t, restored.Contains("llama3_config_0"))
	assert.True(t, restored.Contains("llama3_config_1"))

	top := restored.TopN(2, "llama3", false)
	require.Len(t, top, 2)
	assert.Equal(t, "llama3_config_1", top[0].VariantsKey())

	_, ok := restored.Get("llama3_config_0", "r0")
	assert.True(t, ok)
}

func TestCheckpointPreservesGPUData(t *testing.T) {
	s := New()
	rcm := measurement.NewRCM(map[string][]record.Record{
		"gpu-0": {record.GPUUtilizationPct("gpu-0", 40)},
	})
	rcm.AddModelConfigMeasurement(measurement.NewMCM("llama3_config_0", nil, []record.Record{record.Throughput(100)}))
	s.Add("llama3_config_0", "r0", "llama3", rcm)

	path := filepath.Join(t.TempDir(), "checkpoint.gob")
	require.NoError(t, s.Checkpoint(path))

	restored := New()
	require.NoError(t, restored.Restore(path))

	got, ok := restored.Get("llama3_config_0", "r0")
	require.True(t, ok)
	avg, ok := got.AvgGPUMetric(record.TagGPUUtilization)
	require.True(t, ok)
	assert.InDelta(t, 40.0, avg.Value(), 1e-9)
}
