package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/record"
)

func TestAggregateBucketsNonGPUByTag(t *testing.T) {
	records := []record.Record{
		record.Throughput(100),
		record.LatencyP99(12.5),
	}
	b := Aggregate(records)

	assert.Len(t, b.NonGPU, 2)
	assert.Equal(t, 100.0, b.NonGPU[record.TagPerfThroughput].Value())
	assert.Equal(t, 12.5, b.NonGPU[record.TagPerfLatencyP99].Value())
	assert.Empty(t, b.GPU)
}

func TestAggregateBucketsGPUByDevice(t *testing.T) {
	records := []record.Record{
		record.GPUUtilizationPct("gpu-0", 40),
		record.GPUUtilizationPct("gpu-1", 70),
	}
	b := Aggregate(records)

	require.Contains(t, b.GPU, "gpu-0")
	require.Contains(t, b.GPU, "gpu-1")
	assert.Equal(t, 40.0, b.GPU["gpu-0"][record.TagGPUUtilization].Value())
	assert.Equal(t, 70.0, b.GPU["gpu-1"][record.TagGPUUtilization].Value())
}

func TestAggregateFreeMemoryCorrectedByMatchedUsedMemory(t *testing.T) {
	records := []record.Record{
		record.GPUFreeMemoryMB("gpu-0", 4e9),
		record.GPUUsedMemoryMB("gpu-0", 500),
	}
	b := Aggregate(records)

	free, ok := b.GPU["gpu-0"][record.TagGPUFreeMemory]
	require.True(t, ok)
	// 4e9 bytes / 1e6 == 4000 MB; corrected = 4000 - 500 = 3500.
	assert.InDelta(t, 3500, free.Value(), 1e-6)
}

func TestAggregateDropsFreeMemoryWithoutMatchedUsedMemory(t *testing.T) {
	records := []record.Record{
		record.GPUFreeMemoryMB("gpu-0", 4e9),
	}
	b := Aggregate(records)

	_, ok := b.GPU["gpu-0"]
	assert.False(t, ok, "device bucket should be dropped entirely when its only tag is an unmatched free-memory record")
}

func TestAggregateReduceKeepsBestByPolarity(t *testing.T) {
	// Throughput is higher_better: the max value wins.
	records := []record.Record{
		record.Throughput(50),
		record.Throughput(90),
		record.Throughput(70),
	}
	b := Aggregate(records)
	assert.Equal(t, 90.0, b.NonGPU[record.TagPerfThroughput].Value())

	// Latency is lower_better: the min value wins.
	latency := []record.Record{
		record.LatencyP99(20),
		record.LatencyP99(5),
		record.LatencyP99(15),
	}
	b = Aggregate(latency)
	assert.Equal(t, 5.0, b.NonGPU[record.TagPerfLatencyP99].Value())
}
