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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Emitter {
	t.Helper()
	registry := prometheus.NewRegistry()
	require.NoError(t, InitMetrics(registry))
	// InitMetrics is sync.Once-guarded: a second call against a different
	// registry must not re-register or error.
	require.NoError(t, InitMetrics(prometheus.NewRegistry()))
	return NewEmitter()
}

func TestConfigMeasuredIncrementsPerModel(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.ConfigMeasured("llama-7b"))
	require.NoError(t, e.ConfigMeasured("llama-7b"))
	require.NoError(t, e.ConfigMeasured("llama-13b"))

	var m dto.Metric
	require.NoError(t, configsMeasuredTotal.WithLabelValues("llama-7b").Write(&m))
	assert.GreaterOrEqual(t, m.GetCounter().GetValue(), 2.0)
}

func TestConfigSkippedIncrementsPerModel(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.ConfigSkipped("llama-7b"))

	var m dto.Metric
	require.NoError(t, configsSkippedTotal.WithLabelValues("llama-7b").Write(&m))
	assert.GreaterOrEqual(t, m.GetCounter().GetValue(), 1.0)
}

func TestBestScoreSetsGauge(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.BestScore("llama-7b", 42.5))

	var m dto.Metric
	require.NoError(t, bestScore.WithLabelValues("llama-7b").Write(&m))
	assert.Equal(t, 42.5, m.GetGauge().GetValue())
}

func TestSweepPhaseClearsPreviousPhase(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.SweepPhase("llama-7b", "quick", ""))
	require.NoError(t, e.SweepPhase("llama-7b", "loadsweep", "quick"))

	var quick, loadsweep dto.Metric
	require.NoError(t, sweepPhase.WithLabelValues("llama-7b", "quick").Write(&quick))
	require.NoError(t, sweepPhase.WithLabelValues("llama-7b", "loadsweep").Write(&loadsweep))

	assert.Equal(t, 0.0, quick.GetGauge().GetValue())
	assert.Equal(t, 1.0, loadsweep.GetGauge().GetValue())
}

func TestSweepDurationObservesHistogram(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.SweepDuration("llama-7b", 120))

	var m dto.Metric
	require.NoError(t, sweepDuration.WithLabelValues("llama-7b").Write(&m))
	assert.Greater(t, m.GetHistogram().GetSampleCount(), uint64(0))
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, unknownLabel, sanitizeLabel(""))
	assert.Equal(t, unknownLabel, sanitizeLabel("   "))
	assert.Equal(t, "llama-7b", sanitizeLabel("  llama-7b  "))

	long := make([]byte, maxLabelLength+10)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, sanitizeLabel(string(long)), maxLabelLength)
}
