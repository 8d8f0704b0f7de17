package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsConcurrencyAndRequestRateTogether(t *testing.T) {
	m := &ModelProfileSpec{
		ModelName: "llama3",
		Parameters: Parameters{
			Concurrency: []int{1, 2, 4},
			RequestRate: []int{10, 20},
		},
	}
	assert.Error(t, m.Validate())
}

func TestValidateNormalizesObjectiveWeights(t *testing.T) {
	m := &ModelProfileSpec{
		ModelName: "llama3",
		Objectives: map[string]float64{
			"perf_throughput": 3,
			"perf_latency_p99": 1,
		},
	}
	require.NoError(t, m.Validate())
	assert.InDelta(t, 0.75, m.Objectives["perf_throughput"], 1e-9)
	assert.InDelta(t, 0.25, m.Objectives["perf_latency_p99"], 1e-9)
}

func TestLoadMarksComposingModels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	doc := `
models:
  - model_name: ensemble_model
    composing_models:
      - sub_a
      - sub_b
    parameters:
      concurrency: [1, 2, 4]
  - model_name: sub_a
    parameters:
      concurrency: [1, 2, 4]
  - model_name: sub_b
    parameters:
      concurrency: [1, 2, 4]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	models, err := Load(path)
	require.NoError(t, err)
	require.Len(t, models, 3)

	byName := make(map[string]*ModelProfileSpec, len(models))
	for _, m := range models {
		byName[m.ModelName] = m
	}

	assert.False(t, byName["ensemble_model"].IsComposing())
	assert.True(t, byName["sub_a"].IsComposing())
	assert.True(t, byName["sub_b"].IsComposing())
}

func TestLoadRejectsEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: []"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMixedRequestRateAndConcurrencyAcrossModels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	doc := `
models:
  - model_name: a
    parameters:
      request_rate: [10, 20]
  - model_name: b
    parameters:
      concurrency: [1, 2]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
