package rungen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/modelgen"
	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/pkg/profile"
)

func optunaBounds() searchspace.RunConfigSearchBounds {
	b := searchspace.DefaultBounds()
	b.MinConcurrency, b.MaxConcurrency = 1, 8
	b.MinInstanceCount, b.MaxInstanceCount = 1, 4
	return b
}

func TestOptunaFirstCallReturnsDefaultConfig(t *testing.T) {
	model := quickModel("m")
	o, err := NewOptuna(model, optunaBounds())
	require.NoError(t, err)

	rc, ok := o.Next()
	require.True(t, ok)
	require.Len(t, rc.Variants, 1)
	assert.Equal(t, modelgen.DefaultConfigParams, rc.Variants[0].Combo)
}

func TestOptunaSecondCallIsSampledTrial(t *testing.T) {
	model := quickModel("m")
	o, err := NewOptuna(model, optunaBounds())
	require.NoError(t, err)

	_, ok := o.Next()
	require.True(t, ok)
	o.SetLastResults(passingRCM(10))

	rc, ok := o.Next()
	require.True(t, ok)
	require.Len(t, rc.Variants, 1)
	assert.Equal(t, 1, o.trialNumber)
	assert.NotNil(t, o.baseline)

	o.SetLastResults(passingRCM(20))
	assert.Len(t, o.trials, 1)
	assert.Greater(t, o.bestScore, float64(-1))
}

func TestOptunaTerminatesAfterMaxTrials(t *testing.T) {
	model := quickModel("m")
	o, err := NewOptuna(model, optunaBounds())
	require.NoError(t, err)
	o.maxTrials = 3
	o.minTrials = 3

	_, ok := o.Next()
	require.True(t, ok)
	o.SetLastResults(passingRCM(10))

	count := 0
	for {
		rc, ok := o.Next()
		if !ok {
			break
		}
		_ = rc
		o.SetLastResults(passingRCM(10))
		count++
		if count > 10 {
			t.Fatal("optuna generator did not respect maxTrials")
		}
	}
	assert.LessOrEqual(t, count, 3)
}

func TestOptunaEarlyExitsWhenNoNewBest(t *testing.T) {
	model := quickModel("m")
	o, err := NewOptuna(model, optunaBounds())
	require.NoError(t, err)
	o.minTrials = 2
	o.maxTrials = 100

	_, ok := o.Next()
	require.True(t, ok)
	o.SetLastResults(passingRCM(100))

	count := 0
	for {
		_, ok := o.Next()
		if !ok {
			break
		}
		o.SetLastResults(passingRCM(1)) // always worse than baseline, never a new best
		count++
		if count > 200 {
			t.Fatal("optuna generator did not early-exit")
		}
	}
	assert.True(t, o.done)
}

func TestNewOptunaBoundsTrialCountByMaxPercentage(t *testing.T) {
	model := &profile.ModelProfileSpec{ModelName: "m"}
	model.SetDefaultConfig(map[string]interface{}{"max_batch_size": 1})
	b := optunaBounds()
	b.MinModelBatch, b.MaxModelBatch = 1, 1
	b.MinInstanceCount, b.MaxInstanceCount = 1, 2
	b.MinConcurrency, b.MaxConcurrency = 1, 2

	o, err := NewOptuna(model, b)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, o.maxTrials, 1)
	assert.LessOrEqual(t, o.minTrials, o.maxTrials)
}
