package rungen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/store"
	"github.com/defilantech/modelsearch/pkg/profile"
)

func TestBruteBinaryPhase1CrossesBatchSizesAndLoads(t *testing.T) {
	model := quickModel("m")
	g := NewBruteBinary(
		[]*profile.ModelProfileSpec{model},
		quickBounds(),
		[]int{1, 2},
		[]int{4, 8},
		false,
		true, // search disabled: Brute with a single default combo per model
		true, // explicit load given: skip phase 2 entirely
		store.New(),
		3,
	)

	seen := make(map[[2]int]bool)
	count := 0
	for {
		rc, ok := g.Next()
		if !ok {
			break
		}
		seen[[2]int{rc.BatchSize, rc.Load}] = true
		g.SetLastResults(passingRCM(10))
		count++
		if count > 20 {
			t.Fatal("brute binary phase 1 did not terminate")
		}
	}

	assert.Len(t, seen, 4) // 2 batch sizes x 2 loads
	assert.Equal(t, phaseBBDone, g.phase)
}

func TestBruteBinaryRunsBinaryPhaseWhenLoadNotExplicit(t *testing.T) {
	model := quickModel("m")
	st := store.New()
	g := NewBruteBinary(
		[]*profile.ModelProfileSpec{model},
		quickBounds(),
		nil,
		nil,
		false,
		true,
		false, // no explicit load list: phase 2 should run
		st,
		1,
	)

	rc, ok := g.Next()
	require.True(t, ok)
	g.SetLastResults(passingRCM(10))
	st.Add(rc.Variants[0].ModelName+"_config_default", "fp1", rc.Variants[0].ModelName, passingRCM(10))

	_, _ = g.Next()
	assert.Equal(t, phaseBBBinary, g.phase)
}
