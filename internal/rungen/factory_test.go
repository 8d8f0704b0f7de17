package rungen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/store"
	"github.com/defilantech/modelsearch/pkg/profile"
)

func TestFactoryOptunaModeBuildsOptuna(t *testing.T) {
	gen, err := New(Options{Mode: ModeOptuna, Models: []*profile.ModelProfileSpec{quickModel("m")}, Bounds: quickBounds()})
	require.NoError(t, err)
	_, ok := gen.(*Optuna)
	assert.True(t, ok)
}

func TestFactoryQuickModeBuildsQuick(t *testing.T) {
	gen, err := New(Options{Mode: ModeQuick, Models: []*profile.ModelProfileSpec{quickModel("m")}, Bounds: quickBounds()})
	require.NoError(t, err)
	_, ok := gen.(*Quick)
	assert.True(t, ok)
}

func TestFactoryComposingModelForcesQuickEvenInBruteMode(t *testing.T) {
	composing := quickModel("sub")
	composing.SetComposing(true)
	gen, err := New(Options{Mode: ModeBrute, Models: []*profile.ModelProfileSpec{quickModel("top"), composing}, Bounds: quickBounds()})
	require.NoError(t, err)
	_, ok := gen.(*Quick)
	assert.True(t, ok)
}

func TestFactoryBruteModeBuildsBruteBinary(t *testing.T) {
	gen, err := New(Options{
		Mode:   ModeBrute,
		Models: []*profile.ModelProfileSpec{quickModel("m")},
		Bounds: quickBounds(),
		Store:  store.New(),
		TopN:   3,
	})
	require.NoError(t, err)
	_, ok := gen.(*BruteBinary)
	assert.True(t, ok)
}

func TestFactoryUnknownModeErrors(t *testing.T) {
	_, err := New(Options{Mode: "bogus", Models: []*profile.ModelProfileSpec{quickModel("m")}, Bounds: quickBounds()})
	assert.Error(t, err)
}
