package rungen

import (
	"fmt"

	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/internal/store"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// Mode selects which run-config generation strategy to build, mirroring
// ConfigCommandProfile.run_config_search_mode's "optuna"/"quick"/"brute"
// values.
type Mode string

const (
	ModeBrute  Mode = "brute"
	ModeQuick  Mode = "quick"
	ModeOptuna Mode = "optuna"
)

// Options carries every knob the Factory needs to build any of the three
// strategies, leaving fields the chosen strategy does not use zero.
type Options struct {
	Mode Mode

	Models []*profile.ModelProfileSpec
	Bounds searchspace.RunConfigSearchBounds

	// Brute-only.
	Loads             []int
	BatchSizes        []int
	IsRequestRate     bool
	SearchDisabled    bool
	ExplicitLoadGiven bool
	Store             *store.Store
	TopN              int
}

// New routes to the correct strategy per run_config_generator_factory.py:
// optuna mode always wins; quick mode or the presence of any composing
// (BLS/ensemble sub-)model forces Quick, since BruteRunConfigGenerator has
// no concept of composing models; otherwise brute.
func New(opts Options) (Generator, error) {
	hasComposing := false
	for _, m := range opts.Models {
		if m.IsComposing() {
			hasComposing = true
			break
		}
	}

	switch {
	case opts.Mode == ModeOptuna:
		if len(opts.Models) == 0 {
			return nil, fmt.Errorf("rungen: optuna mode requires at least one model")
		}
		return NewOptuna(opts.Models[0], opts.Bounds)
	case opts.Mode == ModeQuick || hasComposing:
		return NewQuick(opts.Models, opts.Bounds)
	case opts.Mode == ModeBrute:
		return NewBruteBinary(
			opts.Models,
			opts.Bounds,
			opts.Loads,
			opts.BatchSizes,
			opts.IsRequestRate,
			opts.SearchDisabled,
			opts.ExplicitLoadGiven,
			opts.Store,
			opts.TopN,
		), nil
	default:
		return nil, fmt.Errorf("rungen: unexpected search mode %q", opts.Mode)
	}
}
