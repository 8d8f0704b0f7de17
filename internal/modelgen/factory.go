package modelgen

import (
	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// NewForModel routes to the correct Generator for model: Brute whenever
// search is disabled outright or the model names explicit
// model_config_parameters, Automatic otherwise.
//
// Grounded on
// original_source/model_analyzer/config/generate/model_config_generator_factory.py.
func NewForModel(model *profile.ModelProfileSpec, bounds searchspace.RunConfigSearchBounds, searchDisabled, defaultOnly, earlyExitEnable bool) Generator {
	if searchDisabled || model.ModelConfigParameters != nil {
		return NewBrute(model, defaultOnly, earlyExitEnable, searchDisabled)
	}
	return NewAutomatic(model, bounds, defaultOnly, earlyExitEnable)
}
