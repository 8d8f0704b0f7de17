// Package modelgen implements the Per-Model Config Generators (component
// H): the state machines that propose served-model config variants
// (instance group, max batch size, dynamic batching) for one model,
// independent of the inference-load values the loadsweep package
// proposes.
//
// Grounded on
// original_source/model_analyzer/config/generate/manual_model_config_generator.py
// (the Brute generator, for explicit or search-disabled parameter lists)
// and automatic_model_config_generator.py (the Automatic generator, for
// the nested instance-count/max-batch-size exponential sweep with
// plateau detection). Both share a common
// plateau/throughput-tracking base, mirroring the source's
// BaseModelConfigGenerator (not present in the retrieved corpus, so its
// shared behavior is inferred from what both concrete subclasses call).
package modelgen

import (
	"github.com/defilantech/modelsearch/internal/measurement"
)

// ParamCombo is one model config parameter combination, the same loosely
// typed shape the harness/modelrepo adapters consume (instance_group,
// max_batch_size, dynamic_batching keys).
type ParamCombo map[string]interface{}

// DefaultConfigParams is the empty combo meaning "use the model's served
// default config unmodified", mirroring DEFAULT_CONFIG_PARAMS.
var DefaultConfigParams = ParamCombo{}

// Generator is the pull-based protocol every per-model config generator
// implements: the caller repeatedly calls Next to get a config to try,
// measures it, and reports the result via SetLastResults before calling
// Next again.
type Generator interface {
	// Next returns the next param combo to measure, or ok=false when the
	// generator is exhausted.
	Next() (combo ParamCombo, ok bool)

	// SetLastResults reports the measurements obtained for the most
	// recently returned combo (one per concurrent run config it was part
	// of; nil entries are misses), used for plateau detection.
	SetLastResults(results []*measurement.RunConfigMeasurement)
}
