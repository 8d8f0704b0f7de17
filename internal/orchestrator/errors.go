package orchestrator

import (
	"fmt"

	"github.com/defilantech/modelsearch/internal/searchconst"
)

// ConfigError reports a RunConfig the Orchestrator could not act on at
// all — an illegal combination (legal_combination check) or a collaborator
// setup failure (e.g. mismatched Triton server flags across concurrently
// profiled models), distinct from a single bad measurement.
type ConfigError struct {
	ModelName string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("orchestrator: config error for %q: %s", e.ModelName, e.Reason)
}

// VariantGenerationError reports a variant that could not be produced: a
// combo the model repo writer could not materialize, or an illegal
// instance_group count sequence caught by modelgen.ValidateCountSequence
// before Quick search starts.
type VariantGenerationError struct {
	ModelName string
	Err       error
}

func (e *VariantGenerationError) Error() string {
	return fmt.Sprintf("orchestrator: variant generation failed for %q: %v", e.ModelName, e.Err)
}

func (e *VariantGenerationError) Unwrap() error { return e.Err }

// FatalMeasurementDrought reports searchconst.MaxConsecutiveMisses
// consecutive harness misses with no intervening success, matching
// model_manager.py's INVALID_MEASUREMENT_THRESHOLD abort.
type FatalMeasurementDrought struct {
	ConsecutiveMisses int
}

func (e *FatalMeasurementDrought) Error() string {
	return fmt.Sprintf(
		"orchestrator: %d consecutive measurement attempts failed (threshold %d); check harness/server logs",
		e.ConsecutiveMisses, searchconst.MaxConsecutiveMisses,
	)
}
