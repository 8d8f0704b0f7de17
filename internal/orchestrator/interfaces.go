// Package orchestrator implements the Orchestrator (component J): the
// engine's top-level workflow, driving a rungen.Generator against the
// external collaborators and recording every measurement into the Result
// Store.
//
// Grounded on original_source/model_analyzer/model_manager.py's
// run_models loop and analyzer.py's model-by-model iteration; the external
// collaborators it depends on (perf analyzer execution, Triton server
// lifecycle, model repository writes) are behind the interfaces declared
// here rather than imported concretely, so the engine never depends on
// internal/harness, internal/serverctl, or internal/modelrepo directly.
package orchestrator

import (
	"context"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/rungen"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// Status is the three-valued outcome of one harness invocation: a
// successful measurement, a retryable failure (timeout, connection reset),
// or a fatal-for-this-config failure the Orchestrator should record as a
// miss rather than retry.
//
// Supplemented from
// original_source/model_analyzer/perf_analyzer/perf_analyzer.py's
// exit-code/stability-window handling, re-architected as an explicit
// three-valued return rather than exceptions, per the expanded spec's
// "model as an explicit state machine" guidance.
type Status int

const (
	StatusOK Status = iota
	StatusRetry
	StatusFail
)

// HarnessResult is what one RunConfig execution produces.
type HarnessResult struct {
	Status      Status
	Measurement *measurement.RunConfigMeasurement
}

// Harness executes one RunConfig against the serving stack and returns a
// measurement, or a retry/fail status when the call could not produce one.
type Harness interface {
	Execute(ctx context.Context, rc rungen.RunConfig) (HarnessResult, error)
}

// ModelRepoWriter materializes a model's config variant into the serving
// stack's model repository before a RunConfig using it can be measured.
// variantName is minted by the Orchestrator via internal/variant.Manager
// before this call, so the same name is used by the harness's measurement
// and the Result Store key.
type ModelRepoWriter interface {
	WriteVariant(ctx context.Context, modelName, variantName string, combo map[string]interface{}) error
}

// ServerController starts, stops, and reconfigures the inference server
// between model runs (e.g. Triton server flags that must match across every
// model measured concurrently).
type ServerController interface {
	UpdateConfig(ctx context.Context, flags map[string]string) error
	WaitReady(ctx context.Context) error
}

// TelemetryMonitor samples device utilization/power/memory for the
// duration of one RunConfig's measurement window.
type TelemetryMonitor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ModelRun is one model to profile, mirroring ConfigModelProfileSpec's role
// in run_models.
type ModelRun struct {
	Spec *profile.ModelProfileSpec
}
