package searchspace

import (
	"fmt"
	"math"

	"github.com/defilantech/modelsearch/pkg/profile"
)

// RunConfigSearchBounds carries the min/max bounds used to derive a
// parameter range when the user has not supplied an explicit enumerated
// list — the Go equivalent of ConfigCommandProfile's
// run_config_search_min_*/max_* fields.
type RunConfigSearchBounds struct {
	MinConcurrency   int
	MaxConcurrency   int
	MinRequestRate   int
	MaxRequestRate   int
	MinModelBatch    int
	MaxModelBatch    int
	MinInstanceCount int
	MaxInstanceCount int
}

// DefaultBounds mirrors the source's ConfigCommandProfile defaults.
func DefaultBounds() RunConfigSearchBounds {
	return RunConfigSearchBounds{
		MinConcurrency:   1,
		MaxConcurrency:   1024,
		MinRequestRate:   1,
		MaxRequestRate:   1024,
		MinModelBatch:    1,
		MaxModelBatch:    128,
		MinInstanceCount: 1,
		MaxInstanceCount: 5,
	}
}

// Derive builds the {param_name -> Parameter} map for one model, in the
// fixed precedence order: runtime load, batch sizes, max batch size,
// instance group count, dynamic batching queue delay.
func Derive(spec *profile.ModelProfileSpec, bounds RunConfigSearchBounds) (map[string]Parameter, error) {
	out := make(map[string]Parameter)

	if err := populateRuntimeLoad(out, spec, bounds); err != nil {
		return nil, err
	}
	populateBatchSizes(out, spec)
	populateMaxBatchSize(out, spec, bounds)
	populateInstanceGroupCount(out, spec, bounds)
	populateMaxQueueDelay(out, spec)

	return out, nil
}

// TotalSize returns the product of every parameter's discrete count — the
// full cartesian size of the derived search space.
func TotalSize(params map[string]Parameter) int {
	total := 1
	for _, p := range params {
		total *= p.Count()
	}
	return total
}

// 1. Runtime load: exactly one of concurrency or request_rate.
func populateRuntimeLoad(out map[string]Parameter, spec *profile.ModelProfileSpec, bounds RunConfigSearchBounds) error {
	if spec.IsComposing() {
		// Composing (sub-)models inherit load from their parent's run
		// config rather than sweeping their own.
		return nil
	}

	if spec.IsRequestRateSpecified() {
		if len(spec.Parameters.RequestRate) > 0 {
			out["request_rate"] = intList("request_rate", UsageRuntime, spec.Parameters.RequestRate)
			return nil
		}
		out["request_rate"] = exponentialRange("request_rate", UsageRuntime, bounds.MinRequestRate, bounds.MaxRequestRate)
		return nil
	}

	if len(spec.Parameters.Concurrency) > 0 {
		out["concurrency"] = intList("concurrency", UsageRuntime, spec.Parameters.Concurrency)
		return nil
	}
	out["concurrency"] = exponentialRange("concurrency", UsageRuntime, bounds.MinConcurrency, bounds.MaxConcurrency)
	return nil
}

// 2. Batch sizes: a plain enumerated list, present only if the user set it.
func populateBatchSizes(out map[string]Parameter, spec *profile.ModelProfileSpec) {
	if len(spec.Parameters.BatchSizes) == 0 {
		return
	}
	out["batch_sizes"] = intList("batch_sizes", UsageRuntime, spec.Parameters.BatchSizes)
}

// 3. Max batch size: only if the model supports batching and is not a BLS
// composing model.
func populateMaxBatchSize(out map[string]Parameter, spec *profile.ModelProfileSpec, bounds RunConfigSearchBounds) {
	if !spec.SupportsBatching() || spec.IsComposing() {
		return
	}
	if mcp := spec.ModelConfigParameters; mcp != nil && len(mcp.MaxBatchSize) > 0 {
		out["max_batch_size"] = intList("max_batch_size", UsageModel, mcp.MaxBatchSize)
		return
	}
	out["max_batch_size"] = exponentialRange("max_batch_size", UsageModel, bounds.MinModelBatch, bounds.MaxModelBatch)
}

// 4. Instance group count: skipped entirely for ensemble models (their
// composing models carry their own instance groups).
func populateInstanceGroupCount(out map[string]Parameter, spec *profile.ModelProfileSpec, bounds RunConfigSearchBounds) {
	if spec.IsEnsemble() {
		return
	}
	if mcp := spec.ModelConfigParameters; mcp != nil && len(mcp.InstanceGroup) > 0 && len(mcp.InstanceGroup[0].Count) > 0 {
		out["instance_group"] = intList("instance_group", UsageModel, mcp.InstanceGroup[0].Count)
		return
	}
	out["instance_group"] = linearRange("instance_group", UsageModel, bounds.MinInstanceCount, bounds.MaxInstanceCount)
}

// 5. Dynamic batching queue delay: present only if explicitly configured;
// there is no run-config-search default range for it.
func populateMaxQueueDelay(out map[string]Parameter, spec *profile.ModelProfileSpec) {
	mcp := spec.ModelConfigParameters
	if mcp == nil || mcp.DynamicBatching == nil || len(mcp.DynamicBatching.MaxQueueDelayMicroseconds) == 0 {
		return
	}
	out["max_queue_delay_microseconds"] = intList("max_queue_delay_microseconds", UsageModel, mcp.DynamicBatching.MaxQueueDelayMicroseconds)
}

func intList(name string, usage Usage, values []int) Parameter {
	list := make([]interface{}, len(values))
	for i, v := range values {
		list[i] = v
	}
	return Parameter{Name: name, Usage: usage, Category: CategoryIntList, EnumeratedList: list}
}

func exponentialRange(name string, usage Usage, min, max int) Parameter {
	return Parameter{
		Name:     name,
		Usage:    usage,
		Category: CategoryExponential,
		MinRange: int(math.Log2(float64(min))),
		MaxRange: int(math.Log2(float64(max))),
	}
}

func linearRange(name string, usage Usage, min, max int) Parameter {
	return Parameter{Name: name, Usage: usage, Category: CategoryInteger, MinRange: min, MaxRange: max}
}

// Validate enforces the "exactly one of concurrency or request_rate"
// invariant at the derived-parameter level, used by tests and by the
// rungen Factory before committing to a strategy.
func Validate(params map[string]Parameter) error {
	_, hasConcurrency := params["concurrency"]
	_, hasRequestRate := params["request_rate"]
	if hasConcurrency && hasRequestRate {
		return fmt.Errorf("searchspace: concurrency and request_rate both present")
	}
	return nil
}
