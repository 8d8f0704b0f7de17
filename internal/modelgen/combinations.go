package modelgen

import "github.com/defilantech/modelsearch/pkg/profile"

// axis is one independent dimension of a cartesian product: a config key
// paired with the list of values to try for it.
type axis struct {
	key    string
	values []interface{}
}

// nonMaxBatchSizeAxes builds the cartesian-product axes for every
// model_config_parameters field other than max_batch_size (which Brute
// generates along its own sub-axis, matching
// _determine_max_batch_sizes_and_param_combos popping it out first).
func nonMaxBatchSizeAxes(params *profile.ModelConfigParameters) []axis {
	var axes []axis

	if len(params.InstanceGroup) > 0 {
		var values []interface{}
		for _, ig := range params.InstanceGroup {
			if len(ig.Count) == 0 {
				values = append(values, ParamCombo{"kind": ig.Kind})
				continue
			}
			for _, count := range ig.Count {
				values = append(values, ParamCombo{"kind": ig.Kind, "count": count})
			}
		}
		if len(values) > 0 {
			axes = append(axes, axis{key: "instance_group", values: values})
		}
	}

	if params.DynamicBatching != nil && len(params.DynamicBatching.MaxQueueDelayMicroseconds) > 0 {
		var values []interface{}
		for _, delay := range params.DynamicBatching.MaxQueueDelayMicroseconds {
			values = append(values, map[string]interface{}{"max_queue_delay_microseconds": delay})
		}
		axes = append(axes, axis{key: "dynamic_batching", values: values})
	}

	return axes
}

// generateCombinations returns the cartesian product of axes as param
// combos, one key per axis. An empty axis list produces a single empty
// combo, matching generate_combinations({}) == [{}].
func generateCombinations(axes []axis) []ParamCombo {
	combos := []ParamCombo{{}}
	for _, a := range axes {
		var next []ParamCombo
		for _, combo := range combos {
			for _, v := range a.values {
				extended := make(ParamCombo, len(combo)+1)
				for k, cv := range combo {
					extended[k] = cv
				}
				if a.key == "instance_group" {
					extended[a.key] = []interface{}{v}
				} else {
					extended[a.key] = v
				}
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}
