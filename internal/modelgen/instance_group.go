package modelgen

import "fmt"

// ExtractInstanceGroupKind returns the KIND_CPU/KIND_GPU value declared in
// a param combo's instance_group entry, tolerating both the flat shape (a
// []interface{} of map[string]interface{}) and the doubly-nested shape (a
// []interface{} whose first element is itself a []interface{} of maps) a
// profile document's YAML may unmarshal into once round-tripped through a
// generic map[string]interface{}. Returns "" if params has no
// instance_group, matching original_source's
// test_extract_instance_group_kind.py fixtures.
func ExtractInstanceGroupKind(params map[string]interface{}) string {
	if params == nil {
		return ""
	}
	raw, ok := params["instance_group"]
	if !ok {
		return ""
	}

	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return ""
	}

	first := list[0]
	if nested, ok := first.([]interface{}); ok {
		if len(nested) == 0 {
			return ""
		}
		first = nested[0]
	}

	entry, ok := first.(map[string]interface{})
	if !ok {
		return ""
	}
	kind, _ := entry["kind"].(string)
	return kind
}

// IllegalSequenceError reports that an explicit instance_group count list
// is neither a contiguous linear sequence nor a powers-of-two sequence,
// which Quick search's SearchDimension construction requires.
type IllegalSequenceError struct {
	ModelName string
	Counts    []int
}

func (e *IllegalSequenceError) Error() string {
	return fmt.Sprintf("model %q: instance_group count sequence %v is neither linear nor powers-of-two", e.ModelName, e.Counts)
}

// ValidateCountSequence checks that counts (already in the order given by
// the profile document) forms either a contiguous ascending linear
// sequence (n, n+1, n+2, ...) or an ascending powers-of-two sequence (n,
// 2n, 4n, ...), returning an *IllegalSequenceError otherwise. A list of
// zero or one elements is always legal.
func ValidateCountSequence(modelName string, counts []int) error {
	if len(counts) < 2 {
		return nil
	}

	linear := true
	powersOfTwo := true
	for i := 1; i < len(counts); i++ {
		if counts[i] != counts[i-1]+1 {
			linear = false
		}
		if counts[i] != counts[i-1]*2 {
			powersOfTwo = false
		}
	}

	if linear || powersOfTwo {
		return nil
	}
	return &IllegalSequenceError{ModelName: modelName, Counts: counts}
}
