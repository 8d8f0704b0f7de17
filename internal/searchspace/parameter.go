// Package searchspace implements the Search-Space Parameters component
// (C): deriving, per model, a {param_name -> SearchParameter} map from a
// profile.ModelProfileSpec using the fixed five-rule precedence order.
//
// Grounded on
// original_source/model_analyzer/config/generate/search_parameter.py (the
// SearchParameter dataclass) and search_parameters.py (the population
// rules, exponential-vs-linear RCS parameter classification, and the
// min/max-or-enumerated-list dichotomy).
package searchspace

import "fmt"

// Usage classifies which layer of the system a parameter feeds: the served
// model's own config, the load-generation harness, or (unused today, kept
// for parity with the source) a build-time parameter.
type Usage int

const (
	UsageModel Usage = iota
	UsageRuntime
	UsageBuild
)

// Category classifies how a parameter's discrete values are described.
type Category int

const (
	CategoryInteger Category = iota
	CategoryExponential
	CategoryIntList
	CategoryStrList
)

// Parameter is one dimension of the search space.
type Parameter struct {
	Name     string
	Usage    Usage
	Category Category

	// MinRange/MaxRange apply to CategoryInteger/CategoryExponential. For
	// CategoryExponential these are log2 indices; the realized value at
	// index i is 2^i.
	MinRange int
	MaxRange int

	// EnumeratedList applies to CategoryIntList/CategoryStrList.
	EnumeratedList []interface{}
}

// Count returns how many discrete values this parameter contributes to the
// total search-space size.
func (p Parameter) Count() int {
	switch p.Category {
	case CategoryInteger, CategoryExponential:
		return p.MaxRange - p.MinRange + 1
	default:
		return len(p.EnumeratedList)
	}
}

// Realize returns the concrete value for index i within this parameter's
// range — 2^i for exponential, i itself for integer, and the i-th listed
// value for the list categories.
func (p Parameter) Realize(i int) (interface{}, error) {
	switch p.Category {
	case CategoryInteger:
		return i, nil
	case CategoryExponential:
		return 1 << uint(i), nil
	case CategoryIntList, CategoryStrList:
		idx := i - 0
		if idx < 0 || idx >= len(p.EnumeratedList) {
			return nil, fmt.Errorf("searchspace: index %d out of range for %q (%d values)", i, p.Name, len(p.EnumeratedList))
		}
		return p.EnumeratedList[idx], nil
	default:
		return nil, fmt.Errorf("searchspace: unknown category for %q", p.Name)
	}
}
