// Package variant implements the Variant Name Manager (component B):
// deterministic, dedup-safe naming of model config variants, keyed by a
// canonical string of the parameter combination (map keys sorted at every
// depth) applied to the base model.
//
// Grounded on
// original_source/model_analyzer/config/generate/model_variant_name_manager.py:
// the same base_model_name -> param_combo -> variant_name two-level map,
// translated from Python's deepcopy + frozenset hashable-key trick into an
// explicit canonicalize-then-stringify pass (sort map keys, recurse into
// nested maps/slices) since Go has no structural hashing of arbitrary
// values.
package variant

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Manager mints and remembers variant names for (base model, parameter
// combination) pairs. The same combination always yields the same name;
// distinct combinations for the same base model never collide. Manager is
// safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	names    map[string]map[string]string // base -> comboKey -> variant name
	counters map[string]int               // base -> next index
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		names:    make(map[string]map[string]string),
		counters: make(map[string]int),
	}
}

// GetVariantName returns the variant name for base model baseName under the
// given parameter combination. combo is typically a map[string]interface{}
// decoded from YAML/JSON, but any value accepted by canonicalKey works.
// Calling this repeatedly with the same (baseName, combo) always returns
// the same name.
//
// An empty/nil combo is treated as the base model's default configuration
// and always yields "<baseName>_config_default" without consuming an index
// — mirroring DEFAULT_CONFIG_PARAMS in the source, which is never added to
// the per-base index counter.
func (m *Manager) GetVariantName(baseName string, combo map[string]interface{}) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(combo) == 0 {
		return baseName + "_config_default"
	}

	key := canonicalKey(combo)
	if byCombo, ok := m.names[baseName]; ok {
		if name, ok := byCombo[key]; ok {
			return name
		}
	}
	return m.mint(baseName, key)
}

func (m *Manager) mint(baseName, key string) string {
	idx := m.counters[baseName]
	m.counters[baseName] = idx + 1
	name := fmt.Sprintf("%s_config_%d", baseName, idx)

	if m.names[baseName] == nil {
		m.names[baseName] = make(map[string]string)
	}
	m.names[baseName][key] = name
	return name
}

// Snapshot is the gob-serializable form of a Manager's state; Restore
// rebuilds a Manager from it with the same names and per-base counters.
type Snapshot struct {
	Names    map[string]map[string]string
	Counters map[string]int
}

// Snapshot captures the Manager's current state for checkpointing.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make(map[string]map[string]string, len(m.names))
	for base, combos := range m.names {
		copied := make(map[string]string, len(combos))
		for k, v := range combos {
			copied[k] = v
		}
		names[base] = copied
	}
	counters := make(map[string]int, len(m.counters))
	for base, n := range m.counters {
		counters[base] = n
	}
	return Snapshot{Names: names, Counters: counters}
}

// Restore replaces the Manager's state with a previously captured Snapshot.
func (m *Manager) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = s.Names
	m.counters = s.Counters
	if m.names == nil {
		m.names = make(map[string]map[string]string)
	}
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
}

// canonicalKey produces a deterministic string for any value built out of
// maps, slices, and scalars, regardless of map iteration order. List
// elements keep their order, so the same elements in a different order
// produce a different key. Two combinations that are structurally
// identical up to key order always produce the same key.
func canonicalKey(v interface{}) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(strconv.Quote(t))
	case nil:
		b.WriteString("null")
	default:
		fmt.Fprintf(b, "%v", t)
	}
}
