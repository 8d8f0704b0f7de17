// Package store implements the Result Store (component F): a sorted,
// deduped, checkpointable container of (variant key -> measurements).
//
// Grounded on original_source/model_analyzer/result/result_manager.py and
// sorted_results.py: separate passing/failing sub-indexes kept sorted by
// the RCM comparator, with top_n falling back to failing results (with a
// warning) when fewer than n pass.
package store

import (
	"sort"
	"sync"

	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/measurement"
)

// entry is one stored RCM plus the fingerprints of the individual runs
// that have been merged into it.
type entry struct {
	key          string
	rcm          *measurement.RunConfigMeasurement
	fingerprints map[string]bool
	modelName    string
}

// Store holds every measured RunConfigMeasurement, keyed by variants key,
// with passing/failing entries tracked separately for fast top-N queries.
// Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	byKey    map[string]*entry
	passing  []*entry
	failing  []*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{byKey: make(map[string]*entry)}
}

// Add appends a measurement for the given variants key and run fingerprint.
// If the key already exists, fingerprint is recorded as an additional run
// merged into the existing entry rather than creating a duplicate.
func (s *Store) Add(key, fingerprint, modelName string, rcm *measurement.RunConfigMeasurement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byKey[key]; ok {
		e.fingerprints[fingerprint] = true
		e.rcm = rcm
		s.resort()
		return
	}

	e := &entry{
		key:          key,
		rcm:          rcm,
		fingerprints: map[string]bool{fingerprint: true},
		modelName:    modelName,
	}
	s.byKey[key] = e
	if rcm.IsPassingConstraints() {
		s.passing = append(s.passing, e)
	} else {
		s.failing = append(s.failing, e)
	}
	s.resort()
}

// Contains reports whether key has any stored measurement.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[key]
	return ok
}

// Get returns the RCM stored for key if fingerprint was one of the runs
// merged into it — used to skip duplicate runs (not duplicate variants).
func (s *Store) Get(key, fingerprint string) (*measurement.RunConfigMeasurement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byKey[key]
	if !ok || !e.fingerprints[fingerprint] {
		return nil, false
	}
	return e.rcm, true
}

// ModelNames returns the distinct model names with at least one stored
// entry, in no particular order.
func (s *Store) ModelNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, e := range s.byKey {
		seen[e.modelName] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

// resort keeps both sub-indexes ordered best-first by the RCM comparator.
// Called under s.mu.
func (s *Store) resort() {
	sort.SliceStable(s.passing, func(i, j int) bool {
		return s.passing[i].rcm.IsBetterThan(s.passing[j].rcm)
	})
	sort.SliceStable(s.failing, func(i, j int) bool {
		score, ok := s.failing[i].rcm.CompareConstraints(s.failing[j].rcm)
		if !ok {
			return false
		}
		return score < 0
	})
}

// TopN returns the n best RCMs for modelName (all models if modelName is
// ""). If passing results exist, only passing results are returned, even
// if fewer than n are available. Only when there are zero passing
// results does it fall back to returning up to n failing results
// (logging a warning either way that the request was not fully
// satisfied). n == -1 means "all". If includeDefault is set, the
// model's "<model>_config_default" entry is appended when not already
// present.
func (s *Store) TopN(n int, modelName string, includeDefault bool) []*measurement.RunConfigMeasurement {
	s.mu.Lock()
	defer s.mu.Unlock()

	passing := filterByModel(s.passing, modelName)
	if len(passing) == 0 {
		failing := filterByModel(s.failing, modelName)
		logger.Log.Warn("no passing configs satisfy constraints, showing failing configs instead", "requested", n, "model", modelName)
		out := rcmsOf(limit(failing, n))
		if includeDefault {
			out = ensureDefault(out, failing, modelName)
		}
		return out
	}

	if n != -1 && n > len(passing) {
		logger.Log.Warn("fewer passing configs than requested", "requested", n, "passing", len(passing), "model", modelName)
	}
	out := rcmsOf(limit(passing, n))
	if includeDefault {
		out = ensureDefault(out, passing, modelName)
	}
	return out
}

// limit returns entries[:n], or all of entries if n == -1 or n exceeds
// len(entries).
func limit(entries []*entry, n int) []*entry {
	if n == -1 || n > len(entries) {
		return entries
	}
	return entries[:n]
}

func filterByModel(entries []*entry, modelName string) []*entry {
	if modelName == "" {
		return entries
	}
	out := make([]*entry, 0, len(entries))
	for _, e := range entries {
		if e.modelName == modelName {
			out = append(out, e)
		}
	}
	return out
}

func rcmsOf(entries []*entry) []*measurement.RunConfigMeasurement {
	out := make([]*measurement.RunConfigMeasurement, len(entries))
	for i, e := range entries {
		out[i] = e.rcm
	}
	return out
}

func ensureDefault(selected []*measurement.RunConfigMeasurement, pool []*entry, modelName string) []*measurement.RunConfigMeasurement {
	defaultKey := modelName + "_config_default"
	for _, rcm := range selected {
		if rcm.VariantsKey() == defaultKey {
			return selected
		}
	}
	for _, e := range pool {
		if e.key == defaultKey {
			return append(selected, e.rcm)
		}
	}
	return selected
}

// Statistics summarizes pass/fail counts per model, per the result
// statistics supplement.
type Statistics struct {
	Passing int
	Failing int
	Total   int
}

// ModelStatistics returns Statistics for modelName across all stored
// entries.
func (s *Store) ModelStatistics(modelName string) Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	passing := len(filterByModel(s.passing, modelName))
	failing := len(filterByModel(s.failing, modelName))
	return Statistics{Passing: passing, Failing: failing, Total: passing + failing}
}
