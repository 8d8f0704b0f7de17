// Package loadsweep implements the Inference-Load Sweeper (component G): a
// stateful protocol that proposes concurrency or request-rate values to
// try, first sweeping by powers of two until throughput gain saturates,
// then binary-searching around the constraint-failure boundary if one was
// crossed.
//
// Grounded on original_source/model_analyzer/result/inference_load_search.py,
// which generalizes the older concurrency_search.py/parameter_search.py
// into a single concurrency-or-request-rate sweep.
package loadsweep

import (
	"math"

	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/searchconst"
)

// Phase names the Sweeper's current state.
type Phase int

const (
	PhaseSweep Phase = iota
	PhaseBinary
	PhaseDone
)

// DefaultMaxBinarySearchSteps mirrors DEFAULT_RUN_CONFIG_MAX_BINARY_SEARCH_STEPS.
const DefaultMaxBinarySearchSteps = 5

// Sweeper generates the next inference load (concurrency or request rate)
// to measure. The caller must call AddMeasurement for each value returned
// by Next before calling Next again — the sweep's early-exit and
// boundary-detection logic depends on measurements having been added in
// the same order the loads were yielded.
type Sweeper struct {
	isRequestRate   bool
	skipSweep       bool
	minLoadIndex    int
	maxLoadIndex    int
	maxBinarySteps  int
	sweepIndex      int
	phase           Phase
	binaryStepsUsed int
	loads           []int
	measurements    []*measurement.RunConfigMeasurement
	lastFailingLoad int
	lastPassingLoad int
}

// Config bounds the sweep range, expressed as the inclusive min/max load
// values (not their log2 indexes).
type Config struct {
	IsRequestRate        bool
	SkipSweep            bool
	MinLoad              int
	MaxLoad              int
	MaxBinarySearchSteps int
}

// New builds a Sweeper from cfg. MaxBinarySearchSteps defaults to
// DefaultMaxBinarySearchSteps when zero.
func New(cfg Config) *Sweeper {
	maxSteps := cfg.MaxBinarySearchSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxBinarySearchSteps
	}
	return &Sweeper{
		isRequestRate:  cfg.IsRequestRate,
		skipSweep:      cfg.SkipSweep,
		minLoadIndex:   int(math.Log2(float64(cfg.MinLoad))),
		maxLoadIndex:   int(math.Log2(float64(cfg.MaxLoad))),
		maxBinarySteps: maxSteps,
		sweepIndex:     -1,
	}
}

// AddMeasurement records the measurement for the most recently yielded
// load. Pass nil when the harness call failed to produce a usable
// measurement (a miss). Boundary detection skips a nil measurement: it
// counts as neither passing nor failing, so a miss never seeds the
// binary-search phase.
func (s *Sweeper) AddMeasurement(m *measurement.RunConfigMeasurement) {
	s.measurements = append(s.measurements, m)
}

// Next returns the next inference load to measure, or ok=false once the
// sweep (and any following binary search) is finished.
func (s *Sweeper) Next() (load int, ok bool) {
	switch s.phase {
	case PhaseSweep:
		return s.nextSweep()
	case PhaseBinary:
		return s.nextBinary()
	default:
		return 0, false
	}
}

func (s *Sweeper) nextSweep() (int, bool) {
	if s.sweepIndex+1 > s.maxLoadIndex-s.minLoadIndex {
		return s.endSweep()
	}

	if !s.shouldContinueSweep() {
		if !s.skipSweep {
			if s.isRequestRate {
				logger.Log.Info("terminating request rate sweep, throughput is decreasing")
			} else {
				logger.Log.Info("terminating concurrency sweep, throughput is decreasing")
			}
		}
		return s.endSweep()
	}

	s.sweepIndex++
	load := 1 << (s.minLoadIndex + s.sweepIndex)
	s.loads = append(s.loads, load)
	return load, true
}

func (s *Sweeper) endSweep() (int, bool) {
	s.phase = s.nextPhaseAfterSweep()
	if s.phase == PhaseBinary {
		return s.nextBinary()
	}
	return 0, false
}

// shouldContinueSweep mirrors _should_continue_inference_load_sweep: once
// minimum tries are reached, stop if the recent objective gain has
// saturated.
func (s *Sweeper) shouldContinueSweep() bool {
	if len(s.measurements) != len(s.loads) {
		panic("loadsweep: AddMeasurement must be called once for every load returned by Next before the next call")
	}
	if len(s.measurements) < searchconst.LoadSweepMinSamples {
		return true
	}
	return !s.hasObjectiveGainSaturated()
}

func (s *Sweeper) hasObjectiveGainSaturated() bool {
	return s.calculateGain() < searchconst.LoadSweepMinGain
}

func (s *Sweeper) calculateGain() float64 {
	n := len(s.measurements)
	first := s.measurements[n-searchconst.LoadSweepMinSamples]
	best := s.bestOfRecent()

	switch {
	case first == nil && best == nil:
		return 0
	case first == nil:
		return 1
	case best == nil:
		return -1
	default:
		// Positive means best improved over first (RunConfigMeasurement.Compare
		// returns positive when its receiver is the better measurement).
		return best.Compare(first)
	}
}

func (s *Sweeper) bestOfRecent() *measurement.RunConfigMeasurement {
	window := s.measurements[len(s.measurements)-searchconst.LoadSweepMinSamples:]
	var best *measurement.RunConfigMeasurement
	for _, m := range window {
		if m == nil {
			continue
		}
		if best == nil || m.IsBetterThan(best) {
			best = m
		}
	}
	return best
}

// nextPhaseAfterSweep decides whether a constraint boundary was crossed
// during the sweep and, if so, seeds the binary-search phase.
func (s *Sweeper) nextPhaseAfterSweep() Phase {
	if !s.wasConstraintViolated() {
		return PhaseDone
	}
	// Seed the binary search with the failing load already recorded by
	// wasConstraintViolated, matching _perform_binary_search appending
	// the last failing load before stepping.
	s.loads = append(s.loads, s.lastFailingLoad)
	return PhaseBinary
}

func (s *Sweeper) wasConstraintViolated() bool {
	for i := len(s.measurements) - 1; i >= 1; i-- {
		if s.atConstraintFailureBoundary(i) {
			s.lastFailingLoad = s.loads[i]
			s.lastPassingLoad = s.loads[i-1]
			return true
		}
	}

	if len(s.measurements) > 0 && s.measurements[0] != nil && !s.measurements[0].IsPassingConstraints() {
		s.lastFailingLoad = s.loads[0]
		s.lastPassingLoad = 0
		return true
	}
	return false
}

func (s *Sweeper) atConstraintFailureBoundary(index int) bool {
	if s.measurements[index] == nil || s.measurements[index-1] == nil {
		return false
	}
	return !s.measurements[index].IsPassingConstraints() && s.measurements[index-1].IsPassingConstraints()
}

func (s *Sweeper) nextBinary() (int, bool) {
	if s.binaryStepsUsed >= s.maxBinarySteps {
		s.phase = PhaseDone
		return 0, false
	}

	next := s.determineNextBinaryLoad()
	if next == s.loads[len(s.loads)-1] {
		s.phase = PhaseDone
		return 0, false
	}

	s.loads = append(s.loads, next)
	s.binaryStepsUsed++
	return next, true
}

func (s *Sweeper) determineNextBinaryLoad() int {
	last := s.measurements[len(s.measurements)-1]
	if last == nil {
		return 0
	}

	lastLoad := s.loads[len(s.loads)-1]
	if last.IsPassingConstraints() {
		s.lastPassingLoad = lastLoad
		return (s.lastFailingLoad + lastLoad) / 2
	}
	s.lastFailingLoad = lastLoad
	return (s.lastPassingLoad + lastLoad) / 2
}

// CurrentPhase returns the sweeper's current phase, for observability/logging.
func (s *Sweeper) CurrentPhase() Phase {
	return s.phase
}
