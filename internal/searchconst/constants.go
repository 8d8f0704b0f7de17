// Package searchconst holds the small set of tunable constants the search
// engine's early-exit and comparison logic depends on. Kept in one file,
// mirroring the source's single model_analyzer/constants.py module, so the
// calibration knobs are easy to find and override in tests.
package searchconst

const (
	// CompareEpsilon is the absolute score magnitude below which two
	// RunConfigMeasurements compare as equal.
	CompareEpsilon = 1e-3

	// LoadSweepMinGain is the minimum fractional gain of the best-of-last-T
	// window over the first-of-last-T window required to keep sweeping.
	// Below this the sweep phase terminates early.
	LoadSweepMinGain = 0.05

	// LoadSweepMinSamples (T_min) is the minimum number of emitted sweep
	// measurements before gain-saturation early exit is considered.
	LoadSweepMinSamples = 4

	// MaxConsecutiveMisses (T_fail) is the number of consecutive harness
	// misses, with no single success, that aborts a profile run.
	MaxConsecutiveMisses = 2

	// PlateauThreshold is the minimum fractional improvement of throughput
	// step-over-step required to avoid declaring a plateau in the
	// per-model config generators (brute max-batch-size axis, automatic
	// nested loops).
	PlateauThreshold = 0.05

	// QuickMinInitNeighbors (M_init) is the minimum number of measured
	// neighbors before the Quick generator's state machine transitions
	// from initialize-neighborhood to step.
	QuickMinInitNeighbors = 4

	// QuickMaxHomeVisits is the number of times a coordinate may become
	// home before Quick search terminates, even if it keeps "winning".
	QuickMaxHomeVisits = 2

	// QuickDefaultRadius is the Neighborhood radius used for every
	// neighborhood except the one built right after a step-back.
	QuickDefaultRadius = 3

	// QuickSlowModeRadius is the radius forced after a step-back
	// (sticky-bit: home went from passing to failing).
	QuickSlowModeRadius = 1

	// OptunaMinTrials and OptunaMaxTrials bound the trial budget absent
	// explicit user overrides.
	OptunaMinTrials = 5
	OptunaMaxTrials = 200

	// OptunaMaxPctOfSpace bounds the trial budget as a percentage of the
	// total discrete search-space size.
	OptunaMaxPctOfSpace = 10.0

	// OptunaEarlyExitThreshold is the number of trials without a new best
	// that triggers early termination, once OptunaMinTrials has elapsed.
	OptunaEarlyExitThreshold = 10

	// OptunaNoMeasurementScore is the score assigned to a trial whose
	// harness call produced no measurement.
	OptunaNoMeasurementScore = -1.0

	// OptunaRandomStartupTrials is the number of trials sampled uniformly
	// at random before the Gaussian-fit proposal distribution takes over.
	OptunaRandomStartupTrials = 5

	// DefaultMaxRetries is the number of times the Orchestrator re-emits a
	// run config whose harness call returned a retryable status.
	DefaultMaxRetries = 3

	// DefaultTopN is the default number of passing configurations surfaced
	// per model when the caller does not specify a count.
	DefaultTopN = 3
)
