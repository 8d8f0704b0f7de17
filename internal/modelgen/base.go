package modelgen

import (
	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/record"
	"github.com/defilantech/modelsearch/internal/searchconst"
)

// base holds the plateau/throughput-tracking state and helpers shared by
// Brute and Automatic, standing in for the source's
// BaseModelConfigGenerator.
type base struct {
	modelName               string
	defaultOnly             bool
	earlyExitEnable         bool
	maxBatchSizeThroughputs []float64
	lastResults             []*measurement.RunConfigMeasurement
}

func newBase(modelName string, defaultOnly, earlyExitEnable bool) base {
	return base{modelName: modelName, defaultOnly: defaultOnly, earlyExitEnable: earlyExitEnable}
}

// resetMaxBatchSize clears the throughput history kept across one
// max-batch-size axis walk, called whenever that axis restarts (after a
// step on the outer axis, or at generator construction).
func (b *base) resetMaxBatchSize() {
	b.maxBatchSizeThroughputs = nil
}

// recordLastResults appends the max throughput across results (if any
// was measurable) to the max-batch-size throughput history, mirroring
// _step_max_batch_size's "last_max_throughput" bookkeeping, and retains
// results itself for the erroneous-results check.
func (b *base) recordLastResults(results []*measurement.RunConfigMeasurement) {
	b.lastResults = results
	if v, ok := getMaxThroughput(results); ok {
		b.maxBatchSizeThroughputs = append(b.maxBatchSizeThroughputs, v)
	}
}

func getMaxThroughput(results []*measurement.RunConfigMeasurement) (float64, bool) {
	best := 0.0
	found := false
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, mcm := range r.ModelConfigMeasurements() {
			if v, ok := mcm.GetMetric(record.TagPerfThroughput); ok {
				if !found || v.Value() > best {
					best = v.Value()
					found = true
				}
			}
		}
	}
	return best, found
}

// lastResultsErroneous reports whether every result for the last combo
// was a miss.
func (b *base) lastResultsErroneous() bool {
	for _, r := range b.lastResults {
		if r != nil {
			return false
		}
	}
	return true
}

// lastResultsIncreasedThroughput reports whether the most recent
// max-batch-size throughput sample improved over the previous one by at
// least PlateauThreshold. With fewer than two samples there is nothing to
// compare yet, so the walk continues.
func (b *base) lastResultsIncreasedThroughput() bool {
	n := len(b.maxBatchSizeThroughputs)
	if n < 2 {
		return true
	}
	prev := b.maxBatchSizeThroughputs[n-2]
	last := b.maxBatchSizeThroughputs[n-1]
	if prev <= 0 {
		return true
	}
	return (last-prev)/prev >= searchconst.PlateauThreshold
}

func (b *base) printMaxBatchSizePlateauWarning() {
	logger.Log.Info("throughput plateaued on max_batch_size axis, moving to next instance count", "model", b.modelName)
}
