// Package aggregator implements the Measurement Aggregator (component D):
// bucketing a flat list of harness records by tag (and, for GPU metrics,
// by device), then reducing each bucket to a single value per tag/device.
//
// Grounded on original_source/model_analyzer/record/record_aggregator.py
// (bucket-by-type + reduce_func) and metrics_manager.py's GPU-UUID-keyed
// grouping of GPU metrics ("Get metrics for model inference and combine
// metrics that do not have GPU UUID").
package aggregator

import (
	"github.com/defilantech/modelsearch/internal/record"
)

// Bucketed holds aggregator output: one reduced Record per non-GPU tag, and
// one reduced Record per (tag, device) pair for GPU tags.
type Bucketed struct {
	NonGPU map[string]record.Record            // tag -> reduced record
	GPU    map[string]map[string]record.Record // device -> tag -> reduced record
}

// Aggregate buckets records by tag (and device, for GPU records), applies
// the gpu_free_memory post-processing pass, and reduces each bucket to a
// single Record.
func Aggregate(records []record.Record) *Bucketed {
	byTag := make(map[string][]record.Record)
	byDeviceTag := make(map[string]map[string][]record.Record)

	for _, r := range records {
		if r.Device() == "" {
			byTag[r.Tag()] = append(byTag[r.Tag()], r)
			continue
		}
		if byDeviceTag[r.Device()] == nil {
			byDeviceTag[r.Device()] = make(map[string][]record.Record)
		}
		byDeviceTag[r.Device()][r.Tag()] = append(byDeviceTag[r.Device()][r.Tag()], r)
	}

	postProcessFreeMemory(byDeviceTag)

	out := &Bucketed{
		NonGPU: make(map[string]record.Record, len(byTag)),
		GPU:    make(map[string]map[string]record.Record, len(byDeviceTag)),
	}
	for tag, bucket := range byTag {
		out.NonGPU[tag] = reduce(bucket)
	}
	for device, byTagBucket := range byDeviceTag {
		reduced := make(map[string]record.Record, len(byTagBucket))
		for tag, bucket := range byTagBucket {
			reduced[tag] = reduce(bucket)
		}
		out.GPU[device] = reduced
	}
	return out
}

// postProcessFreeMemory subtracts each device's used-memory from its
// free-memory samples and drops any free-memory record whose device has no
// matching used-memory record — a free reading without a paired used
// reading cannot be corrected for driver/context overhead.
func postProcessFreeMemory(byDeviceTag map[string]map[string][]record.Record) {
	for device, byTagBucket := range byDeviceTag {
		freeRecords, hasFree := byTagBucket[record.TagGPUFreeMemory]
		usedRecords, hasUsed := byTagBucket[record.TagGPUUsedMemory]
		if !hasFree {
			continue
		}
		if !hasUsed || len(usedRecords) == 0 {
			delete(byTagBucket, record.TagGPUFreeMemory)
			if len(byTagBucket) == 0 {
				delete(byDeviceTag, device)
			}
			continue
		}

		used := reduce(usedRecords)
		adjusted := make([]record.Record, 0, len(freeRecords))
		for _, f := range freeRecords {
			corrected := record.New(record.TagGPUFreeMemory, f.Value()-used.Value()).WithDevice(f.Device())
			adjusted = append(adjusted, corrected)
		}
		byTagBucket[record.TagGPUFreeMemory] = adjusted
	}
}

// reduce collapses a bucket of same-tag records to a single representative
// value. Throughput/latency/utilization are reported as-is (a single
// harness run yields one sample per tag), so the reduction is "last
// write wins" in practice; multiple samples (e.g. periodic GPU polling)
// reduce via the tag's polarity — max for higher_better, min for
// lower_better — so the reduction always keeps the best-seen observation.
func reduce(bucket []record.Record) record.Record {
	best := bucket[0]
	for _, r := range bucket[1:] {
		if better, err := r.IsBetterThan(best); err == nil && better {
			best = r
		}
	}
	return best
}
