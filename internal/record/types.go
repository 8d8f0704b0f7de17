package record

// kindInfo describes one registered tag: its fixed polarity and the header
// text a report writer would use for it.
type kindInfo struct {
	polarity Polarity
	header   string
}

// registry is the tag -> kindInfo table, populated by init() below. It
// stands in for the per-tag class hierarchy in record/types/*.py: each
// registration there (GPUUtilization.tag, CPUUsedRAM.tag, ...) becomes one
// entry here instead of one Go type.
var registry = map[string]kindInfo{}

func register(tag string, polarity Polarity, header string) {
	registry[tag] = kindInfo{polarity: polarity, header: header}
}

func lookupPolarity(tag string) (Polarity, bool) {
	info, ok := registry[tag]
	return info.polarity, ok
}

// Header returns the human-readable header for a registered tag, used by
// pkg/report. It returns the tag itself if unregistered.
func Header(tag string) string {
	if info, ok := registry[tag]; ok {
		return info.header
	}
	return tag
}

// Tags used throughout the engine. Grounded on original_source's
// record/types/*.py and record/*.py tag constants.
const (
	TagPerfThroughput         = "perf_throughput"
	TagPerfLatencyP99         = "perf_latency_p99"
	TagPerfLatencyP90         = "perf_latency_p90"
	TagPerfClientResponseWait = "perf_client_response_wait"
	TagPerfClientSendRecv     = "perf_client_send_recv"
	TagGPUUsedMemory          = "gpu_used_memory"
	TagGPUFreeMemory          = "gpu_free_memory"
	TagGPUUtilization         = "gpu_utilization"
	TagGPUPowerUsage          = "gpu_power_usage"
	TagCPUUsedRAM             = "cpu_used_ram"
	TagCPUAvailableRAM        = "cpu_available_ram"
)

func init() {
	// Throughput: bigger is better.
	register(TagPerfThroughput, HigherBetter, "Throughput (infer/sec)")

	// Latency percentiles and the two client-side wait breakdowns: smaller
	// is always better.
	register(TagPerfLatencyP99, LowerBetter, "p99 Latency (ms)")
	register(TagPerfLatencyP90, LowerBetter, "p90 Latency (ms)")
	register(TagPerfClientResponseWait, LowerBetter, "Client Response Wait (ms)")
	register(TagPerfClientSendRecv, LowerBetter, "Client Send/Recv (ms)")

	// GPU metrics.
	register(TagGPUUsedMemory, LowerBetter, "GPU Used Memory (MB)")
	register(TagGPUFreeMemory, HigherBetter, "GPU Free Memory (MB)")
	register(TagGPUUtilization, HigherBetter, "GPU Utilization (%)")
	register(TagGPUPowerUsage, LowerBetter, "GPU Power Usage (W)")

	// CPU (host) metrics, for CPU-only profiling runs.
	register(TagCPUUsedRAM, LowerBetter, "CPU RAM Usage (MB)")
	register(TagCPUAvailableRAM, HigherBetter, "CPU RAM Available (MB)")
}

// Throughput constructs a perf_throughput Record.
func Throughput(value float64) Record { return New(TagPerfThroughput, value) }

// LatencyP99 constructs a perf_latency_p99 Record.
func LatencyP99(value float64) Record { return New(TagPerfLatencyP99, value) }

// LatencyP90 constructs a perf_latency_p90 Record.
func LatencyP90(value float64) Record { return New(TagPerfLatencyP90, value) }

// ClientResponseWait constructs a perf_client_response_wait Record.
func ClientResponseWait(value float64) Record { return New(TagPerfClientResponseWait, value) }

// ClientSendRecv constructs a perf_client_send_recv Record.
func ClientSendRecv(value float64) Record { return New(TagPerfClientSendRecv, value) }

// GPUUsedMemoryMB constructs a gpu_used_memory Record, value in MB, scoped
// to a GPU device UUID.
func GPUUsedMemoryMB(device string, value float64) Record {
	return New(TagGPUUsedMemory, value).WithDevice(device)
}

// GPUFreeMemoryMB constructs a gpu_free_memory Record from a raw byte count,
// converting to MB the way gpu_free_memory.py divides nvml bytes by 1e6, and
// scopes it to a GPU device UUID.
func GPUFreeMemoryMB(device string, bytes float64) Record {
	return New(TagGPUFreeMemory, bytes/1e6).WithDevice(device)
}

// GPUUtilizationPct constructs a gpu_utilization Record scoped to a GPU
// device UUID.
func GPUUtilizationPct(device string, value float64) Record {
	return New(TagGPUUtilization, value).WithDevice(device)
}

// GPUPowerUsageWatts constructs a gpu_power_usage Record scoped to a GPU
// device UUID.
func GPUPowerUsageWatts(device string, value float64) Record {
	return New(TagGPUPowerUsage, value).WithDevice(device)
}

// CPUUsedRAMMB constructs a cpu_used_ram Record.
func CPUUsedRAMMB(value float64) Record { return New(TagCPUUsedRAM, value) }

// CPUAvailableRAMMB constructs a cpu_available_ram Record.
func CPUAvailableRAMMB(value float64) Record { return New(TagCPUAvailableRAM, value) }
