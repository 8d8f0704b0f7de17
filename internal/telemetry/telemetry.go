// Package telemetry implements the GPU telemetry reference adapter
// (§11.4): a background sampler that shells out to nvidia-smi on a fixed
// interval and exposes the collected samples as per-device
// internal/record.Records once stopped.
//
// Grounded on pkg/cli/benchmark_report.go's gpuMonitor: the same
// start/ticker/stopChan/WaitGroup sampling loop and the same nvidia-smi
// CSV query, extended with a uuid column so samples carry a device
// identity (Record.Device) instead of being pre-reduced across every GPU
// on the host — the report writer's own use case wants one number, but
// the engine's Aggregator needs per-device records to bucket and reduce
// on its own.
package telemetry

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/defilantech/modelsearch/internal/aggregator"
	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/orchestrator"
	"github.com/defilantech/modelsearch/internal/record"
)

// Sampler implements orchestrator.TelemetryMonitor, sampling every GPU on
// the host at Interval between Start and Stop.
type Sampler struct {
	Interval time.Duration

	// runner invokes nvidia-smi and returns its stdout; overridable in
	// tests to avoid depending on a real GPU.
	runner func(ctx context.Context) (string, error)

	mu       sync.Mutex
	samples  []record.Record
	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ orchestrator.TelemetryMonitor = (*Sampler)(nil)

// New builds a Sampler with the given poll interval, defaulting to one
// second when interval is zero.
func New(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{Interval: interval, runner: runNvidiaSMI}
}

// Start begins sampling in the background. It returns immediately; Stop
// must be called to end sampling and retrieve the collected records.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.samples = nil
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sampleOnce(ctx)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sampleOnce(ctx)
			}
		}
	}()
	return nil
}

// Stop ends the sampling loop and waits for it to exit. The collected
// records remain available via Records until the next Start.
func (s *Sampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	ch := s.stopChan
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	s.wg.Wait()
	return nil
}

// Records returns every device-tagged record collected since the last
// Start, reduced per device/tag via internal/aggregator.
func (s *Sampler) Records() []record.Record {
	s.mu.Lock()
	raw := append([]record.Record(nil), s.samples...)
	s.mu.Unlock()

	bucketed := aggregator.Aggregate(raw)
	out := make([]record.Record, 0, len(raw))
	for device, byTag := range bucketed.GPU {
		for _, r := range byTag {
			out = append(out, r.WithDevice(device))
		}
	}
	return out
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	output, err := s.runner(ctx)
	if err != nil {
		logger.Log.Warn("nvidia-smi sample failed", "err", err)
		return
	}
	recs := parseNvidiaSMI(output)

	s.mu.Lock()
	s.samples = append(s.samples, recs...)
	s.mu.Unlock()
}

func runNvidiaSMI(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=uuid,memory.used,memory.free,utilization.gpu,power.draw",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("telemetry: nvidia-smi: %w", err)
	}
	return string(out), nil
}

// parseNvidiaSMI parses nvidia-smi's CSV output (one line per device) into
// per-device Records tagged with the device's UUID.
func parseNvidiaSMI(output string) []record.Record {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	out := make([]record.Record, 0, len(lines)*4)

	for _, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			continue
		}
		uuid := strings.TrimSpace(fields[0])
		if uuid == "" {
			continue
		}

		if memUsed, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err == nil {
			out = append(out, record.GPUUsedMemoryMB(uuid, memUsed))
		}
		if len(fields) >= 3 {
			if memFree, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err == nil {
				out = append(out, record.GPUFreeMemoryMB(uuid, memFree*1e6))
			}
		}
		if len(fields) >= 4 {
			if util, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err == nil {
				out = append(out, record.GPUUtilizationPct(uuid, util))
			}
		}
		if len(fields) >= 5 {
			if power, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err == nil {
				out = append(out, record.GPUPowerUsageWatts(uuid, power))
			}
		}
	}
	return out
}
