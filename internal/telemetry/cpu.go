// CPUSampler parallels Sampler for CPUOnly profiles, reading host memory
// usage instead of shelling out to nvidia-smi.
package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/defilantech/modelsearch/internal/aggregator"
	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/orchestrator"
	"github.com/defilantech/modelsearch/internal/record"
)

// CPUSampler implements orchestrator.TelemetryMonitor for
// ModelProfileSpec.CPUOnly profiles, sampling host RAM usage from
// /proc/meminfo on the same start/ticker/stopChan schedule as Sampler.
type CPUSampler struct {
	Interval time.Duration

	reader func() (used, available float64, err error)

	mu       sync.Mutex
	samples  []record.Record
	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ orchestrator.TelemetryMonitor = (*CPUSampler)(nil)

// NewCPU builds a CPUSampler with the given poll interval, defaulting to
// one second when interval is zero.
func NewCPU(interval time.Duration) *CPUSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &CPUSampler{Interval: interval, reader: readProcMeminfo}
}

func (s *CPUSampler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.samples = nil
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sampleOnce()

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sampleOnce()
			}
		}
	}()
	return nil
}

func (s *CPUSampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	ch := s.stopChan
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	s.wg.Wait()
	return nil
}

// Records returns the host's used/available RAM records reduced across
// every sample collected since the last Start.
func (s *CPUSampler) Records() []record.Record {
	s.mu.Lock()
	raw := append([]record.Record(nil), s.samples...)
	s.mu.Unlock()

	bucketed := aggregator.Aggregate(raw)
	out := make([]record.Record, 0, len(bucketed.NonGPU))
	for _, r := range bucketed.NonGPU {
		out = append(out, r)
	}
	return out
}

func (s *CPUSampler) sampleOnce() {
	used, available, err := s.reader()
	if err != nil {
		logger.Log.Warn("cpu memory sample failed", "err", err)
		return
	}

	s.mu.Lock()
	s.samples = append(s.samples, record.CPUUsedRAMMB(used), record.CPUAvailableRAMMB(available))
	s.mu.Unlock()
}

// readProcMeminfo reads MemTotal/MemAvailable from /proc/meminfo and
// derives used RAM as total minus available, in megabytes.
func readProcMeminfo() (used, available float64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, fmt.Errorf("telemetry: open /proc/meminfo: %w", err)
	}
	defer f.Close()

	var totalKB, availableKB float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseMeminfoValue(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availableKB = parseMeminfoValue(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("telemetry: scan /proc/meminfo: %w", err)
	}

	availableMB := availableKB / 1024
	usedMB := (totalKB - availableKB) / 1024
	return usedMB, availableMB, nil
}

func parseMeminfoValue(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[1], 64)
	return v
}
