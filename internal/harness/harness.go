// Package harness implements the measurement harness reference adapter
// (§11.1): an HTTP client against an OpenAI/llama.cpp-style completions
// endpoint that drives one RunConfig's concurrent load, reduces the
// per-request timings to Records via internal/aggregator, and returns a
// RunConfigMeasurement.
//
// Grounded on the teacher's pkg/cli/benchmark.go /benchmark_stress.go
// request-timing loop: net/http with a shared *http.Client, sync/atomic
// counters across concurrent workers, and sort.Float64s + linear
// interpolation for latency percentiles.
package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/defilantech/modelsearch/internal/aggregator"
	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/orchestrator"
	"github.com/defilantech/modelsearch/internal/record"
	"github.com/defilantech/modelsearch/internal/rungen"
)

// Config holds the harness's request-shape and stability-window knobs.
type Config struct {
	// Endpoint is the base URL of the completions server (e.g.
	// "http://localhost:8080"); "/v1/chat/completions" is appended.
	Endpoint string

	Prompt    string
	MaxTokens int

	// RequestTimeout bounds a single HTTP call.
	RequestTimeout time.Duration

	// MeasurementWindows is the number of back-to-back load windows run
	// per variant before a measurement is accepted, mirroring
	// perf_analyzer's repeated-measurement stability check.
	MeasurementWindows int
	// WindowDuration is how long each window drives load for.
	WindowDuration time.Duration
	// StabilityPercentage is the max fractional spread between the
	// best and worst window's throughput tolerated before the
	// measurement is accepted as stable.
	StabilityPercentage float64

	// ErrorRateFailThreshold is the fraction of failed requests across
	// all windows above which Execute reports StatusFail.
	ErrorRateFailThreshold float64
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MeasurementWindows <= 0 {
		c.MeasurementWindows = 3
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = 5 * time.Second
	}
	if c.StabilityPercentage <= 0 {
		c.StabilityPercentage = 0.1
	}
	if c.ErrorRateFailThreshold <= 0 {
		c.ErrorRateFailThreshold = 0.5
	}
	if c.Prompt == "" {
		c.Prompt = "Explain what machine learning is in exactly three sentences."
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 50
	}
	return c
}

// HTTPHarness implements orchestrator.Harness against a single completions
// endpoint shared by every variant in a RunConfig.
type HTTPHarness struct {
	cfg    Config
	client *http.Client
}

// New builds an HTTPHarness from cfg, filling unset knobs with defaults.
func New(cfg Config) *HTTPHarness {
	cfg = cfg.withDefaults()
	return &HTTPHarness{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

var _ orchestrator.Harness = (*HTTPHarness)(nil)

// chatCompletionRequest mirrors the teacher's ChatCompletionRequest.
type chatCompletionRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse mirrors the teacher's ChatCompletionResponse,
// trimmed to the fields the harness reduces into Records.
type chatCompletionResponse struct {
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Execute drives rc's load against every variant's endpoint in turn,
// returning StatusOK with a populated measurement, or StatusFail when a
// variant completes no requests or its error rate exceeds the configured
// threshold. It does not return StatusRetry: throughput windows that never
// stabilize are logged and the measurement is still accepted.
func (h *HTTPHarness) Execute(ctx context.Context, rc rungen.RunConfig) (orchestrator.HarnessResult, error) {
	rcm := measurement.NewRCM(nil)

	for _, v := range rc.Variants {
		latenciesMs, completions, errs, err := h.runWindows(ctx, rc.Load)
		if err != nil {
			return orchestrator.HarnessResult{}, fmt.Errorf("harness: %w", err)
		}

		total := completions + errs
		if total == 0 {
			return orchestrator.HarnessResult{Status: orchestrator.StatusFail}, nil
		}
		if float64(errs)/float64(total) > h.cfg.ErrorRateFailThreshold {
			logger.Log.Warn("harness error rate over threshold", "variant", v.VariantName, "errors", errs, "total", total)
			return orchestrator.HarnessResult{Status: orchestrator.StatusFail}, nil
		}

		perfParams := map[string]interface{}{"concurrency": rc.Load}
		if rc.BatchSize > 0 {
			perfParams["batch_size"] = rc.BatchSize
		}

		mcm := measurement.NewMCM(v.VariantName, perfParams, recordsFrom(latenciesMs, completions, h.lastWindowSeconds()))
		rcm.AddModelConfigMeasurement(mcm)
	}

	return orchestrator.HarnessResult{Status: orchestrator.StatusOK, Measurement: rcm}, nil
}

func (h *HTTPHarness) lastWindowSeconds() float64 {
	return h.cfg.WindowDuration.Seconds()
}

// runWindows drives concurrency workers against the endpoint for
// MeasurementWindows back-to-back windows, returning every successful
// request's latency, the total completion count, and the total error
// count across all windows. It does not itself decide stable vs. retry —
// stability is surfaced to the caller implicitly via the spread of
// per-window throughput, logged as a warning when unstable (matching
// perf_analyzer's own behavior of accepting the last window's measurement
// even when the stability check times out).
func (h *HTTPHarness) runWindows(ctx context.Context, concurrency int) (latenciesMs []float64, completions, errs int64, err error) {
	if concurrency < 1 {
		concurrency = 1
	}

	throughputs := make([]float64, 0, h.cfg.MeasurementWindows)

	for w := 0; w < h.cfg.MeasurementWindows; w++ {
		lat, c, e, werr := h.runWindow(ctx, concurrency)
		if werr != nil {
			return nil, 0, 0, werr
		}
		latenciesMs = append(latenciesMs, lat...)
		completions += c
		errs += e
		throughputs = append(throughputs, float64(c)/h.cfg.WindowDuration.Seconds())
	}

	if !isStable(throughputs, h.cfg.StabilityPercentage) {
		logger.Log.Warn("harness throughput did not stabilize across measurement windows", "windows", throughputs)
	}

	return latenciesMs, completions, errs, nil
}

func isStable(throughputs []float64, pct float64) bool {
	if len(throughputs) == 0 {
		return false
	}
	min, max := throughputs[0], throughputs[0]
	for _, t := range throughputs[1:] {
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	if max == 0 {
		return true
	}
	return (max-min)/max <= pct
}

func (h *HTTPHarness) runWindow(ctx context.Context, concurrency int) (latenciesMs []float64, completions, errs int64, err error) {
	deadline := time.Now().Add(h.cfg.WindowDuration)

	var (
		mu  sync.Mutex
		lat []float64
		wg  sync.WaitGroup
		ok  int64
		bad int64
	)

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return
				default:
				}

				ms, reqErr := h.sendOne(ctx)
				if reqErr != nil {
					atomic.AddInt64(&bad, 1)
					continue
				}
				atomic.AddInt64(&ok, 1)
				mu.Lock()
				lat = append(lat, ms)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, 0, 0, ctx.Err()
	}
	return lat, ok, bad, nil
}

func (h *HTTPHarness) sendOne(ctx context.Context) (float64, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Messages:    []chatMessage{{Role: "user", Content: h.cfg.Prompt}},
		MaxTokens:   h.cfg.MaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	elapsed := time.Since(start)
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("harness: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, err
	}

	return float64(elapsed.Milliseconds()), nil
}

// recordsFrom reduces raw per-request latencies into the aggregator's
// standard tag set: p99/p90 latency and throughput (completions over the
// window duration).
func recordsFrom(latenciesMs []float64, completions int64, windowSeconds float64) []record.Record {
	sorted := append([]float64(nil), latenciesMs...)
	sort.Float64s(sorted)

	raw := []record.Record{
		record.Throughput(float64(completions) / windowSeconds),
	}
	if len(sorted) > 0 {
		raw = append(raw, record.LatencyP99(percentile(sorted, 99)))
		raw = append(raw, record.LatencyP90(percentile(sorted, 90)))
	}

	bucketed := aggregator.Aggregate(raw)
	out := make([]record.Record, 0, len(bucketed.NonGPU))
	for _, r := range bucketed.NonGPU {
		out = append(out, r)
	}
	return out
}

// percentile linearly interpolates the p-th percentile of sorted (already
// ascending) values, matching the teacher's percentile helper.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
