/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics registers Prometheus collectors for engine sweep
// progress: configs measured, configs skipped as duplicates, the current
// best score per model, and which phase of the search a model is in.
//
// Grounded on the sibling llm-d-incubation/inferno-autoscaler repo's
// internal/metrics/metrics.go: package-level collector vars guarded by a
// sync.Once-driven InitMetrics(registry) rather than the teacher's own
// package init() + a fixed ctrlmetrics.Registry, since the engine is a CLI
// tool that may or may not run alongside a controller-runtime manager and
// needs to choose its registry (or skip registration entirely when
// --metrics-addr is unset) at startup instead of at import time.
package metrics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	maxLabelLength = 128
	unknownLabel   = "unknown"
)

var (
	configsMeasuredTotal *prometheus.CounterVec
	configsSkippedTotal  *prometheus.CounterVec
	bestScore            *prometheus.GaugeVec
	sweepPhase           *prometheus.GaugeVec
	sweepDuration        *prometheus.HistogramVec

	initOnce sync.Once
	initErr  error
)

// sanitizeLabel trims, defaults empty values to "unknown", and truncates
// overlong values, matching inferno-autoscaler's own sanitizeLabel.
func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return unknownLabel
	}
	if len(value) > maxLabelLength {
		return value[:maxLabelLength]
	}
	return value
}

// InitMetrics registers every collector with registry exactly once,
// regardless of how many times it is called. Safe for concurrent use.
func InitMetrics(registry prometheus.Registerer) error {
	initOnce.Do(func() {
		configsMeasuredTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelsearch_configs_measured_total",
				Help: "Total number of run configs successfully measured.",
			},
			[]string{"model"},
		)
		configsSkippedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelsearch_configs_skipped_total",
				Help: "Total number of candidate run configs skipped as duplicates of an already-measured config.",
			},
			[]string{"model"},
		)
		bestScore = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modelsearch_best_score",
				Help: "Best objective score observed so far for a model's passing configs.",
			},
			[]string{"model"},
		)
		sweepPhase = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modelsearch_sweep_phase",
				Help: "Sweep phase of a model: 1 for the phase it is in, 0 for a phase it has left.",
			},
			[]string{"model", "phase"},
		)
		sweepDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelsearch_sweep_duration_seconds",
				Help:    "Duration of a full sweep across one model's search space.",
				Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10s to ~20480s
			},
			[]string{"model"},
		)

		for _, c := range []prometheus.Collector{
			configsMeasuredTotal, configsSkippedTotal, bestScore, sweepPhase, sweepDuration,
		} {
			if err := registry.Register(c); err != nil {
				initErr = fmt.Errorf("metrics: register collector: %w", err)
				return
			}
		}
	})
	return initErr
}

// Emitter records sweep-progress observations against the collectors
// installed by InitMetrics.
type Emitter struct{}

// NewEmitter builds an Emitter. InitMetrics must have been called first.
func NewEmitter() *Emitter { return &Emitter{} }

// ConfigMeasured increments the measured-configs counter for model.
func (e *Emitter) ConfigMeasured(model string) error {
	if configsMeasuredTotal == nil {
		return fmt.Errorf("metrics: not initialized")
	}
	configsMeasuredTotal.WithLabelValues(sanitizeLabel(model)).Inc()
	return nil
}

// ConfigSkipped increments the skipped-as-duplicate counter for model.
func (e *Emitter) ConfigSkipped(model string) error {
	if configsSkippedTotal == nil {
		return fmt.Errorf("metrics: not initialized")
	}
	configsSkippedTotal.WithLabelValues(sanitizeLabel(model)).Inc()
	return nil
}

// BestScore sets the current best objective score for model.
func (e *Emitter) BestScore(model string, score float64) error {
	if bestScore == nil {
		return fmt.Errorf("metrics: not initialized")
	}
	bestScore.WithLabelValues(sanitizeLabel(model)).Set(score)
	return nil
}

// SweepPhase records model as currently in phase and, when previousPhase
// is non-empty and differs from phase, sets previousPhase back to 0. Other
// phases set earlier for model are left as they are.
func (e *Emitter) SweepPhase(model string, phase string, previousPhase string) error {
	if sweepPhase == nil {
		return fmt.Errorf("metrics: not initialized")
	}
	m := sanitizeLabel(model)
	if previousPhase != "" && previousPhase != phase {
		sweepPhase.WithLabelValues(m, sanitizeLabel(previousPhase)).Set(0)
	}
	sweepPhase.WithLabelValues(m, sanitizeLabel(phase)).Set(1)
	return nil
}

// SweepDuration observes how long a full sweep over model's search space
// took.
func (e *Emitter) SweepDuration(model string, seconds float64) error {
	if sweepDuration == nil {
		return fmt.Errorf("metrics: not initialized")
	}
	sweepDuration.WithLabelValues(sanitizeLabel(model)).Observe(seconds)
	return nil
}
