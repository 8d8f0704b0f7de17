package orchestrator

import (
	"context"
	"fmt"

	"github.com/defilantech/modelsearch/internal/constraint"
	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/modelgen"
	"github.com/defilantech/modelsearch/internal/rungen"
	"github.com/defilantech/modelsearch/internal/searchconst"
	"github.com/defilantech/modelsearch/internal/store"
	"github.com/defilantech/modelsearch/internal/variant"
	"github.com/defilantech/modelsearch/pkg/profile"
)

// Orchestrator drives one rungen.Generator to completion, wiring every
// candidate RunConfig through variant naming, model repo materialization,
// the inference server, telemetry, and the harness, recording every
// measurement obtained into the Result Store.
//
// Grounded on original_source/model_analyzer/model_manager.py's run_models:
// the ensemble-incompatibility guard, the get_configs/execute/
// set_last_results loop, and the consecutive-miss abort.
type Orchestrator struct {
	Harness   Harness
	ModelRepo ModelRepoWriter
	ServerCtl ServerController
	Telemetry TelemetryMonitor
	Store     *store.Store

	// MaxRetries bounds how many times a StatusRetry result is re-executed
	// before the config is treated as a miss. Zero means
	// searchconst.DefaultMaxRetries.
	MaxRetries int

	names   *variant.Manager
	nextRun int
}

// New builds an Orchestrator wired to its external collaborators and
// backed by st for recorded measurements.
func New(h Harness, mr ModelRepoWriter, sc ServerController, tm TelemetryMonitor, st *store.Store) *Orchestrator {
	return &Orchestrator{
		Harness:   h,
		ModelRepo: mr,
		ServerCtl: sc,
		Telemetry: tm,
		Store:     st,
		names:     variant.NewManager(),
	}
}

// Run builds a run-config generator per opts and drives it to completion,
// or until ctx is cancelled. It returns a *ConfigError if the model set is
// incompatible, a *VariantGenerationError if a generated combo could not be
// materialized or, under Quick search, a model's instance_group count list
// is neither linear nor powers of two, a *FatalMeasurementDrought if
// searchconst.MaxConsecutiveMisses consecutive harness calls miss with no
// intervening success, or ctx.Err() on cancellation. A clean exhaustion of
// the generator returns nil.
func (o *Orchestrator) Run(ctx context.Context, opts rungen.Options) error {
	if err := checkEnsembleCompatibility(opts.Models); err != nil {
		return err
	}

	flags, err := mergeServerFlags(opts.Models)
	if err != nil {
		return err
	}
	if o.ServerCtl != nil {
		if err := o.ServerCtl.UpdateConfig(ctx, flags); err != nil {
			return fmt.Errorf("orchestrator: server config update failed: %w", err)
		}
		if err := o.ServerCtl.WaitReady(ctx); err != nil {
			return fmt.Errorf("orchestrator: server not ready: %w", err)
		}
	}

	gen, err := rungen.New(opts)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if _, isQuick := gen.(*rungen.Quick); isQuick {
		for _, m := range opts.Models {
			if mcp := m.ModelConfigParameters; mcp != nil && len(mcp.InstanceGroup) > 0 {
				if err := modelgen.ValidateCountSequence(m.ModelName, mcp.InstanceGroup[0].Count); err != nil {
					return &VariantGenerationError{ModelName: m.ModelName, Err: err}
				}
			}
		}
	}

	maxRetries := o.MaxRetries
	if maxRetries <= 0 {
		maxRetries = searchconst.DefaultMaxRetries
	}

	byName := make(map[string]*profile.ModelProfileSpec, len(opts.Models))
	for _, m := range opts.Models {
		byName[m.ModelName] = m
	}
	evaluator := buildEvaluator(opts.Models)

	consecutiveMisses := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rc, ok := gen.Next()
		if !ok {
			return nil
		}

		o.mintVariantNames(rc)
		if err := o.materialize(ctx, rc); err != nil {
			return err
		}

		m, err := o.measureWithRetry(ctx, rc, maxRetries)
		if err != nil {
			return err
		}
		gen.SetLastResults(m)

		if m == nil {
			consecutiveMisses++
			logger.Log.Warn("run config produced no measurement", "misses", consecutiveMisses, "variants", rc.VariantNames())
			if consecutiveMisses >= searchconst.MaxConsecutiveMisses {
				return &FatalMeasurementDrought{ConsecutiveMisses: consecutiveMisses}
			}
			continue
		}
		consecutiveMisses = 0

		o.scoreMeasurement(m, rc, byName, evaluator)

		o.nextRun++
		modelName := ""
		if len(rc.Variants) > 0 {
			modelName = rc.Variants[0].ModelName
		}
		o.Store.Add(m.VariantsKey(), fmt.Sprintf("run-%d", o.nextRun), modelName, m)
	}
}

// mintVariantNames fills in each of rc's variants' VariantName from the
// Orchestrator's variant.Manager, so the model repo write, the harness's
// MCM, and the Result Store key all agree on the name.
func (o *Orchestrator) mintVariantNames(rc rungen.RunConfig) {
	for i, v := range rc.Variants {
		rc.Variants[i].VariantName = o.names.GetVariantName(v.ModelName, v.Combo)
	}
}

// materialize writes every variant in rc to the model repository before it
// can be measured.
func (o *Orchestrator) materialize(ctx context.Context, rc rungen.RunConfig) error {
	if o.ModelRepo == nil {
		return nil
	}
	for _, v := range rc.Variants {
		if err := o.ModelRepo.WriteVariant(ctx, v.ModelName, v.VariantName, v.Combo); err != nil {
			return &VariantGenerationError{ModelName: v.ModelName, Err: err}
		}
	}
	return nil
}

// measureWithRetry executes rc, retrying on StatusRetry up to maxRetries
// times. It returns a nil measurement (not an error) when the harness
// reports StatusFail or exhausts its retries, matching the source's
// treatment of an invalid run as a miss rather than a fatal error.
func (o *Orchestrator) measureWithRetry(ctx context.Context, rc rungen.RunConfig, maxRetries int) (*measurement.RunConfigMeasurement, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if o.Telemetry != nil {
			if err := o.Telemetry.Start(ctx); err != nil {
				return nil, fmt.Errorf("orchestrator: telemetry start failed: %w", err)
			}
		}

		result, err := o.Harness.Execute(ctx, rc)

		if o.Telemetry != nil {
			if stopErr := o.Telemetry.Stop(ctx); stopErr != nil {
				logger.Log.Warn("telemetry stop failed", "err", stopErr)
			}
		}

		if err != nil {
			return nil, fmt.Errorf("orchestrator: harness execute failed: %w", err)
		}

		switch result.Status {
		case StatusOK:
			return result.Measurement, nil
		case StatusFail:
			return nil, nil
		case StatusRetry:
			logger.Log.Debug("retrying run config", "attempt", attempt+1, "max", maxRetries, "variants", rc.VariantNames())
			continue
		default:
			return nil, fmt.Errorf("orchestrator: unrecognized harness status %d", result.Status)
		}
	}
	return nil, nil
}

// buildEvaluator folds every model's declared Constraints into a
// constraint.Evaluator keyed by model name. Models that declare no
// constraints of their own are left to the Evaluator's global-default
// fallback (nil here, since the profile format has no run-wide default
// constraint set distinct from per-model ones).
func buildEvaluator(models []*profile.ModelProfileSpec) *constraint.Evaluator {
	perModel := make(map[string]constraint.Set, len(models))
	for _, m := range models {
		if len(m.Constraints) == 0 {
			continue
		}
		set := make(constraint.Set, len(m.Constraints))
		for tag, c := range m.Constraints {
			var b constraint.Bound
			if c.Min != nil {
				b.Min, b.HasMin = *c.Min, true
			}
			if c.Max != nil {
				b.Max, b.HasMax = *c.Max, true
			}
			set[tag] = b
		}
		perModel[m.ModelName] = set
	}
	return constraint.NewEvaluator(perModel, nil)
}

// scoreMeasurement installs the Evaluator and each variant's declared
// objective and model weighting onto m before it is stored, so
// IsPassingConstraints and Compare operate on the profile's real
// constraints and weights rather than the Evaluator-less/unweighted
// defaults.
func (o *Orchestrator) scoreMeasurement(m *measurement.RunConfigMeasurement, rc rungen.RunConfig, byName map[string]*profile.ModelProfileSpec, evaluator *constraint.Evaluator) {
	m.SetEvaluator(evaluator)

	mcms := m.ModelConfigMeasurements()
	weights := make([]float64, 0, len(rc.Variants))
	for i, v := range rc.Variants {
		model, ok := byName[v.ModelName]
		if !ok {
			continue
		}
		if i < len(mcms) {
			mcms[i].SetMetricWeighting(model.Objectives)
		}
		weights = append(weights, model.ModelWeighting)
	}
	m.SetModelConfigWeighting(weights)
}

// checkEnsembleCompatibility rejects profiling more than one top-level
// ensemble model concurrently, matching
// model_manager.py's _check_for_ensemble_model_incompatibility (composing
// sub-models are excluded from the count; they are not independently
// scheduled).
func checkEnsembleCompatibility(models []*profile.ModelProfileSpec) error {
	ensembleCount := 0
	var last *profile.ModelProfileSpec
	for _, m := range models {
		if m.IsComposing() {
			continue
		}
		if m.IsEnsemble() {
			ensembleCount++
			last = m
		}
	}
	if ensembleCount > 1 {
		return &ConfigError{
			ModelName: last.ModelName,
			Reason:    "at most one ensemble model may be profiled concurrently",
		}
	}
	return nil
}

// mergeServerFlags folds every top-level model's perf analyzer flags into
// one map, rejecting a key set to two different values by different models
// — they are applied to the same shared inference server and must agree.
func mergeServerFlags(models []*profile.ModelProfileSpec) (map[string]string, error) {
	merged := make(map[string]string)
	for _, m := range models {
		for k, v := range m.PerfAnalyzerFlags {
			if existing, ok := merged[k]; ok && existing != v {
				return nil, &ConfigError{
					ModelName: m.ModelName,
					Reason:    fmt.Sprintf("conflicting value for flag %q across concurrently profiled models", k),
				}
			}
			merged[k] = v
		}
	}
	return merged, nil
}
