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

package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defilantech/modelsearch/internal/harness"
	"github.com/defilantech/modelsearch/internal/logger"
	metricspkg "github.com/defilantech/modelsearch/internal/metrics"
	"github.com/defilantech/modelsearch/internal/modelrepo"
	"github.com/defilantech/modelsearch/internal/orchestrator"
	"github.com/defilantech/modelsearch/internal/rungen"
	"github.com/defilantech/modelsearch/internal/searchspace"
	"github.com/defilantech/modelsearch/internal/serverctl"
	"github.com/defilantech/modelsearch/internal/store"
	"github.com/defilantech/modelsearch/internal/telemetry"
	"github.com/defilantech/modelsearch/pkg/profile"
	"github.com/defilantech/modelsearch/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
)

type sweepOptions struct {
	profilePath string
	mode        string

	namespace      string
	deploymentName string
	containerName  string

	endpoint  string
	prompt    string
	maxTokens int

	loads          []int
	batchSizes     []int
	requestRate    bool
	searchDisabled bool
	topN           int

	repoRoot string

	checkpointIn  string
	checkpointOut string

	reportMarkdown string
	reportJSON     string

	metricsAddr string
}

// NewSweepCommand builds the "sweep" command: it loads a profile document,
// wires the five reference adapters, and drives the Orchestrator to
// completion over the model set's derived search space.
func NewSweepCommand() *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Search a model's configuration space for its best-performing configs",
		Long: `sweep loads one or more model profiles from a YAML document, derives
each model's search space, and drives the inference server through every
candidate configuration, recording each measurement into the Result Store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.profilePath, "profile", "", "path to the model profile YAML document (required)")
	flags.StringVar(&opts.mode, "mode", "brute", "search mode: brute, quick, or optuna")

	flags.StringVar(&opts.namespace, "namespace", "default", "namespace of the inference server Deployment")
	flags.StringVar(&opts.deploymentName, "deployment", "", "name of the inference server Deployment (required)")
	flags.StringVar(&opts.containerName, "container", "llama-server", "name of the server container within the Deployment's pod template")

	flags.StringVar(&opts.endpoint, "endpoint", "http://localhost:8080", "base URL of the server's completions endpoint")
	flags.StringVar(&opts.prompt, "prompt", "Explain the theory of relativity in one paragraph.", "prompt sent to measure each config")
	flags.IntVar(&opts.maxTokens, "max-tokens", 128, "max_tokens requested per completion")

	flags.IntSliceVar(&opts.loads, "loads", nil, "explicit concurrency/request-rate values to sweep (brute mode)")
	flags.IntSliceVar(&opts.batchSizes, "batch-sizes", nil, "explicit batch sizes to sweep (brute mode)")
	flags.BoolVar(&opts.requestRate, "request-rate", false, "interpret --loads as request rates instead of concurrency")
	flags.BoolVar(&opts.searchDisabled, "no-search", false, "disable automatic search-space derivation; use only --loads/--batch-sizes")
	flags.IntVar(&opts.topN, "top-n", 3, "number of top configs to retain per model")

	flags.StringVar(&opts.repoRoot, "model-repo", "", "filesystem root the model repository writer materializes variants under (required)")

	flags.StringVar(&opts.checkpointIn, "resume", "", "path to a Result Store checkpoint to resume from")
	flags.StringVar(&opts.checkpointOut, "checkpoint", "", "path to write the Result Store checkpoint to after the sweep completes")

	flags.StringVar(&opts.reportMarkdown, "report", "", "path to write a Markdown summary report to")
	flags.StringVar(&opts.reportJSON, "report-json", "", "path to write a JSON summary report to")

	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090); unset disables metrics")

	return cmd
}

func runSweep(ctx context.Context, opts *sweepOptions) error {
	if opts.profilePath == "" {
		return fmt.Errorf("sweep: --profile is required")
	}
	if opts.deploymentName == "" {
		return fmt.Errorf("sweep: --deployment is required")
	}
	if opts.repoRoot == "" {
		return fmt.Errorf("sweep: --model-repo is required")
	}

	models, err := profile.Load(opts.profilePath)
	if err != nil {
		return fmt.Errorf("sweep: loading profile: %w", err)
	}

	if opts.metricsAddr != "" {
		if err := metricspkg.InitMetrics(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("sweep: initializing metrics: %w", err)
		}
		serveMetrics(opts.metricsAddr)
	}

	st := store.New()
	if opts.checkpointIn != "" {
		if err := st.Restore(opts.checkpointIn); err != nil {
			return fmt.Errorf("sweep: restoring checkpoint: %w", err)
		}
	}

	k8sClient, err := newDeploymentClient()
	if err != nil {
		return fmt.Errorf("sweep: building kubernetes client: %w", err)
	}

	sc := &serverctl.DeploymentServerController{
		Client:         k8sClient,
		Namespace:      opts.namespace,
		DeploymentName: opts.deploymentName,
		ContainerName:  opts.containerName,
	}

	h := harness.New(harness.Config{
		Endpoint:  opts.endpoint,
		Prompt:    opts.prompt,
		MaxTokens: opts.maxTokens,
	})

	mr := modelrepo.NewFSWriter(opts.repoRoot)

	if err := loadDefaultConfigs(models, opts.repoRoot); err != nil {
		return fmt.Errorf("sweep: loading default configs: %w", err)
	}

	tm := telemetryForModels(models)

	o := orchestrator.New(h, mr, sc, tm, st)

	runOpts := rungen.Options{
		Mode:              rungen.Mode(opts.mode),
		Models:            models,
		Bounds:            searchspace.DefaultBounds(),
		Loads:             opts.loads,
		BatchSizes:        opts.batchSizes,
		IsRequestRate:     opts.requestRate,
		SearchDisabled:    opts.searchDisabled,
		ExplicitLoadGiven: len(opts.loads) > 0,
		Store:             st,
		TopN:              opts.topN,
	}

	logger.Log.Info("starting sweep", "profile", opts.profilePath, "mode", opts.mode, "models", len(models))
	sweepErr := o.Run(ctx, runOpts)
	if sweepErr != nil {
		logger.Log.Error(sweepErr, "sweep did not complete cleanly")
	}

	if opts.checkpointOut != "" {
		if err := st.Checkpoint(opts.checkpointOut); err != nil {
			return fmt.Errorf("sweep: writing checkpoint: %w", err)
		}
	}

	if err := writeReports(st, opts); err != nil {
		return err
	}

	return sweepErr
}

// loadDefaultConfigs populates each model's default served configuration
// from the model repository's base config document, so
// SupportsBatching/IsEnsemble/SupportsDynamicBatching (consumed by
// internal/searchspace.Derive) reflect what's actually on disk before the
// search space is derived.
func loadDefaultConfigs(models []*profile.ModelProfileSpec, repoRoot string) error {
	for _, m := range models {
		cfg, err := modelrepo.ReadBaseConfig(repoRoot, m.ModelName)
		if err != nil {
			return err
		}
		m.SetDefaultConfig(cfg)
	}
	return nil
}

// telemetryForModels picks the GPU or CPU telemetry monitor depending on
// whether every model in the profile set is marked cpu_only. A mixed set
// falls back to GPU telemetry, since the GPU Sampler simply produces no
// records on a host with no GPUs.
func telemetryForModels(models []*profile.ModelProfileSpec) orchestrator.TelemetryMonitor {
	allCPU := len(models) > 0
	for _, m := range models {
		if !m.CPUOnly {
			allCPU = false
			break
		}
	}
	if allCPU {
		return telemetry.NewCPU(2 * time.Second)
	}
	return telemetry.New(2 * time.Second)
}

func writeReports(st *store.Store, opts *sweepOptions) error {
	if opts.reportMarkdown == "" && opts.reportJSON == "" {
		return nil
	}
	w := report.New(st, opts.topN)
	if opts.reportMarkdown != "" {
		if err := w.WriteMarkdown(opts.reportMarkdown); err != nil {
			return fmt.Errorf("sweep: writing markdown report: %w", err)
		}
	}
	if opts.reportJSON != "" {
		if err := w.WriteJSON(opts.reportJSON); err != nil {
			return fmt.Errorf("sweep: writing json report: %w", err)
		}
	}
	return nil
}

// newDeploymentClient builds a controller-runtime client against the
// client-go built-in scheme, which already registers apps/v1; the sweep
// engine patches an existing Deployment, never a custom resource.
func newDeploymentClient() (client.Client, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("getting kubeconfig: %w", err)
	}
	return client.New(cfg, client.Options{Scheme: scheme.Scheme})
}

// serveMetrics starts the Prometheus /metrics endpoint in the background.
// The CLI process owns this listener, not the engine.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Warn("metrics server stopped", "err", err)
		}
	}()
	logger.Log.Info("serving metrics", "addr", addr)
}
