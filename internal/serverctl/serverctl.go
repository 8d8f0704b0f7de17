// Package serverctl implements the server lifecycle reference adapter
// (§11.2): an orchestrator.ServerController that reconfigures and waits on
// the Kubernetes Deployment fronting the inference server shared by every
// model under profiling.
//
// Grounded on internal/controller/inferenceservice_controller.go's
// constructDeployment (the "llama-server" container, its Args slice, and
// the readiness-probe-driven ready condition) and reconcileDeployment's
// get-then-update pattern against a sigs.k8s.io/controller-runtime
// client.Client.
package serverctl

import (
	"context"
	"fmt"
	"sort"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/defilantech/modelsearch/internal/logger"
	"github.com/defilantech/modelsearch/internal/orchestrator"
)

var _ orchestrator.ServerController = (*DeploymentServerController)(nil)

// DeploymentServerController implements orchestrator.ServerController
// against a single Deployment: UpdateConfig rewrites the named container's
// command-line flags and WaitReady polls the Deployment's status until
// every replica is ready.
type DeploymentServerController struct {
	Client client.Client

	Namespace      string
	DeploymentName string
	// ContainerName identifies which container in the pod template carries
	// the server's flags; defaults to "llama-server" to match the
	// Deployment this adapter was grounded on.
	ContainerName string

	// PollInterval and ReadyTimeout bound WaitReady's polling loop.
	PollInterval time.Duration
	ReadyTimeout time.Duration
}

func (c *DeploymentServerController) withDefaults() *DeploymentServerController {
	if c.ContainerName == "" {
		c.ContainerName = "llama-server"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 5 * time.Minute
	}
	return c
}

// UpdateConfig replaces each flag in flags within the server container's
// Args, keeping the args it does not manage and appending the "--flag
// value" pairs sorted by flag name for deterministic diffs, retrying on
// update conflicts the way a reconciler's own update step would.
func (c *DeploymentServerController) UpdateConfig(ctx context.Context, flags map[string]string) error {
	c = c.withDefaults()
	if len(flags) == 0 {
		return nil
	}

	return retry.RetryOnConflict(retry.DefaultBackoff, func() error {
		dep := &appsv1.Deployment{}
		key := types.NamespacedName{Namespace: c.Namespace, Name: c.DeploymentName}
		if err := c.Client.Get(ctx, key, dep); err != nil {
			return fmt.Errorf("serverctl: get deployment %s: %w", key, err)
		}

		containers := dep.Spec.Template.Spec.Containers
		idx := -1
		for i, ct := range containers {
			if ct.Name == c.ContainerName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("serverctl: deployment %s has no container named %q", key, c.ContainerName)
		}

		containers[idx].Args = mergeFlags(containers[idx].Args, flags)

		if err := c.Client.Update(ctx, dep); err != nil {
			return err
		}
		logger.Log.Info("server deployment reconfigured", "deployment", key.String(), "flags", flags)
		return nil
	})
}

// mergeFlags strips any existing "--key" / value pair whose key is present
// in flags, then appends the replacement pairs sorted by key.
func mergeFlags(args []string, flags map[string]string) []string {
	kept := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if isManagedFlag(args[i], flags) {
			if i+1 < len(args) && !isFlag(args[i+1]) {
				i++
			}
			continue
		}
		kept = append(kept, args[i])
	}

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kept = append(kept, "--"+k, flags[k])
	}
	return kept
}

func isFlag(s string) bool {
	return len(s) >= 2 && s[0] == '-' && s[1] == '-'
}

func isManagedFlag(arg string, flags map[string]string) bool {
	if !isFlag(arg) {
		return false
	}
	_, ok := flags[arg[2:]]
	return ok
}

// WaitReady polls the Deployment until its ready replica count matches the
// desired replica count, or ctx/ReadyTimeout elapses.
func (c *DeploymentServerController) WaitReady(ctx context.Context) error {
	c = c.withDefaults()
	key := types.NamespacedName{Namespace: c.Namespace, Name: c.DeploymentName}

	return wait.PollUntilContextTimeout(ctx, c.PollInterval, c.ReadyTimeout, true, func(ctx context.Context) (bool, error) {
		dep := &appsv1.Deployment{}
		if err := c.Client.Get(ctx, key, dep); err != nil {
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("serverctl: get deployment %s: %w", key, err)
		}

		desired := int32(1)
		if dep.Spec.Replicas != nil {
			desired = *dep.Spec.Replicas
		}

		ready := dep.Status.ReadyReplicas == desired && dep.Status.ObservedGeneration >= dep.Generation
		if !ready {
			logger.Log.Debug("waiting for server deployment to become ready", "deployment", key.String(), "readyReplicas", dep.Status.ReadyReplicas, "desired", desired)
		}
		return ready, nil
	})
}
