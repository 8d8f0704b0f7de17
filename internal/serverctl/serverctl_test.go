package serverctl

import (
	"context"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = appsv1.AddToScheme(scheme)
	return scheme
}

func deploymentWithArgs(args []string, replicas, readyReplicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "srv", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: "llama-server", Args: args}},
				},
			},
		},
		Status: appsv1.DeploymentStatus{ReadyReplicas: readyReplicas},
	}
}

func TestUpdateConfigRewritesManagedFlags(t *testing.T) {
	dep := deploymentWithArgs([]string{"--model", "/models/m.gguf", "--port", "8080"}, 1, 1)
	cl := fake.NewClientBuilder().WithScheme(testScheme()).WithObjects(dep).Build()

	c := &DeploymentServerController{Client: cl, Namespace: "default", DeploymentName: "srv"}
	err := c.UpdateConfig(context.Background(), map[string]string{"batch-size": "32"})
	require.NoError(t, err)

	got := &appsv1.Deployment{}
	require.NoError(t, cl.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "srv"}, got))

	args := got.Spec.Template.Spec.Containers[0].Args
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "/models/m.gguf")
	assert.Contains(t, args, "--batch-size")
	assert.Contains(t, args, "32")
}

func TestUpdateConfigReplacesExistingManagedFlag(t *testing.T) {
	dep := deploymentWithArgs([]string{"--port", "8080", "--batch-size", "16"}, 1, 1)
	cl := fake.NewClientBuilder().WithScheme(testScheme()).WithObjects(dep).Build()

	c := &DeploymentServerController{Client: cl, Namespace: "default", DeploymentName: "srv"}
	err := c.UpdateConfig(context.Background(), map[string]string{"batch-size": "64"})
	require.NoError(t, err)

	got := &appsv1.Deployment{}
	require.NoError(t, cl.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "srv"}, got))
	args := got.Spec.Template.Spec.Containers[0].Args

	count := 0
	for i, a := range args {
		if a == "--batch-size" {
			count++
			require.Less(t, i+1, len(args))
			assert.Equal(t, "64", args[i+1])
		}
	}
	assert.Equal(t, 1, count)
}

func TestWaitReadySucceedsWhenReplicasReady(t *testing.T) {
	dep := deploymentWithArgs(nil, 2, 2)
	cl := fake.NewClientBuilder().WithScheme(testScheme()).WithObjects(dep).Build()

	c := &DeploymentServerController{Client: cl, Namespace: "default", DeploymentName: "srv", PollInterval: 10 * time.Millisecond, ReadyTimeout: time.Second}
	err := c.WaitReady(context.Background())
	assert.NoError(t, err)
}

func TestWaitReadyTimesOutWhenNotReady(t *testing.T) {
	dep := deploymentWithArgs(nil, 2, 0)
	cl := fake.NewClientBuilder().WithScheme(testScheme()).WithObjects(dep).Build()

	c := &DeploymentServerController{Client: cl, Namespace: "default", DeploymentName: "srv", PollInterval: 10 * time.Millisecond, ReadyTimeout: 50 * time.Millisecond}
	err := c.WaitReady(context.Background())
	assert.Error(t, err)
}
