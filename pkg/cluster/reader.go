// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package cluster provides read-only access to the orchestrator. It never creates,
// updates, or deletes resources (that is the packager's job), and it never caches: every
// call reflects the live cluster state.
package cluster

import (
	"context"
	"fmt"

	"github.com/avast/retry-go"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const readAttempts = 2

// ContainerState is the discriminated state of a container: exactly one of Running,
// Waiting, or Terminated is set.
type ContainerState struct {
	Running    bool
	Waiting    *WaitingState
	Terminated *TerminatedState
}

// WaitingState carries the reason a container is waiting, e.g. ImagePullBackOff.
type WaitingState struct {
	Reason string
}

// TerminatedState carries the exit code of a terminated container.
type TerminatedState struct {
	ExitCode int32
}

// ContainerSnapshot is the point-in-time state of a single container.
type ContainerSnapshot struct {
	Name         string
	Ready        bool
	RestartCount int32
	State        ContainerState
}

// PodSnapshot is the point-in-time state of a pod, reduced to what the readiness
// classifier needs.
type PodSnapshot struct {
	Name       string
	Phase      corev1.PodPhase
	Containers []ContainerSnapshot
}

// IngressHost is the externally reachable host of an ingress and whether TLS is
// configured for it.
type IngressHost struct {
	Host string
	TLS  bool
}

// Reader performs read-only queries against the cluster.
type Reader struct {
	client kubernetes.Interface
	log    logr.Logger
}

// NewReader creates a Reader on top of the given clientset.
func NewReader(client kubernetes.Interface, log logr.Logger) *Reader {
	return &Reader{client: client, log: log.WithName("cluster")}
}

// RESTConfig loads the cluster connection config. A non-empty kubeconfig path takes
// precedence; otherwise the default loading rules apply (including in-cluster fallback
// handled by clientcmd).
func RESTConfig(kubeconfig string) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("loading cluster config: %w", err)
	}
	return config, nil
}

// NamespaceExists reports whether the given namespace exists.
func (r *Reader) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	err := retry.Do(
		func() error {
			_, err := r.client.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
			return err
		},
		retry.Attempts(readAttempts),
		retry.LastErrorOnly(true),
		// NotFound is a definitive answer, not a transient failure.
		retry.RetryIf(func(err error) bool { return !apierrors.IsNotFound(err) }),
	)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading namespace %s: %w", namespace, err)
	}
	return true, nil
}

// ListPods returns snapshots of all pods in the namespace.
func (r *Reader) ListPods(ctx context.Context, namespace string) ([]PodSnapshot, error) {
	var podList *corev1.PodList

	err := retry.Do(
		func() error {
			var err error
			podList, err = r.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
			return err
		},
		retry.Attempts(readAttempts),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}

	snapshots := make([]PodSnapshot, 0, len(podList.Items))
	for _, pod := range podList.Items {
		snapshots = append(snapshots, snapshotPod(&pod))
	}
	return snapshots, nil
}

// GetIngressHost resolves the first rule host of the named ingress. The second return
// value is false when the ingress does not exist or has no rules yet; both cases are
// expected while the workload is still materializing.
func (r *Reader) GetIngressHost(ctx context.Context, namespace, name string) (IngressHost, bool, error) {
	ingress, err := r.client.NetworkingV1().Ingresses(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return IngressHost{}, false, nil
		}
		return IngressHost{}, false, fmt.Errorf("reading ingress %s/%s: %w", namespace, name, err)
	}

	if len(ingress.Spec.Rules) == 0 || ingress.Spec.Rules[0].Host == "" {
		r.log.V(1).Info("Ingress has no rule host yet", "namespace", namespace, "ingress", name)
		return IngressHost{}, false, nil
	}

	return IngressHost{
		Host: ingress.Spec.Rules[0].Host,
		TLS:  len(ingress.Spec.TLS) > 0,
	}, true, nil
}

func snapshotPod(pod *corev1.Pod) PodSnapshot {
	snapshot := PodSnapshot{
		Name:       pod.Name,
		Phase:      pod.Status.Phase,
		Containers: make([]ContainerSnapshot, 0, len(pod.Status.ContainerStatuses)),
	}

	for _, status := range pod.Status.ContainerStatuses {
		container := ContainerSnapshot{
			Name:         status.Name,
			Ready:        status.Ready,
			RestartCount: status.RestartCount,
		}

		switch {
		case status.State.Running != nil:
			container.State.Running = true
		case status.State.Waiting != nil:
			container.State.Waiting = &WaitingState{Reason: status.State.Waiting.Reason}
		case status.State.Terminated != nil:
			container.State.Terminated = &TerminatedState{ExitCode: status.State.Terminated.ExitCode}
		}

		snapshot.Containers = append(snapshot.Containers, container)
	}

	return snapshot
}
