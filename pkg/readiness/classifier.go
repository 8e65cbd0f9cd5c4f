// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package readiness classifies a cluster snapshot into a provisioning verdict. Classify is
// a pure function: same inputs, same verdict. All cluster access happens in the caller.
package readiness

import (
	"fmt"
	"strings"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/cluster"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
)

// Role identifies the function a pod plays inside a store release.
type Role string

const (
	// RoleDatabase is the store's database workload.
	RoleDatabase Role = "database"
	// RoleApp is the store's application workload.
	RoleApp Role = "app"
	// RoleJob is the one-shot setup job that initializes the store.
	RoleJob Role = "setup-job"
)

// RoleRule recognizes a role by pod name substring and names it for humans.
type RoleRule struct {
	Role          Role
	NameSubstring string
	DisplayName   string
}

// Rules is the ordered role table for one engine. Failure tie-breaking follows this
// order: database, app, setup job.
type Rules []RoleRule

// engineRules maps each supported engine to its role table.
var engineRules = map[store.Engine]Rules{
	store.EngineWooCommerce: {
		{Role: RoleDatabase, NameSubstring: "mysql", DisplayName: "MySQL"},
		{Role: RoleApp, NameSubstring: "wordpress", DisplayName: "WordPress"},
		{Role: RoleJob, NameSubstring: "woocommerce-setup", DisplayName: "Setup job"},
	},
	store.EngineMedusa: {
		{Role: RoleDatabase, NameSubstring: "postgres", DisplayName: "PostgreSQL"},
		{Role: RoleApp, NameSubstring: "medusa", DisplayName: "Medusa"},
		{Role: RoleJob, NameSubstring: "medusa-setup", DisplayName: "Setup job"},
	},
}

// RulesForEngine returns the role table for the given engine.
func RulesForEngine(engine store.Engine) (Rules, error) {
	rules, ok := engineRules[engine]
	if !ok {
		return nil, fmt.Errorf("no readiness rules for engine %q", engine)
	}
	return rules, nil
}

// Kind discriminates the verdict variants.
type Kind string

const (
	// KindReady means the store is fully provisioned and reachable.
	KindReady Kind = "Ready"
	// KindInProgress means provisioning has neither succeeded nor permanently failed.
	KindInProgress Kind = "InProgress"
	// KindFailed means provisioning has permanently failed.
	KindFailed Kind = "Failed"
)

// Verdict is the outcome of a classification: Ready(url), InProgress(status), or
// Failed(reason).
type Verdict struct {
	Kind Kind
	// URL is set iff Kind is Ready.
	URL string
	// Status is a human-readable progress summary, set iff Kind is InProgress.
	Status string
	// Reason is set iff Kind is Failed.
	Reason string
}

// Ready constructs a Ready verdict.
func Ready(url string) Verdict {
	return Verdict{Kind: KindReady, URL: url}
}

// InProgress constructs an InProgress verdict.
func InProgress(status string) Verdict {
	return Verdict{Kind: KindInProgress, Status: status}
}

// Failed constructs a Failed verdict.
func Failed(reason string) Verdict {
	return Verdict{Kind: KindFailed, Reason: reason}
}

// IngressLookup resolves the store's ingress host on demand. It is only consulted once
// all workload roles report success.
type IngressLookup func() (cluster.IngressHost, bool)

// Classify reduces the pod snapshots to a single verdict using the given role table.
//
// Tie-breaks, in order:
//  1. Any role in a fatal state fails the store, first failure in rule order wins.
//  2. All roles successful: resolve the ingress; absent ingress keeps the store
//     in progress (ingress objects often materialize after the workload pods).
//  3. Otherwise in progress, with a human-readable aggregation of each pod's state.
func Classify(rules Rules, pods []cluster.PodSnapshot, lookupIngress IngressLookup) Verdict {
	var (
		succeeded = map[Role]bool{}
		statuses  []string
	)

	for _, rule := range rules {
		matched := false

		for _, pod := range pods {
			if !strings.Contains(pod.Name, rule.NameSubstring) {
				continue
			}
			matched = true

			if reason := fatalReason(rule, pod); reason != "" {
				return Failed(fmt.Sprintf("%s: %s", rule.DisplayName, reason))
			}
			if roleSucceeded(rule.Role, pod) {
				succeeded[rule.Role] = true
			}

			statuses = append(statuses, podStatusLine(pod))
		}

		if !matched {
			statuses = append(statuses, fmt.Sprintf("%s: no pods found", rule.DisplayName))
		}
	}

	// Pods not matching any role never gate readiness, but they show up in the summary.
	for _, pod := range pods {
		if !matchesAny(rules, pod.Name) {
			statuses = append(statuses, podStatusLine(pod))
		}
	}

	if len(succeeded) == len(rules) {
		ingress, ok := lookupIngress()
		if !ok {
			return InProgress("waiting for ingress")
		}

		scheme := "http"
		if ingress.TLS {
			scheme = "https"
		}
		return Ready(fmt.Sprintf("%s://%s", scheme, ingress.Host))
	}

	return InProgress(strings.Join(statuses, " | "))
}

func matchesAny(rules Rules, podName string) bool {
	for _, rule := range rules {
		if strings.Contains(podName, rule.NameSubstring) {
			return true
		}
	}
	return false
}

// fatalReason returns a non-empty reason when the pod is in a permanently failed state
// for its role.
func fatalReason(rule RoleRule, pod cluster.PodSnapshot) string {
	if rule.Role == RoleJob {
		for _, container := range pod.Containers {
			if container.State.Terminated != nil && container.State.Terminated.ExitCode != 0 {
				return fmt.Sprintf("failed with exit code %d", container.State.Terminated.ExitCode)
			}
		}
		return ""
	}

	for _, container := range pod.Containers {
		if waiting := container.State.Waiting; waiting != nil {
			switch waiting.Reason {
			case "ImagePullBackOff", "ErrImagePull":
				return waiting.Reason
			case "CrashLoopBackOff":
				return fmt.Sprintf("CrashLoopBackOff (restarts: %d)", container.RestartCount)
			}
		}
		if terminated := container.State.Terminated; terminated != nil && terminated.ExitCode != 0 {
			return fmt.Sprintf("container terminated with exit code %d", terminated.ExitCode)
		}
	}

	return ""
}

// roleSucceeded evaluates the per-role success predicate: database and app pods must be
// Running with every container ready; the setup job must have exactly one container
// terminated with exit code zero.
func roleSucceeded(role Role, pod cluster.PodSnapshot) bool {
	if role == RoleJob {
		if len(pod.Containers) != 1 {
			return false
		}
		terminated := pod.Containers[0].State.Terminated
		return terminated != nil && terminated.ExitCode == 0
	}

	if pod.Phase != "Running" || len(pod.Containers) == 0 {
		return false
	}
	for _, container := range pod.Containers {
		if !container.Ready {
			return false
		}
	}
	return true
}

func podStatusLine(pod cluster.PodSnapshot) string {
	ready := 0
	for _, container := range pod.Containers {
		if container.Ready {
			ready++
		}
	}

	switch {
	case len(pod.Containers) == 1 && pod.Containers[0].State.Terminated != nil && pod.Containers[0].State.Terminated.ExitCode == 0:
		return fmt.Sprintf("%s: Completed", pod.Name)
	case pod.Phase == "Running" && ready == len(pod.Containers) && len(pod.Containers) > 0:
		return fmt.Sprintf("%s: Ready (%d/%d)", pod.Name, ready, len(pod.Containers))
	case pod.Phase == "Running":
		return fmt.Sprintf("%s: Running (%d/%d)", pod.Name, ready, len(pod.Containers))
	default:
		if reason := waitingReason(pod); reason != "" {
			return fmt.Sprintf("%s: %s", pod.Name, reason)
		}
		return fmt.Sprintf("%s: %s", pod.Name, pod.Phase)
	}
}

func waitingReason(pod cluster.PodSnapshot) string {
	for _, container := range pod.Containers {
		if container.State.Waiting != nil && container.State.Waiting.Reason != "" {
			return container.State.Waiting.Reason
		}
	}
	return ""
}
