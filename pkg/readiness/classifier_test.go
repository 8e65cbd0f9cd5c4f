// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package readiness_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/cluster"
	. "github.com/Hardik-Jain1/store-provisioning-platform/pkg/readiness"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
)

func runningPod(name string) cluster.PodSnapshot {
	return cluster.PodSnapshot{
		Name:  name,
		Phase: corev1.PodRunning,
		Containers: []cluster.ContainerSnapshot{{
			Name:  "main",
			Ready: true,
			State: cluster.ContainerState{Running: true},
		}},
	}
}

func pendingPod(name string) cluster.PodSnapshot {
	return cluster.PodSnapshot{
		Name:  name,
		Phase: corev1.PodPending,
		Containers: []cluster.ContainerSnapshot{{
			Name:  "main",
			State: cluster.ContainerState{Waiting: &cluster.WaitingState{Reason: "ContainerCreating"}},
		}},
	}
}

func waitingPod(name, reason string, restarts int32) cluster.PodSnapshot {
	return cluster.PodSnapshot{
		Name:  name,
		Phase: corev1.PodPending,
		Containers: []cluster.ContainerSnapshot{{
			Name:         "main",
			RestartCount: restarts,
			State:        cluster.ContainerState{Waiting: &cluster.WaitingState{Reason: reason}},
		}},
	}
}

func terminatedPod(name string, exitCode int32) cluster.PodSnapshot {
	phase := corev1.PodSucceeded
	if exitCode != 0 {
		phase = corev1.PodFailed
	}
	return cluster.PodSnapshot{
		Name:  name,
		Phase: phase,
		Containers: []cluster.ContainerSnapshot{{
			Name:  "main",
			State: cluster.ContainerState{Terminated: &cluster.TerminatedState{ExitCode: exitCode}},
		}},
	}
}

var _ = Describe("Classify", func() {
	var (
		rules Rules

		ingressPresent = func() (cluster.IngressHost, bool) {
			return cluster.IngressHost{Host: "shop1.localhost"}, true
		}
		ingressAbsent = func() (cluster.IngressHost, bool) {
			return cluster.IngressHost{}, false
		}
	)

	BeforeEach(func() {
		var err error
		rules, err = RulesForEngine(store.EngineWooCommerce)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("#RulesForEngine", func() {
		It("should reject an unknown engine", func() {
			_, err := RulesForEngine(store.Engine("shopify"))
			Expect(err).To(MatchError(ContainSubstring("no readiness rules")))
		})

		It("should order roles database, app, setup job", func() {
			Expect(rules).To(HaveLen(3))
			Expect(rules[0].Role).To(Equal(RoleDatabase))
			Expect(rules[1].Role).To(Equal(RoleApp))
			Expect(rules[2].Role).To(Equal(RoleJob))
		})
	})

	Context("happy path", func() {
		It("should be ready when all roles succeed and the ingress resolves", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 0),
			}, ingressPresent)

			Expect(verdict.Kind).To(Equal(KindReady))
			Expect(verdict.URL).To(Equal("http://shop1.localhost"))
		})

		It("should use https when the ingress has TLS", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 0),
			}, func() (cluster.IngressHost, bool) {
				return cluster.IngressHost{Host: "shop1.localhost", TLS: true}, true
			})

			Expect(verdict.Kind).To(Equal(KindReady))
			Expect(verdict.URL).To(Equal("https://shop1.localhost"))
		})

		It("should stay in progress while the ingress is absent", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 0),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
			Expect(verdict.Status).To(Equal("waiting for ingress"))
		})
	})

	Context("fatal states", func() {
		It("should fail the store on an app image pull backoff", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				waitingPod("shop1-abcd1234-wordpress-7d9f", "ImagePullBackOff", 0),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(Equal("WordPress: ImagePullBackOff"))
		})

		It("should fail the store on ErrImagePull", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				waitingPod("shop1-abcd1234-mysql-0", "ErrImagePull", 0),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(Equal("MySQL: ErrImagePull"))
		})

		It("should fail the store on a crash loop including the restart count", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				waitingPod("shop1-abcd1234-mysql-0", "CrashLoopBackOff", 7),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(Equal("MySQL: CrashLoopBackOff (restarts: 7)"))
		})

		It("should fail the store when the setup job exits non-zero", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 2),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(Equal("Setup job: failed with exit code 2"))
		})

		It("should fail the store when a workload container terminates non-zero", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				terminatedPod("shop1-abcd1234-mysql-0", 137),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(Equal("MySQL: container terminated with exit code 137"))
		})

		It("should break failure ties in role order", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				waitingPod("shop1-abcd1234-wordpress-7d9f", "ImagePullBackOff", 0),
				waitingPod("shop1-abcd1234-mysql-0", "CrashLoopBackOff", 2),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(HavePrefix("MySQL:"))
		})

		It("should not treat a transient waiting reason as fatal", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				waitingPod("shop1-abcd1234-mysql-0", "ContainerCreating", 0),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
		})
	})

	Context("in progress", func() {
		It("should stay in progress on a perpetually pending pod", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				pendingPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 0),
			}, ingressPresent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
			Expect(verdict.Status).To(ContainSubstring("shop1-abcd1234-wordpress-7d9f: ContainerCreating"))
		})

		It("should report missing roles by display name", func() {
			verdict := Classify(rules, nil, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
			Expect(verdict.Status).To(Equal("MySQL: no pods found | WordPress: no pods found | Setup job: no pods found"))
		})

		It("should join per-pod status lines with a pipe", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				pendingPod("shop1-abcd1234-wordpress-7d9f"),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
			Expect(verdict.Status).To(Equal(
				"shop1-abcd1234-mysql-0: Ready (1/1) | shop1-abcd1234-wordpress-7d9f: ContainerCreating | Setup job: no pods found"))
		})

		It("should surface unmatched pods without gating readiness", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 0),
				pendingPod("some-sidecar-55f"),
			}, ingressPresent)

			Expect(verdict.Kind).To(Equal(KindReady))
		})

		It("should not count a running pod with unready containers as successful", func() {
			pod := runningPod("shop1-abcd1234-mysql-0")
			pod.Containers[0].Ready = false

			verdict := Classify(rules, []cluster.PodSnapshot{
				pod,
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				terminatedPod("shop1-abcd1234-woocommerce-setup-x2k", 0),
			}, ingressPresent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
			Expect(verdict.Status).To(ContainSubstring("shop1-abcd1234-mysql-0: Running (0/1)"))
		})

		It("should not count a still-running setup job as successful", func() {
			verdict := Classify(rules, []cluster.PodSnapshot{
				runningPod("shop1-abcd1234-mysql-0"),
				runningPod("shop1-abcd1234-wordpress-7d9f"),
				runningPod("shop1-abcd1234-woocommerce-setup-x2k"),
			}, ingressPresent)

			Expect(verdict.Kind).To(Equal(KindInProgress))
		})
	})

	Context("medusa engine", func() {
		It("should classify with the medusa role table", func() {
			medusaRules, err := RulesForEngine(store.EngineMedusa)
			Expect(err).NotTo(HaveOccurred())

			verdict := Classify(medusaRules, []cluster.PodSnapshot{
				runningPod("shop2-ef567890-postgres-0"),
				runningPod("shop2-ef567890-medusa-6c4d"),
				terminatedPod("shop2-ef567890-medusa-setup-p9q", 0),
			}, func() (cluster.IngressHost, bool) {
				return cluster.IngressHost{Host: "shop2.localhost"}, true
			})

			Expect(verdict.Kind).To(Equal(KindReady))
			Expect(verdict.URL).To(Equal("http://shop2.localhost"))
		})

		It("should name the postgres role in failures", func() {
			medusaRules, err := RulesForEngine(store.EngineMedusa)
			Expect(err).NotTo(HaveOccurred())

			verdict := Classify(medusaRules, []cluster.PodSnapshot{
				waitingPod("shop2-ef567890-postgres-0", "ImagePullBackOff", 0),
			}, ingressAbsent)

			Expect(verdict.Kind).To(Equal(KindFailed))
			Expect(verdict.Reason).To(Equal("PostgreSQL: ImagePullBackOff"))
		})
	})

	It("should be deterministic for identical inputs", func() {
		pods := []cluster.PodSnapshot{
			runningPod("shop1-abcd1234-mysql-0"),
			pendingPod("shop1-abcd1234-wordpress-7d9f"),
		}

		first := Classify(rules, pods, ingressAbsent)
		second := Classify(rules, pods, ingressAbsent)

		Expect(first).To(Equal(second))
	})
})
