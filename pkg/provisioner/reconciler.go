// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package provisioner drives stores from PROVISIONING to a terminal state. A fixed-size
// worker pool consumes store IDs; the task for one ID is idempotent end-to-end, so a crash
// at any point leaves the store resumable by a later ResumeInFlight.
package provisioner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/cluster"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/readiness"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store/repository"
)

const (
	// DefaultWorkers is the worker pool size when none is configured.
	DefaultWorkers = 5

	// schedulingDelay is slept after a fresh install so the orchestrator can schedule
	// pods before the first readiness check. Without it the first poll sees an empty
	// namespace and reports a spurious "no pods found".
	schedulingDelay = 15 * time.Second

	taskQueueSize = 256
)

// Packager is the subset of the packaging adapter the reconciler needs.
type Packager interface {
	Install(ctx context.Context, release, namespace string, values map[string]string) (bool, string)
	Status(ctx context.Context, release, namespace string) (string, bool)
}

// ClusterReader is the subset of the cluster reader the reconciler needs.
type ClusterReader interface {
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	ListPods(ctx context.Context, namespace string) ([]cluster.PodSnapshot, error)
	GetIngressHost(ctx context.Context, namespace, name string) (cluster.IngressHost, bool, error)
}

// Repository is the subset of the store repository the reconciler needs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*store.Store, error)
	ListByStatus(ctx context.Context, status store.Status) ([]store.Store, error)
	UpdateStatus(ctx context.Context, id string, status store.Status, opts repository.UpdateOptions) error
}

// Options configures the reconciler.
type Options struct {
	// Workers is the size of the worker pool.
	Workers int
	// PollInterval is the sleep between readiness polls.
	PollInterval time.Duration
	// Timeout bounds one reconcile's readiness loop. It restarts on resume: the budget
	// is per reconcile attempt, not per store lifetime.
	Timeout time.Duration
	// BaseDomain is the DNS suffix used to derive helm values.
	BaseDomain string
}

// Reconciler is the asynchronous provisioning engine.
type Reconciler struct {
	repo     Repository
	packager Packager
	reader   ClusterReader
	opts     Options
	log      logr.Logger

	tasks chan string
	wg    sync.WaitGroup

	mu        sync.Mutex
	active    map[string]struct{}
	accepting bool

	// Injected for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Reconciler. Call Start before submitting tasks.
func New(repo Repository, packager Packager, reader ClusterReader, opts Options, log logr.Logger) *Reconciler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	return &Reconciler{
		repo:     repo,
		packager: packager,
		reader:   reader,
		opts:     opts,
		log:      log.WithName("provisioner"),
		tasks:    make(chan string, taskQueueSize),
		active:   map[string]struct{}{},
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Start launches the worker pool.
func (r *Reconciler) Start() {
	r.mu.Lock()
	r.accepting = true
	r.mu.Unlock()

	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.log.Info("Provisioning workers started", "workers", r.opts.Workers)
}

// Submit enqueues a store for reconciliation. Submissions are de-duplicated: while a task
// for the same ID is queued or running, further submissions are dropped with a warning.
// Submit never blocks the caller.
func (r *Reconciler) Submit(storeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.accepting {
		r.log.Info("Reconciler is shut down, dropping task", "store", storeID)
		return
	}
	if _, exists := r.active[storeID]; exists {
		r.log.Info("Store already has an active provisioning task, dropping duplicate", "store", storeID)
		return
	}

	select {
	case r.tasks <- storeID:
		r.active[storeID] = struct{}{}
	default:
		r.log.Info("Task queue is full, dropping task", "store", storeID)
	}
}

// ResumeInFlight enumerates all PROVISIONING stores and resubmits them. It is called once
// at startup for crash recovery and is idempotent: stores already queued are dropped by
// the submission de-duplication.
func (r *Reconciler) ResumeInFlight(ctx context.Context) error {
	stores, err := r.repo.ListByStatus(ctx, store.StatusProvisioning)
	if err != nil {
		return fmt.Errorf("enumerating in-flight stores: %w", err)
	}

	if len(stores) == 0 {
		r.log.Info("No stores to resume")
		return nil
	}

	r.log.Info("Resuming in-flight stores", "count", len(stores))

	for _, s := range stores {
		if status, exists := r.packager.Status(ctx, s.HelmRelease, s.Namespace); exists {
			r.log.Info("Store has an existing release, resuming readiness checks", "store", s.ID, "releaseStatus", status)
		} else {
			r.log.Info("Store has no release, restarting provisioning", "store", s.ID)
		}
		r.Submit(s.ID)
	}

	return nil
}

// Shutdown stops accepting new tasks and waits for active tasks to finish. Tasks are not
// cancelled: a task interrupted by process death leaves its store at PROVISIONING, which
// is exactly what ResumeInFlight recovers on the next start.
func (r *Reconciler) Shutdown() {
	r.mu.Lock()
	if !r.accepting {
		r.mu.Unlock()
		return
	}
	r.accepting = false
	r.mu.Unlock()

	close(r.tasks)
	r.wg.Wait()
	r.log.Info("Provisioning workers stopped")
}

func (r *Reconciler) worker() {
	defer r.wg.Done()

	for storeID := range r.tasks {
		r.process(storeID)

		r.mu.Lock()
		delete(r.active, storeID)
		r.mu.Unlock()
	}
}

// process runs one reconcile attempt. Nothing escapes the task boundary: every error path
// commits a terminal state, and a panic is converted into a FAILED store rather than a
// dead worker.
func (r *Reconciler) process(storeID string) {
	ctx := context.Background()
	log := r.log.WithValues("store", storeID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error(fmt.Errorf("%v", rec), "Provisioning task panicked")
			r.fail(ctx, storeID, fmt.Sprintf("unexpected error: %v", rec))
		}
	}()

	s, err := r.repo.GetByID(ctx, storeID)
	if err != nil {
		log.Error(err, "Failed to load store, skipping task")
		return
	}
	if s.Status != store.StatusProvisioning {
		log.Info("Store is not in PROVISIONING state, skipping", "status", s.Status)
		return
	}

	if status, exists := r.packager.Status(ctx, s.HelmRelease, s.Namespace); exists {
		log.Info("Release already exists, skipping install", "releaseStatus", status)
	} else {
		log.Info("Installing release", "release", s.HelmRelease, "namespace", s.Namespace)

		ok, output := r.packager.Install(ctx, s.HelmRelease, s.Namespace, s.HelmValues(r.opts.BaseDomain))
		if !ok {
			log.Info("Install failed", "release", s.HelmRelease)
			r.fail(ctx, storeID, fmt.Sprintf("install failed: %s", output))
			return
		}

		// Give the scheduler a head start before the first readiness check.
		r.sleep(schedulingDelay)
	}

	r.awaitReadiness(ctx, log, s)
}

// awaitReadiness polls the cluster until the classifier returns a terminal verdict or the
// provisioning timeout elapses. The timeout clock starts now: a resumed store gets a fresh
// budget.
func (r *Reconciler) awaitReadiness(ctx context.Context, log logr.Logger, s *store.Store) {
	rules, err := readiness.RulesForEngine(s.Engine)
	if err != nil {
		r.fail(ctx, s.ID, fmt.Sprintf("unexpected error: %v", err))
		return
	}

	start := r.now()

	for {
		verdict := r.observe(ctx, log, rules, s)

		switch verdict.Kind {
		case readiness.KindReady:
			log.Info("Store is ready", "url", verdict.URL)
			if err := r.repo.UpdateStatus(ctx, s.ID, store.StatusReady, repository.UpdateOptions{StoreURL: &verdict.URL}); err != nil {
				log.Error(err, "Failed to commit READY state")
			}
			return

		case readiness.KindFailed:
			log.Info("Store failed provisioning", "reason", verdict.Reason)
			r.fail(ctx, s.ID, verdict.Reason)
			return

		case readiness.KindInProgress:
			elapsed := r.now().Sub(start)
			if elapsed > r.opts.Timeout {
				log.Info("Provisioning timed out", "elapsed", elapsed)
				r.fail(ctx, s.ID, fmt.Sprintf("timed out after %ds", int(r.opts.Timeout.Seconds())))
				return
			}

			log.V(1).Info("Store not ready yet", "status", verdict.Status, "elapsed", elapsed)
			r.sleep(r.opts.PollInterval)
		}
	}
}

// observe takes one cluster snapshot and classifies it. Transient read errors surface as
// InProgress so that a cluster blip cannot terminate provisioning; the timeout is the
// backstop for persistent errors.
func (r *Reconciler) observe(ctx context.Context, log logr.Logger, rules readiness.Rules, s *store.Store) readiness.Verdict {
	exists, err := r.reader.NamespaceExists(ctx, s.Namespace)
	if err != nil {
		log.Error(err, "Transient cluster read error")
		return readiness.InProgress(fmt.Sprintf("cluster read error: %v", err))
	}
	if !exists {
		return readiness.InProgress("waiting for namespace")
	}

	pods, err := r.reader.ListPods(ctx, s.Namespace)
	if err != nil {
		log.Error(err, "Transient cluster read error")
		return readiness.InProgress(fmt.Sprintf("cluster read error: %v", err))
	}

	lookup := func() (cluster.IngressHost, bool) {
		host, ok, err := r.reader.GetIngressHost(ctx, s.Namespace, s.IngressName())
		if err != nil {
			log.Error(err, "Transient ingress read error")
			return cluster.IngressHost{}, false
		}
		return host, ok
	}

	return readiness.Classify(rules, pods, lookup)
}

func (r *Reconciler) fail(ctx context.Context, storeID, reason string) {
	if err := r.repo.UpdateStatus(ctx, storeID, store.StatusFailed, repository.UpdateOptions{FailureReason: &reason}); err != nil {
		r.log.Error(err, "Failed to commit FAILED state", "store", storeID)
	}
}
