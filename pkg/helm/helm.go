// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package helm invokes the helm CLI as a subprocess. The control plane treats helm as a
// black-box executor: all templating and manifest generation happens inside the chart, and
// only the invocation contract (argv, timeouts, captured output) is owned here.
package helm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

const (
	defaultInstallTimeout   = 300 * time.Second
	defaultUninstallTimeout = 120 * time.Second
	defaultStatusTimeout    = 30 * time.Second
	versionTimeout          = 10 * time.Second

	helmBinary = "helm"
)

// runCommand is the execution function used to invoke the helm binary. Exposed as a
// variable for testing.
var runCommand = func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()

	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Runner wraps the helm CLI for a single chart directory.
type Runner struct {
	chartPath     string
	valuesFile    string
	envValuesFile string
	fs            afero.Fs
	log           logr.Logger

	installTimeout   time.Duration
	uninstallTimeout time.Duration
	statusTimeout    time.Duration
}

// Option customizes a Runner.
type Option func(*Runner)

// WithFs replaces the filesystem used for chart validation. Used in tests.
func WithFs(fs afero.Fs) Option {
	return func(r *Runner) {
		r.fs = fs
	}
}

// WithTimeouts overrides the subprocess timeouts. Used in tests.
func WithTimeouts(install, uninstall, status time.Duration) Option {
	return func(r *Runner) {
		r.installTimeout = install
		r.uninstallTimeout = uninstall
		r.statusTimeout = status
	}
}

type chartManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewRunner creates a Runner and validates that the helm binary is reachable and that the
// chart directory contains a well-formed Chart.yaml. Both checks failing is reported as a
// single aggregated error; any failure is fatal for the control plane.
func NewRunner(chartPath, valuesFile, envValuesFile string, log logr.Logger, opts ...Option) (*Runner, error) {
	r := &Runner{
		chartPath:     chartPath,
		valuesFile:    valuesFile,
		envValuesFile: envValuesFile,
		fs:            afero.NewOsFs(),
		log:           log.WithName("helm"),

		installTimeout:   defaultInstallTimeout,
		uninstallTimeout: defaultUninstallTimeout,
		statusTimeout:    defaultStatusTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	var allErrs *multierror.Error

	if err := r.verifyBinary(); err != nil {
		allErrs = multierror.Append(allErrs, err)
	}
	if err := r.verifyChart(); err != nil {
		allErrs = multierror.Append(allErrs, err)
	}

	if err := allErrs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Runner) verifyBinary() error {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()

	stdout, stderr, err := runCommand(ctx, helmBinary, "version", "--short")
	if err != nil {
		return fmt.Errorf("helm CLI not usable: %v (stderr: %s)", err, bytes.TrimSpace(stderr))
	}

	r.log.Info("Helm CLI detected", "version", string(bytes.TrimSpace(stdout)))
	return nil
}

func (r *Runner) verifyChart() error {
	manifestPath := filepath.Join(r.chartPath, "Chart.yaml")

	data, err := afero.ReadFile(r.fs, manifestPath)
	if err != nil {
		return fmt.Errorf("chart manifest not readable at %s: %w", manifestPath, err)
	}

	manifest := &chartManifest{}
	if err := yaml.Unmarshal(data, manifest); err != nil {
		return fmt.Errorf("chart manifest %s is malformed: %w", manifestPath, err)
	}
	if manifest.Name == "" {
		return fmt.Errorf("chart manifest %s has no name", manifestPath)
	}

	r.log.Info("Helm chart validated", "path", r.chartPath, "chart", manifest.Name, "chartVersion", manifest.Version)
	return nil
}

// Install installs the chart as <release> into <namespace>, creating the namespace if
// needed. The two configured value files are layered first; <values> entries become
// individual --set overrides. The subprocess is bounded by a 300s timeout.
func (r *Runner) Install(ctx context.Context, release, namespace string, values map[string]string) (bool, string) {
	args := []string{
		"install", release, r.chartPath,
		"--namespace", namespace,
		"--create-namespace",
		"-f", filepath.Join(r.chartPath, r.valuesFile),
		"-f", filepath.Join(r.chartPath, r.envValuesFile),
	}

	// Sorted for a deterministic command line.
	keys := lo.Keys(values)
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--set", fmt.Sprintf("%s=%s", key, values[key]))
	}

	ctx, cancel := context.WithTimeout(ctx, r.installTimeout)
	defer cancel()

	r.log.Info("Installing helm release", "release", release, "namespace", namespace)

	stdout, stderr, err := runCommand(ctx, helmBinary, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.log.Error(err, "Helm install timed out", "release", release)
			return false, "install timed out"
		}
		r.log.Error(err, "Helm install failed", "release", release)
		return false, string(bytes.TrimSpace(stderr))
	}

	r.log.Info("Helm install succeeded", "release", release)
	return true, string(bytes.TrimSpace(stdout))
}

// Uninstall removes the release from the namespace with a 120s timeout.
func (r *Runner) Uninstall(ctx context.Context, release, namespace string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, r.uninstallTimeout)
	defer cancel()

	r.log.Info("Uninstalling helm release", "release", release, "namespace", namespace)

	stdout, stderr, err := runCommand(ctx, helmBinary, "uninstall", release, "--namespace", namespace)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.log.Error(err, "Helm uninstall timed out", "release", release)
			return false, "uninstall timed out"
		}
		r.log.Error(err, "Helm uninstall failed", "release", release)
		return false, string(bytes.TrimSpace(stderr))
	}

	r.log.Info("Helm uninstall succeeded", "release", release)
	return true, string(bytes.TrimSpace(stdout))
}

type releaseStatus struct {
	Info struct {
		Status string `json:"status"`
	} `json:"info"`
}

// Status returns the release's status token (e.g. "deployed", "failed", "pending-install")
// and true, or "" and false when the release does not exist.
func (r *Runner) Status(ctx context.Context, release, namespace string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.statusTimeout)
	defer cancel()

	stdout, _, err := runCommand(ctx, helmBinary, "status", release, "--namespace", namespace, "--output", "json")
	if err != nil {
		// helm status exits non-zero when the release is not found.
		return "", false
	}

	status := &releaseStatus{}
	if err := json.Unmarshal(stdout, status); err != nil {
		r.log.Error(err, "Failed to parse helm status output", "release", release)
		return "", false
	}

	return status.Info.Status, true
}
