// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package app wires the control plane together: configuration, database, packager,
// cluster reader, reconciler, and the REST API. All dependencies are constructed here and
// passed down explicitly; there are no process-wide singletons.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/cluster"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/config"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/helm"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/lifecycle"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/logger"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/provisioner"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/server"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store/repository"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/version"
)

// Name is the executable's name.
const Name = "store-provisioner"

// NewCommand creates the root *cobra.Command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          Name,
		Short:        "Control plane that provisions tenant e-commerce stores on Kubernetes",
		Version:      version.Version,
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			return runApp(cmd.Context(), cfg)
		},
	}

	return cmd
}

func runApp(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, logger.WithLogDir(cfg.LogDir))
	if err != nil {
		return err
	}
	log = log.WithName(Name)
	log.Info("Starting store provisioning control plane", "version", version.Version)

	db, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error(err, "Failed to close database")
		}
	}()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("Database initialized")

	helmRunner, err := helm.NewRunner(cfg.HelmChartPath, cfg.HelmValuesFile, cfg.HelmEnvValuesFile, log)
	if err != nil {
		return fmt.Errorf("validating packager: %w", err)
	}

	restConfig, err := cluster.RESTConfig(cfg.Kubeconfig)
	if err != nil {
		return err
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("creating cluster client: %w", err)
	}
	reader := cluster.NewReader(clientset, log)

	repo := repository.New(db, log)

	reconciler := provisioner.New(repo, helmRunner, reader, provisioner.Options{
		Workers:      cfg.ProvisioningMaxWorkers,
		PollInterval: cfg.ProvisioningPollInterval(),
		Timeout:      cfg.ProvisioningTimeout(),
		BaseDomain:   cfg.BaseDomain,
	}, log)
	reconciler.Start()
	defer reconciler.Shutdown()

	service := lifecycle.NewService(repo, helmRunner, reconciler, log)

	// Crash recovery: pick up stores that were mid-provisioning when the process died.
	if err := service.ResumeInFlight(ctx); err != nil {
		return err
	}

	httpServer := server.NewServer(cfg.ListenAddress, server.NewHandler(service, log), log)

	var group run.Group

	group.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	serverCtx, serverCancel := context.WithCancel(ctx)
	group.Add(
		func() error {
			return httpServer.Start(serverCtx)
		},
		func(error) {
			serverCancel()
		},
	)

	err = group.Run()

	var signalErr run.SignalError
	if errors.As(err, &signalErr) {
		log.Info("Received signal, shutting down", "signal", signalErr.Signal)
		return nil
	}
	return err
}
