// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the control plane configuration from environment variables.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration of the control plane. Every field can be overridden via
// the environment variable named in the mapstructure tag.
type Config struct {
	// DatabaseURL is the Postgres connection string holding the stores table.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// HelmChartPath is the directory of the packaged store chart. It must contain a
	// Chart.yaml manifest.
	HelmChartPath string `mapstructure:"HELM_CHART_PATH"`
	// HelmValuesFile is the base values file layered into every install.
	HelmValuesFile string `mapstructure:"HELM_VALUES_FILE"`
	// HelmEnvValuesFile is the environment-specific values file layered on top of
	// HelmValuesFile.
	HelmEnvValuesFile string `mapstructure:"HELM_ENV_VALUES_FILE"`

	// Kubeconfig is the path of the kubeconfig used for read-only cluster access. When
	// empty, the default loading rules apply.
	Kubeconfig string `mapstructure:"KUBECONFIG"`

	// BaseDomain is the DNS suffix under which store hosts are exposed.
	BaseDomain string `mapstructure:"BASE_DOMAIN"`

	// ProvisioningTimeoutSeconds bounds a single reconcile's readiness loop.
	ProvisioningTimeoutSeconds int `mapstructure:"PROVISIONING_TIMEOUT_SECONDS"`
	// ProvisioningPollIntervalSeconds is the sleep between readiness polls.
	ProvisioningPollIntervalSeconds int `mapstructure:"PROVISIONING_POLL_INTERVAL_SECONDS"`
	// ProvisioningMaxWorkers is the size of the reconciler worker pool.
	ProvisioningMaxWorkers int `mapstructure:"PROVISIONING_MAX_WORKERS"`

	// ListenAddress is the HTTP listen address of the REST API.
	ListenAddress string `mapstructure:"LISTEN_ADDRESS"`

	// LogLevel is one of debug, info, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is one of json, text.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// LogDir, when set, makes the process log to a file in this directory in addition
	// to stderr.
	LogDir string `mapstructure:"LOG_DIR"`
}

// ProvisioningTimeout returns the readiness loop budget as a duration.
func (c *Config) ProvisioningTimeout() time.Duration {
	return time.Duration(c.ProvisioningTimeoutSeconds) * time.Second
}

// ProvisioningPollInterval returns the poll sleep as a duration.
func (c *Config) ProvisioningPollInterval() time.Duration {
	return time.Duration(c.ProvisioningPollIntervalSeconds) * time.Second
}

// Load reads the configuration from the process environment, applying defaults for every
// unset variable.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("DATABASE_URL", "postgres://localhost:5432/store_platform?sslmode=disable")
	v.SetDefault("HELM_CHART_PATH", "./helm/store")
	v.SetDefault("HELM_VALUES_FILE", "values.yaml")
	v.SetDefault("HELM_ENV_VALUES_FILE", "values-local.yaml")
	v.SetDefault("KUBECONFIG", "")
	v.SetDefault("BASE_DOMAIN", "localhost")
	v.SetDefault("PROVISIONING_TIMEOUT_SECONDS", 600)
	v.SetDefault("PROVISIONING_POLL_INTERVAL_SECONDS", 5)
	v.SetDefault("PROVISIONING_MAX_WORKERS", 5)
	v.SetDefault("LISTEN_ADDRESS", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_DIR", "")

	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}
