// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package logger constructs the logr.Logger used across the control plane. It is backed by
// zap; components receive named child loggers and must never log credential material.
package logger

import (
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON emits structured JSON log lines.
	FormatJSON = "json"
	// FormatText emits console-friendly log lines.
	FormatText = "text"
)

// Option customizes the logger construction.
type Option func(*zap.Config)

// WithLogDir additionally writes log output to <dir>/store-provisioner.log. The directory
// must exist.
func WithLogDir(dir string) Option {
	return func(config *zap.Config) {
		if dir != "" {
			config.OutputPaths = append(config.OutputPaths, filepath.Join(dir, "store-provisioner.log"))
		}
	}
}

// NewLogger creates a new logr.Logger backed by zap with the given level ("debug", "info",
// "error") and format ("json", "text").
func NewLogger(logLevel, format string, opts ...Option) (logr.Logger, error) {
	var level zapcore.Level

	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "", "info":
		level = zapcore.InfoLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return logr.Logger{}, fmt.Errorf("invalid log level %q", logLevel)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	switch format {
	case "", FormatJSON:
		config.Encoding = "json"
	case FormatText:
		config.Encoding = "console"
	default:
		return logr.Logger{}, fmt.Errorf("invalid log format %q", format)
	}

	for _, opt := range opts {
		opt(&config)
	}

	zapLogger, err := config.Build()
	if err != nil {
		return logr.Logger{}, err
	}

	return zapr.NewLogger(zapLogger), nil
}

// MustNewLogger is like NewLogger but panics on invalid input. It is intended for use in
// tests and in main, where the configuration has already been validated.
func MustNewLogger(logLevel, format string) logr.Logger {
	log, err := NewLogger(logLevel, format)
	if err != nil {
		panic(err)
	}
	return log
}
