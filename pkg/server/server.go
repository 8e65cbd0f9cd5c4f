// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP server hosting the REST API.
type Server struct {
	server *http.Server
	log    logr.Logger
}

// NewServer creates a Server listening on the given address.
func NewServer(listenAddress string, handler http.Handler, log logr.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              listenAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.WithName("server"),
	}
}

// Start runs the server until the context is cancelled, then shuts it down gracefully
// with a bounded drain period.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("Starting HTTP server", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Error(err, "Error when shutting down HTTP server")
		return err
	}

	s.log.Info("HTTP server stopped")
	return nil
}
