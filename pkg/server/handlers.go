// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the REST API of the control plane under /api/v1. Handlers only
// translate between HTTP and the lifecycle service; no business logic lives here.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/lifecycle"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
)

const serviceName = "store-provisioning-backend"

// storeResponse is the API representation of a store. Database credentials and the admin
// password are deliberately absent.
type storeResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Engine        string  `json:"engine"`
	Namespace     string  `json:"namespace"`
	HelmRelease   string  `json:"helm_release"`
	Status        string  `json:"status"`
	StoreURL      *string `json:"store_url"`
	FailureReason *string `json:"failure_reason"`
	AdminUsername string  `json:"admin_username"`
	AdminEmail    string  `json:"admin_email"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toStoreResponse(s *store.Store) storeResponse {
	return storeResponse{
		ID:            s.ID,
		Name:          s.Name,
		Engine:        string(s.Engine),
		Namespace:     s.Namespace,
		HelmRelease:   s.HelmRelease,
		Status:        string(s.Status),
		StoreURL:      s.StoreURL,
		FailureReason: s.FailureReason,
		AdminUsername: s.AdminUsername,
		AdminEmail:    s.AdminEmail,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Handler serves the REST API.
type Handler struct {
	service *lifecycle.Service
	log     logr.Logger
}

// NewHandler builds the chi router with all routes mounted under /api/v1.
func NewHandler(service *lifecycle.Service, log logr.Logger) http.Handler {
	h := &Handler{service: service, log: log.WithName("http")}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	router.Use(h.logRequests)

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", h.health)
		api.Get("/stores", h.listStores)
		api.Post("/stores", h.createStore)
		api.Get("/stores/{id}", h.getStore)
		api.Delete("/stores/{id}", h.deleteStore)
	})

	return router
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(wrapped, req)

		h.log.V(1).Info("Request handled",
			"method", req.Method,
			"path", req.URL.Path,
			"status", wrapped.Status(),
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (h *Handler) listStores(w http.ResponseWriter, req *http.Request) {
	stores, err := h.service.ListStores(req.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	responses := make([]storeResponse, 0, len(stores))
	for i := range stores {
		responses = append(responses, toStoreResponse(&stores[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{"stores": responses})
}

func (h *Handler) createStore(w http.ResponseWriter, req *http.Request) {
	var createReq lifecycle.CreateStoreRequest
	if err := json.NewDecoder(req.Body).Decode(&createReq); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "request body is malformed"})
		return
	}

	record, err := h.service.CreateStore(req.Context(), createReq)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toStoreResponse(record))
}

func (h *Handler) getStore(w http.ResponseWriter, req *http.Request) {
	record, err := h.service.GetStore(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStoreResponse(record))
}

func (h *Handler) deleteStore(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	if err := h.service.DeleteStore(req.Context(), id); err != nil {
		uninstallErr := &lifecycle.UninstallError{}

		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidState):
			h.writeError(w, err)
		case errors.As(err, &uninstallErr):
			h.log.Error(err, "Store deletion failed", "store", id)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message": "Failed to delete store",
				"details": uninstallErr.Output,
			})
		default:
			h.writeError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":      id,
		"status":  string(store.StatusDeleted),
		"message": "Store deleted successfully",
	})
}

// writeError maps the error taxonomy to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrDuplicateName), errors.Is(err, store.ErrInvalidState):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Store not found"})
	default:
		h.log.Error(err, "Internal server error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
