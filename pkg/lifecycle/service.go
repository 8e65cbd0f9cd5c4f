// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle exposes the core store operations the HTTP layer calls. Creation is
// asynchronous (the record is committed, then handed to the reconciler); deletion is
// synchronous because uninstall is deterministic and bounded.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store/repository"
)

// Packager is the subset of the packaging adapter the lifecycle needs.
type Packager interface {
	Uninstall(ctx context.Context, release, namespace string) (bool, string)
}

// Repository is the subset of the store repository the lifecycle needs.
type Repository interface {
	Insert(ctx context.Context, s *store.Store) error
	GetByID(ctx context.Context, id string) (*store.Store, error)
	GetByName(ctx context.Context, name string) (*store.Store, error)
	List(ctx context.Context) ([]store.Store, error)
	UpdateStatus(ctx context.Context, id string, status store.Status, opts repository.UpdateOptions) error
}

// Submitter hands a store to the asynchronous reconciler.
type Submitter interface {
	Submit(storeID string)
	ResumeInFlight(ctx context.Context) error
}

// CreateStoreRequest carries the caller-supplied attributes of a new store.
type CreateStoreRequest struct {
	Name          string `json:"name" validate:"required"`
	Engine        string `json:"engine" validate:"required"`
	AdminUsername string `json:"admin_username" validate:"required"`
	AdminPassword string `json:"admin_password" validate:"required"`
	AdminEmail    string `json:"admin_email" validate:"required"`
}

// UninstallError reports a failed release uninstall. Output is the combined helm output and
// is surfaced verbatim to API callers.
type UninstallError struct {
	Release string
	Output  string
}

func (e *UninstallError) Error() string {
	return fmt.Sprintf("uninstalling release %s: %s", e.Release, e.Output)
}

// Service implements the lifecycle operations.
type Service struct {
	repo       Repository
	packager   Packager
	reconciler Submitter
	validate   *validator.Validate
	log        logr.Logger
}

// NewService creates the lifecycle service.
func NewService(repo Repository, packager Packager, reconciler Submitter, log logr.Logger) *Service {
	return &Service{
		repo:       repo,
		packager:   packager,
		reconciler: reconciler,
		validate:   validator.New(),
		log:        log.WithName("lifecycle"),
	}
}

// CreateStore validates the request, persists a PROVISIONING record, and submits it to
// the reconciler. It returns store.ErrValidation for malformed input and
// store.ErrDuplicateName on a name conflict.
func (s *Service) CreateStore(ctx context.Context, req CreateStoreRequest) (*store.Store, error) {
	req.Name = strings.TrimSpace(req.Name)

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, validationMessage(err))
	}

	engine := store.Engine(req.Engine)
	if !store.ValidEngine(engine) {
		return nil, store.NewValidationError("invalid engine %q, must be one of %v", req.Engine, store.Engines)
	}

	// Fast-path duplicate check; the partial unique index on the stores table is the
	// authoritative guard against concurrent creations.
	if existing, err := s.repo.GetByName(ctx, req.Name); err == nil && existing.Status != store.StatusDeleted {
		return nil, fmt.Errorf("%w: %q", store.ErrDuplicateName, req.Name)
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	record, err := store.New(req.Name, engine, store.AdminCredentials{
		Username: req.AdminUsername,
		Password: req.AdminPassword,
		Email:    req.AdminEmail,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		return nil, err
	}

	s.reconciler.Submit(record.ID)
	s.log.Info("Store creation accepted", "store", record.ID, "name", record.Name, "engine", record.Engine)

	return record, nil
}

// GetStore returns the store with the given id, or store.ErrNotFound.
func (s *Service) GetStore(ctx context.Context, id string) (*store.Store, error) {
	return s.repo.GetByID(ctx, id)
}

// ListStores returns all stores, newest first.
func (s *Service) ListStores(ctx context.Context) ([]store.Store, error) {
	return s.repo.List(ctx)
}

// DeleteStore tears a store down synchronously: DELETING is committed first, then the
// release is uninstalled. On success the store ends at DELETED; on uninstall failure it
// ends at FAILED with the uninstall output preserved in the failure reason, and an error
// is returned to the caller.
func (s *Service) DeleteStore(ctx context.Context, id string) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if record.Status == store.StatusDeleted {
		return fmt.Errorf("%w: store is already deleted", store.ErrInvalidState)
	}

	if err := s.repo.UpdateStatus(ctx, id, store.StatusDeleting, repository.UpdateOptions{}); err != nil {
		return err
	}

	s.log.Info("Deleting store", "store", id, "release", record.HelmRelease)

	ok, output := s.packager.Uninstall(ctx, record.HelmRelease, record.Namespace)
	if !ok {
		reason := fmt.Sprintf("delete failed: %s", output)
		if err := s.repo.UpdateStatus(ctx, id, store.StatusFailed, repository.UpdateOptions{FailureReason: &reason}); err != nil {
			s.log.Error(err, "Failed to commit FAILED state after uninstall failure", "store", id)
		}
		return &UninstallError{Release: record.HelmRelease, Output: output}
	}

	if err := s.repo.UpdateStatus(ctx, id, store.StatusDeleted, repository.UpdateOptions{}); err != nil {
		return err
	}

	s.log.Info("Store deleted", "store", id)
	return nil
}

// ResumeInFlight resubmits all PROVISIONING stores to the reconciler.
func (s *Service) ResumeInFlight(ctx context.Context) error {
	return s.reconciler.ResumeInFlight(ctx)
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field %q is required", fieldErr.Field()))
		default:
			messages = append(messages, fieldErr.Error())
		}
	}

	return strings.Join(messages, "; ")
}
