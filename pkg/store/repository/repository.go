// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package repository persists store records to Postgres. Every exported operation runs in
// a single transaction and returns detached snapshots; status transitions are validated
// against the currently persisted row, not against what the caller believes the state is.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
)

const uniqueViolationCode = "23505"

// UpdateOptions carries the optional columns written alongside a status transition.
type UpdateOptions struct {
	// FailureReason is persisted when transitioning to FAILED.
	FailureReason *string
	// StoreURL is persisted when transitioning to READY.
	StoreURL *string
}

// Repository provides durable access to the stores table.
type Repository struct {
	db  *sqlx.DB
	log logr.Logger
}

// New creates a Repository on top of the given database handle.
func New(db *sqlx.DB, log logr.Logger) *Repository {
	return &Repository{db: db, log: log.WithName("repository")}
}

// Insert commits a new store record. A name collision with a non-deleted store yields
// store.ErrDuplicateName.
func (r *Repository) Insert(ctx context.Context, s *store.Store) error {
	const query = `
		INSERT INTO stores (
			id, name, engine, namespace, helm_release, status, failure_reason, store_url,
			db_root_password, db_name, db_user, db_password,
			admin_username, admin_password, admin_email,
			created_at, updated_at
		) VALUES (
			:id, :name, :engine, :namespace, :helm_release, :status, :failure_reason, :store_url,
			:db_root_password, :db_name, :db_user, :db_password,
			:admin_username, :admin_password, :admin_email,
			:created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %q", store.ErrDuplicateName, s.Name)
		}
		return fmt.Errorf("inserting store %s: %w", s.ID, err)
	}

	r.log.Info("Store record created", "store", s.ID, "name", s.Name, "engine", s.Engine)
	return nil
}

// GetByID returns the store with the given id, or store.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*store.Store, error) {
	s := &store.Store{}
	if err := r.db.GetContext(ctx, s, `SELECT * FROM stores WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading store %s: %w", id, err)
	}
	return s, nil
}

// GetByName returns the most recent store with the given name, or store.ErrNotFound.
func (r *Repository) GetByName(ctx context.Context, name string) (*store.Store, error) {
	s := &store.Store{}
	if err := r.db.GetContext(ctx, s, `SELECT * FROM stores WHERE name = $1 ORDER BY created_at DESC LIMIT 1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading store %q: %w", name, err)
	}
	return s, nil
}

// List returns all store records, newest first.
func (r *Repository) List(ctx context.Context) ([]store.Store, error) {
	stores := []store.Store{}
	if err := r.db.SelectContext(ctx, &stores, `SELECT * FROM stores ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	return stores, nil
}

// ListByStatus returns all store records with the given status, newest first. It is used
// by the resume path to enumerate in-flight provisioning work.
func (r *Repository) ListByStatus(ctx context.Context, status store.Status) ([]store.Store, error) {
	stores := []store.Store{}
	if err := r.db.SelectContext(ctx, &stores, `SELECT * FROM stores WHERE status = $1 ORDER BY created_at DESC`, status); err != nil {
		return nil, fmt.Errorf("listing stores with status %s: %w", status, err)
	}
	return stores, nil
}

// UpdateStatus atomically transitions the store to the given status. The transition is
// checked against the row as currently persisted; violations of the lifecycle graph yield
// store.ErrInvalidTransition. failure_reason is cleared unless the new status is FAILED,
// and updated_at is always refreshed.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status store.Status, opts UpdateOptions) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current store.Status
	if err := tx.GetContext(ctx, &current, `SELECT status FROM stores WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("locking store %s: %w", id, err)
	}

	if !store.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, status)
	}

	var failureReason *string
	if status == store.StatusFailed {
		failureReason = opts.FailureReason
	}

	const query = `
		UPDATE stores
		SET status = $2,
		    failure_reason = $3,
		    store_url = COALESCE($4, store_url),
		    updated_at = $5
		WHERE id = $1`

	if _, err := tx.ExecContext(ctx, query, id, status, failureReason, opts.StoreURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating store %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status update for store %s: %w", id, err)
	}

	r.log.Info("Store status updated", "store", id, "from", current, "to", status)
	return nil
}
