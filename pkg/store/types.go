// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package store defines the store entity, its lifecycle states, and the permitted status
// transitions. The database record is the source of truth for idempotency and crash recovery;
// everything else in the control plane derives its decisions from it.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/utils"
)

// Status is the lifecycle state of a store.
type Status string

const (
	// StatusProvisioning means the store record exists and the reconciler is (or will be)
	// driving it towards READY.
	StatusProvisioning Status = "PROVISIONING"
	// StatusReady means the store's workloads are running and the store URL is resolvable.
	StatusReady Status = "READY"
	// StatusFailed is a terminal provisioning or teardown failure. FailureReason is populated.
	StatusFailed Status = "FAILED"
	// StatusDeleting means a teardown has been initiated.
	StatusDeleting Status = "DELETING"
	// StatusDeleted is the logical end of life. Records are never physically removed.
	StatusDeleted Status = "DELETED"
)

// Engine identifies the e-commerce application packaged into a store.
type Engine string

const (
	// EngineWooCommerce is a WordPress/WooCommerce store backed by MySQL.
	EngineWooCommerce Engine = "woocommerce"
	// EngineMedusa is a Medusa store backed by PostgreSQL.
	EngineMedusa Engine = "medusa"
)

// Engines lists all supported engines.
var Engines = []Engine{EngineWooCommerce, EngineMedusa}

// ValidEngine reports whether the given engine is part of the supported set.
func ValidEngine(engine Engine) bool {
	for _, e := range Engines {
		if e == engine {
			return true
		}
	}
	return false
}

// validTransitions is the permitted status graph. A transition not listed here must be
// refused by the repository.
var validTransitions = map[Status][]Status{
	StatusProvisioning: {StatusReady, StatusFailed, StatusDeleting},
	StatusReady:        {StatusDeleting},
	StatusFailed:       {StatusDeleting},
	StatusDeleting:     {StatusDeleted, StatusFailed},
	StatusDeleted:      {},
}

// ValidTransition reports whether moving from <from> to <to> is permitted.
func ValidTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Store is the single core entity of the control plane. Credential fields are stored
// opaquely and must never be logged or serialized into API responses.
type Store struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Engine      Engine `db:"engine"`
	Namespace   string `db:"namespace"`
	HelmRelease string `db:"helm_release"`

	Status        Status  `db:"status"`
	FailureReason *string `db:"failure_reason"`
	StoreURL      *string `db:"store_url"`

	DBRootPassword string `db:"db_root_password"`
	DBName         string `db:"db_name"`
	DBUser         string `db:"db_user"`
	DBPassword     string `db:"db_password"`

	AdminUsername string `db:"admin_username"`
	AdminPassword string `db:"admin_password"`
	AdminEmail    string `db:"admin_email"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AdminCredentials are the caller-supplied administrator credentials for a new store.
type AdminCredentials struct {
	Username string
	Password string
	Email    string
}

const generatedPasswordLength = 24

// New creates a store record in state PROVISIONING. The id is of the deterministic form
// "{name}-{8 hex chars}", the namespace is "store-{id}", and the release equals the id.
// Database credentials are generated with a cryptographically secure source.
func New(name string, engine Engine, admin AdminCredentials) (*Store, error) {
	id := fmt.Sprintf("%s-%s", name, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])

	rootPassword, err := utils.GenerateRandomString(generatedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generating database root password: %w", err)
	}
	dbPassword, err := utils.GenerateRandomString(generatedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generating database password: %w", err)
	}

	now := time.Now().UTC()

	return &Store{
		ID:          id,
		Name:        name,
		Engine:      engine,
		Namespace:   "store-" + id,
		HelmRelease: id,

		Status: StatusProvisioning,

		DBRootPassword: rootPassword,
		DBName:         "store_" + utils.SanitizeIdentifier(name),
		DBUser:         utils.SanitizeIdentifier(name) + "_user",
		DBPassword:     dbPassword,

		AdminUsername: admin.Username,
		AdminPassword: admin.Password,
		AdminEmail:    admin.Email,

		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Domain returns the store's host name under the given base domain.
func (s *Store) Domain(baseDomain string) string {
	return fmt.Sprintf("%s.%s", s.Name, baseDomain)
}

// IngressName returns the name of the ingress object the packaged chart creates for this store.
func (s *Store) IngressName() string {
	return s.HelmRelease + "-ingress"
}

// HelmValues returns the flat dotted-path overrides passed to the packaging tool for this
// store. Keys not in this set pass through the packager untouched.
func (s *Store) HelmValues(baseDomain string) map[string]string {
	storeValues := map[string]string{
		"store.id":        s.ID,
		"store.name":      s.Name,
		"store.namespace": s.Namespace,
		"store.engine":    string(s.Engine),
		"store.domain":    s.Domain(baseDomain),
	}

	secretValues := map[string]string{
		"secrets.database.rootPassword": s.DBRootPassword,
		"secrets.database.name":         s.DBName,
		"secrets.database.username":     s.DBUser,
		"secrets.database.password":     s.DBPassword,

		"secrets.admin.username": s.AdminUsername,
		"secrets.admin.password": s.AdminPassword,
		"secrets.admin.email":    s.AdminEmail,
	}

	return utils.MergeStringMaps(storeValues, secretValues)
}
