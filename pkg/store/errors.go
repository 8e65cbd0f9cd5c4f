// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no store exists for the given id or name.
	ErrNotFound = errors.New("store not found")
	// ErrDuplicateName is returned when a store with the same name already exists.
	ErrDuplicateName = errors.New("store with this name already exists")
	// ErrInvalidTransition is returned when a status update violates the transition graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState is returned when an operation is refused because of the store's
	// current lifecycle state, e.g. deleting an already deleted store.
	ErrInvalidState = errors.New("store is in an invalid state for this operation")
	// ErrValidation is returned for malformed or forbidden input.
	ErrValidation = errors.New("validation failed")
)

// NewValidationError wraps ErrValidation with a human-readable message.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
