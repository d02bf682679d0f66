/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package apperr holds the error kinds shared by the service layer. Services
// wrap these so the HTTP layer can map them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrDuplicate          = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Validation wraps ErrValidation with a field-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the name of the missing resource.
func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// Forbidden wraps ErrForbidden with the reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Duplicate wraps ErrDuplicate with the conflicting resource.
func Duplicate(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrDuplicate)
}
