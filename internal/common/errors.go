// Package common defines shared constants and sentinel errors used across
// the rdkeeper server, client and repositories. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Concurrency errors: two writers raced for the same version number or
	// the same metadata scope key. The caller may retry the whole operation.
	ErrVersionConflict = errors.New("version conflict")

	// Validation errors (metadata context or contents rejected by a definition).
	ErrorValidation = errors.New("validation error")

	// ErrAmbiguousMatch is returned when a metadata scope matches more than
	// one record and the operation needs exactly one.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrStorageTransport wraps failures talking to the object store.
	ErrStorageTransport = errors.New("storage transport error")

	// ErrorUnauthorized marks a request that carried no usable credentials.
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
