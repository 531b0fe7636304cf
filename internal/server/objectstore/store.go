// Package objectstore keeps file content as versioned objects. Every Put
// creates a new object version and returns its opaque version token.
package objectstore

import (
	"context"
	"io"
	"time"
)

// PutResult describes a stored revision.
type PutResult struct {
	// VersionID is the store-assigned token identifying this revision.
	VersionID string
	// Digest is the hex BLAKE2b-256 of the streamed bytes.
	Digest string
	Size   int64
}

type ObjectVersion struct {
	VersionID    string
	Size         int64
	IsLatest     bool
	LastModified time.Time
}

// Store is a versioned object store. Failures are wrapped in
// common.ErrStorageTransport; missing objects yield common.ErrorNotFound.
type Store interface {
	// Put streams r into a new version of key. Nothing is committed when
	// Put returns an error.
	Put(ctx context.Context, key string, r io.Reader) (*PutResult, error)
	// Get opens a version of key; an empty versionID means the latest.
	Get(ctx context.Context, key, versionID string) (io.ReadCloser, error)
	// Delete removes every version of key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	Versions(ctx context.Context, key string) ([]ObjectVersion, error)
	// PresignGet returns a time-limited URL for downloading one version.
	PresignGet(ctx context.Context, key, versionID string, ttl time.Duration) (string, error)
}
