// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is the canonical record of an uploaded file. VersionNum and VersionID
// always mirror the latest entry of the file's version ledger.
type File struct {
	ID string
	// Name is the filename of the latest revision.
	Name string
	// Creator is the user who uploaded the latest revision.
	Creator string
	// Created is when the latest revision was uploaded.
	Created time.Time
	// VersionNum is the number of ledger entries for this file.
	VersionNum int64
	// VersionID is the object-store version token of the latest revision.
	VersionID string
	// Size of the latest revision in bytes.
	Size int64
	// Downloads counts successful downloads, best effort.
	Downloads int64
}

// FileVersion is one immutable content revision in a file's ledger.
type FileVersion struct {
	ID         string
	FileID     string
	VersionNum int64
	// VersionID is the object-store version token.
	VersionID string
	// Digest is the hex BLAKE2b-256 of the revision's bytes.
	Digest  string
	Size    int64
	Creator string
	Created time.Time
}
