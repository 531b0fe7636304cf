package models

import (
	"fmt"
	"time"
)

// ResourceRef points a metadata record at one version of a resource.
type ResourceRef struct {
	Collection string
	ResourceID string
	Version    int64
}

// ScopeKey identifies the metadata of one agent on one resource version.
type ScopeKey struct {
	ResourceID string
	Version    int64
	Agent      Agent
}

func (k ScopeKey) String() string {
	return fmt.Sprintf("%s/v%d/%s", k.ResourceID, k.Version, k.Agent.Key())
}

// MetadataContext references the vocabulary the contents are written in.
// Exactly one of the three forms is set.
type MetadataContext struct {
	// Inline is an embedded JSON-LD context object.
	Inline map[string]any `json:"context,omitempty"`
	// URL points at an external context document.
	URL string `json:"context_url,omitempty"`
	// Definition names a registered MetadataDefinition.
	Definition string `json:"definition,omitempty"`
}

// Metadata is an annotation attached to a resource version by an agent.
type Metadata struct {
	ID       string
	Resource ResourceRef
	Agent    Agent
	Context  MetadataContext
	Contents map[string]any
	// Revision increments on every replace or patch and guards
	// compare-and-replace updates.
	Revision int64
	Created  time.Time
	Updated  time.Time
}

// ScopeKey returns the record's scope key.
func (m *Metadata) ScopeKey() ScopeKey {
	return ScopeKey{ResourceID: m.Resource.ResourceID, Version: m.Resource.Version, Agent: m.Agent}
}

// MetadataIn is the body of add and replace requests.
type MetadataIn struct {
	Contents map[string]any
	Context  MetadataContext
	// FileVersion selects a specific file version; nil means latest.
	FileVersion *int64
	// Extractor attributes the record to an extractor instead of the caller.
	Extractor *ExtractorIdentity
}

// MetadataPatch is the body of patch requests. Only contents change.
type MetadataPatch struct {
	Contents    map[string]any
	FileVersion *int64
	Extractor   *ExtractorIdentity
}

// MetadataFilter narrows list and delete requests.
type MetadataFilter struct {
	Version          *int64
	AllVersions      bool
	ExtractorName    *string
	ExtractorVersion *string
}
