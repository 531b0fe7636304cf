package models

import "fmt"

// AgentKind discriminates the Agent variants in storage.
type AgentKind string

const (
	AgentKindUser      AgentKind = "user"
	AgentKindExtractor AgentKind = "extractor"
)

// Agent is the attributed source of a metadata record: either a UserAgent or
// an ExtractorAgent, never both.
type Agent interface {
	Kind() AgentKind
	// Key is a stable string form used in scope keys and lock names.
	Key() string
	isAgent()
}

// UserAgent attributes metadata to a human user.
type UserAgent struct {
	UserID string
}

func (UserAgent) Kind() AgentKind  { return AgentKindUser }
func (a UserAgent) Key() string    { return "user:" + a.UserID }
func (UserAgent) isAgent()         {}
func (a UserAgent) String() string { return a.Key() }

// ExtractorAgent attributes metadata to a registered automated extractor.
type ExtractorAgent struct {
	Name    string
	Version string
}

func (ExtractorAgent) Kind() AgentKind  { return AgentKindExtractor }
func (a ExtractorAgent) Key() string    { return fmt.Sprintf("extractor:%s@%s", a.Name, a.Version) }
func (ExtractorAgent) isAgent()         {}
func (a ExtractorAgent) String() string { return a.Key() }

// ExtractorIdentity names an extractor in requests before it is resolved
// against the registry.
type ExtractorIdentity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Extractor is a registered extractor.
type Extractor struct {
	ID          string
	Name        string
	Version     string
	Description string
}
