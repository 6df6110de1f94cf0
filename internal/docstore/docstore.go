// Package docstore is the persistence gateway for proposal documents.
// Documents are stored as JSON keyed by the conversation id resolved
// from the operator profile; the backend is either Postgres or Redis,
// chosen at startup.
package docstore

import (
	"context"
	"errors"

	"nexus/api/internal/proposal"
)

// ErrNotFound is returned by Load when no document exists for the
// conversation yet; callers start from proposal.Default.
var ErrNotFound = errors.New("document not found")

// Store loads and saves one proposal document per conversation.
// Delete is idempotent; removing an absent document is not an error.
type Store interface {
	Load(ctx context.Context, conversationID string) (*proposal.Document, error)
	Save(ctx context.Context, conversationID string, doc *proposal.Document) error
	Delete(ctx context.Context, conversationID string) error
}

// Profile is the operator profile the session is opened from. The JSON
// field names mirror the stored profile document, including the
// conexionesIA.conversacion path the conversation id lives at.
type Profile struct {
	OperatorID    string        `json:"operatorId"`
	DisplayName   string        `json:"displayName"`
	AgencyName    string        `json:"agencyName"`
	LogoURL       string        `json:"logoUrl"`
	ThemeColor    string        `json:"themeColor"`
	AIConnections AIConnections `json:"conexionesIA"`
}

// AIConnections holds the AI-integration identifiers of a profile.
type AIConnections struct {
	ConversationID string `json:"conversacion"`
}

// ShareLink grants read-only access to a proposal's export behind a
// token, optionally protected by a password.
type ShareLink struct {
	Token          string
	ConversationID string
	CreatedBy      string
	PasswordHash   *string
	AccessCount    int
	Revoked        bool
}
