package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"nexus/api/internal/proposal"
)

// Open dials Postgres through the pgx stdlib driver. Every request
// touches at most a couple of single-row JSONB statements, so the pool
// stays small; idle connections are recycled quickly because traffic is
// bursty around editing sessions.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(time.Minute)
	db.SetConnMaxLifetime(time.Hour)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// PostgresStore keeps proposal documents as JSONB rows, together with
// operator profiles and share links.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping reports database connectivity for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS proposal_documents (
		conversation_id TEXT PRIMARY KEY,
		payload         JSONB NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS operator_profiles (
		operator_id     TEXT PRIMARY KEY,
		display_name    TEXT NOT NULL DEFAULT '',
		agency_name     TEXT NOT NULL DEFAULT '',
		logo_url        TEXT NOT NULL DEFAULT '',
		theme_color     TEXT NOT NULL DEFAULT '',
		conversation_id TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS share_links (
		token           TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		created_by      TEXT NOT NULL DEFAULT '',
		password_hash   TEXT,
		access_count    INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked_at      TIMESTAMPTZ
	)`,
}

// EnsureSchema creates the tables on startup. The schema is small
// enough that idempotent DDL beats a migrations directory.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load reads the document for a conversation. ErrNotFound when the
// conversation has never been saved.
func (s *PostgresStore) Load(ctx context.Context, conversationID string) (*proposal.Document, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM proposal_documents WHERE conversation_id = $1`,
		conversationID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	var doc proposal.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Save upserts the document for a conversation.
func (s *PostgresStore) Save(ctx context.Context, conversationID string, doc *proposal.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proposal_documents (conversation_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (conversation_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, conversationID, payload)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Delete removes the document for a conversation; absent rows are fine.
func (s *PostgresStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM proposal_documents WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// GetProfile looks up the operator profile the editing session opens
// from. ErrNotFound when the operator is unknown.
func (s *PostgresStore) GetProfile(ctx context.Context, operatorID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT operator_id, display_name, agency_name, logo_url, theme_color, conversation_id
		FROM operator_profiles WHERE operator_id = $1
	`, operatorID).Scan(
		&p.OperatorID, &p.DisplayName, &p.AgencyName,
		&p.LogoURL, &p.ThemeColor, &p.AIConnections.ConversationID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// UpsertProfile writes an operator profile; used by bootstrap and tests.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_profiles (operator_id, display_name, agency_name, logo_url, theme_color, conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (operator_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			agency_name = EXCLUDED.agency_name,
			logo_url = EXCLUDED.logo_url,
			theme_color = EXCLUDED.theme_color,
			conversation_id = EXCLUDED.conversation_id
	`, p.OperatorID, p.DisplayName, p.AgencyName, p.LogoURL, p.ThemeColor, p.AIConnections.ConversationID)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CreateShareLink stores a new share token for a conversation.
func (s *PostgresStore) CreateShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (token, conversation_id, created_by, password_hash)
		VALUES ($1, $2, $3, $4)
	`, link.Token, link.ConversationID, link.CreatedBy, link.PasswordHash)
	if err != nil {
		return fmt.Errorf("create share link: %w", err)
	}
	return nil
}

// GetShareLink resolves a share token. Revoked links are not returned.
func (s *PostgresStore) GetShareLink(ctx context.Context, token string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT token, conversation_id, created_by, password_hash, access_count
		FROM share_links WHERE token = $1 AND revoked_at IS NULL
	`, token).Scan(&link.Token, &link.ConversationID, &link.CreatedBy, &link.PasswordHash, &link.AccessCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ShareLink{}, ErrNotFound
	}
	if err != nil {
		return ShareLink{}, fmt.Errorf("load share link: %w", err)
	}
	return link, nil
}

// TouchShareLink bumps the access counter after a successful view.
func (s *PostgresStore) TouchShareLink(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE share_links SET access_count = access_count + 1 WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("touch share link: %w", err)
	}
	return nil
}
