package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// It searches the JSONB payload of saved proposals directly.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const proposalVector = `to_tsvector('french',
	coalesce(payload->>'title', '') || ' ' ||
	coalesce(payload->>'clientName', '') || ' ' ||
	coalesce(payload->>'brandName', '') || ' ' ||
	coalesce(payload->>'wishList', ''))`

// Search executes a plainto_tsquery over saved proposal payloads, ranked by
// ts_rank, with ts_headline snippets from the wish list.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('french', $1)"
	ctx := context.Background()

	countSQL := fmt.Sprintf(`SELECT count(*) FROM proposal_documents WHERE %s @@ %s`,
		proposalVector, tsQuery)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT conversation_id,
			coalesce(payload->>'title', ''),
			coalesce(payload->>'clientName', ''),
			coalesce(payload->>'brandName', ''),
			ts_headline('french', coalesce(payload->>'wishList', ''), %s, 'MaxFragments=1,MaxWords=30')
		FROM proposal_documents
		WHERE %s @@ %s
		ORDER BY ts_rank(%s, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, proposalVector, tsQuery, proposalVector, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ConversationID, &r.Title, &r.ClientName, &r.BrandName, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all saved proposals for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProposalRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT conversation_id,
			coalesce(payload->>'title', ''),
			coalesce(payload->>'clientName', ''),
			coalesce(payload->>'brandName', ''),
			coalesce(payload->>'wishList', '')
		FROM proposal_documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load proposals: %w", err)
	}
	defer rows.Close()

	records := make([]ProposalRecord, 0)
	for rows.Next() {
		var rec ProposalRecord
		if err := rows.Scan(&rec.ConversationID, &rec.Title, &rec.ClientName, &rec.BrandName, &rec.WishList); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}

	return records, nil
}
