package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// PG FTS. The primary backend is held behind the Searcher and Indexer
// interfaces so the routing logic never touches Meilisearch specifics.
type Service struct {
	meili   *Meili
	primary Searcher
	index   Indexer
	pgfts   *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{meili: meili, pgfts: pgfts}
	if meili != nil {
		s.primary = meili
		s.index = meili
	}
	return s
}

// Search tries the primary backend if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: primary backend error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexProposal indexes a saved proposal (fire-and-forget).
func (s *Service) IndexProposal(rec ProposalRecord) {
	if s.index == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.index.IndexProposal(rec); err != nil {
			log.Printf("search: index proposal %s: %v", rec.ConversationID, err)
		}
	}()
}

// DeleteProposal removes a proposal from the search index (fire-and-forget).
func (s *Service) DeleteProposal(conversationID string) {
	if s.index == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.index.DeleteProposal(conversationID); err != nil {
			log.Printf("search: delete proposal %s: %v", conversationID, err)
		}
	}()
}

// ReindexAllFromPG reads all saved proposals from PostgreSQL and pushes
// them into the primary index. Called at startup when it is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.index == nil || !s.primary.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	for _, rec := range records {
		if err := s.index.IndexProposal(rec); err != nil {
			log.Printf("search: reindex proposal %s: %v", rec.ConversationID, err)
		}
	}
}

// Close releases the Meilisearch health monitor, if any.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
