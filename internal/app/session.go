package app

import (
	"sync"

	"nexus/api/internal/proposal"
)

// EditingSession holds the in-memory working copy of one operator's
// proposal: the document plus the section registry. All mutations go
// through the session lock so concurrent requests from the same
// operator serialize cleanly.
type EditingSession struct {
	ConversationID string
	OperatorID     string

	mu       sync.Mutex
	doc      *proposal.Document
	registry *proposal.Registry

	// rewriteSeq is bumped every time a rewrite starts or is cancelled.
	// A rewrite result is only merged when its token still matches, so
	// a response arriving after the operator dismissed the dialog (or
	// started a newer rewrite) is dropped.
	rewriteSeq int
}

func newEditingSession(operatorID, conversationID string, doc *proposal.Document) *EditingSession {
	return &EditingSession{
		ConversationID: conversationID,
		OperatorID:     operatorID,
		doc:            doc,
		registry:       proposal.NewRegistry(),
	}
}

// update runs fn while holding the session lock.
func (es *EditingSession) update(fn func(doc *proposal.Document, reg *proposal.Registry) error) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return fn(es.doc, es.registry)
}

// snapshot returns a deep copy of the document and the current section
// states, safe to use after the lock is released.
func (es *EditingSession) snapshot() (*proposal.Document, map[proposal.SectionID]proposal.StateKind) {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.doc.Clone(), es.registry.States()
}

// beginRewrite reserves a merge token for an in-flight rewrite.
func (es *EditingSession) beginRewrite() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.rewriteSeq++
	return es.rewriteSeq
}

// completeRewrite applies the patch when the token is still current.
// Returns false when a newer rewrite or a cancel superseded this one.
func (es *EditingSession) completeRewrite(token int, p proposal.Patch) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	if token != es.rewriteSeq {
		return false
	}
	es.doc.Apply(p)
	return true
}

// cancelRewrite invalidates any in-flight rewrite token.
func (es *EditingSession) cancelRewrite() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.rewriteSeq++
}
