package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"nexus/api/internal/ai"
	"nexus/api/internal/config"
	"nexus/api/internal/docstore"
	"nexus/api/internal/history"
	"nexus/api/internal/pdf"
	"nexus/api/internal/proposal"
	"nexus/api/internal/render"
	"nexus/api/internal/search"
	"nexus/api/internal/util"
)

type profileStore interface {
	GetProfile(ctx context.Context, operatorID string) (docstore.Profile, error)
	UpsertProfile(ctx context.Context, p docstore.Profile) error
	CreateShareLink(ctx context.Context, link docstore.ShareLink) error
	GetShareLink(ctx context.Context, token string) (docstore.ShareLink, error)
	TouchShareLink(ctx context.Context, token string) error
	Ping(ctx context.Context) error
}

type historyService interface {
	RecordSave(conversationID string, doc *proposal.Document, author string) (history.Revision, error)
	List(conversationID string, limit int) ([]history.Revision, error)
	GetRevision(conversationID, hash string) (*proposal.Document, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexProposal(rec search.ProposalRecord)
	DeleteProposal(conversationID string)
}

type aiRewriter interface {
	Rewrite(ctx context.Context, instruction, sectionID string, doc *proposal.Document) (ai.Result, error)
}

type pdfRenderer interface {
	Render(ctx context.Context, doc *proposal.Document) (*pdf.Result, error)
}

// MediaStore uploads images; nil disables media endpoints.
type MediaStore interface {
	Upload(ctx context.Context, conversationID, filename, contentType string, size int64, r io.Reader) (string, error)
}

type Service struct {
	cfg      config.Config
	profiles profileStore
	docs     docstore.Store
	history  historyService
	search   searchService
	ai       aiRewriter
	pdf      pdfRenderer
	media    MediaStore

	mu       sync.Mutex
	sessions map[string]*EditingSession
}

func New(cfg config.Config, profiles profileStore, docs docstore.Store, hist historyService, searchSvc searchService, rewriter aiRewriter, renderer pdfRenderer, media MediaStore) *Service {
	return &Service{
		cfg:      cfg,
		profiles: profiles,
		docs:     docs,
		history:  hist,
		search:   searchSvc,
		ai:       rewriter,
		pdf:      renderer,
		media:    media,
		sessions: make(map[string]*EditingSession),
	}
}

// Ping reports database connectivity for readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	return s.profiles.Ping(ctx)
}

// OpenSession resolves the operator's profile, finds the conversation
// the proposal belongs to, loads the last saved document (or a fresh
// default when nothing was ever saved) and starts an editing session.
func (s *Service) OpenSession(ctx context.Context, operatorID string) (map[string]any, error) {
	profile, err := s.profiles.GetProfile(ctx, operatorID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "PROFILE_NOT_FOUND", "Operator profile not found", nil)
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	conversationID := strings.TrimSpace(profile.AIConnections.ConversationID)
	if conversationID == "" {
		return nil, domainError(http.StatusConflict, "NO_CONVERSATION",
			"Operator profile has no conversation configured", nil)
	}

	doc, err := s.docs.Load(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("load document: %w", err)
		}
		doc = proposal.Default()
		if profile.AgencyName != "" {
			doc.BrandName = profile.AgencyName
		}
		if profile.LogoURL != "" {
			doc.LogoURL = profile.LogoURL
		}
		if profile.ThemeColor != "" {
			doc.ThemeColor = profile.ThemeColor
		}
	}

	session := newEditingSession(operatorID, conversationID, doc)
	s.mu.Lock()
	s.sessions[operatorID] = session
	s.mu.Unlock()

	docCopy, states := session.snapshot()
	return map[string]any{
		"conversationId": conversationID,
		"document":       docCopy,
		"sections":       states,
		"profile": map[string]any{
			"displayName": profile.DisplayName,
			"agencyName":  profile.AgencyName,
		},
	}, nil
}

func (s *Service) sessionFor(operatorID string) (*EditingSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[operatorID]
	s.mu.Unlock()
	if !ok {
		return nil, domainError(http.StatusConflict, "NO_SESSION",
			"No editing session open, call /api/session/open first", nil)
	}
	return session, nil
}

// GetProposal returns the working document, its live view, and the
// section states.
func (s *Service) GetProposal(operatorID string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	doc, states := session.snapshot()
	return map[string]any{
		"conversationId": session.ConversationID,
		"document":       doc,
		"sections":       states,
		"view":           render.BuildView(doc, proposal.RegistryFromStates(states)),
	}, nil
}

// ApplyFieldPatch merges a partial update into the working document.
// Only keys present in the patch are written.
func (s *Service) ApplyFieldPatch(operatorID string, p proposal.Patch) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	if p.IsZero() {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Patch has no fields", nil)
	}
	if err := session.update(func(doc *proposal.Document, _ *proposal.Registry) error {
		doc.Apply(p)
		return nil
	}); err != nil {
		return nil, err
	}
	return s.GetProposal(operatorID)
}

// CollectionInsert inserts one item at the given index. The whole call
// fails without touching the document when the index is out of range or
// the item does not decode as the collection's element type.
func (s *Service) CollectionInsert(operatorID, collection string, index int, rawItem json.RawMessage) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	col, err := proposal.ParseCollection(collection)
	if err != nil {
		return nil, err
	}
	item, err := decodeItem(col, rawItem)
	if err != nil {
		return nil, err
	}
	if err := session.update(func(doc *proposal.Document, _ *proposal.Registry) error {
		return doc.InsertAt(col, index, item)
	}); err != nil {
		return nil, err
	}
	return s.GetProposal(operatorID)
}

// CollectionRemove removes the item at the given index.
func (s *Service) CollectionRemove(operatorID, collection string, index int) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	col, err := proposal.ParseCollection(collection)
	if err != nil {
		return nil, err
	}
	if err := session.update(func(doc *proposal.Document, _ *proposal.Registry) error {
		return doc.RemoveAt(col, index)
	}); err != nil {
		return nil, err
	}
	return s.GetProposal(operatorID)
}

// CollectionMove moves an item from one position to another. The target
// index addresses the list as it looks after the item was taken out.
func (s *Service) CollectionMove(operatorID, collection string, from, to int) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	col, err := proposal.ParseCollection(collection)
	if err != nil {
		return nil, err
	}
	if err := session.update(func(doc *proposal.Document, _ *proposal.Registry) error {
		return doc.MoveItem(col, from, to)
	}); err != nil {
		return nil, err
	}
	return s.GetProposal(operatorID)
}

// SectionAction applies hide/show/delete/restore to one section.
func (s *Service) SectionAction(operatorID, sectionID, action string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	id, err := proposal.ParseSection(sectionID)
	if err != nil {
		return nil, err
	}
	if err := session.update(func(doc *proposal.Document, reg *proposal.Registry) error {
		switch action {
		case "hide":
			reg.Hide(id)
		case "show":
			reg.Show(id)
		case "delete":
			reg.Delete(doc, id)
		case "restore":
			// restore without a snapshot logs inside the registry
			reg.Restore(doc, id)
		default:
			return domainError(http.StatusNotFound, "NOT_FOUND", "Unknown section action", nil)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return s.GetProposal(operatorID)
}

// Save persists the working document, records a history revision, and
// refreshes the search index.
func (s *Service) Save(ctx context.Context, operatorID string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	doc, _ := session.snapshot()
	if err := doc.ValidateForSave(); err != nil {
		return nil, err
	}
	if err := s.docs.Save(ctx, session.ConversationID, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	revision, err := s.history.RecordSave(session.ConversationID, doc, operatorID)
	if err != nil {
		// The document is saved; losing one history entry is not fatal.
		log.Printf("history: record save for %s: %v", session.ConversationID, err)
	}

	s.search.IndexProposal(search.ProposalRecord{
		ConversationID: session.ConversationID,
		Title:          doc.Title,
		ClientName:     doc.ClientName,
		BrandName:      doc.BrandName,
		WishList:       doc.WishList,
	})

	return map[string]any{
		"ok":       true,
		"revision": revision,
	}, nil
}

// History lists past saves, newest first.
func (s *Service) History(operatorID string, limit int) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	revisions, err := s.history.List(session.ConversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return map[string]any{"revisions": revisions}, nil
}

// HistoryRevision returns the document exactly as it was at one save.
func (s *Service) HistoryRevision(operatorID, hash string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	doc, err := s.history.GetRevision(session.ConversationID, hash)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"conversationId": session.ConversationID,
		"hash":           hash,
		"document":       doc,
	}, nil
}

// DeleteProposal removes the saved document, evicts it from the search
// index and closes the editing session. Save history stays on disk.
func (s *Service) DeleteProposal(ctx context.Context, operatorID string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Delete(ctx, session.ConversationID); err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	s.search.DeleteProposal(session.ConversationID)

	s.mu.Lock()
	delete(s.sessions, operatorID)
	s.mu.Unlock()

	return map[string]any{
		"ok":             true,
		"conversationId": session.ConversationID,
	}, nil
}

// Export renders the working document as a standalone HTML page.
func (s *Service) Export(operatorID string) (string, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return "", err
	}
	doc, states := session.snapshot()
	return render.ExportHTML(doc, proposal.RegistryFromStates(states))
}

// RenderPDF sends the working document to the external render service.
func (s *Service) RenderPDF(ctx context.Context, operatorID string) (*pdf.Result, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	doc, _ := session.snapshot()
	result, err := s.pdf.Render(ctx, doc)
	if err != nil {
		if errors.Is(err, pdf.ErrNotConfigured) {
			return nil, domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering not configured", nil)
		}
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return result, nil
}

// Rewrite asks the AI gateway to rework part of the proposal. When the
// gateway answers with a patch, it is merged into the working document
// unless the operator cancelled or started a newer rewrite in the
// meantime. Prose answers are passed through untouched.
func (s *Service) Rewrite(ctx context.Context, operatorID, instruction, sectionID string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "instruction is required", nil)
	}
	if sectionID != "" {
		if _, err := proposal.ParseSection(sectionID); err != nil {
			return nil, err
		}
	}

	token := session.beginRewrite()
	doc, _ := session.snapshot()

	result, err := s.ai.Rewrite(ctx, instruction, sectionID, doc)
	if err != nil {
		if errors.Is(err, ai.ErrNoCredential) {
			return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI gateway not configured", nil)
		}
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	if result.Patch == nil {
		return map[string]any{"applied": false, "message": result.Message}, nil
	}

	if !session.completeRewrite(token, *result.Patch) {
		return map[string]any{"applied": false, "superseded": true}, nil
	}
	payload, err := s.GetProposal(operatorID)
	if err != nil {
		return nil, err
	}
	payload["applied"] = true
	return payload, nil
}

// CancelRewrite discards any rewrite still in flight for this session.
func (s *Service) CancelRewrite(operatorID string) error {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return err
	}
	session.cancelRewrite()
	return nil
}

// CreateShareLink mints a public read-only link for the saved proposal,
// optionally protected by a password.
func (s *Service) CreateShareLink(ctx context.Context, operatorID, password string) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}

	link := docstore.ShareLink{
		Token:          util.NewID("shr"),
		ConversationID: session.ConversationID,
		CreatedBy:      operatorID,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}
	if err := s.profiles.CreateShareLink(ctx, link); err != nil {
		return nil, fmt.Errorf("create share link: %w", err)
	}
	return map[string]any{
		"token":     link.Token,
		"url":       "/share/" + link.Token,
		"protected": link.PasswordHash != nil,
	}, nil
}

// ResolveShare renders the last saved version of a shared proposal.
// Share links always show the saved document with every section
// visible; editing state never leaks through a public link.
func (s *Service) ResolveShare(ctx context.Context, token, password string) (string, error) {
	link, err := s.profiles.GetShareLink(ctx, token)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", domainError(http.StatusNotFound, "NOT_FOUND", "Share link not found", nil)
		}
		return "", fmt.Errorf("load share link: %w", err)
	}
	if link.PasswordHash != nil {
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)); err != nil {
			return "", domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Password required", nil)
		}
	}

	doc, err := s.docs.Load(ctx, link.ConversationID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", domainError(http.StatusNotFound, "NOT_FOUND", "Proposal not saved yet", nil)
		}
		return "", fmt.Errorf("load document: %w", err)
	}

	if err := s.profiles.TouchShareLink(ctx, token); err != nil {
		log.Printf("share: touch %s: %v", token, err)
	}

	return render.ExportHTML(doc, proposal.NewRegistry())
}

// UploadLodgingImage stores an image and attaches its URL to the
// lodging at the given position in the rendered lodging list. When the
// position points at a derived entry, a custom entry with the same
// hotel name is created so the attachment survives itinerary edits.
func (s *Service) UploadLodgingImage(ctx context.Context, operatorID string, index int, filename, contentType string, size int64, r io.Reader) (map[string]any, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}

	url, err := s.media.Upload(ctx, session.ConversationID, filename, contentType, size, r)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	if err := session.update(func(doc *proposal.Document, _ *proposal.Registry) error {
		lodgings := doc.Lodgings()
		if index < 0 || index >= len(lodgings) {
			return proposal.ErrIndexOutOfRange
		}
		name := lodgings[index].Name
		for i := range doc.CustomLodgings {
			if doc.CustomLodgings[i].Name == name {
				doc.CustomLodgings[i].Images = append(doc.CustomLodgings[i].Images, url)
				return nil
			}
		}
		doc.CustomLodgings = append(doc.CustomLodgings, proposal.Lodging{
			Name:   name,
			Images: []string{url},
		})
		return nil
	}); err != nil {
		return nil, err
	}

	return map[string]any{"url": url}, nil
}

// Search queries saved proposals.
func (s *Service) Search(text string, limit, offset int) search.Response {
	return s.search.Search(search.Query{Text: text, Limit: limit, Offset: offset})
}

func decodeItem(col proposal.Collection, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, proposal.ErrItemType
	}
	switch col {
	case proposal.ColItinerary:
		var row proposal.ItineraryRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, proposal.ErrItemType
		}
		return row, nil
	case proposal.ColIncluded, proposal.ColExcluded:
		var item string
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, proposal.ErrItemType
		}
		return item, nil
	case proposal.ColLodgings:
		var lodging proposal.Lodging
		if err := json.Unmarshal(raw, &lodging); err != nil {
			return nil, proposal.ErrItemType
		}
		return lodging, nil
	default:
		return nil, proposal.ErrUnknownCollection
	}
}
