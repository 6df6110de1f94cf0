package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"nexus/api/internal/ai"
	"nexus/api/internal/config"
	"nexus/api/internal/docstore"
	"nexus/api/internal/history"
	"nexus/api/internal/pdf"
	"nexus/api/internal/proposal"
	"nexus/api/internal/search"
)

type stubProfiles struct {
	profiles map[string]docstore.Profile
	links    map[string]docstore.ShareLink
	touched  map[string]int
}

func newStubProfiles() *stubProfiles {
	return &stubProfiles{
		profiles: map[string]docstore.Profile{},
		links:    map[string]docstore.ShareLink{},
		touched:  map[string]int{},
	}
}

func (s *stubProfiles) GetProfile(_ context.Context, operatorID string) (docstore.Profile, error) {
	p, ok := s.profiles[operatorID]
	if !ok {
		return docstore.Profile{}, docstore.ErrNotFound
	}
	return p, nil
}

func (s *stubProfiles) UpsertProfile(_ context.Context, p docstore.Profile) error {
	s.profiles[p.OperatorID] = p
	return nil
}

func (s *stubProfiles) CreateShareLink(_ context.Context, link docstore.ShareLink) error {
	s.links[link.Token] = link
	return nil
}

func (s *stubProfiles) GetShareLink(_ context.Context, token string) (docstore.ShareLink, error) {
	link, ok := s.links[token]
	if !ok {
		return docstore.ShareLink{}, docstore.ErrNotFound
	}
	return link, nil
}

func (s *stubProfiles) TouchShareLink(_ context.Context, token string) error {
	s.touched[token]++
	return nil
}

func (s *stubProfiles) Ping(context.Context) error { return nil }

type memDocs struct {
	docs map[string]*proposal.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string]*proposal.Document{}}
}

func (m *memDocs) Load(_ context.Context, conversationID string) (*proposal.Document, error) {
	doc, ok := m.docs[conversationID]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *memDocs) Save(_ context.Context, conversationID string, doc *proposal.Document) error {
	m.docs[conversationID] = doc.Clone()
	return nil
}

func (m *memDocs) Delete(_ context.Context, conversationID string) error {
	delete(m.docs, conversationID)
	return nil
}

type stubHistory struct {
	saves     []string
	revisions map[string]*proposal.Document
}

func (h *stubHistory) RecordSave(conversationID string, doc *proposal.Document, _ string) (history.Revision, error) {
	h.saves = append(h.saves, conversationID)
	hash := fmt.Sprintf("rev%04d", len(h.saves))
	if h.revisions == nil {
		h.revisions = map[string]*proposal.Document{}
	}
	h.revisions[hash] = doc.Clone()
	return history.Revision{Hash: hash, Message: "Save"}, nil
}

func (h *stubHistory) List(string, int) ([]history.Revision, error) {
	out := make([]history.Revision, 0, len(h.saves))
	for i := len(h.saves); i > 0; i-- {
		out = append(out, history.Revision{Hash: fmt.Sprintf("rev%04d", i)})
	}
	return out, nil
}

func (h *stubHistory) GetRevision(_, hash string) (*proposal.Document, error) {
	doc, ok := h.revisions[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %q", history.ErrRevisionNotFound, hash)
	}
	return doc.Clone(), nil
}

type stubSearch struct {
	indexed []search.ProposalRecord
	deleted []string
}

func (s *stubSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (s *stubSearch) IndexProposal(rec search.ProposalRecord) {
	s.indexed = append(s.indexed, rec)
}

func (s *stubSearch) DeleteProposal(conversationID string) {
	s.deleted = append(s.deleted, conversationID)
}

type stubAI struct {
	result ai.Result
	err    error
	// started is closed on entry and gate blocks until released, so a
	// test can cancel a rewrite that is reliably in flight
	started chan struct{}
	gate    chan struct{}
}

func (s *stubAI) Rewrite(_ context.Context, _, _ string, _ *proposal.Document) (ai.Result, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.result, s.err
}

type stubPDF struct {
	result *pdf.Result
	err    error
}

func (s *stubPDF) Render(context.Context, *proposal.Document) (*pdf.Result, error) {
	return s.result, s.err
}

type stubMedia struct {
	uploads []string
}

func (s *stubMedia) Upload(_ context.Context, conversationID, filename, _ string, _ int64, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	url := "https://media.test/" + conversationID + "/" + filename
	s.uploads = append(s.uploads, url)
	return url, nil
}

type testEnv struct {
	service  *Service
	profiles *stubProfiles
	docs     *memDocs
	history  *stubHistory
	search   *stubSearch
	ai       *stubAI
	pdf      *stubPDF
	media    *stubMedia
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		profiles: newStubProfiles(),
		docs:     newMemDocs(),
		history:  &stubHistory{},
		search:   &stubSearch{},
		ai:       &stubAI{},
		pdf:      &stubPDF{},
		media:    &stubMedia{},
	}
	env.profiles.profiles["op-1"] = docstore.Profile{
		OperatorID:    "op-1",
		DisplayName:   "Marta",
		AgencyName:    "Nexus Travel",
		AIConnections: docstore.AIConnections{ConversationID: "conv-42"},
	}
	env.service = New(config.Config{}, env.profiles, env.docs, env.history, env.search, env.ai, env.pdf, env.media)
	return env
}

func openSession(t *testing.T, env *testEnv, operatorID string) {
	t.Helper()
	if _, err := env.service.OpenSession(context.Background(), operatorID); err != nil {
		t.Fatalf("open session: %v", err)
	}
}

func TestOpenSessionStartsFromDefaults(t *testing.T) {
	env := newTestEnv(t)

	payload, err := env.service.OpenSession(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if payload["conversationId"] != "conv-42" {
		t.Fatalf("conversationId = %v", payload["conversationId"])
	}
	doc, ok := payload["document"].(*proposal.Document)
	if !ok {
		t.Fatalf("document missing from payload")
	}
	if doc.BrandName != "Nexus Travel" {
		t.Fatalf("brand not seeded from profile: %q", doc.BrandName)
	}
	if doc.Title == "" {
		t.Fatal("default document should carry a title")
	}
}

func TestOpenSessionLoadsSavedDocument(t *testing.T) {
	env := newTestEnv(t)
	saved := proposal.Default()
	saved.Title = "Andalousie en famille"
	env.docs.docs["conv-42"] = saved

	payload, err := env.service.OpenSession(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	doc := payload["document"].(*proposal.Document)
	if doc.Title != "Andalousie en famille" {
		t.Fatalf("expected saved title, got %q", doc.Title)
	}
}

func TestOpenSessionRequiresConversation(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.profiles["op-2"] = docstore.Profile{OperatorID: "op-2"}

	_, err := env.service.OpenSession(context.Background(), "op-2")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_CONVERSATION" {
		t.Fatalf("expected NO_CONVERSATION, got %v", err)
	}
}

func TestOperationsRequireOpenSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.GetProposal("op-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_SESSION" {
		t.Fatalf("expected NO_SESSION, got %v", err)
	}
}

func TestFieldPatchTouchesOnlyPresentKeys(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	title := "Circuit Andalousie"
	payload, err := env.service.ApplyFieldPatch("op-1", proposal.Patch{Title: &title})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	doc := payload["document"].(*proposal.Document)
	if doc.Title != "Circuit Andalousie" {
		t.Fatalf("title = %q", doc.Title)
	}
	if doc.BrandName != "Nexus Travel" {
		t.Fatalf("brand clobbered by unrelated patch: %q", doc.BrandName)
	}
}

func TestEmptyPatchRejected(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	_, err := env.service.ApplyFieldPatch("op-1", proposal.Patch{})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 for empty patch, got %v", err)
	}
}

func TestCollectionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	for i, item := range []string{`"Vols internationaux"`, `"Pension complète"`, `"Guide francophone"`} {
		if _, err := env.service.CollectionInsert("op-1", "includedItems", i, []byte(item)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	payload, err := env.service.CollectionMove("op-1", "includedItems", 2, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	doc := payload["document"].(*proposal.Document)
	want := []string{"Guide francophone", "Vols internationaux", "Pension complète"}
	for i, w := range want {
		if doc.IncludedItems[i] != w {
			t.Fatalf("after move, item %d = %q, want %q", i, doc.IncludedItems[i], w)
		}
	}

	payload, err = env.service.CollectionRemove("op-1", "includedItems", 1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	doc = payload["document"].(*proposal.Document)
	if len(doc.IncludedItems) != 2 {
		t.Fatalf("after remove, len = %d", len(doc.IncludedItems))
	}
}

func TestCollectionInsertRejectsWrongItemShape(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	_, err := env.service.CollectionInsert("op-1", "itineraryRows", 0, []byte(`"just a string"`))
	if !errors.Is(err, proposal.ErrItemType) {
		t.Fatalf("expected ErrItemType, got %v", err)
	}
}

func TestCollectionMoveOutOfRangeLeavesDocumentUntouched(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	if _, err := env.service.CollectionInsert("op-1", "includedItems", 0, []byte(`"Vols"`)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := env.service.CollectionMove("op-1", "includedItems", 0, 5)
	if !errors.Is(err, proposal.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	payload, err := env.service.GetProposal("op-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	doc := payload["document"].(*proposal.Document)
	if len(doc.IncludedItems) != 1 || doc.IncludedItems[0] != "Vols" {
		t.Fatalf("document changed by failed move: %v", doc.IncludedItems)
	}
}

func TestSectionDeleteRestoreRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	price := "1 450 €"
	if _, err := env.service.ApplyFieldPatch("op-1", proposal.Patch{PricePerPerson: &price}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	payload, err := env.service.SectionAction("op-1", "pricing", "delete")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	doc := payload["document"].(*proposal.Document)
	if doc.PricePerPerson != "" {
		t.Fatalf("delete should clear the live field, got %q", doc.PricePerPerson)
	}
	states := payload["sections"].(map[proposal.SectionID]proposal.StateKind)
	if states[proposal.SectionPricing] != proposal.StateDeleted {
		t.Fatalf("state = %v", states[proposal.SectionPricing])
	}

	payload, err = env.service.SectionAction("op-1", "pricing", "restore")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	doc = payload["document"].(*proposal.Document)
	if doc.PricePerPerson != "1 450 €" {
		t.Fatalf("restore lost the snapshot, got %q", doc.PricePerPerson)
	}
}

func TestSectionActionUnknownSection(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	_, err := env.service.SectionAction("op-1", "appendix", "hide")
	if !errors.Is(err, proposal.ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
}

func TestSaveRequiresItinerary(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	_, err := env.service.Save(context.Background(), "op-1")
	if !errors.Is(err, proposal.ErrEmptyItinerary) {
		t.Fatalf("expected ErrEmptyItinerary, got %v", err)
	}
	if len(env.history.saves) != 0 {
		t.Fatal("failed save must not record history")
	}
}

func TestSavePersistsAndIndexes(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	row := []byte(`{"day":"Jour 1","activity":"Séville","hotelName":"Hotel Giralda"}`)
	if _, err := env.service.CollectionInsert("op-1", "itineraryRows", 0, row); err != nil {
		t.Fatalf("insert: %v", err)
	}
	title := "Séville express"
	if _, err := env.service.ApplyFieldPatch("op-1", proposal.Patch{Title: &title}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	payload, err := env.service.Save(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}

	saved, ok := env.docs.docs["conv-42"]
	if !ok {
		t.Fatal("document not persisted")
	}
	if saved.Title != "Séville express" {
		t.Fatalf("persisted title = %q", saved.Title)
	}
	if len(env.history.saves) != 1 {
		t.Fatalf("history saves = %d", len(env.history.saves))
	}
	if len(env.search.indexed) != 1 || env.search.indexed[0].Title != "Séville express" {
		t.Fatalf("search index = %+v", env.search.indexed)
	}
}

func TestHistoryRevisionReturnsSavedDocument(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	row := []byte(`{"day":"Jour 1","activity":"Grenade","hotelName":"Alhambra Palace"}`)
	if _, err := env.service.CollectionInsert("op-1", "itineraryRows", 0, row); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := env.service.Save(context.Background(), "op-1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	payload, err := env.service.HistoryRevision("op-1", "rev0001")
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	doc, ok := payload["document"].(*proposal.Document)
	if !ok {
		t.Fatalf("payload document = %T", payload["document"])
	}
	if len(doc.ItineraryRows) != 1 || doc.ItineraryRows[0].HotelName != "Alhambra Palace" {
		t.Fatalf("revision rows = %+v", doc.ItineraryRows)
	}

	if _, err := env.service.HistoryRevision("op-1", "rev9999"); !errors.Is(err, history.ErrRevisionNotFound) {
		t.Fatalf("expected ErrRevisionNotFound, got %v", err)
	}
}

func TestDeleteProposalRemovesDocumentAndSession(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	row := []byte(`{"day":"Jour 1","activity":"Séville","hotelName":"Hotel Giralda"}`)
	if _, err := env.service.CollectionInsert("op-1", "itineraryRows", 0, row); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := env.service.Save(context.Background(), "op-1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	payload, err := env.service.DeleteProposal(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if payload["conversationId"] != "conv-42" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := env.docs.docs["conv-42"]; ok {
		t.Fatal("document still persisted after delete")
	}
	if len(env.search.deleted) != 1 || env.search.deleted[0] != "conv-42" {
		t.Fatalf("search deletions = %v", env.search.deleted)
	}

	// The session is gone; further edits require reopening.
	var domainErr *DomainError
	_, err = env.service.GetProposal("op-1")
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_SESSION" {
		t.Fatalf("expected NO_SESSION, got %v", err)
	}
}

func TestExportSkipsDeletedSections(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	price := "2 300 €"
	if _, err := env.service.ApplyFieldPatch("op-1", proposal.Patch{PricePerPerson: &price}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if _, err := env.service.SectionAction("op-1", "pricing", "delete"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	html, err := env.service.Export("op-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(html, "2 300") {
		t.Fatal("deleted pricing leaked into export")
	}
}

func TestRewriteAppliesPatch(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	wish := "Des tapas et du flamenco"
	env.ai.result = ai.Result{Patch: &proposal.Patch{WishList: &wish}}

	payload, err := env.service.Rewrite(context.Background(), "op-1", "rends-le plus vivant", "wishlist")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if payload["applied"] != true {
		t.Fatalf("payload = %v", payload)
	}
	doc := payload["document"].(*proposal.Document)
	if doc.WishList != wish {
		t.Fatalf("wishList = %q", doc.WishList)
	}
}

func TestRewriteProsePassesThrough(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	env.ai.result = ai.Result{Message: "Je ne peux pas raccourcir davantage."}

	payload, err := env.service.Rewrite(context.Background(), "op-1", "raccourcis", "")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if payload["applied"] != false || payload["message"] != "Je ne peux pas raccourcir davantage." {
		t.Fatalf("payload = %v", payload)
	}
}

func TestCancelledRewriteIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	wish := "Texte arrivé trop tard"
	env.ai.result = ai.Result{Patch: &proposal.Patch{WishList: &wish}}
	env.ai.started = make(chan struct{})
	env.ai.gate = make(chan struct{})

	done := make(chan map[string]any, 1)
	go func() {
		payload, err := env.service.Rewrite(context.Background(), "op-1", "réécris", "wishlist")
		if err != nil {
			t.Errorf("rewrite: %v", err)
		}
		done <- payload
	}()

	<-env.ai.started
	if err := env.service.CancelRewrite("op-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(env.ai.gate)

	payload := <-done
	if payload["applied"] != false {
		t.Fatalf("cancelled rewrite still applied: %v", payload)
	}
	current, err := env.service.GetProposal("op-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	doc := current["document"].(*proposal.Document)
	if doc.WishList == wish {
		t.Fatal("cancelled rewrite mutated the document")
	}
}

func TestShareLinkRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	saved := proposal.Default()
	saved.Title = "Grand tour du Portugal"
	saved.ItineraryRows = []proposal.ItineraryRow{{Day: "Jour 1", Activity: "Lisbonne"}}
	env.docs.docs["conv-42"] = saved

	payload, err := env.service.CreateShareLink(context.Background(), "op-1", "")
	if err != nil {
		t.Fatalf("create share: %v", err)
	}
	token := payload["token"].(string)
	if payload["protected"] != false {
		t.Fatalf("unprotected link flagged as protected")
	}

	html, err := env.service.ResolveShare(context.Background(), token, "")
	if err != nil {
		t.Fatalf("resolve share: %v", err)
	}
	if !strings.Contains(html, "Grand tour du Portugal") {
		t.Fatal("shared page missing the saved title")
	}
	if env.profiles.touched[token] != 1 {
		t.Fatalf("access count = %d", env.profiles.touched[token])
	}
}

func TestShareLinkPassword(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")
	env.docs.docs["conv-42"] = proposal.Default()

	payload, err := env.service.CreateShareLink(context.Background(), "op-1", "secret")
	if err != nil {
		t.Fatalf("create share: %v", err)
	}
	token := payload["token"].(string)

	_, err = env.service.ResolveShare(context.Background(), token, "wrong")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 401 {
		t.Fatalf("expected 401, got %v", err)
	}

	if _, err := env.service.ResolveShare(context.Background(), token, "secret"); err != nil {
		t.Fatalf("resolve with password: %v", err)
	}
}

func TestUploadLodgingImageCreatesCustomEntry(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	row := []byte(`{"day":"Jour 1","activity":"Ronda","hotelName":"Parador de Ronda"}`)
	if _, err := env.service.CollectionInsert("op-1", "itineraryRows", 0, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	payload, err := env.service.UploadLodgingImage(context.Background(), "op-1", 0,
		"facade.jpg", "image/jpeg", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	url := payload["url"].(string)

	current, err := env.service.GetProposal("op-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	doc := current["document"].(*proposal.Document)
	if len(doc.CustomLodgings) != 1 || doc.CustomLodgings[0].Name != "Parador de Ronda" {
		t.Fatalf("custom lodgings = %+v", doc.CustomLodgings)
	}
	if len(doc.CustomLodgings[0].Images) != 1 || doc.CustomLodgings[0].Images[0] != url {
		t.Fatalf("images = %v", doc.CustomLodgings[0].Images)
	}
}

func TestUploadLodgingImageOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	openSession(t, env, "op-1")

	_, err := env.service.UploadLodgingImage(context.Background(), "op-1", 3,
		"facade.jpg", "image/jpeg", 4, strings.NewReader("data"))
	if !errors.Is(err, proposal.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}
