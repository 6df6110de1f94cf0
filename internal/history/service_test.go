package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nexus/api/internal/proposal"
)

func TestSaveHistoryLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	doc := proposal.Default()
	doc.Title = "Circuit Andalousie"
	doc.ItineraryRows = []proposal.ItineraryRow{{Day: "1", Activity: "Séville"}}

	first, err := svc.RecordSave("conv-1", doc, "Amélie")
	if err != nil {
		t.Fatalf("RecordSave() error = %v", err)
	}
	if first.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "conv-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	doc.PricePerPerson = "€980"
	second, err := svc.RecordSave("conv-1", doc, "Amélie")
	if err != nil {
		t.Fatalf("second RecordSave() error = %v", err)
	}

	revisions, err := svc.List("conv-1", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("revisions = %d, want 2", len(revisions))
	}
	if revisions[0].Hash != second.Hash {
		t.Fatalf("newest first expected, got %+v", revisions)
	}
	if revisions[0].Author != "Amélie" {
		t.Fatalf("author = %q", revisions[0].Author)
	}

	old, err := svc.GetRevision("conv-1", first.Hash)
	if err != nil {
		t.Fatalf("GetRevision() error = %v", err)
	}
	if old.PricePerPerson != "" {
		t.Fatalf("first revision pricePerPerson = %q, want empty", old.PricePerPerson)
	}
	if old.Title != "Circuit Andalousie" {
		t.Fatalf("first revision title = %q", old.Title)
	}
	if old.IncludedItems == nil {
		t.Fatal("revision not normalized")
	}
}

func TestGetRevisionNotFound(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.GetRevision("conv-none", "abc1234"); !errors.Is(err, ErrRevisionNotFound) {
		t.Fatalf("unknown conversation: err = %v, want ErrRevisionNotFound", err)
	}

	doc := proposal.Default()
	doc.Title = "Week-end à Porto"
	if _, err := svc.RecordSave("conv-1", doc, "Op"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.GetRevision("conv-1", "deadbee"); !errors.Is(err, ErrRevisionNotFound) {
		t.Fatalf("unknown hash: err = %v, want ErrRevisionNotFound", err)
	}
}

func TestListUnknownConversation(t *testing.T) {
	svc := New(t.TempDir())
	revisions, err := svc.List("conv-none", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(revisions) != 0 {
		t.Fatalf("revisions = %v, want empty", revisions)
	}
}

func TestHistoryIsolatedPerConversation(t *testing.T) {
	svc := New(t.TempDir())

	a := proposal.Default()
	a.Title = "A"
	if _, err := svc.RecordSave("conv-a", a, "Op"); err != nil {
		t.Fatalf("save a: %v", err)
	}
	b := proposal.Default()
	b.Title = "B"
	if _, err := svc.RecordSave("conv-b", b, "Op"); err != nil {
		t.Fatalf("save b: %v", err)
	}

	revisions, err := svc.List("conv-a", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("conv-a revisions = %d, want 1", len(revisions))
	}
}
