package pagespub

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/pagespub/publish"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenJournal(t *testing.T) {
	j := setupTestJournal(t)
	if j.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestRecordAndGet(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	entry := publish.Entry{
		ID:         "abc",
		Branch:     "main",
		Number:     4,
		PostPath:   "posts/post4.html",
		Status:     publish.StatusFailed,
		FailedStep: publish.StepHomepage,
		Error:      "homepage index.html: conflict",
		Files:      []string{"media/post4/thumb.png", "posts/post4.html"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
	if err := j.Record(ctx, "octo", "site", entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := j.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Owner != "octo" || got.Repo != "site" {
		t.Errorf("repository = %s/%s, want octo/site", got.Owner, got.Repo)
	}
	if got.Number != 4 || got.PostPath != "posts/post4.html" {
		t.Errorf("post = %d %q", got.Number, got.PostPath)
	}
	if got.Status != publish.StatusFailed || got.FailedStep != publish.StepHomepage {
		t.Errorf("status = %q step = %q", got.Status, got.FailedStep)
	}
	if len(got.Files) != 2 || got.Files[1] != "posts/post4.html" {
		t.Errorf("Files = %v", got.Files)
	}
	if !got.StartedAt.Equal(started) || got.FinishedAt.Sub(got.StartedAt) != 2*time.Second {
		t.Errorf("times = %v .. %v", got.StartedAt, got.FinishedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	j := setupTestJournal(t)
	if _, err := j.Get(context.Background(), "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		e := publish.Entry{ID: id, Branch: "main", Status: publish.StatusOK, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := j.For("octo", "site").Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", id, err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent count = %d, want 2", len(got))
	}
	if got[0].ID != "third" || got[1].ID != "second" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Files != nil {
		t.Errorf("empty files should read back as nil, got %v", got[0].Files)
	}
}

func TestRecordReplacesSameID(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	e := publish.Entry{ID: "x", Branch: "main", Status: publish.StatusFailed}
	if err := j.Record(ctx, "o", "r", e); err != nil {
		t.Fatal(err)
	}
	e.Status = publish.StatusOK
	if err := j.Record(ctx, "o", "r", e); err != nil {
		t.Fatal(err)
	}
	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Status != publish.StatusOK {
		t.Errorf("got %+v", got)
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(context.Background(), "o", "r", publish.Entry{ID: "keep", Status: publish.StatusOK}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if _, err := j.Get(context.Background(), "keep"); err != nil {
		t.Errorf("entry lost after reopen: %v", err)
	}
}
