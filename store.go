package pagespub

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pagespub/publish"
)

// ErrEntryNotFound is returned by Journal.Get for an unknown id.
var ErrEntryNotFound = errors.New("journal entry not found")

// Journal is a SQLite log of publish attempts.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the SQLite database at path, ensures the
// data directory exists, and runs schema migrations.
func OpenJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL with a busy timeout lets the CLI and a running panel share the file.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	j := &Journal{db: db}
	if err := j.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) ensureSchema() error {
	_, err := j.db.Exec(`
CREATE TABLE IF NOT EXISTS publishes (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    repo TEXT NOT NULL,
    branch TEXT NOT NULL,
    number INTEGER NOT NULL DEFAULT 0,
    post_path TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    failed_step TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    files TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS publishes_started ON publishes (started_at);
`)
	return err
}

// Record stores one attempt against owner/repo.
func (j *Journal) Record(ctx context.Context, owner, repo string, e publish.Entry) error {
	_, err := j.db.ExecContext(ctx, `INSERT OR REPLACE INTO publishes
		(id, owner, repo, branch, number, post_path, status, failed_step, error, files, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, owner, repo, e.Branch, e.Number, e.PostPath, e.Status, string(e.FailedStep), e.Error,
		joinFiles(e.Files), e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// For returns a publish.Journal that records against owner/repo.
func (j *Journal) For(owner, repo string) publish.Journal {
	return repoJournal{j: j, owner: owner, repo: repo}
}

type repoJournal struct {
	j           *Journal
	owner, repo string
}

func (r repoJournal) Record(ctx context.Context, e publish.Entry) error {
	return r.j.Record(ctx, r.owner, r.repo, e)
}

const entryColumns = `id, owner, repo, branch, number, post_path, status, failed_step, error, files, started_at, finished_at`

// Recent returns up to limit attempts, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM publishes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one attempt by id.
func (j *Journal) Get(ctx context.Context, id string) (JournalEntry, error) {
	e, err := scanEntry(j.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM publishes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, ErrEntryNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (JournalEntry, error) {
	var e JournalEntry
	var step, files, started, finished string
	if err := s.Scan(&e.ID, &e.Owner, &e.Repo, &e.Branch, &e.Number, &e.PostPath, &e.Status,
		&step, &e.Error, &files, &started, &finished); err != nil {
		return JournalEntry{}, err
	}
	e.FailedStep = publish.Step(step)
	e.Files = splitFiles(files)
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return e, nil
}

// Repository paths never contain a newline, so one path per line.
func joinFiles(files []string) string {
	return strings.Join(files, "\n")
}

func splitFiles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
