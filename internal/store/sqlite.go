package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

// SQLite keeps one row per story with the full document in a JSON column.
type SQLite struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// timeLayout is fixed-width so updated_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type storyRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Genre     string `db:"genre"`
	Mode      string `db:"mode"`
	Chapters  int    `db:"chapters"`
	Completed int    `db:"completed"`
	Step      string `db:"step"`
	UpdatedAt string `db:"updated_at"`
}

// OpenSQLite opens or creates the database at path. ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	conn.SetMaxOpenConns(1)

	db := &SQLite{
		conn:   conn,
		logger: slog.Default().With("component", "sqlite_store"),
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

func (db *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL UNIQUE,
		genre TEXT NOT NULL,
		mode TEXT NOT NULL,
		chapters INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		step TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stories_updated ON stories(updated_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func (db *SQLite) List(ctx context.Context) ([]Summary, error) {
	var rows []storyRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, title, genre, mode, chapters, completed, step, updated_at
		 FROM stories ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		updated, _ := time.Parse(timeLayout, r.UpdatedAt)
		out = append(out, Summary{
			ID:        r.ID,
			Title:     r.Title,
			Genre:     r.Genre,
			Mode:      r.Mode,
			Chapters:  r.Chapters,
			Completed: r.Completed,
			Step:      story.WorkflowStep(r.Step),
			UpdatedAt: updated,
		})
	}
	return out, nil
}

func (db *SQLite) Get(ctx context.Context, id string) (*story.State, error) {
	var data string
	err := db.conn.GetContext(ctx, &data, `SELECT data FROM stories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}

	var s story.State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", id, err)
	}
	return &s, nil
}

func (db *SQLite) Save(ctx context.Context, s *story.State) (string, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, exists, err := resolveID(ctx, tx, s)
	if err != nil {
		return "", err
	}

	doc := s.Clone()
	doc.ID = id
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode story: %w", err)
	}
	sum := summarize(doc)
	updated := sum.UpdatedAt.UTC().Format(timeLayout)

	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE stories SET title = ?, genre = ?, mode = ?, chapters = ?, completed = ?, step = ?, updated_at = ?, data = ?
			 WHERE id = ?`,
			sum.Title, sum.Genre, sum.Mode, sum.Chapters, sum.Completed, string(sum.Step), updated, string(data), id)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stories (id, title, genre, mode, chapters, completed, step, updated_at, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sum.Title, sum.Genre, sum.Mode, sum.Chapters, sum.Completed, string(sum.Step), updated, string(data))
	}
	if err != nil {
		return "", fmt.Errorf("save story %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	db.logger.Debug("story saved", "story_id", id, "update", exists)
	return id, nil
}

// resolveID applies upsert-by-title: the story's own id wins, then a stored story with the
// same title, otherwise the story is inserted under its own id.
func resolveID(ctx context.Context, tx *sqlx.Tx, s *story.State) (string, bool, error) {
	var owner string
	err := tx.GetContext(ctx, &owner, `SELECT id FROM stories WHERE title = ?`, s.Title)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		owner = ""
	case err != nil:
		return "", false, fmt.Errorf("lookup title: %w", err)
	}

	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM stories WHERE id = ?`, s.ID); err != nil {
		return "", false, fmt.Errorf("lookup id: %w", err)
	}

	switch {
	case n > 0 && owner != "" && owner != s.ID:
		return "", false, fmt.Errorf("%w: %q", ErrTitleTaken, s.Title)
	case n > 0:
		return s.ID, true, nil
	case owner != "":
		return owner, true, nil
	}
	return s.ID, false, nil
}

func (db *SQLite) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete story %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
