package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amxpanel/amxpanel/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		name       TEXT PRIMARY KEY,
		panel_id   INTEGER NOT NULL,
		data       BLOB NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS pages (
		project TEXT NOT NULL,
		page_id INTEGER NOT NULL,
		name    TEXT NOT NULL,
		kind    TEXT NOT NULL,
		text    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project, page_id)
	);
	CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
		name, text, content='pages', content_rowid='rowid'
	);
	CREATE TRIGGER IF NOT EXISTS pages_ai AFTER INSERT ON pages BEGIN
		INSERT INTO pages_fts(rowid, name, text) VALUES (new.rowid, new.name, new.text);
	END;
	CREATE TRIGGER IF NOT EXISTS pages_ad AFTER DELETE ON pages BEGIN
		INSERT INTO pages_fts(pages_fts, rowid, name, text) VALUES ('delete', old.rowid, old.name, old.text);
	END;`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save stores a project and indexes its pages.
func (s *SQLiteStore) Save(ctx context.Context, name string, p *model.Project) error {
	if name == "" {
		return fmt.Errorf("save project: empty name")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (name, panel_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			panel_id = excluded.panel_id,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		name, p.PanelID, data, now, now,
	)
	if err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE project = ?", name); err != nil {
		return fmt.Errorf("save %q pages: %w", name, err)
	}
	for _, pg := range p.Pages {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO pages (project, page_id, name, kind, text) VALUES (?, ?, ?, ?, ?)",
			name, pg.ID, pg.Name, string(pg.Kind), pageText(pg),
		)
		if err != nil {
			return fmt.Errorf("save %q page %d: %w", name, pg.ID, err)
		}
	}
	return tx.Commit()
}

// pageText collects the searchable text of a page's buttons.
func pageText(pg model.PageDefinition) string {
	var parts []string
	for _, b := range pg.Buttons {
		if b.Name != "" {
			parts = append(parts, b.Name)
		}
		for _, sr := range b.States {
			if sr.Text != "" {
				parts = append(parts, sr.Text)
			}
		}
	}
	return strings.Join(parts, " ")
}

// Load decodes a stored project.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM projects WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	return model.LoadProject(bytes.NewReader(data))
}

// Delete removes a project and its page index.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE project = ?", name); err != nil {
		return fmt.Errorf("delete %q pages: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return tx.Commit()
}

// List returns project summaries.
func (s *SQLiteStore) List(ctx context.Context) ([]ProjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, p.panel_id, p.created_at, p.updated_at,
			COALESCE(SUM(CASE WHEN g.kind = 'page' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN g.kind = 'popup' THEN 1 ELSE 0 END), 0)
		FROM projects p LEFT JOIN pages g ON g.project = p.name
		GROUP BY p.name
		ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectInfo
	for rows.Next() {
		var info ProjectInfo
		var createdAt, updatedAt string
		if err := rows.Scan(&info.Name, &info.PanelID, &createdAt, &updatedAt, &info.Pages, &info.Popups); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		info.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Search runs a full-text query over page names and button text.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]PageHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	// Quote each term so FTS5 operators in user input are literal.
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	ftsQuery := strings.Join(terms, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.project, g.page_id, g.name, g.kind
		FROM pages_fts f
		JOIN pages g ON g.rowid = f.rowid
		WHERE pages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	var hits []PageHit
	for rows.Next() {
		var h PageHit
		var kind string
		if err := rows.Scan(&h.Project, &h.PageID, &h.Name, &kind); err != nil {
			return nil, err
		}
		h.Kind = model.Kind(kind)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Close shuts down the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
