package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deusflow/newsai/internal/article"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	url TEXT PRIMARY KEY,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS discarded (
	url TEXT PRIMARY KEY,
	reason TEXT NOT NULL,
	at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS archived (
	url TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
`

// SQLiteBackend keeps the stores as tables of one SQLite database. Saves
// replace a whole table inside a transaction.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; the crawler is single-process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) LoadArticles(ctx context.Context) ([]*article.Record, error) {
	return b.loadRecords(ctx, "articles")
}

func (b *SQLiteBackend) SaveArticles(ctx context.Context, records []*article.Record) error {
	return b.saveRecords(ctx, "articles", records)
}

func (b *SQLiteBackend) LoadArchived(ctx context.Context) ([]*article.Record, error) {
	return b.loadRecords(ctx, "archived")
}

func (b *SQLiteBackend) SaveArchived(ctx context.Context, records []*article.Record) error {
	return b.saveRecords(ctx, "archived", records)
}

func (b *SQLiteBackend) LoadDiscarded(ctx context.Context) ([]article.Discarded, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT url, reason, at FROM discarded ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("query discarded: %w", err)
	}
	defer rows.Close()

	var out []article.Discarded
	for rows.Next() {
		var d article.Discarded
		var reason, at string
		if err := rows.Scan(&d.URL, &reason, &at); err != nil {
			return nil, fmt.Errorf("scan discarded: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("%w discarded %s: %v", ErrDecode, d.URL, err)
		}
		d.Reason = article.DiscardReason(reason)
		d.At = t
		out = append(out, d)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) SaveDiscarded(ctx context.Context, entries []article.Discarded) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discarded`); err != nil {
		return fmt.Errorf("clear discarded: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO discarded (url, reason, at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare discarded: %w", err)
	}
	defer stmt.Close()

	for _, d := range entries {
		if _, err := stmt.ExecContext(ctx, d.URL, string(d.Reason), d.At.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert discarded %s: %w", d.URL, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *SQLiteBackend) loadRecords(ctx context.Context, table string) ([]*article.Record, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT url, data FROM `+table+` ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*article.Record
	for rows.Next() {
		var url, data string
		if err := rows.Scan(&url, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var r article.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("%w %s row %s: %v", ErrDecode, table, url, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) saveRecords(ctx context.Context, table string, records []*article.Record) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (url, data) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.URL, err)
		}
		if _, err := stmt.ExecContext(ctx, r.URL, string(data)); err != nil {
			return fmt.Errorf("insert %s %s: %w", table, r.URL, err)
		}
	}
	return tx.Commit()
}
