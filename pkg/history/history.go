// Package history keeps a SQLite log of export attempts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/digiscan/dumpcontact/pkg/core"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded export attempt.
type Entry struct {
	ID          string
	Kind        string
	FileName    string
	Location    string
	Destination string
	Rows        int
	Bytes       int
	Status      string
	Error       string
	CreatedAt   time.Time
}

// Filter narrows List.
type Filter struct {
	Kind  string // empty = every kind
	Limit int    // 0 = no limit
}

// Store reads and writes the exports table.
type Store struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := openDB(context.Background(), path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, sq: sq.StatementBuilder}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores res and returns its id, assigning a new one when res.ID
// is empty.
func (s *Store) Record(ctx context.Context, res *core.ExportResult, destination string) (string, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	created := res.StartTime
	if created.IsZero() {
		created = time.Now()
	}
	var errText string
	if res.Err != nil {
		errText = res.Err.Error()
	}

	q := s.sq.Insert("exports").
		Columns("id", "kind", "filename", "location", "destination", "rows", "bytes", "status", "error", "created_at").
		Values(res.ID, res.Kind.String(), res.FileName, res.Location, destination, res.Rows, res.Bytes,
			res.Status.String(), errText, created.UTC().Format(timeLayout))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return "", fmt.Errorf("insert export %s: %w", res.ID, err)
	}
	return res.ID, nil
}

// List returns recorded exports, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	b := s.sq.Select("id", "kind", "filename", "location", "destination", "rows", "bytes", "status", "error", "created_at").
		From("exports").
		OrderBy("created_at DESC", "rowid DESC")
	if f.Kind != "" {
		b = b.Where(sq.Eq{"kind": f.Kind})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Kind, &e.FileName, &e.Location, &e.Destination, &e.Rows, &e.Bytes, &e.Status, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
