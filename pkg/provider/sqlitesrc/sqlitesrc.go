// Package sqlitesrc serves provider queries from provider databases pulled
// off a device (calllog.db, mmssms.db, contacts2.db).
package sqlitesrc

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/provider"
)

// Mimetypes of the contacts data rows.
const (
	MimePhone = "vnd.android.cursor.item/phone_v2"
	MimeEmail = "vnd.android.cursor.item/email_v2"
)

// Paths locates the provider databases. Empty paths leave that provider
// unavailable.
type Paths struct {
	CallLog  string
	SMS      string
	Contacts string
}

type table struct {
	db    *sql.DB
	name  string
	where sq.Sqlizer // fixed restriction of the view, may be nil
}

// Source answers provider.Query against SQLite files opened read-only.
type Source struct {
	dbs    []*sql.DB
	tables map[string]table
	sq     sq.StatementBuilderType
}

// Open opens every configured database read-only.
func Open(paths Paths) (*Source, error) {
	s := &Source{tables: make(map[string]table), sq: sq.StatementBuilder}

	if paths.CallLog != "" {
		db, err := s.open(paths.CallLog)
		if err != nil {
			return nil, err
		}
		s.tables[provider.URICallLog] = table{db: db, name: "calls"}
	}
	if paths.SMS != "" {
		db, err := s.open(paths.SMS)
		if err != nil {
			return nil, err
		}
		s.tables[provider.URISMS] = table{db: db, name: "sms"}
	}
	if paths.Contacts != "" {
		db, err := s.open(paths.Contacts)
		if err != nil {
			return nil, err
		}
		s.tables[provider.URIContacts] = table{db: db, name: "view_contacts"}
		s.tables[provider.URIPhones] = table{db: db, name: "view_data", where: sq.Eq{"mimetype": MimePhone}}
		s.tables[provider.URIEmails] = table{db: db, name: "view_data", where: sq.Eq{"mimetype": MimeEmail}}
	}
	return s, nil
}

func (s *Source) open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = s.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	logger.Debug("Opened provider database %s", path)
	s.dbs = append(s.dbs, db)
	return db, nil
}

// Close closes every database.
func (s *Source) Close() error {
	var first error
	for _, db := range s.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.dbs = nil
	return first
}

// Has reports whether uri is backed by a database.
func (s *Source) Has(uri string) bool {
	_, ok := s.tables[uri]
	return ok
}

// Query implements provider.Source.
func (s *Source) Query(ctx context.Context, q provider.Query) (provider.Cursor, error) {
	t, ok := s.tables[q.URI]
	if !ok {
		return nil, fmt.Errorf("no database for %s", q.URI)
	}

	b := s.sq.Select(q.Projection...).From(t.name)
	if t.where != nil {
		b = b.Where(t.where)
	}
	if len(q.Where) > 0 {
		eq := sq.Eq{}
		for col, v := range q.Where {
			eq[col] = v
		}
		b = b.Where(eq)
	}
	if q.Sort != "" {
		b = b.OrderBy(q.Sort)
	}

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	logger.Debug("sqlite query: %s %v", sqlStr, args)

	rows, err := t.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	return &rowsCursor{rows: rows, columns: q.Projection}, nil
}

// rowsCursor adapts *sql.Rows to provider.Cursor.
type rowsCursor struct {
	rows    *sql.Rows
	columns []string
	row     provider.Row
	err     error
}

func (c *rowsCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	vals := make([]sql.NullString, len(c.columns))
	dest := make([]interface{}, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		c.err = err
		return false
	}

	c.row = make(provider.Row, len(c.columns))
	for i, col := range c.columns {
		if vals[i].Valid {
			v := vals[i].String
			c.row[col] = &v
		} else {
			c.row[col] = nil
		}
	}
	return true
}

func (c *rowsCursor) Row() provider.Row { return c.row }

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *rowsCursor) Close() error { return c.rows.Close() }
