// Package provider reads the call log, SMS and contacts providers and
// projects their rows into fixed-column records.
package provider

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Provider URIs.
const (
	URICallLog  = "content://call_log/calls"
	URISMS      = "content://sms"
	URIContacts = "content://com.android.contacts/contacts"
	URIPhones   = "content://com.android.contacts/data/phones"
	URIEmails   = "content://com.android.contacts/data/emails"
)

// Provider column names.
const (
	ColID             = "_id"
	ColNumber         = "number"
	ColCachedName     = "name"
	ColType           = "type"
	ColDate           = "date"
	ColDuration       = "duration"
	ColAddress        = "address"
	ColBody           = "body"
	ColDisplayName    = "display_name"
	ColHasPhoneNumber = "has_phone_number"
	ColContactID      = "contact_id"
	ColData1          = "data1" // Phone.NUMBER and Email.ADDRESS
)

// Default sort orders of the providers.
const (
	SortCallLog  = "date DESC"
	SortSMS      = "date DESC"
	SortContacts = "display_name ASC"
)

// ErrAccessDenied marks a provider refusal at the platform boundary
// (a SecurityException on the device).
var ErrAccessDenied = errors.New("provider access denied")

// Query selects rows from one provider URI.
type Query struct {
	URI        string
	Projection []string
	Where      map[string]string // column = value, ANDed
	Sort       string
}

// WhereClause renders Where as "a = 'x' AND b = 'y'" with sorted columns.
func (q Query) WhereClause() string {
	if len(q.Where) == 0 {
		return ""
	}
	cols := make([]string, 0, len(q.Where))
	for c := range q.Where {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = '" + strings.ReplaceAll(q.Where[c], "'", "''") + "'"
	}
	return strings.Join(parts, " AND ")
}

// Row is one provider row. A nil value is SQL NULL.
type Row map[string]*string

// String returns the column value, "" for NULL or absent columns.
func (r Row) String(col string) string {
	if v := r[col]; v != nil {
		return *v
	}
	return ""
}

// Nullable returns the raw value pointer.
func (r Row) Nullable(col string) *string {
	return r[col]
}

// Int64 parses the column as an integer, 0 for NULL.
func (r Row) Int64(col string) (int64, error) {
	v := r[col]
	if v == nil || *v == "" {
		return 0, nil
	}
	return strconv.ParseInt(strings.TrimSpace(*v), 10, 64)
}

// Cursor iterates query results. Callers must Close it.
type Cursor interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Source runs provider queries.
type Source interface {
	Query(ctx context.Context, q Query) (Cursor, error)
}

// SliceCursor is a Cursor over rows already in memory.
type SliceCursor struct {
	rows   []Row
	pos    int
	closed bool
}

// NewSliceCursor returns a cursor positioned before the first row.
func NewSliceCursor(rows []Row) *SliceCursor {
	return &SliceCursor{rows: rows, pos: -1}
}

// Next advances to the next row.
func (c *SliceCursor) Next() bool {
	if c.closed || c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

// Row returns the current row.
func (c *SliceCursor) Row() Row {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

// Err always returns nil.
func (c *SliceCursor) Err() error { return nil }

// Close releases the cursor.
func (c *SliceCursor) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *SliceCursor) Closed() bool { return c.closed }
