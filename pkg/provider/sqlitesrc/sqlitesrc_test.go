package sqlitesrc

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/provider"
)

func fixture(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("fixture %q: %v", s, err)
		}
	}
	return path
}

func callLogDB(t *testing.T) string {
	return fixture(t, "calllog.db",
		`CREATE TABLE calls (_id INTEGER PRIMARY KEY, number TEXT, name TEXT, type INTEGER, date INTEGER, duration INTEGER)`,
		`INSERT INTO calls (number, name, type, date, duration) VALUES ('+27110000000', NULL, 1, 1000, 42)`,
		`INSERT INTO calls (number, name, type, date, duration) VALUES ('555', 'Bob', 2, 2000, 0)`,
	)
}

func contactsDB(t *testing.T) string {
	return fixture(t, "contacts2.db",
		`CREATE TABLE view_contacts (_id INTEGER PRIMARY KEY, display_name TEXT, has_phone_number INTEGER)`,
		`CREATE TABLE view_data (_id INTEGER PRIMARY KEY, contact_id INTEGER, mimetype TEXT, data1 TEXT)`,
		`INSERT INTO view_contacts VALUES (1, 'Zed', 1), (2, NULL, 0), (3, 'Amy', 0)`,
		`INSERT INTO view_data (contact_id, mimetype, data1) VALUES
			(1, 'vnd.android.cursor.item/phone_v2', '111'),
			(1, 'vnd.android.cursor.item/email_v2', 'zed@x.org'),
			(1, 'vnd.android.cursor.item/name', 'Zed'),
			(2, 'vnd.android.cursor.item/email_v2', 'anon@x.org')`,
	)
}

func TestQuery_CallLogSortedAndNulls(t *testing.T) {
	src, err := Open(Paths{CallLog: callLogDB(t)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	cur, err := src.Query(context.Background(), provider.Query{
		URI:        provider.URICallLog,
		Projection: []string{provider.ColNumber, provider.ColCachedName, provider.ColDate},
		Sort:       provider.SortCallLog,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer cur.Close()

	var rows []provider.Row
	for cur.Next() {
		rows = append(rows, cur.Row())
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[0].String(provider.ColNumber); got != "555" {
		t.Errorf("first row number = %q, want newest first", got)
	}
	if rows[1].Nullable(provider.ColCachedName) != nil {
		t.Error("NULL name should map to nil")
	}
	if got := rows[1].String(provider.ColDate); got != "1000" {
		t.Errorf("date = %q, want 1000", got)
	}
}

func TestQuery_UnconfiguredProvider(t *testing.T) {
	src, err := Open(Paths{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if src.Has(provider.URISMS) {
		t.Error("Has(sms) = true with no database")
	}
	if _, err := src.Query(context.Background(), provider.Query{URI: provider.URISMS}); err == nil {
		t.Error("Query() should fail without a database")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(Paths{SMS: filepath.Join(t.TempDir(), "absent.db")})
	if err == nil {
		t.Error("Open() should fail for a missing read-only database")
	}
}

func TestSource_IsReadOnly(t *testing.T) {
	src, err := Open(Paths{CallLog: callLogDB(t)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	db := src.tables[provider.URICallLog].db
	if _, err := db.Exec(`DELETE FROM calls`); err == nil {
		t.Error("write through read-only source succeeded")
	}
}

func TestFetcher_OverContactsDB(t *testing.T) {
	src, err := Open(Paths{Contacts: contactsDB(t)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	res := provider.NewFetcher(src, time.UTC, 30).Fetch(context.Background(), core.KindContacts)
	if !res.OK() {
		t.Fatalf("Fetch() error = %v", res.Err)
	}

	want := [][]string{
		{"N/A", "", "anon@x.org"},
		{"Amy", "", ""},
		{"Zed", "111", "zed@x.org"},
	}
	if len(res.Records) != len(want) {
		t.Fatalf("records = %d, want %d", len(res.Records), len(want))
	}
	for i, w := range want {
		got := res.Records[i].Values()
		for j := range w {
			if got[j] != w[j] {
				t.Errorf("record %d = %q, want %q", i, got, w)
				break
			}
		}
	}
}

func TestFetcher_OverCallLogDB(t *testing.T) {
	src, err := Open(Paths{CallLog: callLogDB(t)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	res := provider.NewFetcher(src, time.UTC, 30).Fetch(context.Background(), core.KindCallLog)
	if !res.OK() {
		t.Fatalf("Fetch() error = %v", res.Err)
	}
	if got := res.Records[1].Get(core.ColDate); got != "1970-01-01 00:00:01" {
		t.Errorf("Date = %q", got)
	}
	if got := res.Records[0].Get(core.ColType); got != "Outgoing" {
		t.Errorf("Type = %q", got)
	}
}
