package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/jsengine"
	"github.com/digiscan/dumpcontact/pkg/permission"
	"github.com/digiscan/dumpcontact/pkg/provider"
	"github.com/digiscan/dumpcontact/pkg/sink"
)

// authority grants a fixed set of capabilities.
type authority map[permission.Capability]bool

func (a authority) Granted(ctx context.Context, c permission.Capability) (bool, error) {
	return a[c], nil
}

func (a authority) Grant(ctx context.Context, c permission.Capability) error {
	return errors.New("not supported")
}

type fakeFetcher struct {
	calls   int
	records map[core.Kind][]core.Record
	err     error
	panics  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, kind core.Kind) core.FetchResult {
	f.calls++
	if f.panics {
		panic("cursor exploded")
	}
	if f.err != nil {
		return core.FetchResult{Kind: kind, Err: f.err}
	}
	return core.FetchResult{Kind: kind, Records: f.records[kind]}
}

type memHistory struct {
	results []*core.ExportResult
	fail    bool
}

func (h *memHistory) Record(ctx context.Context, res *core.ExportResult, destination string) (string, error) {
	if h.fail {
		return "", errors.New("db locked")
	}
	h.results = append(h.results, res)
	return "id", nil
}

type noticeLog struct {
	lines []string
}

func (n *noticeLog) add(kind core.Kind, level Level, msg string) {
	prefix := "I "
	if level == LevelError {
		prefix = "E "
	}
	n.lines = append(n.lines, prefix+msg)
}

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local) }

func allGranted() authority {
	return authority{
		permission.ReadCallLog:          true,
		permission.ReadSMS:              true,
		permission.ReadContacts:         true,
		permission.WriteExternalStorage: true,
	}
}

func contact(name, phones, emails string) core.Record {
	return core.NewKindRecord(core.KindContacts, map[string]string{
		core.ColName: name, core.ColPhoneNumbers: phones, core.ColEmails: emails,
	})
}

func setup(t *testing.T, auth authority, sdk int, f *fakeFetcher, cfg Config) (*Exporter, string, *noticeLog) {
	t.Helper()
	dir := t.TempDir()
	notes := &noticeLog{}
	cfg.Now = fixedNow
	cfg.OnNotice = notes.add
	return New(permission.NewGate(auth, sdk), f, sink.NewDirSink(dir), cfg), dir, notes
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestExport_Contacts(t *testing.T) {
	f := &fakeFetcher{records: map[core.Kind][]core.Record{
		core.KindContacts: {contact("O'Brien, J.", "+27110000000", "")},
	}}
	hist := &memHistory{}
	var ended []*core.ExportResult
	e, dir, notes := setup(t, allGranted(), 30, f, Config{
		Destination: "host",
		History:     hist,
		OnExportEnd: func(r *core.ExportResult) { ended = append(ended, r) },
	})

	res := e.Export(context.Background(), core.KindContacts)
	if res.Err != nil {
		t.Fatalf("Export() error = %v", res.Err)
	}
	if res.Status != core.StatusExported || res.Rows != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.FileName != "contacts_export_20240301_090507.csv" {
		t.Errorf("FileName = %q", res.FileName)
	}

	data, err := os.ReadFile(filepath.Join(dir, res.FileName))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "Name,PhoneNumbers,Emails\n\"O'Brien, J.\",+27110000000,\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}

	if len(notes.lines) != 1 || notes.lines[0] != "I Contacts exported to Downloads as contacts_export_20240301_090507.csv" {
		t.Errorf("notices = %q", notes.lines)
	}
	if len(hist.results) != 1 || len(ended) != 1 {
		t.Errorf("history = %d, ended = %d", len(hist.results), len(ended))
	}
}

func TestExport_AllDeniedNeverFetches(t *testing.T) {
	f := &fakeFetcher{records: map[core.Kind][]core.Record{
		core.KindCallLog: {core.NewKindRecord(core.KindCallLog, nil)},
	}}
	hist := &memHistory{}
	e, dir, notes := setup(t, authority{}, 28, f, Config{History: hist})

	res := e.Export(context.Background(), core.KindCallLog)

	if f.calls != 0 {
		t.Errorf("Fetch called %d times, want 0", f.calls)
	}
	if !errors.Is(res.Err, core.ErrPermissionDenied) || res.Status != core.StatusDenied {
		t.Errorf("result = %v / %v, want permission denied", res.Status, res.Err)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("files created: %v", names)
	}
	if len(notes.lines) != 1 || notes.lines[0] != "E Call Log or Storage permission missing." {
		t.Errorf("notices = %q", notes.lines)
	}
	if len(hist.results) != 1 || hist.results[0].Status != core.StatusDenied {
		t.Error("denied export not recorded")
	}
}

func TestExport_StorageOnlyNeededBelowQ(t *testing.T) {
	auth := authority{permission.ReadSMS: true}
	f := &fakeFetcher{records: map[core.Kind][]core.Record{
		core.KindSMS: {core.NewKindRecord(core.KindSMS, map[string]string{core.ColBody: "hi"})},
	}}

	e, _, _ := setup(t, auth, 28, f, Config{})
	if res := e.Export(context.Background(), core.KindSMS); res.Status != core.StatusDenied {
		t.Errorf("sdk 28 status = %v, want denied", res.Status)
	}

	e, _, _ = setup(t, auth, 29, f, Config{})
	if res := e.Export(context.Background(), core.KindSMS); res.Status != core.StatusExported {
		t.Errorf("sdk 29 status = %v (%v), want exported", res.Status, res.Err)
	}
}

func TestExport_ReadError(t *testing.T) {
	readErr := core.ErrReadFailed.WithMessage("Error reading call log: Permission denied.")
	f := &fakeFetcher{err: readErr}
	e, dir, notes := setup(t, allGranted(), 30, f, Config{})

	res := e.Export(context.Background(), core.KindCallLog)
	if res.Status != core.StatusFailed || core.CategoryOf(res.Err) != core.ErrCategoryRead {
		t.Errorf("result = %v / %v", res.Status, res.Err)
	}
	want := []string{"E Error reading call log: Permission denied.", "I No call log to export."}
	if strings.Join(notes.lines, "|") != strings.Join(want, "|") {
		t.Errorf("notices = %q, want %q", notes.lines, want)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("files created: %v", names)
	}
}

func TestExport_Empty(t *testing.T) {
	e, dir, notes := setup(t, allGranted(), 30, &fakeFetcher{}, Config{})

	res := e.Export(context.Background(), core.KindSMS)
	if res.Status != core.StatusEmpty || !errors.Is(res.Err, core.ErrNothingToExport) {
		t.Errorf("result = %v / %v", res.Status, res.Err)
	}
	if len(notes.lines) != 1 || notes.lines[0] != "I No SMS messages to export." {
		t.Errorf("notices = %q", notes.lines)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("files created: %v", names)
	}
}

func TestExport_FilterDropsEverything(t *testing.T) {
	f := &fakeFetcher{records: map[core.Kind][]core.Record{
		core.KindContacts: {contact("A", "", ""), contact("B", "1", "")},
	}}
	filter, err := jsengine.Compile(`row.PhoneNumbers !== ""`)
	if err != nil {
		t.Fatal(err)
	}
	e, dir, _ := setup(t, allGranted(), 30, f, Config{Filter: filter})

	res := e.Export(context.Background(), core.KindContacts)
	if res.Rows != 1 {
		t.Fatalf("Rows = %d, want 1 (%v)", res.Rows, res.Err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, res.FileName))
	if string(data) != "Name,PhoneNumbers,Emails\nB,1,\n" {
		t.Errorf("content = %q", data)
	}

	bad, _ := jsengine.Compile(`row.Nope.x`)
	e, _, _ = setup(t, allGranted(), 30, f, Config{Filter: bad})
	if res := e.Export(context.Background(), core.KindContacts); core.CategoryOf(res.Err) != core.ErrCategoryConfig {
		t.Errorf("category = %v, want config", core.CategoryOf(res.Err))
	}
}

func TestExport_PanicIsContained(t *testing.T) {
	e, _, notes := setup(t, allGranted(), 30, &fakeFetcher{panics: true}, Config{})

	res := e.Export(context.Background(), core.KindCallLog)
	if res.Status != core.StatusFailed || res.Err == nil {
		t.Errorf("result = %v / %v", res.Status, res.Err)
	}
	if len(notes.lines) == 0 {
		t.Error("panic not announced")
	}
}

func TestExport_SinkFailure(t *testing.T) {
	f := &fakeFetcher{records: map[core.Kind][]core.Record{core.KindContacts: {contact("A", "", "")}}}
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	notes := &noticeLog{}
	e := New(permission.NewGate(allGranted(), 30), f, sink.NewDirSink(filepath.Join(blocker, "dl")), Config{
		Now: fixedNow, OnNotice: notes.add,
	})

	res := e.Export(context.Background(), core.KindContacts)
	if core.CategoryOf(res.Err) != core.ErrCategorySink {
		t.Errorf("category = %v", core.CategoryOf(res.Err))
	}
	if len(notes.lines) != 1 || !strings.HasPrefix(notes.lines[0], "E Error exporting contacts: Could not create") {
		t.Errorf("notices = %q", notes.lines)
	}
}

func TestExport_HistoryFailureIgnored(t *testing.T) {
	f := &fakeFetcher{records: map[core.Kind][]core.Record{core.KindContacts: {contact("A", "", "")}}}
	e, _, _ := setup(t, allGranted(), 30, f, Config{History: &memHistory{fail: true}})

	if res := e.Export(context.Background(), core.KindContacts); res.Status != core.StatusExported {
		t.Errorf("status = %v, want exported despite history failure", res.Status)
	}
}

func TestExportAll(t *testing.T) {
	auth := authority{permission.ReadContacts: true, permission.ReadSMS: true}
	f := &fakeFetcher{records: map[core.Kind][]core.Record{core.KindContacts: {contact("A", "", "")}}}
	e, _, _ := setup(t, auth, 33, f, Config{})

	run := e.ExportAll(context.Background(), core.AllKinds)
	if run.Total != 3 || run.Exported != 1 || run.Empty != 1 || run.Failed != 1 || run.OK() {
		t.Errorf("run = %+v", run)
	}
	got := make([]core.Status, len(run.Results))
	for i, r := range run.Results {
		got[i] = r.Status
	}
	want := []core.Status{core.StatusDenied, core.StatusEmpty, core.StatusExported}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statuses = %v, want %v", got, want)
			break
		}
	}
}

func TestExportAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, _, _ := setup(t, allGranted(), 30, &fakeFetcher{}, Config{})

	run := e.ExportAll(ctx, core.AllKinds)
	if len(run.Results) != 0 || run.OK() {
		t.Errorf("run = %+v", run)
	}
}

// brokenSource fails every query the way a refusing provider does.
type brokenSource struct {
	err error
}

func (b brokenSource) Query(ctx context.Context, q provider.Query) (provider.Cursor, error) {
	return nil, b.err
}

func TestExport_ReadErrorNamesReason(t *testing.T) {
	notes := &noticeLog{}
	src := brokenSource{err: errors.New("Error while accessing provider:call_log")}
	e := New(permission.NewGate(allGranted(), 30), provider.NewFetcher(src, time.UTC, 30), sink.NewDirSink(t.TempDir()),
		Config{Now: fixedNow, OnNotice: notes.add})

	e.Export(context.Background(), core.KindCallLog)
	if len(notes.lines) != 2 {
		t.Fatalf("notices = %q", notes.lines)
	}
	if !strings.HasPrefix(notes.lines[0], "E Error reading call log: ") ||
		!strings.Contains(notes.lines[0], "Error while accessing provider:call_log") {
		t.Errorf("read notice = %q, want provider reason", notes.lines[0])
	}
	if notes.lines[1] != "I No call log to export." {
		t.Errorf("second notice = %q", notes.lines[1])
	}
}

type panicGate struct{}

func (panicGate) Check(ctx context.Context, kind core.Kind) error { panic("dumpsys vanished") }

type panicSink struct{}

func (panicSink) Create(ctx context.Context, name, mime string) (sink.Handle, error) {
	panic("resolver gone")
}

func (panicSink) Write(ctx context.Context, h sink.Handle, content string) error { return nil }

func TestExport_PanicClassifiedByStage(t *testing.T) {
	f := &fakeFetcher{records: map[core.Kind][]core.Record{core.KindContacts: {contact("A", "", "")}}}

	notes := &noticeLog{}
	e := New(panicGate{}, f, sink.NewDirSink(t.TempDir()), Config{Now: fixedNow, OnNotice: notes.add})
	res := e.Export(context.Background(), core.KindContacts)
	if res.Status != core.StatusDenied || core.CategoryOf(res.Err) != core.ErrCategoryPermission {
		t.Errorf("gate panic: status = %v, category = %v", res.Status, core.CategoryOf(res.Err))
	}
	if f.calls != 0 {
		t.Error("fetch ran after the gate panicked")
	}

	notes = &noticeLog{}
	e = New(permission.NewGate(allGranted(), 30), f, panicSink{}, Config{Now: fixedNow, OnNotice: notes.add})
	res = e.Export(context.Background(), core.KindContacts)
	if res.Status != core.StatusFailed || core.CategoryOf(res.Err) != core.ErrCategoryWrite {
		t.Errorf("sink panic: status = %v, category = %v", res.Status, core.CategoryOf(res.Err))
	}
	if len(notes.lines) != 1 || !strings.HasPrefix(notes.lines[0], "E Error exporting contacts: ") {
		t.Errorf("sink panic notices = %q", notes.lines)
	}

	filter, err := jsengine.Compile(`(function() { throw new Error("nope") })()`)
	if err != nil {
		t.Fatal(err)
	}
	e = New(permission.NewGate(allGranted(), 30), f, sink.NewDirSink(t.TempDir()), Config{Now: fixedNow, Filter: filter})
	if res := e.Export(context.Background(), core.KindContacts); core.CategoryOf(res.Err) != core.ErrCategoryConfig {
		t.Errorf("filter error category = %v, want config", core.CategoryOf(res.Err))
	}
}

func TestPanicError(t *testing.T) {
	tests := []struct {
		st   stage
		want core.ErrorCategory
	}{
		{stageGate, core.ErrCategoryPermission},
		{stageFetch, core.ErrCategoryRead},
		{stageFilter, core.ErrCategoryConfig},
		{stageWrite, core.ErrCategoryWrite},
	}
	for _, tt := range tests {
		err := panicError(tt.st, core.KindSMS, "boom")
		if core.CategoryOf(err) != tt.want {
			t.Errorf("panicError(%s) category = %v, want %v", tt.st, core.CategoryOf(err), tt.want)
		}
		if !strings.Contains(err.Error(), "panic: boom") {
			t.Errorf("panicError(%s) = %v", tt.st, err)
		}
	}
}
