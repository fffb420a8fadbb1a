// Package exporter runs exports: permission gate, fetch, filter, encode, sink.
package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/csvdoc"
	"github.com/digiscan/dumpcontact/pkg/jsengine"
	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/sink"
)

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Checker decides whether a kind may be exported.
type Checker interface {
	Check(ctx context.Context, kind core.Kind) error
}

// Fetcher reads the records of a kind.
type Fetcher interface {
	Fetch(ctx context.Context, kind core.Kind) core.FetchResult
}

// Recorder persists finished exports.
type Recorder interface {
	Record(ctx context.Context, res *core.ExportResult, destination string) (string, error)
}

// Config configures an Exporter.
type Config struct {
	Destination string           // Recorded with every export (device or host)
	SDK         int              // Exposed to filters
	Filter      *jsengine.Filter // nil keeps every record
	History     Recorder         // nil disables history
	Now         func() time.Time // Clock for file names; nil = time.Now

	// Live callbacks
	OnNotice    func(kind core.Kind, level Level, msg string)
	OnExportEnd func(res *core.ExportResult)
}

// RunResult summarises several exports.
type RunResult struct {
	Total    int
	Exported int
	Empty    int
	Failed   int // Denied or failed
	Results  []*core.ExportResult
}

// OK returns true if every export ran and none was denied or failed.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && len(r.Results) == r.Total
}

// Exporter wires the pipeline stages together.
type Exporter struct {
	config  Config
	gate    Checker
	fetcher Fetcher
	sink    sink.Sink
}

// New creates an Exporter.
func New(gate Checker, fetcher Fetcher, s sink.Sink, cfg Config) *Exporter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Exporter{config: cfg, gate: gate, fetcher: fetcher, sink: s}
}

// Export runs one export of kind. It never panics; every outcome is in the
// returned result and has been announced through OnNotice.
func (e *Exporter) Export(ctx context.Context, kind core.Kind) (res *core.ExportResult) {
	res = &core.ExportResult{Kind: kind, Status: core.StatusPending, StartTime: time.Now()}
	st := stageGate

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Export %s panicked during %s: %v", kind, st, r)
			res.Err = panicError(st, kind, r)
		}
		e.finish(ctx, res)
	}()

	logger.Info("Export %s started", kind)

	if err := e.gate.Check(ctx, kind); err != nil {
		res.Err = err
		return res
	}

	st = stageFetch
	fr := e.fetcher.Fetch(ctx, kind)
	if !fr.OK() {
		res.Err = fr.Err
		return res
	}

	st = stageFilter
	records, err := e.config.Filter.Apply(kind, e.config.SDK, fr.Records)
	if err != nil {
		res.Err = core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("Filter failed for %s", kind.Noun())).
			WithCause(err)
		return res
	}
	if dropped := len(fr.Records) - len(records); dropped > 0 {
		logger.Info("Filter %q dropped %d of %d %s records", e.config.Filter, dropped, len(fr.Records), kind)
	}

	if len(records) == 0 {
		res.Err = core.ErrNothingToExport.WithMessage(emptyMessage(kind))
		return res
	}
	res.Rows = len(records)

	st = stageWrite
	doc := csvdoc.New(kind, records)
	name := sink.FileName(kind, e.config.Now())
	wr := sink.Save(ctx, e.sink, name, csvdoc.MIMEType, doc.String())
	res.FileName = wr.FileName
	res.Location = wr.Location
	res.Bytes = wr.Bytes
	res.Err = wr.Err
	return res
}

// stage names the pipeline step an export is in.
type stage string

const (
	stageGate   stage = "permission check"
	stageFetch  stage = "fetch"
	stageFilter stage = "filter"
	stageWrite  stage = "write"
)

// panicError turns a recovered panic into the error of the stage it hit.
func panicError(st stage, kind core.Kind, r interface{}) error {
	cause := fmt.Errorf("panic: %v", r)
	switch st {
	case stageGate:
		return core.ErrPermissionDenied.
			WithMessage(fmt.Sprintf("Could not check permissions for %s", kind.Noun())).
			WithCause(cause)
	case stageFetch:
		return core.ErrReadFailed.
			WithMessage(fmt.Sprintf("Error reading %s: %v", kind.Noun(), cause)).
			WithCause(cause)
	case stageFilter:
		return core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("Filter failed for %s: %v", kind.Noun(), cause)).
			WithCause(cause)
	default:
		return core.ErrWriteFailed.
			WithMessage(fmt.Sprintf("Could not write %s", kind.Noun())).
			WithCause(cause)
	}
}

// ExportAll runs the kinds one after another.
func (e *Exporter) ExportAll(ctx context.Context, kinds []core.Kind) *RunResult {
	run := &RunResult{Total: len(kinds)}
	for _, kind := range kinds {
		if ctx.Err() != nil {
			logger.Warn("Export run cancelled before %s", kind)
			break
		}
		res := e.Export(ctx, kind)
		run.Results = append(run.Results, res)
		switch {
		case res.Status.IsSuccess():
			run.Exported++
		case res.Status == core.StatusEmpty:
			run.Empty++
		default:
			run.Failed++
		}
	}
	return run
}

func (e *Exporter) finish(ctx context.Context, res *core.ExportResult) {
	res.Duration = time.Since(res.StartTime)
	res.Status = core.StatusFor(res.Category())

	for _, n := range notices(res) {
		e.notify(res.Kind, n.level, n.msg)
	}

	if res.Err != nil {
		logger.Warn("Export %s %s in %s: %v", res.Kind, res.Status, res.Duration.Round(time.Millisecond), res.Err)
	} else {
		logger.Info("Export %s exported %d rows to %s in %s", res.Kind, res.Rows, res.Location, res.Duration.Round(time.Millisecond))
	}

	if e.config.History != nil {
		if _, err := e.config.History.Record(ctx, res, e.config.Destination); err != nil {
			logger.Warn("Failed to record export %s: %v", res.Kind, err)
		}
	}

	if e.config.OnExportEnd != nil {
		e.config.OnExportEnd(res)
	}
}

func (e *Exporter) notify(kind core.Kind, level Level, msg string) {
	if e.config.OnNotice != nil {
		e.config.OnNotice(kind, level, msg)
	}
}

type notice struct {
	level Level
	msg   string
}

// notices returns the user-visible lines for a finished export.
func notices(res *core.ExportResult) []notice {
	switch res.Category() {
	case core.ErrCategoryNone:
		return []notice{{LevelSuccess, fmt.Sprintf("%s exported to Downloads as %s", res.Kind.Label(), res.FileName)}}
	case core.ErrCategoryRead:
		// A failed read leaves nothing to export.
		return []notice{
			{LevelError, core.MessageOf(res.Err)},
			{LevelInfo, emptyMessage(res.Kind)},
		}
	case core.ErrCategoryEmpty:
		return []notice{{LevelInfo, core.MessageOf(res.Err)}}
	case core.ErrCategorySink, core.ErrCategoryWrite:
		return []notice{{LevelError, fmt.Sprintf("Error exporting %s: %v", res.Kind.Noun(), res.Err)}}
	default:
		return []notice{{LevelError, core.MessageOf(res.Err)}}
	}
}

func emptyMessage(kind core.Kind) string {
	return fmt.Sprintf("No %s to export.", kind.Noun())
}
