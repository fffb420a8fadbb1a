package jsengine

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/digiscan/dumpcontact/pkg/core"
)

// Filter is a compiled record predicate. The expression sees the record as
// `row`, keyed by column label (row["Cached Name"], row.Type).
type Filter struct {
	expr    string
	program *goja.Program
	engine  *Engine
}

// Compile parses expr. An empty expression yields a nil Filter, which
// keeps every record.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	p, err := goja.Compile("filter", "("+expr+"\n)", false)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return &Filter{expr: expr, program: p, engine: New()}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match reports whether rec passes the filter.
func (f *Filter) Match(kind core.Kind, sdk int, rec core.Record) (bool, error) {
	if f == nil {
		return true, nil
	}
	row := make(map[string]interface{}, rec.Len())
	for k, v := range rec.Map() {
		row[k] = v
	}

	f.engine.SetContext(kind, sdk)
	f.engine.SetVariable("row", row)
	v, err := f.engine.run(f.program)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.expr, err)
	}
	return v.ToBoolean(), nil
}

// Apply returns the records of kind that pass the filter, in order.
func (f *Filter) Apply(kind core.Kind, sdk int, records []core.Record) ([]core.Record, error) {
	if f == nil {
		return records, nil
	}
	kept := make([]core.Record, 0, len(records))
	for i, rec := range records {
		ok, err := f.Match(kind, sdk, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}
