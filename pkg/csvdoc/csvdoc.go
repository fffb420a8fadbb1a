// Package csvdoc assembles export documents in the CSV dialect dumpcontact
// writes: a field is quoted only when it holds a comma, a double quote or a
// newline, and embedded double quotes are doubled.
package csvdoc

import (
	"io"
	"strings"

	"github.com/digiscan/dumpcontact/pkg/core"
)

// MIMEType is the content type handed to sinks.
const MIMEType = "text/csv"

// EscapeField escapes a possibly-null value. nil maps to "".
func EscapeField(value *string) string {
	if value == nil {
		return ""
	}
	return Escape(*value)
}

// Escape doubles double quotes and wraps the field in quotes when it
// contains a comma, a double quote or a newline.
func Escape(value string) string {
	escaped := strings.ReplaceAll(value, `"`, `""`)
	if strings.ContainsAny(escaped, ",\"\n") {
		return `"` + escaped + `"`
	}
	return escaped
}

// Document is a header plus the rows of one export. It is built once and
// handed to a sink.
type Document struct {
	Header []string
	Rows   []core.Record
}

// New creates a document for kind with the kind's fixed column order.
func New(kind core.Kind, rows []core.Record) *Document {
	return &Document{Header: kind.Columns(), Rows: rows}
}

// String renders the document.
func (d *Document) String() string {
	return BuildDocument(d.Header, d.Rows)
}

// WriteTo writes the rendered document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, d.String())
	return int64(n), err
}

// BuildDocument emits the header joined by commas, then one line per row
// with the values of the header columns, each escaped. Every line, the last
// included, ends with a single newline.
func BuildDocument(header []string, rows []core.Record) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')

	for _, row := range rows {
		for i, col := range header {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(Escape(row.Get(col)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
