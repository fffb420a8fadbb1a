package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/provider"
)

const noResult = "No result found."

var rowStart = regexp.MustCompile(`(?m)^Row: \d+ `)

// ErrNoRow is returned by LookupID when nothing matches.
var ErrNoRow = errors.New("no matching row")

// Bind is one --bind argument of `content insert`: column:type:value.
type Bind struct {
	Column string
	Type   string // s (string), i (int), l (long), b (boolean)
	Value  string
}

// String binds a string value.
func String(column, value string) Bind {
	return Bind{Column: column, Type: "s", Value: value}
}

func (b Bind) arg() string {
	return b.Column + ":" + b.Type + ":" + b.Value
}

// Query implements provider.Source with `content query`.
func (d *AndroidDevice) Query(ctx context.Context, q provider.Query) (provider.Cursor, error) {
	args := []string{"query", "--uri", q.URI}
	if len(q.Projection) > 0 {
		args = append(args, "--projection", strings.Join(q.Projection, ":"))
	}
	if where := q.WhereClause(); where != "" {
		args = append(args, "--where", where)
	}
	if q.Sort != "" {
		args = append(args, "--sort", q.Sort)
	}

	cmd := shellJoin("content", args...)
	logger.Debug("content %s", strings.Join(args, " "))

	out, err := d.ExecOut(ctx, cmd)
	if err := providerError(out, err); err != nil {
		return nil, fmt.Errorf("content query %s: %w", q.URI, err)
	}

	rows, err := ParseRows(out, q.Projection)
	if err != nil {
		return nil, fmt.Errorf("content query %s: %w", q.URI, err)
	}
	return provider.NewSliceCursor(rows), nil
}

// Insert adds a row to uri with `content insert`.
func (d *AndroidDevice) Insert(ctx context.Context, uri string, binds ...Bind) error {
	args := []string{"insert", "--uri", uri}
	for _, b := range binds {
		args = append(args, "--bind", b.arg())
	}
	out, err := d.Shell(ctx, shellJoin("content", args...))
	if err := providerError(out, err); err != nil {
		return fmt.Errorf("content insert %s: %w", uri, err)
	}
	return nil
}

// LookupID returns the _id of the newest row of uri matching where.
func (d *AndroidDevice) LookupID(ctx context.Context, uri string, where map[string]string) (string, error) {
	cur, err := d.Query(ctx, provider.Query{
		URI:        uri,
		Projection: []string{provider.ColID},
		Where:      where,
		Sort:       provider.ColID + " DESC",
	})
	if err != nil {
		return "", err
	}
	defer cur.Close()

	if !cur.Next() {
		return "", fmt.Errorf("%w in %s for %v", ErrNoRow, uri, where)
	}
	id := cur.Row().String(provider.ColID)
	if id == "" {
		return "", fmt.Errorf("row of %s has no _id", uri)
	}
	return id, nil
}

// WriteContent streams r into the entry at uri with `content write`.
func (d *AndroidDevice) WriteContent(ctx context.Context, uri string, r io.Reader) error {
	out, err := d.ShellInput(ctx, r, shellJoin("content", "write", "--uri", uri))
	if err := providerError(out, err); err != nil {
		return fmt.Errorf("content write %s: %w", uri, err)
	}
	return nil
}

// MkdirAll creates dir and its parents on the device.
func (d *AndroidDevice) MkdirAll(ctx context.Context, dir string) error {
	out, err := d.Shell(ctx, shellJoin("mkdir", "-p", dir))
	if err != nil {
		return err
	}
	if msg := strings.TrimSpace(out); msg != "" {
		return fmt.Errorf("mkdir %s: %s", dir, msg)
	}
	return nil
}

// CreateFile creates path, failing if it already exists.
func (d *AndroidDevice) CreateFile(ctx context.Context, path string) error {
	script := "set -C; : > " + ShellQuote(path)
	out, err := d.Shell(ctx, "sh -c "+ShellQuote(script))
	if err != nil {
		return err
	}
	if msg := strings.TrimSpace(out); msg != "" {
		return fmt.Errorf("create %s: %s", path, msg)
	}
	return nil
}

// WriteFile streams r into path on the device, truncating it.
func (d *AndroidDevice) WriteFile(ctx context.Context, path string, r io.Reader) error {
	out, err := d.ShellInput(ctx, r, "cat > "+ShellQuote(path))
	if err != nil {
		return err
	}
	if msg := strings.TrimSpace(out); msg != "" {
		return fmt.Errorf("write %s: %s", path, msg)
	}
	return nil
}

// providerError maps content tool output to an error. Security failures
// wrap provider.ErrAccessDenied.
func providerError(out string, err error) error {
	text := out
	if err != nil {
		text = err.Error() + "\n" + out
	}
	switch {
	case strings.Contains(text, "SecurityException"), strings.Contains(text, "Permission Denial"):
		return fmt.Errorf("%w: %s", provider.ErrAccessDenied, firstLine(text, "Exception", "Denial"))
	case strings.Contains(text, "Error while accessing provider"):
		return fmt.Errorf("%s", firstLine(text, "Error while accessing provider"))
	case err != nil:
		return err
	case strings.HasPrefix(out, "Exception") || strings.Contains(out, "\nException"):
		return fmt.Errorf("%s", firstLine(out, "Exception"))
	}
	return nil
}

func firstLine(text string, markers ...string) string {
	for _, line := range strings.Split(text, "\n") {
		for _, m := range markers {
			if strings.Contains(line, m) {
				return strings.TrimSpace(line)
			}
		}
	}
	return strings.TrimSpace(text)
}

// ParseRows parses `content query` output for projection.
//
// Each row is printed as "Row: N col=value, col=value". Values are raw:
// they may contain ", " and span lines, and NULL prints as the bare word
// NULL. Boundaries are found right to left, so only the last column's
// value may contain a later column's ", col=" marker safely; the fixed
// projections keep free text ahead of numeric columns.
func ParseRows(out string, projection []string) ([]provider.Row, error) {
	if strings.TrimSpace(out) == "" || strings.HasPrefix(strings.TrimSpace(out), noResult) {
		return nil, nil
	}

	starts := rowStart.FindAllStringIndex(out, -1)
	if len(starts) == 0 {
		return nil, fmt.Errorf("unexpected content output: %q", firstLine(out))
	}

	rows := make([]provider.Row, 0, len(starts))
	for i, loc := range starts {
		end := len(out)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		chunk := strings.TrimSuffix(out[loc[1]:end], "\n")

		row, err := parseRow(chunk, projection)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(chunk string, projection []string) (provider.Row, error) {
	row := make(provider.Row, len(projection))
	if len(projection) == 0 {
		return row, nil
	}

	rest := chunk
	for i := len(projection) - 1; i > 0; i-- {
		marker := ", " + projection[i] + "="
		idx := strings.LastIndex(rest, marker)
		if idx < 0 {
			return nil, fmt.Errorf("column %s missing", projection[i])
		}
		row[projection[i]] = value(rest[idx+len(marker):])
		rest = rest[:idx]
	}

	prefix := projection[0] + "="
	if !strings.HasPrefix(rest, prefix) {
		return nil, fmt.Errorf("column %s missing", projection[0])
	}
	row[projection[0]] = value(strings.TrimPrefix(rest, prefix))
	return row, nil
}

func value(raw string) *string {
	if raw == "NULL" {
		return nil
	}
	return &raw
}
