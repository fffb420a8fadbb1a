package core

import "time"

// FetchResult is the outcome of a provider read. On failure Records is empty
// and Err is an *ExportError in the read category.
type FetchResult struct {
	Kind    Kind
	Records []Record
	Err     error
}

// OK returns true if the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// WriteResult is the outcome of handing a document to a sink.
type WriteResult struct {
	FileName string
	Location string // Sink-specific handle: content URI or file path
	Bytes    int
	Err      error
}

// OK returns true if the content was written.
func (r WriteResult) OK() bool {
	return r.Err == nil
}

// ExportResult captures one export attempt from gate to sink.
type ExportResult struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"-"`
	Status    Status        `json:"-"`
	FileName  string        `json:"fileName,omitempty"`
	Location  string        `json:"location,omitempty"`
	Rows      int           `json:"rows"`
	Bytes     int           `json:"bytes"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Category returns the error category of the result.
func (r *ExportResult) Category() ErrorCategory {
	return CategoryOf(r.Err)
}
