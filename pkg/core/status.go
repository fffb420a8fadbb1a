package core

// Status represents the outcome of a single export attempt
type Status int

const (
	StatusPending  Status = iota // Not yet started
	StatusExported               // File written and indexed
	StatusDenied                 // Permission gate refused the export
	StatusEmpty                  // Fetch returned no records
	StatusFailed                 // Read, sink or write stage failed
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExported:
		return "exported"
	case StatusDenied:
		return "denied"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsSuccess returns true if a file was produced
func (s Status) IsSuccess() bool {
	return s == StatusExported
}

// ErrorCategory classifies export failures
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryPermission                      // Required capability refused
	ErrCategoryRead                            // Provider query failed
	ErrCategoryEmpty                           // Nothing to export
	ErrCategorySink                            // Could not obtain an output handle
	ErrCategoryWrite                           // I/O failure while writing content
	ErrCategoryConfig                          // Invalid configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryRead:
		return "read"
	case ErrCategoryEmpty:
		return "empty"
	case ErrCategorySink:
		return "sink"
	case ErrCategoryWrite:
		return "write"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// StatusFor maps an error category to the export status it produces.
func StatusFor(c ErrorCategory) Status {
	switch c {
	case ErrCategoryNone:
		return StatusExported
	case ErrCategoryPermission:
		return StatusDenied
	case ErrCategoryEmpty:
		return StatusEmpty
	default:
		return StatusFailed
	}
}
