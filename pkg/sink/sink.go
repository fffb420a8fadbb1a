// Package sink writes export documents into a Downloads location.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/logger"
)

// TimestampLayout is the yyyyMMdd_HHmmss stamp in export file names.
const TimestampLayout = "20060102_150405"

// Handle identifies a created, still empty, output entry.
type Handle struct {
	Name     string
	Location string // content URI or host path
	Path     string // file path when the entry is backed by a known file
}

// Sink creates output entries and fills them.
type Sink interface {
	Create(ctx context.Context, name, mime string) (Handle, error)
	Write(ctx context.Context, h Handle, content string) error
}

// FileName returns "<kind>_export_<yyyyMMdd_HHmmss>.csv" for t.
func FileName(kind core.Kind, t time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", kind, t.Format(TimestampLayout))
}

// Save creates name in s and writes content to it. A failed Write leaves
// the created entry in place.
func Save(ctx context.Context, s Sink, name, mime, content string) core.WriteResult {
	res := core.WriteResult{FileName: name}

	h, err := s.Create(ctx, name, mime)
	if err != nil {
		logger.Error("Create %s failed: %v", name, err)
		res.Err = core.ErrSinkCreation.
			WithMessage(fmt.Sprintf("Could not create %s", name)).
			WithDetails(map[string]interface{}{"file": name}).
			WithCause(err)
		return res
	}
	res.Location = h.Location

	if err := s.Write(ctx, h, content); err != nil {
		logger.Error("Write %s failed: %v", h.Location, err)
		res.Err = core.ErrWriteFailed.
			WithMessage(fmt.Sprintf("Error writing %s", name)).
			WithDetails(map[string]interface{}{"file": name, "location": h.Location}).
			WithCause(err)
		return res
	}

	res.Bytes = len(content)
	logger.Info("Wrote %d bytes to %s", res.Bytes, h.Location)
	return res
}
