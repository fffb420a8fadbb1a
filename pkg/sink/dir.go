package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSink writes into a directory on the host.
type DirSink struct {
	Dir string
}

// NewDirSink returns a sink over dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Create makes the directory if needed and creates name exclusively.
func (s *DirSink) Create(ctx context.Context, name, mime string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("create downloads dir: %w", err)
	}

	path := filepath.Join(s.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Handle{}, err
	}
	if err := f.Close(); err != nil {
		return Handle{}, err
	}
	return Handle{Name: name, Location: path, Path: path}, nil
}

// Write replaces the entry's content.
func (s *DirSink) Write(ctx context.Context, h Handle, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(h.Path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
