package permission

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileAuthority grants capabilities from the file system. It serves offline
// exports, where each provider is a pulled database file and storage is a
// host directory.
type FileAuthority struct {
	// Files maps a capability to a file that must exist and be readable.
	Files map[Capability]string
	// Dirs maps a capability to a directory that must exist or be creatable.
	Dirs map[Capability]string
}

// Granted reports whether the path behind c is usable.
func (a *FileAuthority) Granted(_ context.Context, c Capability) (bool, error) {
	if path := a.Files[c]; path != "" {
		return readable(path), nil
	}
	if dir := a.Dirs[c]; dir != "" {
		return creatable(dir), nil
	}
	return false, nil
}

// Grant always fails: file permissions are not ours to change.
func (a *FileAuthority) Grant(_ context.Context, c Capability) error {
	path := a.Files[c]
	if path == "" {
		path = a.Dirs[c]
	}
	if path == "" {
		return fmt.Errorf("cannot grant %s: no database configured", c.Short())
	}
	return fmt.Errorf("cannot grant %s: check access to %q", c.Short(), path)
}

func readable(path string) bool {
	f, err := os.Open(path) //#nosec G304 -- configured database path
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}

// creatable walks up to the nearest existing ancestor and requires it to be
// a directory.
func creatable(dir string) bool {
	for {
		info, err := os.Stat(dir)
		if err == nil {
			return info.IsDir()
		}
		if !os.IsNotExist(err) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
