package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const envHome = "DUMPCONTACT_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the dumpcontact home directory.
//
// Resolution order:
//  1. $DUMPCONTACT_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. <user config dir>/dumpcontact
//  4. Current working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogPath returns <home>/logs/dumpcontact.log.
func GetLogPath() string {
	return filepath.Join(GetHome(), "logs", "dumpcontact.log")
}

// GetHistoryPath returns <home>/history.db.
func GetHistoryPath() string {
	return filepath.Join(GetHome(), "history.db")
}

// DefaultDownloadsDir returns $XDG_DOWNLOAD_DIR or ~/Downloads.
func DefaultDownloadsDir() string {
	if dir := os.Getenv("XDG_DOWNLOAD_DIR"); dir != "" {
		return ExpandHome(dir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return "Downloads"
}

// ExpandHome replaces a leading "~" or "$HOME" with the user's home directory.
func ExpandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	for _, prefix := range []string{"~", "$HOME"} {
		if path == prefix {
			return home
		}
		if strings.HasPrefix(path, prefix+"/") {
			return filepath.Join(home, path[len(prefix)+1:])
		}
	}
	return path
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "dumpcontact")
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
