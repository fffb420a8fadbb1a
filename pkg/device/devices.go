package device

import (
	"context"
	"fmt"
	"strings"
)

// Entry is one line of `adb devices -l`.
type Entry struct {
	Serial string
	State  string // device, offline, unauthorized, ...
	Model  string
}

// NoDevicesError is returned when no usable device is connected.
type NoDevicesError struct {
	Message     string
	Suggestions []string
}

func (e *NoDevicesError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nOptions:\n")
		for i, s := range e.Suggestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
		}
	}
	return b.String()
}

// ListDevices returns every device adb knows about.
func ListDevices(ctx context.Context) ([]Entry, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	return listDevices(ctx, ExecRunner{Path: adbPath})
}

func listDevices(ctx context.Context, runner Runner) ([]Entry, error) {
	out, err := runner.Run(ctx, nil, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		e := Entry{Serial: parts[0], State: parts[1]}
		for _, p := range parts[2:] {
			if strings.HasPrefix(p, "model:") {
				e.Model = strings.TrimPrefix(p, "model:")
			}
		}
		entries = append(entries, e)
	}
	return entries
}
