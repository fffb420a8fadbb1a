package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/permission"
)

// Permissions reads and grants runtime permissions of one package.
// It implements permission.Authority.
type Permissions struct {
	dev *AndroidDevice
	pkg string
}

// Permissions returns the permission authority for pkg on this device.
func (d *AndroidDevice) Permissions(pkg string) *Permissions {
	return &Permissions{dev: d, pkg: pkg}
}

// Package returns the package whose grants are inspected.
func (p *Permissions) Package() string {
	return p.pkg
}

// Granted reports whether c is granted to the package.
func (p *Permissions) Granted(ctx context.Context, c permission.Capability) (bool, error) {
	out, err := p.dev.Shell(ctx, shellJoin("dumpsys", "package", p.pkg))
	if err != nil {
		return false, fmt.Errorf("dumpsys package %s: %w", p.pkg, err)
	}
	if strings.Contains(out, "Unable to find package") {
		return false, fmt.Errorf("package %s not installed", p.pkg)
	}
	return parseGranted(out, c), nil
}

// Grant grants c to the package with `pm grant`.
func (p *Permissions) Grant(ctx context.Context, c permission.Capability) error {
	out, err := p.dev.Shell(ctx, shellJoin("pm", "grant", p.pkg, string(c)))
	if err != nil {
		return fmt.Errorf("pm grant %s %s: %w", p.pkg, c.Short(), err)
	}
	if msg := strings.TrimSpace(out); strings.Contains(msg, "Exception") {
		return fmt.Errorf("pm grant %s %s: %s", p.pkg, c.Short(), firstLine(msg, "Exception"))
	}
	logger.Info("Granted %s to %s", c.Short(), p.pkg)
	return nil
}

// parseGranted finds "<perm>: granted=<bool>" in dumpsys output. A
// permission listed in several sections is granted if any section grants it.
func parseGranted(dumpsys string, c permission.Capability) bool {
	prefix := string(c) + ":"
	for _, line := range strings.Split(dumpsys, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		for _, field := range strings.Fields(strings.TrimPrefix(line, prefix)) {
			field = strings.TrimSuffix(field, ",")
			if field == "granted=true" {
				return true
			}
		}
	}
	return false
}
