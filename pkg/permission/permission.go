// Package permission decides whether an export kind may run. Grants live in
// the device's permission subsystem; the Gate only reads and requests them and
// never caches the answer.
package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/logger"
)

// Capability is an Android runtime permission name.
type Capability string

const (
	ReadCallLog          Capability = "android.permission.READ_CALL_LOG"
	ReadSMS              Capability = "android.permission.READ_SMS"
	ReadContacts         Capability = "android.permission.READ_CONTACTS"
	WriteExternalStorage Capability = "android.permission.WRITE_EXTERNAL_STORAGE"
)

// SDKScopedStorage is the first SDK level (Android Q) where writing to
// Downloads no longer needs WriteExternalStorage.
const SDKScopedStorage = 29

// Short returns the permission name without the android.permission prefix.
func (c Capability) Short() string {
	return strings.TrimPrefix(string(c), "android.permission.")
}

// AllCapabilities returns every capability the application may need on sdk.
func AllCapabilities(sdk int) []Capability {
	caps := []Capability{ReadCallLog, ReadSMS, ReadContacts}
	if sdk < SDKScopedStorage {
		caps = append(caps, WriteExternalStorage)
	}
	return caps
}

// RequiredPermissions returns the capabilities needed to export kind on sdk.
func RequiredPermissions(kind core.Kind, sdk int) []Capability {
	var caps []Capability
	switch kind {
	case core.KindCallLog:
		caps = append(caps, ReadCallLog)
	case core.KindSMS:
		caps = append(caps, ReadSMS)
	case core.KindContacts:
		caps = append(caps, ReadContacts)
	}
	if sdk < SDKScopedStorage {
		caps = append(caps, WriteExternalStorage)
	}
	return caps
}

// Authority is the permission subsystem of the host platform.
type Authority interface {
	Granted(ctx context.Context, c Capability) (bool, error)
	Grant(ctx context.Context, c Capability) error
}

// ResultFunc receives the outcome of a request: caps and granted are
// parallel slices.
type ResultFunc func(caps []Capability, granted []bool)

// Gate answers readiness questions for export kinds.
type Gate struct {
	authority Authority
	sdk       int
}

// NewGate creates a Gate over authority for a device running sdk.
func NewGate(authority Authority, sdk int) *Gate {
	return &Gate{authority: authority, sdk: sdk}
}

// SDK returns the SDK level the gate evaluates requirements for.
func (g *Gate) SDK() int {
	return g.sdk
}

// Required returns the capabilities needed for kind.
func (g *Gate) Required(kind core.Kind) []Capability {
	return RequiredPermissions(kind, g.sdk)
}

// IsGranted reports whether c is currently granted. Lookup failures count as
// not granted.
func (g *Gate) IsGranted(ctx context.Context, c Capability) bool {
	ok, err := g.authority.Granted(ctx, c)
	return err == nil && ok
}

// Missing returns the required capabilities of kind that are not granted.
func (g *Gate) Missing(ctx context.Context, kind core.Kind) []Capability {
	return g.missingOf(ctx, g.Required(kind))
}

// MissingAll returns every capability the application needs that is not granted.
func (g *Gate) MissingAll(ctx context.Context) []Capability {
	return g.missingOf(ctx, AllCapabilities(g.sdk))
}

func (g *Gate) missingOf(ctx context.Context, caps []Capability) []Capability {
	var missing []Capability
	for _, c := range caps {
		if !g.IsGranted(ctx, c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Ready reports whether kind can be exported right now. It is recomputed
// from the authority on every call.
func (g *Gate) Ready(ctx context.Context, kind core.Kind) bool {
	return len(g.Missing(ctx, kind)) == 0
}

// RequestMissing asks the authority to grant the capabilities in caps that
// are not yet granted, then calls done with every capability in caps and its
// state after the request.
func (g *Gate) RequestMissing(ctx context.Context, caps []Capability, done ResultFunc) {
	for _, c := range caps {
		if g.IsGranted(ctx, c) {
			continue
		}
		if err := g.authority.Grant(ctx, c); err != nil {
			logger.Warn("Grant %s failed: %v", c.Short(), err)
		}
	}

	if done == nil {
		return
	}
	granted := make([]bool, len(caps))
	for i, c := range caps {
		granted[i] = g.IsGranted(ctx, c)
	}
	done(caps, granted)
}

// Check returns nil when kind is ready and a permission-denied error naming
// the refused capabilities otherwise.
func (g *Gate) Check(ctx context.Context, kind core.Kind) error {
	missing := g.Missing(ctx, kind)
	if len(missing) == 0 {
		return nil
	}

	names := make([]string, len(missing))
	for i, c := range missing {
		names[i] = c.Short()
	}
	return core.ErrPermissionDenied.
		WithMessage(DeniedMessage(kind)).
		WithDetails(map[string]interface{}{
			"kind":    kind.String(),
			"missing": names,
		}).
		WithCause(fmt.Errorf("not granted: %s", strings.Join(names, ", ")))
}

// DeniedMessage is the notification shown when kind is refused.
func DeniedMessage(kind core.Kind) string {
	switch kind {
	case core.KindCallLog:
		return "Call Log or Storage permission missing."
	case core.KindSMS:
		return "SMS or Storage permission missing."
	case core.KindContacts:
		return "Contacts or Storage permission missing."
	default:
		return "Required permissions missing."
	}
}

// Summary is the notification shown after a request completes.
func Summary(granted []bool) string {
	for _, g := range granted {
		if !g {
			return "Some permissions were denied. Functionality may be limited."
		}
	}
	return "All required permissions granted!"
}
