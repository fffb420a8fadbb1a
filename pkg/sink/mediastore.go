package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/digiscan/dumpcontact/pkg/device"
	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/permission"
)

// MediaStore collections.
const (
	URIDownloads = "content://media/external/downloads"
	URIFiles     = "content://media/external/file"
)

// RelativeDownloads is the relative_path of the Downloads collection.
const RelativeDownloads = "Download/"

// Resolver is the device side of MediaStore and the shared filesystem.
type Resolver interface {
	Insert(ctx context.Context, uri string, binds ...device.Bind) error
	LookupID(ctx context.Context, uri string, where map[string]string) (string, error)
	WriteContent(ctx context.Context, uri string, r io.Reader) error
	MkdirAll(ctx context.Context, dir string) error
	CreateFile(ctx context.Context, path string) error
	WriteFile(ctx context.Context, path string, r io.Reader) error
}

// MediaStoreSink writes into the device's shared Downloads.
type MediaStoreSink struct {
	Resolver     Resolver
	SDK          int
	DownloadsDir string // public Downloads path, used below SDKScopedStorage
}

// NewMediaStoreSink returns a device sink for a platform at sdk.
func NewMediaStoreSink(r Resolver, sdk int, downloadsDir string) *MediaStoreSink {
	return &MediaStoreSink{Resolver: r, SDK: sdk, DownloadsDir: downloadsDir}
}

// Create inserts an indexed entry for name and returns its content URI.
func (s *MediaStoreSink) Create(ctx context.Context, name, mime string) (Handle, error) {
	if s.SDK >= permission.SDKScopedStorage {
		return s.createScoped(ctx, name, mime)
	}
	return s.createLegacy(ctx, name, mime)
}

func (s *MediaStoreSink) createScoped(ctx context.Context, name, mime string) (Handle, error) {
	where := map[string]string{
		"_display_name": name,
		"relative_path": RelativeDownloads,
	}
	// MediaStore renames a duplicate display name, so a lookup by name
	// would find the older entry.
	id, err := s.Resolver.LookupID(ctx, URIDownloads, where)
	if err == nil {
		return Handle{}, fmt.Errorf("%s already exists in Downloads as %s/%s", name, URIDownloads, id)
	}
	if !errors.Is(err, device.ErrNoRow) {
		return Handle{}, err
	}

	err = s.Resolver.Insert(ctx, URIDownloads,
		device.String("_display_name", name),
		device.String("mime_type", mime),
		device.String("relative_path", RelativeDownloads),
	)
	if err != nil {
		return Handle{}, err
	}

	id, err = s.Resolver.LookupID(ctx, URIDownloads, where)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Name: name, Location: URIDownloads + "/" + id}, nil
}

func (s *MediaStoreSink) createLegacy(ctx context.Context, name, mime string) (Handle, error) {
	if s.DownloadsDir == "" {
		return Handle{}, fmt.Errorf("no downloads directory configured")
	}
	if err := s.Resolver.MkdirAll(ctx, s.DownloadsDir); err != nil {
		return Handle{}, err
	}

	p := path.Join(s.DownloadsDir, name)
	if err := s.Resolver.CreateFile(ctx, p); err != nil {
		return Handle{}, err
	}

	err := s.Resolver.Insert(ctx, URIFiles,
		device.String("_data", p),
		device.String("_display_name", name),
		device.String("mime_type", mime),
	)
	if err != nil {
		return Handle{}, err
	}
	id, err := s.Resolver.LookupID(ctx, URIFiles, map[string]string{"_data": p})
	if err != nil {
		return Handle{}, err
	}
	return Handle{Name: name, Location: URIFiles + "/" + id, Path: p}, nil
}

// Write streams content into the indexed entry. Below SDKScopedStorage a
// failed `content write` falls back to the entry's file path.
func (s *MediaStoreSink) Write(ctx context.Context, h Handle, content string) error {
	err := s.Resolver.WriteContent(ctx, h.Location, strings.NewReader(content))
	if err == nil || h.Path == "" {
		return err
	}
	logger.Warn("content write %s failed, writing %s directly: %v", h.Location, h.Path, err)
	return s.Resolver.WriteFile(ctx, h.Path, strings.NewReader(content))
}
