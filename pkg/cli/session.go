package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/digiscan/dumpcontact/pkg/config"
	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/device"
	"github.com/digiscan/dumpcontact/pkg/exporter"
	"github.com/digiscan/dumpcontact/pkg/history"
	"github.com/digiscan/dumpcontact/pkg/jsengine"
	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/permission"
	"github.com/digiscan/dumpcontact/pkg/provider"
	"github.com/digiscan/dumpcontact/pkg/provider/sqlitesrc"
	"github.com/digiscan/dumpcontact/pkg/sink"
)

// offlineSDK is assumed for pulled databases when --sdk is not given.
const offlineSDK = 34

// connectDevice opens the adb device; tests replace it.
var connectDevice = func(ctx context.Context, serial string) (*device.AndroidDevice, error) {
	return device.New(ctx, serial)
}

// session holds everything one command run needs.
type session struct {
	cfg       *config.Config
	loc       *time.Location
	sdk       int
	device    *device.AndroidDevice // nil for sqlite sources
	source    provider.Source
	authority permission.Authority
	gate      *permission.Gate
	sink      sink.Sink
	filter    *jsengine.Filter
	history   *history.Store // nil when the history database is unavailable
	closers   []func() error
}

// loadConfig resolves defaults, the config file and flags, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Defaults()

	var file *config.Config
	var err error
	if path := c.String("config"); path != "" {
		file, err = config.Load(config.ExpandHome(path))
	} else {
		file, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("failed to load config").WithCause(err)
	}
	cfg.Merge(file)
	cfg.Merge(flagConfig(c))

	cfg.DownloadsDir = config.ExpandHome(cfg.DownloadsDir)
	cfg.History = config.ExpandHome(cfg.History)
	cfg.Databases.CallLog = config.ExpandHome(cfg.Databases.CallLog)
	cfg.Databases.SMS = config.ExpandHome(cfg.Databases.SMS)
	cfg.Databases.Contacts = config.ExpandHome(cfg.Databases.Contacts)

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid configuration").WithCause(err)
	}
	return cfg, nil
}

// flagConfig returns the settings given on the command line.
func flagConfig(c *cli.Context) *config.Config {
	return &config.Config{
		Device:             c.String("device"),
		Package:            c.String("package"),
		Source:             c.String("source"),
		Destination:        c.String("destination"),
		Filter:             c.String("filter"),
		DownloadsDir:       c.String("downloads-dir"),
		DeviceDownloadsDir: c.String("device-downloads-dir"),
		Timezone:           c.String("timezone"),
		AutoGrant:          c.Bool("auto-grant"),
		SDK:                c.Int("sdk"),
		History:            c.String("history"),
		Databases: config.Databases{
			CallLog:  c.String("calllog-db"),
			SMS:      c.String("sms-db"),
			Contacts: c.String("contacts-db"),
		},
	}
}

// openSession connects the source and builds gate, sink and history.
func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, loc: loc}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	switch cfg.Source {
	case config.SourceSQLite:
		if err := s.openSQLite(); err != nil {
			return nil, err
		}
	default:
		if err := s.openDevice(c.Context); err != nil {
			return nil, err
		}
	}

	if cfg.Destination == config.DestinationHost {
		s.sink = sink.NewDirSink(cfg.DownloadsDir)
		if s.device != nil {
			// Host storage replaces the device storage grant.
			s.authority = &permission.Routed{
				Default: s.authority,
				Routes: map[permission.Capability]permission.Authority{
					permission.WriteExternalStorage: hostStorage(cfg.DownloadsDir),
				},
			}
		}
	} else {
		s.sink = sink.NewMediaStoreSink(s.device, s.sdk, cfg.DeviceDownloadsDir)
	}
	s.gate = permission.NewGate(s.authority, s.sdk)

	s.filter, err = jsengine.Compile(cfg.Filter)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid filter").WithCause(err)
	}

	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			logger.Warn("History disabled: %v", err)
		} else {
			s.history = store
			s.closers = append(s.closers, store.Close)
		}
	}

	logger.Info("Session: source=%s destination=%s sdk=%d", cfg.Source, cfg.Destination, s.sdk)
	ok = true
	return s, nil
}

func (s *session) openDevice(ctx context.Context) error {
	dev, err := connectDevice(ctx, s.cfg.Device)
	if err != nil {
		return err
	}
	sdk, err := dev.SDK(ctx)
	if err != nil {
		return fmt.Errorf("read device sdk: %w", err)
	}
	s.device = dev
	s.sdk = sdk
	s.source = dev
	s.authority = dev.Permissions(s.cfg.Package)
	return nil
}

func (s *session) openSQLite() error {
	dbs := s.cfg.Databases
	src, err := sqlitesrc.Open(sqlitesrc.Paths{CallLog: dbs.CallLog, SMS: dbs.SMS, Contacts: dbs.Contacts})
	if err != nil {
		return err
	}
	s.closers = append(s.closers, src.Close)

	s.sdk = s.cfg.SDK
	if s.sdk == 0 {
		s.sdk = offlineSDK
	}
	s.source = src
	s.authority = &permission.FileAuthority{
		Files: map[permission.Capability]string{
			permission.ReadCallLog:  dbs.CallLog,
			permission.ReadSMS:      dbs.SMS,
			permission.ReadContacts: dbs.Contacts,
		},
		Dirs: map[permission.Capability]string{
			permission.WriteExternalStorage: s.cfg.DownloadsDir,
		},
	}
	return nil
}

func hostStorage(dir string) permission.Authority {
	return &permission.FileAuthority{
		Dirs: map[permission.Capability]string{permission.WriteExternalStorage: dir},
	}
}

// Close releases databases.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("Close: %v", err)
		}
	}
	s.closers = nil
}

// destination returns the label recorded in history.
func (s *session) destination() string {
	return s.cfg.Destination
}

// recorder returns the history store, or nil when history is disabled.
func (s *session) recorder() exporter.Recorder {
	if s.history == nil {
		return nil
	}
	return s.history
}
