// Package config handles configuration for dumpcontact.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Data sources
const (
	SourceADB    = "adb"    // Live device over adb content queries
	SourceSQLite = "sqlite" // Provider databases pulled from a device
)

// Destinations
const (
	DestinationDevice = "device" // MediaStore Downloads on the device
	DestinationHost   = "host"   // Local Downloads directory
)

// DefaultPackage is the package whose runtime grants gate device exports.
// adb content queries run as the shell user.
const DefaultPackage = "com.android.shell"

// DefaultDeviceDownloadsDir is the public Downloads directory on pre-Q devices.
const DefaultDeviceDownloadsDir = "/storage/emulated/0/Download"

// Config represents the dumpcontact configuration (config.yaml).
type Config struct {
	// Device settings
	Device  string `yaml:"device"`  // adb serial; empty = first connected device
	Package string `yaml:"package"` // Package whose permissions are checked/granted

	// Pipeline
	Source      string `yaml:"source"`      // adb or sqlite
	Destination string `yaml:"destination"` // device or host
	Filter      string `yaml:"filter"`      // JavaScript predicate over each record

	// Output locations
	DownloadsDir       string `yaml:"downloadsDir"`       // Host Downloads directory
	DeviceDownloadsDir string `yaml:"deviceDownloadsDir"` // Device Downloads directory (SDK < 29)

	// Formatting
	Timezone string `yaml:"timezone"` // IANA zone for Date columns; empty = local

	// Permissions
	AutoGrant bool `yaml:"autoGrant"` // Grant missing capabilities before exporting

	// Offline provider databases (source: sqlite)
	Databases Databases `yaml:"databases"`
	SDK       int       `yaml:"sdk"` // SDK level the databases came from; 0 = current

	// History database path
	History string `yaml:"history"`
}

// Databases locates pulled provider databases.
type Databases struct {
	CallLog  string `yaml:"callLog"`  // calllog.db
	SMS      string `yaml:"sms"`      // mmssms.db
	Contacts string `yaml:"contacts"` // contacts2.db
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Package:            DefaultPackage,
		Source:             SourceADB,
		DownloadsDir:       DefaultDownloadsDir(),
		DeviceDownloadsDir: DefaultDeviceDownloadsDir,
		History:            GetHistoryPath(),
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	return &Config{}, nil
}

// Merge overlays every non-zero field of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	setString(&c.Device, other.Device)
	setString(&c.Package, other.Package)
	setString(&c.Source, other.Source)
	setString(&c.Destination, other.Destination)
	setString(&c.Filter, other.Filter)
	setString(&c.DownloadsDir, other.DownloadsDir)
	setString(&c.DeviceDownloadsDir, other.DeviceDownloadsDir)
	setString(&c.Timezone, other.Timezone)
	setString(&c.Databases.CallLog, other.Databases.CallLog)
	setString(&c.Databases.SMS, other.Databases.SMS)
	setString(&c.Databases.Contacts, other.Databases.Contacts)
	setString(&c.History, other.History)
	if other.AutoGrant {
		c.AutoGrant = true
	}
	if other.SDK != 0 {
		c.SDK = other.SDK
	}
}

// Normalize fills fields whose default depends on other fields: the
// destination is the device for adb and the host for sqlite.
func (c *Config) Normalize() {
	if c.Destination != "" {
		return
	}
	if c.Source == SourceSQLite {
		c.Destination = DestinationHost
	} else {
		c.Destination = DestinationDevice
	}
}

// Validate checks enumerated fields and source-specific requirements.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceADB:
	case SourceSQLite:
		if c.Databases.CallLog == "" && c.Databases.SMS == "" && c.Databases.Contacts == "" {
			return fmt.Errorf("source %q needs at least one database path", SourceSQLite)
		}
		if c.Destination == DestinationDevice {
			return fmt.Errorf("source %q can only export to destination %q", SourceSQLite, DestinationHost)
		}
	default:
		return fmt.Errorf("unknown source %q (use %s or %s)", c.Source, SourceADB, SourceSQLite)
	}

	switch c.Destination {
	case DestinationDevice, DestinationHost:
	default:
		return fmt.Errorf("unknown destination %q (use %s or %s)", c.Destination, DestinationDevice, DestinationHost)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the timezone used for Date columns.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
