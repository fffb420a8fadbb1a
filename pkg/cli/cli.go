// Package cli provides the command-line interface for dumpcontact.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/digiscan/dumpcontact/pkg/config"
	"github.com/digiscan/dumpcontact/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "adb serial of the device (default: first connected device)",
		EnvVars: []string{"DUMPCONTACT_DEVICE", "ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: <home>/config.yaml)",
		EnvVars: []string{"DUMPCONTACT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "source",
		Usage:   "Where records come from (adb, sqlite)",
		EnvVars: []string{"DUMPCONTACT_SOURCE"},
	},
	&cli.StringFlag{
		Name:    "destination",
		Usage:   "Where CSV files go (device, host)",
		EnvVars: []string{"DUMPCONTACT_DESTINATION"},
	},
	&cli.StringFlag{
		Name:    "downloads-dir",
		Usage:   "Host Downloads directory for --destination host",
		EnvVars: []string{"DUMPCONTACT_DOWNLOADS_DIR"},
	},
	&cli.StringFlag{
		Name:  "device-downloads-dir",
		Usage: "Public Downloads directory on devices below Android 10",
	},
	&cli.StringFlag{
		Name:    "package",
		Usage:   "Package whose runtime permissions gate device exports",
		EnvVars: []string{"DUMPCONTACT_PACKAGE"},
	},
	&cli.StringFlag{
		Name:    "timezone",
		Usage:   "IANA timezone for Date columns (default: local)",
		EnvVars: []string{"DUMPCONTACT_TIMEZONE"},
	},
	&cli.StringFlag{
		Name:    "filter",
		Usage:   "JavaScript expression over `row` selecting records to export",
		EnvVars: []string{"DUMPCONTACT_FILTER"},
	},
	&cli.BoolFlag{
		Name:  "auto-grant",
		Usage: "Grant missing permissions with pm grant before exporting",
	},
	&cli.StringFlag{
		Name:  "calllog-db",
		Usage: "calllog.db for --source sqlite",
	},
	&cli.StringFlag{
		Name:  "sms-db",
		Usage: "mmssms.db for --source sqlite",
	},
	&cli.StringFlag{
		Name:  "contacts-db",
		Usage: "contacts2.db for --source sqlite",
	},
	&cli.IntFlag{
		Name:  "sdk",
		Usage: "Android API level the sqlite databases came from",
	},
	&cli.StringFlag{
		Name:    "history",
		Usage:   "Export history database (default: <home>/history.db)",
		EnvVars: []string{"DUMPCONTACT_HISTORY"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"DUMPCONTACT_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Commands lists every subcommand.
var Commands = []*cli.Command{
	callsCommand,
	smsCommand,
	contactsCommand,
	allCommand,
	permissionsCommand,
	historyCommand,
	devicesCommand,
}

// NewApp builds the application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "dumpcontact",
		Usage:   "Export call log, SMS and contacts from an Android device to CSV",
		Version: Version,
		Description: `dumpcontact reads the call log, SMS and contacts providers of an Android
device over adb (or from pulled provider databases) and writes one CSV file
per export into the Downloads folder.

Examples:
  dumpcontact calls
  dumpcontact -s emulator-5554 all
  dumpcontact --destination host --downloads-dir ./out sms
  dumpcontact --source sqlite --contacts-db contacts2.db contacts
  dumpcontact --filter 'row.Type === "Missed"' calls
  dumpcontact permissions --request`,
		Flags:    GlobalFlags,
		Commands: Commands,
		Before:   before,
		After:    after,
	}
}

// Execute runs the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func before(c *cli.Context) error {
	if c.Bool("no-ansi") {
		colorsEnabled = false
	}
	if err := logger.Init(config.GetLogPath(), c.Bool("verbose")); err != nil {
		// Logging is best effort; exports still run.
		fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
	}
	logger.Info("dumpcontact %s: %v", Version, os.Args[1:])
	return nil
}

func after(c *cli.Context) error {
	logger.Close()
	return nil
}
