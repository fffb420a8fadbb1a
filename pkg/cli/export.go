package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/exporter"
	"github.com/digiscan/dumpcontact/pkg/logger"
	"github.com/digiscan/dumpcontact/pkg/permission"
	"github.com/digiscan/dumpcontact/pkg/provider"
)

var callsCommand = &cli.Command{
	Name:    "calls",
	Aliases: []string{"call-log"},
	Usage:   "Export the call log",
	Description: `Export every call log entry, newest first, with columns
Date, Number, Cached Name, Type, Duration (s).`,
	Action: runExport(core.KindCallLog),
}

var smsCommand = &cli.Command{
	Name:  "sms",
	Usage: "Export SMS messages",
	Description: `Export every SMS message, newest first, with columns
Date, Address, Type, Body. Line breaks inside a body are marked with a
backslash before the newline.`,
	Action: runExport(core.KindSMS),
}

var contactsCommand = &cli.Command{
	Name:  "contacts",
	Usage: "Export contacts with their phone numbers and emails",
	Description: `Export every contact ordered by name, with columns
Name, PhoneNumbers, Emails. Multiple values are joined with "; ".`,
	Action: runExport(core.KindContacts),
}

var allCommand = &cli.Command{
	Name:   "all",
	Usage:  "Export call log, SMS and contacts one after another",
	Action: runExport(core.AllKinds...),
}

func runExport(kinds ...core.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := c.Context
		out := c.App.Writer

		if s.cfg.AutoGrant {
			requestMissing(ctx, out, s.gate, kinds)
		}

		exp := exporter.New(s.gate, provider.NewFetcher(s.source, s.loc, s.sdk), s.sink, exporter.Config{
			Destination: s.destination(),
			SDK:         s.sdk,
			Filter:      s.filter,
			History:     s.recorder(),
			OnNotice: func(kind core.Kind, level exporter.Level, msg string) {
				printNotice(out, level, msg)
			},
		})

		run := exp.ExportAll(ctx, kinds)
		logger.Info("Run finished: %d exported, %d empty, %d failed of %d", run.Exported, run.Empty, run.Failed, run.Total)

		if len(kinds) > 1 {
			printRunSummary(out, run)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if run.Failed > 0 {
			return fmt.Errorf("%d of %d exports failed", run.Failed, run.Total)
		}
		return nil
	}
}

// requestMissing grants what kinds still lack and reports the outcome.
func requestMissing(ctx context.Context, out io.Writer, gate *permission.Gate, kinds []core.Kind) {
	seen := make(map[permission.Capability]bool)
	var missing []permission.Capability
	for _, kind := range kinds {
		for _, c := range gate.Missing(ctx, kind) {
			if !seen[c] {
				seen[c] = true
				missing = append(missing, c)
			}
		}
	}
	if len(missing) == 0 {
		return
	}
	gate.RequestMissing(ctx, missing, func(caps []permission.Capability, granted []bool) {
		printGrantResult(out, caps, granted)
	})
}

func printNotice(out io.Writer, level exporter.Level, msg string) {
	switch level {
	case exporter.LevelSuccess:
		fmt.Fprintf(out, "  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
	case exporter.LevelError:
		fmt.Fprintf(out, "  %s✗%s %s\n", color(colorRed), color(colorReset), msg)
	default:
		fmt.Fprintf(out, "  %sℹ%s %s\n", color(colorCyan), color(colorReset), msg)
	}
}

func printRunSummary(out io.Writer, run *exporter.RunResult) {
	summaryColor := color(colorGreen)
	if !run.OK() {
		summaryColor = color(colorYellow)
	}
	fmt.Fprintf(out, "\n%s%d exported%s, %d empty, %d failed (%d total)\n",
		summaryColor, run.Exported, color(colorReset), run.Empty, run.Failed, run.Total)
}

func printGrantResult(out io.Writer, caps []permission.Capability, granted []bool) {
	for i, c := range caps {
		mark, markColor := "✓", colorGreen
		if !granted[i] {
			mark, markColor = "✗", colorRed
		}
		fmt.Fprintf(out, "  %s%s%s %s\n", color(markColor), mark, color(colorReset), c.Short())
	}
	fmt.Fprintf(out, "  %s\n", permission.Summary(granted))
}
