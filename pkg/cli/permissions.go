package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/permission"
)

var permissionsCommand = &cli.Command{
	Name:  "permissions",
	Usage: "Show which permissions are granted and which exports are ready",
	Description: `Print the grant state of every capability the exports need and
whether each export kind is ready. The storage capability is only
needed below Android 10 (API 29).

Examples:
  dumpcontact permissions
  dumpcontact permissions --request
  dumpcontact --package com.example.app permissions`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "request",
			Usage: "Grant missing permissions with pm grant",
		},
	},
	Action: runPermissions,
}

func runPermissions(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := c.Context
	out := c.App.Writer

	if c.Bool("request") {
		missing := s.gate.MissingAll(ctx)
		if len(missing) == 0 {
			fmt.Fprintf(out, "%s\n", permission.Summary(nil))
		} else {
			fmt.Fprintf(out, "%sRequesting%s\n", color(colorBold), color(colorReset))
			s.gate.RequestMissing(ctx, missing, func(caps []permission.Capability, granted []bool) {
				printGrantResult(out, caps, granted)
			})
			fmt.Fprintln(out)
		}
	}

	subject := s.cfg.Package
	if s.device == nil {
		subject = "offline databases"
	}
	fmt.Fprintf(out, "%sPermissions%s %s(%s, SDK %d)%s\n",
		color(colorBold), color(colorReset), color(colorGray), subject, s.sdk, color(colorReset))
	for _, capability := range permission.AllCapabilities(s.sdk) {
		mark, markColor := "✗", colorRed
		if s.gate.IsGranted(ctx, capability) {
			mark, markColor = "✓", colorGreen
		}
		fmt.Fprintf(out, "  %s%s%s %s\n", color(markColor), mark, color(colorReset), capability.Short())
	}

	fmt.Fprintf(out, "\n%sExports%s\n", color(colorBold), color(colorReset))
	for _, kind := range core.AllKinds {
		if s.gate.Ready(ctx, kind) {
			fmt.Fprintf(out, "  %s✓%s %s ready\n", color(colorGreen), color(colorReset), kind.Label())
		} else {
			fmt.Fprintf(out, "  %s✗%s %s\n", color(colorRed), color(colorReset), permission.DeniedMessage(kind))
		}
	}
	return nil
}
