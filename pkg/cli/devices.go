package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/digiscan/dumpcontact/pkg/device"
	"github.com/digiscan/dumpcontact/pkg/logger"
)

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List connected adb devices",
	Description: `List every device adb reports. Online devices are queried for
their model, brand, SDK level and whether they are emulators.`,
	Action: runDevices,
}

// listDevices is replaced in tests.
var listDevices = device.ListDevices

func runDevices(c *cli.Context) error {
	ctx := c.Context
	entries, err := listDevices(ctx)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(entries) == 0 {
		fmt.Fprintln(out, "No devices connected.")
		return nil
	}
	for _, e := range entries {
		stateColor := colorGreen
		if e.State != "device" {
			stateColor = colorYellow
		}
		model, details := e.Model, ""
		if e.State == "device" {
			if info, ok := deviceInfo(ctx, e.Serial); ok {
				if info.Model != "" {
					model = info.Model
				}
				details = describeDevice(info)
			}
		}
		line := fmt.Sprintf("  %s  %s%s%s", e.Serial, color(stateColor), e.State, color(colorReset))
		if model != "" {
			line += fmt.Sprintf(" %s%s%s", color(colorGray), model, color(colorReset))
		}
		if details != "" {
			line += " " + details
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func deviceInfo(ctx context.Context, serial string) (device.DeviceInfo, bool) {
	dev, err := connectDevice(ctx, serial)
	if err != nil {
		logger.Debug("Skipping info for %s: %v", serial, err)
		return device.DeviceInfo{}, false
	}
	info, err := dev.Info(ctx)
	if err != nil {
		logger.Debug("Device info for %s: %v", serial, err)
		return device.DeviceInfo{}, false
	}
	return info, true
}

// describeDevice renders "(brand, SDK n, emulator)".
func describeDevice(info device.DeviceInfo) string {
	var parts []string
	if info.Brand != "" {
		parts = append(parts, info.Brand)
	}
	if info.SDK != "" {
		parts = append(parts, "SDK "+info.SDK)
	}
	if info.IsEmulator {
		parts = append(parts, "emulator")
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
