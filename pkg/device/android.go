// Package device provides Android device access via ADB.
package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Runner executes adb. stdin may be nil.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, args ...string) (string, error)
}

// ExecRunner runs the adb binary at Path.
type ExecRunner struct {
	Path string
}

// Run executes adb with args and returns stdout. On failure the error
// carries stderr, or stdout when stderr is empty.
func (r ExecRunner) Run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}
	return stdout.String(), nil
}

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial string
	runner Runner

	sdkOnce sync.Once
	sdk     int
	sdkErr  error
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the connected device.
func New(ctx context.Context, serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	runner := ExecRunner{Path: adbPath}

	if serial == "" {
		serial, err = detectDeviceSerial(ctx, runner)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}

	d := NewWithRunner(serial, runner)
	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	return d, nil
}

// NewWithRunner creates an AndroidDevice that issues adb calls through runner.
func NewWithRunner(serial string, runner Runner) *AndroidDevice {
	return &AndroidDevice{serial: serial, runner: runner}
}

// detectDeviceSerial finds the first connected device serial.
func detectDeviceSerial(ctx context.Context, runner Runner) (string, error) {
	devices, err := listDevices(ctx, runner)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.State == "device" {
			return d.Serial, nil
		}
	}
	return "", &NoDevicesError{
		Message: "No Android devices found",
		Suggestions: []string{
			"Connect a device via USB and enable USB debugging",
			"Start an emulator",
			"Use offline mode: dumpcontact --source sqlite --calllog-db calllog.db calls",
		},
	}
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, nil, "shell", cmd)
}

// ExecOut executes a command on the device without a pty, so output bytes
// arrive untranslated.
func (d *AndroidDevice) ExecOut(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, nil, "exec-out", cmd)
}

// ShellInput executes a shell command with stdin streamed from r.
func (d *AndroidDevice) ShellInput(ctx context.Context, r io.Reader, cmd string) (string, error) {
	return d.adb(ctx, r, "shell", cmd)
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	if model, err := d.getprop(ctx, "ro.product.model"); err == nil {
		info.Model = model
	}
	if sdk, err := d.getprop(ctx, "ro.build.version.sdk"); err == nil {
		info.SDK = sdk
	}
	if brand, err := d.getprop(ctx, "ro.product.brand"); err == nil {
		info.Brand = brand
	}

	// Check if emulator
	qemu, _ := d.getprop(ctx, "ro.kernel.qemu")
	info.IsEmulator = qemu == "1"

	return info, nil
}

// SDK returns the platform API level. It is read once per device.
func (d *AndroidDevice) SDK(ctx context.Context) (int, error) {
	d.sdkOnce.Do(func() {
		var out string
		out, d.sdkErr = d.getprop(ctx, "ro.build.version.sdk")
		if d.sdkErr != nil {
			return
		}
		d.sdk, d.sdkErr = strconv.Atoi(out)
		if d.sdkErr != nil {
			d.sdkErr = fmt.Errorf("parse sdk %q: %w", out, d.sdkErr)
		}
	})
	return d.sdk, d.sdkErr
}

func (d *AndroidDevice) getprop(ctx context.Context, name string) (string, error) {
	out, err := d.Shell(ctx, "getprop "+name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// adb executes an ADB command.
func (d *AndroidDevice) adb(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)
	return d.runner.Run(ctx, stdin, cmdArgs...)
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.isConnected(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected(ctx context.Context) bool {
	out, err := d.adb(ctx, nil, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android platform-tools are installed")
}

// ShellQuote quotes s for the device shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// shellJoin quotes every argument after the first and joins them.
func shellJoin(cmd string, args ...string) string {
	var b strings.Builder
	b.WriteString(cmd)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(ShellQuote(a))
	}
	return b.String()
}
