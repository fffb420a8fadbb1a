package device

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/digiscan/dumpcontact/pkg/permission"
	"github.com/digiscan/dumpcontact/pkg/provider"
)

type call struct {
	args  []string
	stdin string
}

// fakeRunner answers adb invocations by the first matching substring of
// the joined arguments.
type fakeRunner struct {
	responses []response
	calls     []call
}

type response struct {
	match string
	out   string
	err   error
}

func (r *fakeRunner) on(match, out string, err error) *fakeRunner {
	r.responses = append(r.responses, response{match, out, err})
	return r
}

func (r *fakeRunner) Run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	c := call{args: args}
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		c.stdin = string(b)
	}
	r.calls = append(r.calls, c)

	joined := strings.Join(args, " ")
	for _, resp := range r.responses {
		if strings.Contains(joined, resp.match) {
			return resp.out, resp.err
		}
	}
	return "", nil
}

func (r *fakeRunner) last() call {
	return r.calls[len(r.calls)-1]
}

// skipIfNoDevice skips the test if no device is connected.
func skipIfNoDevice(t *testing.T) {
	t.Helper()
	out, err := exec.Command("adb", "devices").Output()
	if err != nil {
		t.Skip("adb not available")
	}
	if !strings.Contains(string(out), "\tdevice") {
		t.Skip("no device connected")
	}
}

func TestAndroidDevice_Shell_PrependsSerial(t *testing.T) {
	r := (&fakeRunner{}).on("echo", "hello\n", nil)
	d := NewWithRunner("emulator-5554", r)

	out, err := d.Shell(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Shell() error = %v", err)
	}
	if out != "hello\n" {
		t.Errorf("Shell() = %q", out)
	}
	want := []string{"-s", "emulator-5554", "shell", "echo hello"}
	if strings.Join(r.last().args, "|") != strings.Join(want, "|") {
		t.Errorf("args = %q, want %q", r.last().args, want)
	}
}

func TestAndroidDevice_SDK(t *testing.T) {
	r := (&fakeRunner{}).on("ro.build.version.sdk", "28\n", nil)
	d := NewWithRunner("x", r)

	for i := 0; i < 2; i++ {
		sdk, err := d.SDK(context.Background())
		if err != nil {
			t.Fatalf("SDK() error = %v", err)
		}
		if sdk != 28 {
			t.Errorf("SDK() = %d, want 28", sdk)
		}
	}
	if len(r.calls) != 1 {
		t.Errorf("getprop called %d times, want 1", len(r.calls))
	}
}

func TestAndroidDevice_SDK_Garbage(t *testing.T) {
	r := (&fakeRunner{}).on("ro.build.version.sdk", "\n", nil)
	if _, err := NewWithRunner("x", r).SDK(context.Background()); err == nil {
		t.Error("SDK() should fail on empty getprop")
	}
}

func TestAndroidDevice_Info(t *testing.T) {
	r := (&fakeRunner{}).
		on("ro.product.model", "Pixel 7\n", nil).
		on("ro.build.version.sdk", "34\n", nil).
		on("ro.product.brand", "google\n", nil).
		on("ro.kernel.qemu", "1\n", nil)

	info, err := NewWithRunner("emu", r).Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Model != "Pixel 7" || info.SDK != "34" || info.Brand != "google" || !info.IsEmulator {
		t.Errorf("Info() = %+v", info)
	}
}

func TestParseDevices(t *testing.T) {
	out := "List of devices attached\n" +
		"* daemon started successfully\n" +
		"emulator-5554          device product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64x transport_id:1\n" +
		"R58M123               unauthorized usb:1-1 transport_id:2\n\n"

	got := parseDevices(out)
	if len(got) != 2 {
		t.Fatalf("parseDevices() = %d entries, want 2", len(got))
	}
	if got[0].Serial != "emulator-5554" || got[0].State != "device" || got[0].Model != "sdk_gphone64_x86_64" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].State != "unauthorized" {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestDetectDeviceSerial(t *testing.T) {
	r := (&fakeRunner{}).on("devices", "List of devices attached\nA offline\nB device\n", nil)
	serial, err := detectDeviceSerial(context.Background(), r)
	if err != nil {
		t.Fatalf("detectDeviceSerial() error = %v", err)
	}
	if serial != "B" {
		t.Errorf("serial = %q, want B", serial)
	}

	r = (&fakeRunner{}).on("devices", "List of devices attached\n\n", nil)
	_, err = detectDeviceSerial(context.Background(), r)
	var nde *NoDevicesError
	if !errors.As(err, &nde) {
		t.Fatalf("err = %v, want NoDevicesError", err)
	}
	if !strings.Contains(nde.Error(), "Options:") {
		t.Errorf("Error() = %q, want options", nde.Error())
	}
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"plain":          "'plain'",
		"O'Brien":        `'O'\''Brien'`,
		"a b; rm -rf /":  "'a b; rm -rf /'",
		"":               "''",
		"contact_id='1'": `'contact_id='\''1'\'''`,
	}
	for in, want := range tests {
		if got := ShellQuote(in); got != want {
			t.Errorf("ShellQuote(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestAndroidDevice_Real(t *testing.T) {
	skipIfNoDevice(t)

	d, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Serial() == "" {
		t.Error("device serial is empty")
	}
	if sdk, err := d.SDK(context.Background()); err != nil || sdk <= 0 {
		t.Errorf("SDK() = %d, %v", sdk, err)
	}
}

func TestPermissions_Granted(t *testing.T) {
	dumpsys := `Packages:
  Package [com.android.shell] (1234):
    requested permissions:
      android.permission.READ_SMS
      android.permission.READ_CALL_LOG
    install permissions:
      android.permission.READ_CALL_LOG: granted=false
    runtime permissions:
      android.permission.READ_SMS: granted=true, flags=[ USER_SET ]
      android.permission.READ_CALL_LOG: granted=true, flags=[ GRANTED_BY_DEFAULT ]
      android.permission.READ_CONTACTS: granted=false, flags=[ USER_SET ]
`
	r := (&fakeRunner{}).on("dumpsys", dumpsys, nil)
	p := NewWithRunner("x", r).Permissions("com.android.shell")

	tests := []struct {
		c    permission.Capability
		want bool
	}{
		{permission.ReadSMS, true},
		{permission.ReadCallLog, true},
		{permission.ReadContacts, false},
		{permission.WriteExternalStorage, false},
	}
	for _, tt := range tests {
		got, err := p.Granted(context.Background(), tt.c)
		if err != nil {
			t.Fatalf("Granted(%s) error = %v", tt.c.Short(), err)
		}
		if got != tt.want {
			t.Errorf("Granted(%s) = %v, want %v", tt.c.Short(), got, tt.want)
		}
	}
	if got := r.last().args; got[len(got)-1] != "dumpsys 'package' 'com.android.shell'" {
		t.Errorf("command = %q", got[len(got)-1])
	}
}

func TestPermissions_UnknownPackage(t *testing.T) {
	r := (&fakeRunner{}).on("dumpsys", "Unable to find package: com.nope\n", nil)
	_, err := NewWithRunner("x", r).Permissions("com.nope").Granted(context.Background(), permission.ReadSMS)
	if err == nil {
		t.Error("Granted() should fail for unknown package")
	}
}

func TestPermissions_Grant(t *testing.T) {
	r := &fakeRunner{}
	p := NewWithRunner("x", r).Permissions("com.android.shell")
	if err := p.Grant(context.Background(), permission.ReadContacts); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	want := "pm 'grant' 'com.android.shell' 'android.permission.READ_CONTACTS'"
	if got := r.last().args[3]; got != want {
		t.Errorf("command = %q, want %q", got, want)
	}

	r = (&fakeRunner{}).on("pm", "Exception occurred while executing 'grant':\njava.lang.SecurityException: not changeable\n", nil)
	p = NewWithRunner("x", r).Permissions("com.android.shell")
	if err := p.Grant(context.Background(), permission.ReadContacts); err == nil {
		t.Error("Grant() should surface pm exceptions")
	}
}

func TestPermissions_IsAuthority(t *testing.T) {
	var _ permission.Authority = (*Permissions)(nil)
	var _ provider.Source = (*AndroidDevice)(nil)
}
