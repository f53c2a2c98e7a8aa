package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testYAML = `forms:
  quote:
    name: Quote request
    notifyTo: [sales@example.com]
  legacy:
    notifyTo: [old@example.com]
    enabled: false
defaults:
  defaultNotifyTo: [owner@example.com]
  defaultFromEmail: no-reply@example.com
mailgun:
  domain: mg.example.com
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, verbose, debug = "", false, false
	sendTestForm, sendTestTo, sendTestDryRun = "", nil, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCheck(t *testing.T) {
	path := writeConfig(t)

	t.Setenv("MAILGUN_API_KEY", "")
	out, err := run(t, "check", "-c", path)
	if err == nil || !strings.Contains(err.Error(), "MAILGUN_API_KEY") {
		t.Fatalf("expected missing key error, got %v\n%s", err, out)
	}

	t.Setenv("MAILGUN_API_KEY", "key")
	out, err = run(t, "check", "-c", path)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, want := range []string{"/quote/submit  enabled  Quote request -> sales@example.com", "/legacy/submit  disabled", "Configuration is valid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSendTestDryRun(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("MAILGUN_API_KEY", "key")

	out, err := run(t, "send-test", "-c", path, "--form", "quote", "--dry-run")
	if err != nil {
		t.Fatalf("send-test: %v\n%s", err, out)
	}
	for _, want := range []string{"From: no-reply@example.com", "To: [sales@example.com]", "Subject: New Quote request submission", "Name: Test Sender"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "send-test", "-c", path, "--form", "nope", "--dry-run"); err == nil {
		t.Fatal("expected unknown form error")
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("MYSQL_DSN", "")

	if _, err := run(t, "migrate", "-c", path); err == nil || !strings.Contains(err.Error(), "mysql_dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.HasPrefix(out, "relayctl dev") {
		t.Fatalf("unexpected version output %q (%v)", out, err)
	}
}
