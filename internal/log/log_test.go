package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in).Level(); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormats(t *testing.T) {
	var buf bytes.Buffer

	NewWriter(&buf, "info", "json").Info("request completed", "status", 303)
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json output not decodable: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "request completed" || entry["status"] != float64(303) {
		t.Fatalf("unexpected entry %v", entry)
	}

	buf.Reset()
	NewWriter(&buf, "", "").Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("unexpected text output %q", buf.String())
	}

	buf.Reset()
	logger := NewWriter(&buf, "warn", "pretty")
	logger.Info("hidden")
	logger.Warn("shown", "form", "contact")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "contact") {
		t.Fatalf("unexpected pretty output %q", out)
	}
}
