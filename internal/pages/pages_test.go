package pages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestBuiltinThankYou(t *testing.T) {
	m := New(nil, nil)

	data := ThankYouData()
	data.BackURL = "https://site.example/?a=<b>"

	body, err := m.ThankYou(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := string(body)
	if !strings.Contains(out, "<title>Thank you!</title>") || !strings.Contains(out, "Your submission has been received.") {
		t.Fatalf("unexpected page:\n%s", out)
	}
	if strings.Contains(out, "<b>") {
		t.Fatalf("back url should be escaped:\n%s", out)
	}
}

func TestOverrideWinsOverBuiltin(t *testing.T) {
	fsys := fstest.MapFS{
		ThankYouTemplate: {Data: []byte("<p>{{.Title}} from override</p>")},
	}
	m := New(fsys, nil)

	body, err := m.ThankYou(PageData{Title: "Cheers"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(body) != "<p>Cheers from override</p>" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := m.Render("missing.html", PageData{}); err == nil {
		t.Fatal("expected missing template error")
	}
}

func TestNewThankYouFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "done.html")
	if err := os.WriteFile(path, []byte("<h1>{{.Message}}</h1>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := NewThankYou(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	body, err := m.ThankYou(ThankYouData())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(body) != "<h1>Your submission has been received.</h1>" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := NewThankYou(filepath.Join(dir, "nope.html")); err == nil {
		t.Fatal("expected error for missing override file")
	}
}
