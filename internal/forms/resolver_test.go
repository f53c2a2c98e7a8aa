package forms

import (
	"reflect"
	"testing"

	"github.com/elchemista/FormRelay/internal/config"
	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

func boolPtr(v bool) *bool { return &v }

func testResolver() *Resolver {
	return NewResolver(map[string]config.FormConfig{
		"quote": {
			Name:        "Quote request",
			NotifyTo:    []string{"sales@example.com", "ops@example.com"},
			ThankYouURL: "/quote/thanks",
		},
		"careers": {
			NotifyTo:  []string{"jobs@example.com"},
			FromEmail: "careers@example.com",
			Subject:   "Application received",
		},
		"legacy": {Name: "Legacy", NotifyTo: []string{"old@example.com"}, Enabled: boolPtr(false)},
	}, config.Defaults{
		NotifyTo:    []string{"owner@example.com"},
		FromEmail:   "no-reply@example.com",
		ThankYouURL: "/thanks",
	}, "noreply@mg.example.com")
}

func TestKeyFromPath(t *testing.T) {
	cases := []struct {
		path string
		key  string
		ok   bool
	}{
		{path: "/quote/submit", key: "quote", ok: true},
		{path: "//quote//submit/", key: "quote", ok: true},
		{path: "/quote/submit/extra", key: "quote", ok: true},
		{path: "/submit", ok: false},
		{path: "/", ok: false},
		{path: "/quote/send", ok: false},
		{path: "/a/b/submit", ok: false},
	}

	for _, tc := range cases {
		key, ok := KeyFromPath(tc.path)
		if key != tc.key || ok != tc.ok {
			t.Fatalf("%s: got (%q, %v), want (%q, %v)", tc.path, key, ok, tc.key, tc.ok)
		}
	}
}

func TestIsSubmitPath(t *testing.T) {
	for path, want := range map[string]bool{
		"/submit":         true,
		"/submit/":        true,
		"/quote/submit":   true,
		"/thank-you":      false,
		"/submit/quote":   false,
		"/":               false,
		"/a/b/submit":     false,
		"/quote/submit/":  true,
		"/quote/submit/x": false,
	} {
		if got := IsSubmitPath(path); got != want {
			t.Fatalf("IsSubmitPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestResolveFormSpecific(t *testing.T) {
	res, err := testResolver().Resolve("/quote/submit", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := Resolved{
		Key:                "quote",
		Name:               "Quote request",
		NotifyTo:           []string{"sales@example.com", "ops@example.com"},
		From:               "no-reply@example.com",
		Subject:            "New Quote request submission",
		Enabled:            true,
		ThankYouURL:        "/quote/thanks",
		DefaultThankYouURL: "/thanks",
	}
	if !reflect.DeepEqual(res, want) {
		t.Fatalf("got %+v\nwant %+v", res, want)
	}
}

func TestResolveOverrides(t *testing.T) {
	res, err := testResolver().Resolve("/careers/submit", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Name != "careers" || res.From != "careers@example.com" || res.Subject != "Application received" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if !reflect.DeepEqual(res.NotifyTo, []string{"jobs@example.com"}) {
		t.Fatalf("form recipients must not be merged with defaults: %q", res.NotifyTo)
	}
}

func TestResolveDefaults(t *testing.T) {
	r := testResolver()

	for _, path := range []string{"/submit", "/unknown/submit", "/Quote/submit"} {
		res, err := r.Resolve(path, "")
		if err != nil {
			t.Fatalf("resolve %s: %v", path, err)
		}
		if res.Key != "" || res.Name != DefaultName || res.Subject != "New contact submission" {
			t.Fatalf("%s: unexpected resolution %+v", path, res)
		}
		if !reflect.DeepEqual(res.NotifyTo, []string{"owner@example.com"}) {
			t.Fatalf("%s: expected default recipients, got %q", path, res.NotifyTo)
		}
	}
}

func TestResolveFormField(t *testing.T) {
	r := testResolver()

	res, _ := r.Resolve("/submit", "quote")
	if res.Key != "quote" {
		t.Fatalf("_form should select a configuration on /submit: %+v", res)
	}

	res, _ = r.Resolve("/careers/submit", "quote")
	if res.Key != "careers" {
		t.Fatalf("path should win over _form: %+v", res)
	}

	res, _ = r.Resolve("/submit", "newsletter")
	if res.Key != "" || res.Name != "newsletter" || res.Subject != "New newsletter submission" {
		t.Fatalf("unknown _form should only name the submission: %+v", res)
	}

	res, _ = r.Resolve("/unknown/submit", "newsletter")
	if res.Key != "" || res.Name != DefaultName {
		t.Fatalf("_form should not name a submission whose path names a key: %+v", res)
	}
}

func TestResolveDisabledAndFallbackFrom(t *testing.T) {
	res, _ := testResolver().Resolve("/legacy/submit", "")
	if res.Enabled {
		t.Fatal("legacy form should be disabled")
	}

	bare := NewResolver(nil, config.Defaults{}, "noreply@mg.example.com")
	res, err := bare.Resolve("/submit", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.From != "noreply@mg.example.com" {
		t.Fatalf("expected fallback sender, got %q", res.From)
	}
	if _, err := res.Recipients(); !errorspkg.Is(err, errorspkg.ConfigurationMissing) {
		t.Fatalf("expected configuration missing, got %v", err)
	}
}
