package forms

import (
	"fmt"
	"slices"
	"strings"

	"dario.cat/mergo"

	"github.com/elchemista/FormRelay/internal/config"
	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

const (
	// DefaultName is used when no form configuration names the submission.
	DefaultName = "contact"
	// DefaultThankYouURL is the last-resort redirect target.
	DefaultThankYouURL = "/thank-you"

	submitSegment = "submit"
)

// Resolved is the effective configuration of one submission.
type Resolved struct {
	// Key is the table key of the matched form, empty when defaults apply.
	Key      string
	Name     string
	NotifyTo []string
	From     string
	Subject  string
	Enabled  bool
	// ThankYouURL is the matched form's own redirect, if any.
	ThankYouURL string
	// DefaultThankYouURL is the global default redirect, if any.
	DefaultThankYouURL string
}

// Recipients returns the resolved recipient list or a ConfigurationMissing
// error when neither the form nor the defaults name anyone.
func (r Resolved) Recipients() ([]string, error) {
	if len(r.NotifyTo) == 0 {
		return nil, errorspkg.Newf(errorspkg.ConfigurationMissing, "no recipients configured for form %q", r.Name)
	}
	return r.NotifyTo, nil
}

// Resolver looks up form configurations. It is read-only after construction
// and safe for concurrent use.
type Resolver struct {
	forms        map[string]config.FormConfig
	defaults     config.Defaults
	fallbackFrom string
}

// NewResolver builds a Resolver over the given table. fallbackFrom is used
// when neither the form nor the defaults provide a sender.
func NewResolver(forms map[string]config.FormConfig, defaults config.Defaults, fallbackFrom string) *Resolver {
	table := make(map[string]config.FormConfig, len(forms))
	for k, v := range forms {
		table[k] = v
	}
	return &Resolver{forms: table, defaults: defaults, fallbackFrom: fallbackFrom}
}

func segments(path string) []string {
	out := make([]string, 0, 4)
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// KeyFromPath extracts the form key from paths shaped /{key}/submit/...
func KeyFromPath(path string) (string, bool) {
	segs := segments(path)
	if len(segs) >= 2 && segs[1] == submitSegment {
		return segs[0], true
	}
	return "", false
}

// IsSubmitPath reports whether path accepts submissions: exactly /submit or
// /{key}/submit.
func IsSubmitPath(path string) bool {
	segs := segments(path)
	switch len(segs) {
	case 1:
		return segs[0] == submitSegment
	case 2:
		return segs[1] == submitSegment
	default:
		return false
	}
}

// Lookup returns the form stored under key. Matching is exact and
// case-sensitive.
func (r *Resolver) Lookup(key string) (config.FormConfig, bool) {
	if r == nil || key == "" {
		return config.FormConfig{}, false
	}
	form, ok := r.forms[key]
	return form, ok
}

// Match finds the form for a request path, falling back to the value of the
// _form control field when the path does not name one.
func (r *Resolver) Match(path, formField string) (string, config.FormConfig, bool) {
	if key, ok := KeyFromPath(path); ok {
		form, found := r.Lookup(key)
		return key, form, found
	}

	if formField != "" {
		form, found := r.Lookup(formField)
		return formField, form, found
	}

	return "", config.FormConfig{}, false
}

type settings struct {
	NotifyTo []string
	From     string
}

// Resolve applies form → defaults → literal precedence for the submission at
// path.
func (r *Resolver) Resolve(path, formField string) (Resolved, error) {
	key, form, found := r.Match(path, formField)

	out := Resolved{Enabled: true}
	eff := settings{}

	if found {
		out.Key = key
		out.Name = form.Name
		if out.Name == "" {
			out.Name = key
		}
		out.Subject = form.Subject
		out.ThankYouURL = form.ThankYouURL
		out.Enabled = form.IsEnabled()
		eff = settings{NotifyTo: slices.Clone(form.NotifyTo), From: form.FromEmail}
	} else if _, named := KeyFromPath(path); !named && formField != "" {
		out.Name = formField
	}

	if r != nil {
		layers := []settings{
			{NotifyTo: slices.Clone(r.defaults.NotifyTo), From: r.defaults.FromEmail},
			{From: r.fallbackFrom},
		}
		for _, layer := range layers {
			if err := mergo.Merge(&eff, layer); err != nil {
				return Resolved{}, fmt.Errorf("merge form defaults: %w", err)
			}
		}
		out.DefaultThankYouURL = r.defaults.ThankYouURL
	}

	if out.Name == "" {
		out.Name = DefaultName
	}
	if out.Subject == "" {
		out.Subject = fmt.Sprintf("New %s submission", out.Name)
	}

	out.NotifyTo = eff.NotifyTo
	out.From = eff.From

	return out, nil
}
