package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/elchemista/FormRelay/internal/forms"
	"github.com/elchemista/FormRelay/internal/submission"
)

// redirectTarget picks the Location for an accepted submission. Precedence:
// _redirect, the form's thank-you URL, the redirect query parameter, the
// default thank-you URL, then /thank-you.
func redirectTarget(r *http.Request, sub *submission.Submission, form forms.Resolved) string {
	if v := strings.TrimSpace(sub.Get(submission.FieldRedirect)); v != "" {
		return resolve(requestURL(r), v)
	}
	if form.ThankYouURL != "" {
		return thankYouTarget(r, form.ThankYouURL)
	}
	if v := strings.TrimSpace(r.URL.Query().Get("redirect")); v != "" {
		return thankYouTarget(r, v)
	}
	if form.DefaultThankYouURL != "" {
		return thankYouTarget(r, form.DefaultThankYouURL)
	}
	return thankYouTarget(r, forms.DefaultThankYouURL)
}

// thankYouTarget resolves a thank-you URL chosen without _redirect.
// Root-relative paths take their origin from a valid absolute Referer, else
// from the request.
func thankYouTarget(r *http.Request, target string) string {
	if !isRootRelative(target) {
		return resolve(requestURL(r), target)
	}

	base := refererOrigin(r)
	if base == nil {
		base = requestOrigin(r)
	}
	return resolve(base, target)
}

func isRootRelative(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}

func resolve(base *url.URL, target string) string {
	ref, err := url.Parse(target)
	if err != nil {
		return target
	}
	return base.ResolveReference(ref).String()
}

// refererOrigin returns the scheme and host of the Referer header, or nil
// when it is absent or not an absolute URL.
func refererOrigin(r *http.Request) *url.URL {
	raw := strings.TrimSpace(r.Header.Get("Referer"))
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}

func requestOrigin(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return &url.URL{Scheme: scheme, Host: r.Host}
}

func requestURL(r *http.Request) *url.URL {
	u := requestOrigin(r)
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	return u
}
