package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func text(body string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func testRouter() *Router {
	r := New()
	r.Preflight(text("", http.StatusNoContent))
	r.Handle("/thank-you", text("thanks", http.StatusOK))
	r.HandleMatch(func(path string) bool { return strings.HasSuffix(path, "/submit") }, text("submitted", http.StatusOK), http.MethodPost)
	r.NotFound(text("Not Found", http.StatusNotFound))
	r.MethodNotAllowed(text("Method Not Allowed", http.StatusMethodNotAllowed))
	return r
}

func TestRouting(t *testing.T) {
	r := testRouter()

	cases := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{method: http.MethodOptions, path: "/anything", status: http.StatusNoContent},
		{method: http.MethodOptions, path: "/contact/submit", status: http.StatusNoContent},
		{method: http.MethodGet, path: "/thank-you", status: http.StatusOK, body: "thanks"},
		{method: http.MethodPost, path: "/thank-you", status: http.StatusOK, body: "thanks"},
		{method: http.MethodPost, path: "/contact/submit", status: http.StatusOK, body: "submitted"},
		{method: http.MethodPost, path: "//contact//submit", status: http.StatusOK, body: "submitted"},
		{method: http.MethodGet, path: "/contact/submit", status: http.StatusMethodNotAllowed, body: "Method Not Allowed"},
		{method: http.MethodGet, path: "/nope", status: http.StatusNotFound, body: "Not Found"},
		{method: http.MethodPost, path: "/nope", status: http.StatusNotFound, body: "Not Found"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.status || rec.Body.String() != tc.body {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tc.status, tc.body)
			}
		})
	}
}
