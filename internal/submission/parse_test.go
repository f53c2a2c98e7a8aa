package submission

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

var sampleFields = []Field{
	{Name: "name", Value: "Zoë"},
	{Name: "email", Value: "zoe@example.com"},
	{Name: "message", Value: "Hello\nthere & welcome"},
	{Name: "_form", Value: "contact"},
}

func TestParseEncodingsAgree(t *testing.T) {
	form := url.Values{}
	jsonBody := map[string]string{}
	var mp bytes.Buffer
	mw := multipart.NewWriter(&mp)
	for _, f := range sampleFields {
		form.Set(f.Name, f.Value)
		jsonBody[f.Name] = f.Value
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	js, _ := json.Marshal(jsonBody)

	cases := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "urlencoded", contentType: "application/x-www-form-urlencoded", body: []byte(form.Encode())},
		{name: "missing content type", contentType: "", body: []byte(form.Encode())},
		{name: "json", contentType: "application/json; charset=utf-8", body: js},
		{name: "multipart", contentType: mw.FormDataContentType(), body: mp.Bytes()},
	}

	want := FromFields(sampleFields...).Map()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}

			sub, err := Parse(req, 0)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			if got := sub.Map(); !reflect.DeepEqual(got, want) {
				t.Fatalf("unexpected fields:\n got %v\nwant %v", got, want)
			}
		})
	}
}

func TestParseURLEncodedLastWins(t *testing.T) {
	sub, err := ParseURLEncoded([]byte("a=1&b=2&a=3&&c"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	fields := sub.Fields()
	want := []Field{{"a", "3"}, {"b", "2"}, {"c", ""}}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("got %v, want %v", fields, want)
	}

	if _, err := ParseURLEncoded([]byte("a=%zz")); !errorspkg.Is(err, errorspkg.MalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestParseJSONValues(t *testing.T) {
	sub, err := ParseJSON([]byte(`{"age": 42, "ok": true, "none": null, "tags": ["a", "b"], "nested": {"x": 1.50}, "name": "Ann"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []Field{
		{"age", "42"},
		{"ok", "true"},
		{"none", ""},
		{"tags", `["a","b"]`},
		{"nested", `{"x":1.50}`},
		{"name", "Ann"},
	}
	if got := sub.Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseJSONRejects(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2]`, `"text"`, `{"a":1}{"b":2}`, `{"a":`} {
		if _, err := ParseJSON([]byte(body)); !errorspkg.Is(err, errorspkg.MalformedInput) {
			t.Fatalf("body %q: expected malformed input, got %v", body, err)
		}
	}
}

func TestParseMultipartFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Ann")
	fw, err := mw.CreateFormFile("resume", "cv.pdf")
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	sub, err := ParseMultipart(buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if sub.Get("resume") != "cv.pdf" || sub.Get("name") != "Ann" {
		t.Fatalf("unexpected fields: %v", sub.Fields())
	}

	if _, err := ParseMultipart(buf.Bytes(), "multipart/form-data"); !errorspkg.Is(err, errorspkg.MalformedInput) {
		t.Fatalf("expected missing boundary error, got %v", err)
	}
}

func TestParseBodyLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("message="+strings.Repeat("x", 64)))

	if _, err := Parse(req, 16); !errorspkg.Is(err, errorspkg.MalformedInput) {
		t.Fatalf("expected body limit error, got %v", err)
	}
}

func TestSubmissionVisibleAndDelete(t *testing.T) {
	sub := FromFields(sampleFields...)
	sub.Set("_hp", "")

	visible := sub.Visible()
	if len(visible) != 3 {
		t.Fatalf("expected 3 visible fields, got %v", visible)
	}

	sub.Delete("email")
	if _, ok := sub.Lookup("email"); ok {
		t.Fatal("email should be deleted")
	}
	if sub.Get("message") != "Hello\nthere & welcome" || sub.Len() != 4 {
		t.Fatalf("unexpected fields after delete: %v", sub.Fields())
	}

	data, err := json.Marshal(FromFields(Field{"b", "1"}, Field{"a", "2"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"b":"1","a":"2"}` {
		t.Fatalf("unexpected json: %s", data)
	}
}
