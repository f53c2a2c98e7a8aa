package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

// DefaultMaxBytes bounds request bodies when no explicit limit is given.
const DefaultMaxBytes int64 = 1 << 20

// Parse reads the request body and flattens it according to its
// Content-Type. JSON and multipart bodies are recognised by substring; every
// other body is treated as application/x-www-form-urlencoded.
func Parse(r *http.Request, maxBytes int64) (*Submission, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var data []byte
	if r.Body != nil {
		var err error
		data, err = io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "could not read request body")
		}
	}

	if int64(len(data)) > maxBytes {
		return nil, errorspkg.Newf(errorspkg.MalformedInput, "request body exceeds %d bytes", maxBytes)
	}

	contentType := r.Header.Get("Content-Type")
	lower := strings.ToLower(contentType)

	switch {
	case strings.Contains(lower, "application/json"):
		return ParseJSON(data)
	case strings.Contains(lower, "multipart/form-data"):
		return ParseMultipart(data, contentType)
	default:
		return ParseURLEncoded(data)
	}
}

// ParseJSON decodes a JSON object. Scalar values are converted to their
// textual form; nested arrays and objects are kept as compact JSON.
func ParseJSON(data []byte) (*Submission, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid JSON body")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errorspkg.New(errorspkg.MalformedInput, "JSON body must be an object")
	}

	sub := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid JSON body")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errorspkg.New(errorspkg.MalformedInput, "invalid JSON body")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid JSON body")
		}

		value, err := jsonString(raw)
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid JSON body")
		}
		sub.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid JSON body")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errorspkg.New(errorspkg.MalformedInput, "invalid JSON body: trailing data")
	}

	return sub, nil
}

func jsonString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	case 'n':
		return "", nil
	default:
		// numbers and booleans keep their literal text
		return string(raw), nil
	}
}

// ParseMultipart decodes a multipart/form-data body. File parts are reduced
// to their file name.
func ParseMultipart(data []byte, contentType string) (*Submission, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid multipart content type")
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, errorspkg.New(errorspkg.MalformedInput, "multipart body is missing a boundary")
	}

	sub := New()
	reader := multipart.NewReader(bytes.NewReader(data), boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid multipart body")
		}

		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}

		if filename := part.FileName(); filename != "" {
			_, _ = io.Copy(io.Discard, part)
			_ = part.Close()
			sub.Set(name, filename)
			continue
		}

		value, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, "invalid multipart body")
		}
		sub.Set(name, string(value))
	}

	return sub, nil
}

// ParseURLEncoded decodes an application/x-www-form-urlencoded body.
// Repeated keys keep the last value.
func ParseURLEncoded(data []byte) (*Submission, error) {
	sub := New()
	body := string(data)

	for body != "" {
		var pair string
		pair, body, _ = strings.Cut(body, "&")
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, fmt.Sprintf("invalid form encoding for %q", rawKey))
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, errorspkg.Wrap(errorspkg.MalformedInput, err, fmt.Sprintf("invalid form encoding for %q", key))
		}

		sub.Set(key, value)
	}

	return sub, nil
}
