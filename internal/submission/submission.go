package submission

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Reserved control fields. Any field starting with an underscore is excluded
// from notifications.
const (
	FieldForm     = "_form"
	FieldRedirect = "_redirect"
	FieldHoneypot = "_hp"
)

// Field is a single named value.
type Field struct {
	Name  string
	Value string
}

// Submission is the flat set of fields extracted from one request. Fields
// keep the position of their first occurrence and the value of their last.
type Submission struct {
	fields []Field
	index  map[string]int
}

// New returns an empty Submission.
func New() *Submission {
	return &Submission{index: make(map[string]int)}
}

// FromFields builds a Submission from fields in order.
func FromFields(fields ...Field) *Submission {
	s := New()
	for _, f := range fields {
		s.Set(f.Name, f.Value)
	}
	return s
}

// Set stores value under name.
func (s *Submission) Set(name, value string) {
	if i, ok := s.index[name]; ok {
		s.fields[i].Value = value
		return
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name, or "".
func (s *Submission) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// Lookup returns the value stored under name and whether it was present.
func (s *Submission) Lookup(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.fields[i].Value, true
}

// Delete removes name from the submission.
func (s *Submission) Delete(name string) {
	i, ok := s.index[name]
	if !ok {
		return
	}
	s.fields = append(s.fields[:i], s.fields[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.fields); j++ {
		s.index[s.fields[j].Name] = j
	}
}

// Len returns the number of fields.
func (s *Submission) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Fields returns a copy of all fields in order.
func (s *Submission) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Visible returns the fields that are not control fields.
func (s *Submission) Visible() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !IsControl(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// Map returns the fields as a plain map.
func (s *Submission) Map() map[string]string {
	out := make(map[string]string, s.Len())
	for _, f := range s.Fields() {
		out[f.Name] = f.Value
	}
	return out
}

// MarshalJSON encodes the submission as a JSON object in field order.
func (s *Submission) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsControl reports whether name is a reserved control field.
func IsControl(name string) bool {
	return strings.HasPrefix(name, "_")
}
