package pages

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ThankYouTemplate is the name of the success page template.
const ThankYouTemplate = "thank_you.html"

//go:embed templates/*.html
var builtin embed.FS

// Manager handles template parsing and rendering. Templates are looked up in
// the override filesystem first and then in the built-in set.
type Manager struct {
	fs        fs.FS
	fallback  fs.FS
	funcs     template.FuncMap
	templates sync.Map // string -> *template.Template
	names     map[string]string
}

// New constructs a Manager for the provided filesystem containing page
// templates. A nil fsys serves only the built-in pages.
func New(fsys fs.FS, funcs template.FuncMap) *Manager {
	if funcs == nil {
		funcs = template.FuncMap{}
	}

	sub, _ := fs.Sub(builtin, "templates")

	return &Manager{
		fs:       fsys,
		fallback: sub,
		funcs:    funcs,
		names:    map[string]string{},
	}
}

// NewThankYou returns a Manager whose thank-you page is read from path when
// it is set, and the built-in page otherwise.
func NewThankYou(path string) (*Manager, error) {
	if path == "" {
		return New(nil, nil), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	m := New(os.DirFS(filepath.Dir(path)), nil)
	m.names[ThankYouTemplate] = filepath.Base(path)
	return m, nil
}

// PageData provides the templating context of the success page.
type PageData struct {
	Title   string
	Message string
	BackURL string
	Extra   map[string]any
}

// ThankYouData returns the default content of the success page.
func ThankYouData() PageData {
	return PageData{
		Title:   "Thank you!",
		Message: "Your submission has been received.",
	}
}

// Render executes the named template with the provided data.
func (m *Manager) Render(name string, data PageData) ([]byte, error) {
	tmpl, err := m.template(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ThankYou renders the success page.
func (m *Manager) ThankYou(data PageData) ([]byte, error) {
	return m.Render(ThankYouTemplate, data)
}

func (m *Manager) source(name string) (string, []byte, error) {
	if m.fs != nil {
		file := name
		if mapped, ok := m.names[name]; ok {
			file = mapped
		}
		src, err := fs.ReadFile(m.fs, file)
		if err == nil {
			return file, src, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
	}

	if m.fallback == nil {
		return "", nil, fs.ErrNotExist
	}
	src, err := fs.ReadFile(m.fallback, name)
	if err != nil {
		return "", nil, err
	}
	return name, src, nil
}

func (m *Manager) template(name string) (*template.Template, error) {
	if m == nil {
		return nil, fs.ErrNotExist
	}

	if v, ok := m.templates.Load(name); ok {
		return v.(*template.Template), nil
	}

	file, src, err := m.source(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(file).
		Funcs(m.funcs).
		Option("missingkey=zero").
		Parse(string(src))
	if err != nil {
		return nil, err
	}

	m.templates.Store(name, tmpl)
	return tmpl, nil
}
