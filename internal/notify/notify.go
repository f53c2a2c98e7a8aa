package notify

import (
	"bytes"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/elchemista/FormRelay/internal/forms"
	"github.com/elchemista/FormRelay/internal/submission"
)

// TimestampLayout formats the composition time shown in notifications.
const TimestampLayout = "Monday, January 2, 2006 at 15:04:05 MST"

const emptyNotice = "(no fields submitted)"

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Composer renders notifications. The zero value uses the wall clock in UTC.
type Composer struct {
	Now func() time.Time
}

// NewComposer returns a Composer using now as its clock.
func NewComposer(now func() time.Time) *Composer {
	return &Composer{Now: now}
}

func (c *Composer) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now()
}

// Compose renders the visible fields of sub for the resolved form.
func (c *Composer) Compose(sub *submission.Submission, form forms.Resolved) (Message, error) {
	at := c.now().Format(TimestampLayout)
	name := form.Name
	if name == "" {
		name = forms.DefaultName
	}

	fields := sub.Visible()

	body, err := renderHTML(name, at, fields)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Subject: form.Subject,
		HTML:    body,
		Text:    renderText(name, at, fields),
	}, nil
}

// Label turns a field name into a display label: camel-case boundaries
// become spaces and the first letter is capitalized.
func Label(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}

	return b.String()
}

func heading(name string) string {
	return "New " + name + " submission"
}

func splitLines(v string) []string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	return strings.Split(v, "\n")
}

func renderText(name, at string, fields []submission.Field) string {
	var b strings.Builder
	b.WriteString(heading(name))
	b.WriteString("\nForm: ")
	b.WriteString(name)
	b.WriteString("\nReceived: ")
	b.WriteString(at)
	b.WriteString("\n\n")

	if len(fields) == 0 {
		b.WriteString(emptyNotice)
		b.WriteString("\n")
		return b.String()
	}

	for _, f := range fields {
		value := strings.ReplaceAll(f.Value, "\r\n", "\n")
		b.WriteString(Label(f.Name))
		if strings.Contains(value, "\n") {
			b.WriteString(":\n")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(value)
		b.WriteString("\n")
	}

	return b.String()
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func appendChildren(parent *html.Node, children ...*html.Node) *html.Node {
	for _, child := range children {
		parent.AppendChild(child)
	}
	return parent
}

const (
	cellStyle  = "padding:6px 12px;border-bottom:1px solid #e5e7eb;vertical-align:top;text-align:left"
	labelStyle = cellStyle + ";font-weight:600;white-space:nowrap"
)

func renderHTML(name, at string, fields []submission.Field) (string, error) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	title := heading(name)

	head := appendChildren(element(atom.Head),
		element(atom.Meta, attr("charset", "utf-8")),
		appendChildren(element(atom.Title), text(title)),
	)

	body := appendChildren(element(atom.Body, attr("style", "font-family:sans-serif;color:#111827")),
		appendChildren(element(atom.H2), text(title)),
		appendChildren(element(atom.P),
			text("Form: "),
			appendChildren(element(atom.Strong), text(name)),
			element(atom.Br),
			text("Received: "+at),
		),
	)

	if len(fields) == 0 {
		body.AppendChild(appendChildren(element(atom.P), text(emptyNotice)))
	} else {
		tbody := element(atom.Tbody)
		for _, f := range fields {
			value := element(atom.Td, attr("style", cellStyle))
			for i, line := range splitLines(f.Value) {
				if i > 0 {
					value.AppendChild(element(atom.Br))
				}
				value.AppendChild(text(line))
			}
			tbody.AppendChild(appendChildren(element(atom.Tr),
				appendChildren(element(atom.Th, attr("style", labelStyle)), text(Label(f.Name))),
				value,
			))
		}
		body.AppendChild(appendChildren(element(atom.Table, attr("style", "border-collapse:collapse")), tbody))
	}

	doc.AppendChild(appendChildren(element(atom.Html, attr("lang", "en")), head, body))

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}

	return buf.String(), nil
}
