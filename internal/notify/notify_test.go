package notify

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/elchemista/FormRelay/internal/forms"
	"github.com/elchemista/FormRelay/internal/submission"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"firstName":   "First Name",
		"email":       "Email",
		"phoneNumber": "Phone Number",
		"HTMLBody":    "HTML Body",
		"address2Zip": "Address2 Zip",
		"über":        "Über",
		"":            "",
	}

	for in, want := range cases {
		if got := Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComposeFiltersAndFormats(t *testing.T) {
	sub := submission.FromFields(
		submission.Field{Name: "firstName", Value: "Ann <script>"},
		submission.Field{Name: "message", Value: "line one\r\nline two"},
		submission.Field{Name: "_redirect", Value: "https://evil.example"},
		submission.Field{Name: "_hp", Value: ""},
	)

	msg, err := NewComposer(fixedNow).Compose(sub, forms.Resolved{Name: "contact", Subject: "New contact submission"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	if msg.Subject != "New contact submission" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}

	stamp := fixedNow().Format(TimestampLayout)
	for _, want := range []string{"First Name: Ann <script>", "Message:\nline one\nline two", "Form: contact", stamp} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("text body missing %q:\n%s", want, msg.Text)
		}
	}

	for _, body := range []string{msg.Text, msg.HTML} {
		if strings.Contains(body, "evil.example") || strings.Contains(body, "Redirect") {
			t.Fatalf("control fields leaked into body:\n%s", body)
		}
	}

	if strings.Contains(msg.HTML, "<script>") {
		t.Fatalf("html body not escaped:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, stamp) || !strings.Contains(msg.HTML, "First Name") {
		t.Fatalf("html body missing content:\n%s", msg.HTML)
	}

	doc, err := html.Parse(strings.NewReader(msg.HTML))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	var rows, breaks int
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				rows++
			case "td":
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "br" {
						breaks++
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if rows != 2 || breaks != 1 {
		t.Fatalf("expected 2 rows and 1 line break, got %d rows and %d breaks", rows, breaks)
	}
}

func TestComposeDeterministic(t *testing.T) {
	sub := submission.FromFields(submission.Field{Name: "name", Value: "Ann"})
	c := NewComposer(fixedNow)
	form := forms.Resolved{Name: "Quote request"}

	a, _ := c.Compose(sub, form)
	b, _ := c.Compose(sub, form)
	if a != b {
		t.Fatal("compose should be deterministic for a fixed clock")
	}
	if !strings.Contains(a.HTML, "New Quote request submission") {
		t.Fatalf("missing form name in html:\n%s", a.HTML)
	}
}

func TestComposeEmpty(t *testing.T) {
	msg, err := (&Composer{Now: fixedNow}).Compose(submission.New(), forms.Resolved{})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(msg.Text, emptyNotice) || !strings.Contains(msg.HTML, emptyNotice) {
		t.Fatalf("expected empty notice, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "New contact submission") {
		t.Fatalf("expected default form name, got %q", msg.Text)
	}
}
