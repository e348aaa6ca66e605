package provider

import (
	"strings"
	"testing"
	"time"
)

func TestReplySubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"plain subject", "Invoice overdue", "Re: Invoice overdue"},
		{"already prefixed", "Re: Invoice overdue", "Re: Invoice overdue"},
		{"lowercase prefix", "re: invoice overdue", "re: invoice overdue"},
		{"uppercase prefix", "RE: Invoice", "RE: Invoice"},
		{"leading whitespace", "  Hello", "Re: Hello"},
		{"empty subject", "", "Re: "},
		{"re inside subject", "Regarding the invoice", "Re: Regarding the invoice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := replySubject(tt.subject); got != tt.want {
				t.Errorf("replySubject(%q) = %q, want %q", tt.subject, got, tt.want)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><style>body { color: red; }</style></head>` +
		`<body><p>Hello &amp; welcome,</p><p>see the report<br/>attached.</p>` +
		`<script>alert("x")</script></body></html>`

	got := stripHTML(html)

	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("stripHTML left markup behind: %q", got)
	}
	if strings.Contains(got, "color: red") {
		t.Errorf("stripHTML kept style content: %q", got)
	}
	if strings.Contains(got, "alert") {
		t.Errorf("stripHTML kept script content: %q", got)
	}
	if !strings.Contains(got, "Hello & welcome,") {
		t.Errorf("stripHTML lost text content: %q", got)
	}
	if !strings.Contains(got, "see the report\nattached.") {
		t.Errorf("stripHTML did not convert breaks to newlines: %q", got)
	}
}

func TestGmailQueryWithRecency(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := gmailQueryWithRecency(`from:billing@acme.com`, since)
	want := `from:billing@acme.com after:1748779200`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := gmailQueryWithRecency("from:a@b.c", time.Time{}); got != "from:a@b.c" {
		t.Errorf("zero since should leave query untouched, got %q", got)
	}
}

func TestGraphFilterWithRecency(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := graphFilterWithRecency(`from/emailAddress/address eq 'a@b.c'`, since)
	want := `receivedDateTime ge 2025-06-01T12:00:00Z and (from/emailAddress/address eq 'a@b.c')`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := graphFilterWithRecency("", since); got != "receivedDateTime ge 2025-06-01T12:00:00Z" {
		t.Errorf("empty query should produce bare recency filter, got %q", got)
	}
}
