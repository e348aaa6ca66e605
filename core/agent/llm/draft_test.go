package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mailpilot/core/domain"
	"mailpilot/pkg/apperr"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeCompleter) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.reply, f.err
}

func testMessage() *domain.FetchedMessage {
	return &domain.FetchedMessage{
		Provider: domain.ProviderGmail,
		ID:       "m1",
		Subject:  "Shipping delay",
		From:     "customer@example.com",
		BodyText: "My order has not arrived yet.",
	}
}

func TestGenerateDraft(t *testing.T) {
	fake := &fakeCompleter{reply: "  Thanks for reaching out, we are on it.\n"}
	g := &DraftGenerator{client: fake}

	got, err := g.GenerateDraft(context.Background(), testMessage(), domain.StyleEmpathetic)
	if err != nil {
		t.Fatalf("GenerateDraft() error = %v", err)
	}
	if got != "Thanks for reaching out, we are on it." {
		t.Errorf("reply not trimmed: %q", got)
	}
	if !strings.Contains(fake.lastSystem, "understanding, considerate") {
		t.Errorf("empathetic tone instruction missing from system prompt: %q", fake.lastSystem)
	}
	if !strings.Contains(fake.lastUser, "Shipping delay") || !strings.Contains(fake.lastUser, "customer@example.com") {
		t.Errorf("message context missing from user prompt: %q", fake.lastUser)
	}
}

func TestGenerateDraftUnknownStyleFallsBack(t *testing.T) {
	fake := &fakeCompleter{reply: "ok"}
	g := &DraftGenerator{client: fake}

	if _, err := g.GenerateDraft(context.Background(), testMessage(), domain.WritingStyle("sarcastic")); err != nil {
		t.Fatalf("GenerateDraft() error = %v", err)
	}
	if !strings.Contains(fake.lastSystem, "businesslike") {
		t.Errorf("unknown style should fall back to professional tone: %q", fake.lastSystem)
	}
}

func TestGenerateDraftErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCompleter
	}{
		{"api error", &fakeCompleter{err: errors.New("rate limited")}},
		{"empty reply", &fakeCompleter{reply: "   \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &DraftGenerator{client: tt.fake}
			_, err := g.GenerateDraft(context.Background(), testMessage(), domain.StyleDirect)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperr.IsCode(err, apperr.CodeDraftGenFailed) {
				t.Errorf("error code = %v, want DRAFT_GENERATION_FAILED", err)
			}
		})
	}
}

func TestGenerateDraftTruncatesLongBody(t *testing.T) {
	fake := &fakeCompleter{reply: "ok"}
	g := &DraftGenerator{client: fake}

	msg := testMessage()
	msg.BodyText = strings.Repeat("x", 5000)

	if _, err := g.GenerateDraft(context.Background(), msg, domain.StyleDirect); err != nil {
		t.Fatalf("GenerateDraft() error = %v", err)
	}
	if len(fake.lastUser) > 2500 {
		t.Errorf("long body not truncated before prompting, prompt length %d", len(fake.lastUser))
	}
}
