package llm

import (
	"context"
	"fmt"
	"strings"

	"mailpilot/core/domain"
	"mailpilot/pkg/apperr"
)

// completer is the slice of Client used by the generator, split out so tests
// can substitute a fake.
type completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// DraftGenerator produces reply bodies in a category's writing style.
type DraftGenerator struct {
	client completer
}

func NewDraftGenerator(client *Client) *DraftGenerator {
	return &DraftGenerator{client: client}
}

// toneInstruction maps each writing style to the system-prompt directive.
var toneInstruction = map[domain.WritingStyle]string{
	domain.StyleProfessional: "Write in a polished, businesslike tone. Be courteous and precise.",
	domain.StyleFriendly:     "Write in a warm, approachable tone, as to a colleague you know well.",
	domain.StyleConcierge:    "Write in an attentive, service-oriented tone. Anticipate what the sender needs and offer it.",
	domain.StyleDirect:       "Write in a brief, to-the-point tone. No pleasantries beyond a short greeting.",
	domain.StyleEmpathetic:   "Write in an understanding, considerate tone. Acknowledge the sender's situation first.",
}

// GenerateDraft writes a reply body for the message. A reply is plain text,
// no subject line or headers.
func (g *DraftGenerator) GenerateDraft(ctx context.Context, msg *domain.FetchedMessage, style domain.WritingStyle) (string, error) {
	tone, ok := toneInstruction[style]
	if !ok {
		tone = toneInstruction[domain.StyleProfessional]
	}

	systemPrompt := fmt.Sprintf(`You are an email reply assistant. Generate a reply to the email below.

%s

Write a natural, contextually appropriate reply. Do not include a subject line, email headers, or a signature block.
Only output the reply body.`, tone)

	userPrompt := fmt.Sprintf("Original email from %s:\nSubject: %s\n\n%s\n\nGenerate a reply:",
		msg.From, msg.Subject, truncateBody(msg.BodyText, 2000))

	reply, err := g.client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", apperr.DraftGenerationFailed(err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperr.DraftGenerationFailed(fmt.Errorf("model returned an empty reply"))
	}
	return reply, nil
}
