package provider

import (
	"testing"
)

func TestConvertGraphMessage(t *testing.T) {
	a := NewOutlookAdapter(&OutlookConfig{ClientID: "id", ClientSecret: "secret"})

	msg := &graphMessage{
		ID:             "m1",
		ConversationID: "c1",
		Subject:        "Contract draft",
		Body: graphBody{
			ContentType: "html",
			Content:     "<div>Please review<br/>by Friday.</div>",
		},
		From: graphRecipient{
			EmailAddress: graphEmailAddress{Name: "Jo", Address: "jo@partner.io"},
		},
		ReceivedDateTime: "2025-06-01T12:00:00Z",
	}

	got := a.convertMessage(msg)

	if got.ID != "m1" || got.ThreadID != "c1" {
		t.Errorf("ids not carried over: %+v", got)
	}
	if got.From != "jo@partner.io" {
		t.Errorf("From = %q", got.From)
	}
	if got.BodyText != "Please review\nby Friday." {
		t.Errorf("html body not reduced to text: %q", got.BodyText)
	}
	if got.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not parsed")
	}
	// no Reply-To on the wire means replies go back to From
	if got.ReplyAddress() != "jo@partner.io" {
		t.Errorf("ReplyAddress() = %q", got.ReplyAddress())
	}
}

func TestConvertGraphMessageReplyTo(t *testing.T) {
	a := NewOutlookAdapter(&OutlookConfig{})

	msg := &graphMessage{
		ID:   "m2",
		Body: graphBody{ContentType: "text", Content: "plain body"},
		From: graphRecipient{
			EmailAddress: graphEmailAddress{Address: "noreply@partner.io"},
		},
		ReplyTo: []graphRecipient{
			{EmailAddress: graphEmailAddress{Address: "support@partner.io"}},
		},
	}

	got := a.convertMessage(msg)

	if got.BodyText != "plain body" {
		t.Errorf("text body altered: %q", got.BodyText)
	}
	if got.ReplyAddress() != "support@partner.io" {
		t.Errorf("ReplyAddress() = %q, want replyTo recipient", got.ReplyAddress())
	}
}
