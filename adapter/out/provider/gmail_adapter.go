// Package provider implements mail provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
	"mailpilot/pkg/apperr"
)

// gmailDetailHeaders are the headers requested when fetching message details.
var gmailDetailHeaders = []string{
	"From", "To", "Cc", "Subject", "Date", "Reply-To", "Message-ID", "References",
}

// GmailAdapter implements out.MailProvider against the Gmail API.
type GmailAdapter struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
}

// GmailConfig holds Gmail OAuth client settings.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
}

// NewGmailAdapter creates a new Gmail adapter.
func NewGmailAdapter(cfg *GmailConfig) *GmailAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailComposeScope,
			gmail.GmailSendScope,
		},
		Endpoint: google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// ProviderType returns the provider type.
func (a *GmailAdapter) ProviderType() domain.Provider {
	return domain.ProviderGmail
}

// Search lists message refs matching the compiled query within the recency
// window. Gmail's after: operator takes epoch seconds.
func (a *GmailAdapter) Search(ctx context.Context, accessToken, query string, since time.Time, maxResults int) ([]domain.MatchedMessage, error) {
	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, apperr.SearchFailed("gmail", err)
	}

	if maxResults <= 0 {
		maxResults = 25
	}

	var resp *gmail.ListMessagesResponse
	cbErr := a.executeWithCircuitBreaker(ctx, "Search", func() error {
		var apiErr error
		resp, apiErr = svc.Users.Messages.List("me").
			Q(gmailQueryWithRecency(query, since)).
			MaxResults(int64(maxResults)).
			Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, apperr.SearchFailed("gmail", cbErr)
	}

	matches := make([]domain.MatchedMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		matches = append(matches, domain.MatchedMessage{
			Provider: domain.ProviderGmail,
			ID:       m.Id,
			ThreadID: m.ThreadId,
		})
	}
	return matches, nil
}

// FetchDetails loads subject, addressing, and the plaintext body of a message.
func (a *GmailAdapter) FetchDetails(ctx context.Context, accessToken string, ref domain.MatchedMessage) (*domain.FetchedMessage, error) {
	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, apperr.FetchFailed("gmail", ref.ID, err)
	}

	var msg *gmail.Message
	cbErr := a.executeWithCircuitBreaker(ctx, "FetchDetails", func() error {
		var apiErr error
		msg, apiErr = svc.Users.Messages.Get("me", ref.ID).Format("full").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, apperr.FetchFailed("gmail", ref.ID, cbErr)
	}

	return a.convertMessage(msg), nil
}

// CreateDraft creates a reply draft in the original message's thread and
// returns the Gmail draft id.
func (a *GmailAdapter) CreateDraft(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) (string, error) {
	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return "", apperr.ActionFailed("gmail", "draft", err)
	}

	raw, err := a.buildReplyRaw(ctx, svc, msg, body)
	if err != nil {
		return "", apperr.ActionFailed("gmail", "draft", err)
	}

	draft := &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
			ThreadId: msg.ThreadID,
		},
	}

	var created *gmail.Draft
	cbErr := a.executeWithCircuitBreaker(ctx, "CreateDraft", func() error {
		var apiErr error
		created, apiErr = svc.Users.Drafts.Create("me", draft).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return "", apperr.ActionFailed("gmail", "draft", cbErr)
	}

	return created.Id, nil
}

// SendReply sends a reply in the original message's thread immediately.
func (a *GmailAdapter) SendReply(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) error {
	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return apperr.ActionFailed("gmail", "auto_reply", err)
	}

	raw, err := a.buildReplyRaw(ctx, svc, msg, body)
	if err != nil {
		return apperr.ActionFailed("gmail", "auto_reply", err)
	}

	gmailMsg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
		ThreadId: msg.ThreadID,
	}

	cbErr := a.executeWithCircuitBreaker(ctx, "SendReply", func() error {
		_, apiErr := svc.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return apperr.ActionFailed("gmail", "auto_reply", cbErr)
	}
	return nil
}

// RefreshToken exchanges the refresh secret for a new token bundle.
func (a *GmailAdapter) RefreshToken(ctx context.Context, refreshToken string) (*out.TokenBundle, error) {
	return refreshWithConfig(ctx, a.config, "gmail", refreshToken)
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (a *GmailAdapter) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return gmail.NewService(ctx, option.WithTokenSource(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
	))
}

// gmailQueryWithRecency ANDs the recency bound onto a compiled query.
func gmailQueryWithRecency(query string, since time.Time) string {
	if since.IsZero() {
		return query
	}
	return fmt.Sprintf("%s after:%d", query, since.Unix())
}

// buildReplyRaw composes an RFC822 reply threaded onto the original message.
// The original's Message-ID is fetched so In-Reply-To/References are correct.
func (a *GmailAdapter) buildReplyRaw(ctx context.Context, svc *gmail.Service, msg *domain.FetchedMessage, body string) (string, error) {
	original, err := svc.Users.Messages.Get("me", msg.ID).
		Format("metadata").
		MetadataHeaders("Message-ID", "References").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get original message: %w", err)
	}

	messageID := getHeader(original.Payload, "Message-ID")
	references := getHeader(original.Payload, "References")
	if references == "" {
		references = messageID
	} else if messageID != "" {
		references = references + " " + messageID
	}

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.ReplyAddress()))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", replySubject(msg.Subject)))
	if messageID != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", messageID))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", references))
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)

	return buf.String(), nil
}

// executeWithCircuitBreaker wraps an API call with circuit breaker protection.
// This prevents cascading failures when the Gmail API is experiencing issues.
func (a *GmailAdapter) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					// Server-side issues should trip the circuit breaker
					return nil, err
				case 400, 401, 403, 404:
					// Client errors must not open the circuit
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		log.Printf("[GmailAdapter] Circuit breaker error for %s: state=%s, err=%v",
			operation, a.cb.State().String(), err)
	}

	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func (a *GmailAdapter) convertMessage(msg *gmail.Message) *domain.FetchedMessage {
	result := &domain.FetchedMessage{
		Provider: domain.ProviderGmail,
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				result.Subject = h.Value
			case "From":
				result.From = h.Value
			case "Reply-To":
				result.ReplyTo = h.Value
			}
		}
		result.BodyText = extractTextBody(msg.Payload)
	}

	if msg.InternalDate > 0 {
		result.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}

	return result
}

// extractTextBody walks the MIME tree for the first text/plain part and
// falls back to the top-level payload body.
func extractTextBody(part *gmail.MessagePart) string {
	if text := findTextPart(part); text != "" {
		return text
	}
	if part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
	}
	return ""
}

func findTextPart(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, p := range part.Parts {
		if text := findTextPart(p); text != "" {
			return text
		}
	}
	return ""
}

func getHeader(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

var _ out.MailProvider = (*GmailAdapter)(nil)
