package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
	"mailpilot/pkg/apperr"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookAdapter implements out.MailProvider against the Microsoft Graph API.
type OutlookAdapter struct {
	config *oauth2.Config
}

// OutlookConfig holds Microsoft OAuth client settings.
type OutlookConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// NewOutlookAdapter creates a new Outlook adapter.
func NewOutlookAdapter(cfg *OutlookConfig) *OutlookAdapter {
	tenantID := cfg.TenantID
	if tenantID == "" {
		tenantID = "common"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			"https://graph.microsoft.com/Mail.ReadWrite",
			"https://graph.microsoft.com/Mail.Send",
			"offline_access",
		},
		Endpoint: microsoft.AzureADEndpoint(tenantID),
	}

	return &OutlookAdapter{config: config}
}

// ProviderType returns the provider type.
func (a *OutlookAdapter) ProviderType() domain.Provider {
	return domain.ProviderOutlook
}

// Search lists message refs matching the compiled $filter within the recency
// window.
func (a *OutlookAdapter) Search(ctx context.Context, accessToken, query string, since time.Time, maxResults int) ([]domain.MatchedMessage, error) {
	client := a.client(ctx, accessToken)

	if maxResults <= 0 {
		maxResults = 25
	}

	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", maxResults))
	params.Set("$select", "id,conversationId,subject,from")
	params.Set("$filter", graphFilterWithRecency(query, since))

	var resp struct {
		Value []graphMessage `json:"value"`
	}
	if err := a.doGet(ctx, client, graphBaseURL+"/me/messages?"+params.Encode(), &resp); err != nil {
		return nil, apperr.SearchFailed("outlook", err)
	}

	matches := make([]domain.MatchedMessage, 0, len(resp.Value))
	for _, msg := range resp.Value {
		matches = append(matches, domain.MatchedMessage{
			Provider: domain.ProviderOutlook,
			ID:       msg.ID,
			ThreadID: msg.ConversationID,
			From:     msg.From.EmailAddress.Address,
			Subject:  msg.Subject,
		})
	}
	return matches, nil
}

// FetchDetails loads the subject, addressing, and body of a message. HTML
// bodies are reduced to plaintext.
func (a *OutlookAdapter) FetchDetails(ctx context.Context, accessToken string, ref domain.MatchedMessage) (*domain.FetchedMessage, error) {
	client := a.client(ctx, accessToken)

	var msg graphMessage
	endpoint := graphBaseURL + "/me/messages/" + ref.ID +
		"?$select=id,conversationId,subject,from,replyTo,body,receivedDateTime"
	if err := a.doGet(ctx, client, endpoint, &msg); err != nil {
		return nil, apperr.FetchFailed("outlook", ref.ID, err)
	}

	return a.convertMessage(&msg), nil
}

// CreateDraft creates a reply draft via the createReply action so the Graph
// conversation thread is preserved, then patches in the generated body.
func (a *OutlookAdapter) CreateDraft(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) (string, error) {
	client := a.client(ctx, accessToken)

	var created struct {
		ID string `json:"id"`
	}
	if err := a.doPost(ctx, client, graphBaseURL+"/me/messages/"+msg.ID+"/createReply", nil, &created); err != nil {
		return "", apperr.ActionFailed("outlook", "draft", err)
	}

	patch := map[string]interface{}{
		"body": map[string]string{
			"contentType": "text",
			"content":     body,
		},
	}
	if err := a.doPatch(ctx, client, graphBaseURL+"/me/messages/"+created.ID, patch); err != nil {
		return "", apperr.ActionFailed("outlook", "draft", err)
	}

	return created.ID, nil
}

// SendReply sends a reply through the native reply action.
func (a *OutlookAdapter) SendReply(ctx context.Context, accessToken string, msg *domain.FetchedMessage, body string) error {
	client := a.client(ctx, accessToken)

	payload := map[string]string{
		"comment": body,
	}
	if err := a.doPost(ctx, client, graphBaseURL+"/me/messages/"+msg.ID+"/reply", payload, nil); err != nil {
		return apperr.ActionFailed("outlook", "auto_reply", err)
	}
	return nil
}

// RefreshToken exchanges the refresh secret for a new token bundle.
func (a *OutlookAdapter) RefreshToken(ctx context.Context, refreshToken string) (*out.TokenBundle, error) {
	return refreshWithConfig(ctx, a.config, "outlook", refreshToken)
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (a *OutlookAdapter) client(ctx context.Context, accessToken string) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
}

// graphFilterWithRecency ANDs the recency bound onto a compiled $filter.
func graphFilterWithRecency(query string, since time.Time) string {
	if since.IsZero() {
		return query
	}
	recency := fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339))
	if query == "" {
		return recency
	}
	return fmt.Sprintf("%s and (%s)", recency, query)
}

func (a *OutlookAdapter) doGet(ctx context.Context, client *http.Client, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return wrapGraphError(resp.StatusCode, string(body))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (a *OutlookAdapter) doPost(ctx context.Context, client *http.Client, url string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return wrapGraphError(resp.StatusCode, string(respBody))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusAccepted {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (a *OutlookAdapter) doPatch(ctx context.Context, client *http.Client, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return wrapGraphError(resp.StatusCode, string(respBody))
	}
	return nil
}

func wrapGraphError(statusCode int, body string) error {
	switch statusCode {
	case 401:
		return fmt.Errorf("graph: token rejected (HTTP 401)")
	case 403:
		return fmt.Errorf("graph: access denied (HTTP 403)")
	case 404:
		return fmt.Errorf("graph: not found (HTTP 404)")
	case 429:
		return fmt.Errorf("graph: rate limited (HTTP 429)")
	default:
		return fmt.Errorf("graph: HTTP %d: %s", statusCode, body)
	}
}

func (a *OutlookAdapter) convertMessage(msg *graphMessage) *domain.FetchedMessage {
	result := &domain.FetchedMessage{
		Provider: domain.ProviderOutlook,
		ID:       msg.ID,
		ThreadID: msg.ConversationID,
		Subject:  msg.Subject,
		From:     msg.From.EmailAddress.Address,
	}

	if len(msg.ReplyTo) > 0 {
		result.ReplyTo = msg.ReplyTo[0].EmailAddress.Address
	}

	if msg.Body.ContentType == "html" {
		result.BodyText = stripHTML(msg.Body.Content)
	} else {
		result.BodyText = msg.Body.Content
	}

	if msg.ReceivedDateTime != "" {
		result.ReceivedAt, _ = time.Parse(time.RFC3339, msg.ReceivedDateTime)
	}

	return result
}

// Graph API wire types. Converted at this boundary so no raw Graph shape
// leaks into the domain.

type graphMessage struct {
	ID               string           `json:"id"`
	ConversationID   string           `json:"conversationId"`
	Subject          string           `json:"subject"`
	Body             graphBody        `json:"body"`
	From             graphRecipient   `json:"from"`
	ReplyTo          []graphRecipient `json:"replyTo"`
	ReceivedDateTime string           `json:"receivedDateTime"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

var _ out.MailProvider = (*OutlookAdapter)(nil)
