package out

import (
	"context"

	"mailpilot/core/domain"
)

// DraftGenerator produces reply text for a fetched message.
type DraftGenerator interface {
	// GenerateDraft writes a reply body in the category's writing style.
	// It never returns an empty body without an error.
	GenerateDraft(ctx context.Context, msg *domain.FetchedMessage, style domain.WritingStyle) (string, error)
}
