package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"mailpilot/core/service/process"
	"mailpilot/pkg/apperr"
)

// ProcessRunner triggers one processing run. Implemented by the orchestrator.
type ProcessRunner interface {
	Run(ctx context.Context, req process.RunRequest) (*process.RunSummary, error)
}

// ProcessHandler exposes the manual processing trigger.
type ProcessHandler struct {
	runner ProcessRunner
}

func NewProcessHandler(runner ProcessRunner) *ProcessHandler {
	return &ProcessHandler{runner: runner}
}

func (h *ProcessHandler) Register(api fiber.Router) {
	api.Post("/process", h.Trigger)
}

type triggerRequest struct {
	CategoryID *int64 `json:"category_id"`
}

// Trigger runs processing for the authenticated user, optionally narrowed to
// one category. The run is synchronous; the response carries the summary.
func (h *ProcessHandler) Trigger(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return AppErrorResponse(c, apperr.Unauthorized(""))
	}

	var req triggerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return AppErrorResponse(c, apperr.BadRequest("invalid request body"))
		}
	}

	summary, err := h.runner.Run(c.Context(), process.RunRequest{
		UserID:     userID,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return SuccessResponse(c, summary)
}
