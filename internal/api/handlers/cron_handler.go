package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bskysched/bskysched/internal/pipeline"
)

// CronHandler lets an external scheduler drive publication over HTTP instead
// of a resident timer. One call runs one sweep, synchronously.
type CronHandler struct {
	pipeline *pipeline.Pipeline
}

func NewCronHandler(p *pipeline.Pipeline) *CronHandler {
	return &CronHandler{pipeline: p}
}

func (h *CronHandler) CheckPosts(c *fiber.Ctx) error {
	summary, err := h.pipeline.Sweep(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"summary": summary,
	})
}
