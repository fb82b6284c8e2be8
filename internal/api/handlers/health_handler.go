package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	pinger Pinger
}

func NewHealthHandler(p Pinger) *HealthHandler {
	return &HealthHandler{pinger: p}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
