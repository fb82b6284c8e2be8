package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bskysched/bskysched/internal/models"
	"github.com/bskysched/bskysched/internal/store"
)

type CredentialsHandler struct {
	store    store.Store
	validate *validator.Validate
}

func NewCredentialsHandler(s store.Store) *CredentialsHandler {
	return &CredentialsHandler{store: s, validate: validator.New()}
}

type setCredentialsRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func (h *CredentialsHandler) Get(c *fiber.Ctx) error {
	creds, err := h.store.GetCredentials(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch credentials",
		})
	}
	if creds == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No credentials set",
		})
	}
	return c.JSON(creds)
}

// Set replaces the credential row wholesale. Partial updates are not a thing;
// the caller always sends both the identifier and the app password.
func (h *CredentialsHandler) Set(c *fiber.Ctx) error {
	var req setCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.store.SetCredentials(c.Context(), models.Credentials{
		Identifier: req.Identifier,
		Password:   req.Password,
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save credentials",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *CredentialsHandler) Delete(c *fiber.Ctx) error {
	if err := h.store.DeleteCredentials(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete credentials",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
