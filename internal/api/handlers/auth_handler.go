package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/bskysched/bskysched/internal/store"
)

type AuthHandler struct {
	ops      store.OperatorStore
	validate *validator.Validate
}

func NewAuthHandler(ops store.OperatorStore) *AuthHandler {
	return &AuthHandler{ops: ops, validate: validator.New()}
}

type setupRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
}

// Setup creates the single operator account. It works exactly once; once an
// account exists, further calls are refused and the row is immutable.
func (h *AuthHandler) Setup(c *fiber.Ctx) error {
	var req setupRequest
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

	existing, err := h.ops.GetOperator(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check existing credentials",
		})
	}
	if existing != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "API credentials already set",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	if err := h.ops.CreateOperator(c.Context(), req.Username, string(hash)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save credentials",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

// Check reports whether the operator account has been created yet, without
// requiring auth, so a fresh install can discover it needs to run setup.
func (h *AuthHandler) Check(c *fiber.Ctx) error {
	op, err := h.ops.GetOperator(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check credentials",
		})
	}
	if op == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"exists": false})
	}
	return c.JSON(fiber.Map{"exists": true})
}
