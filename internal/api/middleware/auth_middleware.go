package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/bskysched/bskysched/internal/store"
)

// AuthMiddleware guards the API with two independent schemes: operator Basic
// auth for the store surface, and a shared-secret bearer token for the cron
// trigger. The two must never be confused with the Bluesky credential row.
type AuthMiddleware struct {
	ops        store.OperatorStore
	cronSecret string
}

func NewAuthMiddleware(ops store.OperatorStore, cronSecret string) *AuthMiddleware {
	return &AuthMiddleware{ops: ops, cronSecret: cronSecret}
}

func (m *AuthMiddleware) RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, password, ok := parseBasicAuth(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		op, err := m.ops.GetOperator(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to verify credentials",
			})
		}
		if op == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "No API credentials set",
			})
		}

		// Both checks always run so a response can't reveal which one failed.
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(op.Username)) == 1
		passOK := bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(password)) == nil
		if !userOK || !passOK {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid credentials",
			})
		}

		return c.Next()
	}
}

func (m *AuthMiddleware) RequireCronSecret() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if m.cronSecret == "" || auth != "Bearer "+m.cronSecret {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

func parseBasicAuth(header string) (username, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(decoded), ":")
	return username, password, ok
}
