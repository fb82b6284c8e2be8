package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bskysched/bskysched/internal/bluesky"
	"github.com/bskysched/bskysched/internal/models"
	"github.com/bskysched/bskysched/internal/schedule"
	"github.com/bskysched/bskysched/internal/store"
)

type PostHandler struct {
	store    store.Store
	validate *validator.Validate
}

func NewPostHandler(s store.Store) *PostHandler {
	return &PostHandler{store: s, validate: validator.New()}
}

type createPostRequest struct {
	Data              models.PostData `json:"data"`
	ScheduledFor      time.Time       `json:"scheduledFor" validate:"required"`
	ScheduledTimezone string          `json:"scheduledTimezone" validate:"omitempty,timezone"`
	RepostDates       []time.Time     `json:"repostDates"`
}

func validatePostData(data *models.PostData) error {
	if data.Text == "" {
		return errors.New("post text is required")
	}
	if utf8.RuneCountInString(data.Text) > models.MaxPostLength {
		return fmt.Errorf("post text exceeds %d characters", models.MaxPostLength)
	}
	if !data.Labels.Valid() {
		return fmt.Errorf("unknown content label %q", data.Labels)
	}
	return data.Embed.Validate()
}

func validStatus(status string) bool {
	switch status {
	case models.StatusPending, models.StatusPublished, models.StatusFailed:
		return true
	}
	return false
}

func (h *PostHandler) Create(c *fiber.Ctx) error {
	var req createPostRequest
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
	if err := validatePostData(&req.Data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	now := time.Now()
	if err := schedule.ValidateFuture(req.ScheduledFor, now); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	for _, at := range req.RepostDates {
		if err := schedule.ValidateFuture(at, now); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("repost date: %s", err),
			})
		}
	}

	// When the authoring surface did not supply facets, detect links and
	// hashtags here so the published record gets them regardless.
	if len(req.Data.Facets) == 0 {
		if facets := bluesky.DetectFacets(req.Data.Text); len(facets) > 0 {
			raw, err := json.Marshal(facets)
			if err == nil {
				req.Data.Facets = raw
			}
		}
	}

	post, err := h.store.CreatePost(c.Context(), models.PostCreation{
		Data:              req.Data,
		ScheduledFor:      req.ScheduledFor,
		ScheduledTimezone: req.ScheduledTimezone,
		RepostDates:       req.RepostDates,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create post",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) GetAll(c *fiber.Ctx) error {
	return h.list(c, h.store.GetAllPosts)
}

func (h *PostHandler) GetScheduled(c *fiber.Ctx) error {
	return h.list(c, h.store.GetScheduledPosts)
}

func (h *PostHandler) GetPublished(c *fiber.Ctx) error {
	return h.list(c, h.store.GetPublishedPosts)
}

func (h *PostHandler) GetToSend(c *fiber.Ctx) error {
	return h.list(c, h.store.GetPostsToSend)
}

// GetPending returns every post still awaiting publication: those scheduled
// for later and those already due but not yet swept.
func (h *PostHandler) GetPending(c *fiber.Ctx) error {
	scheduled, err := h.store.GetScheduledPosts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch posts",
		})
	}
	due, err := h.store.GetPostsToSend(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch posts",
		})
	}

	pending := make([]models.ScheduledPost, 0, len(scheduled)+len(due))
	pending = append(pending, due...)
	pending = append(pending, scheduled...)
	return c.JSON(pending)
}

func (h *PostHandler) list(c *fiber.Ctx, fetch func(ctx context.Context) ([]models.ScheduledPost, error)) error {
	posts, err := fetch(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch posts",
		})
	}
	if posts == nil {
		posts = []models.ScheduledPost{}
	}
	return c.JSON(posts)
}

func (h *PostHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	var up models.PostUpdate
	if err := c.BodyParser(&up); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if up.Data != nil {
		if err := validatePostData(up.Data); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}
	if up.Status != nil && !validStatus(*up.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown status %q", *up.Status),
		})
	}
	if up.ScheduledFor != nil {
		if err := schedule.ValidateFuture(*up.ScheduledFor, time.Now()); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	if err := h.store.UpdatePost(c.Context(), int64(id), up); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update post",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *PostHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	if err := h.store.DeletePost(c.Context(), int64(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete post",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
