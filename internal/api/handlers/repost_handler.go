package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bskysched/bskysched/internal/bluesky"
	"github.com/bskysched/bskysched/internal/models"
	"github.com/bskysched/bskysched/internal/schedule"
	"github.com/bskysched/bskysched/internal/store"
)

type RepostHandler struct {
	store    store.Store
	client   bluesky.Client
	validate *validator.Validate
}

func NewRepostHandler(s store.Store, client bluesky.Client) *RepostHandler {
	return &RepostHandler{store: s, client: client, validate: validator.New()}
}

type createRepostRequest struct {
	URI          string    `json:"uri" validate:"required"`
	CID          string    `json:"cid" validate:"required"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

func (h *RepostHandler) Create(c *fiber.Ctx) error {
	var req createRepostRequest
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

	// No date means a day after the last repost of the same record, or a day
	// from now for the first one.
	if req.ScheduledFor.IsZero() {
		existing, err := h.repostTimesFor(c.Context(), req.URI)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to fetch reposts",
			})
		}
		req.ScheduledFor = schedule.NextRepostAt(time.Now(), existing)
	} else if err := schedule.ValidateFuture(req.ScheduledFor, time.Now()); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	entry, err := h.store.CreateRepost(c.Context(), models.RepostCreation{
		URI:          req.URI,
		CID:          req.CID,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create repost",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// repostTimesFor returns the scheduled instants of every repost of the given
// record, in schedule order, so a new default chains off the last one.
func (h *RepostHandler) repostTimesFor(ctx context.Context, uri string) ([]time.Time, error) {
	all, err := h.store.GetAllReposts(ctx)
	if err != nil {
		return nil, err
	}
	var times []time.Time
	for _, r := range all {
		if r.URI == uri {
			times = append(times, r.ScheduledFor)
		}
	}
	return times, nil
}

func (h *RepostHandler) GetAll(c *fiber.Ctx) error {
	return h.list(c, h.store.GetAllReposts)
}

func (h *RepostHandler) GetScheduled(c *fiber.Ctx) error {
	return h.list(c, h.store.GetScheduledReposts)
}

func (h *RepostHandler) GetPublished(c *fiber.Ctx) error {
	return h.list(c, h.store.GetPublishedReposts)
}

func (h *RepostHandler) GetToSend(c *fiber.Ctx) error {
	return h.list(c, h.store.GetRepostsToSend)
}

func (h *RepostHandler) list(c *fiber.Ctx, fetch func(ctx context.Context) ([]models.RepostEntry, error)) error {
	entries, err := fetch(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reposts",
		})
	}
	if entries == nil {
		entries = []models.RepostEntry{}
	}
	if c.QueryBool("resolve") {
		h.resolvePostData(c.Context(), entries)
	}
	return c.JSON(entries)
}

// resolvePostData fills each entry's parent-record snapshot from the network.
// Resolution is best effort: without credentials, or for entries whose parent
// cannot be fetched, the snapshot is simply left empty.
func (h *RepostHandler) resolvePostData(ctx context.Context, entries []models.RepostEntry) {
	if len(entries) == 0 {
		return
	}
	creds, err := h.store.GetCredentials(ctx)
	if err != nil || creds == nil {
		return
	}
	if err := h.client.Login(ctx, creds.Identifier, creds.Password); err != nil {
		slog.Error("login for repost resolution failed", "error", err)
		return
	}

	for i := range entries {
		post, err := h.client.GetPost(ctx, entries[i].URI)
		if err != nil {
			slog.Error("resolve parent post failed", "uri", entries[i].URI, "error", err)
			continue
		}
		raw, err := json.Marshal(post)
		if err != nil {
			continue
		}
		entries[i].PostData = raw
	}
}

func (h *RepostHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid repost id",
		})
	}

	var up models.RepostUpdate
	if err := c.BodyParser(&up); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
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

	if err := h.store.UpdateRepost(c.Context(), int64(id), up); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Repost not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update repost",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *RepostHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid repost id",
		})
	}

	if err := h.store.DeleteRepost(c.Context(), int64(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Repost not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete repost",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
