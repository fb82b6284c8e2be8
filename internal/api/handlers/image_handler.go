package handlers

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/h2non/filetype"

	"github.com/bskysched/bskysched/internal/store"
)

// maxImageBytes is the upload cap. Bluesky rejects blobs near 1 MB anyway,
// so anything larger is refused before touching storage.
const maxImageBytes = 1 << 20

var imageMimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

type ImageHandler struct {
	store store.Store
}

func NewImageHandler(s store.Store) *ImageHandler {
	return &ImageHandler{store: s}
}

// Upload accepts a multipart image, checks the extension against the actual
// byte signature, and stores it under a generated name. A .txt renamed to
// .jpg fails the signature check.
func (h *ImageHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No image file provided",
		})
	}
	if file.Size > maxImageBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image exceeds the 1 MB limit",
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	mimeType, ok := imageMimeByExt[ext]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only jpeg, png, and gif images are accepted",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}

	kind, err := filetype.Match(data)
	if err != nil || kind.MIME.Value != mimeType {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image content does not match its extension",
		})
	}

	name, err := h.store.UploadImage(c.Context(), data, mimeType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store image",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"name": name})
}

func (h *ImageHandler) Get(c *fiber.Ctx) error {
	name := c.Params("name")
	img, err := h.store.GetImage(c.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Image not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch image",
		})
	}

	c.Set(fiber.HeaderContentType, img.MimeType)
	return c.Send(img.Data)
}
