package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// MaxEmbedImages is the image cap Bluesky enforces per post.
const MaxEmbedImages = 4

// MaxPostLength is the character limit Bluesky enforces on post text.
const MaxPostLength = 300

// Label is a self-applied content warning from the closed set Bluesky defines.
type Label string

const (
	LabelNudity       Label = "nudity"
	LabelSexual       Label = "sexual"
	LabelPorn         Label = "porn"
	LabelGraphicMedia Label = "graphic-media"
)

func (l Label) Valid() bool {
	switch l {
	case "", LabelNudity, LabelSexual, LabelPorn, LabelGraphicMedia:
		return true
	}
	return false
}

// BlobLink is the $link wrapper around a blob CID.
type BlobLink struct {
	Link string `json:"$link"`
}

// BlobRef is a network blob reference as returned by the blob upload call,
// stored verbatim so it can be replayed into a record later.
type BlobRef struct {
	Type     string   `json:"$type"`
	Ref      BlobLink `json:"ref"`
	MimeType string   `json:"mimeType"`
	Size     int64    `json:"size"`
}

// ImageEmbed points at a stored image by its storage name. The bytes are
// resolved and uploaded as a network blob at publish time, not before.
type ImageEmbed struct {
	Name string `json:"name"`
	Alt  string `json:"alt,omitempty"`
}

// ExternalEmbed is a link card. Its fields, including the optional thumbnail
// blob, are resolved at authoring time and used as-is when publishing.
type ExternalEmbed struct {
	URI         string   `json:"uri"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumb       *BlobRef `json:"thumb,omitempty"`
}

// Embed is a two-variant union: a post carries up to four images or exactly
// one link card, never both.
type Embed struct {
	Images   []ImageEmbed   `json:"images,omitempty"`
	External *ExternalEmbed `json:"external,omitempty"`
}

func (e *Embed) Validate() error {
	if e == nil {
		return nil
	}
	if len(e.Images) > 0 && e.External != nil {
		return errors.New("embed cannot carry both images and a link card")
	}
	if len(e.Images) == 0 && e.External == nil {
		return errors.New("embed must carry images or a link card")
	}
	if len(e.Images) > MaxEmbedImages {
		return fmt.Errorf("embed carries %d images, maximum is %d", len(e.Images), MaxEmbedImages)
	}
	return nil
}

// PostData is the authored content payload. Facets are produced upstream and
// passed through to the wire record untouched.
type PostData struct {
	Text   string          `json:"text"`
	Facets json.RawMessage `json:"facets,omitempty"`
	Labels Label           `json:"labels,omitempty"`
	Embed  *Embed          `json:"embed,omitempty"`
}

type ScheduledPost struct {
	ID                int64       `json:"id"`
	Data              PostData    `json:"data"`
	ScheduledFor      time.Time   `json:"scheduledFor"`
	ScheduledTimezone string      `json:"scheduledTimezone,omitempty"`
	RepostDates       []time.Time `json:"repostDates,omitempty"`
	Status            string      `json:"status"`
	Error             string      `json:"error,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// PostCreation is what the authoring surface submits. The store assigns the
// id, the pending status, and createdAt.
type PostCreation struct {
	Data              PostData    `json:"data"`
	ScheduledFor      time.Time   `json:"scheduledFor"`
	ScheduledTimezone string      `json:"scheduledTimezone,omitempty"`
	RepostDates       []time.Time `json:"repostDates,omitempty"`
}

// PostUpdate is a partial update; nil fields are left untouched.
type PostUpdate struct {
	Data              *PostData    `json:"data,omitempty"`
	ScheduledFor      *time.Time   `json:"scheduledFor,omitempty"`
	ScheduledTimezone *string      `json:"scheduledTimezone,omitempty"`
	RepostDates       *[]time.Time `json:"repostDates,omitempty"`
	Status            *string      `json:"status,omitempty"`
	Error             *string      `json:"error,omitempty"`
}
