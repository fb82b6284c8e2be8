package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/ipfs/go-cid"

	"github.com/bskysched/bskysched/internal/models"
)

// buildRecord converts authored content into the wire record. CreatedAt is
// the originally scheduled instant, so a record published by a late sweep
// still carries the time the author picked.
func buildRecord(data models.PostData, scheduledFor time.Time) (*appbsky.FeedPost, error) {
	post := &appbsky.FeedPost{
		LexiconTypeID: "app.bsky.feed.post",
		Text:          data.Text,
		CreatedAt:     scheduledFor.UTC().Format(time.RFC3339),
	}

	if len(data.Facets) > 0 {
		if err := json.Unmarshal(data.Facets, &post.Facets); err != nil {
			return nil, fmt.Errorf("decode facets: %w", err)
		}
	}

	if data.Labels != "" {
		post.Labels = &appbsky.FeedPost_Labels{
			LabelDefs_SelfLabels: &comatproto.LabelDefs_SelfLabels{
				LexiconTypeID: "com.atproto.label.defs#selfLabels",
				Values: []*comatproto.LabelDefs_SelfLabel{
					{Val: string(data.Labels)},
				},
			},
		}
	}

	return post, nil
}

// externalEmbed builds the link-card embed. The card and its optional
// thumbnail blob were resolved at authoring time and are used as-is.
func externalEmbed(e *models.ExternalEmbed) (*appbsky.FeedPost_Embed, error) {
	ext := &appbsky.EmbedExternal_External{
		Uri:         e.URI,
		Title:       e.Title,
		Description: e.Description,
	}
	if e.Thumb != nil {
		thumb, err := lexBlobFromRef(e.Thumb)
		if err != nil {
			return nil, fmt.Errorf("card thumbnail: %w", err)
		}
		ext.Thumb = thumb
	}
	return &appbsky.FeedPost_Embed{
		EmbedExternal: &appbsky.EmbedExternal{External: ext},
	}, nil
}

func lexBlobFromRef(ref *models.BlobRef) (*lexutil.LexBlob, error) {
	c, err := cid.Parse(ref.Ref.Link)
	if err != nil {
		return nil, fmt.Errorf("parse blob cid %q: %w", ref.Ref.Link, err)
	}
	return &lexutil.LexBlob{
		Ref:      lexutil.LexLink(c),
		MimeType: ref.MimeType,
		Size:     ref.Size,
	}, nil
}

// imageDims probes pixel dimensions without decoding the full image.
func imageDims(data []byte) (width, height int64, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return int64(cfg.Width), int64(cfg.Height), nil
}
