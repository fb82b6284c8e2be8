// Package pipeline publishes due posts and reposts. One call to Sweep is one
// full pass over the due-set: it logs in once, processes each item
// independently, and moves every touched item to a terminal state, so
// re-running a sweep never reprocesses finished work.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	appbsky "github.com/bluesky-social/indigo/api/bsky"

	"github.com/bskysched/bskysched/internal/bluesky"
	"github.com/bskysched/bskysched/internal/models"
	"github.com/bskysched/bskysched/internal/store"
)

type Pipeline struct {
	store  store.Store
	client bluesky.Client
}

func New(s store.Store, c bluesky.Client) *Pipeline {
	return &Pipeline{store: s, client: c}
}

// SweepSummary reports what one sweep attempted.
type SweepSummary struct {
	PostsTried       int `json:"posts_tried"`
	RepostsScheduled int `json:"reposts_scheduled"`
	RepostsTried     int `json:"reposts_tried"`
}

// Sweep runs one pass. With no stored credentials it is a silent no-op tick.
// A failed login or an unreachable store aborts the sweep; a failure on an
// individual item marks that item failed and moves on.
func (p *Pipeline) Sweep(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary

	creds, err := p.store.GetCredentials(ctx)
	if err != nil {
		return summary, err
	}
	if creds == nil {
		slog.Debug("no network credentials, skipping sweep")
		return summary, nil
	}

	posts, err := p.store.GetPostsToSend(ctx)
	if err != nil {
		return summary, err
	}
	reposts, err := p.store.GetRepostsToSend(ctx)
	if err != nil {
		return summary, err
	}
	if len(posts) == 0 && len(reposts) == 0 {
		return summary, nil
	}

	if err := p.client.Login(ctx, creds.Identifier, creds.Password); err != nil {
		return summary, fmt.Errorf("bluesky login: %w", err)
	}

	for _, post := range posts {
		summary.PostsTried++
		scheduled, err := p.publishPost(ctx, post)
		if err != nil {
			slog.Error("publish failed", "post", post.ID, "error", err)
			p.markPostFailed(ctx, post.ID, err)
			continue
		}
		summary.RepostsScheduled += scheduled
	}

	for _, repost := range reposts {
		summary.RepostsTried++
		if err := p.client.Repost(ctx, repost.URI, repost.CID, repost.ScheduledFor); err != nil {
			slog.Error("repost failed", "repost", repost.ID, "error", err)
			p.setRepostStatus(ctx, repost.ID, models.StatusFailed, err.Error())
			continue
		}
		p.setRepostStatus(ctx, repost.ID, models.StatusPublished, "")
	}

	return summary, nil
}

// publishPost resolves the post's embed, submits the record, transitions the
// post to published, and schedules its reposts against the returned address.
// Returns how many reposts it scheduled.
func (p *Pipeline) publishPost(ctx context.Context, post models.ScheduledPost) (int, error) {
	record, err := buildRecord(post.Data, post.ScheduledFor)
	if err != nil {
		return 0, err
	}

	embed, err := p.resolveEmbed(ctx, post.Data.Embed)
	if err != nil {
		return 0, err
	}
	record.Embed = embed

	uri, cid, err := p.client.Publish(ctx, record)
	if err != nil {
		return 0, err
	}

	status := models.StatusPublished
	if err := p.store.UpdatePost(ctx, post.ID, models.PostUpdate{Status: &status}); err != nil {
		// The record is live but the row is still pending, so the next sweep
		// will submit it again. At-least-once delivery.
		slog.Error("record published but status update failed", "post", post.ID, "error", err)
		return 0, nil
	}

	scheduled := 0
	for _, at := range post.RepostDates {
		if _, err := p.store.CreateRepost(ctx, models.RepostCreation{
			URI:          uri,
			CID:          cid,
			ScheduledFor: at,
		}); err != nil {
			slog.Error("schedule repost failed", "post", post.ID, "error", err)
			continue
		}
		scheduled++
	}
	return scheduled, nil
}

// resolveEmbed turns the stored embed into its wire form. Image embeds are
// fetched from the store, probed for dimensions, and uploaded as network
// blobs; link cards pass through.
func (p *Pipeline) resolveEmbed(ctx context.Context, embed *models.Embed) (*appbsky.FeedPost_Embed, error) {
	if embed == nil {
		return nil, nil
	}
	if embed.External != nil {
		return externalEmbed(embed.External)
	}

	images := embed.Images
	if len(images) > models.MaxEmbedImages {
		images = images[:models.MaxEmbedImages]
	}

	var out []*appbsky.EmbedImages_Image
	for _, img := range images {
		stored, err := p.store.GetImage(ctx, img.Name)
		if err != nil {
			return nil, fmt.Errorf("fetch image %s: %w", img.Name, err)
		}

		var aspect *appbsky.EmbedDefs_AspectRatio
		if width, height, err := imageDims(stored.Data); err == nil {
			aspect = &appbsky.EmbedDefs_AspectRatio{Width: width, Height: height}
		}

		blob, err := p.client.UploadBlob(ctx, stored.Data, stored.MimeType)
		if err != nil {
			return nil, fmt.Errorf("upload image %s: %w", img.Name, err)
		}

		out = append(out, &appbsky.EmbedImages_Image{
			Alt:         img.Alt,
			Image:       blob,
			AspectRatio: aspect,
		})
	}

	return &appbsky.FeedPost_Embed{
		EmbedImages: &appbsky.EmbedImages{Images: out},
	}, nil
}

func (p *Pipeline) markPostFailed(ctx context.Context, id int64, cause error) {
	status := models.StatusFailed
	msg := cause.Error()
	if err := p.store.UpdatePost(ctx, id, models.PostUpdate{Status: &status, Error: &msg}); err != nil {
		slog.Error("record failure status", "post", id, "error", err)
	}
}

func (p *Pipeline) setRepostStatus(ctx context.Context, id int64, status, msg string) {
	up := models.RepostUpdate{Status: &status}
	if msg != "" {
		up.Error = &msg
	}
	if err := p.store.UpdateRepost(ctx, id, up); err != nil {
		slog.Error("record repost status", "repost", id, "error", err)
	}
}
