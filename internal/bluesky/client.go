// Package bluesky wraps the indigo XRPC client with the handful of calls the
// publication pipeline needs: session creation, blob upload, posting, and
// reposting.
package bluesky

import (
	"bytes"
	"context"
	"fmt"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	postCollection   = "app.bsky.feed.post"
	repostCollection = "app.bsky.feed.repost"
)

// Client is the network boundary the pipeline talks through. The production
// implementation is XRPCClient; tests substitute fakes.
type Client interface {
	Login(ctx context.Context, identifier, password string) error
	UploadBlob(ctx context.Context, data []byte, mimeType string) (*lexutil.LexBlob, error)
	// Publish creates the post record and returns its network address.
	Publish(ctx context.Context, post *appbsky.FeedPost) (uri, cid string, err error)
	Repost(ctx context.Context, uri, cid string, at time.Time) error
	GetPost(ctx context.Context, uri string) (*appbsky.FeedPost, error)
}

// XRPCClient talks to a Bluesky PDS.
type XRPCClient struct {
	client *xrpc.Client
}

func NewClient(pds string) *XRPCClient {
	return &XRPCClient{
		client: &xrpc.Client{Host: pds},
	}
}

// Login creates a session with an identifier and app password and keeps the
// resulting tokens on the client for subsequent calls.
func (c *XRPCClient) Login(ctx context.Context, identifier, password string) error {
	sess, err := comatproto.ServerCreateSession(ctx, c.client, &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.client.Auth = &xrpc.AuthInfo{
		AccessJwt:  sess.AccessJwt,
		RefreshJwt: sess.RefreshJwt,
		Handle:     sess.Handle,
		Did:        sess.Did,
	}
	return nil
}

func (c *XRPCClient) checkAuth() error {
	if c.client.Auth == nil || c.client.Auth.Did == "" {
		return fmt.Errorf("not authenticated")
	}
	return nil
}

func (c *XRPCClient) UploadBlob(ctx context.Context, data []byte, _ string) (*lexutil.LexBlob, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}
	resp, err := comatproto.RepoUploadBlob(ctx, c.client, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return resp.Blob, nil
}

func (c *XRPCClient) Publish(ctx context.Context, post *appbsky.FeedPost) (string, string, error) {
	if err := c.checkAuth(); err != nil {
		return "", "", err
	}
	res, err := comatproto.RepoCreateRecord(ctx, c.client, &comatproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       c.client.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return "", "", fmt.Errorf("create post record: %w", err)
	}
	return res.Uri, res.Cid, nil
}

func (c *XRPCClient) Repost(ctx context.Context, uri, cid string, at time.Time) error {
	if err := c.checkAuth(); err != nil {
		return err
	}
	record := &appbsky.FeedRepost{
		LexiconTypeID: repostCollection,
		CreatedAt:     at.UTC().Format(time.RFC3339),
		Subject: &comatproto.RepoStrongRef{
			Uri: uri,
			Cid: cid,
		},
	}
	_, err := comatproto.RepoCreateRecord(ctx, c.client, &comatproto.RepoCreateRecord_Input{
		Collection: repostCollection,
		Repo:       c.client.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: record},
	})
	if err != nil {
		return fmt.Errorf("create repost record: %w", err)
	}
	return nil
}

// GetPost fetches a published record by its AT URI. Used to resolve repost
// snapshots when listing; the result is never persisted.
func (c *XRPCClient) GetPost(ctx context.Context, uri string) (*appbsky.FeedPost, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}
	out, err := appbsky.FeedGetPosts(ctx, c.client, []string{uri})
	if err != nil {
		return nil, fmt.Errorf("get posts: %w", err)
	}
	if len(out.Posts) == 0 || out.Posts[0].Record == nil {
		return nil, fmt.Errorf("post %s not found", uri)
	}
	post, ok := out.Posts[0].Record.Val.(*appbsky.FeedPost)
	if !ok {
		return nil, fmt.Errorf("record at %s is not a post", uri)
	}
	return post, nil
}

var _ Client = (*XRPCClient)(nil)
