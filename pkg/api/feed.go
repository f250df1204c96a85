package api

import (
	"context"

	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
)

// ChatsFetcher fetches the first page of direct messages on every tick.
func (c *Client) ChatsFetcher(pageSize int) feed.FetchFunc {
	return func(ctx context.Context, sess session.Session) ([]model.Message, error) {
		return c.AllMessages(ctx, sess, 0, pageSize)
	}
}

// ConversationFetcher fetches one direct conversation on every tick.
func (c *Client) ConversationFetcher(peerID string) feed.FetchFunc {
	return func(ctx context.Context, sess session.Session) ([]model.Message, error) {
		return c.Conversation(ctx, sess, peerID)
	}
}

// GroupFetcher fetches one group conversation on every tick.
func (c *Client) GroupFetcher(groupID string) feed.FetchFunc {
	return func(ctx context.Context, sess session.Session) ([]model.Message, error) {
		return c.GroupMessages(ctx, sess, groupID)
	}
}

// GroupsFetcher fetches every listed group on every tick; the poller keys the
// resulting feed by group id.
func (c *Client) GroupsFetcher(groupIDs []string) feed.FetchFunc {
	return func(ctx context.Context, sess session.Session) ([]model.Message, error) {
		pages, err := c.GroupPages(ctx, sess, groupIDs)
		if err != nil {
			return nil, err
		}
		var all []model.Message
		for _, id := range groupIDs {
			all = append(all, pages[id]...)
		}
		return all, nil
	}
}

// UserLookup resolves display names with the given session.
func (c *Client) UserLookup(sess session.Session) feed.LookupFunc {
	return func(ctx context.Context, id string) (model.UserProfile, error) {
		return c.User(ctx, sess, id)
	}
}
