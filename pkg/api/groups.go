package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (c *Client) Group(ctx context.Context, sess session.Session, groupID string) (model.Group, error) {
	var g model.Group
	if err := c.do(ctx, sess, http.MethodGet, "/api/groups/"+url.PathEscape(groupID), nil, &g); err != nil {
		return model.Group{}, err
	}
	return g, nil
}

func (c *Client) GroupMembers(ctx context.Context, sess session.Session, groupID string) ([]model.UserProfile, error) {
	var members []model.UserProfile
	if err := c.do(ctx, sess, http.MethodGet, "/api/groups/"+url.PathEscape(groupID)+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// GroupNames returns the names of the given groups keyed by id. Groups that
// cannot be read are left out.
func (c *Client) GroupNames(ctx context.Context, sess session.Session, groupIDs []string) map[string]string {
	names := make(map[string]string, len(groupIDs))
	for _, id := range groupIDs {
		g, err := c.Group(ctx, sess, id)
		if err != nil {
			c.log.Warn("group lookup failed", zap.String("group_id", id), zap.Error(err))
			continue
		}
		names[id] = g.Name
	}
	return names
}

// GroupMessages returns the messages of a group, each stamped with groupID.
func (c *Client) GroupMessages(ctx context.Context, sess session.Session, groupID string) ([]model.Message, error) {
	var page model.Page[model.Message]
	if err := c.do(ctx, sess, http.MethodGet, "/api/groups/"+url.PathEscape(groupID)+"/messages", nil, &page); err != nil {
		return nil, err
	}
	for i := range page.Content {
		page.Content[i].GroupID = groupID
	}
	return page.Content, nil
}

// GroupPages fetches the messages of every group in groupIDs. The first
// failure aborts the batch.
func (c *Client) GroupPages(ctx context.Context, sess session.Session, groupIDs []string) (map[string][]model.Message, error) {
	pages := make(map[string][]model.Message, len(groupIDs))
	for _, id := range groupIDs {
		msgs, err := c.GroupMessages(ctx, sess, id)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", id)
		}
		pages[id] = msgs
	}
	return pages, nil
}

func (c *Client) SendGroupMessage(ctx context.Context, sess session.Session, groupID, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, errors.Wrap(ErrInvalidInput, "empty message")
	}
	var m model.Message
	err := c.do(ctx, sess, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/send",
		model.SendRequest{Content: content}, &m)
	if err != nil {
		return model.Message{}, err
	}
	m.GroupID = groupID
	if m.ID == "" {
		m.ID = c.ids.NextString()
	}
	if m.SenderID == "" {
		m.SenderID = sess.UserID
	}
	if m.Content == "" {
		m.Content = content
	}
	if m.CreatedAt.IsZero() {
		now := model.NewTimestamp(time.Now().UTC())
		m.CreatedAt, m.UpdatedAt = now, now
	}
	return m, nil
}

// CreateGroup needs a non-blank name and at least two distinct members.
func (c *Client) CreateGroup(ctx context.Context, sess session.Session, req model.CreateGroupRequest) (model.Group, error) {
	req.Normalize()
	if err := c.check(req); err != nil {
		return model.Group{}, err
	}
	var g model.Group
	if err := c.do(ctx, sess, http.MethodPost, "/api/groups/create", req, &g); err != nil {
		return model.Group{}, err
	}
	return g, nil
}
