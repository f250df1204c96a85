package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/pkg/errors"
)

// AllMessages returns one page of the signed-in user's direct messages.
func (c *Client) AllMessages(ctx context.Context, sess session.Session, page, size int) ([]model.Message, error) {
	var msgs []model.Message
	path := fmt.Sprintf("/api/messages/all?page=%d&size=%d", page, size)
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) Conversation(ctx context.Context, sess session.Session, peerID string) ([]model.Message, error) {
	var page model.Page[model.Message]
	if err := c.do(ctx, sess, http.MethodGet, "/api/messages/conversation/"+url.PathEscape(peerID), nil, &page); err != nil {
		return nil, err
	}
	return page.Content, nil
}

// SendMessage posts content to peerID. When the server omits fields of the
// stored message, the returned message is completed locally so it can be
// shown right away.
func (c *Client) SendMessage(ctx context.Context, sess session.Session, peerID, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, errors.Wrap(ErrInvalidInput, "empty message")
	}
	var m model.Message
	err := c.do(ctx, sess, http.MethodPost, "/api/messages/send/"+url.PathEscape(peerID),
		model.SendRequest{Content: content}, &m)
	if err != nil {
		return model.Message{}, err
	}

	if m.ID == "" {
		m.ID = c.ids.NextString()
	}
	if m.Content == "" {
		m.Content = content
	}
	if m.SenderID == "" {
		m.SenderID = sess.UserID
	}
	if m.ReceiverID == "" {
		m.ReceiverID = peerID
	}
	if m.Status == "" {
		m.Status = model.StatusSent
	}
	if m.CreatedAt.IsZero() {
		now := model.NewTimestamp(time.Now().UTC())
		m.CreatedAt, m.UpdatedAt = now, now
	}
	return m, nil
}
