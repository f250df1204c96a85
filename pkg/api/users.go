package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
)

func (c *Client) User(ctx context.Context, sess session.Session, id string) (model.UserProfile, error) {
	var u model.UserProfile
	if err := c.do(ctx, sess, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &u); err != nil {
		return model.UserProfile{}, err
	}
	return u, nil
}

func (c *Client) Users(ctx context.Context, sess session.Session) ([]model.UserProfile, error) {
	var users []model.UserProfile
	if err := c.do(ctx, sess, http.MethodGet, "/api/users/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) Friends(ctx context.Context, sess session.Session) ([]model.UserProfile, error) {
	var users []model.UserProfile
	if err := c.do(ctx, sess, http.MethodGet, "/api/friends/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) PendingRequests(ctx context.Context, sess session.Session) ([]model.FriendRequest, error) {
	var reqs []model.FriendRequest
	if err := c.do(ctx, sess, http.MethodGet, "/api/friends/requests/pending", nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (c *Client) AcceptRequest(ctx context.Context, sess session.Session, requestID string) error {
	return c.do(ctx, sess, http.MethodPost, "/api/friends/accept/"+url.PathEscape(requestID), nil, nil)
}

// AddFriend sends a friend request to userID.
func (c *Client) AddFriend(ctx context.Context, sess session.Session, userID string) (model.FriendRequest, error) {
	var req model.FriendRequest
	if err := c.do(ctx, sess, http.MethodPost, "/api/friends/add/"+url.PathEscape(userID), nil, &req); err != nil {
		return model.FriendRequest{}, err
	}
	return req, nil
}
