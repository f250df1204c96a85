package api

import (
	"context"
	"net/http"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/pkg/errors"
)

// Login exchanges credentials for a session. A response without an access
// token is reported as an APIError carrying the server's message.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	var resp model.LoginResponse
	err := c.do(ctx, session.Session{}, http.MethodPost, "/api/auth/login",
		model.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return session.Session{}, err
	}
	if resp.AccessToken == "" {
		msg := resp.Message
		if msg == "" {
			msg = "Server error."
		}
		return session.Session{}, &APIError{Status: http.StatusOK, Message: msg}
	}

	sess, err := session.FromToken(resp.AccessToken)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "read access token")
	}
	return sess, nil
}

// Register creates an account. Names are required, the email must be valid
// and the password at least 6 characters; invalid input is rejected locally.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) error {
	req.Normalize()
	if err := c.check(req); err != nil {
		return err
	}
	return c.do(ctx, session.Session{}, http.MethodPost, "/api/auth/register", req, nil)
}
