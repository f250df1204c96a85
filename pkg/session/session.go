// Package session carries the signed-in user's credentials. A Session is
// passed explicitly to every component that talks to the API.
package session

import (
	"errors"
	"net/http"

	"github.com/mahaj/chat-feed/pkg/auth"
)

const HeaderUserID = "User-Id"

var ErrIncomplete = errors.New("session: missing token or user id")

type Session struct {
	Token  string
	UserID string
}

// FromToken builds a session from an access token, reading the user id from
// its claims.
func FromToken(token string) (Session, error) {
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: claims.UserID}, nil
}

func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

// Apply sets the bearer token and, when known, the User-Id header.
func (s Session) Apply(req *http.Request) {
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	if s.UserID != "" {
		req.Header.Set(HeaderUserID, s.UserID)
	}
}
