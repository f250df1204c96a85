package gateway

import (
	"time"

	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/model"
)

const (
	FrameFeed  = "feed"
	FrameError = "error"
)

// FeedItem is one rendered row of the chat list.
type FeedItem struct {
	PeerID      string              `json:"peerId"`
	Name        string              `json:"name"`
	IsGroup     bool                `json:"isGroup"`
	LastMessage string              `json:"lastMessage"`
	SenderID    string              `json:"senderId"`
	Status      model.MessageStatus `json:"status,omitempty"`
	CreatedAt   model.Timestamp     `json:"createdAt"`
}

// Frame is a server to client websocket message.
type Frame struct {
	Type      string     `json:"type"`
	Items     []FeedItem `json:"items,omitzero"`
	Message   string     `json:"message,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitzero"`
}

// command is a client to server websocket message.
type command struct {
	Type    string `json:"type"`
	PeerID  string `json:"peerId"`
	Content string `json:"content"`
}

const (
	cmdRefresh = "refresh"
	cmdSend    = "send"
)

func render(snap feed.Snapshot) Frame {
	items := make([]FeedItem, 0, len(snap.Feed))
	for _, s := range snap.Feed {
		m := s.LatestMessage
		items = append(items, FeedItem{
			PeerID:      s.PeerID,
			Name:        snap.Names.Name(s.PeerID),
			IsGroup:     m.IsGroup(),
			LastMessage: m.Content,
			SenderID:    m.SenderID,
			Status:      m.Status,
			CreatedAt:   m.CreatedAt,
		})
	}
	return Frame{Type: FrameFeed, Items: items, UpdatedAt: snap.UpdatedAt}
}
