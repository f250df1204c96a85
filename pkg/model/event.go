package model

type EventType string

const (
	TypeConversationAdded   EventType = "conversation_added"
	TypeConversationUpdated EventType = "conversation_updated"
)

// Event announces a change in a user's conversation feed.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	PeerID    string    `json:"peer_id"`
	MessageID string    `json:"message_id"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}
