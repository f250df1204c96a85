package model

type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

// Message is a chat message as returned by the REST API. Direct messages carry
// ReceiverID and Status; group messages carry SenderName and get GroupID
// stamped by the client after decoding.
type Message struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId,omitempty"`
	SenderName string        `json:"senderName,omitempty"`
	GroupID    string        `json:"groupId,omitempty"`
	Content    string        `json:"content"`
	Status     MessageStatus `json:"status,omitempty"`
	CreatedAt  Timestamp     `json:"createdAt"`
	UpdatedAt  Timestamp     `json:"updatedAt"`
}

// IsGroup reports whether the message belongs to a group conversation.
func (m Message) IsGroup() bool {
	return m.GroupID != ""
}

// Page is the paged envelope used by the conversation and group endpoints.
type Page[T any] struct {
	Content []T `json:"content"`
}

type SendRequest struct {
	Content string `json:"content"`
}
