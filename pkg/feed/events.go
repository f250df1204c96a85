package feed

import (
	"context"

	"github.com/mahaj/chat-feed/pkg/model"
)

// EventSink receives feed change events.
type EventSink interface {
	Publish(ctx context.Context, events []model.Event) error
}

// Diff returns an event for every conversation in next that is new or whose
// latest message changed since prev. Order follows next.
func Diff(userID string, prev, next []Summary) []model.Event {
	before := make(map[string]string, len(prev))
	for _, s := range prev {
		before[s.PeerID] = s.LatestMessage.ID
	}

	var events []model.Event
	for _, s := range next {
		id, ok := before[s.PeerID]
		var typ model.EventType
		switch {
		case !ok:
			typ = model.TypeConversationAdded
		case id != s.LatestMessage.ID:
			typ = model.TypeConversationUpdated
		default:
			continue
		}
		events = append(events, model.Event{
			Type:      typ,
			UserID:    userID,
			PeerID:    s.PeerID,
			MessageID: s.LatestMessage.ID,
			Content:   s.LatestMessage.Content,
			Timestamp: s.LatestMessage.CreatedAt,
		})
	}
	return events
}
