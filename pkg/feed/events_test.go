package feed

import (
	"testing"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	prev := BuildFeed([]model.Message{dm("a1", "A", "me", 1), dm("b1", "B", "me", 2)}, "me")
	next := BuildFeed([]model.Message{dm("a1", "A", "me", 1), dm("b2", "me", "B", 3), dm("c1", "C", "me", 4)}, "me")

	events := Diff("me", prev, next)
	require.Len(t, events, 2)

	assert.Equal(t, model.TypeConversationAdded, events[0].Type)
	assert.Equal(t, "C", events[0].PeerID)
	assert.Equal(t, "c1", events[0].MessageID)
	assert.Equal(t, "me", events[0].UserID)

	assert.Equal(t, model.TypeConversationUpdated, events[1].Type)
	assert.Equal(t, "B", events[1].PeerID)
	assert.Equal(t, "b2", events[1].Content)

	assert.Empty(t, Diff("me", next, next))
}
