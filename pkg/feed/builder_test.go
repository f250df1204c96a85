package feed

import (
	"math/rand"
	"testing"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(min int) model.Timestamp {
	return model.NewTimestamp(t0.Add(time.Duration(min) * time.Minute))
}

func dm(id, from, to string, min int) model.Message {
	return model.Message{ID: id, SenderID: from, ReceiverID: to, Content: id, Status: model.StatusSent, CreatedAt: at(min)}
}

func TestBuildFeedExample(t *testing.T) {
	msgs := []model.Message{
		dm("hi", "A", "me", 1),
		dm("yo", "me", "B", 2),
	}

	got := BuildFeed(msgs, "me")
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].PeerID)
	assert.Equal(t, "yo", got[0].LatestMessage.ID)
	assert.Equal(t, "A", got[1].PeerID)
	assert.Equal(t, "hi", got[1].LatestMessage.ID)
}

func TestBuildFeedEmpty(t *testing.T) {
	got := BuildFeed(nil, "me")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildFeedKeepsLatestPerPeer(t *testing.T) {
	msgs := []model.Message{
		dm("a3", "A", "me", 30),
		dm("a1", "me", "A", 10),
		dm("b1", "B", "me", 20),
		dm("a2", "A", "me", 15),
	}

	got := BuildFeed(msgs, "me")
	require.Len(t, got, 2)
	assert.Equal(t, "a3", got[0].LatestMessage.ID)
	assert.Equal(t, "b1", got[1].LatestMessage.ID)
}

func TestBuildFeedTieKeepsFirstInInputOrder(t *testing.T) {
	msgs := []model.Message{
		dm("first", "A", "me", 5),
		dm("second", "me", "A", 5),
	}
	got := BuildFeed(msgs, "me")
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].LatestMessage.ID)

	// swapping the input swaps the winner
	got = BuildFeed([]model.Message{msgs[1], msgs[0]}, "me")
	assert.Equal(t, "second", got[0].LatestMessage.ID)
}

func TestBuildFeedEqualTimesAcrossPeersOrderedByPeer(t *testing.T) {
	msgs := []model.Message{
		dm("c", "C", "me", 5),
		dm("a", "A", "me", 5),
		dm("b", "B", "me", 5),
	}
	got := BuildFeed(msgs, "me")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{got[0].PeerID, got[1].PeerID, got[2].PeerID})
}

func TestBuildFeedProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	peers := []string{"A", "B", "C", "D", "E"}

	for round := 0; round < 50; round++ {
		var msgs []model.Message
		for i := 0; i < rng.Intn(40); i++ {
			p := peers[rng.Intn(len(peers))]
			id := string(rune('a'+i%26)) + p
			if rng.Intn(2) == 0 {
				msgs = append(msgs, dm(id, p, "me", rng.Intn(20)))
			} else {
				msgs = append(msgs, dm(id, "me", p, rng.Intn(20)))
			}
		}

		got := BuildFeed(msgs, "me")

		seen := make(map[string]bool)
		for i, s := range got {
			require.False(t, seen[s.PeerID], "duplicate peer %s", s.PeerID)
			seen[s.PeerID] = true
			for _, m := range msgs {
				if PeerOf(m, "me") == s.PeerID {
					assert.False(t, m.CreatedAt.After(s.LatestMessage.CreatedAt.Time))
				}
			}
			if i > 0 {
				assert.False(t, s.LatestMessage.CreatedAt.After(got[i-1].LatestMessage.CreatedAt.Time))
			}
		}
		for _, m := range msgs {
			assert.True(t, seen[PeerOf(m, "me")])
		}

		assert.Equal(t, got, BuildFeed(msgs, "me"))
	}
}

func TestBuildGroupFeed(t *testing.T) {
	pages := map[string][]model.Message{
		"g1": {
			{ID: "x", SenderID: "A", CreatedAt: at(1)},
			{ID: "y", SenderID: "B", CreatedAt: at(9)},
		},
		"g2": {
			{ID: "z", SenderID: "me", CreatedAt: at(4)},
		},
		"g3": nil,
	}

	got := BuildGroupFeed(pages)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got[0].PeerID)
	assert.Equal(t, "y", got[0].LatestMessage.ID)
	assert.Equal(t, "g1", got[0].LatestMessage.GroupID)
	assert.Equal(t, "g2", got[1].PeerID)
	assert.Empty(t, Peers(got))
}

func TestSortThread(t *testing.T) {
	in := []model.Message{dm("3", "A", "me", 3), dm("1", "me", "A", 1), dm("2a", "A", "me", 2), dm("2b", "me", "A", 2)}

	got := SortThread(in)
	assert.Equal(t, []string{"1", "2a", "2b", "3"}, ids(got))
	assert.Equal(t, "3", in[0].ID, "input must not be reordered")
}

func TestSenders(t *testing.T) {
	in := []model.Message{
		{SenderID: "A"}, {SenderID: "me"}, {SenderID: "B"}, {SenderID: "A"},
	}
	assert.Equal(t, []string{"A", "B"}, Senders(in, "me"))
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
