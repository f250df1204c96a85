// Package feed builds the conversation list shown on the chats screen: one
// summary per peer or group holding its most recent message, kept fresh by a
// polling loop.
package feed

import (
	"sort"

	"github.com/mahaj/chat-feed/pkg/model"
)

// Summary represents one conversation in the feed.
type Summary struct {
	PeerID        string        `json:"peerId"`
	LatestMessage model.Message `json:"latestMessage"`
}

// PeerOf returns the conversation key of m as seen by selfID: the group id for
// group messages, otherwise the participant that is not selfID.
func PeerOf(m model.Message, selfID string) string {
	if m.IsGroup() {
		return m.GroupID
	}
	if m.SenderID == selfID {
		return m.ReceiverID
	}
	return m.SenderID
}

// BuildFeed reduces messages to the latest message per peer, most recent
// conversation first. A stored message is replaced only by one with a
// strictly later createdAt, so among equal timestamps the earliest in input
// order wins. Conversations with equal timestamps are ordered by peer id.
func BuildFeed(messages []model.Message, selfID string) []Summary {
	latest := make(map[string]model.Message, len(messages))
	for _, m := range messages {
		peer := PeerOf(m, selfID)
		cur, ok := latest[peer]
		if !ok || m.CreatedAt.After(cur.CreatedAt.Time) {
			latest[peer] = m
		}
	}

	out := make([]Summary, 0, len(latest))
	for peer, m := range latest {
		out = append(out, Summary{PeerID: peer, LatestMessage: m})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LatestMessage.CreatedAt, out[j].LatestMessage.CreatedAt
		if !a.Equal(b.Time) {
			return a.After(b.Time)
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out
}

// BuildGroupFeed builds a feed from per-group message pages keyed by group id.
func BuildGroupFeed(pages map[string][]model.Message) []Summary {
	var all []model.Message
	for groupID, msgs := range pages {
		for _, m := range msgs {
			m.GroupID = groupID
			all = append(all, m)
		}
	}
	return BuildFeed(all, "")
}

// SortThread returns a copy of messages ordered oldest first.
func SortThread(messages []model.Message) []model.Message {
	out := make([]model.Message, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt.Time)
	})
	return out
}

// Peers lists the distinct peer ids of direct conversations in the feed.
func Peers(summaries []Summary) []string {
	var ids []string
	for _, s := range summaries {
		if !s.LatestMessage.IsGroup() {
			ids = append(ids, s.PeerID)
		}
	}
	return ids
}

// Senders lists the distinct sender ids in messages other than selfID.
func Senders(messages []model.Message, selfID string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range messages {
		if m.SenderID == selfID {
			continue
		}
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}
	return ids
}
