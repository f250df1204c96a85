package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/chat-feed/pkg/auth"
	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signer = auth.NewSigner([]byte("gateway-test"), time.Hour)

type stubBackend struct {
	fetches atomic.Int32

	mu      sync.Mutex
	sent    []string
	pollers []*feed.Poller
}

func (b *stubBackend) fetch(context.Context, session.Session) ([]model.Message, error) {
	b.fetches.Add(1)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.Message{
		{ID: "1", SenderID: "bob", ReceiverID: "me", Content: "hey", CreatedAt: model.NewTimestamp(t0)},
		{ID: "2", SenderID: "me", ReceiverID: "carol", Content: "lunch?", Status: model.StatusSent, CreatedAt: model.NewTimestamp(t0.Add(time.Minute))},
	}, nil
}

func (b *stubBackend) lookup(_ context.Context, id string) (model.UserProfile, error) {
	switch id {
	case "me":
		return model.UserProfile{ID: id, FirstName: "Me", LastName: "Myself"}, nil
	case "bob":
		return model.UserProfile{ID: id, FirstName: "Bob", LastName: "Builder"}, nil
	case "carol":
		return model.UserProfile{ID: id, FirstName: "Carol", LastName: "Danvers"}, nil
	}
	return model.UserProfile{}, errors.New("no such user")
}

func (b *stubBackend) newPoller(sess session.Session) *feed.Poller {
	p := feed.NewPoller(sess, b.fetch, b.lookup, feed.Options{Interval: time.Hour})
	b.mu.Lock()
	b.pollers = append(b.pollers, p)
	b.mu.Unlock()
	return p
}

func (b *stubBackend) sendMessage(_ context.Context, _ session.Session, peerID, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, peerID+":"+content)
	return nil
}

func startHub(t *testing.T, b *stubBackend, opts ...Option) (*Hub, string) {
	t.Helper()
	hub := NewHub(b.newPoller, opts...)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	token, err := signer.GenerateToken(userID)
	require.NoError(t, err)
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// namedFeed reads frames until one carries resolved names for every row.
func namedFeed(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type != FrameFeed || len(f.Items) == 0 {
			continue
		}
		resolved := true
		for _, it := range f.Items {
			if it.Name == feed.Placeholder {
				resolved = false
			}
		}
		if resolved {
			return f
		}
	}
}

func TestHubStreamsFeed(t *testing.T) {
	b := &stubBackend{}
	_, url := startHub(t, b, WithSigner(signer))

	f := namedFeed(t, dial(t, url, "me"))
	require.Len(t, f.Items, 2)
	assert.Equal(t, "carol", f.Items[0].PeerID)
	assert.Equal(t, "Carol Danvers", f.Items[0].Name)
	assert.Equal(t, "lunch?", f.Items[0].LastMessage)
	assert.Equal(t, model.StatusSent, f.Items[0].Status)
	assert.Equal(t, "bob", f.Items[1].PeerID)
	assert.Equal(t, "Bob Builder", f.Items[1].Name)
	assert.False(t, f.UpdatedAt.IsZero())
}

func TestHubSharesPollerPerUser(t *testing.T) {
	b := &stubBackend{}
	hub, url := startHub(t, b)

	first := dial(t, url, "me")
	namedFeed(t, first)
	second := dial(t, url, "me")
	namedFeed(t, second)
	other := dial(t, url, "bob")
	namedFeed(t, other)

	assert.Equal(t, 2, hub.Users())
	b.mu.Lock()
	pollers := append([]*feed.Poller(nil), b.pollers...)
	b.mu.Unlock()
	require.Len(t, pollers, 2)

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
	assert.Eventually(t, func() bool { return hub.Users() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !pollers[0].Running() }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, pollers[1].Running())
}

func TestHubCommands(t *testing.T) {
	b := &stubBackend{}
	_, url := startHub(t, b, WithSender(b.sendMessage))

	conn := dial(t, url, "me")
	namedFeed(t, conn)
	before := b.fetches.Load()

	require.NoError(t, conn.WriteJSON(command{Type: cmdRefresh}))
	assert.Eventually(t, func() bool { return b.fetches.Load() > before }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(command{Type: cmdSend, PeerID: "bob", Content: "on my way"}))
	assert.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.sent) == 1 && b.sent[0] == "bob:on my way"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(command{Type: "dance"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameError {
			assert.Contains(t, f.Message, "dance")
			return
		}
	}
}

func TestHubRejectsMissingOrBadToken(t *testing.T) {
	b := &stubBackend{}
	_, url := startHub(t, b, WithSigner(signer))

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := auth.NewSigner([]byte("other"), time.Hour).GenerateToken("me")
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(url+"?token="+forged, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
