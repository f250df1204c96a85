// Package gateway pushes live conversation feeds to websocket clients. Each
// signed-in user gets one poller, shared by all of that user's connections.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mahaj/chat-feed/pkg/auth"
	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/session"
	"go.uber.org/zap"
)

// PollerFactory builds an unstarted poller for sess.
type PollerFactory func(sess session.Session) *feed.Poller

// SendFunc delivers a direct message typed into a websocket client.
type SendFunc func(ctx context.Context, sess session.Session, peerID, content string) error

type Option func(*Hub)

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithSigner verifies connection tokens locally instead of only decoding them.
func WithSigner(s *auth.Signer) Option {
	return func(h *Hub) { h.signer = s }
}

func WithSender(send SendFunc) Option {
	return func(h *Hub) { h.send = send }
}

// room is the poller of one user and the clients watching it.
type room struct {
	poller  *feed.Poller
	clients map[*Client]bool
	stop    func()
}

type Hub struct {
	newPoller PollerFactory
	send      SendFunc
	signer    *auth.Signer
	log       *zap.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]*room // user_id -> room
}

func NewHub(newPoller PollerFactory, opts ...Option) *Hub {
	h := &Hub{
		newPoller:  newPoller,
		log:        zap.NewNop(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]*room),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations until ctx is cancelled, then disconnects every
// client and stops every poller.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(ctx, c)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

// Users returns the number of users with a running poller.
func (h *Hub) Users() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) add(ctx context.Context, c *Client) {
	id := c.sess.UserID

	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[id]
	if !ok {
		p := h.newPoller(c.sess)
		updates, unsubscribe := p.Subscribe()
		if err := p.Start(ctx); err != nil {
			unsubscribe()
			h.log.Error("start poller", zap.String("user_id", id), zap.Error(err))
			close(c.send)
			return
		}
		rm = &room{
			poller:  p,
			clients: make(map[*Client]bool),
			stop: func() {
				unsubscribe()
				p.Stop()
			},
		}
		h.rooms[id] = rm
		go h.forward(id, rm, updates)
		h.log.Info("poller started", zap.String("user_id", id))
	}
	rm.clients[c] = true
	h.log.Info("client registered", zap.String("user_id", id), zap.Int("clients", len(rm.clients)))

	if snap := rm.poller.Snapshot(); !snap.UpdatedAt.IsZero() {
		if frame, err := json.Marshal(render(snap)); err == nil {
			h.deliverLocked(c, frame)
		}
	}
}

func (h *Hub) remove(c *Client) {
	id := c.sess.UserID

	h.mu.Lock()
	rm, ok := h.rooms[id]
	if !ok || !rm.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(rm.clients, c)
	close(c.send)
	var stop func()
	if len(rm.clients) == 0 {
		delete(h.rooms, id)
		stop = rm.stop
	}
	h.mu.Unlock()

	h.log.Info("client unregistered", zap.String("user_id", id))
	if stop != nil {
		go stop()
		h.log.Info("poller stopped", zap.String("user_id", id))
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	for _, rm := range rooms {
		for c := range rm.clients {
			close(c.send)
		}
	}
	h.mu.Unlock()

	for _, rm := range rooms {
		rm.stop()
	}
}

// forward renders every snapshot of a room's poller and queues it on the
// room's clients until the subscription is closed.
func (h *Hub) forward(id string, rm *room, updates <-chan feed.Snapshot) {
	for snap := range updates {
		frame, err := json.Marshal(render(snap))
		if err != nil {
			h.log.Error("encode feed frame", zap.Error(err))
			continue
		}
		h.mu.RLock()
		if h.rooms[id] == rm {
			for c := range rm.clients {
				h.deliverLocked(c, frame)
			}
		}
		h.mu.RUnlock()
	}
}

// reply queues a frame for c if it is still registered.
func (h *Hub) reply(c *Client, f Frame) {
	frame, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rm, ok := h.rooms[c.sess.UserID]; ok && rm.clients[c] {
		h.deliverLocked(c, frame)
	}
}

// deliverLocked must be called with h.mu held. A client whose buffer is full
// misses the frame; the next snapshot supersedes it.
func (h *Hub) deliverLocked(c *Client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		h.log.Warn("client too slow, dropping frame", zap.String("user_id", c.sess.UserID))
	}
}

func (h *Hub) refresh(userID string) {
	h.mu.RLock()
	rm, ok := h.rooms[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := rm.poller.Refresh(); err != nil && !errors.Is(err, feed.ErrNotRunning) {
		h.log.Warn("refresh feed", zap.String("user_id", userID), zap.Error(err))
	}
}
