package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/chat-feed/pkg/session"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound frames. Only the hub closes it.
	send chan []byte

	sess session.Session
}

// readPump handles commands from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read", zap.String("user_id", c.sess.UserID), zap.Error(err))
			}
			break
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.reply(c, Frame{Type: FrameError, Message: "invalid command"})
			continue
		}
		c.handle(cmd)
	}
}

func (c *Client) handle(cmd command) {
	switch cmd.Type {
	case cmdRefresh:
		c.hub.refresh(c.sess.UserID)
	case cmdSend:
		if c.hub.send == nil {
			c.hub.reply(c, Frame{Type: FrameError, Message: "sending is disabled"})
			return
		}
		if cmd.PeerID == "" || strings.TrimSpace(cmd.Content) == "" {
			c.hub.reply(c, Frame{Type: FrameError, Message: "peerId and content are required"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := c.hub.send(ctx, c.sess, cmd.PeerID, cmd.Content)
		cancel()
		if err != nil {
			c.hub.log.Warn("send message", zap.String("user_id", c.sess.UserID), zap.Error(err))
			c.hub.reply(c, Frame{Type: FrameError, Message: "message not sent"})
			return
		}
		c.hub.refresh(c.sess.UserID)
	default:
		c.hub.reply(c, Frame{Type: FrameError, Message: "unknown command " + cmd.Type})
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an authenticated request and registers the connection.
// The token comes from the Authorization header or the token query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sess, err := h.authenticate(token)
	if err != nil {
		h.log.Info("rejecting websocket", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 16), sess: sess}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) authenticate(token string) (session.Session, error) {
	if h.signer == nil {
		sess, err := session.FromToken(token)
		if err != nil {
			return session.Session{}, err
		}
		if !sess.Valid() {
			return session.Session{}, session.ErrIncomplete
		}
		return sess, nil
	}
	claims, err := h.signer.ValidateToken(token)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{Token: token, UserID: claims.UserID}, nil
}
