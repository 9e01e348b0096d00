package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

const (
	AuthTimeout    = 10 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameBytes  = 4096
	frameAuth      = "auth"
	frameSubscribe = "subscribe"
	frameUnsub     = "unsubscribe"
	framePing      = "ping"
)

type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}

// ConversationAuthorizer decides whether a user may follow a conversation.
type ConversationAuthorizer func(ctx context.Context, userID uuid.UUID, conversationID string) bool

type inboundFrame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type controlFrame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type WSServer struct {
	log        *logger.Logger
	hub        *Hub
	verifier   TokenVerifier
	authorize  ConversationAuthorizer
	upgrader   websocket.Upgrader
	authWithin time.Duration
}

type WSOption func(*WSServer)

func WithConversationAuthorizer(fn ConversationAuthorizer) WSOption {
	return func(s *WSServer) { s.authorize = fn }
}

func WithAuthTimeout(d time.Duration) WSOption {
	return func(s *WSServer) {
		if d > 0 {
			s.authWithin = d
		}
	}
}

func NewWSServer(log *logger.Logger, hub *Hub, verifier TokenVerifier, opts ...WSOption) *WSServer {
	s := &WSServer{
		log:      log.With("component", "WSServer"),
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		authWithin: AuthTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// conn serialises writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) writeJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, raw)
}

func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()
	ws.SetReadLimit(maxFrameBytes)

	userID, err := s.authenticate(c)
	if err != nil {
		s.log.Debug("WebSocket auth failed", "error", err)
		_ = c.writeJSON(controlFrame{Type: "error", Data: map[string]any{"message": "unauthorized"}})
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
		return
	}

	client := NewClient(userID, DefaultOutboundBuffer)
	s.hub.Register(client)
	if raw, err := json.Marshal(controlFrame{Type: "ready", Data: map[string]any{"userId": userID}}); err == nil {
		s.hub.send(client, raw)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(c, client)
	}()

	s.readPump(r.Context(), c, client)
	s.hub.Unregister(client)
	<-writerDone
}

func (s *WSServer) authenticate(c *conn) (uuid.UUID, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(s.authWithin))
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return uuid.Nil, err
	}
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return uuid.Nil, err
	}
	if f.Type != frameAuth || f.Token == "" {
		return uuid.Nil, errFirstFrame
	}
	return s.verifier.VerifyToken(f.Token)
}

func (s *WSServer) readPump(ctx context.Context, c *conn, client *Client) {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("WebSocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f inboundFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		switch f.Type {
		case frameSubscribe:
			if f.ConversationID == "" {
				continue
			}
			if s.authorize != nil && !s.authorize(ctx, client.UserID, f.ConversationID) {
				s.reply(client, "error", map[string]any{"message": "forbidden", "conversationId": f.ConversationID})
				continue
			}
			s.hub.Subscribe(client, f.ConversationID)
			s.reply(client, "subscribed", map[string]any{"conversationId": f.ConversationID})
		case frameUnsub:
			s.hub.Unsubscribe(client, f.ConversationID)
			s.reply(client, "unsubscribed", map[string]any{"conversationId": f.ConversationID})
		case framePing:
			s.reply(client, "pong", nil)
		}
	}
}

func (s *WSServer) reply(client *Client, typ string, data map[string]any) {
	raw, err := json.Marshal(controlFrame{Type: typ, Data: data})
	if err != nil {
		return
	}
	s.hub.send(client, raw)
}

func (s *WSServer) writePump(c *conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case raw, ok := <-client.Outbound:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, raw); err != nil {
				s.log.Debug("WebSocket write failed", "client_id", client.ID, "error", err)
				// unblocks readPump
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}
