package realtime

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type staticVerifier map[string]uuid.UUID

func (v staticVerifier) VerifyToken(token string) (uuid.UUID, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("bad token")
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count=%d want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSAuthThenUserEvent(t *testing.T) {
	user := uuid.New()
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(NewWSServer(logger.Nop(), hub, staticVerifier{"tok": user}))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "tok"}))
	ready := readFrame(t, conn)
	require.Equal(t, "ready", ready["type"])
	waitForClients(t, hub, 1)

	about := uuid.New()
	hub.Deliver(AnalysisReady(user, about, "shared love of maps"))
	ev := readFrame(t, conn)
	require.Equal(t, string(KindAnalysisReady), ev["kind"])
	require.Equal(t, user.String(), ev["forUser"])
	require.Equal(t, about.String(), ev["aboutUser"])
	require.Equal(t, "shared love of maps", ev["snippet"])
	require.NotContains(t, ev, "data")
}

func TestWSRejectsBadToken(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(NewWSServer(logger.Nop(), hub, staticVerifier{}))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "nope"}))
	msg := readFrame(t, conn)
	require.Equal(t, "error", msg["type"])

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Equal(t, 0, hub.ClientCount())
}

func TestWSClosesWithoutAuthFrame(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(NewWSServer(logger.Nop(), hub, staticVerifier{}, WithAuthTimeout(50*time.Millisecond)))
	defer srv.Close()

	conn := dialWS(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	require.Equal(t, 0, hub.ClientCount())
}

func TestWSConversationSubscription(t *testing.T) {
	user := uuid.New()
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(NewWSServer(logger.Nop(), hub, staticVerifier{"tok": user}))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "tok"}))
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "conversationId": "c-9"}))
	ack := readFrame(t, conn)
	require.Equal(t, "subscribed", ack["type"])

	hub.Deliver(ConversationMessage("c-9", map[string]any{"text": "hello"}))
	msg := readFrame(t, conn)
	require.Equal(t, string(KindConversationMessage), msg["kind"])
	require.Equal(t, "c-9", msg["conversationId"])
	require.Equal(t, "hello", msg["text"])
}

func TestWSConversationAuthorizerDenies(t *testing.T) {
	user := uuid.New()
	hub := NewHub(logger.Nop())
	deny := WithConversationAuthorizer(func(_ context.Context, _ uuid.UUID, id string) bool { return id == "mine" })
	srv := httptest.NewServer(NewWSServer(logger.Nop(), hub, staticVerifier{"tok": user}, deny))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "tok"}))
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "conversationId": "theirs"}))
	msg := readFrame(t, conn)
	require.Equal(t, "error", msg["type"])
	require.Equal(t, 0, hub.Deliver(ConversationMessage("theirs", nil)))
}
