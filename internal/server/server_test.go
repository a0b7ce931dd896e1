package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proto "cryptsignal-chat/internal/websocket"
)

type stubResponder struct {
	mu    sync.Mutex
	calls []string
}

func (r *stubResponder) Reply(_ context.Context, content, userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID+":"+content)
	return "reply to " + content
}

type stubPresence struct {
	mu     sync.Mutex
	online map[string]int
	beats  int
}

func newStubPresence() *stubPresence { return &stubPresence{online: make(map[string]int)} }

func (p *stubPresence) SetUserOnline(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID]++
	return nil
}

func (p *stubPresence) SetUserOffline(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID]--
	return nil
}

func (p *stubPresence) UpdateHeartbeat(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beats++
	return nil
}

func (p *stubPresence) count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

type testServer struct {
	hub      *Hub
	url      string
	presence *stubPresence
	reply    *stubResponder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{presence: newStubPresence(), reply: &stubResponder{}}
	ts.hub = NewHub(ts.reply, ts.presence, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go ts.hub.Run(ctx)

	r := gin.New()
	NewHandler(ts.hub, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return ts
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) proto.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := proto.ParseFrame(data)
	require.NoError(t, err)
	return f
}

func TestWS_ReplyCycle(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts.url)

	require.NoError(t, conn.WriteJSON(proto.InitFrame("u1")))
	require.NoError(t, conn.WriteJSON(proto.Frame{Type: proto.TypeSendMessage, Text: "hello"}))
	require.NoError(t, conn.WriteJSON(proto.SendMessageFrame(7, "again")))

	var got []proto.Frame
	for i := 0; i < 6; i++ {
		got = append(got, readFrame(t, conn))
	}

	assert.Equal(t, proto.TypeTyping, got[0].Type)
	assert.True(t, got[0].Typing())
	assert.Equal(t, proto.TypeTyping, got[1].Type)
	assert.False(t, got[1].Typing())
	assert.Equal(t, proto.Frame{Type: proto.TypeNewMessage, Text: "reply to hello"}, got[2])
	assert.Equal(t, "reply to again", got[5].Text)
	assert.Equal(t, int64(7), got[5].ConversationID)

	assert.True(t, ts.hub.IsUserConnected("u1"))
	assert.Equal(t, 1, ts.presence.count("u1"))
	ts.reply.mu.Lock()
	assert.Equal(t, []string{"u1:hello", "u1:again"}, ts.reply.calls)
	ts.reply.mu.Unlock()
}

func TestWS_ProtocolMisuse(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts.url)

	require.NoError(t, conn.WriteJSON(proto.SendMessageFrame(0, "too early")))
	f := readFrame(t, conn)
	assert.Equal(t, proto.TypeError, f.Type)
	assert.Equal(t, errInitRequired, f.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = readFrame(t, conn)
	assert.Equal(t, errInvalidFrame, f.Message)

	require.NoError(t, conn.WriteJSON(proto.Frame{Type: proto.TypeInit}))
	f = readFrame(t, conn)
	assert.Equal(t, errUserIDRequired, f.Message)

	require.NoError(t, conn.WriteJSON(proto.InitFrame("u2")))
	require.NoError(t, conn.WriteJSON(proto.Frame{Type: "presence"}))
	require.NoError(t, conn.WriteJSON(proto.Frame{Type: proto.TypeSendMessage}))
	f = readFrame(t, conn)
	assert.Equal(t, errEmptyMessage, f.Message)
}

func TestWS_DisconnectUnregisters(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts.url)

	require.NoError(t, conn.WriteJSON(proto.InitFrame("u3")))
	require.Eventually(t, func() bool { return ts.hub.IsUserConnected("u3") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ts.hub.ConnectionCount())

	_ = conn.Close()
	require.Eventually(t, func() bool { return !ts.hub.IsUserConnected("u3") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ts.presence.count("u3"))
}
