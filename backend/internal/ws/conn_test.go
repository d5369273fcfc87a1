package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"edufiliova/backend/internal/cache"
	"edufiliova/backend/internal/httpapi/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func requireTCPListen(t *testing.T) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: TCP listen not permitted in this environment: %v", err)
	}
	ln.Close()
}

// 用 query 参数伪造 HTTP 层身份，替代真实的 AuthMiddleware
func stubPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserID, c.Query("uid"))
		c.Set(middleware.CtxRole, c.Query("role"))
		c.Next()
	}
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	requireTCPListen(t)
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil, time.Minute)
	m := NewManager(hub, nil)
	r := gin.New()
	r.GET("/realtime/ws", stubPrincipal(), m.WebSocketConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, uid, role string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/ws?uid=" + uid + "&role=" + role
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// readUntil 跳过其他帧（例如别人的 presence_update）
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f["type"] == frameType {
			return f
		}
	}
	t.Fatalf("no %q frame received", frameType)
	return nil
}

func authed(t *testing.T, srv *httptest.Server, uid, role string) *websocket.Conn {
	t.Helper()
	conn := dial(t, srv, uid, role)
	send(t, conn, map[string]any{"type": "auth", "userId": uid, "role": role})
	readUntil(t, conn, TypeAuthSuccess)
	return conn
}

func TestAuth_MismatchRejectsAndCloses(t *testing.T) {
	_, srv := newTestServer(t)

	cases := []struct {
		name  string
		frame map[string]any
	}{
		{"wrong user", map[string]any{"type": "auth", "userId": "mallory", "role": "student"}},
		{"wrong role", map[string]any{"type": "auth", "userId": "alice", "role": "admin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := dial(t, srv, "alice", "student")
			send(t, conn, tc.frame)

			f := readFrame(t, conn)
			require.Equal(t, TypeError, f["type"])
			require.NotEmpty(t, f["message"])

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			require.Error(t, err)
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
		})
	}
}

func TestAuth_FrameBeforeAuthKeepsConnectionOpen(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv, "alice", "student")

	send(t, conn, map[string]any{"type": "typing_start", "receiverId": "bob"})
	f := readFrame(t, conn)
	require.Equal(t, TypeError, f["type"])
	require.Equal(t, "not authenticated", f["message"])
	require.False(t, hub.IsConnected("alice"))

	send(t, conn, map[string]any{"type": "auth", "userId": "alice", "role": "student"})
	readUntil(t, conn, TypeAuthSuccess)
	require.True(t, hub.IsConnected("alice"))
}

func TestAuth_SecondAuthRefused(t *testing.T) {
	_, srv := newTestServer(t)
	conn := authed(t, srv, "alice", "teacher")

	send(t, conn, map[string]any{"type": "auth", "userId": "alice", "role": "teacher"})
	f := readUntil(t, conn, TypeError)
	require.Equal(t, "already authenticated", f["message"])
}

func TestCall_ReceiverNotConnected(t *testing.T) {
	_, srv := newTestServer(t)
	alice := authed(t, srv, "alice", "student")

	send(t, alice, map[string]any{"type": "call_offer", "receiverId": "bob", "callType": "video", "offer": map[string]any{"sdp": "x"}})
	f := readUntil(t, alice, TypeCallError)
	require.Equal(t, "bob", f["receiverId"])
	require.NotEmpty(t, f["message"])
}

func TestCall_RelaySubstitutesSender(t *testing.T) {
	_, srv := newTestServer(t)
	bob := authed(t, srv, "bob", "teacher")
	alice := authed(t, srv, "alice", "student")

	send(t, alice, map[string]any{
		"type":       "call_offer",
		"receiverId": "bob",
		"callType":   "audio",
		"offer":      map[string]any{"type": "offer", "sdp": "v=0"},
	})
	f := readUntil(t, bob, TypeCallOffer)
	require.Equal(t, "alice", f["senderId"])
	require.Equal(t, "audio", f["callType"])
	require.NotContains(t, f, "receiverId")
	require.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, f["offer"])

	send(t, bob, map[string]any{"type": "call_end", "receiverId": "alice"})
	f = readUntil(t, alice, TypeCallEnd)
	require.Equal(t, "bob", f["senderId"])
}

func TestTypingAndRecordingRelay(t *testing.T) {
	_, srv := newTestServer(t)
	bob := authed(t, srv, "bob", "student")
	alice := authed(t, srv, "alice", "student")

	send(t, alice, map[string]any{"type": "typing_start", "receiverId": "bob"})
	f := readUntil(t, bob, TypeUserTyping)
	require.Equal(t, "alice", f["userId"])
	require.Equal(t, true, f["isTyping"])

	send(t, alice, map[string]any{"type": "typing_stop", "receiverId": "bob"})
	f = readUntil(t, bob, TypeUserTyping)
	require.Equal(t, false, f["isTyping"])

	send(t, alice, map[string]any{"type": "recording_start", "receiverId": "bob"})
	f = readUntil(t, bob, TypeUserRecording)
	require.Equal(t, true, f["isRecording"])
}

func TestPresence_BroadcastOnAuthUpdateAndClose(t *testing.T) {
	hub, srv := newTestServer(t)
	alice := authed(t, srv, "alice", "student")
	bob := authed(t, srv, "bob", "teacher")

	f := readUntil(t, alice, TypePresenceUpdate)
	require.Equal(t, "bob", f["userId"])
	require.Equal(t, "online", f["status"])

	send(t, bob, map[string]any{"type": "presence_update", "status": "away"})
	f = readUntil(t, alice, TypePresenceUpdate)
	require.Equal(t, "away", f["status"])

	send(t, bob, map[string]any{"type": "presence_update", "status": "sleeping"})
	f = readUntil(t, bob, TypeError)
	require.Equal(t, "invalid presence status", f["message"])

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	f = readUntil(t, alice, TypePresenceUpdate)
	require.Equal(t, "bob", f["userId"])
	require.Equal(t, "offline", f["status"])
	require.Eventually(t, func() bool { return !hub.IsConnected("bob") }, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedFrameSkipped(t *testing.T) {
	_, srv := newTestServer(t)
	alice := authed(t, srv, "alice", "student")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, alice, map[string]any{"type": "no_such_frame"})
	send(t, alice, map[string]any{"type": "call_offer", "receiverId": "ghost"})
	f := readUntil(t, alice, TypeCallError)
	require.Equal(t, "ghost", f["receiverId"])
}

func TestWebSocketConnect_RequiresPrincipal(t *testing.T) {
	requireTCPListen(t)
	gin.SetMode(gin.TestMode)
	m := NewManager(NewHub(nil, time.Minute), nil)
	r := gin.New()
	r.GET("/realtime/ws", m.WebSocketConnect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/realtime/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// countingPresence 只记录调用次数的 PresenceCache
type countingPresence struct {
	mu      sync.Mutex
	touches map[string]int
	status  map[string]cache.Status
}

func newCountingPresence() *countingPresence {
	return &countingPresence{touches: map[string]int{}, status: map[string]cache.Status{}}
}

func (p *countingPresence) SetStatus(_ context.Context, userID string, status cache.Status, _ time.Duration) (cache.PresenceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = status
	return cache.PresenceRecord{UserID: userID, Status: status, LastSeen: time.Now(), IsOnline: status != cache.StatusOffline}, nil
}

func (p *countingPresence) Touch(_ context.Context, userID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touches[userID]++
	return nil
}

func (p *countingPresence) Get(_ context.Context, userID string) (cache.PresenceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cache.PresenceRecord{UserID: userID, Status: p.status[userID]}, nil
}

func (p *countingPresence) OnlineUsers(context.Context) ([]string, error) { return nil, nil }
func (p *countingPresence) Remove(context.Context, string) error          { return nil }

func (p *countingPresence) touchCount(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.touches[userID]
}

func newTimedServer(t *testing.T, p cache.PresenceCache, timings connTimings) *httptest.Server {
	t.Helper()
	requireTCPListen(t)
	gin.SetMode(gin.TestMode)
	m := NewManager(NewHub(p, time.Minute), nil)
	m.timings = timings
	r := gin.New()
	r.GET("/realtime/ws", stubPrincipal(), m.WebSocketConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// drain 持续读取，让客户端自动回 pong
func drain(conn *websocket.Conn) {
	go func() {
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func TestPong_RefreshesPresenceForIdleConnection(t *testing.T) {
	p := newCountingPresence()
	srv := newTimedServer(t, p, connTimings{
		pongWait:      time.Second,
		pingPeriod:    20 * time.Millisecond,
		authTimeout:   time.Second,
		touchInterval: 0,
	})
	alice := authed(t, srv, "alice", "student")
	drain(alice)

	// 客户端不发任何帧，只靠 ping/pong
	require.Eventually(t, func() bool { return p.touchCount("alice") >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestPong_TouchIsRateLimited(t *testing.T) {
	p := newCountingPresence()
	srv := newTimedServer(t, p, connTimings{
		pongWait:      time.Second,
		pingPeriod:    10 * time.Millisecond,
		authTimeout:   time.Second,
		touchInterval: time.Hour,
	})
	alice := authed(t, srv, "alice", "student")
	drain(alice)

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 0, p.touchCount("alice"))
}

func TestHeartbeatFrameTouchesPresence(t *testing.T) {
	p := newCountingPresence()
	srv := newTimedServer(t, p, defaultTimings())
	alice := authed(t, srv, "alice", "student")

	send(t, alice, map[string]any{"type": "heartbeat"})
	require.Eventually(t, func() bool { return p.touchCount("alice") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestAuth_TimeoutClosesIdleConnection(t *testing.T) {
	srv := newTimedServer(t, nil, connTimings{
		pongWait:      time.Second,
		pingPeriod:    20 * time.Millisecond,
		authTimeout:   150 * time.Millisecond,
		touchInterval: touchInterval,
	})
	conn := dial(t, srv, "alice", "student")

	// 非 auth 帧不会延长鉴权期限
	for i := 0; i < 2; i++ {
		send(t, conn, map[string]any{"type": "heartbeat"})
		f := readFrame(t, conn)
		require.Equal(t, "not authenticated", f["message"])
		time.Sleep(20 * time.Millisecond)
	}

	f := readUntil(t, conn, TypeError)
	require.Equal(t, "authentication timeout", f["message"])
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
