package ws

import (
	"testing"
)

func newTestConn(h *Hub, userID string) *Conn {
	c := NewConn(nil, h, userID, "student")
	c.userID = userID
	c.state = StateAuthenticated
	return c
}

func TestHub_JoinLeaveFirstLast(t *testing.T) {
	h := NewHub(nil, 0)
	a1 := newTestConn(h, "alice")
	a2 := newTestConn(h, "alice")

	if !h.Join(a1) {
		t.Fatalf("first join should report first connection")
	}
	if h.Join(a2) {
		t.Fatalf("second tab should not report first connection")
	}
	if !h.IsConnected("alice") {
		t.Fatalf("alice should be connected")
	}
	if h.Leave(a1) {
		t.Fatalf("leaving one of two tabs is not the last connection")
	}
	if !h.Leave(a2) {
		t.Fatalf("leaving the remaining tab should be the last connection")
	}
	if h.Leave(a2) {
		t.Fatalf("double leave must be a no-op")
	}
	if h.IsConnected("alice") || h.ConnectedUsers() != 0 {
		t.Fatalf("hub should be empty")
	}
}

func TestHub_SendToUserFansOutToAllTabs(t *testing.T) {
	h := NewHub(nil, 0)
	a1 := newTestConn(h, "alice")
	a2 := newTestConn(h, "alice")
	h.Join(a1)
	h.Join(a2)

	if !h.SendToUser("alice", ServerMessage{Type: TypeHeartbeat}) {
		t.Fatalf("expected delivery")
	}
	if len(a1.send) != 1 || len(a2.send) != 1 {
		t.Fatalf("each tab should get one frame, got %d and %d", len(a1.send), len(a2.send))
	}
	if h.SendToUser("bob", ServerMessage{Type: TypeHeartbeat}) {
		t.Fatalf("bob is not connected")
	}
}

func TestHub_BroadcastSkipsSender(t *testing.T) {
	h := NewHub(nil, 0)
	alice := newTestConn(h, "alice")
	bob := newTestConn(h, "bob")
	h.Join(alice)
	h.Join(bob)

	h.Broadcast(PresenceMessage{Type: TypePresenceUpdate, UserID: "alice", Status: "away"}, "alice")
	if len(alice.send) != 0 {
		t.Fatalf("sender should not receive its own presence")
	}
	if len(bob.send) != 1 {
		t.Fatalf("bob should receive presence, got %d", len(bob.send))
	}
}

func TestConn_EnqueueDropsWhenFullOrClosed(t *testing.T) {
	h := NewHub(nil, 0)
	c := newTestConn(h, "alice")
	for i := 0; i < sendQueueSize; i++ {
		if !c.Enqueue(ServerMessage{Type: TypeHeartbeat}) {
			t.Fatalf("enqueue %d should succeed", i)
		}
	}
	if c.Enqueue(ServerMessage{Type: TypeHeartbeat}) {
		t.Fatalf("full queue should drop")
	}
	c.closeSend()
	c.closeSend()
	if c.Enqueue(ServerMessage{Type: TypeHeartbeat}) {
		t.Fatalf("closed queue should drop")
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := map[string]struct{}{"https://edufiliova.com": {}}
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"null", true},
		{"http://localhost:5173", true},
		{"https://127.0.0.1:8443", true},
		{"https://edufiliova.com", true},
		{"https://evil.example", false},
		{"http://localhost.evil.example", false},
		{"https://127.0.0.1.attacker.net", false},
		{"http://localhostattacker.com", false},
		{"ftp://localhost", false},
		{"https://edufiliova.com.evil.example", false},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.origin, allowed); got != tc.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}
