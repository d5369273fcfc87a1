package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"edufiliova/backend/internal/cache"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendQueueSize  = 32
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	authTimeout    = 10 * time.Second
	touchInterval  = 30 * time.Second
	maxMessageSize = 64 << 10
)

type connTimings struct {
	pongWait    time.Duration
	pingPeriod  time.Duration
	authTimeout time.Duration
	// pong 触发在线 TTL 刷新的最小间隔
	touchInterval time.Duration
}

func defaultTimings() connTimings {
	return connTimings{
		pongWait:      pongWait,
		pingPeriod:    pingPeriod,
		authTimeout:   authTimeout,
		touchInterval: touchInterval,
	}
}

// ConnState 连接鉴权状态机：Connecting -> AwaitingAuth -> Authenticated | Rejected
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAwaitingAuth
	StateAuthenticated
	StateRejected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub

	// HTTP 层已验证的身份，auth 帧必须与之一致
	principalID   string
	principalRole string

	state  ConnState
	userID string
	role   string

	timings      connTimings
	authDeadline time.Time
	lastTouch    time.Time

	mu     sync.Mutex
	closed bool
	send   chan OutboundMessage
}

func NewConn(ws *websocket.Conn, hub *Hub, principalID, principalRole string) *Conn {
	return &Conn{
		id:            uuid.NewString(),
		ws:            ws,
		hub:           hub,
		principalID:   principalID,
		principalRole: principalRole,
		state:         StateConnecting,
		timings:       defaultTimings(),
		send:          make(chan OutboundMessage, sendQueueSize),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) UserID() string   { return c.userID }
func (c *Conn) State() ConnState { return c.state }

// Enqueue 非阻塞投递，队列满或连接已关闭时丢弃
func (c *Conn) Enqueue(msg OutboundMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		log.Printf("send queue full, drop conn=%s user=%s type=%s", c.id, c.userID, msg.MessageType())
		return false
	}
}

func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve 阻塞直到连接断开
func (c *Conn) Serve(ctx context.Context) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.state = StateAwaitingAuth
	c.readLoop(ctx)

	if c.state == StateAuthenticated {
		if last := c.hub.Leave(c); last {
			c.hub.UpdatePresence(context.WithoutCancel(ctx), c.userID, cache.StatusOffline)
		}
	}
	c.closeSend()
	<-writerDone
	_ = c.ws.Close()
}

// extendReadDeadline 未鉴权前截止时间固定为 authDeadline，心跳和垃圾帧都不能续期
func (c *Conn) extendReadDeadline() {
	if c.state != StateAuthenticated {
		_ = c.ws.SetReadDeadline(c.authDeadline)
		return
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.timings.pongWait))
}

// onPong 在读 goroutine 中执行；已鉴权连接顺带刷新在线 TTL（限频）
func (c *Conn) onPong(ctx context.Context) {
	c.extendReadDeadline()
	if c.state != StateAuthenticated {
		return
	}
	now := time.Now()
	if now.Sub(c.lastTouch) < c.timings.touchInterval {
		return
	}
	c.lastTouch = now
	c.hub.Heartbeat(ctx, c.userID)
}

func (c *Conn) readLoop(ctx context.Context) {
	c.authDeadline = time.Now().Add(c.timings.authTimeout)
	c.ws.SetReadLimit(maxMessageSize)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.onPong(ctx)
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var ne net.Error
			if c.state != StateAuthenticated && errors.As(err, &ne) && ne.Timeout() {
				log.Printf("auth timeout conn=%s principal=%s", c.id, c.principalID)
				c.Enqueue(ServerMessage{Type: TypeError, Message: "authentication timeout"})
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read error conn=%s user=%s: %v", c.id, c.userID, err)
			}
			return
		}
		c.extendReadDeadline()

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("malformed frame conn=%s user=%s: %v", c.id, c.userID, err)
			continue
		}
		if !c.handle(ctx, msg) {
			return
		}
	}
}

// handle 返回 false 表示需要断开连接
func (c *Conn) handle(ctx context.Context, msg ClientMessage) bool {
	if c.state != StateAuthenticated {
		if msg.Type != TypeAuth {
			c.Enqueue(ServerMessage{Type: TypeError, Message: "not authenticated"})
			return true
		}
		return c.authenticate(ctx, msg)
	}

	switch msg.Type {
	case TypeAuth:
		c.Enqueue(ServerMessage{Type: TypeError, Message: "already authenticated"})

	case TypeHeartbeat:
		c.lastTouch = time.Now()
		c.hub.Heartbeat(ctx, c.userID)

	case TypePresenceUpdate:
		status := cache.Status(msg.Status)
		if !status.Valid() {
			c.Enqueue(ServerMessage{Type: TypeError, Message: "invalid presence status"})
			return true
		}
		c.hub.UpdatePresence(ctx, c.userID, status)

	case TypeTypingStart, TypeTypingStop:
		if msg.ReceiverID == "" {
			log.Printf("typing frame without receiver user=%s", c.userID)
			return true
		}
		c.hub.SendToUser(msg.ReceiverID, TypingMessage{
			Type:     TypeUserTyping,
			UserID:   c.userID,
			IsTyping: msg.Type == TypeTypingStart,
		})

	case TypeRecordingStart, TypeRecordingStop:
		if msg.ReceiverID == "" {
			log.Printf("recording frame without receiver user=%s", c.userID)
			return true
		}
		c.hub.SendToUser(msg.ReceiverID, RecordingMessage{
			Type:        TypeUserRecording,
			UserID:      c.userID,
			IsRecording: msg.Type == TypeRecordingStart,
		})

	case TypeCallOffer, TypeCallAnswer, TypeCallIceCandidate, TypeCallEnd:
		c.relayCall(msg)

	default:
		log.Printf("unknown frame type=%q user=%s", msg.Type, c.userID)
	}
	return true
}

func (c *Conn) authenticate(ctx context.Context, msg ClientMessage) bool {
	if msg.UserID == "" || msg.UserID != c.principalID || msg.Role != c.principalRole {
		log.Printf("auth rejected conn=%s principal=%s/%s claimed=%s/%s",
			c.id, c.principalID, c.principalRole, msg.UserID, msg.Role)
		c.state = StateRejected
		c.Enqueue(ServerMessage{Type: TypeError, Message: "authentication failed"})
		return false
	}

	c.userID = msg.UserID
	c.role = msg.Role
	c.state = StateAuthenticated
	c.lastTouch = time.Now()
	c.extendReadDeadline()
	c.hub.Join(c)
	c.Enqueue(ServerMessage{Type: TypeAuthSuccess})
	c.hub.UpdatePresence(ctx, c.userID, cache.StatusOnline)
	log.Printf("ws authenticated conn=%s user=%s role=%s", c.id, c.userID, c.role)
	return true
}

// relayCall 原样转发信令，receiverId 换成 senderId
func (c *Conn) relayCall(msg ClientMessage) {
	if msg.ReceiverID == "" {
		c.Enqueue(CallMessage{Type: TypeCallError, Message: "receiverId required"})
		return
	}
	out := CallMessage{
		Type:      msg.Type,
		SenderID:  c.userID,
		CallType:  msg.CallType,
		Offer:     msg.Offer,
		Answer:    msg.Answer,
		Candidate: msg.Candidate,
	}
	if !c.hub.SendToUser(msg.ReceiverID, out) {
		c.Enqueue(CallMessage{
			Type:       TypeCallError,
			ReceiverID: msg.ReceiverID,
			Message:    "user is not connected",
		})
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.timings.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Printf("write error conn=%s user=%s: %v", c.id, c.userID, err)
				// 继续消费直到 send 被关闭，避免 Enqueue 方长期满队列
				continue
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("ping error conn=%s: %v", c.id, err)
			}
		}
	}
}
