package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"edufiliova/backend/internal/cache"
)

const presenceOpTimeout = 500 * time.Millisecond

type Hub struct {
	// 在线状态落在 Redis，多实例共享；为 nil 时只做本地广播
	presence    cache.PresenceCache
	presenceTTL time.Duration

	mu sync.RWMutex
	// userID -> 该用户的所有连接（一个用户可开多个标签页/设备）
	users map[string]map[*Conn]struct{}

	now func() time.Time
}

func NewHub(p cache.PresenceCache, presenceTTL time.Duration) *Hub {
	if presenceTTL <= 0 {
		presenceTTL = 10 * time.Minute
	}
	return &Hub{
		presence:    p,
		presenceTTL: presenceTTL,
		users:       make(map[string]map[*Conn]struct{}),
		now:         time.Now,
	}
}

// Join 注册已认证连接，返回是否为该用户的第一个连接
func (h *Hub) Join(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[c.userID]
	first := len(conns) == 0
	if conns == nil {
		conns = make(map[*Conn]struct{})
		h.users[c.userID] = conns
	}
	conns[c] = struct{}{}
	return first
}

// Leave 移除连接，返回是否为该用户的最后一个连接
func (h *Hub) Leave(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[c.userID]
	if !ok {
		return false
	}
	if _, ok := conns[c]; !ok {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.users, c.userID)
		return true
	}
	return false
}

func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *Hub) snapshot(userID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Conn, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	return conns
}

// SendToUser 投递给用户的所有连接；用户不在线返回 false
func (h *Hub) SendToUser(userID string, msg OutboundMessage) bool {
	conns := h.snapshot(userID)
	for _, c := range conns {
		c.Enqueue(msg)
	}
	return len(conns) > 0
}

// Broadcast 发给除 exceptUserID 外的所有在线用户
func (h *Hub) Broadcast(msg OutboundMessage, exceptUserID string) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.users))
	for uid, conns := range h.users {
		if uid == exceptUserID {
			continue
		}
		for c := range conns {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.Enqueue(msg)
	}
}

// NotifyMessage 推送 new_message / message_sent
func (h *Hub) NotifyMessage(userID, frameType string, message any) bool {
	return h.SendToUser(userID, ChatEventMessage{Type: frameType, Message: message})
}

func (h *Hub) NotifyAppointment(userID, frameType string, appointment any) bool {
	return h.SendToUser(userID, AppointmentMessage{Type: frameType, Appointment: appointment})
}

// UpdatePresence 写 Redis 并广播；Redis 失败只记日志，广播照常进行
func (h *Hub) UpdatePresence(ctx context.Context, userID string, status cache.Status) {
	lastSeen := h.now()
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(ctx, presenceOpTimeout)
		rec, err := h.presence.SetStatus(ctx, userID, status, h.presenceTTL)
		cancel()
		if err != nil {
			log.Printf("presence set failed user=%s status=%s err=%v", userID, status, err)
		} else {
			lastSeen = rec.LastSeen
		}
	}
	h.Broadcast(PresenceMessage{
		Type:     TypePresenceUpdate,
		UserID:   userID,
		Status:   string(status),
		LastSeen: lastSeen,
	}, userID)
}

// Heartbeat 刷新在线 TTL
func (h *Hub) Heartbeat(ctx context.Context, userID string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceOpTimeout)
	defer cancel()
	if err := h.presence.Touch(ctx, userID, h.presenceTTL); err != nil {
		log.Printf("presence touch failed user=%s err=%v", userID, err)
	}
}
