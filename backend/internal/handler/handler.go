package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"edufiliova/backend/internal/cache"
	"edufiliova/backend/internal/events"
	"edufiliova/backend/internal/httpapi/middleware"
	"edufiliova/backend/internal/repo"
	"edufiliova/backend/internal/sessioncache"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

const eventEnqueueTimeout = 200 * time.Millisecond

// SessionCache 由 *sessioncache.Cache 或 *sessioncache.Coherent 实现
type SessionCache interface {
	Get(k sessioncache.Key) (any, bool)
	Set(k sessioncache.Key, data any)
	Invalidate(userID string) int
	TTL(prefix string) time.Duration
}

// Notifier 通过 WebSocket 推送，由 *ws.Hub 实现
type Notifier interface {
	NotifyMessage(userID, frameType string, message any) bool
	NotifyAppointment(userID, frameType string, appointment any) bool
}

type EventSink interface {
	Enqueue(ctx context.Context, evt events.Event) error
}

type Deps struct {
	Learning     repo.LearningRepo
	Chats        repo.ChatRepo
	Appointments repo.AppointmentRepo
	Presence     cache.PresenceCache
	Cache        SessionCache
	Notifier     Notifier
	Events       EventSink
}

type Handler struct {
	learning     repo.LearningRepo
	chats        repo.ChatRepo
	appointments repo.AppointmentRepo
	presence     cache.PresenceCache
	cache        SessionCache
	notifier     Notifier
	events       EventSink

	// 同一个 key 的并发回源合并成一次
	sf  singleflight.Group
	now func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		learning:     d.Learning,
		chats:        d.Chats,
		appointments: d.Appointments,
		presence:     d.Presence,
		cache:        d.Cache,
		notifier:     d.Notifier,
		events:       d.Events,
		now:          time.Now,
	}
	if h.cache == nil {
		h.cache = sessioncache.NewDefault()
	}
	return h
}

// Routes 挂在 /api 分组下，调用方负责在外层加 AuthMiddleware
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/progress", h.GetProgress)
	r.POST("/progress", h.UpdateProgress)
	r.GET("/subjects", h.GetSubjects)
	r.POST("/subjects", h.AddSubject)
	r.GET("/quiz-results", h.GetQuizResults)
	r.POST("/quiz-results", h.AddQuizResult)

	r.GET("/chats/:peerId", h.GetChatHistory)
	r.POST("/chats", h.SendMessage)

	r.GET("/presence", h.GetOnlineUsers)
	r.GET("/presence/:userId", h.GetPresence)

	r.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
}

func principal(c *gin.Context) (string, string, bool) {
	userID, role, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return userID, role, ok
}

// emit 事件投递失败不影响请求结果
func (h *Handler) emit(ctx context.Context, evt events.Event) {
	if h.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventEnqueueTimeout)
	defer cancel()
	if err := h.events.Enqueue(ctx, evt); err != nil {
		log.Printf("enqueue event failed type=%s user=%s ref=%s err=%v", evt.EventType, evt.UserID, evt.RefID, err)
	}
}
