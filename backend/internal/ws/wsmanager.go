package ws

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"edufiliova/backend/internal/httpapi/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 本地开发来源始终放行，按主机名精确匹配
var localOriginHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
}

type Manager struct {
	h        *Hub
	upgrader websocket.Upgrader
	timings  connTimings
}

func NewManager(h *Hub, allowedOrigins []string) *Manager {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &Manager{
		h:       h,
		timings: defaultTimings(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), allowed)
			},
		},
	}
}

func originAllowed(origin string, allowed map[string]struct{}) bool {
	// 一些环境可能不发送 Origin，或为 "null"
	if origin == "" || origin == "null" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		if _, ok := localOriginHosts[u.Hostname()]; ok {
			return true
		}
	}
	_, ok := allowed[origin]
	return ok
}

// WebSocketConnect GET /realtime/ws，必须挂在 AuthMiddleware 之后
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID, role, ok := middleware.Principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}

	wsConn := NewConn(conn, m.h, userID, role)
	wsConn.timings = m.timings
	wsConn.Serve(c.Request.Context())
}
