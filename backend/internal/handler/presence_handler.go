package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/presence/:userId
// 在线状态直接读 Redis，不进会话缓存
func (h *Handler) GetPresence(c *gin.Context) {
	if _, _, ok := principal(c); !ok {
		return
	}
	if h.presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
		return
	}
	target := c.Param("userId")
	rec, err := h.presence.Get(c.Request.Context(), target)
	if err != nil {
		log.Printf("get presence failed user=%s err=%v", target, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": rec})
}

// GET /api/presence
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	if _, _, ok := principal(c); !ok {
		return
	}
	if h.presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
		return
	}
	users, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		log.Printf("list online users failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": users})
}
