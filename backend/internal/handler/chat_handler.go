package handler

import (
	"context"
	"log"
	"net/http"

	"edufiliova/backend/internal/entity"
	"edufiliova/backend/internal/events"
	"edufiliova/backend/internal/sessioncache"
	"edufiliova/backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const chatHistoryLimit = 100

type sendMessageReq struct {
	ReceiverID  string `json:"receiverId" binding:"required"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"messageType"`
}

// GET /api/chats/:peerId
func (h *Handler) GetChatHistory(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	peerID := c.Param("peerId")
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing peerId"})
		return
	}
	h.serveCached(c, sessioncache.ChatKey(userID, peerID), "messages", func(ctx context.Context) (any, error) {
		return h.chats.History(ctx, userID, peerID, chatHistoryLimit)
	})
}

// POST /api/chats
// 双方缓存都要失效，然后推送 new_message / message_sent
func (h *Handler) SendMessage(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ReceiverID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}
	switch req.MessageType {
	case "":
		req.MessageType = "text"
	case "text", "voice", "file":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported messageType"})
		return
	}

	msg := &entity.ChatMessage{
		ID:          uuid.NewString(),
		SenderID:    userID,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: req.MessageType,
		CreatedAt:   h.now(),
	}
	ctx := c.Request.Context()
	if err := h.chats.Save(ctx, msg); err != nil {
		log.Printf("save chat message failed sender=%s receiver=%s err=%v", userID, req.ReceiverID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	h.cache.Invalidate(userID)
	h.cache.Invalidate(req.ReceiverID)

	if h.notifier != nil {
		h.notifier.NotifyMessage(req.ReceiverID, ws.TypeNewMessage, msg)
		h.notifier.NotifyMessage(userID, ws.TypeMessageSent, msg)
	}
	h.emit(ctx, events.Event{
		EventType:  events.EventMessageSent,
		EventID:    uuid.NewString(),
		UserID:     userID,
		PeerID:     req.ReceiverID,
		RefID:      msg.ID,
		OccurredAt: msg.CreatedAt,
	})

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
