package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"edufiliova/backend/internal/entity"
	"edufiliova/backend/internal/events"
	"edufiliova/backend/internal/repo"
	"edufiliova/backend/internal/user"
	"edufiliova/backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type appointmentStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// PATCH /api/appointments/:id/status
// 只有该预约的老师或管理员可以改状态
func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	userID, role, ok := principal(c)
	if !ok {
		return
	}
	r := user.Role(role)
	if r != user.RoleTeacher && r != user.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only teachers can update appointments"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}
	var req appointmentStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := entity.AppointmentStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	ctx := c.Request.Context()
	current, err := h.appointments.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		log.Printf("get appointment failed id=%d err=%v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load appointment"})
		return
	}
	if r == user.RoleTeacher && current.TeacherID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your appointment"})
		return
	}

	appt, err := h.appointments.UpdateStatus(ctx, id, status)
	if err != nil {
		log.Printf("update appointment failed id=%d status=%s err=%v", id, status, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update appointment"})
		return
	}

	h.cache.Invalidate(appt.StudentID)
	h.cache.Invalidate(appt.TeacherID)

	if h.notifier != nil {
		h.notifier.NotifyAppointment(appt.StudentID, ws.TypeAppointmentStatusUpdate, appt)
		if appt.Status == entity.AppointmentApproved {
			h.notifier.NotifyAppointment(appt.StudentID, ws.TypeAppointmentApproved, appt)
		}
	}
	h.emit(ctx, events.Event{
		EventType:  events.EventAppointmentChanged,
		EventID:    uuid.NewString(),
		UserID:     appt.StudentID,
		PeerID:     appt.TeacherID,
		RefID:      strconv.FormatUint(appt.ID, 10),
		Status:     string(appt.Status),
		OccurredAt: h.now(),
	})

	c.JSON(http.StatusOK, gin.H{"appointment": appt})
}
