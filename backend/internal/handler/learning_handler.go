package handler

import (
	"context"
	"log"
	"net/http"

	"edufiliova/backend/internal/entity"
	"edufiliova/backend/internal/sessioncache"

	"github.com/gin-gonic/gin"
)

type progressReq struct {
	CourseID         string `json:"courseId" binding:"required"`
	Level            int    `json:"level" binding:"min=0"`
	XP               int    `json:"xp" binding:"min=0"`
	CompletedLessons int    `json:"completedLessons" binding:"min=0"`
}

type subjectReq struct {
	SubjectID  string `json:"subjectId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	GradeLevel string `json:"gradeLevel"`
}

type quizResultReq struct {
	QuizID   string `json:"quizId" binding:"required"`
	Score    int    `json:"score" binding:"min=0"`
	MaxScore int    `json:"maxScore" binding:"min=1"`
}

// GET /api/progress
func (h *Handler) GetProgress(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	h.serveCached(c, sessioncache.ProgressKey(userID), "progress", func(ctx context.Context) (any, error) {
		return h.learning.ListProgress(ctx, userID)
	})
}

// POST /api/progress
func (h *Handler) UpdateProgress(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	var req progressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := &entity.UserProgress{
		UserID:           userID,
		CourseID:         req.CourseID,
		Level:            req.Level,
		XP:               req.XP,
		CompletedLessons: req.CompletedLessons,
	}
	if err := h.learning.UpsertProgress(c.Request.Context(), p); err != nil {
		log.Printf("upsert progress failed user=%s course=%s err=%v", userID, req.CourseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save progress"})
		return
	}
	h.cache.Invalidate(userID)
	c.JSON(http.StatusOK, gin.H{"progress": p})
}

// GET /api/subjects
func (h *Handler) GetSubjects(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	h.serveCached(c, sessioncache.SubjectsKey(userID), "subjects", func(ctx context.Context) (any, error) {
		return h.learning.ListSubjects(ctx, userID)
	})
}

// POST /api/subjects
func (h *Handler) AddSubject(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	var req subjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := &entity.UserSubject{
		UserID:     userID,
		SubjectID:  req.SubjectID,
		Name:       req.Name,
		GradeLevel: req.GradeLevel,
	}
	if err := h.learning.AddSubject(c.Request.Context(), s); err != nil {
		log.Printf("add subject failed user=%s subject=%s err=%v", userID, req.SubjectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subject"})
		return
	}
	h.cache.Invalidate(userID)
	c.JSON(http.StatusCreated, gin.H{"subject": s})
}

// GET /api/quiz-results
func (h *Handler) GetQuizResults(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	h.serveCached(c, sessioncache.QuizKey(userID), "results", func(ctx context.Context) (any, error) {
		return h.learning.ListQuizResults(ctx, userID)
	})
}

// POST /api/quiz-results
func (h *Handler) AddQuizResult(c *gin.Context) {
	userID, _, ok := principal(c)
	if !ok {
		return
	}
	var req quizResultReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Score > req.MaxScore {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score exceeds maxScore"})
		return
	}
	r := &entity.QuizResult{
		UserID:      userID,
		QuizID:      req.QuizID,
		Score:       req.Score,
		MaxScore:    req.MaxScore,
		CompletedAt: h.now(),
	}
	if err := h.learning.AddQuizResult(c.Request.Context(), r); err != nil {
		log.Printf("add quiz result failed user=%s quiz=%s err=%v", userID, req.QuizID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save quiz result"})
		return
	}
	h.cache.Invalidate(userID)
	c.JSON(http.StatusCreated, gin.H{"result": r})
}
