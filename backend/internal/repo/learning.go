package repo

import (
	"context"
	"errors"

	"edufiliova/backend/internal/entity"
)

var ErrNotFound = errors.New("record not found")

// LearningRepo 学习进度、科目、测验成绩
type LearningRepo interface {
	ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error)
	UpsertProgress(ctx context.Context, p *entity.UserProgress) error

	ListSubjects(ctx context.Context, userID string) ([]entity.UserSubject, error)
	AddSubject(ctx context.Context, s *entity.UserSubject) error

	ListQuizResults(ctx context.Context, userID string) ([]entity.QuizResult, error)
	AddQuizResult(ctx context.Context, r *entity.QuizResult) error
}

type ChatRepo interface {
	// History 两人之间的消息，按时间正序，最多 limit 条
	History(ctx context.Context, userID, peerID string, limit int) ([]entity.ChatMessage, error)
	Save(ctx context.Context, m *entity.ChatMessage) error
}

type AppointmentRepo interface {
	Get(ctx context.Context, id uint64) (*entity.Appointment, error)
	UpdateStatus(ctx context.Context, id uint64, status entity.AppointmentStatus) (*entity.Appointment, error)
}
