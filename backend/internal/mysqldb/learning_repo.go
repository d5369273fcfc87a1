package mysqldb

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"edufiliova/backend/internal/entity"
	"edufiliova/backend/internal/repo"
)

type mysqlLearningRepo struct {
	db *gorm.DB
}

// 确保 mysqlLearningRepo 实现了 repo.LearningRepo 接口
var _ repo.LearningRepo = (*mysqlLearningRepo)(nil)

func NewMySQLLearningRepo(db *gorm.DB) repo.LearningRepo {
	return &mysqlLearningRepo{db: db}
}

func (r *mysqlLearningRepo) ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error) {
	var out []entity.UserProgress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("course_id").Find(&out).Error
	return out, err
}

// UpsertProgress 以 (user_id, course_id) 为唯一键，存在则更新
func (r *mysqlLearningRepo) UpsertProgress(ctx context.Context, p *entity.UserProgress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "xp", "completed_lessons", "updated_at"}),
	}).Create(p).Error
}

func (r *mysqlLearningRepo) ListSubjects(ctx context.Context, userID string) ([]entity.UserSubject, error) {
	var out []entity.UserSubject
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&out).Error
	return out, err
}

func (r *mysqlLearningRepo) AddSubject(ctx context.Context, s *entity.UserSubject) error {
	// 重复选课幂等
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s).Error
}

func (r *mysqlLearningRepo) ListQuizResults(ctx context.Context, userID string) ([]entity.QuizResult, error) {
	var out []entity.QuizResult
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("completed_at desc").Find(&out).Error
	return out, err
}

func (r *mysqlLearningRepo) AddQuizResult(ctx context.Context, q *entity.QuizResult) error {
	return r.db.WithContext(ctx).Create(q).Error
}
