package mysqldb

import (
	"context"
	"errors"
	"slices"

	"gorm.io/gorm"

	"edufiliova/backend/internal/entity"
	"edufiliova/backend/internal/repo"
)

type mysqlChatRepo struct {
	db *gorm.DB
}

var _ repo.ChatRepo = (*mysqlChatRepo)(nil)

func NewMySQLChatRepo(db *gorm.DB) repo.ChatRepo {
	return &mysqlChatRepo{db: db}
}

func (r *mysqlChatRepo) History(ctx context.Context, userID, peerID string, limit int) ([]entity.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []entity.ChatMessage
	// 先取最新的 limit 条，再翻转成时间正序
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, peerID, peerID, userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (r *mysqlChatRepo) Save(ctx context.Context, m *entity.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

type mysqlAppointmentRepo struct {
	db *gorm.DB
}

var _ repo.AppointmentRepo = (*mysqlAppointmentRepo)(nil)

func NewMySQLAppointmentRepo(db *gorm.DB) repo.AppointmentRepo {
	return &mysqlAppointmentRepo{db: db}
}

func (r *mysqlAppointmentRepo) Get(ctx context.Context, id uint64) (*entity.Appointment, error) {
	var a entity.Appointment
	err := r.db.WithContext(ctx).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *mysqlAppointmentRepo) UpdateStatus(ctx context.Context, id uint64, status entity.AppointmentStatus) (*entity.Appointment, error) {
	var out *entity.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a entity.Appointment
		if err := tx.First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return err
		}
		if err := tx.Model(&a).Update("status", status).Error; err != nil {
			return err
		}
		a.Status = status
		out = &a
		return nil
	})
	return out, err
}
