package mysqldb

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"edufiliova/backend/internal/entity"
)

func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// Migrate 建表（只增不删）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.UserProgress{},
		&entity.UserSubject{},
		&entity.QuizResult{},
		&entity.ChatMessage{},
		&entity.Appointment{},
	)
}
