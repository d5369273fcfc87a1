package entity

import "time"

// UserProgress 每个 (user, course) 一行
type UserProgress struct {
	ID               uint64    `gorm:"primaryKey" json:"id"`
	UserID           string    `gorm:"type:varchar(64);uniqueIndex:uk_user_course;not null" json:"userId"`
	CourseID         string    `gorm:"type:varchar(64);uniqueIndex:uk_user_course;not null" json:"courseId"`
	Level            int       `gorm:"default:0" json:"level"`
	XP               int       `gorm:"default:0" json:"xp"`
	CompletedLessons int       `gorm:"default:0" json:"completedLessons"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type UserSubject struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(64);uniqueIndex:uk_user_subject;not null" json:"userId"`
	SubjectID  string    `gorm:"type:varchar(64);uniqueIndex:uk_user_subject;not null" json:"subjectId"`
	Name       string    `gorm:"type:varchar(128)" json:"name"`
	GradeLevel string    `gorm:"type:varchar(32)" json:"gradeLevel"`
	CreatedAt  time.Time `json:"createdAt"`
}

type QuizResult struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	QuizID      string    `gorm:"type:varchar(64);not null" json:"quizId"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"maxScore"`
	CompletedAt time.Time `json:"completedAt"`
}
