package entity

import "time"

type ChatMessage struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID    string     `gorm:"type:varchar(64);index:idx_pair;not null" json:"senderId"`
	ReceiverID  string     `gorm:"type:varchar(64);index:idx_pair;not null" json:"receiverId"`
	Content     string     `gorm:"type:text" json:"content"`
	MessageType string     `gorm:"type:varchar(16);default:text" json:"messageType"` // text / voice / file
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentApproved  AppointmentStatus = "approved"
	AppointmentRejected  AppointmentStatus = "rejected"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentApproved, AppointmentRejected, AppointmentCancelled, AppointmentCompleted:
		return true
	}
	return false
}

type Appointment struct {
	ID          uint64            `gorm:"primaryKey" json:"id"`
	StudentID   string            `gorm:"type:varchar(64);index;not null" json:"studentId"`
	TeacherID   string            `gorm:"type:varchar(64);index;not null" json:"teacherId"`
	Subject     string            `gorm:"type:varchar(128)" json:"subject"`
	Status      AppointmentStatus `gorm:"type:varchar(16);default:pending" json:"status"`
	ScheduledAt time.Time         `json:"scheduledAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
