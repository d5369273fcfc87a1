package events

import "time"

const (
	EventMessageSent        = "MESSAGE_SENT"
	EventAppointmentChanged = "APPOINTMENT_STATUS_CHANGED"
)

// Event 发往 Kafka 的领域事件，以 UserID 作为分区 key
type Event struct {
	EventType  string    `json:"eventType"`
	EventID    string    `json:"eventId"`
	UserID     string    `json:"userId"`
	PeerID     string    `json:"peerId,omitempty"`
	RefID      string    `json:"refId"` // 消息 ID 或预约 ID
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
