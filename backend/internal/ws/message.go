package ws

import (
	"encoding/json"
	"time"
)

// 帧类型，客户端与服务端共用
const (
	TypeAuth        = "auth"
	TypeAuthSuccess = "auth_success"
	TypeError       = "error"
	TypeHeartbeat   = "heartbeat"

	TypePresenceUpdate = "presence_update"

	TypeTypingStart    = "typing_start"
	TypeTypingStop     = "typing_stop"
	TypeUserTyping     = "user_typing"
	TypeRecordingStart = "recording_start"
	TypeRecordingStop  = "recording_stop"
	TypeUserRecording  = "user_recording"

	TypeNewMessage   = "new_message"
	TypeMessageSent  = "message_sent"
	TypeMessageError = "message_error"

	TypeAppointmentApproved     = "appointment_approved"
	TypeAppointmentStatusUpdate = "appointment_status_update"

	TypeCallOffer        = "call_offer"
	TypeCallAnswer       = "call_answer"
	TypeCallIceCandidate = "call_ice_candidate"
	TypeCallEnd          = "call_end"
	TypeCallError        = "call_error"
)

// ClientMessage 客户端上行帧（字段取并集，按 Type 解释）
type ClientMessage struct {
	Type       string          `json:"type"`
	UserID     string          `json:"userId,omitempty"`
	Role       string          `json:"role,omitempty"`
	Status     string          `json:"status,omitempty"`
	ReceiverID string          `json:"receiverId,omitempty"`
	CallType   string          `json:"callType,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

type ServerMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type PresenceMessage struct {
	Type     string    `json:"type"` // 固定 "presence_update"
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// bool 字段不能 omitempty，false 也要发出去
type TypingMessage struct {
	Type     string `json:"type"` // 固定 "user_typing"
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type RecordingMessage struct {
	Type        string `json:"type"` // 固定 "user_recording"
	UserID      string `json:"userId"`
	IsRecording bool   `json:"isRecording"`
}

// CallMessage 通话信令；offer/answer/candidate 原样转发，不解析
type CallMessage struct {
	Type       string          `json:"type"`
	SenderID   string          `json:"senderId,omitempty"`
	ReceiverID string          `json:"receiverId,omitempty"`
	CallType   string          `json:"callType,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// ChatEventMessage new_message / message_sent，消息体对实时层不透明
type ChatEventMessage struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

type AppointmentMessage struct {
	Type        string `json:"type"`
	Appointment any    `json:"appointment"`
	Message     string `json:"message,omitempty"`
}

// 隐式实现 OutboundMessage 接口
func (m ServerMessage) MessageType() string      { return m.Type }
func (m PresenceMessage) MessageType() string    { return m.Type }
func (m TypingMessage) MessageType() string      { return m.Type }
func (m RecordingMessage) MessageType() string   { return m.Type }
func (m CallMessage) MessageType() string        { return m.Type }
func (m ChatEventMessage) MessageType() string   { return m.Type }
func (m AppointmentMessage) MessageType() string { return m.Type }
