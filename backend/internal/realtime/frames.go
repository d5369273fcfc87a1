package realtime

import (
	"encoding/json"
	"time"
)

// inboundFrame 服务端下行帧的字段并集，按 Type 解释
type inboundFrame struct {
	Type        string          `json:"type"`
	UserID      string          `json:"userId"`
	Status      string          `json:"status"`
	LastSeen    *time.Time      `json:"lastSeen"`
	IsTyping    *bool           `json:"isTyping"`
	IsRecording *bool           `json:"isRecording"`
	SenderID    string          `json:"senderId"`
	ReceiverID  string          `json:"receiverId"`
	CallType    string          `json:"callType"`
	Offer       json.RawMessage `json:"offer"`
	Answer      json.RawMessage `json:"answer"`
	Candidate   json.RawMessage `json:"candidate"`
	// error 类帧是字符串，new_message 是对象，这里都不解析
	Message     json.RawMessage `json:"message"`
	Appointment json.RawMessage `json:"appointment"`
}

// text 把 message 字段还原成可读字符串
func (f inboundFrame) text() string {
	if len(f.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Message, &s); err == nil {
		return s
	}
	return string(f.Message)
}

type Scope string

const (
	ScopeMessages     Scope = "messages"
	ScopeAppointments Scope = "appointments"
	ScopeAll          Scope = "all"
)

// Invalidator 让上层丢弃对应范围的缓存视图并重新拉取
type Invalidator interface {
	Invalidate(scope Scope)
}

type InvalidatorFunc func(scope Scope)

func (f InvalidatorFunc) Invalidate(scope Scope) { f(scope) }

// Notifier 面向用户的提示
type Notifier interface {
	Notify(title, body string)
}

type NotifierFunc func(title, body string)

func (f NotifierFunc) Notify(title, body string) { f(title, body) }

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(Scope) {}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}
