package realtime

import (
	"slices"
	"sync"
	"time"
)

const (
	DefaultTypingTimeout    = 2 * time.Second
	DefaultRecordingTimeout = 60 * time.Second
)

type PresenceRecord struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
	IsOnline bool      `json:"isOnline"`
}

// Tracker 一个会话内的指示器与在线状态，由 Client 持有
type Tracker struct {
	mu        sync.RWMutex
	typing    map[string]bool
	recording map[string]bool
	presence  map[string]PresenceRecord
	versions  map[string]uint64

	sched            *Scheduler
	typingTimeout    time.Duration
	recordingTimeout time.Duration
	now              func() time.Time
}

func NewTracker(sched *Scheduler, typingTimeout, recordingTimeout time.Duration) *Tracker {
	if sched == nil {
		sched = NewScheduler()
	}
	if typingTimeout <= 0 {
		typingTimeout = DefaultTypingTimeout
	}
	if recordingTimeout <= 0 {
		recordingTimeout = DefaultRecordingTimeout
	}
	return &Tracker{
		typing:           make(map[string]bool),
		recording:        make(map[string]bool),
		presence:         make(map[string]PresenceRecord),
		versions:         make(map[string]uint64),
		sched:            sched,
		typingTimeout:    typingTimeout,
		recordingTimeout: recordingTimeout,
		now:              time.Now,
	}
}

func typingKey(userID string) string    { return "typing:" + userID }
func recordingKey(userID string) string { return "recording:" + userID }

// SetTyping true 时(重新)计时，超时自动清除；false 立即清除
func (t *Tracker) SetTyping(userID string, on bool) {
	t.setIndicator(t.typing, typingKey(userID), userID, on, t.typingTimeout)
}

func (t *Tracker) SetRecording(userID string, on bool) {
	t.setIndicator(t.recording, recordingKey(userID), userID, on, t.recordingTimeout)
}

// setIndicator 持有 t.mu 完成状态修改和定时器重设，版本号保证过期定时器不会清掉新的信号
func (t *Tracker) setIndicator(m map[string]bool, key, userID string, on bool, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.versions[key]++
	if !on {
		delete(m, userID)
		t.sched.Cancel(key)
		return
	}
	m[userID] = true
	ver := t.versions[key]
	t.sched.Arm(key, timeout, func() {
		t.clearIfCurrent(m, key, userID, ver)
	})
}

func (t *Tracker) clearIfCurrent(m map[string]bool, key, userID string, ver uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.versions[key] != ver {
		return
	}
	delete(m, userID)
}

// SetPresence 最后写入者胜出
func (t *Tracker) SetPresence(rec PresenceRecord) {
	if rec.LastSeen.IsZero() {
		rec.LastSeen = t.now()
	}
	rec.IsOnline = rec.Status != "" && rec.Status != "offline"
	t.mu.Lock()
	t.presence[rec.UserID] = rec
	t.mu.Unlock()
}

func (t *Tracker) IsUserTyping(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typing[userID]
}

func (t *Tracker) IsUserRecording(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording[userID]
}

func (t *Tracker) Presence(userID string) (PresenceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.presence[userID]
	return rec, ok
}

// TypingUsers 按 userID 排序
func (t *Tracker) TypingUsers() []string {
	t.mu.RLock()
	users := make([]string, 0, len(t.typing))
	for uid := range t.typing {
		users = append(users, uid)
	}
	t.mu.RUnlock()
	slices.Sort(users)
	return users
}

// Stop 清掉所有定时器；已记录的状态保留可读
func (t *Tracker) Stop() {
	t.sched.Stop()
}
