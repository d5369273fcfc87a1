package handler

import (
	"context"
	"sync"
	"time"

	"edufiliova/backend/internal/entity"
	"edufiliova/backend/internal/events"
	"edufiliova/backend/internal/repo"
)

type memLearning struct {
	mu        sync.Mutex
	progress  map[string]map[string]entity.UserProgress
	subjects  map[string][]entity.UserSubject
	quiz      map[string][]entity.QuizResult
	listCalls int
	nextID    uint64
}

func newMemLearning() *memLearning {
	return &memLearning{
		progress: make(map[string]map[string]entity.UserProgress),
		subjects: make(map[string][]entity.UserSubject),
		quiz:     make(map[string][]entity.QuizResult),
	}
}

func (m *memLearning) ListProgress(_ context.Context, userID string) ([]entity.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]entity.UserProgress, 0, len(m.progress[userID]))
	for _, p := range m.progress[userID] {
		out = append(out, p)
	}
	return out, nil
}

func (m *memLearning) UpsertProgress(_ context.Context, p *entity.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progress[p.UserID] == nil {
		m.progress[p.UserID] = make(map[string]entity.UserProgress)
	}
	if prev, ok := m.progress[p.UserID][p.CourseID]; ok {
		p.ID = prev.ID
	} else {
		m.nextID++
		p.ID = m.nextID
	}
	m.progress[p.UserID][p.CourseID] = *p
	return nil
}

func (m *memLearning) ListSubjects(_ context.Context, userID string) ([]entity.UserSubject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]entity.UserSubject(nil), m.subjects[userID]...), nil
}

func (m *memLearning) AddSubject(_ context.Context, s *entity.UserSubject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[s.UserID] = append(m.subjects[s.UserID], *s)
	return nil
}

func (m *memLearning) ListQuizResults(_ context.Context, userID string) ([]entity.QuizResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]entity.QuizResult(nil), m.quiz[userID]...), nil
}

func (m *memLearning) AddQuizResult(_ context.Context, r *entity.QuizResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quiz[r.UserID] = append(m.quiz[r.UserID], *r)
	return nil
}

type memChats struct {
	mu   sync.Mutex
	msgs []entity.ChatMessage
}

func (m *memChats) History(_ context.Context, userID, peerID string, limit int) ([]entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.ChatMessage
	for _, msg := range m.msgs {
		if (msg.SenderID == userID && msg.ReceiverID == peerID) || (msg.SenderID == peerID && msg.ReceiverID == userID) {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memChats) Save(_ context.Context, msg *entity.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, *msg)
	return nil
}

type memAppointments struct {
	mu    sync.Mutex
	appts map[uint64]entity.Appointment
}

func (m *memAppointments) Get(_ context.Context, id uint64) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &a, nil
}

func (m *memAppointments) UpdateStatus(_ context.Context, id uint64, status entity.AppointmentStatus) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	m.appts[id] = a
	return &a, nil
}

type pushed struct {
	userID    string
	frameType string
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []pushed
}

func (n *recordingNotifier) NotifyMessage(userID, frameType string, _ any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, pushed{userID, frameType})
	return true
}

func (n *recordingNotifier) NotifyAppointment(userID, frameType string, _ any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, pushed{userID, frameType})
	return true
}

type recordingSink struct {
	mu  sync.Mutex
	evs []events.Event
}

func (s *recordingSink) Enqueue(_ context.Context, evt events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, evt)
	return nil
}
