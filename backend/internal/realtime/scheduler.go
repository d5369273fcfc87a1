package realtime

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

// AfterFunc 与 time.AfterFunc 同签名，测试时可替换成手动触发的时钟
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type armed struct {
	gen   uint64
	timer Timer
}

// Scheduler 每个 key 至多一个存活定时器；重新 Arm 会取消旧的，
// 旧定时器即使已经触发也会因为代数不匹配而被丢弃
type Scheduler struct {
	mu        sync.Mutex
	afterFunc AfterFunc
	timers    map[string]armed
	gen       uint64
	stopped   bool
}

func NewScheduler() *Scheduler {
	return NewSchedulerWith(stdAfterFunc)
}

func NewSchedulerWith(af AfterFunc) *Scheduler {
	if af == nil {
		af = stdAfterFunc
	}
	return &Scheduler{afterFunc: af, timers: make(map[string]armed)}
}

// Arm (重新)设定 key 的定时器，到期后调用 fire
func (s *Scheduler) Arm(key string, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := s.afterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.timers[key]
		if !ok || cur.gen != gen || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fire()
	})
	s.timers[key] = armed{gen: gen, timer: t}
}

func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[key]; ok {
		cur.timer.Stop()
		delete(s.timers, key)
	}
}

// Stop 取消全部定时器，之后的 Arm 不再生效
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, cur := range s.timers {
		cur.timer.Stop()
		delete(s.timers, k)
	}
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
