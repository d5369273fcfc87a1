package events

import (
	"context"
	"errors"
)

// DefaultInflight 同时在途的 Kafka 请求上限
const DefaultInflight = 100

var ErrNotAcquired = errors.New("events: release without acquire")

// SendLimiter 多个 Publisher 可以共享同一个，限制对 broker 的总并发
type SendLimiter struct {
	slots chan struct{}
}

func NewSendLimiter(n int) *SendLimiter {
	if n <= 0 {
		n = DefaultInflight
	}
	return &SendLimiter{slots: make(chan struct{}, n)}
}

func (l *SendLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SendLimiter) Release() error {
	select {
	case <-l.slots:
		return nil
	default:
		return ErrNotAcquired
	}
}

// InFlight 当前占用数
func (l *SendLimiter) InFlight() int { return len(l.slots) }
