package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

var ErrPublisherClosed = errors.New("events: publisher closed")

// RetryPolicy 指数退避，Attempts 不含首次发送
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	d := p.Base << attempt
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

type PublisherOptions struct {
	Topic     string
	QueueSize int
	Workers   int
	Retry     RetryPolicy
	Limiter   *SendLimiter
}

func DefaultPublisherOptions(topic string) PublisherOptions {
	return PublisherOptions{
		Topic:     topic,
		QueueSize: 4096,
		Workers:   4,
		Retry:     RetryPolicy{Attempts: 3, Base: 50 * time.Millisecond, Max: time.Second},
	}
}

// Stats 按事件类型累计
type Stats struct {
	Delivered map[string]int64
	Dropped   map[string]int64
}

// Publisher 把聊天和预约事件异步写入 Kafka。
// HTTP 请求只负责入队；失败的事件按 RetryPolicy 重发，重试耗尽后丢弃。
type Publisher struct {
	producer sarama.SyncProducer
	opts     PublisherOptions

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup

	delivered sync.Map // eventType -> *atomic.Int64
	dropped   sync.Map

	sleep func(time.Duration)
}

func NewPublisher(producer sarama.SyncProducer, opts PublisherOptions) *Publisher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	p := &Publisher{
		producer: producer,
		opts:     opts,
		queue:    make(chan Event, opts.QueueSize),
		sleep:    time.Sleep,
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Enqueue 队列满时等到 ctx 结束；Close 之后返回 ErrPublisherClosed
func (p *Publisher) Enqueue(ctx context.Context, evt Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 拒绝新事件，已入队的事件发送完才返回
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	st := p.Stats()
	log.Printf("event publisher stopped topic=%s delivered=%v dropped=%v", p.opts.Topic, st.Delivered, st.Dropped)
}

func (p *Publisher) Stats() Stats {
	return Stats{Delivered: snapshot(&p.delivered), Dropped: snapshot(&p.dropped)}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for evt := range p.queue {
		if p.deliver(evt) {
			count(&p.delivered, evt.EventType)
			continue
		}
		count(&p.dropped, evt.EventType)
	}
}

// deliver 返回 false 表示重试耗尽，事件被丢弃
func (p *Publisher) deliver(evt Event) bool {
	msg, err := p.message(evt)
	if err != nil {
		log.Printf("event encode failed type=%s id=%s: %v", evt.EventType, evt.EventID, err)
		return false
	}
	if msg == nil {
		return true
	}

	for attempt := 0; ; attempt++ {
		err = p.sendOnce(msg)
		if err == nil {
			return true
		}
		if attempt >= p.opts.Retry.Attempts {
			log.Printf("event dropped type=%s id=%s user=%s attempts=%d: %v",
				evt.EventType, evt.EventID, evt.UserID, attempt+1, err)
			return false
		}
		p.sleep(p.opts.Retry.delay(attempt))
	}
}

// message 未配置 topic 时返回 nil，事件视为已处理
func (p *Publisher) message(evt Event) (*sarama.ProducerMessage, error) {
	if p.producer == nil || p.opts.Topic == "" {
		return nil, nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	// 同一用户的事件落在同一分区，保证顺序
	return &sarama.ProducerMessage{
		Topic:   p.opts.Topic,
		Key:     sarama.StringEncoder(evt.UserID),
		Value:   sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{{Key: []byte("event-type"), Value: []byte(evt.EventType)}},
	}, nil
}

func (p *Publisher) sendOnce(msg *sarama.ProducerMessage) error {
	if l := p.opts.Limiter; l != nil {
		// 后台 worker，不设超时
		_ = l.Acquire(context.Background())
		defer func() { _ = l.Release() }()
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func count(m *sync.Map, eventType string) {
	v, _ := m.LoadOrStore(eventType, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func snapshot(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}
