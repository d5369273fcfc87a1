package sessioncache

import (
	"sync"
	"time"
)

type entry struct {
	data      any
	timestamp time.Time
}

// Cache 进程内的 TTL 读缓存，只是数据库前面的加速层，不是数据源。
// 过期条目在下一次 Get 时惰性删除。
type Cache struct {
	mu      sync.Mutex
	entries map[Key]entry

	defaultTTL time.Duration
	ttls       map[string]time.Duration

	now func() time.Time
}

type Option func(*Cache)

// WithPrefixTTL 为某个前缀单独设置 TTL
func WithPrefixTTL(prefix string, ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttls[prefix] = ttl
		}
	}
}

// WithClock 替换时间来源，测试用
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(defaultTTL time.Duration, opts ...Option) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		entries:    make(map[Key]entry),
		defaultTTL: defaultTTL,
		ttls:       make(map[string]time.Duration),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefault 进度/科目/测验 5 分钟，聊天 3 分钟
func NewDefault(opts ...Option) *Cache {
	base := []Option{WithPrefixTTL(PrefixChats, ChatTTL)}
	return New(DefaultTTL, append(base, opts...)...)
}

func (c *Cache) TTL(prefix string) time.Duration {
	if ttl, ok := c.ttls[prefix]; ok {
		return ttl
	}
	return c.defaultTTL
}

func (c *Cache) Get(k Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.timestamp) > c.TTL(k.Prefix) {
		delete(c.entries, k)
		return nil, false
	}
	return e.data, true
}

func (c *Cache) Set(k Key, data any) {
	c.mu.Lock()
	c.entries[k] = entry{data: data, timestamp: c.now()}
	c.mu.Unlock()
}

// Invalidate 删除所有把 userID 作为完整段的键，返回删除数量。
// 宁可多删（同一用户的其他缓存）也不返回旧数据。
func (c *Cache) Invalidate(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if k.hasSegment(userID) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
