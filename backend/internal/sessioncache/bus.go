package sessioncache

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const busChannel = "sessioncache:invalidate"

// Bus 多实例部署时通过 Redis pub/sub 广播失效事件。
// 消息格式：instanceID|userID，实例忽略自己发出的消息。
type Bus struct {
	rdb        redis.UniversalClient
	channel    string
	instanceID string
}

func NewBus(rdb redis.UniversalClient) *Bus {
	return &Bus{rdb: rdb, channel: busChannel, instanceID: uuid.NewString()}
}

func (b *Bus) InstanceID() string { return b.instanceID }

func (b *Bus) Publish(ctx context.Context, userID string) error {
	return b.rdb.Publish(ctx, b.channel, b.instanceID+"|"+userID).Err()
}

// Run 订阅失效频道并把远端失效应用到本地缓存，阻塞直到 ctx 结束
func (b *Bus) Run(ctx context.Context, c *Cache) error {
	ps := b.rdb.Subscribe(ctx, b.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.apply(msg.Payload, c)
		}
	}
}

// apply 返回是否真正执行了本地失效
func (b *Bus) apply(payload string, c *Cache) bool {
	from, userID, ok := strings.Cut(payload, "|")
	if !ok || userID == "" {
		log.Printf("sessioncache: malformed invalidation payload=%q", payload)
		return false
	}
	if from == b.instanceID {
		return false
	}
	c.Invalidate(userID)
	return true
}

// Coherent 本地缓存 + 失效广播。写接口只调用 Invalidate 一次即可。
type Coherent struct {
	*Cache
	bus *Bus
}

func NewCoherent(c *Cache, bus *Bus) *Coherent {
	return &Coherent{Cache: c, bus: bus}
}

// Invalidate 本地失效后尽力广播，广播失败只记日志，不影响写操作
func (c *Coherent) Invalidate(userID string) int {
	n := c.Cache.Invalidate(userID)
	if c.bus == nil {
		return n
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := c.bus.Publish(ctx, userID); err != nil {
		log.Printf("sessioncache: publish invalidation failed user=%s err=%v", userID, err)
	}
	return n
}
