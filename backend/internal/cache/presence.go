package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

type PresenceRecord struct {
	UserID   string    `json:"userId"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
	IsOnline bool      `json:"isOnline"`
}

var ErrInvalidStatus = errors.New("invalid presence status")

type PresenceCache interface {
	SetStatus(ctx context.Context, userID string, status Status, ttl time.Duration) (PresenceRecord, error)
	Touch(ctx context.Context, userID string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (PresenceRecord, error)
	OnlineUsers(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, userID string) error
}

// 具体实现：基于 redis 的 PresenceCache，单机和集群都用 UniversalClient
type redisPresence struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewRedisPresence(rdb redis.UniversalClient) PresenceCache {
	return &redisPresence{rdb: rdb, now: time.Now}
}

// SetStatus 最后写入者胜出；offline 时从在线索引中移除
func (p *redisPresence) SetStatus(ctx context.Context, userID string, status Status, ttl time.Duration) (PresenceRecord, error) {
	if !status.Valid() {
		return PresenceRecord{}, ErrInvalidStatus
	}
	now := p.now()
	rec := PresenceRecord{UserID: userID, Status: status, LastSeen: now, IsOnline: status != StatusOffline}

	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, userKey(userID), "status", string(status), "lastSeen", now.UnixMilli())
	pipe.Expire(ctx, userKey(userID), ttl)
	if rec.IsOnline {
		// ZSET score 使用 expireAt（Unix 秒），用于表达“逻辑 TTL”
		pipe.ZAdd(ctx, onlineKey(), redis.Z{Score: float64(now.Add(ttl).Unix()), Member: userID})
	} else {
		pipe.ZRem(ctx, onlineKey(), userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return PresenceRecord{}, err
	}
	return rec, nil
}

// Touch 心跳：刷新 TTL 与 lastSeen，不改变状态
func (p *redisPresence) Touch(ctx context.Context, userID string, ttl time.Duration) error {
	now := p.now()
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, userKey(userID), "lastSeen", now.UnixMilli())
	pipe.Expire(ctx, userKey(userID), ttl)
	pipe.ZAddXX(ctx, onlineKey(), redis.Z{Score: float64(now.Add(ttl).Unix()), Member: userID})
	_, err := pipe.Exec(ctx)
	return err
}

// Get 键不存在（过期或从未上线）时返回 offline
func (p *redisPresence) Get(ctx context.Context, userID string) (PresenceRecord, error) {
	vals, err := p.rdb.HGetAll(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return PresenceRecord{}, err
	}
	rec := PresenceRecord{UserID: userID, Status: StatusOffline}
	if len(vals) == 0 {
		return rec, nil
	}
	if s := Status(vals["status"]); s.Valid() {
		rec.Status = s
	}
	if ms, err := strconv.ParseInt(vals["lastSeen"], 10, 64); err == nil {
		rec.LastSeen = time.UnixMilli(ms)
	}
	rec.IsOnline = rec.Status != StatusOffline
	return rec, nil
}

const cleanupScript = `
-- KEYS[1] = presence:online
-- ARGV[1] = now (unix seconds)
return redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
`

var cleanup = redis.NewScript(cleanupScript)

func (p *redisPresence) OnlineUsers(ctx context.Context) ([]string, error) {
	now := p.now().Unix()
	// step1: 清理过期成员
	if err := cleanup.Run(ctx, p.rdb, []string{onlineKey()}, now).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	// step2: 查询在线成员
	ids, err := p.rdb.ZRangeByScore(ctx, onlineKey(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10), // > now
		Max: "+inf",
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return ids, nil
}

func (p *redisPresence) Remove(ctx context.Context, userID string) error {
	pipe := p.rdb.TxPipeline()
	pipe.Del(ctx, userKey(userID))
	pipe.ZRem(ctx, onlineKey(), userID)
	_, err := pipe.Exec(ctx)
	return err
}
