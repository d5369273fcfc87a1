package cache

import "fmt"

// 键语义：
// - userKey(userID):  用户在线状态（Hash{status,lastSeen}，带 TTL）
// - onlineKey():      在线用户索引（ZSet<userId, expireAtUnix>，score=expireAt）

// {} 内是 hash tag，同一用户的键落在同一个 slot
const (
	keyUserFmt   = "presence:user:{%s}"
	keyOnlineSet = "presence:online"
)

func userKey(userID string) string { return fmt.Sprintf(keyUserFmt, userID) }
func onlineKey() string            { return keyOnlineSet }
