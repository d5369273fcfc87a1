package sessioncache

import (
	"strings"
	"time"
)

// 键前缀：与读接口一一对应
const (
	PrefixProgress = "progress"
	PrefixSubjects = "subjects"
	PrefixQuiz     = "quiz"
	PrefixChats    = "chats"
)

const (
	DefaultTTL = 5 * time.Minute
	ChatTTL    = 3 * time.Minute
)

// Key 结构化键。内部按 (prefix, userId, extra) 存储，只有在边界处才序列化成 prefix:userId[:extra]。
// 失效时按段精确比较，"42" 不会误伤 "4242"。
type Key struct {
	Prefix string
	UserID string
	Extra  string
}

func ProgressKey(userID string) Key { return Key{Prefix: PrefixProgress, UserID: userID} }
func SubjectsKey(userID string) Key { return Key{Prefix: PrefixSubjects, UserID: userID} }
func QuizKey(userID string) Key     { return Key{Prefix: PrefixQuiz, UserID: userID} }

// ChatKey 某用户与 peer 的聊天记录
func ChatKey(userID, peerID string) Key {
	return Key{Prefix: PrefixChats, UserID: userID, Extra: peerID}
}

func (k Key) String() string {
	if k.Extra == "" {
		return k.Prefix + ":" + k.UserID
	}
	return k.Prefix + ":" + k.UserID + ":" + k.Extra
}

// hasSegment 判断 userID 是否作为完整的段出现在键中（userId 或 extra 的任一段）
func (k Key) hasSegment(userID string) bool {
	if userID == "" {
		return false
	}
	if k.UserID == userID {
		return true
	}
	if k.Extra == "" {
		return false
	}
	for _, seg := range strings.Split(k.Extra, ":") {
		if seg == userID {
			return true
		}
	}
	return false
}
