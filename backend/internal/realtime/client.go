package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"edufiliova/backend/internal/ws"

	"github.com/gorilla/websocket"
)

const (
	EndpointPath = "/realtime/ws"

	// 服务端在线 TTL 默认 10 分钟，心跳间隔远小于它
	DefaultHeartbeatInterval = 30 * time.Second
)

var ErrUnsupportedOrigin = errors.New("origin must be http(s) or ws(s)")

// Transport 由 *websocket.Conn 实现，测试里可替换
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Options struct {
	// 页面来源，例如 https://app.edufiliova.com
	Origin string
	Token  string
	UserID string
	Role   string

	Invalidator Invalidator
	Notifier    Notifier
	Scheduler   *Scheduler
	Dialer      *websocket.Dialer

	TypingTimeout    time.Duration
	RecordingTimeout time.Duration

	// 0 取默认值，负数关闭心跳
	HeartbeatInterval time.Duration
}

// Client 一个已登录会话对应一个 Client；不支持原地重新鉴权，换身份需要新建
type Client struct {
	tr      Transport
	writeMu sync.Mutex

	userID string
	role   string

	ready  atomic.Bool
	closed atomic.Bool

	tracker  *Tracker
	inv      Invalidator
	notifier Notifier

	callMu sync.RWMutex
	calls  CallHandlers

	heartbeat     time.Duration
	heartbeatOnce sync.Once

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// EndpointFromOrigin http→ws，https→wss，路径固定为 /realtime/ws
func EndpointFromOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", ErrUnsupportedOrigin
	}
	if u.Host == "" {
		return "", ErrUnsupportedOrigin
	}
	u.Path = EndpointPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// New 包装已建立的连接，不发送 auth，也不启动读循环
func New(tr Transport, opts Options) *Client {
	c := &Client{
		tr:       tr,
		userID:   opts.UserID,
		role:     opts.Role,
		tracker:  NewTracker(opts.Scheduler, opts.TypingTimeout, opts.RecordingTimeout),
		inv:      opts.Invalidator,
		notifier: opts.Notifier,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.heartbeat = opts.HeartbeatInterval
	if c.heartbeat == 0 {
		c.heartbeat = DefaultHeartbeatInterval
	}
	if c.inv == nil {
		c.inv = nopInvalidator{}
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	return c
}

// Dial 建立连接并发送 auth 帧；收到 auth_success 之后 Ready() 才为 true
func Dial(ctx context.Context, opts Options) (*Client, error) {
	endpoint, err := EndpointFromOrigin(opts.Origin)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	header.Set("Origin", opts.Origin)

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := New(conn, opts)
	if err := c.writeJSON(ws.ClientMessage{Type: ws.TypeAuth, UserID: opts.UserID, Role: opts.Role}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send auth: %w", err)
	}
	go c.Run()
	return c, nil
}

// Run 读循环，连接断开后返回
func (c *Client) Run() {
	defer func() {
		c.ready.Store(false)
		close(c.done)
	}()
	for {
		_, data, err := c.tr.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Printf("realtime read error user=%s: %v", c.userID, err)
			}
			return
		}
		c.HandleFrame(data)
	}
}

// Done 读循环退出后关闭
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Ready() bool { return c.ready.Load() && !c.closed.Load() }

func (c *Client) Tracker() *Tracker { return c.tracker }

func (c *Client) IsUserTyping(userID string) bool    { return c.tracker.IsUserTyping(userID) }
func (c *Client) IsUserRecording(userID string) bool { return c.tracker.IsUserRecording(userID) }
func (c *Client) TypingUsers() []string              { return c.tracker.TypingUsers() }
func (c *Client) Presence(userID string) (PresenceRecord, bool) {
	return c.tracker.Presence(userID)
}

func (c *Client) SendTypingStart(receiverID string) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeTypingStart, ReceiverID: receiverID})
}

func (c *Client) SendTypingStop(receiverID string) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeTypingStop, ReceiverID: receiverID})
}

func (c *Client) SendRecordingStart(receiverID string) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeRecordingStart, ReceiverID: receiverID})
}

func (c *Client) SendRecordingStop(receiverID string) bool {
	return c.send(ws.ClientMessage{Type: ws.TypeRecordingStop, ReceiverID: receiverID})
}

func (c *Client) UpdatePresence(status string) bool {
	return c.send(ws.ClientMessage{Type: ws.TypePresenceUpdate, Status: status})
}

// send 未就绪时静默丢弃，返回是否真正写出
func (c *Client) send(msg ws.ClientMessage) bool {
	if !c.Ready() {
		return false
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("realtime send failed user=%s type=%s: %v", c.userID, msg.Type, err)
		return false
	}
	return true
}

// startHeartbeat 鉴权成功后启动一次，定时发 heartbeat 帧续期在线状态
func (c *Client) startHeartbeat() {
	if c.heartbeat < 0 {
		return
	}
	c.heartbeatOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(c.heartbeat)
			defer ticker.Stop()
			for {
				select {
				case <-c.stop:
					return
				case <-c.done:
					return
				case <-ticker.C:
					c.send(ws.ClientMessage{Type: ws.TypeHeartbeat})
				}
			}
		}()
	})
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.tr.WriteMessage(websocket.TextMessage, data)
}

// Close 清掉所有定时器并关闭连接，可重复调用
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.ready.Store(false)
		close(c.stop)
		c.tracker.Stop()
		err = c.tr.Close()
	})
	return err
}
