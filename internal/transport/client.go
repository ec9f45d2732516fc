// Package transport 维护与研究 Agent 后端之间的单条持久 WebSocket 通道。
//
// 保证:
//   - 同一时刻至多一个在途连接尝试 (重复 Connect 是 no-op)
//   - 事件按到达顺序经 onEvent 回调单线程交付, 要么有序交付要么断开
//   - 通道级 {"type":"ping"} 心跳在这里就地应答, 绝不进入事件流
//
// 传输层之上的协调逻辑对 wire 编码无感知。
package transport

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
	apperrors "github.com/stepfun-ai/StepDeepResearch/pkg/errors"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
	"github.com/stepfun-ai/StepDeepResearch/pkg/util"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 10 * time.Second
	readIdleTimeout  = 120 * time.Second
	pingInterval     = 30 * time.Second
)

// Client 后端 WebSocket 客户端。
type Client struct {
	url string

	wsMu sync.Mutex
	ws   *websocket.Conn

	// wrMu 串行化所有写帧 (gorilla 不允许并发写)。
	wrMu sync.Mutex

	// connecting 连接建立竞态守卫: CAS 失败的 Connect 直接 no-op 返回。
	connecting atomic.Bool
	stopped    atomic.Bool

	onEvent func(*protocol.Event)
	onClose func(error)
}

// NewClient 创建未连接的客户端。onEvent 按到达顺序回调每个已反序列化的
// 事件; onClose 在读循环因错误或对端关闭退出时回调一次。
func NewClient(url string, onEvent func(*protocol.Event), onClose func(error)) *Client {
	return &Client{url: url, onEvent: onEvent, onClose: onClose}
}

// Connect 建立连接并启动读/心跳循环。已有一次连接尝试在途时直接返回
// nil (no-op), 直到前一次成功或失败。
func (c *Client) Connect(ctx context.Context) error {
	const op = "Transport.Connect"
	if c.stopped.Load() {
		return apperrors.Wrap(apperrors.ErrClosed, op, "client closed")
	}
	if !c.connecting.CompareAndSwap(false, true) {
		logger.Debug("connect already in flight, ignored", logger.FieldURL, c.url)
		return nil
	}
	defer c.connecting.Store(false)

	conn, err := c.dial(ctx)
	if err != nil {
		return apperrors.Wrap(err, op, "ws dial")
	}
	c.replaceConn(conn)
	util.SafeGo(func() { c.readLoop(conn) })
	util.SafeGo(func() { c.pingLoop(conn) })

	logger.Info("backend channel connected", logger.FieldURL, c.url)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		NetDialContext:   (&net.Dialer{Timeout: handshakeTimeout}).DialContext,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		return nil
	})
	return conn, nil
}

func (c *Client) currentConn() *websocket.Conn {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws
}

func (c *Client) replaceConn(conn *websocket.Conn) {
	c.wsMu.Lock()
	prev := c.ws
	c.ws = conn
	c.wsMu.Unlock()
	if prev != nil && prev != conn {
		_ = prev.Close()
	}
}

// IsConnected 是否持有活跃连接。
func (c *Client) IsConnected() bool {
	return c.currentConn() != nil && !c.stopped.Load()
}

// Close 关闭连接并停止接受后续输入。进行中的单个事件处理总是先完成
// (协调在回调内同步进行)。
func (c *Client) Close() error {
	c.stopped.Store(true)
	c.wsMu.Lock()
	conn := c.ws
	c.ws = nil
	c.wsMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send 序列化并发送一个上行事件。
func (c *Client) Send(ev *protocol.Event) error {
	const op = "Transport.Send"
	conn := c.currentConn()
	if conn == nil {
		return apperrors.Wrap(apperrors.ErrNotConnected, op, "no active connection")
	}
	return c.writeJSON(conn, ev)
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.wrMu.Lock()
	defer c.wrMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// readLoop 读取并交付事件, 直到连接出错或客户端关闭。
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.stopped.Load() || c.currentConn() != conn {
				return // 主动关闭或已被新连接替换
			}
			logger.Warn("backend channel read failed", logger.FieldError, err)
			if c.onClose != nil {
				c.onClose(err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))

		var ev protocol.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("undecodable frame dropped",
				logger.FieldLen, len(data), logger.FieldError, err)
			continue
		}

		switch ev.Type {
		case protocol.EventPing:
			// 通道级心跳: 就地应答, 不上交
			_ = c.writeJSON(conn, &protocol.Event{Type: protocol.EventPong})
			continue
		case protocol.EventPong:
			continue
		}

		if c.onEvent != nil {
			c.onEvent(&ev)
		}
	}
}

// pingLoop 周期性发送控制帧 ping, 维持读超时续期。
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if c.stopped.Load() || c.currentConn() != conn {
			return
		}
		c.wrMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		c.wrMu.Unlock()
		if err != nil {
			return
		}
	}
}
