// Package session 把后端通道与消息序列对账器装配成一个会话:
// 下行事件按到达顺序喂给对账器, 上行动作 (用户输入 / 客户端工具回执)
// 先更新本地状态再发往后端。
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stepfun-ai/StepDeepResearch/internal/citations"
	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
	"github.com/stepfun-ai/StepDeepResearch/internal/reconcile"
	"github.com/stepfun-ai/StepDeepResearch/internal/transport"
	"github.com/stepfun-ai/StepDeepResearch/pkg/errors"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
)

// Status 会话连接状态。
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Sink 接收下行事件的落点 (审计存档等)。nil 方法安全。
type Sink interface {
	RecordEvent(ctx context.Context, taskID string, ev *protocol.Event)
}

// Session 一次浏览器会话对应的后端连接 + 本地消息序列。
type Session struct {
	rec    *reconcile.Reconciler
	client *transport.Client

	mu      sync.RWMutex
	status  Status
	lastErr error
	taskID  string

	sink     Sink
	onChange func()
}

// New 创建未连接的会话。sink 可为 nil (不落库)。
func New(backendURL string, sink Sink) *Session {
	s := &Session{
		rec:    reconcile.New(citations.NewStore()),
		status: StatusDisconnected,
		taskID: uuid.NewString(),
		sink:   sink,
	}
	s.client = transport.NewClient(backendURL, s.handleEvent, s.handleClose)
	return s
}

// SetOnChange 注册状态变化回调: 消息序列变化与连接状态变化都会触发。
// 回调在持锁之外调用。
func (s *Session) SetOnChange(fn func()) {
	s.onChange = fn
	s.rec.SetOnChange(fn)
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Reconciler 暴露对账器 (只读快照入口)。
func (s *Session) Reconciler() *reconcile.Reconciler { return s.rec }

// Connect 建立后端连接。
func (s *Session) Connect(ctx context.Context) error {
	s.setStatus(StatusConnecting, nil)
	if err := s.client.Connect(ctx); err != nil {
		s.setStatus(StatusDisconnected, err)
		return errors.Wrap(err, "Session.Connect", "连接后端失败")
	}
	s.setStatus(StatusConnected, nil)
	logger.Info("session: connected", logger.FieldTaskID, s.TaskID())
	return nil
}

// Reconnect 清空本地序列并重新连接。重连后后端会重放当前任务的事件流,
// 本地从零开始对账即可收敛到一致状态。
func (s *Session) Reconnect(ctx context.Context) error {
	s.rec.Reset()
	s.mu.Lock()
	s.taskID = uuid.NewString()
	s.mu.Unlock()
	logger.Info("session: local sequence reset for reconnect")
	return s.Connect(ctx)
}

// Close 断开连接。本地序列保留, 便于断线后继续浏览。
func (s *Session) Close() error {
	err := s.client.Close()
	s.setStatus(StatusDisconnected, nil)
	return err
}

// Status 返回当前连接状态与最近一次连接错误。
func (s *Session) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}

// TaskID 当前任务标识, Reconnect 后更换。
func (s *Session) TaskID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskID
}

// SendUserMessage 先在本地序列追加用户消息 (乐观更新), 再把请求发往后端。
// 发送失败时本地消息保留, 由调用方决定是否重连重发。
func (s *Session) SendUserMessage(text string) (string, error) {
	const op = "Session.SendUserMessage"
	if text == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, op, "消息内容为空")
	}
	msgID := s.rec.AddUserMessage(text)

	role := "user"
	ev := &protocol.Event{
		EventID: uuid.NewString(),
		TaskID:  s.TaskID(),
		Type:    protocol.EventRequest,
		Request: &protocol.AgentRequest{
			Messages: []protocol.ChatMessage{{Role: &role, Content: text}},
		},
	}
	if err := s.client.Send(ev); err != nil {
		logger.Warn("session: send user message failed",
			logger.FieldMessageID, msgID, logger.FieldError, err)
		return msgID, errors.Wrap(err, op, "发送请求失败")
	}
	return msgID, nil
}

// SubmitToolResult 提交客户端工具的人工执行结果: 先完成本地状态迁移
// (重复提交 / 未知调用在这里被拒绝), 成功后把回执发往后端。
func (s *Session) SubmitToolResult(toolCallID, content string) error {
	const op = "Session.SubmitToolResult"
	if err := s.rec.SubmitClientTool(toolCallID, content); err != nil {
		return err
	}
	ev := &protocol.Event{
		EventID: uuid.NewString(),
		TaskID:  s.TaskID(),
		Type:    protocol.EventClientToolResult,
		ClientToolResult: &protocol.ClientToolReply{
			ToolCallID: toolCallID,
			Content:    content,
		},
	}
	if err := s.client.Send(ev); err != nil {
		// 本地已迁移为已提交; 回执丢失由后端超时重问兜底
		logger.Warn("session: send tool result failed",
			logger.FieldToolCallID, toolCallID, logger.FieldError, err)
		return errors.Wrap(err, op, "发送工具回执失败")
	}
	logger.Info("session: client tool result submitted", logger.FieldToolCallID, toolCallID)
	return nil
}

// SendStopSignal 请求后端停止当前任务。
func (s *Session) SendStopSignal() error {
	ev := &protocol.Event{
		EventID: uuid.NewString(),
		TaskID:  s.TaskID(),
		Type:    protocol.EventSignal,
	}
	if err := s.client.Send(ev); err != nil {
		return errors.Wrap(err, "Session.SendStopSignal", "发送停止信号失败")
	}
	return nil
}

// handleEvent 传输层读循环的单线程回调, 天然保证事件按到达顺序进入对账器。
func (s *Session) handleEvent(ev *protocol.Event) {
	if s.sink != nil {
		s.sink.RecordEvent(context.Background(), s.TaskID(), ev)
	}
	s.rec.Apply(ev)
}

// handleClose 读循环退出回调。
func (s *Session) handleClose(err error) {
	logger.Warn("session: backend connection lost", logger.FieldError, err)
	s.setStatus(StatusDisconnected, err)
}

func (s *Session) setStatus(st Status, err error) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}
