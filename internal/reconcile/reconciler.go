// Package reconcile 实现事件协调引擎: 把后端交错到达的异构事件流
// (流式 token、工具调用、工具结果、客户端工具请求、错误) 重组为一个
// 稳定的、只增不减但可原地更新的逻辑消息序列。
//
// 单写多读: 事件严格按到达顺序在一个 goroutine 上逐个完整处理,
// HTTP 层从其他 goroutine 读快照, 因此内部用 RWMutex 保护,
// 所有 *Locked 方法要求调用方已持有写锁。
package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stepfun-ai/StepDeepResearch/internal/citations"
	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
	"github.com/stepfun-ai/StepDeepResearch/pkg/errors"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
)

// Reconciler 事件协调器。独占消息序列、活动流指针与工具调用记录表;
// 引用存储的写入也只经由这里 (搜索结果入库)。
type Reconciler struct {
	mu sync.RWMutex

	messages  []*Message
	byLocalID map[string]*Message
	byCorrID  map[string]*Message

	// activeStreamID 当前接收 delta 的消息的本地 ID, 空串表示无活动流。
	activeStreamID string

	records     map[string]*ToolCallRecord
	recordOrder []string

	cites *citations.Store

	seq     int64
	version uint64

	// onChange 每次状态变更后在锁外回调 (SSE 推送用), 可为 nil。
	onChange func()
}

// New 创建空协调器。cites 为会话级引用存储, 不可为 nil。
func New(cites *citations.Store) *Reconciler {
	return &Reconciler{
		byLocalID: make(map[string]*Message),
		byCorrID:  make(map[string]*Message),
		records:   make(map[string]*ToolCallRecord),
		cites:     cites,
	}
}

// SetOnChange 注册状态变更回调。须在事件流启动前调用。
func (r *Reconciler) SetOnChange(fn func()) { r.onChange = fn }

// Citations 返回会话引用存储 (渲染层只读)。
func (r *Reconciler) Citations() *citations.Store { return r.cites }

// Apply 协调单个入站事件, 是唯一的事件入口。每个事件被完整处理后才
// 轮到下一个; 形状异常的事件被丢弃, 绝不使会话失败。
func (r *Reconciler) Apply(ev *protocol.Event) {
	cls := Classify(ev)
	if cls == ClassDrop {
		return
	}

	r.mu.Lock()
	switch cls {
	case ClassError:
		r.applyErrorLocked(ev)
	case ClassClientToolStart:
		r.applyClientToolStartLocked(ev)
	case ClassToolCallStart:
		r.applyToolCallStartLocked(ev)
	case ClassToolCallResult:
		r.applyToolCallResultLocked(ev)
	case ClassStreamDelta:
		r.applyStreamDeltaLocked(ev)
	case ClassStreamEnd:
		r.applyStreamEndLocked(ev)
	case ClassSingle:
		r.applySingleLocked(ev)
	}
	r.version++
	r.mu.Unlock()

	r.notifyChange()
}

func (r *Reconciler) notifyChange() {
	if r.onChange != nil {
		r.onChange()
	}
}

// AddUserMessage 乐观追加一条本地用户消息 (不等待任何确认), 返回其本地 ID。
func (r *Reconciler) AddUserMessage(text string) string {
	r.mu.Lock()
	msg := r.newMessageLocked(OriginUser, "")
	msg.Segments = []ContentSegment{{Kind: SegmentText, Text: text}}
	r.appendMessageLocked(msg)
	r.version++
	r.mu.Unlock()

	r.notifyChange()
	return msg.ID
}

// SubmitClientTool 记录客户端工具结果的本地提交: 置位 submitted 并冻结
// 展示文本, 同时像收到工具结果一样完成对应 ToolCallRecord 的迁移
// (客户端提交即是下游可消费的工具结果)。消息本身不移除不合并。
func (r *Reconciler) SubmitClientTool(toolCallID, resultText string) error {
	const op = "Reconciler.SubmitClientTool"

	r.mu.Lock()
	var target *Message
	for _, m := range r.messages {
		if m.ClientTool != nil && m.ClientTool.ToolCallID == toolCallID {
			target = m
			break
		}
	}
	if target == nil {
		r.mu.Unlock()
		return errors.Wrapf(errors.ErrNotFound, op, "no client tool request for %s", toolCallID)
	}
	if target.ClientTool.Submitted {
		r.mu.Unlock()
		return errors.Wrapf(errors.ErrDuplicate, op, "tool call %s already submitted", toolCallID)
	}
	target.ClientTool.Submitted = true
	target.ClientTool.ResultText = resultText
	target.UpdatedAt = time.Now()

	r.completeToolCallLocked(toolCallID, resultText, nil)
	r.version++
	r.mu.Unlock()

	r.notifyChange()
	return nil
}

// Reset 清空全部会话状态 (消息序列、活动流指针、工具记录、引用存储)。
// 重连即换新会话, 不做跨会话合并。
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.byLocalID = make(map[string]*Message)
	r.byCorrID = make(map[string]*Message)
	r.activeStreamID = ""
	r.records = make(map[string]*ToolCallRecord)
	r.recordOrder = nil
	r.cites.Reset()
	r.seq = 0
	r.version++
	r.mu.Unlock()

	logger.Info("reconciler state reset")
	r.notifyChange()
}

// ========================================
// 读快照 (深拷贝, 渲染层只读)
// ========================================

// Version 状态版本号, 每次变更单调递增。
func (r *Reconciler) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Messages 返回消息序列的深拷贝快照。
func (r *Reconciler) Messages() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, cloneMessage(m))
	}
	return out
}

// ToolCalls 按创建顺序返回全部工具调用记录的拷贝。
func (r *Reconciler) ToolCalls() []ToolCallRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolCallRecord, 0, len(r.recordOrder))
	for _, id := range r.recordOrder {
		out = append(out, *r.records[id])
	}
	return out
}

// ToolCall 按 ID 查询单条记录。
func (r *Reconciler) ToolCall(id string) (ToolCallRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return ToolCallRecord{}, false
	}
	return *rec, true
}

func cloneMessage(m *Message) Message {
	out := *m
	out.Segments = append([]ContentSegment(nil), m.Segments...)
	out.ToolCalls = append([]ToolCallRef(nil), m.ToolCalls...)
	if m.ClientTool != nil {
		ct := *m.ClientTool
		out.ClientTool = &ct
	}
	out.RawEventLog = append([]*protocol.Event(nil), m.RawEventLog...)
	return out
}

// ========================================
// 内部构造助手 (须持写锁)
// ========================================

func (r *Reconciler) newMessageLocked(origin MessageOrigin, correlationID string) *Message {
	now := time.Now()
	r.seq++
	return &Message{
		ID:            uuid.NewString(),
		Seq:           r.seq,
		CorrelationID: correlationID,
		Origin:        origin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// appendMessageLocked 追加到序列末尾并登记索引。
func (r *Reconciler) appendMessageLocked(msg *Message) {
	r.messages = append(r.messages, msg)
	r.indexMessageLocked(msg)
}

// insertMessageAfterLocked 把 msg 插到 after 的紧后面 (工具调用的兄弟消息)。
func (r *Reconciler) insertMessageAfterLocked(msg, after *Message) {
	for i, m := range r.messages {
		if m == after {
			r.messages = append(r.messages, nil)
			copy(r.messages[i+2:], r.messages[i+1:])
			r.messages[i+1] = msg
			r.indexMessageLocked(msg)
			return
		}
	}
	r.appendMessageLocked(msg)
}

func (r *Reconciler) indexMessageLocked(msg *Message) {
	r.byLocalID[msg.ID] = msg
	if msg.CorrelationID != "" {
		if _, exists := r.byCorrID[msg.CorrelationID]; !exists {
			r.byCorrID[msg.CorrelationID] = msg
		}
	}
}

// removeMessageLocked 从序列中移除消息 (仅客户端工具去重使用)。
func (r *Reconciler) removeMessageLocked(msg *Message) {
	for i, m := range r.messages {
		if m == msg {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			break
		}
	}
	delete(r.byLocalID, msg.ID)
	if msg.CorrelationID != "" && r.byCorrID[msg.CorrelationID] == msg {
		delete(r.byCorrID, msg.CorrelationID)
	}
	if r.activeStreamID == msg.ID {
		r.activeStreamID = ""
	}
}
