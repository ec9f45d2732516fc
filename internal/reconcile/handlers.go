// handlers.go — 各事件类别的协调逻辑。所有方法须持写锁。
package reconcile

import (
	"time"

	"github.com/stepfun-ai/StepDeepResearch/internal/citations"
	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
	"github.com/stepfun-ai/StepDeepResearch/internal/reconcile/toolview"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
	"github.com/stepfun-ai/StepDeepResearch/pkg/util"
)

// applyErrorLocked 追加独立的错误消息; 错误总是终止进行中的流,
// 且绝不与其他消息合并。
func (r *Reconciler) applyErrorLocked(ev *protocol.Event) {
	r.activeStreamID = ""

	text := ev.Error
	if text == "" && ev.Response != nil {
		text = ev.Response.ErrorMsg
	}
	if text == "" {
		text = "unknown backend error"
	}

	msg := r.newMessageLocked(OriginError, "")
	msg.AgentName = ev.AgentName
	msg.Segments = []ContentSegment{{Kind: SegmentText, Text: text}}
	msg.RawEventLog = append(msg.RawEventLog, ev)
	r.appendMessageLocked(msg)

	logger.Warn("backend error surfaced",
		logger.FieldAgentName, ev.AgentName,
		logger.FieldError, text)
}

// applyStreamDeltaLocked 把增量内容并入目标消息。目标解析次序:
// correlation id 在序列中存在 → 该消息; 否则活动流指针; 否则新建并
// 把指针指向它。
func (r *Reconciler) applyStreamDeltaLocked(ev *protocol.Event) {
	chat := ev.Response.Message

	target := r.resolveStreamTargetLocked(chat.ID)
	if target == nil {
		target = r.newMessageLocked(OriginAgent, chat.ID)
		target.Streaming = true
		r.appendMessageLocked(target)
		r.activeStreamID = target.ID
	}

	// 后端在后续 delta 才带上 correlation id 时顺势登记
	if chat.ID != "" && target.CorrelationID == "" {
		target.CorrelationID = chat.ID
		r.indexMessageLocked(target)
	}

	target.Segments = MergeSegments(target.Segments, SegmentsFromMessage(chat))
	if name := responseAgentName(ev); name != "" {
		target.AgentName = name
	}
	target.UpdatedAt = time.Now()
	target.RawEventLog = append(target.RawEventLog, ev)
}

// resolveStreamTargetLocked 按 correlation id 或活动指针找目标消息。
func (r *Reconciler) resolveStreamTargetLocked(correlationID string) *Message {
	if correlationID != "" {
		if m, ok := r.byCorrID[correlationID]; ok {
			return m
		}
	}
	if r.activeStreamID != "" {
		return r.byLocalID[r.activeStreamID]
	}
	return nil
}

// applyStreamEndLocked 流结束标记: 仅清指针。内容已经由此前的 delta
// 并入, 不再做任何内容变更 (防止双重应用)。
func (r *Reconciler) applyStreamEndLocked(ev *protocol.Event) {
	chat := ev.Response.Message
	if target := r.resolveStreamTargetLocked(chat.ID); target != nil {
		target.Streaming = false
		target.RawEventLog = append(target.RawEventLog, ev)
	}
	r.activeStreamID = ""
}

// applySingleLocked 一次性完整消息: 清指针后按 correlation id 解析/合并,
// 分段为空的事件直接丢弃 (不创建空消息)。
func (r *Reconciler) applySingleLocked(ev *protocol.Event) {
	r.activeStreamID = ""

	chat := ev.Response.Message
	segs := SegmentsFromMessage(chat)
	if len(segs) == 0 {
		return
	}

	var target *Message
	if chat.ID != "" {
		target = r.byCorrID[chat.ID]
	}
	if target == nil {
		origin := OriginAgent
		if chat.RoleOf() == "user" {
			origin = OriginUser
		}
		target = r.newMessageLocked(origin, chat.ID)
		r.appendMessageLocked(target)
	}

	target.Segments = MergeSegments(target.Segments, segs)
	target.Streaming = false
	if name := responseAgentName(ev); name != "" {
		target.AgentName = name
	}
	target.UpdatedAt = time.Now()
	target.RawEventLog = append(target.RawEventLog, ev)
}

// applyToolCallStartLocked 工具调用开始: 工具调用总是打断流式 (清指针)。
// 同一 correlation id 已有文本消息时, 在其紧后插入一条只携带 tool_calls
// 的兄弟消息 (说的话与做的事分开展示); 否则新建。每个工具调用的记录按
// Pending 幂等建档, 绝不重建。
func (r *Reconciler) applyToolCallStartLocked(ev *protocol.Event) {
	r.activeStreamID = ""

	chat := ev.Response.Message
	msg := r.newMessageLocked(OriginAgent, "")
	msg.AgentName = responseAgentName(ev)
	for _, tc := range chat.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCallRef{
			ID:            tc.ID,
			FunctionName:  tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
		r.ensureToolCallRecordLocked(tc.ID, tc.Function.Name, tc.Function.Arguments)
	}
	msg.RawEventLog = append(msg.RawEventLog, ev)

	if chat.ID != "" {
		if prior, ok := r.byCorrID[chat.ID]; ok {
			r.insertMessageAfterLocked(msg, prior)
			return
		}
		msg.CorrelationID = chat.ID
	}
	r.appendMessageLocked(msg)
}

// applyToolCallResultLocked 工具调用结果: 找不到记录的结果直接丢弃
// (良构后端不会出现); 已完成记录的重复结果是 no-op。
func (r *Reconciler) applyToolCallResultLocked(ev *protocol.Event) {
	chat := ev.Response.Message
	if _, ok := r.records[chat.ToolCallID]; !ok {
		logger.Warn("tool result for unknown tool call dropped",
			logger.FieldToolCallID, chat.ToolCallID)
		return
	}
	r.completeToolCallLocked(chat.ToolCallID, normalizeResultContent(chat.Content), ev)
}

// applyClientToolStartLocked 客户端工具请求 (去重语义):
// 先把所有消息中同 ID 的通用工具调用条目摘除, 消息被掏空则整条移除
// (消息唯一允许的移除路径); 再追加专门的人工介入请求消息。
func (r *Reconciler) applyClientToolStartLocked(ev *protocol.Event) {
	ctc := ev.ClientToolCall

	for _, m := range append([]*Message(nil), r.messages...) {
		removed := false
		kept := m.ToolCalls[:0]
		for _, ref := range m.ToolCalls {
			if ref.ID == ctc.ToolCallID {
				removed = true
				continue
			}
			kept = append(kept, ref)
		}
		if !removed {
			continue
		}
		m.ToolCalls = kept
		if len(m.ToolCalls) == 0 && len(m.Segments) == 0 && m.ClientTool == nil {
			r.removeMessageLocked(m)
		}
	}

	msg := r.newMessageLocked(OriginClientTool, "")
	msg.AgentName = ev.AgentName
	msg.ClientTool = &ClientToolRequest{
		ToolCallID:    ctc.ToolCallID,
		FunctionName:  ctc.Function.Name,
		ArgumentsJSON: ctc.Function.Arguments,
	}
	msg.RawEventLog = append(msg.RawEventLog, ev)
	r.appendMessageLocked(msg)

	// 提交时要像工具结果一样完成记录, 这里先幂等建档
	r.ensureToolCallRecordLocked(ctc.ToolCallID, ctc.Function.Name, ctc.Function.Arguments)
}

// ========================================
// 工具调用记录 (须持写锁)
// ========================================

func (r *Reconciler) ensureToolCallRecordLocked(id, functionName, argumentsJSON string) {
	if id == "" {
		return
	}
	if _, ok := r.records[id]; ok {
		return
	}
	r.records[id] = &ToolCallRecord{
		ID:            id,
		FunctionName:  functionName,
		ArgumentsJSON: argumentsJSON,
		Status:        ToolPending,
		CreatedAt:     time.Now(),
	}
	r.recordOrder = append(r.recordOrder, id)
}

// completeToolCallLocked 完成一条工具调用记录: 存归一化结果, 按识别出的
// 结构化类型运行解析器, 搜索结果额外灌入引用存储。ev 可为 nil
// (客户端本地提交时没有入站事件)。
func (r *Reconciler) completeToolCallLocked(id, normalized string, ev *protocol.Event) {
	rec, ok := r.records[id]
	if !ok {
		return
	}
	if rec.Status == ToolCompleted {
		logger.Debug("duplicate tool result ignored", logger.FieldToolCallID, id)
		return
	}

	kind := toolview.Recognize(rec.FunctionName, rec.ArgumentsJSON)
	view := toolview.Parse(kind, normalized)
	if kind != toolview.KindGeneric && !view.Parsed {
		logger.Warn("structured tool result failed to parse, degrading to raw text",
			logger.FieldToolCallID, id,
			logger.FieldToolName, rec.FunctionName)
	}

	rec.Status = ToolCompleted
	rec.RawResult = normalized
	rec.View = &view
	rec.CompletedAt = time.Now()

	if view.Parsed && view.Search != nil {
		r.indexCitations(view.Search)
	}

	if ev != nil {
		if m := r.messageForToolCallLocked(id); m != nil {
			m.RawEventLog = append(m.RawEventLog, ev)
			m.UpdatedAt = time.Now()
		}
	}
}

// messageForToolCallLocked 返回携带该工具调用的消息 (含客户端工具消息)。
func (r *Reconciler) messageForToolCallLocked(id string) *Message {
	for _, m := range r.messages {
		if m.ClientTool != nil && m.ClientTool.ToolCallID == id {
			return m
		}
		for _, ref := range m.ToolCalls {
			if ref.ID == id {
				return m
			}
		}
	}
	return nil
}

// indexCitations 把搜索结果中带 cite_index 与 url 的条目灌入引用存储。
func (r *Reconciler) indexCitations(res *toolview.SearchResult) {
	count := 0
	for _, q := range res.Queries {
		for _, item := range q.Items {
			if item.CiteIndex == "" || item.URL == "" {
				continue
			}
			r.cites.Upsert(citations.Entry{
				CiteIndex:     item.CiteIndex,
				Title:         item.Title,
				URL:           item.URL,
				Site:          item.Site,
				PublishedTime: item.PublishedTime,
				Snippet:       item.Snippet,
			})
			count++
		}
	}
	if count > 0 {
		logger.Debug("citations indexed", logger.FieldCount, count)
	}
}

// responseAgentName 响应体或信封上的 agent 名。
func responseAgentName(ev *protocol.Event) string {
	if ev.Response != nil {
		return util.FirstNonEmpty(ev.Response.AgentName, ev.AgentName)
	}
	return ev.AgentName
}
