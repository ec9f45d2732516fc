// classify.go — 事件分类器: 判定原始事件的逻辑类别。
package reconcile

import "github.com/stepfun-ai/StepDeepResearch/internal/protocol"

// EventClass 事件的逻辑分类。
type EventClass int

const (
	// ClassDrop 丢弃不处理 (心跳怪癖、空信封、不认识的信封类型)。
	ClassDrop EventClass = iota
	// ClassError 后端显式错误。
	ClassError
	// ClassClientToolStart 客户端工具请求 (人工介入)。
	ClassClientToolStart
	// ClassToolCallStart 工具调用开始 (accumulated + 非空 tool_calls)。
	ClassToolCallStart
	// ClassToolCallResult 工具调用结果 (role=tool + tool_call_id)。
	ClassToolCallResult
	// ClassStreamDelta 流式增量。
	ClassStreamDelta
	// ClassStreamEnd 流结束标记 (内容已经由此前的 delta 并入, 不再携带新内容)。
	ClassStreamEnd
	// ClassSingle 一次性完整消息 (兜底默认)。
	ClassSingle
)

// String 便于日志输出。
func (c EventClass) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassClientToolStart:
		return "client_tool_start"
	case ClassToolCallStart:
		return "tool_call_start"
	case ClassToolCallResult:
		return "tool_call_result"
	case ClassStreamDelta:
		return "stream_delta"
	case ClassStreamEnd:
		return "stream_end"
	case ClassSingle:
		return "single"
	default:
		return "drop"
	}
}

// Classify 按固定优先级判定事件类别:
//  1. client_tool_call 信封类型恒为客户端工具请求
//  2. error 信封类型恒为错误
//  3. content 与 role 同时为 null 的响应直接丢弃 (后端心跳怪癖)
//  4. accumulated + 非空 tool_calls → 工具调用开始
//  5. role=tool + tool_call_id → 工具调用结果
//  6. stream → 流式增量
//  7. accumulated (无 tool_calls) → 流结束标记
//  8. 其余响应 (含未知 message_type) → 一次性消息
//
// 形状不符的事件一律丢弃, 绝不使会话失败。
func Classify(ev *protocol.Event) EventClass {
	if ev == nil {
		return ClassDrop
	}

	switch ev.Type {
	case protocol.EventClientToolCall:
		if ev.ClientToolCall == nil {
			return ClassDrop
		}
		return ClassClientToolStart
	case protocol.EventError:
		return ClassError
	case protocol.EventResponse:
		// fallthrough to message inspection below
	default:
		return ClassDrop
	}

	resp := ev.Response
	if resp == nil || resp.Message == nil {
		return ClassDrop
	}
	msg := resp.Message

	// 心跳怪癖: content 与 role 同时为 null
	if msg.Content == nil && msg.Role == nil {
		return ClassDrop
	}

	if len(msg.ToolCalls) > 0 && resp.MessageType == protocol.KindAccumulated {
		return ClassToolCallStart
	}
	if msg.RoleOf() == "tool" && msg.ToolCallID != "" {
		return ClassToolCallResult
	}

	switch resp.MessageType {
	case protocol.KindStream:
		return ClassStreamDelta
	case protocol.KindAccumulated:
		return ClassStreamEnd
	default:
		return ClassSingle
	}
}
