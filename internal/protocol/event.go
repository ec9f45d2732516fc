// Package protocol 定义与研究 Agent 后端之间的 WebSocket 事件协议。
//
// 单条持久双工通道上传输 AgentEvent 信封, 按 Type 区分:
//   - request / response: 常规请求与 (流式) 响应
//   - error: 后端显式错误
//   - client_tool_call / client_tool_result: 需要客户端人工介入的工具调用
//   - signal: 控制信号 (stop 等)
package protocol

// EventType AgentEvent 信封的判别字段。
type EventType string

const (
	EventRequest          EventType = "request"
	EventResponse         EventType = "response"
	EventError            EventType = "error"
	EventSignal           EventType = "signal"
	EventClientToolCall   EventType = "client_tool_call"
	EventClientToolResult EventType = "client_tool_result"

	// EventPing / EventPong 通道级心跳帧, 在传输层就地应答, 不进入事件流。
	EventPing EventType = "ping"
	EventPong EventType = "pong"
)

// MessageKind 响应内容的三种送达模式。
type MessageKind string

const (
	// KindStream 增量 delta, 需与同一 correlation id 的已有内容合并。
	KindStream MessageKind = "stream"
	// KindAccumulated 流结束标记 (或携带 tool_calls 的完整累积消息)。
	KindAccumulated MessageKind = "accumulated"
	// KindFinal 一次性完整消息。
	KindFinal MessageKind = "final"
)

// RunStatus Agent 的运行状态。
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusFinished RunStatus = "finished"
	StatusStopped  RunStatus = "stopped"
	StatusError    RunStatus = "error"
)

// Event 后端下行 (及客户端上行) 的统一事件信封。
type Event struct {
	EventID          string           `json:"event_id,omitempty"`
	TaskID           string           `json:"task_id,omitempty"`
	Type             EventType        `json:"type"`
	AgentName        string           `json:"agent_name,omitempty"`
	Request          *AgentRequest    `json:"request,omitempty"`
	Response         *AgentResponse   `json:"response,omitempty"`
	Error            string           `json:"error,omitempty"`
	ClientToolCall   *ClientToolCall  `json:"client_tool_call,omitempty"`
	ClientToolResult *ClientToolReply `json:"client_tool_result,omitempty"`
}

// AgentRequest 上行请求: 用户输入的一轮对话。
type AgentRequest struct {
	Messages []ChatMessage  `json:"messages,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AgentResponse 下行响应载荷。MessageType 决定合并行为 (见 MessageKind)。
type AgentResponse struct {
	AgentName   string         `json:"agent_name,omitempty"`
	Message     *ChatMessage   `json:"message,omitempty"`
	MessageType MessageKind    `json:"message_type,omitempty"`
	Status      RunStatus      `json:"status,omitempty"`
	ErrorMsg    string         `json:"error_msg,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ChatMessage 对话消息。ID 为后端分配的 correlation id, 同一逻辑消息的
// 多个事件共享同一 ID。
//
// Role 与 Content 均可为 null: 两者同时为 null 的事件是后端的心跳怪癖,
// 接收侧直接丢弃。Content 的动态形状 (string / block 数组 / null / 其他)
// 由 reconcile 侧的分段器解释。
type ChatMessage struct {
	ID         string     `json:"id,omitempty"`
	Role       *string    `json:"role"`
	Content    any        `json:"content"`
	Reasoning  *string    `json:"reasoning,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// RoleOf 返回解引用后的角色, null 时返回空串。
func (m *ChatMessage) RoleOf() string {
	if m == nil || m.Role == nil {
		return ""
	}
	return *m.Role
}

// ToolCall Agent 发起的一次工具调用。Arguments 为 JSON 编码字符串。
type ToolCall struct {
	ID       string   `json:"id"`
	Index    int      `json:"index,omitempty"`
	Type     string   `json:"type,omitempty"`
	Function Function `json:"function"`
}

// Function 工具调用的函数签名。
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ClientToolKind 客户端工具调用的类别。
type ClientToolKind string

const (
	ClientToolAgent    ClientToolKind = "agent"
	ClientToolTool     ClientToolKind = "tool"
	ClientToolAskInput ClientToolKind = "ask_input"
)

// ClientToolCall 后端要求由客户端 (人工) 完成的工具调用。
type ClientToolCall struct {
	ToolCallID string         `json:"tool_call_id"`
	Function   Function       `json:"function"`
	Type       ClientToolKind `json:"type,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// ClientToolReply 客户端对 ClientToolCall 的上行回复。
type ClientToolReply struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}
