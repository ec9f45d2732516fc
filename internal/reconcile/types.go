// types.go — 协调后的展示层数据模型。
package reconcile

import (
	"time"

	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
)

// MessageOrigin 消息来源。
type MessageOrigin string

const (
	OriginUser       MessageOrigin = "user"
	OriginAgent      MessageOrigin = "agent"
	OriginError      MessageOrigin = "error"
	OriginClientTool MessageOrigin = "client_tool_request"
)

// ToolCallRef 消息上挂载的工具调用引用, 与 ToolCallRecord 按 ID 一一对应。
type ToolCallRef struct {
	ID            string `json:"id"`
	FunctionName  string `json:"function_name"`
	ArgumentsJSON string `json:"arguments_json"`
}

// ClientToolRequest 人工介入请求消息的载荷。Submitted 置位后 ResultText
// 即为冻结的展示结果。
type ClientToolRequest struct {
	ToolCallID    string `json:"tool_call_id"`
	FunctionName  string `json:"function_name"`
	ArgumentsJSON string `json:"arguments_json"`
	Submitted     bool   `json:"submitted"`
	ResultText    string `json:"result_text,omitempty"`
}

// Message 协调后的逻辑消息。
//
// 顶层序列按首个贡献事件的处理顺序排列, 消息创建后位置不再变化;
// 除客户端工具去重 (见去重器) 外, 消息一经创建绝不移除, 仅内部字段
// 原地变化。ID 为本地分配, 生命周期内稳定; CorrelationID 为后端分配,
// 用于把多个事件并入同一消息, 本地合成消息无此字段。
type Message struct {
	ID            string             `json:"id"`
	Seq           int64              `json:"seq"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Origin        MessageOrigin      `json:"origin"`
	AgentName     string             `json:"agent_name,omitempty"`
	Segments      []ContentSegment   `json:"segments,omitempty"`
	ToolCalls     []ToolCallRef      `json:"tool_calls,omitempty"`
	ClientTool    *ClientToolRequest `json:"client_tool,omitempty"`
	Streaming     bool               `json:"streaming"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`

	// RawEventLog 贡献过该消息的全部事件, 按到达顺序只增不减, 供调试检视。
	RawEventLog []*protocol.Event `json:"-"`
}

// ToolStatus 工具调用生命周期状态。
type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolCompleted ToolStatus = "completed"
)

// ToolCallRecord 每个工具调用 ID 的生命周期记录。
//
// 不变式: 每个 ID 恰好创建一次, Pending→Completed 至多迁移一次,
// 永不删除。对已 Completed 记录的重复完成是 no-op。
type ToolCallRecord struct {
	ID            string     `json:"id"`
	FunctionName  string     `json:"function_name"`
	ArgumentsJSON string     `json:"arguments_json"`
	Status        ToolStatus `json:"status"`
	RawResult     string     `json:"raw_result,omitempty"`
	View          *ToolView  `json:"view,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   time.Time  `json:"completed_at,omitzero"`
}
