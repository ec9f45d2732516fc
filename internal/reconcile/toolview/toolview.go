// Package toolview 把后端工具结果的文本载荷解析为可结构化渲染的类型。
//
// 每种已识别的工具产出一个纯函数解析器 Parse*(string) (*T, bool), 按固定
// 优先级尝试: todo > batch_search > shell > batch_open > file > 通用。
// 按工具名识别为结构化类型但解析失败的结果, 降级为原文展示 (Parsed=false),
// 绝不静默丢弃, 也不再混入通用容器。
package toolview

import "encoding/json"

// Kind 工具结果的结构化类型。
type Kind string

const (
	KindTodo    Kind = "todo"
	KindSearch  Kind = "batch_search"
	KindShell   Kind = "shell"
	KindOpen    Kind = "batch_open"
	KindFile    Kind = "file"
	KindGeneric Kind = "generic"
)

// Recognize 按工具名 (以及 batch_web_surfer 的 action 参数) 判定结果类型。
// argumentsJSON 为工具调用的 JSON 编码参数串。
func Recognize(toolName, argumentsJSON string) Kind {
	switch toolName {
	case "todo":
		return KindTodo
	case "shell":
		return KindShell
	case "file":
		return KindFile
	case "batch_web_surfer":
		// 共享工具名, 按 action 参数二次分派
		var args struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err == nil {
			switch args.Action {
			case "batch_search":
				return KindSearch
			case "batch_open":
				return KindOpen
			}
		}
		return KindGeneric
	default:
		return KindGeneric
	}
}

// Result 一个工具结果的类型化视图。Kind 指示哪个字段有效;
// Parsed=false 表示按名识别但结构化解析失败, 此时仅 Raw 可用。
type Result struct {
	Kind   Kind          `json:"kind"`
	Parsed bool          `json:"parsed"`
	Raw    string        `json:"raw,omitempty"`
	Todo   *TodoResult   `json:"todo,omitempty"`
	Search *SearchResult `json:"search,omitempty"`
	Shell  *ShellResult  `json:"shell,omitempty"`
	Open   *OpenResult   `json:"open,omitempty"`
	File   *FileResult   `json:"file,omitempty"`
}

// Parse 按识别出的类型运行对应解析器。通用类型与解析失败都会把原文
// 保留在 Raw 中供降级展示。
func Parse(kind Kind, raw string) Result {
	res := Result{Kind: kind, Raw: raw}
	switch kind {
	case KindTodo:
		if v, ok := ParseTodo(raw); ok {
			res.Todo, res.Parsed = v, true
		}
	case KindSearch:
		if v, ok := ParseBatchSearch(raw); ok {
			res.Search, res.Parsed = v, true
		}
	case KindShell:
		if v, ok := ParseShell(raw); ok {
			res.Shell, res.Parsed = v, true
		}
	case KindOpen:
		if v, ok := ParseBatchOpen(raw); ok {
			res.Open, res.Parsed = v, true
		}
	case KindFile:
		if v, ok := ParseFile(raw); ok {
			res.File, res.Parsed = v, true
		}
	}
	return res
}
