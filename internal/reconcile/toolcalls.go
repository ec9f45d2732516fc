// toolcalls.go — 工具结果载荷的归一化与类型化视图导出。
package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/stepfun-ai/StepDeepResearch/internal/reconcile/toolview"
)

// ToolView 工具结果的类型化视图 (toolview.Result 的别名, 方便调用方
// 不直接依赖子包)。
type ToolView = toolview.Result

// normalizeResultContent 把工具结果的动态 content 载荷拍平成单个字符串:
// string 原样; block 数组抽取各块文本按行拼接; null 为空串;
// 其他形状 JSON 序列化兜底。
func normalizeResultContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var parts []string
		for _, entry := range v {
			switch e := entry.(type) {
			case string:
				if e != "" {
					parts = append(parts, e)
				}
			case map[string]any:
				if s, ok := e["text"].(string); ok && s != "" {
					parts = append(parts, s)
				} else if s, ok := e["thinking"].(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
