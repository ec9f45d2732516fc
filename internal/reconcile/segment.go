// segment.go — 内容分段器: 把动态形状的 content 载荷规整为有序分段序列。
package reconcile

import (
	"encoding/json"

	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
)

// SegmentKind 分段类型。
type SegmentKind string

const (
	// SegmentText 普通正文。
	SegmentText SegmentKind = "text"
	// SegmentReasoning 思考/推理文本 (模型的 "thinking" 内容)。
	SegmentReasoning SegmentKind = "reasoning"
)

// ContentSegment 一个类型化的内容分段。
// 不变式: 消息的分段序列中绝不会出现两个相邻的同类分段 (总是被合并)。
type ContentSegment struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
}

// SegmentsFromContent 将 content 载荷转换为分段序列:
//   - string → 单个 Text 分段 (空串 → 空序列)
//   - 数组 → 逐项映射: string / {type:"text"} / 带 text 字段的对象 → Text,
//     {type:"thinking"} → Reasoning, 其余跳过; 提取出的空文本丢弃
//   - null → 空序列
//   - 其他 → JSON 序列化后的单个 Text 分段 (兜底)
func SegmentsFromContent(content any) []ContentSegment {
	switch v := content.(type) {
	case nil:
		return nil

	case string:
		if v == "" {
			return nil
		}
		return []ContentSegment{{Kind: SegmentText, Text: v}}

	case []any:
		var segs []ContentSegment
		for _, entry := range v {
			if seg, ok := segmentFromEntry(entry); ok {
				segs = appendMerged(segs, seg)
			}
		}
		return segs

	default:
		raw, err := json.Marshal(v)
		if err != nil || len(raw) == 0 {
			return nil
		}
		return []ContentSegment{{Kind: SegmentText, Text: string(raw)}}
	}
}

// segmentFromEntry 映射数组中的单个条目, 无法映射或文本为空时返回 false。
func segmentFromEntry(entry any) (ContentSegment, bool) {
	switch e := entry.(type) {
	case string:
		if e == "" {
			return ContentSegment{}, false
		}
		return ContentSegment{Kind: SegmentText, Text: e}, true

	case map[string]any:
		typ, _ := e["type"].(string)
		switch typ {
		case "thinking":
			if s, ok := e["thinking"].(string); ok && s != "" {
				return ContentSegment{Kind: SegmentReasoning, Text: s}, true
			}
		case "text":
			if s, ok := e["text"].(string); ok && s != "" {
				return ContentSegment{Kind: SegmentText, Text: s}, true
			}
		default:
			// 其他带 text 字段的对象也按正文处理
			if s, ok := e["text"].(string); ok && s != "" {
				return ContentSegment{Kind: SegmentText, Text: s}, true
			}
		}
	}
	return ContentSegment{}, false
}

// SegmentsFromMessage 提取一条消息的全部分段: reasoning 字段在前,
// content 载荷在后 (流式 delta 可能只携带其中之一)。
func SegmentsFromMessage(msg *protocol.ChatMessage) []ContentSegment {
	if msg == nil {
		return nil
	}
	var segs []ContentSegment
	if msg.Reasoning != nil && *msg.Reasoning != "" {
		segs = append(segs, ContentSegment{Kind: SegmentReasoning, Text: *msg.Reasoning})
	}
	for _, seg := range SegmentsFromContent(msg.Content) {
		segs = appendMerged(segs, seg)
	}
	return segs
}

// MergeSegments 把 incoming 拼接到 existing 之后, 并合并相邻同类分段。
// 该操作满足结合律: 先并 [A,B] 再并 [C] 与先并 [A] 再并 [B,C] 结果一致。
func MergeSegments(existing, incoming []ContentSegment) []ContentSegment {
	out := existing
	for _, seg := range incoming {
		out = appendMerged(out, seg)
	}
	return out
}

// appendMerged 追加一个分段, 与末尾同类分段做字符串拼接。
func appendMerged(segs []ContentSegment, seg ContentSegment) []ContentSegment {
	if seg.Text == "" {
		return segs
	}
	if n := len(segs); n > 0 && segs[n-1].Kind == seg.Kind {
		segs[n-1].Text += seg.Text
		return segs
	}
	return append(segs, seg)
}
