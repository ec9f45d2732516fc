// Package citations 维护 cite_index → 来源元数据的会话级累积存储,
// 并负责定稿文本中内联引用标记 (\cite{...}) 的解析。
//
// 写入方仅有协调器 (批量搜索结果入库); 读取方是渲染层。存储单调增长,
// 生命周期与一次连接/会话绑定, 重连时整体重建。
package citations

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Entry 一条引用来源的元数据。CiteIndex 形如 "web_1a2b3c4d"。
type Entry struct {
	CiteIndex     string `json:"cite_index"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Site          string `json:"site,omitempty"`
	PublishedTime string `json:"published_time,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
}

// Store cite_index 为键的引用存储。并发安全: 单写多读。
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore 创建空存储。
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Upsert 写入一条引用。CiteIndex 或 URL 为空的条目静默跳过 (最小有效性
// 校验); 已存在的键被覆盖 (来源数据预期稳定, 覆盖等价)。
func (s *Store) Upsert(e Entry) {
	if e.CiteIndex == "" || e.URL == "" {
		return
	}
	s.mu.Lock()
	s.entries[e.CiteIndex] = e
	s.mu.Unlock()
}

// Reset 清空全部条目 (重连换会话时调用)。
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
}

// Get 按 cite_index 查询。
func (s *Store) Get(citeIndex string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[citeIndex]
	return e, ok
}

// Len 当前条目数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All 返回全部条目的拷贝 (渲染层快照)。
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// citeMarkerRe 匹配内联引用标记, 花括号内可为逗号分隔的多个 cite_index。
var citeMarkerRe = regexp.MustCompile(`\\cite\{([^}]*)\}`)

// ResolveText 将文本中的 \cite{...} 标记替换为 markdown 链接。
// 已知的 cite_index 渲染为 [title](url); 未知的渲染为 "unknown citation"
// 占位, 绝不报错。
func (s *Store) ResolveText(text string) string {
	if !strings.Contains(text, `\cite{`) {
		return text
	}
	return citeMarkerRe.ReplaceAllStringFunc(text, func(marker string) string {
		inner := citeMarkerRe.FindStringSubmatch(marker)[1]
		var parts []string
		for _, idx := range strings.Split(inner, ",") {
			idx = strings.TrimSpace(idx)
			if idx == "" {
				continue
			}
			if e, ok := s.Get(idx); ok {
				title := e.Title
				if title == "" {
					title = e.URL
				}
				parts = append(parts, fmt.Sprintf("[%s](%s)", title, e.URL))
			} else {
				parts = append(parts, fmt.Sprintf("[unknown citation: %s]", idx))
			}
		}
		if len(parts) == 0 {
			return marker
		}
		return strings.Join(parts, " ")
	})
}
