// xmltag.go — 工具结果使用的 XML 风格标记的轻量提取。
//
// 后端的格式化器按行拼接标签文本, 并非严格 XML (内容不转义、标签可带
// index 属性), 因此这里用正则做结构化标记提取而不是 encoding/xml。
package toolview

import (
	"regexp"
	"strings"
	"sync"
)

var (
	tagReMu sync.Mutex
	tagRes  = map[string]*regexp.Regexp{}
)

// tagRe 返回匹配 <name ...>...</name> 的正则 (跨行、非贪婪), 带缓存。
func tagRe(name string) *regexp.Regexp {
	tagReMu.Lock()
	defer tagReMu.Unlock()
	if re, ok := tagRes[name]; ok {
		return re
	}
	re := regexp.MustCompile(`(?s)<` + name + `\b[^>]*>(.*?)</` + name + `>`)
	tagRes[name] = re
	return re
}

// firstTag 提取首个 <name> 标签的内文 (trim 后)。未出现时返回 ("", false)。
func firstTag(s, name string) (string, bool) {
	m := tagRe(name).FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// allTags 提取所有 <name> 标签的内文。
func allTags(s, name string) []string {
	var out []string
	for _, m := range tagRe(name).FindAllStringSubmatch(s, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// stripTag 删除 s 中所有 <name> 标签及其内容。
func stripTag(s, name string) string {
	return strings.TrimSpace(tagRe(name).ReplaceAllString(s, ""))
}
