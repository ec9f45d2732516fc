package toolview

import "strings"

// FileEntry list 动作结果中的一个目录项。
type FileEntry struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     string `json:"size"`
	Modified string `json:"modified"`
}

// FileResult file 工具 (read/write/append/list/stat) 的结果。
// Entries 仅在 list 动作时填充; Content 为 read 动作的围栏内文本。
type FileResult struct {
	Action   string      `json:"action"`
	Path     string      `json:"path,omitempty"`
	Size     string      `json:"size,omitempty"`
	Error    string      `json:"error,omitempty"`
	Note     string      `json:"note,omitempty"`
	Message  string      `json:"message,omitempty"`
	Modified string      `json:"modified,omitempty"`
	Created  string      `json:"created,omitempty"`
	Content  string      `json:"content,omitempty"`
	Entries  []FileEntry `json:"entries,omitempty"`
}

// ParseFile 解析 file 工具输出:
//
//	<file_result>
//	action: read
//	path: /tmp/a.txt
//	size: 1.2 KB
//	note: ...        (可选)
//
//	```
//	文件内容
//	```
//	</file_result>
//
// list 动作携带 "name | type | size | modified" 表格, stat 携带
// modified/created 行, 错误变体携带 "error: ..." 行。
// 必须解析出 action 行才算成功。
func ParseFile(raw string) (*FileResult, bool) {
	body, ok := firstTag(raw, "file_result")
	if !ok {
		return nil, false
	}

	res := &FileResult{}
	lines := strings.Split(body, "\n")

	inFence := false
	var fence []string
	inTable := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// read 动作的围栏内容
		if trimmed == "```" {
			if inFence {
				res.Content = strings.Join(fence, "\n")
			}
			inFence = !inFence
			continue
		}
		if inFence {
			fence = append(fence, line)
			continue
		}

		// list 动作的目录表格
		if trimmed == "name | type | size | modified" {
			inTable = true
			continue
		}
		if inTable {
			if strings.HasPrefix(trimmed, "---") || trimmed == "" {
				continue
			}
			cols := strings.Split(trimmed, " | ")
			if len(cols) == 4 {
				res.Entries = append(res.Entries, FileEntry{
					Name:     cols[0],
					Type:     cols[1],
					Size:     cols[2],
					Modified: cols[3],
				})
				continue
			}
			inTable = false
		}

		key, value, found := strings.Cut(trimmed, ": ")
		if !found {
			continue
		}
		switch key {
		case "action":
			res.Action = value
		case "path":
			res.Path = value
		case "size":
			res.Size = value
		case "error":
			res.Error = value
		case "note":
			res.Note = value
		case "message":
			res.Message = value
		case "modified":
			res.Modified = value
		case "created":
			res.Created = value
		case "entries":
			// "entries: showing N item(s)" 行只是提示, 跳过
		}
	}

	if res.Action == "" {
		return nil, false
	}
	return res, true
}
