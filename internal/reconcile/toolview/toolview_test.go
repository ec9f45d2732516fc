// toolview_test.go — 五种结构化工具结果解析器的格式夹具测试。
package toolview

import (
	"strings"
	"testing"
)

// ========================================
// Recognize
// ========================================

func TestRecognize(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		args     string
		want     Kind
	}{
		{"todo", "todo", "{}", KindTodo},
		{"shell", "shell", `{"cmd":"ls"}`, KindShell},
		{"file", "file", `{"action":"read"}`, KindFile},
		{"surfer_search", "batch_web_surfer", `{"action":"batch_search","queries":["q"]}`, KindSearch},
		{"surfer_open", "batch_web_surfer", `{"action":"batch_open","urls":["u"]}`, KindOpen},
		{"surfer_unknown_action", "batch_web_surfer", `{"action":"teleport"}`, KindGeneric},
		{"surfer_bad_json", "batch_web_surfer", "not json", KindGeneric},
		{"unknown_tool", "calculator", "{}", KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recognize(tt.toolName, tt.args); got != tt.want {
				t.Errorf("Recognize(%q) = %s, want %s", tt.toolName, got, tt.want)
			}
		})
	}
}

// ========================================
// shell
// ========================================

func TestParseShell(t *testing.T) {
	raw := "<cmd>ls -la</cmd>\n<exit_code>2</exit_code>\n<stdout>total 0\n</stdout>\n<stderr>ls: nope\n</stderr>\n<message>command failed</message>"
	res, ok := ParseShell(raw)
	if !ok {
		t.Fatal("ParseShell failed")
	}
	if res.Cmd != "ls -la" {
		t.Errorf("Cmd = %q", res.Cmd)
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}
	if res.Stdout != "total 0" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Stderr != "ls: nope" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
	if res.Message != "command failed" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestParseShellMissingMarkers(t *testing.T) {
	if _, ok := ParseShell("plain text output"); ok {
		t.Error("ParseShell should fail without markers")
	}
	if _, ok := ParseShell("<cmd>ls</cmd>"); ok {
		t.Error("ParseShell should require exit_code")
	}
}

// ========================================
// batch_search
// ========================================

const searchFixture = `<batch_search_results>
<batch_metadata>
共 2 个查询，3 个搜索结果
</batch_metadata>
<query_result index="1">
<query_metadata>
<query>go generics</query>
<result_count>2</result_count>
</query_metadata>
<items>
<item index="1">
<cite_index>web_11aa22bb</cite_index>
<title>An Introduction To Generics</title>
<url>https://go.dev/blog/intro-generics</url>
<site>go.dev</site>
<published_time>2022-03-22</published_time>
<snippet>
type parameters in Go
</snippet>
<content>
full content here
<full_content_file>内容因过长被截断，完整内容请查看临时文件：/tmp/x.md</full_content_file>
</content>
</item>
<item index="2">
<cite_index>web_33cc44dd</cite_index>
<title>Generics FAQ</title>
<url>https://go.dev/doc/faq</url>
</item>
</items>
</query_result>
<query_result index="2">
<query_metadata>
<query>empty query</query>
<result_count>0</result_count>
</query_metadata>
<no_results_found>查询 'empty query' 没有发现搜索结果！</no_results_found>
</query_result>
</batch_search_results>`

func TestParseBatchSearch(t *testing.T) {
	res, ok := ParseBatchSearch(searchFixture)
	if !ok {
		t.Fatal("ParseBatchSearch failed")
	}
	if len(res.Queries) != 2 {
		t.Fatalf("len(queries) = %d, want 2", len(res.Queries))
	}

	q := res.Queries[0]
	if q.Query != "go generics" || q.ResultCount != 2 {
		t.Errorf("query meta = %+v", q)
	}
	if len(q.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(q.Items))
	}

	item := q.Items[0]
	if item.CiteIndex != "web_11aa22bb" {
		t.Errorf("CiteIndex = %q", item.CiteIndex)
	}
	if item.URL != "https://go.dev/blog/intro-generics" {
		t.Errorf("URL = %q", item.URL)
	}
	if item.Site != "go.dev" || item.PublishedTime != "2022-03-22" {
		t.Errorf("site/time = %q/%q", item.Site, item.PublishedTime)
	}
	if item.Snippet != "type parameters in Go" {
		t.Errorf("Snippet = %q", item.Snippet)
	}
	// 截断提示标签被剥掉
	if strings.Contains(item.Content, "full_content_file") || !strings.Contains(item.Content, "full content here") {
		t.Errorf("Content = %q", item.Content)
	}

	if res.Queries[1].ResultCount != 0 || len(res.Queries[1].Items) != 0 {
		t.Errorf("empty query block = %+v", res.Queries[1])
	}
}

func TestParseBatchSearchWithoutWrapper(t *testing.T) {
	if _, ok := ParseBatchSearch("<items><item></item></items>"); ok {
		t.Error("ParseBatchSearch should require the wrapper tag")
	}
}

// ========================================
// batch_open
// ========================================

const openFixture = `<batch_open_results>
<batch_metadata>
<total_urls>2</total_urls>
<success_count>1</success_count>
<failure_count>1</failure_count>
</batch_metadata>
<url_result index="1">
<page_metadata>
<url>https://example.com/post</url>
<host>example.com</host>
<site>Example</site>
</page_metadata>
<title>A Post</title>
<snippet>
short summary
</snippet>
<content>
# Heading

body text
</content>
</url_result>
<url_result index="2">
<error>
<code>404</code>
<message>page not found</message>
<failed_url>https://example.com/missing</failed_url>
</error>
</url_result>
</batch_open_results>`

func TestParseBatchOpen(t *testing.T) {
	res, ok := ParseBatchOpen(openFixture)
	if !ok {
		t.Fatal("ParseBatchOpen failed")
	}
	if res.TotalURLs != 2 || res.SuccessCount != 1 || res.FailureCount != 1 {
		t.Errorf("meta = %+v", res)
	}
	if len(res.Pages) != 2 {
		t.Fatalf("len(pages) = %d, want 2", len(res.Pages))
	}

	page := res.Pages[0]
	if !page.Success {
		t.Error("page 1 should be success")
	}
	if page.URL != "https://example.com/post" || page.Host != "example.com" || page.Site != "Example" {
		t.Errorf("page meta = %+v", page)
	}
	if page.Title != "A Post" || page.Snippet != "short summary" {
		t.Errorf("title/snippet = %q/%q", page.Title, page.Snippet)
	}
	if !strings.Contains(page.Content, "body text") {
		t.Errorf("Content = %q", page.Content)
	}

	failed := res.Pages[1]
	if failed.Success {
		t.Error("page 2 should be failure (error marker present)")
	}
	if failed.Error != "page not found" || failed.URL != "https://example.com/missing" {
		t.Errorf("failed page = %+v", failed)
	}
}

// ========================================
// todo
// ========================================

const todoFixture = `<todo_result>
📊 Total: 3 tasks
Status: ✅ 1 | 🔄 1 | ⏳ 1
============================================================

✅ Step 1: 调研数据来源 🟡
  📝 整理候选网站清单
  created_at: 2026-08-30T10:00:00
  completed_at: 2026-08-30T12:00:00

🔄 Step 2: 撰写初稿 🟠
  🔗 Depends on: [1]
  🏷️  #writing, #draft

⏳ Step 3: 终审
</todo_result>`

func TestParseTodo(t *testing.T) {
	res, ok := ParseTodo(todoFixture)
	if !ok {
		t.Fatal("ParseTodo failed")
	}
	if res.Total != 3 || len(res.Items) != 3 {
		t.Fatalf("total=%d items=%d, want 3/3", res.Total, len(res.Items))
	}

	first := res.Items[0]
	if first.Step != "1" || first.Status != "completed" || first.Priority != "medium" {
		t.Errorf("item 1 = %+v", first)
	}
	if first.Title != "调研数据来源" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Details != "整理候选网站清单" {
		t.Errorf("details = %q", first.Details)
	}
	if first.Timestamps["created_at"] != "2026-08-30T10:00:00" {
		t.Errorf("timestamps = %v", first.Timestamps)
	}

	second := res.Items[1]
	if second.Status != "in_progress" || second.Priority != "high" {
		t.Errorf("item 2 = %+v", second)
	}
	if len(second.DependsOn) != 1 || second.DependsOn[0] != "1" {
		t.Errorf("depends = %v", second.DependsOn)
	}
	if len(second.Tags) != 2 || second.Tags[0] != "writing" || second.Tags[1] != "draft" {
		t.Errorf("tags = %v", second.Tags)
	}

	third := res.Items[2]
	if third.Status != "pending" || third.Priority != "" || third.Title != "终审" {
		t.Errorf("item 3 = %+v", third)
	}
}

// 步骤按数值升序排序。
func TestParseTodoSortsByStep(t *testing.T) {
	raw := "<todo_result>\n⏳ Step 10: later\n✅ Step 2: earlier\n</todo_result>"
	res, ok := ParseTodo(raw)
	if !ok {
		t.Fatal("ParseTodo failed")
	}
	if res.Items[0].Step != "2" || res.Items[1].Step != "10" {
		t.Errorf("order = %v, %v", res.Items[0].Step, res.Items[1].Step)
	}
}

// 没有任何任务行时不算成功。
func TestParseTodoRequiresTaskLine(t *testing.T) {
	if _, ok := ParseTodo("<todo_result>\n📊 Total: 0 tasks\n</todo_result>"); ok {
		t.Error("ParseTodo should fail with zero task lines")
	}
}

// ========================================
// file
// ========================================

func TestParseFileRead(t *testing.T) {
	raw := "<file_result>\naction: read\npath: /tmp/notes.txt\nsize: 1.2 KB\nnote: output truncated to first 65536 bytes\n\n```\nline one\nline two\n```\n</file_result>"
	res, ok := ParseFile(raw)
	if !ok {
		t.Fatal("ParseFile failed")
	}
	if res.Action != "read" || res.Path != "/tmp/notes.txt" || res.Size != "1.2 KB" {
		t.Errorf("header = %+v", res)
	}
	if res.Note == "" {
		t.Errorf("Note = %q", res.Note)
	}
	if res.Content != "line one\nline two" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestParseFileList(t *testing.T) {
	raw := "<file_result>\naction: list\npath: /tmp\nentries: showing 2 item(s)\n\nname | type | size | modified\n" +
		strings.Repeat("-", 60) +
		"\na.txt | file | 10 B | 2026-08-30T10:00:00\nsub | dir | - | 2026-08-29T09:00:00\n</file_result>"
	res, ok := ParseFile(raw)
	if !ok {
		t.Fatal("ParseFile failed")
	}
	if res.Action != "list" {
		t.Errorf("Action = %q", res.Action)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(res.Entries))
	}
	if res.Entries[0].Name != "a.txt" || res.Entries[0].Type != "file" || res.Entries[0].Size != "10 B" {
		t.Errorf("entry 0 = %+v", res.Entries[0])
	}
	if res.Entries[1].Name != "sub" || res.Entries[1].Type != "dir" {
		t.Errorf("entry 1 = %+v", res.Entries[1])
	}
}

func TestParseFileStatAndError(t *testing.T) {
	stat := "<file_result>\naction: stat\npath: /tmp/a\nsize: 4.0 KB\nmodified: 2026-08-30T10:00:00\ncreated: 2026-08-01T08:00:00\n</file_result>"
	res, ok := ParseFile(stat)
	if !ok {
		t.Fatal("ParseFile(stat) failed")
	}
	if res.Modified == "" || res.Created == "" {
		t.Errorf("stat = %+v", res)
	}

	errRaw := "<file_result>action: read\npath: /nope\nerror: file not found</file_result>"
	res, ok = ParseFile(errRaw)
	if !ok {
		t.Fatal("ParseFile(error) failed")
	}
	if res.Error != "file not found" {
		t.Errorf("Error = %q", res.Error)
	}

	if _, ok := ParseFile("no wrapper at all"); ok {
		t.Error("ParseFile should require the wrapper tag")
	}
}

// ========================================
// Parse 分派与降级
// ========================================

func TestParseDegradesToRaw(t *testing.T) {
	res := Parse(KindShell, "not shell shaped")
	if res.Parsed {
		t.Error("Parsed = true for garbage")
	}
	if res.Kind != KindShell || res.Raw != "not shell shaped" {
		t.Errorf("degraded result = %+v", res)
	}

	generic := Parse(KindGeneric, "plain result")
	if generic.Parsed || generic.Raw != "plain result" {
		t.Errorf("generic result = %+v", generic)
	}
}
