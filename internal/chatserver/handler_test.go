// handler_test.go — 浏览器 REST API 测试 (离线会话 + 直接注入事件)。
package chatserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/stepfun-ai/StepDeepResearch/internal/citations"
	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
	"github.com/stepfun-ai/StepDeepResearch/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

// newTestServer 离线会话 (无后端连接), 事件通过 Reconciler().Apply 注入。
func newTestServer() *Server {
	return NewServer(session.New("ws://127.0.0.1:1/never", nil), nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
	return resp.Data
}

func finalEvent(corrID, text string) *protocol.Event {
	role := "assistant"
	return &protocol.Event{
		EventID: "ev-" + corrID,
		Type:    protocol.EventResponse,
		Response: &protocol.AgentResponse{
			MessageType: protocol.KindFinal,
			Message:     &protocol.ChatMessage{ID: corrID, Role: &role, Content: text},
		},
	}
}

func TestListMessages(t *testing.T) {
	s := newTestServer()
	s.sess.Reconciler().Apply(finalEvent("m1", "结论已给出"))

	w := doJSON(t, s, http.MethodGet, "/api/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	msgs, ok := data["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("messages = %v, want 1 item", data["messages"])
	}
	if data["version"] == nil {
		t.Error("version missing from snapshot")
	}
}

func TestListMessagesResolveCitations(t *testing.T) {
	s := newTestServer()
	s.sess.Reconciler().Citations().Upsert(citations.Entry{
		CiteIndex: "web_ab12cd34", Title: "示例标题", URL: "https://example.com/a",
	})
	s.sess.Reconciler().Apply(finalEvent("m1", `来源见 \cite{web_ab12cd34}`))

	w := doJSON(t, s, http.MethodGet, "/api/messages?resolve=true", nil)
	data := decodeData(t, w)
	raw, _ := json.Marshal(data["messages"])
	if !bytes.Contains(raw, []byte("https://example.com/a")) {
		t.Errorf("citation not resolved: %s", raw)
	}
}

func TestSendOfflineReturnsUnavailable(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, http.MethodPost, "/api/send", map[string]string{"text": "你好"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	// 乐观追加仍然生效
	if got := len(s.sess.Reconciler().Messages()); got != 1 {
		t.Errorf("local messages = %d, want 1", got)
	}
}

func TestSendEmptyText(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, http.MethodPost, "/api/send", map[string]string{"text": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestToolResultErrorMapping(t *testing.T) {
	s := newTestServer()

	// 未知调用 → 404
	w := doJSON(t, s, http.MethodPost, "/api/toolresult",
		map[string]string{"tool_call_id": "nope", "content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown call: status = %d, want 404", w.Code)
	}

	// 注入 client tool 请求后, 离线提交 → 本地迁移成功但回执未送达 (503)
	s.sess.Reconciler().Apply(&protocol.Event{
		EventID: "ev-ct1",
		Type:    protocol.EventClientToolCall,
		ClientToolCall: &protocol.ClientToolCall{
			ToolCallID: "ct1",
			Function:   protocol.Function{Name: "ask_input", Arguments: `{}`},
		},
	})
	w = doJSON(t, s, http.MethodPost, "/api/toolresult",
		map[string]string{"tool_call_id": "ct1", "content": "继续"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("offline submit: status = %d, want 503", w.Code)
	}

	// 重复提交 → 409
	w = doJSON(t, s, http.MethodPost, "/api/toolresult",
		map[string]string{"tool_call_id": "ct1", "content": "再来"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate submit: status = %d, want 409", w.Code)
	}
}

func TestGetToolCall(t *testing.T) {
	s := newTestServer()
	s.sess.Reconciler().Apply(&protocol.Event{
		EventID: "ev-ct1",
		Type:    protocol.EventClientToolCall,
		ClientToolCall: &protocol.ClientToolCall{
			ToolCallID: "ct1",
			Function:   protocol.Function{Name: "ask_input", Arguments: `{}`},
		},
	})

	w := doJSON(t, s, http.MethodGet, "/api/toolcalls/ct1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/toolcalls/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing tool call: status = %d, want 404", w.Code)
	}
}

func TestGetStatus(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, http.MethodGet, "/api/status", nil)
	data := decodeData(t, w)
	if data["status"] != string(session.StatusDisconnected) {
		t.Errorf("status = %v, want disconnected", data["status"])
	}
	if data["task_id"] == "" {
		t.Error("task_id missing")
	}
}

// 未配置数据库时, 存档端点一律 503。
func TestArchiveDisabled(t *testing.T) {
	s := newTestServer()
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/archive"},
		{http.MethodGet, "/api/archive"},
		{http.MethodGet, "/api/archive/t1"},
	} {
		w := doJSON(t, s, tc.method, tc.path, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status = %d, want 503", tc.method, tc.path, w.Code)
		}
	}
}

func TestSequenceChangePublishedToBus(t *testing.T) {
	s := newTestServer()
	ch := s.Bus().Subscribe("t1")
	defer s.Bus().Unsubscribe("t1")

	s.sess.Reconciler().Apply(finalEvent("m1", "hi"))

	select {
	case evt := <-ch:
		if evt.Type != "sequence" {
			t.Errorf("event type = %q, want sequence", evt.Type)
		}
	default:
		t.Fatal("no bus event after sequence change")
	}
}
