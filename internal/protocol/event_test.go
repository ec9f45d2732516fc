// event_test.go — 信封反序列化: Role/Content 可空语义。
package protocol

import (
	"encoding/json"
	"testing"
)

func TestChatMessageNullableFields(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantRole   string
		wantIsNull bool
	}{
		{"both_null", `{"id":"m1","role":null,"content":null}`, "", true},
		{"role_set", `{"id":"m1","role":"assistant","content":"hi"}`, "assistant", false},
		{"role_absent", `{"id":"m1","content":"hi"}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m ChatMessage
			if err := json.Unmarshal([]byte(tt.raw), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if m.RoleOf() != tt.wantRole {
				t.Errorf("RoleOf() = %q, want %q", m.RoleOf(), tt.wantRole)
			}
			if (m.Role == nil && m.Content == nil) != tt.wantIsNull {
				t.Errorf("null detection mismatch: role=%v content=%v", m.Role, m.Content)
			}
		})
	}
}

func TestEventEnvelopeDecoding(t *testing.T) {
	raw := `{
		"event_id": "e1",
		"type": "response",
		"response": {
			"agent_name": "deep_research",
			"message_type": "stream",
			"message": {"id": "m1", "role": "assistant", "content": "部分"}
		}
	}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventResponse {
		t.Errorf("Type = %q, want response", ev.Type)
	}
	if ev.Response == nil || ev.Response.MessageType != KindStream {
		t.Fatalf("response payload mangled: %+v", ev.Response)
	}
	if ev.Response.Message.Content != "部分" {
		t.Errorf("content = %v", ev.Response.Message.Content)
	}
}

func TestRoleOfNilReceiver(t *testing.T) {
	var m *ChatMessage
	if got := m.RoleOf(); got != "" {
		t.Errorf("RoleOf(nil) = %q, want empty", got)
	}
}
