package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPreviewSerializesAllFields(t *testing.T) {
	p := NewPreview(Message{ID: "msg-1", IssuerID: "alice", ReceiverID: "bob", Status: StatusSent}, 0)
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// zero unread and default status must still appear on the wire
	for _, field := range []string{"unread_count", "delivery_status"} {
		if !strings.Contains(string(b), field) {
			t.Fatalf("preview JSON missing %s: %s", field, b)
		}
	}
}

func TestSummaryNullPreview(t *testing.T) {
	s := ChatSummary{ChatID: "chat-1", ChatType: ChatDirect}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"previous_message":null`) {
		t.Fatalf("empty thread must serialize previous_message as null: %s", b)
	}
}
