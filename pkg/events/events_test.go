package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestErrorEventName(t *testing.T) {
	if got := ErrorEvent(EvtSendMessage); got != "send-message-error" {
		t.Fatalf("got %q", got)
	}
	if got := ErrorEvent(EvtMessageRead); got != "messageRead-error" {
		t.Fatalf("got %q", got)
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: user_id required", ErrValidation), "VALIDATION_ERROR"},
		{fmt.Errorf("%w: bad token", ErrAuthentication), "AUTHENTICATION_ERROR"},
		{fmt.Errorf("%w: chat x", ErrNotFound), "NOT_FOUND"},
		{fmt.Errorf("%w: disk", ErrPersistence), "PERSISTENCE_ERROR"},
		{errors.New("something else"), "INTERNAL_ERROR"},
	}
	for _, c := range cases {
		if got := CodeFor(c.err); got != c.code {
			t.Fatalf("CodeFor(%v) = %s, want %s", c.err, got, c.code)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EvtSendMessage, SendMessagePayload{IssuerID: "a", ReceiverID: "b", Body: "hi"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Event != EvtSendMessage {
		t.Fatalf("event = %q", decoded.Event)
	}
	var p SendMessagePayload
	if err := json.Unmarshal(decoded.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.IssuerID != "a" || p.ReceiverID != "b" || p.Body != "hi" {
		t.Fatalf("payload mismatch: %+v", p)
	}
}

func TestEnvelopeNilPayload(t *testing.T) {
	env, err := NewEnvelope(EvtPong, nil)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.Payload != nil {
		t.Fatalf("expected empty payload, got %s", env.Payload)
	}
}
