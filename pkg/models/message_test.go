package models

import "testing"

func TestDeliveryStatusAdvance(t *testing.T) {
	m := Message{Status: StatusSent}
	if err := m.Advance(StatusDelivered); err != nil {
		t.Fatalf("sent -> delivered: %v", err)
	}
	if err := m.Advance(StatusRead); err != nil {
		t.Fatalf("delivered -> read: %v", err)
	}
	if m.Status != StatusRead {
		t.Fatalf("expected read, got %s", m.Status)
	}
	// read is terminal
	if err := m.Advance(StatusDelivered); err == nil {
		t.Fatalf("expected regression read -> delivered to fail")
	}
}

func TestDeliveryStatusSkipAhead(t *testing.T) {
	// read acknowledgements may arrive before the delivery ack
	m := Message{Status: StatusSent}
	if err := m.Advance(StatusRead); err != nil {
		t.Fatalf("sent -> read: %v", err)
	}
}

func TestDeliveryStatusRegression(t *testing.T) {
	m := Message{Status: StatusDelivered}
	if err := m.Advance(StatusSent); err == nil {
		t.Fatalf("expected regression delivered -> sent to fail")
	}
	if m.Status != StatusDelivered {
		t.Fatalf("status mutated on rejected transition: %s", m.Status)
	}
}

func TestDeliveryStatusIdempotent(t *testing.T) {
	m := Message{Status: StatusDelivered}
	if err := m.Advance(StatusDelivered); err != nil {
		t.Fatalf("same-status transition must be a no-op: %v", err)
	}
}

func TestDeliveryStatusFailed(t *testing.T) {
	m := Message{Status: StatusSent}
	if err := m.Advance(StatusFailed); err != nil {
		t.Fatalf("sent -> failed: %v", err)
	}
	if err := m.Advance(StatusDelivered); err == nil {
		t.Fatalf("failed is terminal")
	}

	m = Message{Status: StatusDelivered}
	if err := m.Advance(StatusFailed); err == nil {
		t.Fatalf("failed is only reachable from sent")
	}
}

func TestDeliveryStatusUnknown(t *testing.T) {
	m := Message{Status: StatusSent}
	if err := m.Advance("bogus"); err == nil {
		t.Fatalf("unknown status must be rejected")
	}
}

func TestThreadHelpers(t *testing.T) {
	th := Thread{ID: "chat-1", IssuerID: "alice", ReceiverID: "bob"}
	if !th.Involves("alice") || !th.Involves("bob") {
		t.Fatalf("participants not recognized")
	}
	if th.Involves("carol") {
		t.Fatalf("non-participant recognized")
	}
	if got := th.Counterpart("alice"); got != "bob" {
		t.Fatalf("counterpart of alice = %s", got)
	}
	if got := th.Counterpart("bob"); got != "alice" {
		t.Fatalf("counterpart of bob = %s", got)
	}
}
