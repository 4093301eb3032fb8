package projector

import (
	"errors"
	"testing"
	"time"

	"chatrelay/pkg/events"
	"chatrelay/pkg/models"
	"chatrelay/pkg/store"
	"chatrelay/pkg/utils"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func seedMessage(t *testing.T, thread, issuer, receiver, body string, ts int64) {
	t.Helper()
	err := store.AppendMessage(models.Message{
		ID:         utils.GenMessageID(),
		Thread:     thread,
		IssuerID:   issuer,
		ReceiverID: receiver,
		Body:       body,
		Type:       models.MessageNormal,
		Status:     models.StatusSent,
		CreatedTS:  ts,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestForUserEmptyThread(t *testing.T) {
	openTestStore(t)
	th, _, _ := store.EnsureThread("alice", "bob", models.ChatDirect)

	out, err := ForUser("alice")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("summaries = %d, want 1", len(out))
	}
	s := out[0]
	if s.ChatID != th.ID {
		t.Fatalf("chat id = %s", s.ChatID)
	}
	if s.PreviousMessage != nil {
		t.Fatalf("empty thread must have nil preview, got %+v", s.PreviousMessage)
	}
	if s.Counterpart.UserID != "bob" {
		t.Fatalf("counterpart = %+v", s.Counterpart)
	}
}

func TestForUserPreviewAndUnread(t *testing.T) {
	openTestStore(t)
	th, _, _ := store.EnsureThread("alice", "bob", models.ChatDirect)
	now := time.Now().UTC().UnixNano()
	seedMessage(t, th.ID, "alice", "bob", "first", now)
	seedMessage(t, th.ID, "alice", "bob", "second", now+1)

	// bob's view: two unread, preview is the newest message
	out, err := ForUser("bob")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	s := out[0]
	if s.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2", s.UnreadCount)
	}
	if s.PreviousMessage == nil || s.PreviousMessage.Body != "second" {
		t.Fatalf("preview = %+v", s.PreviousMessage)
	}
	if s.PreviousMessage.UnreadCount != 2 {
		t.Fatalf("preview unread = %d, want 2", s.PreviousMessage.UnreadCount)
	}
	if s.PreviousMessage.Status != models.StatusSent {
		t.Fatalf("preview status = %s", s.PreviousMessage.Status)
	}

	// alice sent everything; her unread count stays zero on the same data
	out, err = ForUser("alice")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if out[0].UnreadCount != 0 {
		t.Fatalf("alice unread = %d, want 0", out[0].UnreadCount)
	}
}

func TestForUserCounterpartProfile(t *testing.T) {
	openTestStore(t)
	_, _, _ = store.EnsureThread("alice", "bob", models.ChatDirect)
	if err := store.SaveProfile(models.Profile{UserID: "bob", Name: "Bob", Role: "seller"}); err != nil {
		t.Fatalf("profile: %v", err)
	}

	out, err := ForUser("alice")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if out[0].Counterpart.Name != "Bob" || out[0].Counterpart.Role != "seller" {
		t.Fatalf("counterpart = %+v", out[0].Counterpart)
	}
}

func TestForUserOrdering(t *testing.T) {
	openTestStore(t)
	t1, _, _ := store.EnsureThread("alice", "bob", models.ChatDirect)
	t2, _, _ := store.EnsureThread("alice", "carol", models.ChatDirect)

	// bump the first thread so it becomes the most recent
	if err := store.TouchThread(t1.ID, time.Now().UTC().UnixNano()+int64(time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	out, err := ForUser("alice")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("summaries = %d, want 2", len(out))
	}
	if out[0].ChatID != t1.ID || out[1].ChatID != t2.ID {
		t.Fatalf("order = %s, %s; want %s first", out[0].ChatID, out[1].ChatID, t1.ID)
	}
}

func TestForUserRequiresID(t *testing.T) {
	openTestStore(t)
	if _, err := ForUser(""); !errors.Is(err, events.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestForUserNoThreads(t *testing.T) {
	openTestStore(t)
	out, err := ForUser("loner")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("summaries = %d, want 0", len(out))
	}
}
