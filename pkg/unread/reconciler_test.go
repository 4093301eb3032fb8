package unread

import (
	"errors"
	"sync"
	"testing"
	"time"

	"chatrelay/pkg/events"
	"chatrelay/pkg/models"
	"chatrelay/pkg/notify"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
	"chatrelay/pkg/tasks"
	"chatrelay/pkg/utils"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames []events.Envelope
}

func (f *fakeTransport) Alive() bool { return true }

func (f *fakeTransport) Enqueue(v any) bool {
	env, ok := v.(events.Envelope)
	if !ok {
		return false
	}
	f.mu.Lock()
	f.frames = append(f.frames, env)
	f.mu.Unlock()
	return true
}

func (f *fakeTransport) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.frames {
		if e.Event == event {
			n++
		}
	}
	return n
}

func newTestReconciler(t *testing.T) (*Reconciler, *registry.Memory) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	runner := tasks.NewRunner(1, 16)
	t.Cleanup(runner.Close)
	reg := registry.NewMemory()
	return NewReconciler(reg, notify.NewService(runner)), reg
}

func seedMessage(t *testing.T, thread, issuer, receiver, body string) models.Message {
	t.Helper()
	m := models.Message{
		ID:         utils.GenMessageID(),
		Thread:     thread,
		IssuerID:   issuer,
		ReceiverID: receiver,
		Body:       body,
		Type:       models.MessageNormal,
		Status:     models.StatusSent,
		CreatedTS:  time.Now().UTC().UnixNano(),
	}
	if err := store.AppendMessage(m); err != nil {
		t.Fatalf("append: %v", err)
	}
	return m
}

func TestMarkReadPushesBothParticipants(t *testing.T) {
	r, reg := newTestReconciler(t)
	th, _, err := store.EnsureThread("alice", "bob", models.ChatDirect)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	seedMessage(t, th.ID, "alice", "bob", "m1")
	seedMessage(t, th.ID, "alice", "bob", "m2")

	bob := &fakeTransport{}
	reg.Register(models.ConnectionEntry{ConnectionID: "c-bob", UserID: "bob"}, bob)

	if err := r.MarkRead(th.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	if n, _ := store.CountUnread(th.ID, "bob"); n != 0 {
		t.Fatalf("unread after mark = %d", n)
	}
	// bob's live connection gets both refreshed views
	if bob.count(events.EvtGetChats) != 1 {
		t.Fatalf("chat list pushes = %d, want 1", bob.count(events.EvtGetChats))
	}
	if bob.count(events.EvtUnreadCount) != 1 {
		t.Fatalf("unread count pushes = %d, want 1", bob.count(events.EvtUnreadCount))
	}
}

func TestMarkReadUnknownChat(t *testing.T) {
	r, _ := newTestReconciler(t)
	if err := r.MarkRead("chat-missing", "bob"); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMarkReadNonParticipant(t *testing.T) {
	r, _ := newTestReconciler(t)
	th, _, _ := store.EnsureThread("alice", "bob", models.ChatDirect)
	if err := r.MarkRead(th.ID, "carol"); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("expected not-found for non-participant, got %v", err)
	}
}

func TestSnapshotAggregates(t *testing.T) {
	r, _ := newTestReconciler(t)
	th, _, _ := store.EnsureThread("alice", "bob", models.ChatDirect)
	seedMessage(t, th.ID, "alice", "bob", "m1")
	seedMessage(t, th.ID, "alice", "bob", "m2")
	if err := store.SaveNotification(models.Notification{
		ID: utils.GenNotificationID(), UserID: "bob", CreatedTS: time.Now().UnixNano(),
	}); err != nil {
		t.Fatalf("notification: %v", err)
	}

	snap, err := r.Snapshot("bob")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.UserID != "bob" || snap.UnreadMessagesCount != 2 || snap.UnreadNotificationsCount != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPushSkipsOfflineUser(t *testing.T) {
	r, _ := newTestReconciler(t)
	th, _, _ := store.EnsureThread("alice", "bob", models.ChatDirect)
	seedMessage(t, th.ID, "alice", "bob", "m1")
	// nobody is connected; the push must be a silent no-op
	r.SyncThread(th)
}
