// Package store is the durable persistence collaborator: chat threads,
// messages, notifications and profile snapshots on a Pebble keyspace.
//
// Key layout:
//
//	thread:<id>                         -> Thread JSON
//	thread:<id>:msg:<padded ts>-<seq>   -> Message JSON (insertion order)
//	msgkey:<message id>                 -> full thread message key
//	pair:<lo>:<hi>                      -> thread id (symmetric pair lookup)
//	user:<id>:thread:<thread id>        -> marker (threads-for-user index)
//	dedup:<thread id>:<client key>      -> message id
//	notify:<user id>:<padded ts>-<seq>  -> Notification JSON
//	profile:<user id>                   -> Profile JSON
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/utils"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq reduces key collisions when multiple writes share a nanosecond.
var seq uint64

// ensureMu serializes first-contact thread creation: the pair lookup and
// the thread/pair/index writes are separate pebble operations, so two
// concurrent first sends between the same pair would otherwise each
// create a thread and split the conversation.
var ensureMu sync.Mutex

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

func orderedSuffix(ts int64) string {
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%020d-%06d", ts, s)
}

// pairKey builds the symmetric participant lookup key; the pair is
// unordered so both (a,b) and (b,a) resolve the same entry.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "pair:" + a + ":" + b
}

func prefixIter(prefix string) (*pebble.Iterator, error) {
	upper := append([]byte(prefix), 0xff)
	return db.NewIter(&pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper})
}

// --- Threads ---

// SaveThread writes thread metadata.
func SaveThread(t models.Thread) error {
	if db == nil {
		return notOpened()
	}
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if err := db.Set([]byte("thread:"+t.ID), b, pebble.Sync); err != nil {
		logger.Error("save_thread_failed", "thread", t.ID, "error", err)
		return err
	}
	return nil
}

// GetThread loads thread metadata by id.
func GetThread(id string) (models.Thread, error) {
	var t models.Thread
	if db == nil {
		return t, notOpened()
	}
	v, closer, err := db.Get([]byte("thread:" + id))
	if err != nil {
		return t, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &t); err != nil {
		return t, fmt.Errorf("invalid stored thread %s: %w", id, err)
	}
	return t, nil
}

// ThreadByParticipants resolves the thread shared by the two users, in
// either participant order. Returns pebble.ErrNotFound when none exists.
func ThreadByParticipants(a, b string) (models.Thread, error) {
	var t models.Thread
	if db == nil {
		return t, notOpened()
	}
	v, closer, err := db.Get([]byte(pairKey(a, b)))
	if err != nil {
		return t, err
	}
	id := string(v)
	closer.Close()
	return GetThread(id)
}

// EnsureThread returns the thread for the participant pair, creating it
// lazily on first contact. The created flag reports a fresh thread.
// Lookup and create run under ensureMu so a racing first contact from
// the counterpart resolves the same thread.
func EnsureThread(issuerID, receiverID string, chatType models.ChatType) (models.Thread, bool, error) {
	if db == nil {
		return models.Thread{}, false, notOpened()
	}
	ensureMu.Lock()
	defer ensureMu.Unlock()
	if t, err := ThreadByParticipants(issuerID, receiverID); err == nil {
		return t, false, nil
	} else if err != pebble.ErrNotFound {
		return models.Thread{}, false, err
	}
	now := time.Now().UTC().UnixNano()
	t := models.Thread{
		ID:         utils.GenThreadID(),
		IssuerID:   issuerID,
		ReceiverID: receiverID,
		Type:       chatType,
		CreatedTS:  now,
		UpdatedTS:  now,
	}
	if err := SaveThread(t); err != nil {
		return models.Thread{}, false, err
	}
	if err := db.Set([]byte(pairKey(issuerID, receiverID)), []byte(t.ID), pebble.Sync); err != nil {
		return models.Thread{}, false, err
	}
	for _, u := range []string{issuerID, receiverID} {
		if err := db.Set([]byte("user:"+u+":thread:"+t.ID), []byte{1}, pebble.Sync); err != nil {
			return models.Thread{}, false, err
		}
	}
	logger.Info("thread_created", "thread", t.ID, "issuer", issuerID, "receiver", receiverID)
	return t, true, nil
}

// TouchThread moves the thread's UpdatedTS forward.
func TouchThread(id string, ts int64) error {
	t, err := GetThread(id)
	if err != nil {
		return err
	}
	if ts > t.UpdatedTS {
		t.UpdatedTS = ts
	}
	return SaveThread(t)
}

// ThreadsForUser returns every thread the user participates in.
func ThreadsForUser(userID string) ([]models.Thread, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := "user:" + userID + ":thread:"
	iter, err := prefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Thread
	for iter.First(); iter.Valid(); iter.Next() {
		tid := string(iter.Key()[len(prefix):])
		t, terr := GetThread(tid)
		if terr != nil {
			logger.Warn("thread_index_dangling", "thread", tid, "user", userID, "error", terr)
			continue
		}
		out = append(out, t)
	}
	return out, iter.Error()
}

// PartnersOf returns the distinct counterpart user ids across all of the
// user's threads. Used by presence to scope online/offline events.
func PartnersOf(userID string) ([]string, error) {
	threads, err := ThreadsForUser(userID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, t := range threads {
		p := t.Counterpart(userID)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// --- Messages ---

// AppendMessage persists a message into its thread in insertion order and
// indexes it by id so later status transitions can find it.
func AppendMessage(m models.Message) error {
	if db == nil {
		return notOpened()
	}
	if m.Thread == "" || m.ID == "" {
		return fmt.Errorf("message requires thread and id")
	}
	key := "thread:" + m.Thread + ":msg:" + orderedSuffix(m.CreatedTS)
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), b, pebble.Sync); err != nil {
		logger.Error("append_message_failed", "thread", m.Thread, "key", key, "error", err)
		return err
	}
	if err := db.Set([]byte("msgkey:"+m.ID), []byte(key), pebble.Sync); err != nil {
		logger.Error("message_index_failed", "id", m.ID, "error", err)
		return err
	}
	logger.Info("message_saved", "thread", m.Thread, "id", m.ID, "status", string(m.Status))
	return nil
}

// GetMessage loads the message by id via the id index.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, notOpened()
	}
	kv, closer, err := db.Get([]byte("msgkey:" + id))
	if err != nil {
		return m, err
	}
	key := append([]byte{}, kv...)
	closer.Close()
	v, closer2, err := db.Get(key)
	if err != nil {
		return m, err
	}
	defer closer2.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message %s: %w", id, err)
	}
	return m, nil
}

// ListMessages returns all messages of a thread in insertion order.
func ListMessages(threadID string) ([]models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	iter, err := prefixIter("thread:" + threadID + ":msg:")
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("skip_invalid_message", "thread", threadID, "key", string(iter.Key()))
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// LatestMessage returns the newest message of a thread, or found=false
// for an empty thread.
func LatestMessage(threadID string) (models.Message, bool, error) {
	var m models.Message
	if db == nil {
		return m, false, notOpened()
	}
	iter, err := prefixIter("thread:" + threadID + ":msg:")
	if err != nil {
		return m, false, err
	}
	defer iter.Close()
	if !iter.Last() {
		return m, false, iter.Error()
	}
	if err := json.Unmarshal(iter.Value(), &m); err != nil {
		return m, false, fmt.Errorf("invalid stored message: %w", err)
	}
	return m, true, nil
}

// AdvanceMessageStatus applies a forward delivery-status transition and
// persists it in place. Backward transitions return an error and leave
// the stored message untouched.
func AdvanceMessageStatus(id string, next models.DeliveryStatus) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, notOpened()
	}
	kv, closer, err := db.Get([]byte("msgkey:" + id))
	if err != nil {
		return m, err
	}
	key := append([]byte{}, kv...)
	closer.Close()
	v, closer2, err := db.Get(key)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(v, &m); err != nil {
		closer2.Close()
		return m, fmt.Errorf("invalid stored message %s: %w", id, err)
	}
	closer2.Close()
	if err := m.Advance(next); err != nil {
		return m, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return m, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set(key, b, pebble.Sync); err != nil {
		logger.Error("advance_status_failed", "id", id, "error", err)
		return m, err
	}
	logger.Info("message_status_advanced", "id", id, "status", string(next))
	return m, nil
}

// MarkThreadRead transitions every message in the thread addressed to
// userID that is not yet read to read. Returns the number changed.
func MarkThreadRead(threadID, userID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	prefix := "thread:" + threadID + ":msg:"
	iter, err := prefixIter(prefix)
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	changed := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.ReceiverID != userID || !m.Status.CanAdvance(models.StatusRead) {
			continue
		}
		m.Status = models.StatusRead
		b, merr := json.Marshal(m)
		if merr != nil {
			return changed, merr
		}
		key := append([]byte{}, iter.Key()...)
		if err := db.Set(key, b, pebble.Sync); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		logger.Info("thread_marked_read", "thread", threadID, "user", userID, "count", changed)
	}
	return changed, iter.Error()
}

// CountUnread counts messages in the thread addressed to userID that the
// user has not read yet.
func CountUnread(threadID, userID string) (int, error) {
	msgs, err := ListMessages(threadID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if m.ReceiverID == userID && (m.Status == models.StatusSent || m.Status == models.StatusDelivered) {
			n++
		}
	}
	return n, nil
}

// CountUnreadForUser sums per-thread unread counts across every thread
// the user participates in.
func CountUnreadForUser(userID string) (int, error) {
	threads, err := ThreadsForUser(userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, t := range threads {
		n, cerr := CountUnread(t.ID, userID)
		if cerr != nil {
			return total, cerr
		}
		total += n
	}
	return total, nil
}

// --- Idempotency ---

// SaveDedup records the message persisted for a client-supplied
// idempotency key within a thread.
func SaveDedup(threadID, clientKey, msgID string) error {
	if db == nil {
		return notOpened()
	}
	return db.Set([]byte("dedup:"+threadID+":"+clientKey), []byte(msgID), pebble.Sync)
}

// LookupDedup returns the message id previously stored for the client
// key, or found=false.
func LookupDedup(threadID, clientKey string) (string, bool, error) {
	if db == nil {
		return "", false, notOpened()
	}
	v, closer, err := db.Get([]byte("dedup:" + threadID + ":" + clientKey))
	if err == pebble.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	id := string(v)
	closer.Close()
	return id, true, nil
}

// --- Notifications ---

// SaveNotification appends a notification for its user.
func SaveNotification(n models.Notification) error {
	if db == nil {
		return notOpened()
	}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	key := "notify:" + n.UserID + ":" + orderedSuffix(n.CreatedTS)
	if err := db.Set([]byte(key), b, pebble.Sync); err != nil {
		logger.Error("save_notification_failed", "user", n.UserID, "error", err)
		return err
	}
	return nil
}

// CountUnreadNotifications counts the user's unread notifications.
func CountUnreadNotifications(userID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	iter, err := prefixIter("notify:" + userID + ":")
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var nt models.Notification
		if err := json.Unmarshal(iter.Value(), &nt); err != nil {
			continue
		}
		if !nt.Read {
			n++
		}
	}
	return n, iter.Error()
}

// PurgeReadNotificationsBefore removes read notifications created before
// the cutoff (ns). Returns the number removed.
func PurgeReadNotificationsBefore(cutoff int64) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	iter, err := prefixIter("notify:")
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	removed := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var nt models.Notification
		if err := json.Unmarshal(iter.Value(), &nt); err != nil {
			continue
		}
		if !nt.Read || nt.CreatedTS >= cutoff {
			continue
		}
		key := append([]byte{}, iter.Key()...)
		if err := db.Delete(key, pebble.Sync); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Error()
}

// --- Profiles ---

// SaveProfile stores the public profile snapshot captured at auth time.
func SaveProfile(p models.Profile) error {
	if db == nil {
		return notOpened()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return db.Set([]byte("profile:"+p.UserID), b, pebble.Sync)
}

// GetProfile loads a user's public profile; absent users yield a bare
// profile carrying only the id so projections always have a shape.
func GetProfile(userID string) models.Profile {
	if db == nil {
		return models.Profile{UserID: userID}
	}
	v, closer, err := db.Get([]byte("profile:" + userID))
	if err != nil {
		return models.Profile{UserID: userID}
	}
	defer closer.Close()
	var p models.Profile
	if err := json.Unmarshal(v, &p); err != nil {
		return models.Profile{UserID: userID}
	}
	return p
}

// IsNotFound reports whether err is the store's missing-record error.
func IsNotFound(err error) bool { return err == pebble.ErrNotFound }
