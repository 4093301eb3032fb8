// Package notify is the notification collaborator. Creation is always
// best-effort: callers go through the fire-and-forget runner and a
// storage failure never fails the operation that triggered it.
package notify

import (
	"time"

	"chatrelay/pkg/models"
	"chatrelay/pkg/store"
	"chatrelay/pkg/tasks"
	"chatrelay/pkg/utils"
)

// Service creates notifications asynchronously.
type Service struct {
	runner *tasks.Runner
}

// NewService wires the collaborator onto the shared task runner.
func NewService(runner *tasks.Runner) *Service {
	return &Service{runner: runner}
}

// Create enqueues a notification write. It returns immediately; the
// persist happens on the runner and its failure is only logged.
func (s *Service) Create(userID, fromUserID, typ, title, body string, metadata map[string]string) {
	n := models.Notification{
		ID:         utils.GenNotificationID(),
		UserID:     userID,
		FromUserID: fromUserID,
		Type:       typ,
		Title:      title,
		Body:       body,
		Metadata:   metadata,
		CreatedTS:  time.Now().UTC().UnixNano(),
	}
	s.runner.Submit("notification_create", func() error {
		return store.SaveNotification(n)
	})
}

// UnreadCount reports the user's unread notification total.
func (s *Service) UnreadCount(userID string) (int, error) {
	return store.CountUnreadNotifications(userID)
}
