package utils

import "github.com/google/uuid"

// GenMessageID returns a new message identifier.
func GenMessageID() string { return "msg-" + uuid.NewString() }

// GenThreadID returns a new thread identifier.
func GenThreadID() string { return "chat-" + uuid.NewString() }

// GenConnectionID returns a new transport-level connection identifier.
func GenConnectionID() string { return "conn-" + uuid.NewString() }

// GenNotificationID returns a new notification identifier.
func GenNotificationID() string { return "ntf-" + uuid.NewString() }
