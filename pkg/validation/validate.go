// Package validation checks inbound socket payloads before they reach
// the pipeline. Rules are set once at startup from config.
package validation

import (
	"fmt"
	"sync"

	"chatrelay/pkg/events"
)

// Rules holds the configurable validation limits.
type Rules struct {
	// MaxBodyLen bounds message bodies in bytes; zero disables the check.
	MaxBodyLen int
}

var (
	rulesMu sync.RWMutex
	rules   Rules
)

// SetRules installs the global validation rules.
func SetRules(r Rules) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules = r
}

func getRules() Rules {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	return rules
}

// ValidateSend verifies the required fields of a send-message payload.
// The chat id may be empty (the thread is created lazily) but the rest
// must be present.
func ValidateSend(p events.SendMessagePayload) error {
	if p.IssuerID == "" {
		return fmt.Errorf("%w: issuer_id is required", events.ErrValidation)
	}
	if p.ReceiverID == "" {
		return fmt.Errorf("%w: receiver_id is required", events.ErrValidation)
	}
	if p.Body == "" {
		return fmt.Errorf("%w: message is required", events.ErrValidation)
	}
	if p.IssuerID == p.ReceiverID {
		return fmt.Errorf("%w: issuer and receiver must differ", events.ErrValidation)
	}
	if max := getRules().MaxBodyLen; max > 0 && len(p.Body) > max {
		return fmt.Errorf("%w: message exceeds %d bytes", events.ErrValidation, max)
	}
	return nil
}

// ValidateTyping verifies the routing fields of a typing payload.
func ValidateTyping(p events.TypingPayload) error {
	if p.IssuerID == "" || p.ReceiverID == "" {
		return fmt.Errorf("%w: issuer_id and receiver_id are required", events.ErrValidation)
	}
	return nil
}

// ValidateMessageRead verifies a mark-as-read payload.
func ValidateMessageRead(p events.MessageReadPayload) error {
	if p.ChatID == "" {
		return fmt.Errorf("%w: chat_id is required", events.ErrValidation)
	}
	return nil
}
