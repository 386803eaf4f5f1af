// services/errors.go
package services

import (
	"errors"
	"strings"
)

// Domain error taxonomy. Handlers translate these to HTTP statuses.
var (
	// ErrDuplicateCompletion: the (user, challenge) pair already has a
	// completion record. The original record is kept untouched.
	ErrDuplicateCompletion = errors.New("challenge already completed by this user")

	ErrQuestNotFound     = errors.New("quest not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrUserNotFound      = errors.New("user not found")

	// ErrQuestInactive: completions are rejected for challenges whose
	// parent quest is not active.
	ErrQuestInactive = errors.New("quest is not active")
)

// IsTransient reports whether err looks like a recoverable persistence or
// network failure (connection drops, timeouts, serialization conflicts).
// Handlers map these to 503 so callers know a retry is worthwhile; anything
// else is treated as permanent. Background workers retry unconditionally
// and lean on their attempt ceilings instead.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"deadline exceeded",
		"too many connections",
		"deadlock",
		"serialization",
		"database is locked",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
