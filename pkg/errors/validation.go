package errors

import (
	"strings"
	"unicode"
)

// MaxIDLength is the longest node id accepted from requests, matching the
// limit enforced by the family tree API.
const MaxIDLength = 64

// ValidateID validates a node id received from a request or an event.
// It rejects ids that could not have come from the payload source:
//   - empty ids
//   - control characters or null bytes
//   - path separators and traversal sequences
//   - ids longer than MaxIDLength
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "%s id cannot be empty", kind)
	}
	if len(id) > MaxIDLength {
		return New(ErrCodeInvalidInput, "%s id too long (max %d characters)", kind, MaxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s id contains invalid control characters", kind)
		}
	}
	for _, pattern := range []string{"..", "/", "\\"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidInput, "%s id contains invalid characters: %q", kind, pattern)
		}
	}
	return nil
}
