// ABOUTME: Input validation helpers and the ValidationError type
// ABOUTME: Errors carry a localization key so handlers can render a translated message

package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ErrInvalid matches every *ValidationError via errors.Is
var ErrInvalid = errors.New("invalid input")

// Length bounds: usernames count runes, passwords count bytes
const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 6
	// MaxPasswordBytes is bcrypt's input limit
	MaxPasswordBytes = 72
)

// ValidationError rejects one field of user input.
type ValidationError struct {
	// Field is the form or JSON field name
	Field string
	// Key is the localization key of the user-facing message
	Key string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Key)
}

// Is makes errors.Is(err, ErrInvalid) true for every ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// New returns a ValidationError for field with message key
func New(field, key string) *ValidationError {
	return &ValidationError{Field: field, Key: key}
}

// Key extracts the localization key of a validation failure, or "" if err is not one
func Key(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Key
	}
	return ""
}

// Required trims value and rejects it when empty
func Required(field, value, key string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", New(field, key)
	}
	return value, nil
}

// NormalizeUsername trims surrounding whitespace. Case is preserved; lookups are exact.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// ValidUsername accepts 3-32 letters, digits, '_', '.' or '-'
func ValidUsername(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// ValidEmail reports whether s is a bare address such as ana@example.com
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}

// TrimAndLimit trims s and truncates it to at most max runes. max <= 0 disables the limit.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
