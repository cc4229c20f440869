// ABOUTME: Tests for validation helpers and ValidationError matching
// ABOUTME: Covers username, email and length rules

package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("registering: %w", New("username", "auth.required_fields"))

	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, "auth.required_fields", Key(err))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "username", verr.Field)
}

func TestKey_NonValidationError(t *testing.T) {
	assert.Equal(t, "", Key(errors.New("boom")))
	assert.Equal(t, "", Key(nil))
}

func TestRequired(t *testing.T) {
	v, err := Required("content", "  hi  ", "k")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, err = Required("content", " \t ", "k")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ana", true},
		{"ana.souza-2_x", true},
		{"an", false},
		{"this_username_is_way_too_long_to_be_ok", false},
		{"ana souza", false},
		{"ana!", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidUsername(tt.in); got != tt.want {
			t.Errorf("ValidUsername(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ana@example.com"))
	assert.False(t, ValidEmail("Ana <ana@example.com>"))
	assert.False(t, ValidEmail("ana@localhost"))
	assert.False(t, ValidEmail("not-an-email"))
}

func TestTrimAndLimit(t *testing.T) {
	assert.Equal(t, "abc", TrimAndLimit("  abc  ", 0))
	assert.Equal(t, "ab", TrimAndLimit("abc", 2))
	assert.Equal(t, "ção", TrimAndLimit("çãoxyz", 3))
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "Ana", NormalizeUsername("  Ana\n"))
}
