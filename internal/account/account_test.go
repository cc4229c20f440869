// ABOUTME: Tests for account registration, login and lookups
// ABOUTME: Runs against the in-memory record store with a cheap bcrypt cost

package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

func newTestService(t *testing.T) (*Service, store.RecordStore) {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, store.EnsureSchema(context.Background(), s))
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return NewService(s, WithHashCost(bcrypt.MinCost), WithClock(clock)), s
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ana", "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "2024-05-01T12:00:00.000000", user.CreatedAt)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ana", "", "password1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "  ana ", "", "password2")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	records, err := s.ScanAll(ctx, store.TableUsers)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
		key      string
	}{
		{"missing username", "  ", "", "password1", "username", "auth.required_fields"},
		{"missing password", "ana", "", "", "password", "auth.required_fields"},
		{"bad username", "a b", "", "password1", "username", "auth.invalid_username"},
		{"short password", "ana", "", "123", "password", "auth.password_too_short"},
		{"long password", "ana", "", strings.Repeat("a", 80), "password", "auth.password_too_long"},
		{"bad email", "ana", "nope", "password1", "email", "auth.invalid_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			var verr *validation.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.key, verr.Key)
		})
	}
}

func TestLookups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ana, err := svc.Register(ctx, "ana", "", "password1")
	require.NoError(t, err)
	bo, err := svc.Register(ctx, "bo_2", "", "password1")
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, bo.ID)
	require.NoError(t, err)
	assert.Equal(t, "bo_2", got.Username)

	got, err = svc.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, got.ID)

	_, err = svc.GetByUsername(ctx, "ANA")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetByID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err := svc.Usernames(ctx, []string{ana.ID, bo.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ana.ID: "ana", bo.ID: "bo_2"}, names)
}

func TestRegister_StoreFailure(t *testing.T) {
	// no schema ensured: the users table does not exist
	svc := NewService(store.NewMemoryStore(), WithHashCost(bcrypt.MinCost))

	_, err := svc.Register(context.Background(), "ana", "", "password1")
	assert.ErrorIs(t, err, store.ErrUnknownTable)
	assert.NotErrorIs(t, err, validation.ErrInvalid)
}
