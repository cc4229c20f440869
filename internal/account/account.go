// ABOUTME: User accounts stored in the users table
// ABOUTME: Registration with bcrypt hashes, password login and lookups by id or username

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/query"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

// ErrNotFound is returned when no user matches a lookup
var ErrNotFound = errors.New("user not found")

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
// It is a validation failure: errors.Is(err, validation.ErrInvalid) holds.
var ErrInvalidCredentials = validation.New("password", "auth.invalid_credentials")

// ErrUsernameTaken is returned when registering an existing username
var ErrUsernameTaken = validation.New("username", "auth.username_taken")

// dummyHash keeps login timing similar for unknown users
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// User is one row of the users table
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string
	Bio          string
	CreatedAt    string
}

func userFromRecord(r store.Record) *User {
	return &User{
		ID:           r.Get("id"),
		Username:     r.Get("username"),
		Email:        r.Get("email"),
		PasswordHash: r.Get("password_hash"),
		AvatarURL:    r.Get("avatar_url"),
		Bio:          r.Get("bio"),
		CreatedAt:    r.Get("created_at"),
	}
}

func (u *User) values() map[string]string {
	return map[string]string{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"avatar_url":    u.AvatarURL,
		"bio":           u.Bio,
		"created_at":    u.CreatedAt,
	}
}

// Option configures a Service
type Option func(*Service)

// WithHashCost overrides the bcrypt cost
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithClock overrides the time source used for created_at
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service manages user accounts
type Service struct {
	store    store.RecordStore
	logger   *slog.Logger
	hashCost int
	now      func() time.Time
}

// NewService creates an account service over the users table
func NewService(s store.RecordStore, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		logger:   slog.Default().With("component", "account"),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates a user after validating input. Username uniqueness is
// checked by scanning first, so concurrent registrations can both succeed.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = validation.NormalizeUsername(username)
	if username == "" {
		return nil, validation.New("username", "auth.required_fields")
	}
	if password == "" {
		return nil, validation.New("password", "auth.required_fields")
	}
	if !validation.ValidUsername(username) {
		return nil, validation.New("username", "auth.invalid_username")
	}
	if len(password) < validation.MinPasswordLen {
		return nil, validation.New("password", "auth.password_too_short")
	}
	if len(password) > validation.MaxPasswordBytes {
		return nil, validation.New("password", "auth.password_too_long")
	}
	email = strings.TrimSpace(email)
	if email != "" && !validation.ValidEmail(email) {
		return nil, validation.New("email", "auth.invalid_email")
	}

	if _, err := s.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    store.FormatTime(s.now()),
	}
	if err := s.store.Append(ctx, store.TableUsers, user.values()); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies a username and password pair
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = validation.NormalizeUsername(username)

	user, err := s.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns the first user with the given id
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.find(ctx, query.Equals("id", id))
}

// GetByUsername returns the first user with the given username (exact match)
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, ErrNotFound
	}
	return s.find(ctx, query.Equals("username", username))
}

func (s *Service) find(ctx context.Context, pred query.Predicate) (*User, error) {
	records, err := s.store.ScanAll(ctx, store.TableUsers)
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	r, ok := query.First(records, pred)
	if !ok {
		return nil, ErrNotFound
	}
	return userFromRecord(r), nil
}

// Usernames resolves user ids to usernames with a single scan.
// Unknown ids are absent from the result.
func (s *Service) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	records, err := s.store.ScanAll(ctx, store.TableUsers)
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]string, len(ids))
	for _, r := range records {
		id := r.Get("id")
		if want[id] {
			if _, seen := out[id]; !seen {
				out[id] = r.Get("username")
			}
		}
	}
	return out, nil
}
