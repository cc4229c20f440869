// ABOUTME: Signed session cookies carrying the user id as an HS256 JWT
// ABOUTME: Resolves the cookie to a user once per request and guards authenticated routes

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/account"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "cleanchem_session"

	// DefaultTTL is how long a session lasts when no TTL is configured
	DefaultTTL = 7 * 24 * time.Hour

	// LoginPath is where anonymous page requests are sent
	LoginPath = "/auth/login"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session expired")
)

// UserLoader resolves a user id to a user
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*account.User, error)
}

// Manager issues and verifies session cookies
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  UserLoader
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager. A zero ttl uses DefaultTTL.
func NewManager(secret []byte, ttl time.Duration, users UserLoader) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret: secret,
		ttl:    ttl,
		users:  users,
		logger: slog.Default().With("component", "session"),
		now:    time.Now,
	}
}

// Generate signs a token for userID
func (m *Manager) Generate(userID string) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns the user id from its "sub" claim
func (m *Manager) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return sub, nil
}

// Issue sets the session cookie for userID
func (m *Manager) Issue(w http.ResponseWriter, r *http.Request, userID string) error {
	token, err := m.Generate(userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Resolve returns the signed-in user, or nil for anonymous requests.
// Bad tokens and unknown users are anonymous, not errors.
func (m *Manager) Resolve(r *http.Request) *account.User {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	userID, err := m.Verify(cookie.Value)
	if err != nil {
		m.logger.Debug("ignoring session cookie", "error", err)
		return nil
	}

	user, err := m.users.GetByID(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			m.logger.Error("failed to load session user", "error", err, "user_id", userID)
		}
		return nil
	}
	return user
}

// Identify resolves the session and attaches the user to the request context
func (m *Manager) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := m.Resolve(r); user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anonymous requests. Pages redirect to the login page;
// API routes answer 401 with a JSON error.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != nil {
			next(w, r)
			return
		}

		if isAPIRequest(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	}
}

func isAPIRequest(r *http.Request) bool {
	return strings.Contains(r.URL.Path, "/api/")
}

// userContextKey is the key type for storing the user in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the signed-in user attached.
func WithUser(ctx context.Context, user *account.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the signed-in user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *account.User {
	user, _ := ctx.Value(userContextKey{}).(*account.User)
	return user
}
