// ABOUTME: AI chat assistant that forwards a user message to a language model provider
// ABOUTME: Providers are created lazily so a missing API key only fails the assistant routes

package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
)

// ErrEmptyMessage is returned for a blank user message
var ErrEmptyMessage = errors.New("empty message")

// ErrNotConfigured is returned when the provider API key is not set
var ErrNotConfigured = errors.New("assistant API key not configured")

// SystemPrompt frames every conversation
const SystemPrompt = "You are a helpful assistant for a small social app."

// Provider names
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultTimeout bounds one provider call
const DefaultTimeout = 60 * time.Second

// Completer produces a model reply for a system and user prompt
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config selects and configures the provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Reply is the model answer as plain text and rendered markdown
type Reply struct {
	Text string `json:"reply"`
	HTML string `json:"reply_html"`
}

// Service answers assistant chat messages
type Service struct {
	cfg    Config
	logger *slog.Logger
	build  func(ctx context.Context, cfg Config) (Completer, error)

	mu        sync.Mutex
	completer Completer
}

// NewService creates the assistant. The provider is built on first use.
func NewService(cfg Config) *Service {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Service{
		cfg:    cfg,
		logger: slog.Default().With("component", "assistant", "provider", cfg.Provider),
		build:  newCompleter,
	}
}

// NewServiceWithCompleter wires a ready provider
func NewServiceWithCompleter(c Completer) *Service {
	s := NewService(Config{})
	s.completer = c
	return s
}

func newCompleter(ctx context.Context, cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}

// provider returns the completer, building it on first use.
// Failures are not cached so a later call can succeed.
func (s *Service) provider(ctx context.Context) (Completer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completer != nil {
		return s.completer, nil
	}
	c, err := s.build(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	s.completer = c
	return c, nil
}

// Reply sends message to the provider and returns its answer
func (s *Service) Reply(ctx context.Context, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	c, err := s.provider(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := c.Complete(ctx, SystemPrompt, message)
	if err != nil {
		s.logger.Error("completion failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	s.logger.Debug("completion finished", "duration", time.Since(start), "reply_len", len(text))

	html, err := RenderMarkdown(text)
	if err != nil {
		s.logger.Warn("failed to render reply markdown", "error", err)
	}
	return &Reply{Text: text, HTML: html}, nil
}

// RenderMarkdown converts model output to HTML. Raw HTML in the input is not passed through.
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}
