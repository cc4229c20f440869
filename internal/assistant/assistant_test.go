// ABOUTME: Tests for the assistant service and the OpenAI provider
// ABOUTME: Provider HTTP traffic is served by httptest servers

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply  string
	err    error
	system string
	user   string
	calls  int
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	s.system = system
	s.user = user
	return s.reply, s.err
}

func TestReply_EmptyMessage(t *testing.T) {
	stub := &stubCompleter{reply: "hi"}
	svc := NewServiceWithCompleter(stub)

	_, err := svc.Reply(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, stub.calls)
}

func TestReply_NotConfigured(t *testing.T) {
	svc := NewService(Config{Provider: ProviderOpenAI})

	_, err := svc.Reply(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)

	svc = NewService(Config{Provider: ProviderGemini})
	_, err = svc.Reply(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestReply_UnknownProvider(t *testing.T) {
	svc := NewService(Config{Provider: "llama", APIKey: "k"})
	_, err := svc.Reply(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llama")
}

func TestReply_RendersMarkdown(t *testing.T) {
	stub := &stubCompleter{reply: "Use **gloves** when handling acids."}
	svc := NewServiceWithCompleter(stub)

	reply, err := svc.Reply(context.Background(), "  safety tips?  ")
	require.NoError(t, err)

	assert.Equal(t, SystemPrompt, stub.system)
	assert.Equal(t, "safety tips?", stub.user)
	assert.Equal(t, "Use **gloves** when handling acids.", reply.Text)
	assert.Contains(t, reply.HTML, "<strong>gloves</strong>")
}

func TestReply_ProviderError(t *testing.T) {
	svc := NewServiceWithCompleter(&stubCompleter{err: errors.New("quota exceeded")})

	_, err := svc.Reply(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestProvider_BuildFailureNotCached(t *testing.T) {
	svc := NewService(Config{})
	attempts := 0
	stub := &stubCompleter{reply: "ok"}
	svc.build = func(ctx context.Context, cfg Config) (Completer, error) {
		attempts++
		if attempts == 1 {
			return nil, ErrNotConfigured
		}
		return stub, nil
	}

	_, err := svc.Reply(context.Background(), "a")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.Reply(context.Background(), "b")
	require.NoError(t, err)
	_, err = svc.Reply(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRenderMarkdown_DropsRawHTML(t *testing.T) {
	html, err := RenderMarkdown("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello there"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	text, err := c.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello there", text)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openAIMessage{Role: "system", Content: "sys"}, got.Messages[0])
	assert.Equal(t, openAIMessage{Role: "user", Content: "hi"}, got.Messages[1])
}

func TestOpenAIClient_APIError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit reached")
	assert.Equal(t, 1, calls, "requests are not retried")
}

func TestOpenAIClient_NonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"), err.Error())
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"})
	_, err := c.Complete(context.Background(), "sys", "hi")
	assert.Error(t, err)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewGeminiClient_DefaultTimeout(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, g.timeout)
}

func TestGeminiClient_CompleteHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), Config{
		APIKey:  "k",
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = g.Complete(context.Background(), "system", "hello")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
