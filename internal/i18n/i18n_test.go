// ABOUTME: Tests for catalog loading, fallback lookup, formatting and negotiation
// ABOUTME: Catalog files are written into t.TempDir() in each supported format

package i18n

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func newTestBundle(t *testing.T) *Bundle {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "en.json", `{"auth.login": "Log in", "greeting": "Hello, {name}!", "only.en": "English only"}`)
	writeFile(t, dir, "pt-br.yaml", "auth:\n  login: Entrar\ngreeting: \"Olá, {name}!\"\n")
	writeFile(t, dir, "es.toml", "greeting = \"¡Hola, {name}!\"\n[auth]\nlogin = \"Iniciar sesión\"\n")

	b, err := New(dir, []string{"pt-br", "en", "es"}, "pt-br")
	require.NoError(t, err)
	return b
}

func TestT_LookupAndFallback(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, "Entrar", b.T("pt-br", "auth.login", nil))
	assert.Equal(t, "Iniciar sesión", b.T("es", "auth.login", nil))
	assert.Equal(t, "Log in", b.T("en", "auth.login", nil))

	assert.Equal(t, "English only", b.T("pt-br", "only.en", nil), "falls back to en")
	assert.Equal(t, "missing.key", b.T("es", "missing.key", nil), "falls back to the key")
	assert.Equal(t, "Entrar", b.T("PT-BR", "auth.login", nil))
}

func TestT_Placeholders(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, "Olá, ana!", b.T("pt-br", "greeting", map[string]any{"name": "ana"}))
	assert.Equal(t, "Olá, {name}!", b.T("pt-br", "greeting", nil), "missing args leave the value unformatted")

	tr := b.Translator("es")
	assert.Equal(t, "¡Hola, bo!", tr("greeting", "name", "bo"))
	assert.Equal(t, "Iniciar sesión", tr("auth.login"))
}

func TestNew_MissingFilesAreEmpty(t *testing.T) {
	b, err := New(t.TempDir(), []string{"pt-br", "en"}, "")
	require.NoError(t, err)

	assert.Equal(t, "pt-br", b.Default())
	assert.Equal(t, "auth.login", b.T("pt-br", "auth.login", nil))
}

func TestNew_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "en.json", `{not json`)

	_, err := New(dir, []string{"en"}, "en")
	assert.Error(t, err)
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	b := newTestBundle(t)

	writeFile(t, b.Dir(), "en.json", `{"auth.login": "Sign in"}`)
	require.NoError(t, b.Reload())
	assert.Equal(t, "Sign in", b.T("en", "auth.login", nil))

	writeFile(t, b.Dir(), "en.json", `{broken`)
	assert.Error(t, b.Reload())
	assert.Equal(t, "Sign in", b.T("en", "auth.login", nil))
}

func TestNegotiate(t *testing.T) {
	b := newTestBundle(t)

	tests := []struct {
		name   string
		query  string
		cookie string
		accept string
		want   string
	}{
		{"query wins", "es", "en", "en-US", "es"},
		{"unsupported query ignored", "fr", "en", "", "en"},
		{"cookie before header", "", "es", "en", "es"},
		{"exact header match", "", "", "en,pt-br;q=0.8", "en"},
		{"regional fallback", "", "", "en-US,en;q=0.9", "en"},
		{"base matches regional supported", "", "", "pt", "pt-br"},
		{"skips unknown entries", "", "", "fr-FR, es;q=0.5", "es"},
		{"default", "", "", "", "pt-br"},
		{"case insensitive", "EN", "", "", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Negotiate(tt.query, tt.cookie, tt.accept))
		})
	}
}

func TestMiddleware(t *testing.T) {
	b := newTestBundle(t)
	var got string
	h := b.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LangFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?lang=es", nil))
	assert.Equal(t, "es", got)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "es", cookies[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	req.Header.Set("Accept-Language", "en")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "es", got)
	assert.Empty(t, rec.Result().Cookies())
}
