// ABOUTME: Per-request language selection from query, cookie and Accept-Language
// ABOUTME: Middleware persists an explicit ?lang= choice in a cookie and stores the result in context

package i18n

import (
	"context"
	"net/http"
	"strings"
)

// CookieName persists an explicit language choice
const CookieName = "lang"

// Negotiate picks the request language: an explicit supported query value,
// then a supported cookie value, then Accept-Language, then the default.
func (b *Bundle) Negotiate(queryLang, cookieLang, acceptLanguage string) string {
	if b.Supported(queryLang) {
		return normalize(queryLang)
	}
	if b.Supported(cookieLang) {
		return normalize(cookieLang)
	}
	if lang := b.matchAcceptLanguage(acceptLanguage); lang != "" {
		return lang
	}
	return b.defaultLang
}

// matchAcceptLanguage walks the header in order; each entry matches exactly
// or by base language (en-US -> en, pt -> pt-br). Quality values are ignored.
func (b *Bundle) matchAcceptLanguage(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		tag = normalize(tag)
		if tag == "" {
			continue
		}
		if b.Supported(tag) {
			return tag
		}
		base, _, _ := strings.Cut(tag, "-")
		for _, l := range b.langs {
			if lb, _, _ := strings.Cut(l, "-"); lb == base {
				return l
			}
		}
	}
	return ""
}

// langContextKey is the key type for storing the language in context.Context.
type langContextKey struct{}

// WithLang returns a new context carrying lang
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langContextKey{}, lang)
}

// LangFromContext returns the request language, or "" when unset
func LangFromContext(ctx context.Context) string {
	lang, _ := ctx.Value(langContextKey{}).(string)
	return lang
}

// Middleware negotiates the language of every request
func (b *Bundle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queryLang := r.URL.Query().Get("lang")
		if b.Supported(queryLang) {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    normalize(queryLang),
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		cookieLang := ""
		if c, err := r.Cookie(CookieName); err == nil {
			cookieLang = c.Value
		}

		lang := b.Negotiate(queryLang, cookieLang, r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
	})
}
