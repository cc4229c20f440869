// ABOUTME: Translation catalogs per language with fallback lookup and placeholder formatting
// ABOUTME: Catalogs load from <dir>/<lang>.json, .yaml, .yml or .toml and can be reloaded at runtime

package i18n

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FallbackLang is consulted when a key is missing from the requested language
const FallbackLang = "en"

// catalogExtensions are tried in order; the first existing file wins
var catalogExtensions = []string{".json", ".yaml", ".yml", ".toml"}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Catalog maps message keys to translated strings
type Catalog map[string]string

// Bundle holds the catalogs of every supported language
type Bundle struct {
	dir         string
	langs       []string
	defaultLang string
	logger      *slog.Logger

	mu       sync.RWMutex
	catalogs map[string]Catalog
}

// New loads the catalogs of langs from dir. Missing files yield empty
// catalogs; malformed files are an error.
func New(dir string, langs []string, defaultLang string) (*Bundle, error) {
	normalized := make([]string, 0, len(langs))
	for _, l := range langs {
		if l = normalize(l); l != "" {
			normalized = append(normalized, l)
		}
	}
	defaultLang = normalize(defaultLang)
	if defaultLang == "" && len(normalized) > 0 {
		defaultLang = normalized[0]
	}

	b := &Bundle{
		dir:         dir,
		langs:       normalized,
		defaultLang: defaultLang,
		logger:      slog.Default().With("component", "i18n"),
		catalogs:    make(map[string]Catalog),
	}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// Dir returns the catalog directory
func (b *Bundle) Dir() string {
	return b.dir
}

// Languages returns the supported languages in configured order
func (b *Bundle) Languages() []string {
	return append([]string(nil), b.langs...)
}

// Default returns the default language
func (b *Bundle) Default() string {
	return b.defaultLang
}

// Supported reports whether lang is one of the configured languages
func (b *Bundle) Supported(lang string) bool {
	lang = normalize(lang)
	for _, l := range b.langs {
		if l == lang {
			return true
		}
	}
	return false
}

// Reload re-reads every catalog. On error the previous catalogs stay in place.
func (b *Bundle) Reload() error {
	loaded := make(map[string]Catalog, len(b.langs)+1)

	langs := b.langs
	if !b.Supported(FallbackLang) {
		langs = append(append([]string(nil), langs...), FallbackLang)
	}
	for _, lang := range langs {
		c, err := loadCatalog(b.dir, lang)
		if err != nil {
			return err
		}
		loaded[lang] = c
	}

	b.mu.Lock()
	b.catalogs = loaded
	b.mu.Unlock()

	b.logger.Debug("catalogs loaded", "dir", b.dir, "languages", langs)
	return nil
}

func loadCatalog(dir, lang string) (Catalog, error) {
	for _, ext := range catalogExtensions {
		path := filepath.Join(dir, lang+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		var raw map[string]any
		switch ext {
		case ".json":
			err = json.Unmarshal(data, &raw)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &raw)
		case ".toml":
			err = toml.Unmarshal(data, &raw)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		c := make(Catalog)
		flatten("", raw, c)
		return c, nil
	}
	return Catalog{}, nil
}

// flatten turns nested tables into dotted keys: {auth: {login: x}} -> auth.login
func flatten(prefix string, in map[string]any, out Catalog) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T translates key into lang, falling back to FallbackLang and then to the
// key itself. {name} placeholders are replaced from args; when any
// placeholder has no value the unformatted string is returned.
func (b *Bundle) T(lang, key string, args map[string]any) string {
	b.mu.RLock()
	val, ok := b.catalogs[normalize(lang)][key]
	if !ok {
		val, ok = b.catalogs[FallbackLang][key]
	}
	b.mu.RUnlock()
	if !ok {
		val = key
	}
	return format(val, args)
}

func format(s string, args map[string]any) string {
	if !strings.Contains(s, "{") {
		return s
	}

	missing := false
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := args[name]
		if !ok {
			missing = true
			return m
		}
		return fmt.Sprint(v)
	})
	if missing {
		return s
	}
	return out
}

// Translator returns a lookup bound to lang. Extra arguments are read as
// name/value pairs: tr("chat.with", "name", "ana").
func (b *Bundle) Translator(lang string) func(key string, pairs ...any) string {
	return func(key string, pairs ...any) string {
		var args map[string]any
		if len(pairs) > 1 {
			args = make(map[string]any, len(pairs)/2)
			for i := 0; i+1 < len(pairs); i += 2 {
				args[fmt.Sprint(pairs[i])] = pairs[i+1]
			}
		}
		return b.T(lang, key, args)
	}
}
