// ABOUTME: Configuration loading and parsing for cleanchem
// ABOUTME: YAML with ${VAR} expansion, .env loading, environment overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSecret is the development session secret. Production deployments set SECRET_KEY.
const DefaultSecret = "dev-secret-change-me"

// DefaultMaxUploadBytes is the request body ceiling for uploads
const DefaultMaxUploadBytes = 16 << 20

// Config represents the complete cleanchem configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Store     StoreConfig     `yaml:"store"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Session   SessionConfig   `yaml:"session"`
	I18n      I18nConfig      `yaml:"i18n"`
	Assistant AssistantConfig `yaml:"assistant"`
	Chat      ChatConfig      `yaml:"chat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	CertFile  string `yaml:"cert_file"` // TLS cert file (generate via: tailscale cert <hostname>)
	KeyFile   string `yaml:"key_file"`
}

// StoreConfig selects and configures the record store backend
type StoreConfig struct {
	Backend         string `yaml:"backend"` // auto, sheets, sqlite, memory
	Path            string `yaml:"path"`    // SQLite file for the local fallback
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SpreadsheetName string `yaml:"spreadsheet_name"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
}

// UploadsConfig holds media storage configuration
type UploadsConfig struct {
	Backend           string   `yaml:"backend"` // disk, s3
	Dir               string   `yaml:"dir"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxBytes          int64    `yaml:"max_bytes"`
	S3                S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible object storage settings
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// SessionConfig holds session cookie settings
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"-"`

	TTLRaw string `yaml:"ttl"`
}

// I18nConfig holds localization settings
type I18nConfig struct {
	Dir       string   `yaml:"dir"`
	Languages []string `yaml:"languages"`
	Default   string   `yaml:"default"`
	// Watch reloads catalogs when files under Dir change
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"-"`

	DebounceRaw string `yaml:"debounce"`
}

// AssistantConfig holds the language model provider settings
type AssistantConfig struct {
	Provider string        `yaml:"provider"` // openai, gemini
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// ChatConfig holds direct messaging limits
type ChatConfig struct {
	MaxMessageLength int `yaml:"max_message_length"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file sets a value
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Server: ServerConfig{
			HTTPAddr:           "0.0.0.0:5000",
			ShutdownTimeoutRaw: "5s",
		},
		Tailscale: TailscaleConfig{Hostname: "cleanchem"},
		Store: StoreConfig{
			Backend:         "auto",
			Path:            "data/cleanchem.db",
			SpreadsheetName: "CleanChem Social",
		},
		Uploads: UploadsConfig{
			Backend:           "disk",
			Dir:               cwd + string(os.PathSeparator) + "uploads",
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "mp4", "mov", "webm"},
			MaxBytes:          DefaultMaxUploadBytes,
		},
		Session: SessionConfig{
			Secret: DefaultSecret,
			TTLRaw: "168h",
		},
		I18n: I18nConfig{
			Dir:         "locales",
			Languages:   []string{"pt-br", "en", "es"},
			Default:     "pt-br",
			DebounceRaw: "250ms",
		},
		Assistant: AssistantConfig{
			Provider:   "openai",
			TimeoutRaw: "60s",
		},
		Chat:    ChatConfig{MaxMessageLength: 4000},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded into the environment first. The YAML file at path is optional when
// path is empty. Environment variables in the format ${VAR_NAME} are expanded
// and well-known variables override the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expandedData := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath picks the config file: the explicit flag, then CLEANCHEM_CONFIG,
// then ./config.yaml when it exists. An empty result means defaults only.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("CLEANCHEM_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv overrides file values with the environment variables the app has
// always honored, plus CLEANCHEM_* for everything else.
func applyEnv(cfg *Config) error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := os.LookupEnv(key); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.Session.Secret, "SECRET_KEY")
	setString(&cfg.Uploads.Dir, "UPLOAD_FOLDER")
	setString(&cfg.Store.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")
	setString(&cfg.Store.SpreadsheetName, "GOOGLE_SHEETS_SPREADSHEET_NAME")
	setString(&cfg.Store.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.Store.CredentialsJSON, "GOOGLE_SHEETS_CREDS_JSON")
	setString(&cfg.I18n.Default, "DEFAULT_LANG")

	setString(&cfg.Server.HTTPAddr, "CLEANCHEM_HTTP_ADDR")
	setString(&cfg.Store.Backend, "CLEANCHEM_STORE_BACKEND")
	setString(&cfg.Store.Path, "CLEANCHEM_DB_PATH")
	setString(&cfg.Uploads.Backend, "CLEANCHEM_UPLOADS_BACKEND")
	setString(&cfg.I18n.Dir, "CLEANCHEM_LOCALES_DIR")
	setString(&cfg.Assistant.Provider, "CLEANCHEM_ASSISTANT_PROVIDER")
	setString(&cfg.Assistant.Model, "CLEANCHEM_ASSISTANT_MODEL")
	setString(&cfg.Logging.Level, "CLEANCHEM_LOG_LEVEL")
	setString(&cfg.Logging.Format, "CLEANCHEM_LOG_FORMAT")

	switch cfg.Assistant.Provider {
	case "gemini":
		setString(&cfg.Assistant.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	default:
		setString(&cfg.Assistant.APIKey, "OPENAI_API_KEY")
	}

	if v := os.Getenv("ALLOWED_EXTENSIONS"); v != "" {
		cfg.Uploads.AllowedExtensions = splitList(v)
	}
	if v := os.Getenv("LANGUAGES"); v != "" {
		cfg.I18n.Languages = splitList(v)
	}
	if v := os.Getenv("CLEANCHEM_I18N_WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing CLEANCHEM_I18N_WATCH %q: %w", v, err)
		}
		cfg.I18n.Watch = watch
	}
	if v := os.Getenv("CLEANCHEM_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing CLEANCHEM_MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		cfg.Uploads.MaxBytes = n
	}
	return nil
}

// splitList parses "a, B ,c" into ["a" "b" "c"]
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// Spreadsheet credentials and the assistant API key are checked at first use.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if (c.Tailscale.CertFile == "") != (c.Tailscale.KeyFile == "") {
		return fmt.Errorf("tailscale.cert_file and tailscale.key_file must be set together")
	}

	switch c.Store.Backend {
	case "auto", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case "sheets", "memory":
	default:
		return fmt.Errorf("store.backend must be one of auto, sheets, sqlite, memory (got %q)", c.Store.Backend)
	}

	switch c.Uploads.Backend {
	case "disk":
		if c.Uploads.Dir == "" {
			return fmt.Errorf("uploads.dir is required for the disk backend")
		}
	case "s3":
		if c.Uploads.S3.Endpoint == "" || c.Uploads.S3.Bucket == "" {
			return fmt.Errorf("uploads.s3.endpoint and uploads.s3.bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("uploads.backend must be disk or s3 (got %q)", c.Uploads.Backend)
	}

	if len(c.Uploads.AllowedExtensions) == 0 {
		return fmt.Errorf("uploads.allowed_extensions must not be empty")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}

	if len(c.I18n.Languages) == 0 {
		return fmt.Errorf("i18n.languages must not be empty")
	}
	if !slices.Contains(c.I18n.Languages, c.I18n.Default) {
		return fmt.Errorf("i18n.default %q is not in i18n.languages", c.I18n.Default)
	}

	switch c.Assistant.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("assistant.provider must be openai or gemini (got %q)", c.Assistant.Provider)
	}

	if c.Chat.MaxMessageLength < 0 {
		return fmt.Errorf("chat.max_message_length must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"session.ttl", cfg.Session.TTLRaw, &cfg.Session.TTL},
		{"i18n.debounce", cfg.I18n.DebounceRaw, &cfg.I18n.Debounce},
		{"assistant.timeout", cfg.Assistant.TimeoutRaw, &cfg.Assistant.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
