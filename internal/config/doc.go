// Package config handles configuration loading for cleanchem.
//
// # Sources
//
// Values are layered, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. A YAML file: --config flag, CLEANCHEM_CONFIG, or ./config.yaml
//  3. Environment variables, including those loaded from ./.env
//
// # Environment Variable Expansion
//
// YAML values can reference environment variables:
//
//	session:
//	  secret: "${SESSION_SECRET}"
//
// Unset variables expand to an empty string.
//
// # Environment Overrides
//
//	SECRET_KEY                      session.secret
//	UPLOAD_FOLDER                   uploads.dir
//	ALLOWED_EXTENSIONS              uploads.allowed_extensions (comma separated)
//	GOOGLE_SHEETS_SPREADSHEET_ID    store.spreadsheet_id
//	GOOGLE_SHEETS_SPREADSHEET_NAME  store.spreadsheet_name
//	GOOGLE_APPLICATION_CREDENTIALS  store.credentials_file
//	GOOGLE_SHEETS_CREDS_JSON        store.credentials_json
//	OPENAI_API_KEY                  assistant.api_key (openai)
//	GEMINI_API_KEY, GOOGLE_API_KEY  assistant.api_key (gemini)
//	LANGUAGES                       i18n.languages (comma separated)
//	DEFAULT_LANG                    i18n.default
//	CLEANCHEM_*                     server, store, uploads, i18n, assistant and logging
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	session:
//	  ttl: "168h"
//	assistant:
//	  timeout: "60s"
//
// # Validation
//
// Load validates backends, addresses and language settings. Spreadsheet
// credentials and the assistant API key are not required here; they are
// checked when first used.
package config
