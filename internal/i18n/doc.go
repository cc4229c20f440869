// Package i18n translates user-facing strings.
//
// A Bundle holds one flat key -> string catalog per supported language.
// Lookups fall back to English and then to the key itself. Requests pick
// their language through Middleware; in watch mode a Watcher reloads the
// catalogs when files change, otherwise Reload must be called explicitly.
package i18n
