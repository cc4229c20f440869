// ABOUTME: Embeds HTML templates and static assets into the binary
// ABOUTME: Parsed per render so the translator can be bound to the request language

package web

import "embed"

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS
