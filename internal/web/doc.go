// Package web serves the HTML pages and JSON endpoints of the app.
//
// Server wires the domain services into an http.ServeMux. Requests pass
// through session identification, language negotiation and a body size
// limit before reaching a handler. Pages are rendered from embedded
// templates with a translator bound to the request language.
//
// State-changing requests carry a CSRF token: forms in the csrf_token
// field, scripts in the X-CSRF-Token header. Both are compared with the
// token cookie. One-shot notices survive redirects in a flash cookie.
//
// JSON endpoints live under /chat/api/ and /ai/api/ and answer with 401
// instead of a login redirect.
package web
