// Package session carries the signed-in user across requests.
//
// The cookie holds an HS256 JWT whose "sub" claim is the user id. Identify
// verifies it and loads the user once per request, placing it in the
// request context; handlers read it back with UserFromContext.
package session
