// Package server assembles the application from a loaded configuration
// and runs it.
//
// New opens the record store, creates missing tables, loads locales and
// builds the web handler. Run listens on server.http_addr, or joins the
// tailnet when tailscale.enabled is set, and serves until its context is
// canceled. Shutdown drains in-flight requests within
// server.shutdown_timeout, then stops the locale watcher, the tailnet node
// and the store.
package server
