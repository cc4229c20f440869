// ABOUTME: Process wiring: config to store, services, web handler and listeners
// ABOUTME: Serves over TCP or a tailnet node and shuts everything down in order

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/account"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/assistant"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/chat"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/config"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/gallery"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/i18n"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/media"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/session"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/web"
)

// Server owns every long-lived resource of the process
type Server struct {
	config *config.Config
	logger *slog.Logger

	store      store.RecordStore
	bundle     *i18n.Bundle
	watcher    *i18n.Watcher
	web        *web.Server
	httpServer *http.Server

	tsnetServer *tsnet.Server
}

// OpenStore constructs the record store selected by cfg
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.RecordStore, error) {
	return store.Open(ctx, store.Options{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		Sheets: store.SheetsOptions{
			SpreadsheetID:   cfg.Store.SpreadsheetID,
			SpreadsheetName: cfg.Store.SpreadsheetName,
			CredentialsFile: cfg.Store.CredentialsFile,
			CredentialsJSON: cfg.Store.CredentialsJSON,
		},
	}, logger.With("component", "store"))
}

// OpenMedia constructs the upload storage selected by cfg
func OpenMedia(cfg config.UploadsConfig) (media.Storage, error) {
	switch cfg.Backend {
	case "", "disk":
		return media.NewDiskStorage(cfg.Dir), nil
	case "s3":
		storage, err := media.NewObjectStorage(media.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown uploads backend %q", cfg.Backend)
	}
}

// New builds the store, services and HTTP handler described by cfg.
// Tables are created when missing; a store that cannot be reached yet is
// logged and retried lazily by the backend on first use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := store.EnsureSchema(ctx, s); err != nil {
		logger.Error("failed to initialize tables", "error", err)
	}

	srv, err := newWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

func newWithStore(cfg *config.Config, s store.RecordStore, logger *slog.Logger) (*Server, error) {
	if cfg.Session.Secret == config.DefaultSecret {
		logger.Warn("session secret is the development default, set SECRET_KEY before exposing the server")
	}

	storage, err := OpenMedia(cfg.Uploads)
	if err != nil {
		return nil, fmt.Errorf("opening media storage: %w", err)
	}

	bundle, err := i18n.New(cfg.I18n.Dir, cfg.I18n.Languages, cfg.I18n.Default)
	if err != nil {
		return nil, fmt.Errorf("loading locales: %w", err)
	}

	var watcher *i18n.Watcher
	if cfg.I18n.Watch {
		watcher, err = i18n.NewWatcher(bundle, cfg.I18n.Debounce)
		if err != nil {
			return nil, fmt.Errorf("watching locales: %w", err)
		}
	}

	accounts := account.NewService(s)
	sessions := session.NewManager([]byte(cfg.Session.Secret), cfg.Session.TTL, accounts)

	webServer := web.New(web.Services{
		Accounts: accounts,
		Sessions: sessions,
		Gallery:  gallery.NewService(s, storage, cfg.Uploads.AllowedExtensions),
		Chat:     chat.NewService(s, chat.WithMaxMessageLength(cfg.Chat.MaxMessageLength)),
		Assistant: assistant.NewService(assistant.Config{
			Provider: cfg.Assistant.Provider,
			APIKey:   cfg.Assistant.APIKey,
			Model:    cfg.Assistant.Model,
			BaseURL:  cfg.Assistant.BaseURL,
			Timeout:  cfg.Assistant.Timeout,
		}),
		Media: storage,
		I18n:  bundle,
	}, web.Config{MaxBodyBytes: cfg.Uploads.MaxBytes})

	return &Server{
		config:  cfg,
		logger:  logger,
		store:   s,
		bundle:  bundle,
		watcher: watcher,
		web:     webServer,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           webServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the full HTTP handler stack
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run opens the configured listener and serves until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen(ctx)
	if err != nil {
		_ = s.close()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is canceled or the server fails,
// then shuts down within the configured timeout. Returns nil on a
// cancellation-driven shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.watcher != nil {
		s.watcher.Start(gctx)
	}

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		// the parent context is already done here
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.Server.ShutdownTimeout > 0 {
		return s.config.Server.ShutdownTimeout
	}
	return 5 * time.Second
}

// Shutdown stops the HTTP server and releases the watcher, tailnet node and store
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := s.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) close() error {
	var errs []error
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		s.logger.Info("tailscale enabled, server.http_addr is ignored")
		return s.listenTailscale(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "cleanchem", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}
	return authKey, nil
}

// listenTailscale joins the tailnet and listens on :443 when a certificate
// pair is configured, :80 otherwise
func (s *Server) listenTailscale(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.CertFile == "" {
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}

	cert, err := tls.LoadX509KeyPair(tsCfg.CertFile, tsCfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading tailscale certificate: %w", err)
	}
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}
