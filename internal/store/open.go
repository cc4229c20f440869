// ABOUTME: Backend selection for the process-wide RecordStore handle
// ABOUTME: auto prefers Google Sheets and falls back to a local SQLite file

package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Open
const (
	BackendAuto   = "auto"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options configures Open
type Options struct {
	Backend string
	// Path is the SQLite file used by the sqlite backend and the auto fallback
	Path   string
	Sheets SheetsOptions
}

// Open constructs the store selected by opts.Backend. The Sheets backend
// connects lazily, so credential problems surface on first use.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (RecordStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend := opts.Backend
	if backend == "" || backend == BackendAuto {
		if opts.Sheets.HasCredentials() {
			backend = BackendSheets
		} else {
			logger.Warn("spreadsheet credentials not configured, using local SQLite store", "path", opts.Path)
			backend = BackendSQLite
		}
	}

	switch backend {
	case BackendSheets:
		logger.Info("using Google Sheets store",
			"spreadsheet_id", opts.Sheets.SpreadsheetID,
			"spreadsheet_name", opts.Sheets.SpreadsheetName,
		)
		return NewSheetsStore(opts.Sheets), nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return NewSQLiteStore(opts.Path)
	case BackendMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
