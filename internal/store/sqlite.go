// ABOUTME: SQLite implementation of RecordStore using modernc.org/sqlite
// ABOUTME: Local-file fallback that emulates worksheets: a header plus positional rows

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements RecordStore on a local SQLite file.
// Cells are kept positionally so a header overwrite re-labels existing rows
// exactly as it would in a spreadsheet.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements RecordStore.
var _ RecordStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the SQLite file at path.
// Parent directories are created if needed. ":memory:" is accepted for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store", "backend", "sqlite")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the worksheet emulation tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sheet_headers (
			name         TEXT PRIMARY KEY,
			columns_json TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sheet_rows (
			name       TEXT NOT NULL,
			row_num    INTEGER NOT NULL,
			cells_json TEXT NOT NULL,
			PRIMARY KEY (name, row_num)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// header loads the header of a table
func (s *SQLiteStore) header(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, table string) ([]string, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT columns_json FROM sheet_headers WHERE name = ?`, table).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if err != nil {
		return nil, fmt.Errorf("querying header: %w", err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(raw), &columns); err != nil {
		return nil, fmt.Errorf("decoding header of %s: %w", table, err)
	}
	return columns, nil
}

// Header returns the current header row of a table
func (s *SQLiteStore) Header(ctx context.Context, table string) ([]string, error) {
	return s.header(ctx, s.db, table)
}

// EnsureTable creates the table header or overwrites it when it differs.
func (s *SQLiteStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	current, err := s.header(ctx, s.db, table)
	if err != nil && !errors.Is(err, ErrUnknownTable) {
		return err
	}
	if err == nil && sameHeader(current, columns) {
		return nil
	}

	encoded, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sheet_headers (name, columns_json) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET columns_json = excluded.columns_json
	`, table, string(encoded))
	if err != nil {
		return fmt.Errorf("writing header of %s: %w", table, err)
	}

	if current != nil {
		s.logger.Warn("overwrote table header", "table", table, "old", current, "new", columns)
	} else {
		s.logger.Debug("created table", "table", table)
	}
	return nil
}

// ScanAll returns every data row of a table in append order.
func (s *SQLiteStore) ScanAll(ctx context.Context, table string) ([]Record, error) {
	header, err := s.header(ctx, s.db, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_num, cells_json FROM sheet_rows
		WHERE name = ?
		ORDER BY row_num ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("querying rows of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rowNum int
		var raw string
		if err := rows.Scan(&rowNum, &raw); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("decoding row %d of %s: %w", rowNum, table, err)
		}
		if isBlankRow(cells) {
			continue
		}
		records = append(records, buildRecord(RowLocator(rowNum), header, cells))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows of %s: %w", table, err)
	}

	return records, nil
}

// Append writes one row after the current last row.
func (s *SQLiteStore) Append(ctx context.Context, table string, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	header, err := s.header(ctx, tx, table)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(buildRow(header, values))
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sheet_rows (name, row_num, cells_json)
		SELECT ?, COALESCE(MAX(row_num), ?) + 1, ? FROM sheet_rows WHERE name = ?
	`, table, firstDataRow-1, string(encoded), table)
	if err != nil {
		return fmt.Errorf("appending row to %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

// UpdateCell overwrites a single cell located by row.
func (s *SQLiteStore) UpdateCell(ctx context.Context, table string, row RowLocator, column, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	header, err := s.header(ctx, tx, table)
	if err != nil {
		return err
	}
	col, err := columnIndex(header, column)
	if err != nil {
		return err
	}

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT cells_json FROM sheet_rows WHERE name = ? AND row_num = ?`, table, int(row)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s row %d", ErrRowNotFound, table, row)
	}
	if err != nil {
		return fmt.Errorf("querying row: %w", err)
	}

	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return fmt.Errorf("decoding row %d of %s: %w", row, table, err)
	}
	for len(cells) <= col {
		cells = append(cells, "")
	}
	cells[col] = value

	encoded, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET cells_json = ? WHERE name = ? AND row_num = ?`, string(encoded), table, int(row)); err != nil {
		return fmt.Errorf("updating row %d of %s: %w", row, table, err)
	}

	return tx.Commit()
}
