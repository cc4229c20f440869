// ABOUTME: RecordStore interface and row types for the tabular datastore
// ABOUTME: Every entity table is a header row plus text-valued data rows

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrStoreUnavailable is returned when the remote connection is not established
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrInvalidCredentials is returned when the store's auth material is missing or invalid
var ErrInvalidCredentials = errors.New("invalid store credentials")

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUnknownTable is returned for operations on a table that was never ensured
var ErrUnknownTable = errors.New("unknown table")

// ErrUnknownColumn is returned when a column is not part of the table header
var ErrUnknownColumn = errors.New("unknown column")

// ErrRowNotFound is returned when a row locator does not address a data row
var ErrRowNotFound = errors.New("row not found")

// TimestampLayout is the one format every timestamp is stored in.
// Fixed width, zero padded, UTC without offset: lexicographic order is
// chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// RowLocator addresses a data row inside a table. It is only meaningful for
// the table it was scanned from.
type RowLocator int

// Record is one data row: the column name to value mapping plus where it lives.
type Record struct {
	Row    RowLocator
	Fields map[string]string
}

// Get returns the value of a column, or "" when the column is absent
func (r Record) Get(column string) string {
	return r.Fields[column]
}

// RecordStore is a row-oriented tabular datastore with one table per entity.
// All values are text; callers own type coercion.
type RecordStore interface {
	// EnsureTable creates the table with the given header, or overwrites a
	// differing header in place. Data rows are never migrated.
	EnsureTable(ctx context.Context, table string, columns []string) error

	// ScanAll returns every data row in append order.
	ScanAll(ctx context.Context, table string) ([]Record, error)

	// Append writes one new row. Missing columns are stored as "".
	Append(ctx context.Context, table string, values map[string]string) error

	// UpdateCell overwrites a single cell of a previously scanned row.
	UpdateCell(ctx context.Context, table string, row RowLocator, column, value string) error

	// Close releases any resources held by the store
	Close() error
}

// FormatTime renders t in TimestampLayout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTime parses a TimestampLayout string
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// Now returns the current time as a stored timestamp
func Now() string {
	return FormatTime(time.Now())
}

// buildRecord maps positional cells onto the header, padding short rows
func buildRecord(row RowLocator, header, cells []string) Record {
	fields := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(cells) {
			fields[col] = cells[i]
		} else {
			fields[col] = ""
		}
	}
	return Record{Row: row, Fields: fields}
}

// buildRow orders values by header position
func buildRow(header []string, values map[string]string) []string {
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = values[col]
	}
	return row
}

// columnIndex returns the zero-based position of column in header
func columnIndex(header []string, column string) (int, error) {
	for i, col := range header {
		if col == column {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isBlankRow reports whether every cell is empty
func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
