// ABOUTME: In-memory RecordStore implementation for tests and ephemeral runs
// ABOUTME: Mirrors spreadsheet semantics: positional cells under a mutable header

package store

import (
	"context"
	"fmt"
	"sync"
)

// firstDataRow is the locator of the first data row; row 1 holds the header
const firstDataRow = 2

type memoryTable struct {
	header []string
	rows   [][]string
}

// MemoryStore is an in-memory RecordStore.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

// Ensure MemoryStore implements RecordStore.
var _ RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]*memoryTable),
	}
}

// EnsureTable creates the table or overwrites a differing header.
func (m *MemoryStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		m.tables[table] = &memoryTable{header: append([]string(nil), columns...)}
		return nil
	}
	if !sameHeader(t.header, columns) {
		t.header = append([]string(nil), columns...)
	}
	return nil
}

// ScanAll returns a copy of every data row.
func (m *MemoryStore) ScanAll(ctx context.Context, table string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	records := make([]Record, 0, len(t.rows))
	for i, cells := range t.rows {
		if isBlankRow(cells) {
			continue
		}
		records = append(records, buildRecord(RowLocator(i+firstDataRow), t.header, cells))
	}
	return records, nil
}

// Append adds one row at the end of the table.
func (m *MemoryStore) Append(ctx context.Context, table string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	t.rows = append(t.rows, buildRow(t.header, values))
	return nil
}

// UpdateCell overwrites one cell in place.
func (m *MemoryStore) UpdateCell(ctx context.Context, table string, row RowLocator, column, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	col, err := columnIndex(t.header, column)
	if err != nil {
		return err
	}
	i := int(row) - firstDataRow
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("%w: %s row %d", ErrRowNotFound, table, row)
	}
	for len(t.rows[i]) <= col {
		t.rows[i] = append(t.rows[i], "")
	}
	t.rows[i][col] = value
	return nil
}

// Header returns a copy of the current header row.
func (m *MemoryStore) Header(ctx context.Context, table string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return append([]string(nil), t.header...), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
