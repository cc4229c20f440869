// Package store is the tabular datastore behind every entity of the app.
//
// # Model
//
// Each entity type lives in its own table: a header row naming the columns,
// followed by data rows whose cells are plain text. Row 1 is the header, so
// the first data row has RowLocator 2. Callers read by scanning a whole
// table and write by appending rows or overwriting single cells:
//
//   - EnsureTable: create a table or repair its header
//   - ScanAll: every non-blank data row as a Record
//   - Append: add a row, missing columns become ""
//   - UpdateCell: overwrite one cell of a scanned row
//
// Timestamps are stored with TimestampLayout, which sorts lexicographically
// in chronological order.
//
// # Backends
//
//   - SheetsStore: a Google spreadsheet, one worksheet per table
//   - SQLiteStore: a local file emulating worksheets with positional cells
//   - MemoryStore: in-process, for tests
//
// Open picks a backend from Options. The auto backend uses Sheets when
// credentials are configured and the SQLite file otherwise.
//
// # Consistency
//
// Nothing here is transactional across operations. Scan-then-append
// sequences in callers can race and produce duplicate rows.
package store
