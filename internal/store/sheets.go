// ABOUTME: Google Sheets implementation of RecordStore (one worksheet per table)
// ABOUTME: Connects lazily on first use; maps auth and transport failures to store errors

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// newSheetRows is the initial grid height of a created worksheet
const newSheetRows = 100

// SheetsOptions selects the spreadsheet and the service account used to reach it
type SheetsOptions struct {
	// SpreadsheetID is preferred; SpreadsheetName is looked up through Drive otherwise
	SpreadsheetID   string
	SpreadsheetName string

	// CredentialsJSON takes precedence over CredentialsFile
	CredentialsJSON string
	CredentialsFile string
}

// HasCredentials reports whether any service account material is configured
func (o SheetsOptions) HasCredentials() bool {
	return o.CredentialsJSON != "" || o.CredentialsFile != ""
}

// sheetsAPI is the subset of the Sheets API the store relies on
type sheetsAPI interface {
	SheetTitles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string, rows, cols int64) error
	GetValues(ctx context.Context, rng string) ([][]string, error)
	AppendRow(ctx context.Context, rng string, row []string) error
	UpdateValues(ctx context.Context, rng string, rows [][]string) error
}

// SheetsStore implements RecordStore on top of a Google spreadsheet.
type SheetsStore struct {
	opts    SheetsOptions
	logger  *slog.Logger
	connect func(ctx context.Context) (sheetsAPI, error)

	mu      sync.Mutex
	api     sheetsAPI
	headers map[string][]string
}

// Ensure SheetsStore implements RecordStore.
var _ RecordStore = (*SheetsStore)(nil)

// NewSheetsStore returns a store for the configured spreadsheet.
// No network call happens until the first operation.
func NewSheetsStore(opts SheetsOptions) *SheetsStore {
	s := &SheetsStore{
		opts:    opts,
		logger:  slog.Default().With("component", "store", "backend", "sheets"),
		headers: make(map[string][]string),
	}
	s.connect = s.dial
	return s
}

// newSheetsStoreWithAPI wires a ready API client, bypassing dialing
func newSheetsStoreWithAPI(api sheetsAPI) *SheetsStore {
	s := NewSheetsStore(SheetsOptions{SpreadsheetID: "test"})
	s.connect = func(context.Context) (sheetsAPI, error) { return api, nil }
	return s
}

// client returns the connected API, dialing on first use.
// A failed dial is not cached; the next call tries again.
func (s *SheetsStore) client(ctx context.Context) (sheetsAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.api != nil {
		return s.api, nil
	}
	api, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.api = api
	return api, nil
}

// dial authenticates and resolves the spreadsheet
func (s *SheetsStore) dial(ctx context.Context) (sheetsAPI, error) {
	creds, err := s.credentials()
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	spreadsheetID := s.opts.SpreadsheetID
	if spreadsheetID == "" {
		spreadsheetID, err = s.lookupByName(ctx, creds)
		if err != nil {
			return nil, err
		}
	}

	api := &googleSheets{svc: svc, spreadsheetID: spreadsheetID}
	if _, err := api.SheetTitles(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("connected to spreadsheet", "spreadsheet_id", spreadsheetID)
	return api, nil
}

// credentials loads the service account JSON
func (s *SheetsStore) credentials() ([]byte, error) {
	if s.opts.CredentialsJSON != "" {
		return []byte(s.opts.CredentialsJSON), nil
	}
	if s.opts.CredentialsFile == "" {
		return nil, fmt.Errorf("%w: set GOOGLE_SHEETS_CREDS_JSON or GOOGLE_APPLICATION_CREDENTIALS", ErrInvalidCredentials)
	}
	data, err := os.ReadFile(s.opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidCredentials, s.opts.CredentialsFile, err)
	}
	return data, nil
}

// lookupByName finds a spreadsheet visible to the service account by its title
func (s *SheetsStore) lookupByName(ctx context.Context, creds []byte) (string, error) {
	if s.opts.SpreadsheetName == "" {
		return "", fmt.Errorf("%w: no spreadsheet id or name configured", ErrStoreUnavailable)
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	q := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(s.opts.SpreadsheetName, "'", `\'`))
	list, err := svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", classifyAPIError(err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: spreadsheet %q not found", ErrStoreUnavailable, s.opts.SpreadsheetName)
	}
	return list.Files[0].Id, nil
}

// Close drops the connection; the HTTP transport needs no explicit teardown.
func (s *SheetsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = nil
	return nil
}

// headerRange addresses the first n cells of row 1
func headerRange(table string, n int) string {
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("%s!A1:%s1", quoteSheet(table), columnLetter(n))
}

// EnsureTable creates the worksheet or overwrites its header row.
func (s *SheetsStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	api, err := s.client(ctx)
	if err != nil {
		return err
	}

	titles, err := api.SheetTitles(ctx)
	if err != nil {
		return err
	}

	exists := false
	for _, t := range titles {
		if t == table {
			exists = true
			break
		}
	}

	if !exists {
		if err := api.AddSheet(ctx, table, newSheetRows, int64(len(columns))); err != nil {
			return fmt.Errorf("adding worksheet %s: %w", table, err)
		}
		if err := api.UpdateValues(ctx, headerRange(table, len(columns)), [][]string{columns}); err != nil {
			return fmt.Errorf("writing header of %s: %w", table, err)
		}
		s.cacheHeader(table, columns)
		s.logger.Info("created worksheet", "table", table)
		return nil
	}

	current, err := s.readHeader(ctx, api, table)
	if err != nil {
		return err
	}
	if sameHeader(current, columns) {
		s.cacheHeader(table, columns)
		return nil
	}

	// pad so a shorter header also clears the stale cells to its right
	header := append([]string(nil), columns...)
	for len(header) < len(current) {
		header = append(header, "")
	}
	if err := api.UpdateValues(ctx, headerRange(table, len(header)), [][]string{header}); err != nil {
		return fmt.Errorf("overwriting header of %s: %w", table, err)
	}
	s.cacheHeader(table, columns)
	if len(current) > 0 {
		s.logger.Warn("overwrote worksheet header", "table", table, "old", current, "new", columns)
	}
	return nil
}

func (s *SheetsStore) cacheHeader(table string, columns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[table] = append([]string(nil), columns...)
}

// header returns the cached header or reads it from row 1
func (s *SheetsStore) header(ctx context.Context, api sheetsAPI, table string) ([]string, error) {
	s.mu.Lock()
	cached, ok := s.headers[table]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	header, err := s.readHeader(ctx, api, table)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	s.cacheHeader(table, header)
	return header, nil
}

func (s *SheetsStore) readHeader(ctx context.Context, api sheetsAPI, table string) ([]string, error) {
	rows, err := api.GetValues(ctx, quoteSheet(table)+"!1:1")
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return trimTrailingBlank(rows[0]), nil
}

// ScanAll reads the whole worksheet; row 1 is the header.
func (s *SheetsStore) ScanAll(ctx context.Context, table string) ([]Record, error) {
	api, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := api.GetValues(ctx, quoteSheet(table))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := trimTrailingBlank(rows[0])
	records := make([]Record, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if isBlankRow(cells) {
			continue
		}
		// sheet rows are 1-based and row 1 is the header
		records = append(records, buildRecord(RowLocator(i+firstDataRow), header, cells))
	}
	return records, nil
}

// Append adds a row after the last non-empty row of the worksheet.
func (s *SheetsStore) Append(ctx context.Context, table string, values map[string]string) error {
	api, err := s.client(ctx)
	if err != nil {
		return err
	}

	header, err := s.header(ctx, api, table)
	if err != nil {
		return err
	}

	if err := api.AppendRow(ctx, quoteSheet(table), buildRow(header, values)); err != nil {
		return fmt.Errorf("appending to %s: %w", table, err)
	}
	return nil
}

// UpdateCell writes a single A1 cell.
func (s *SheetsStore) UpdateCell(ctx context.Context, table string, row RowLocator, column, value string) error {
	if row < firstDataRow {
		return fmt.Errorf("%w: %s row %d", ErrRowNotFound, table, row)
	}

	api, err := s.client(ctx)
	if err != nil {
		return err
	}

	header, err := s.header(ctx, api, table)
	if err != nil {
		return err
	}
	col, err := columnIndex(header, column)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!%s%d", quoteSheet(table), columnLetter(col+1), row)
	if err := api.UpdateValues(ctx, rng, [][]string{{value}}); err != nil {
		return fmt.Errorf("updating %s: %w", rng, err)
	}
	return nil
}

// Header reads the current header row of a worksheet
func (s *SheetsStore) Header(ctx context.Context, table string) ([]string, error) {
	api, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return s.readHeader(ctx, api, table)
}

// columnLetter converts a 1-based column number to its A1 letters (1 -> A, 27 -> AA)
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// quoteSheet quotes a worksheet title for use in an A1 range
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func trimTrailingBlank(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}

// classifyAPIError maps Google API failures onto the store taxonomy
func classifyAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// googleSheets adapts *sheets.Service to sheetsAPI
type googleSheets struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (g *googleSheets) SheetTitles(ctx context.Context) ([]string, error) {
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (g *googleSheets) AddSheet(ctx context.Context, title string, rows, cols int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    rows,
						ColumnCount: cols,
					},
				},
			},
		}},
	}
	if _, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classifyAPIError(err)
	}
	return nil
}

func (g *googleSheets) GetValues(ctx context.Context, rng string) ([][]string, error) {
	vr, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (g *googleSheets) AppendRow(ctx context.Context, rng string, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classifyAPIError(err)
	}
	return nil
}

func (g *googleSheets) UpdateValues(ctx context.Context, rng string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = toInterfaces(row)
	}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classifyAPIError(err)
	}
	return nil
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
