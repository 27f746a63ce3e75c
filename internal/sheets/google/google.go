package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"techbiz/internal/core"
	"techbiz/internal/ports"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the tab the mirror writes to when none is configured.
const DefaultSheetName = "Records"

// Header is the first row of the mirror sheet. Column A holds the record id.
var Header = []any{
	"ID", "Name", "Date", "Place", "Service type", "Income",
	"Cost", "Profit", "Hours", "Status", "Notes", "Confirms",
}

var errNotInitialized = errors.New("sheets service not initialized")

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// OAuth user credentials. A token file switches the mirror from the
	// service account to the user who authorized it.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
	// IndexTTL bounds how long the id -> row index is trusted before column A is re-read.
	IndexTTL time.Duration
}

// Mirror keeps one row per record in a Google Sheets tab.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu             sync.Mutex
	rows           map[int64]int // record id -> 1-based sheet row
	nextRow        int
	indexExpiresAt time.Time
	indexTTL       time.Duration
}

var _ ports.RecordMirror = (*Mirror)(nil)

// New creates a mirror authenticated with service account credentials.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	var auth goption.ClientOption
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		ts, err := oauthTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Creating Google Sheets service with OAuth user token",
			"token_file", cfg.OAuthTokenFile,
			"scope", gsheet.SpreadsheetsScope)
		auth = goption.WithTokenSource(ts)
	} else {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(creds),
			"scope", gsheet.SpreadsheetsScope)
		auth = goption.WithCredentialsJSON(creds)
	}

	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newMirror(svc, spreadsheetID, cfg.SheetName, cfg.IndexTTL), nil
}

func newMirror(svc *gsheet.Service, spreadsheetID, sheet string, ttl time.Duration) *Mirror {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Mirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		rows:          map[int64]int{},
		indexTTL:      ttl,
	}
}

// credentials resolves the service account key: inline JSON wins over a file path,
// and GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func credentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// OAuthConfig parses an installed-app OAuth client, inline JSON first.
func OAuthConfig(clientJSON, clientFile string) (*oauth2.Config, error) {
	var (
		b   []byte
		err error
	)
	switch {
	case strings.TrimSpace(clientJSON) != "":
		b = []byte(clientJSON)
	case strings.TrimSpace(clientFile) != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	oc, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return oc, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// oauthTokenSource refreshes the saved user token as it expires.
func oauthTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	oc, err := OAuthConfig(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.OAuthTokenFile)
	if err != nil {
		return nil, err
	}
	return oc.TokenSource(ctx, tok), nil
}

// UpsertRecord rewrites the record's row in place, or writes it below the last used row.
func (m *Mirror) UpsertRecord(ctx context.Context, r core.Record) error {
	if m.svc == nil {
		return errNotInitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadIndex(ctx); err != nil {
		return err
	}
	if m.nextRow == 1 {
		if err := m.writeRows(ctx, 1, [][]any{Header}); err != nil {
			return err
		}
		m.nextRow = 2
	}

	row, found := m.rows[r.ID]
	if !found {
		row = m.nextRow
	}
	if err := m.writeRows(ctx, row, [][]any{encodeRow(r)}); err != nil {
		return err
	}
	if !found {
		m.rows[r.ID] = row
		m.nextRow++
	}
	return nil
}

// DeleteRecord blanks the record's row. Unknown ids are ignored.
func (m *Mirror) DeleteRecord(ctx context.Context, id int64) error {
	if m.svc == nil {
		return errNotInitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadIndex(ctx); err != nil {
		return err
	}
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	rng := m.rowRange(row)
	if _, err := m.svc.Spreadsheets.Values.Clear(m.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		m.invalidate()
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	delete(m.rows, id)
	return nil
}

// ReplaceAll clears the tab and writes the header followed by every record.
func (m *Mirror) ReplaceAll(ctx context.Context, records []core.Record) error {
	if m.svc == nil {
		return errNotInitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	all := a1(m.sheet, "A:"+lastColumn())
	if _, err := m.svc.Spreadsheets.Values.Clear(m.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		m.invalidate()
		return fmt.Errorf("clear %s: %w", all, err)
	}

	values := make([][]any, 0, len(records)+1)
	values = append(values, Header)
	rows := make(map[int64]int, len(records))
	for i, r := range records {
		values = append(values, encodeRow(r))
		rows[r.ID] = i + 2
	}
	if err := m.writeRows(ctx, 1, values); err != nil {
		return err
	}
	m.rows = rows
	m.nextRow = len(values) + 1
	m.indexExpiresAt = time.Now().Add(m.indexTTL)
	return nil
}

func (m *Mirror) writeRows(ctx context.Context, start int, values [][]any) error {
	rng := a1(m.sheet, fmt.Sprintf("A%d:%s%d", start, lastColumn(), start+len(values)-1))
	vr := &gsheet.ValueRange{Values: values}
	_, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		m.invalidate()
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// loadIndex re-reads column A once the cached index has expired. Caller holds mu.
func (m *Mirror) loadIndex(ctx context.Context) error {
	if time.Now().Before(m.indexExpiresAt) {
		return nil
	}
	rng := a1(m.sheet, "A:A")
	resp, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get sheet dimensions for %s: %w", m.sheet, err)
	}
	m.rows, m.nextRow = buildIndex(resp.Values)
	m.indexExpiresAt = time.Now().Add(m.indexTTL)
	return nil
}

func (m *Mirror) invalidate() {
	m.indexExpiresAt = time.Time{}
}

func (m *Mirror) rowRange(row int) string {
	return a1(m.sheet, fmt.Sprintf("A%d:%s%d", row, lastColumn(), row))
}

// buildIndex maps ids found in column A to their row and returns the first row
// after the last used one. Non-numeric cells such as the header are skipped.
func buildIndex(values [][]any) (map[int64]int, int) {
	rows := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := rows[id]; !dup {
			rows[id] = i + 1
		}
	}
	return rows, len(values) + 1
}

// encodeRow lays a record out in Header order. Absent quantities become blank cells.
func encodeRow(r core.Record) []any {
	return []any{
		r.ID,
		r.Name,
		r.Date,
		r.Place,
		r.ServiceType,
		numberCell(r.Income),
		numberCell(r.Cost),
		r.Profit(),
		numberCell(r.Hours),
		r.Status,
		r.Notes,
		r.Confirms.String(),
	}
}

func numberCell(n core.Number) any {
	if v, ok := n.Float(); ok {
		return v
	}
	return ""
}

func lastColumn() string {
	return string(rune('A' + len(Header) - 1))
}

// a1 builds an A1 range, quoting the sheet name as the API requires.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}
