package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"ledgerbot/internal/cache"
	"ledgerbot/internal/core"
	ports "ledgerbot/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultExpensesSheet = "Expenses"
	DefaultSettingsSheet = "Settings"
)

// Options configures a Sheets backed ledger.
type Options struct {
	SpreadsheetID string
	ExpensesSheet string
	SettingsSheet string

	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON []byte
	CredentialsFile string

	// CacheTTL bounds how long whole-sheet reads are reused. Writes always
	// invalidate the cache of the sheet they touch. Zero disables caching.
	CacheTTL time.Duration

	// ClientOptions are appended when building the Sheets service.
	ClientOptions []goption.ClientOption
}

// Client stores the ledger in two worksheets: an expense log with columns
// Date, Item, Amount, Category, Note and a two column Key, Value settings sheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	settingsSheet string

	// upsertMu serializes find-then-write on the settings sheet within this
	// process. Writers in other processes are not covered.
	upsertMu sync.Mutex
	rows     *cache.LRUCache[[][]string]
}

var _ ports.Ledger = (*Client)(nil)

// OptionsFromEnv reads Options from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: EXPENSES_SHEET_NAME (default "Expenses"), SETTINGS_SHEET_NAME
// (default "Settings").
func OptionsFromEnv() (Options, error) {
	opts := Options{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		ExpensesSheet: strings.TrimSpace(os.Getenv("EXPENSES_SHEET_NAME")),
		SettingsSheet: strings.TrimSpace(os.Getenv("SETTINGS_SHEET_NAME")),
	}
	if opts.SpreadsheetID == "" {
		return opts, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if js := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); js != "" {
		opts.CredentialsJSON = []byte(js)
	}
	opts.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if opts.CredentialsFile == "" {
		opts.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return opts, nil
}

// New connects to the Sheets API with service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	clientOpts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	switch {
	case len(opts.CredentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials")
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(opts.CredentialsJSON))
	case opts.CredentialsFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", opts.CredentialsFile)
		credentialsJSON, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(credentialsJSON))
	case len(opts.ClientOptions) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	if opts.ExpensesSheet == "" {
		opts.ExpensesSheet = DefaultExpensesSheet
	}
	if opts.SettingsSheet == "" {
		opts.SettingsSheet = DefaultSettingsSheet
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		expensesSheet: opts.ExpensesSheet,
		settingsSheet: opts.SettingsSheet,
		rows:          cache.NewLRUCache[[][]string](4, opts.CacheTTL),
	}
}

// Cache exposes the read cache so callers can register it for cleanup.
func (c *Client) Cache() *cache.LRUCache[[][]string] {
	return c.rows
}

func (c *Client) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	row := e.Row()
	// Amount goes in as a number so sheet formulas can sum the column.
	values := []any{row.Timestamp, row.Item, e.Amount, row.Category, row.Note}
	if err := c.appendRow(ctx, c.expensesSheet, "A:E", values); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Expense appended", "sheet", c.expensesSheet, "item", e.Item, "amount", e.Amount)
	return nil
}

func (c *Client) ReadExpenseRows(ctx context.Context) ([]core.ExpenseRow, error) {
	values, err := c.readRows(ctx, c.expensesSheet, "A:E", true)
	if err != nil {
		return nil, err
	}
	return toExpenseRows(values), nil
}

func (c *Client) AppendSetting(ctx context.Context, s core.SettingEntry) error {
	return c.appendRow(ctx, c.settingsSheet, "A:B", []any{core.EncodeSettingKey(s.Key), s.Value})
}

// UpsertSetting finds the key in column A and overwrites column B of the last
// matching row, or appends a new row when the key is absent.
func (c *Client) UpsertSetting(ctx context.Context, s core.SettingEntry) (ports.UpsertResult, error) {
	key := core.EncodeSettingKey(s.Key)

	c.upsertMu.Lock()
	defer c.upsertMu.Unlock()

	values, err := c.readRows(ctx, c.settingsSheet, "A:B", false)
	if err != nil {
		return ports.Created, err
	}
	row := lastRowWithKey(values, key)
	if row == 0 {
		if err := c.appendRow(ctx, c.settingsSheet, "A:B", []any{key, s.Value}); err != nil {
			return ports.Created, err
		}
		return ports.Created, nil
	}

	rng := a1Range(c.settingsSheet, fmt.Sprintf("B%d", row))
	vr := &gsheet.ValueRange{Values: [][]any{{s.Value}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	c.rows.Delete(c.settingsSheet)
	if err != nil {
		return ports.Updated, fmt.Errorf("update %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Setting updated in place", "key", key, "row", row)
	return ports.Updated, nil
}

func (c *Client) ReadSettingRows(ctx context.Context) ([]core.SettingRow, error) {
	values, err := c.readRows(ctx, c.settingsSheet, "A:B", true)
	if err != nil {
		return nil, err
	}
	return toSettingRows(values), nil
}

func (c *Client) appendRow(ctx context.Context, sheet, cols string, values []any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := a1Range(sheet, cols)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	c.rows.Delete(sheet)
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (c *Client) readRows(ctx context.Context, sheet, cols string, useCache bool) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if useCache {
		if rows, ok := c.rows.Get(sheet); ok {
			return rows, nil
		}
	}
	rng := a1Range(sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStrings(r)
	}
	c.rows.Set(sheet, rows)
	return rows, nil
}
