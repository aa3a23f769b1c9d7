package google

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ledgerbot/internal/core"
	ports "ledgerbot/internal/sheets"
)

// Connector builds the Sheets client on first use. A failed connection is not
// remembered, so the next call tries again.
type Connector struct {
	opts    Options
	connect func(context.Context, Options) (*Client, error)

	mu     sync.Mutex
	client *Client
}

var _ ports.Ledger = (*Connector)(nil)

func NewConnector(opts Options) *Connector {
	return &Connector{opts: opts, connect: New}
}

func (c *Connector) get(ctx context.Context) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := c.connect(ctx, c.opts)
	if err != nil {
		slog.ErrorContext(ctx, "Google Sheets connection failed", "error", err)
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	c.client = client
	return client, nil
}

// Client returns the connected client, connecting if needed.
func (c *Connector) Client(ctx context.Context) (*Client, error) {
	return c.get(ctx)
}

func (c *Connector) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	client, err := c.get(ctx)
	if err != nil {
		return err
	}
	return client.AppendExpense(ctx, e)
}

func (c *Connector) ReadExpenseRows(ctx context.Context) ([]core.ExpenseRow, error) {
	client, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.ReadExpenseRows(ctx)
}

func (c *Connector) AppendSetting(ctx context.Context, s core.SettingEntry) error {
	client, err := c.get(ctx)
	if err != nil {
		return err
	}
	return client.AppendSetting(ctx, s)
}

func (c *Connector) UpsertSetting(ctx context.Context, s core.SettingEntry) (ports.UpsertResult, error) {
	client, err := c.get(ctx)
	if err != nil {
		return ports.Created, err
	}
	return client.UpsertSetting(ctx, s)
}

func (c *Connector) ReadSettingRows(ctx context.Context) ([]core.SettingRow, error) {
	client, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.ReadSettingRows(ctx)
}

// Ping connects if needed and reports whether the spreadsheet is reachable.
func (c *Connector) Ping(ctx context.Context) error {
	client, err := c.get(ctx)
	if err != nil {
		return err
	}
	_, err = client.svc.Spreadsheets.Get(client.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// CleanExpired drops expired read cache entries once connected.
func (c *Connector) CleanExpired() int {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return 0
	}
	return client.rows.CleanExpired()
}
