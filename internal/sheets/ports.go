package sheets

import (
	"context"

	"ledgerbot/internal/core"
)

// UpsertResult tells whether an upsert created a row or overwrote one.
type UpsertResult int

const (
	Created UpsertResult = iota
	Updated
)

func (r UpsertResult) String() string {
	if r == Updated {
		return "updated"
	}
	return "created"
}

// Ports for outbound adapters.
type (
	ExpenseAppender interface {
		// AppendExpense adds one row to the end of the expense log.
		AppendExpense(ctx context.Context, e core.ExpenseRecord) error
	}

	// ExpenseReader returns the expense log as stored, header row first.
	ExpenseReader interface {
		ReadExpenseRows(ctx context.Context) ([]core.ExpenseRow, error)
	}

	SettingsWriter interface {
		// AppendSetting adds a row without looking for an existing key.
		AppendSetting(ctx context.Context, s core.SettingEntry) error
		// UpsertSetting overwrites the value of an existing row with the same
		// key, or appends a new row when none exists.
		UpsertSetting(ctx context.Context, s core.SettingEntry) (UpsertResult, error)
	}

	// SettingsReader returns every settings row in table order.
	SettingsReader interface {
		ReadSettingRows(ctx context.Context) ([]core.SettingRow, error)
	}

	// Ledger is the full repository contract consumed by the ledger service.
	Ledger interface {
		ExpenseAppender
		ExpenseReader
		SettingsWriter
		SettingsReader
	}
)
