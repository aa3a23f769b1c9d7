package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"ledgerbot/internal/core"
	ports "ledgerbot/internal/sheets"

	_ "modernc.org/sqlite"
)

var _ ports.Ledger = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers, which makes the read-then-write in
	// UpsertSetting atomic without relying on busy retries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database still answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	row := e.Row()
	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		OccurredAt: row.Timestamp,
		Item:       e.Item,
		Amount:     e.Amount,
		Category:   e.Category,
		Note:       e.Note,
	})
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense saved to SQLite", "id", id, "item", e.Item, "amount", e.Amount)
	return nil
}

// ReadExpenseRows returns the header row followed by every expense in
// insertion order.
func (r *SQLiteRepository) ReadExpenseRows(ctx context.Context) ([]core.ExpenseRow, error) {
	expenses, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	rows := make([]core.ExpenseRow, 0, len(expenses)+1)
	rows = append(rows, core.ExpenseHeader)
	for _, e := range expenses {
		rows = append(rows, core.ExpenseRow{
			Timestamp: e.OccurredAt,
			Item:      e.Item,
			Amount:    strconv.FormatInt(e.Amount, 10),
			Category:  e.Category,
			Note:      e.Note,
		})
	}
	return rows, nil
}

// AppendSetting inserts a new row. Keys other than income keys are unique, so
// appending one that already exists fails.
func (r *SQLiteRepository) AppendSetting(ctx context.Context, s core.SettingEntry) error {
	err := r.queries.CreateSetting(ctx, CreateSettingParams{
		Key:   core.EncodeSettingKey(s.Key),
		Kind:  core.Kind(s.Key),
		Value: s.Value,
	})
	if err != nil {
		return fmt.Errorf("create setting: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertSetting(ctx context.Context, s core.SettingEntry) (ports.UpsertResult, error) {
	key := core.EncodeSettingKey(s.Key)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.Created, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	result := ports.Updated
	id, err := q.LastSettingIDByKey(ctx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result = ports.Created
		err = q.CreateSetting(ctx, CreateSettingParams{Key: key, Kind: core.Kind(s.Key), Value: s.Value})
	case err == nil:
		err = q.UpdateSettingValue(ctx, id, s.Value)
	}
	if err != nil {
		return result, fmt.Errorf("upsert setting %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}
	slog.DebugContext(ctx, "Setting upserted", "key", key, "result", result.String())
	return result, nil
}

func (r *SQLiteRepository) ReadSettingRows(ctx context.Context) ([]core.SettingRow, error) {
	settings, err := r.queries.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	rows := make([]core.SettingRow, 0, len(settings))
	for _, s := range settings {
		rows = append(rows, core.SettingRow{Key: s.Key, Value: strconv.FormatInt(s.Value, 10)})
	}
	return rows, nil
}
