package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Expense struct {
	ID         int64
	OccurredAt string
	Item       string
	Amount     int64
	Category   string
	Note       string
}

type Setting struct {
	ID    int64
	Key   string
	Kind  string
	Value int64
}

const createExpense = `INSERT INTO expenses (occurred_at, item, amount, category, note)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type CreateExpenseParams struct {
	OccurredAt string
	Item       string
	Amount     int64
	Category   string
	Note       string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createExpense,
		arg.OccurredAt, arg.Item, arg.Amount, arg.Category, arg.Note,
	).Scan(&id)
	return id, err
}

const listExpenses = `SELECT id, occurred_at, item, amount, category, note
FROM expenses
ORDER BY id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.OccurredAt, &i.Item, &i.Amount, &i.Category, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createSetting = `INSERT INTO settings (key, kind, value) VALUES (?, ?, ?)`

type CreateSettingParams struct {
	Key   string
	Kind  string
	Value int64
}

func (q *Queries) CreateSetting(ctx context.Context, arg CreateSettingParams) error {
	_, err := q.db.ExecContext(ctx, createSetting, arg.Key, arg.Kind, arg.Value)
	return err
}

const lastSettingIDByKey = `SELECT id FROM settings WHERE key = ? ORDER BY id DESC LIMIT 1`

func (q *Queries) LastSettingIDByKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, lastSettingIDByKey, key).Scan(&id)
	return id, err
}

const updateSettingValue = `UPDATE settings SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateSettingValue(ctx context.Context, id, value int64) error {
	_, err := q.db.ExecContext(ctx, updateSettingValue, value, id)
	return err
}

const listSettings = `SELECT id, key, kind, value FROM settings ORDER BY id`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Setting
	for rows.Next() {
		var i Setting
		if err := rows.Scan(&i.ID, &i.Key, &i.Kind, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
