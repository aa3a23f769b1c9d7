package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// CategoryExpense marks ordinary spending rows in the expense log.
	CategoryExpense = "支出"
	// CategoryBonus marks expense rows excluded from the daily total, and is the
	// marker substring that turns an income item into bonus income.
	CategoryBonus = "獎金"

	// TimestampLayout is how expense timestamps are written to the log.
	TimestampLayout = "2006-01-02 15:04:05"
)

type (
	// Period identifies a calendar month.
	Period struct {
		Year  int
		Month int // 1-12
	}

	// ExpenseRecord is one row appended to the expense log.
	ExpenseRecord struct {
		Timestamp time.Time
		Item      string
		Amount    int64
		Category  string
		Note      string
	}

	// ExpenseRow is an expense log row as stored, before any parsing.
	ExpenseRow struct {
		Timestamp string
		Item      string
		Amount    string
		Category  string
		Note      string
	}

	// SettingEntry is a typed settings table entry.
	SettingEntry struct {
		Key   SettingKey
		Value int64
	}

	// SettingRow is a settings table row as stored.
	SettingRow struct {
		Key   string
		Value string
	}
)

// ExpenseHeader is the first row of the expense log.
var ExpenseHeader = ExpenseRow{
	Timestamp: "Date",
	Item:      "Item",
	Amount:    "Amount",
	Category:  "Category",
	Note:      "Note",
}

var (
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyItem         = errors.New("empty item")
	ErrItemHasDelimiter  = errors.New("item must not contain ':'")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrUnknownSettingKey = errors.New("unknown setting key")
)

// PeriodOf returns the calendar month t falls in.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String renders the period the way settings keys spell it, e.g. "2026/2".
func (p Period) String() string {
	return fmt.Sprintf("%d/%d", p.Year, p.Month)
}

// DatePrefix renders the zero padded prefix used by expense timestamps, e.g. "2026-02".
func (p Period) DatePrefix() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (e ExpenseRecord) Validate() error {
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyItem
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Row serializes the record into the stored column layout.
func (e ExpenseRecord) Row() ExpenseRow {
	return ExpenseRow{
		Timestamp: e.Timestamp.Format(TimestampLayout),
		Item:      e.Item,
		Amount:    fmt.Sprintf("%d", e.Amount),
		Category:  e.Category,
		Note:      e.Note,
	}
}

// Row serializes the entry into the stored key/value layout.
func (s SettingEntry) Row() SettingRow {
	return SettingRow{Key: EncodeSettingKey(s.Key), Value: fmt.Sprintf("%d", s.Value)}
}

// Values returns the row as the five ordered columns of the expense log.
func (r ExpenseRow) Values() []string {
	return []string{r.Timestamp, r.Item, r.Amount, r.Category, r.Note}
}

// ExpenseRowFromValues builds a row from ordered columns; missing trailing
// columns are left empty.
func ExpenseRowFromValues(cols []string) ExpenseRow {
	get := func(i int) string {
		if i < len(cols) {
			return cols[i]
		}
		return ""
	}
	return ExpenseRow{
		Timestamp: get(0),
		Item:      get(1),
		Amount:    get(2),
		Category:  get(3),
		Note:      get(4),
	}
}

// IsEmpty reports whether every column of the row is blank.
func (r ExpenseRow) IsEmpty() bool {
	for _, v := range r.Values() {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// IsBonusItem reports whether an income item counts as bonus income.
// Classification is a plain substring match on the item name, so an item such
// as "郵局獎金領取手續" is classified as bonus too.
func IsBonusItem(item string) bool {
	return strings.Contains(item, CategoryBonus)
}
