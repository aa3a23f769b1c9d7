package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	fixedPrefix  = "Fixed:"
	incomePrefix = "Income:"
	budgetPrefix = "Budget:"
	keyDelimiter = ":"
)

// SettingKey is the structured key of a settings table entry. It is one of
// FixedKey, IncomeKey or BudgetKey.
type SettingKey interface {
	settingKey()
	// Unique reports whether at most one row may carry this key.
	Unique() bool
}

type (
	// FixedKey identifies a recurring fixed cost. Fixed costs apply to every month.
	FixedKey struct {
		Item string
	}

	// IncomeKey identifies one income entry of a month.
	IncomeKey struct {
		Period Period
		Item   string
	}

	// BudgetKey identifies the spending ceiling of a month.
	BudgetKey struct {
		Period Period
	}
)

func (FixedKey) settingKey()  {}
func (IncomeKey) settingKey() {}
func (BudgetKey) settingKey() {}

func (FixedKey) Unique() bool  { return true }
func (IncomeKey) Unique() bool { return false }
func (BudgetKey) Unique() bool { return true }

// Kind returns a short label for the key family, used for storage and logs.
func Kind(k SettingKey) string {
	switch k.(type) {
	case FixedKey:
		return "fixed"
	case IncomeKey:
		return "income"
	case BudgetKey:
		return "budget"
	default:
		return "unknown"
	}
}

func EncodeFixedKey(item string) string {
	return fixedPrefix + item
}

func EncodeIncomeKey(year, month int, item string) string {
	return fmt.Sprintf("%s%d/%d%s%s", incomePrefix, year, month, keyDelimiter, item)
}

func EncodeBudgetKey(year, month int) string {
	return fmt.Sprintf("%s%d/%d", budgetPrefix, year, month)
}

// EncodeSettingKey serializes a structured key into its flat table form.
func EncodeSettingKey(k SettingKey) string {
	switch k := k.(type) {
	case FixedKey:
		return EncodeFixedKey(k.Item)
	case IncomeKey:
		return EncodeIncomeKey(k.Period.Year, k.Period.Month, k.Item)
	case BudgetKey:
		return EncodeBudgetKey(k.Period.Year, k.Period.Month)
	default:
		return ""
	}
}

// DecodeSettingKey parses a flat table key.
//
// Income keys are decoded lossily: the period ends at the first ':' after the
// prefix while the item starts after the last ':'. An item containing ':'
// therefore loses everything before its last ':'.
func DecodeSettingKey(s string) (SettingKey, error) {
	switch {
	case strings.HasPrefix(s, fixedPrefix):
		return FixedKey{Item: strings.TrimPrefix(s, fixedPrefix)}, nil

	case strings.HasPrefix(s, incomePrefix):
		rest := strings.TrimPrefix(s, incomePrefix)
		i := strings.Index(rest, keyDelimiter)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSettingKey, s)
		}
		p, err := parsePeriod(rest[:i])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSettingKey, s)
		}
		item := rest[strings.LastIndex(rest, keyDelimiter)+1:]
		return IncomeKey{Period: p, Item: item}, nil

	case strings.HasPrefix(s, budgetPrefix):
		p, err := parsePeriod(strings.TrimPrefix(s, budgetPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSettingKey, s)
		}
		return BudgetKey{Period: p}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSettingKey, s)
}

// ValidateSettingItem rejects item names that cannot round-trip through the
// flat key encoding.
func ValidateSettingItem(item string) error {
	if strings.TrimSpace(item) == "" {
		return ErrEmptyItem
	}
	if strings.Contains(item, keyDelimiter) {
		return ErrItemHasDelimiter
	}
	return nil
}

// parsePeriod reads "<year>/<month>" exactly as the encoder writes it, so
// "2026/02" is not the same month as "2026/2".
func parsePeriod(s string) (Period, error) {
	ys, ms, ok := strings.Cut(s, "/")
	if !ok {
		return Period{}, ErrInvalidMonth
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Period{}, ErrInvalidMonth
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return Period{}, ErrInvalidMonth
	}
	p := Period{Year: y, Month: m}
	if p.String() != s {
		return Period{}, ErrInvalidMonth
	}
	return p, nil
}
