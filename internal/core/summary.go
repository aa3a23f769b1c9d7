package core

import "strings"

// ItemAmount is a named amount shown in summary details.
type ItemAmount struct {
	Item   string
	Amount int64
}

// Summary is the financial picture of one month.
type Summary struct {
	Period             Period
	Salary             int64
	BonusTotal         int64
	BonusItems         []ItemAmount
	FixedTotal         int64
	FixedItems         []ItemAmount
	DailyExpenseTotal  int64
	BudgetLimit        int64
	SpendableRemaining int64
	Remaining          int64

	// SkippedRows counts settings and expense rows ignored because their
	// amount could not be parsed.
	SkippedRows int
}

// Summarize rebuilds the summary of period p from the settings table and the
// expense log. The first expense row is the header and is skipped.
//
// Fixed costs apply to every month. Income and budget entries count only when
// their period equals p; a repeated budget entry overrides earlier ones.
// Bonus income is reported but does not feed Remaining, and the budget ceiling
// is compared against daily expenses only.
func Summarize(settings []SettingRow, expenses []ExpenseRow, p Period) Summary {
	s := Summary{Period: p}

	for _, row := range settings {
		key, err := DecodeSettingKey(row.Key)
		if err != nil {
			continue
		}
		v, err := ParseStoredAmount(row.Value)
		if err != nil {
			s.SkippedRows++
			continue
		}
		switch k := key.(type) {
		case FixedKey:
			s.FixedTotal += v
			s.FixedItems = append(s.FixedItems, ItemAmount{Item: k.Item, Amount: v})
		case IncomeKey:
			if k.Period != p {
				continue
			}
			if IsBonusItem(k.Item) {
				s.BonusTotal += v
				s.BonusItems = append(s.BonusItems, ItemAmount{Item: k.Item, Amount: v})
			} else {
				s.Salary += v
			}
		case BudgetKey:
			if k.Period == p {
				s.BudgetLimit = v
			}
		}
	}

	prefix := p.DatePrefix()
	for i, row := range expenses {
		if i == 0 || row.IsEmpty() {
			continue
		}
		if !strings.HasPrefix(row.Timestamp, prefix) {
			continue
		}
		v, err := ParseStoredAmount(row.Amount)
		if err != nil {
			s.SkippedRows++
			continue
		}
		if row.Category == CategoryBonus {
			continue
		}
		s.DailyExpenseTotal += v
	}

	s.Remaining = s.Salary - s.FixedTotal - s.DailyExpenseTotal
	if s.BudgetLimit > 0 {
		s.SpendableRemaining = s.BudgetLimit - s.DailyExpenseTotal
	}
	return s
}
