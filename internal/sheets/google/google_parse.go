package google

import (
	"fmt"
	"strings"

	"ledgerbot/internal/core"
)

// a1Range quotes the sheet title so names with spaces or CJK characters are
// accepted by the API.
func a1Range(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

// toExpenseRows maps raw sheet values to expense rows. An empty sheet still
// reads as a header only log.
func toExpenseRows(values [][]string) []core.ExpenseRow {
	if len(values) == 0 {
		return []core.ExpenseRow{core.ExpenseHeader}
	}
	rows := make([]core.ExpenseRow, 0, len(values))
	for _, v := range values {
		rows = append(rows, core.ExpenseRowFromValues(v))
	}
	return rows
}

// toSettingRows keeps rows with a key in column A. A missing value column
// reads as an empty value.
func toSettingRows(values [][]string) []core.SettingRow {
	rows := make([]core.SettingRow, 0, len(values))
	for _, v := range values {
		if len(v) == 0 {
			continue
		}
		r := core.SettingRow{Key: strings.TrimSpace(v[0])}
		if r.Key == "" {
			continue
		}
		if len(v) > 1 {
			r.Value = v[1]
		}
		rows = append(rows, r)
	}
	return rows
}

// lastRowWithKey returns the 1-based sheet row of the last row whose column A
// equals key, or 0.
func lastRowWithKey(values [][]string, key string) int {
	for i := len(values) - 1; i >= 0; i-- {
		if len(values[i]) > 0 && strings.TrimSpace(values[i][0]) == key {
			return i + 1
		}
	}
	return 0
}
