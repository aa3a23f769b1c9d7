package services

import (
	"errors"
	"fmt"
	"strings"

	"ledgerbot/internal/core"
	"ledgerbot/internal/sheets"
)

const (
	replyStoreUnavailable = "無法連接至 Google Sheet"

	prefixWriteFailed = "❌ 寫入失敗: "
	prefixSetFailed   = "❌ 設定失敗: "
	prefixQueryFailed = "❌ 查詢失敗: "

	reminderHeader = "🔔 **每日預算提醒**\n"
)

// failureReply maps a store error to the chat reply for the operation.
func failureReply(prefix string, err error) string {
	if errors.Is(err, core.ErrStoreUnavailable) {
		return replyStoreUnavailable
	}
	return prefix + err.Error()
}

func expenseRecordedReply(item string, amount int64) string {
	return fmt.Sprintf("✅ 已記錄支出: **%s** %d元", item, amount)
}

func incomeRecordedReply(item string, amount int64, p core.Period) string {
	return fmt.Sprintf("✅ 已記錄收入: **%s** %d元 (%s)", item, amount, p)
}

func fixedExpenseReply(item string, amount int64, res sheets.UpsertResult) string {
	verb := "新增"
	if res == sheets.Updated {
		verb = "更新"
	}
	return fmt.Sprintf("✅ 已%s固定支出: **%s** %d元", verb, item, amount)
}

func budgetLimitReply(month int, amount int64, res sheets.UpsertResult) string {
	verb := "設定"
	if res == sheets.Updated {
		verb = "更新"
	}
	return fmt.Sprintf("✅ 已%s%d月預算上限: **%d** 元", verb, month, amount)
}

// FormatSummary renders a summary as the chat message.
func FormatSummary(s core.Summary) string {
	var budgetInfo string
	if s.BudgetLimit > 0 {
		budgetInfo = fmt.Sprintf("\n預算上限: %d \n還可以花: %d ", s.BudgetLimit, s.SpendableRemaining)
	}
	var bonusDetail string
	if len(s.BonusItems) > 0 {
		bonusDetail = fmt.Sprintf("\n  • 額外收入: %d", s.BonusTotal)
	}
	fixedDetail := "無"
	if len(s.FixedItems) > 0 {
		parts := make([]string, len(s.FixedItems))
		for i, it := range s.FixedItems {
			parts[i] = fmt.Sprintf("%s(%d)", it.Item, it.Amount)
		}
		fixedDetail = strings.Join(parts, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 %d月\n", s.Period.Month)
	fmt.Fprintf(&b, "%s\n", budgetInfo)
	b.WriteString("-------------------\n")
	b.WriteString("收入:\n")
	fmt.Fprintf(&b, "  • 月薪: %d%s\n", s.Salary, bonusDetail)
	b.WriteString("支出:\n")
	fmt.Fprintf(&b, "  • 固定: %d (%s)\n", s.FixedTotal, fixedDetail)
	fmt.Fprintf(&b, "  • 日常: %d\n", s.DailyExpenseTotal)
	b.WriteString("-------------------\n")
	fmt.Fprintf(&b, "多存: %d\n", s.Remaining)
	return b.String()
}
