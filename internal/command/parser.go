// Package command classifies free-form chat text into ledger intents.
//
// Grammars are tried in a fixed priority order and the first match wins:
//
//	預算 <amount>             SetBudgetLimit
//	固定 <item> <amount>      SetFixedExpense
//	收入 <item> <amount>      AddIncome
//	統計 [<yyyy>/<m>]         QueryBudget
//	支出 <item> <amount>      AddExpense
//
// Keywords must open the message. An item runs up to the last whitespace
// preceding a trailing run of ASCII digits, so it may contain spaces and
// punctuation such as "巨城/CORBAN".
package command

import (
	"regexp"
	"strconv"
	"strings"

	"ledgerbot/internal/core"
)

const (
	KeywordBudget  = "預算"
	KeywordFixed   = "固定"
	KeywordIncome  = "收入"
	KeywordQuery   = "統計"
	KeywordExpense = "支出"
)

// ws matches ASCII whitespace and Unicode space separators (e.g. U+3000).
const ws = `[\s\p{Zs}]`

var (
	budgetRe  = regexp.MustCompile(`^` + KeywordBudget + ws + `+([0-9]+)$`)
	fixedRe   = itemAmountRe(KeywordFixed)
	incomeRe  = itemAmountRe(KeywordIncome)
	expenseRe = itemAmountRe(KeywordExpense)
	queryRe   = regexp.MustCompile(`^` + KeywordQuery + ws + `+([0-9]{4})/([0-9]{1,2})$`)
)

func itemAmountRe(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`^` + keyword + ws + `+(.+?)` + ws + `+([0-9]+)$`)
}

// Kind enumerates the intents, in priority order.
type Kind int

const (
	KindNone Kind = iota
	KindSetBudgetLimit
	KindSetFixedExpense
	KindAddIncome
	KindQueryBudget
	KindAddExpense
)

func (k Kind) String() string {
	switch k {
	case KindSetBudgetLimit:
		return "set_budget_limit"
	case KindSetFixedExpense:
		return "set_fixed_expense"
	case KindAddIncome:
		return "add_income"
	case KindQueryBudget:
		return "query_budget"
	case KindAddExpense:
		return "add_expense"
	default:
		return "none"
	}
}

// Intent is a classified command. Item and Amount are set for the mutation
// kinds; Query is set for KindQueryBudget.
type Intent struct {
	Kind   Kind
	Item   string
	Amount int64
	Query  Query
}

// QueryScope is the outcome of budget query detection.
type QueryScope int

const (
	// NotQuery means the text is not a budget query at all.
	NotQuery QueryScope = iota
	// CurrentMonth means "統計" on its own.
	CurrentMonth
	// ExplicitMonth means "統計 <yyyy>/<m>".
	ExplicitMonth
)

// Query is a parsed budget query. Period is only meaningful for ExplicitMonth.
type Query struct {
	Scope  QueryScope
	Period core.Period
}

// Classify returns the highest priority intent matching text.
func Classify(text string) (Intent, bool) {
	if amount, ok := ParseBudgetLimit(text); ok {
		return Intent{Kind: KindSetBudgetLimit, Amount: amount}, true
	}
	if item, amount, ok := ParseFixedExpense(text); ok {
		return Intent{Kind: KindSetFixedExpense, Item: item, Amount: amount}, true
	}
	if item, amount, ok := ParseIncome(text); ok {
		return Intent{Kind: KindAddIncome, Item: item, Amount: amount}, true
	}
	if q := ParseBudgetQuery(text); q.Scope != NotQuery {
		return Intent{Kind: KindQueryBudget, Query: q}, true
	}
	if item, amount, ok := ParseExpense(text); ok {
		return Intent{Kind: KindAddExpense, Item: item, Amount: amount}, true
	}
	return Intent{}, false
}

// ParseBudgetLimit matches "預算 <amount>". A zero amount does not match.
func ParseBudgetLimit(text string) (int64, bool) {
	m := budgetRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	amount, err := core.ParseAmount(m[1])
	if err != nil || amount == 0 {
		return 0, false
	}
	return amount, true
}

func ParseFixedExpense(text string) (string, int64, bool) {
	return parseItemAmount(fixedRe, text)
}

func ParseIncome(text string) (string, int64, bool) {
	return parseItemAmount(incomeRe, text)
}

func ParseExpense(text string) (string, int64, bool) {
	return parseItemAmount(expenseRe, text)
}

// ParseBudgetQuery detects "統計" and "統計 <yyyy>/<m>". A month outside
// 1-12 makes the text not a query.
func ParseBudgetQuery(text string) Query {
	if text == KeywordQuery {
		return Query{Scope: CurrentMonth}
	}
	m := queryRe.FindStringSubmatch(text)
	if m == nil {
		return Query{Scope: NotQuery}
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	p := core.Period{Year: year, Month: month}
	if p.Validate() != nil {
		return Query{Scope: NotQuery}
	}
	return Query{Scope: ExplicitMonth, Period: p}
}

func parseItemAmount(re *regexp.Regexp, text string) (string, int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	item := strings.TrimSpace(m[1])
	if item == "" {
		return "", 0, false
	}
	amount, err := core.ParseAmount(m[2])
	if err != nil {
		return "", 0, false
	}
	return item, amount, true
}
