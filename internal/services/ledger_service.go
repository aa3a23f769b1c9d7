// Package services turns classified chat commands into ledger operations and
// chat replies.
package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/command"
	"ledgerbot/internal/core"
	"ledgerbot/internal/metrics"
	"ledgerbot/internal/sheets"
)

// EventPublisher receives an event after every successful mutation.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService dispatches chat commands against a ledger repository.
type LedgerService struct {
	repo   sheets.Ledger
	events EventPublisher
	now    func() time.Time
}

type Option func(*LedgerService)

// WithClock replaces the clock used for timestamps and the current month.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithLocation evaluates "now" in loc.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.now = func() time.Time { return time.Now().In(loc) }
		}
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.events = p }
}

func NewLedgerService(repo sheets.Ledger, opts ...Option) *LedgerService {
	s := &LedgerService{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *LedgerService) Now() time.Time {
	return s.now()
}

// Handle classifies text and performs the command it names. It reports false
// when the text is neither a command nor a help trigger.
func (s *LedgerService) Handle(ctx context.Context, text string) (string, bool) {
	intent, ok := command.Classify(text)
	if !ok {
		if command.IsHelpTrigger(text) {
			return command.HelpText, true
		}
		return "", false
	}

	start := time.Now()
	reply, outcome := s.dispatch(ctx, intent)
	kind := intent.Kind.String()
	metrics.CommandsTotal.WithLabelValues(kind, outcome).Inc()
	metrics.CommandDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	slog.InfoContext(ctx, "Command handled", "intent", kind, "outcome", outcome)
	return reply, true
}

func (s *LedgerService) dispatch(ctx context.Context, in command.Intent) (string, string) {
	now := s.now()
	period := core.PeriodOf(now)

	switch in.Kind {
	case command.KindAddExpense:
		rec := core.ExpenseRecord{Timestamp: now, Item: in.Item, Amount: in.Amount, Category: core.CategoryExpense}
		if err := s.repo.AppendExpense(ctx, rec); err != nil {
			return s.failed(ctx, in, prefixWriteFailed, err)
		}
		s.publish(ctx, in, "", period, "")
		return expenseRecordedReply(in.Item, in.Amount), metrics.OutcomeOK

	case command.KindAddIncome:
		if err := core.ValidateSettingItem(in.Item); err != nil {
			return prefixWriteFailed + err.Error(), metrics.OutcomeRejected
		}
		key := core.IncomeKey{Period: period, Item: in.Item}
		if err := s.repo.AppendSetting(ctx, core.SettingEntry{Key: key, Value: in.Amount}); err != nil {
			return s.failed(ctx, in, prefixWriteFailed, err)
		}
		s.publish(ctx, in, core.EncodeSettingKey(key), period, "")
		return incomeRecordedReply(in.Item, in.Amount, period), metrics.OutcomeOK

	case command.KindSetFixedExpense:
		if err := core.ValidateSettingItem(in.Item); err != nil {
			return prefixSetFailed + err.Error(), metrics.OutcomeRejected
		}
		key := core.FixedKey{Item: in.Item}
		res, err := s.repo.UpsertSetting(ctx, core.SettingEntry{Key: key, Value: in.Amount})
		if err != nil {
			return s.failed(ctx, in, prefixSetFailed, err)
		}
		s.publish(ctx, in, core.EncodeSettingKey(key), period, res.String())
		return fixedExpenseReply(in.Item, in.Amount, res), metrics.OutcomeOK

	case command.KindSetBudgetLimit:
		key := core.BudgetKey{Period: period}
		res, err := s.repo.UpsertSetting(ctx, core.SettingEntry{Key: key, Value: in.Amount})
		if err != nil {
			return s.failed(ctx, in, prefixSetFailed, err)
		}
		s.publish(ctx, in, core.EncodeSettingKey(key), period, res.String())
		return budgetLimitReply(period.Month, in.Amount, res), metrics.OutcomeOK

	case command.KindQueryBudget:
		if in.Query.Scope == command.ExplicitMonth {
			period = in.Query.Period
		}
		sum, err := s.Summary(ctx, period)
		if err != nil {
			return s.failed(ctx, in, prefixQueryFailed, err)
		}
		return FormatSummary(sum), metrics.OutcomeOK
	}
	return "", metrics.OutcomeRejected
}

func (s *LedgerService) failed(ctx context.Context, in command.Intent, prefix string, err error) (string, string) {
	slog.ErrorContext(ctx, "Ledger operation failed", "intent", in.Kind.String(), "error", err)
	reply := failureReply(prefix, err)
	if reply == replyStoreUnavailable {
		return reply, metrics.OutcomeUnavailable
	}
	return reply, metrics.OutcomeError
}

// Summary reads both tables concurrently and aggregates period p.
func (s *LedgerService) Summary(ctx context.Context, p core.Period) (core.Summary, error) {
	var (
		settings []core.SettingRow
		expenses []core.ExpenseRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = s.repo.ReadSettingRows(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ReadExpenseRows(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	sum := core.Summarize(settings, expenses, p)
	if sum.SkippedRows > 0 {
		metrics.SkippedRows.Add(float64(sum.SkippedRows))
		slog.DebugContext(ctx, "Skipped malformed ledger rows", "period", p.String(), "count", sum.SkippedRows)
	}
	return sum, nil
}

// SummaryReply renders the summary of p, or the failure reply.
func (s *LedgerService) SummaryReply(ctx context.Context, p core.Period) string {
	sum, err := s.Summary(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Summary failed", "period", p.String(), "error", err)
		return failureReply(prefixQueryFailed, err)
	}
	return FormatSummary(sum)
}

// ReminderText is the daily reminder for the current month.
func (s *LedgerService) ReminderText(ctx context.Context) string {
	return reminderHeader + s.SummaryReply(ctx, core.PeriodOf(s.now()))
}

func (s *LedgerService) publish(ctx context.Context, in command.Intent, key string, p core.Period, result string) {
	if s.events == nil {
		return
	}
	ev := amqp.NewLedgerEvent(in.Kind.String(), key, in.Item, in.Amount, p.String(), result)
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(metrics.OutcomeError).Inc()
		slog.WarnContext(ctx, "Failed to publish ledger event", "event_id", ev.ID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(metrics.OutcomeOK).Inc()
}
