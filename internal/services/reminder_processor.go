package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ledgerbot/internal/metrics"
)

// ReminderSender delivers reminder text to wherever the transport posts it.
type ReminderSender interface {
	SendReminder(ctx context.Context, text string) error
}

// ReminderProcessor posts the monthly summary once a day.
type ReminderProcessor struct {
	service *LedgerService
	sender  ReminderSender
	checker DuenessChecker

	mu      sync.Mutex
	lastRun time.Time
}

func NewReminderProcessor(service *LedgerService, sender ReminderSender, checker DuenessChecker) *ReminderProcessor {
	return &ReminderProcessor{service: service, sender: sender, checker: checker}
}

// ProcessDue sends the reminder when it is due at now. It reports whether a
// reminder went out. A failed send leaves the reminder due.
func (p *ReminderProcessor) ProcessDue(ctx context.Context, now time.Time) (bool, error) {
	if p.service == nil || p.sender == nil || p.checker == nil {
		return false, errors.New("reminder processor not properly initialized")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checker.IsDue(p.lastRun, now) {
		return false, nil
	}

	text := p.service.ReminderText(ctx)
	if err := p.sender.SendReminder(ctx, text); err != nil {
		metrics.RemindersSent.WithLabelValues(metrics.OutcomeError).Inc()
		return false, err
	}
	p.lastRun = now
	metrics.RemindersSent.WithLabelValues(metrics.OutcomeOK).Inc()
	slog.InfoContext(ctx, "Daily reminder sent", "at", now.Format(time.RFC3339))
	return true, nil
}

// Run checks for a due reminder immediately and then every interval until
// ctx is cancelled.
func (p *ReminderProcessor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Reminder processor started", "interval", interval)
	for {
		if _, err := p.ProcessDue(ctx, p.service.Now()); err != nil {
			slog.ErrorContext(ctx, "Failed to send daily reminder", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Reminder processor stopped")
			return
		case <-ticker.C:
		}
	}
}
