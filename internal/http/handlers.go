package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ledgerbot/internal/core"
	"ledgerbot/internal/log"
	"ledgerbot/internal/metrics"
	"ledgerbot/internal/services"
)

const (
	transportHTTP   = "http"
	maxMessageBytes = 8 << 10
)

type messageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type messageResponse struct {
	Reply   string `json:"reply"`
	Handled bool   `json:"handled"`
}

type itemAmount struct {
	Item   string `json:"item"`
	Amount int64  `json:"amount"`
}

type summaryResponse struct {
	Period             string       `json:"period"`
	Salary             int64        `json:"salary"`
	BonusTotal         int64        `json:"bonus_total"`
	BonusItems         []itemAmount `json:"bonus_items"`
	FixedTotal         int64        `json:"fixed_total"`
	FixedItems         []itemAmount `json:"fixed_items"`
	DailyExpenseTotal  int64        `json:"daily_expense_total"`
	BudgetLimit        int64        `json:"budget_limit"`
	SpendableRemaining int64        `json:"spendable_remaining"`
	Remaining          int64        `json:"remaining"`
	Text               string       `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleMessage runs one chat line. Text that is not a command answers 200
// with handled=false, matching a chat bot that stays silent.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var req messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	key := strings.TrimSpace(req.Sender)
	if key == "" {
		key = s.ips.ExtractClientIP(r)
	}
	if !s.limiter.Allow(key) {
		metrics.RateLimited.WithLabelValues(transportHTTP).Inc()
		logger.WarnContext(ctx, "Rate limit exceeded", log.FieldSender, key)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	reply, handled := s.service.Handle(ctx, req.Text)
	if !handled {
		metrics.MessagesIgnored.WithLabelValues(transportHTTP).Inc()
	}
	logger.DebugContext(ctx, "Message handled", log.NewFields().WithMessage(transportHTTP, key).ToSlice()...)
	writeJSON(w, http.StatusOK, messageResponse{Reply: reply, Handled: handled})
}

// handleSummary returns the summary of ?year=&month=, defaulting to the
// current month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := s.periodFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sum, err := s.service.Summary(ctx, p)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Summary failed",
			log.FieldOperation, log.OpSummary,
			log.FieldPeriod, p.String(),
			log.FieldError, err)
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) periodFromQuery(r *http.Request) (core.Period, error) {
	p := core.PeriodOf(s.service.Now())
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("invalid year")
		}
		p.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("invalid month")
		}
		p.Month = m
	}
	return p, p.Validate()
}

func toSummaryResponse(s core.Summary) summaryResponse {
	conv := func(in []core.ItemAmount) []itemAmount {
		out := make([]itemAmount, 0, len(in))
		for _, ia := range in {
			out = append(out, itemAmount{Item: ia.Item, Amount: ia.Amount})
		}
		return out
	}
	return summaryResponse{
		Period:             s.Period.String(),
		Salary:             s.Salary,
		BonusTotal:         s.BonusTotal,
		BonusItems:         conv(s.BonusItems),
		FixedTotal:         s.FixedTotal,
		FixedItems:         conv(s.FixedItems),
		DailyExpenseTotal:  s.DailyExpenseTotal,
		BudgetLimit:        s.BudgetLimit,
		SpendableRemaining: s.SpendableRemaining,
		Remaining:          s.Remaining,
		Text:               services.FormatSummary(s),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
