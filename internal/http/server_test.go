package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgerbot/internal/core"
	"ledgerbot/internal/services"
	"ledgerbot/internal/sheets/memory"
)

func fixedClock() time.Time { return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	svc := services.NewLedgerService(memory.New(), services.WithClock(fixedClock))
	s := NewServer(":0", svc, opts...)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func postMessage(t *testing.T, s *Server, sender, text string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"sender":%q,"text":%q}`, sender, text)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "ok"},
		{"/readyz", "ready"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusOK || rec.Body.String() != tt.want {
				t.Errorf("GET %s = %d %q", tt.path, rec.Code, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Errorf("expected request id header")
			}
		})
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestReadyzReportsStoreFailure(t *testing.T) {
	s := newTestServer(t, WithReadiness(fakePinger{err: errors.New("db locked")}))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	postMessage(t, s, "u", "支出 午餐 100")

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ledgerbot_commands_handled_total") {
		t.Fatalf("metrics not exposed: %d", rec.Code)
	}
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantHandled bool
		wantReply   string
	}{
		{
			name:        "expense",
			body:        `{"sender":"u1","text":"支出 午餐 120"}`,
			wantStatus:  http.StatusOK,
			wantHandled: true,
			wantReply:   "✅ 已記錄支出: **午餐** 120元",
		},
		{
			name:        "income",
			body:        `{"sender":"u1","text":"收入 薪水 50000"}`,
			wantStatus:  http.StatusOK,
			wantHandled: true,
			wantReply:   "✅ 已記錄收入: **薪水** 50000元 (2026/2)",
		},
		{
			name:        "not a command",
			body:        `{"sender":"u1","text":"今天天氣很好"}`,
			wantStatus:  http.StatusOK,
			wantHandled: false,
			wantReply:   "",
		},
		{
			name:        "leading whitespace is not a command",
			body:        `{"sender":"u1","text":" 支出 午餐 100"}`,
			wantStatus:  http.StatusOK,
			wantHandled: false,
		},
		{
			name:        "trailing whitespace is not a command",
			body:        `{"sender":"u1","text":"支出 午餐 100 "}`,
			wantStatus:  http.StatusOK,
			wantHandled: false,
		},
		{
			name:       "empty text",
			body:       `{"sender":"u1","text":"   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"sender":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Errorf("missing API security headers")
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp messageResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Handled != tt.wantHandled || resp.Reply != tt.wantReply {
				t.Errorf("response = %+v, want handled=%v reply=%q", resp, tt.wantHandled, tt.wantReply)
			}
		})
	}
}

func TestHandleMessageRateLimitPerSender(t *testing.T) {
	s := newTestServer(t, WithRateLimit(2))

	for i := 0; i < 2; i++ {
		if rec := postMessage(t, s, "alice", "支出 咖啡 50"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := postMessage(t, s, "alice", "支出 咖啡 50")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected 429 with Retry-After, got %d", rec.Code)
	}
	if rec := postMessage(t, s, "bob", "支出 咖啡 50"); rec.Code != http.StatusOK {
		t.Fatalf("other sender should not be limited, got %d", rec.Code)
	}
}

func TestHandleSummary(t *testing.T) {
	s := newTestServer(t)
	for _, text := range []string{"收入 薪水 50000", "收入 年終獎金 30000", "固定 房租 15000", "預算 20000", "支出 午餐 100"} {
		if rec := postMessage(t, s, "u", text); rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", text, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Period != "2026/2" || got.Salary != 50000 || got.BonusTotal != 30000 {
		t.Errorf("unexpected income: %+v", got)
	}
	if got.FixedTotal != 15000 || got.DailyExpenseTotal != 100 || got.BudgetLimit != 20000 {
		t.Errorf("unexpected spending: %+v", got)
	}
	if got.SpendableRemaining != 19900 || got.Remaining != 34900 {
		t.Errorf("unexpected remaining: %+v", got)
	}
	if !strings.HasPrefix(got.Text, "💰 2月\n") {
		t.Errorf("text should render the chat summary: %q", got.Text)
	}

	// Another month sees fixed costs only.
	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary?year=2026&month=3", nil))
	got = summaryResponse{}
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Period != "2026/3" || got.Salary != 0 || got.FixedTotal != 15000 || got.DailyExpenseTotal != 0 {
		t.Errorf("unexpected March summary: %+v", got)
	}
}

func TestHandleSummaryBadQuery(t *testing.T) {
	s := newTestServer(t)
	for _, q := range []string{"?month=13", "?month=abc", "?year=x"} {
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

type unavailableService struct{}

func (unavailableService) Handle(context.Context, string) (string, bool) { return "", false }
func (unavailableService) Now() time.Time                                { return fixedClock() }
func (unavailableService) Summary(context.Context, core.Period) (core.Summary, error) {
	return core.Summary{}, fmt.Errorf("%w: dial tcp: timeout", core.ErrStoreUnavailable)
}

func TestHandleSummaryStoreUnavailable(t *testing.T) {
	s := NewServer(":0", unavailableService{})
	defer s.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
