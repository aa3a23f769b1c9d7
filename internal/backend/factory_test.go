package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledgerbot/internal/config"
	"ledgerbot/internal/core"
)

func TestBackendTypeIsValid(t *testing.T) {
	for _, bt := range []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend} {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("postgres").IsValid() {
		t.Error("postgres should be invalid")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite ok", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite no path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"sheets no id", Config{Type: SheetsBackend, GoogleCredentialsJSON: "{}"}, "Spreadsheet ID is required"},
		{"sheets no creds", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id"}, "service account JSON"},
		{"unknown", Config{Type: "csv"}, "invalid backend type: csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		DataBackend:                  "sheets",
		GoogleSpreadsheetID:          "sheet",
		GoogleApplicationCredentials: "/etc/sa.json",
		ExpensesSheetName:            "Log",
		SettingsSheetName:            "Prefs",
		SheetsCacheTTL:               time.Minute,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleCredentialsFile != "/etc/sa.json" || cfg.SheetsCacheTTL != time.Minute {
		t.Errorf("unexpected conversion: %+v", cfg)
	}

	app.GoogleServiceAccountFile = "/etc/explicit.json"
	cfg, _ = FromAppConfig(app)
	if cfg.GoogleCredentialsFile != "/etc/explicit.json" {
		t.Errorf("explicit service account file should win, got %s", cfg.GoogleCredentialsFile)
	}

	app.DataBackend = "bogus"
	if _, err := FromAppConfig(app); err == nil {
		t.Error("expected error for bogus backend")
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed_settings.txt"), []byte("Fixed:房租=15000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	rows, err := res.Ledger.ReadSettingRows(context.Background())
	if err != nil || len(rows) != 1 || rows[0].Key != "Fixed:房租" {
		t.Fatalf("seeded rows = %v, err = %v", rows, err)
	}
	if res.Ready != nil || res.Caches != nil {
		t.Error("memory backend needs no readiness check or cache manager")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	ctx := context.Background()
	if err := res.Ready.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	err = res.Ledger.AppendExpense(ctx, core.ExpenseRecord{
		Timestamp: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		Item:      "早餐",
		Amount:    80,
		Category:  core.CategoryExpense,
	})
	if err != nil {
		t.Fatalf("AppendExpense() error = %v", err)
	}
	rows, _ := res.Ledger.ReadExpenseRows(ctx)
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %v", rows)
	}
}

func TestCreateSheetsBackendIsLazy(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:                  SheetsBackend,
		GoogleSpreadsheetID:   "sheet",
		GoogleCredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
		SheetsCacheTTL:        time.Minute,
	})
	if err != nil {
		t.Fatalf("construction must not connect: %v", err)
	}
	if res.Caches == nil {
		t.Error("expected a cache manager when caching is enabled")
	}

	_, err = res.Ledger.ReadSettingRows(context.Background())
	if err == nil || !strings.Contains(err.Error(), core.ErrStoreUnavailable.Error()) {
		t.Fatalf("expected store unavailable on first use, got %v", err)
	}
}
