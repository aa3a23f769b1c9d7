package backend

import (
	"context"
	"fmt"
	"time"

	"ledgerbot/internal/cache"
	"ledgerbot/internal/config"
	"ledgerbot/internal/sheets"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Pinger reports whether a backend's store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult contains the ledger store and what the caller must run or
// release alongside it. Ready and Caches may be nil.
type BackendResult struct {
	Ledger  sheets.Ledger
	Ready   Pinger
	Caches  *cache.Manager
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string
	ExpensesSheetName     string
	SettingsSheetName     string
	SheetsCacheTTL        time.Duration

	// Memory backend specific
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	credFile := appConfig.GoogleServiceAccountFile
	if credFile == "" {
		credFile = appConfig.GoogleApplicationCredentials
	}

	return Config{
		Type:                  backendType,
		SQLiteDBPath:          appConfig.SQLiteDBPath,
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleCredentialsJSON: appConfig.GoogleServiceAccountJSON,
		GoogleCredentialsFile: credFile,
		ExpensesSheetName:     appConfig.ExpensesSheetName,
		SettingsSheetName:     appConfig.SettingsSheetName,
		SheetsCacheTTL:        appConfig.SheetsCacheTTL,
		DataDirectory:         "data",
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" {
			return fmt.Errorf("either service account JSON or a credentials file must be provided for sheets backend")
		}
	}
	return nil
}
