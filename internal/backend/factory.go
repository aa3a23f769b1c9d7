package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ledgerbot/internal/cache"
	gsheet "ledgerbot/internal/sheets/google"
	"ledgerbot/internal/sheets/memory"
	"ledgerbot/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Ledger:  repo,
		Ready:   repo,
		Cleanup: repo.Close,
	}, nil
}

// createSheetsBackend defers the API connection to first use, so a process
// can start while Google is unreachable and commands report the outage.
func (f *DefaultFactory) createSheetsBackend(_ context.Context, config Config) (*BackendResult, error) {
	opts := gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		ExpensesSheet:   config.ExpensesSheetName,
		SettingsSheet:   config.SettingsSheetName,
		CredentialsFile: config.GoogleCredentialsFile,
		CacheTTL:        config.SheetsCacheTTL,
	}
	if config.GoogleCredentialsJSON != "" {
		opts.CredentialsJSON = []byte(config.GoogleCredentialsJSON)
	}
	conn := gsheet.NewConnector(opts)

	var caches *cache.Manager
	if config.SheetsCacheTTL > 0 {
		caches = cache.NewManager(conn)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"cache_ttl", config.SheetsCacheTTL)

	return &BackendResult{
		Ledger: conn,
		Ready:  conn,
		Caches: caches,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Ledger: store}, nil
}
