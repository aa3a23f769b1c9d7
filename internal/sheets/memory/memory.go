package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ledgerbot/internal/core"
	ports "ledgerbot/internal/sheets"
)

var _ ports.Ledger = (*Store)(nil)

// Store keeps both tables in memory. The expense log always starts with the
// header row, like the sheet it stands in for.
type Store struct {
	mu       sync.Mutex
	expenses []core.ExpenseRow
	settings []core.SettingRow
}

func New() *Store {
	return &Store{expenses: []core.ExpenseRow{core.ExpenseHeader}}
}

// NewFromFiles seeds the settings table from <base>/seed_settings.txt, one
// "key=value" pair per line. Blank lines and lines starting with '#' are
// ignored. A missing file yields an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_settings.txt")) {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.settings = append(s.settings, core.SettingRow{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
	}
	return s
}

func (s *Store) AppendExpense(_ context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e.Row())
	return nil
}

func (s *Store) ReadExpenseRows(_ context.Context) ([]core.ExpenseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRow(nil), s.expenses...), nil
}

func (s *Store) AppendSetting(_ context.Context, e core.SettingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, e.Row())
	return nil
}

// UpsertSetting overwrites the last row carrying the key, which is the row the
// summary reads when duplicates exist.
func (s *Store) UpsertSetting(_ context.Context, e core.SettingEntry) (ports.UpsertResult, error) {
	row := e.Row()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.settings) - 1; i >= 0; i-- {
		if s.settings[i].Key == row.Key {
			s.settings[i].Value = row.Value
			return ports.Updated, nil
		}
	}
	s.settings = append(s.settings, row)
	return ports.Created, nil
}

func (s *Store) ReadSettingRows(_ context.Context) ([]core.SettingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SettingRow(nil), s.settings...), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
