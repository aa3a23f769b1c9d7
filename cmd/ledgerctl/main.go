// Command ledgerctl drives the ledger from a terminal: run a chat command,
// print a monthly summary or migrate the SQLite schema.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerbot/internal/backend"
	"ledgerbot/internal/cli"
	"ledgerbot/internal/config"
	"ledgerbot/internal/log"
	"ledgerbot/internal/services"
)

type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *backend.BackendResult
	service *services.LedgerService
}

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the personal ledger from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.store.Close()
		},
	}
	root.AddCommand(newSayCmd(a), newSummaryCmd(a), newMigrateCmd(a))
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lc := log.DefaultConfig()
	lc.Component = log.ComponentCLI
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Output = cmd.ErrOrStderr()
	a.logger = log.New(lc)
	log.SetDefault(a.logger)
	return nil
}

// openService builds the ledger service on the configured backend.
func (a *app) openService(ctx context.Context) error {
	bc, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewFactory(a.logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", bc.Type, err)
	}
	a.store = store
	a.service = services.NewLedgerService(store.Ledger, services.WithLocation(a.cfg.Location()))
	return nil
}
