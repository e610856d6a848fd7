// internal/cli/root.go

// Package cli implements deskctl, the operator command line for the desk.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	app "futures-desk/internal"
	"futures-desk/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for deskctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "deskctl",
		Short: "Operate the Futures Desk ledger",
		Long: `deskctl drives the Futures Desk credibility ledger directly.

Database, lock and logging settings come from the same environment
variables as the API server (DB_DRIVER, DB_DSN, LOCK_BACKEND, LOG_LEVEL, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewWagerCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewPositionsCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))

	return cmd
}

// withApplication initializes the application for one command and shuts it
// down afterwards. Logs go to the command's error stream.
func withApplication(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := app.NewApplication()
	a.LogOutput = cmd.ErrOrStderr()
	if err := a.Initialize(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer func() { _ = a.Shutdown(ctx) }()

	return fn(ctx, a)
}

// withLedger is withApplication for commands that only need the ledger.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, svc service.LedgerService) error) error {
	return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
		return fn(ctx, a.LedgerService)
	})
}
