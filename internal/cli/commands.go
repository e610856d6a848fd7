// internal/cli/commands.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	app "futures-desk/internal"
	"futures-desk/internal/api/types"
	"futures-desk/internal/domain"
	"futures-desk/internal/service"
	"futures-desk/pkg/db"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
				if err := db.Migrate(ctx, a.DB); err != nil {
					return WrapExitError(ExitCommandError, "migration failed", err)
				}
				result := map[string]string{"driver": a.Config.DB.Driver, "status": "migrated"}
				return render(cmd.OutOrStdout(), opts, result, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Schema is up to date (%s).\n", a.Config.DB.Driver)
					return err
				})
			})
		},
	}
}

// AccountOptions holds flags for the account command.
type AccountOptions struct {
	*RootOptions
	NoCreate bool
}

// NewAccountCommand creates the account command.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "account <key>",
		Short: "Show an account, granting the starting balance on first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := domain.AccountKey(args[0])
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				var (
					account *domain.Account
					err     error
				)
				if opts.NoCreate {
					account, err = svc.GetAccount(ctx, key)
				} else {
					account, err = svc.GetOrCreateAccount(ctx, key)
				}
				if err != nil {
					return ledgerError("account lookup failed", err)
				}
				return render(cmd.OutOrStdout(), opts.RootOptions, account, func(w io.Writer) error {
					return writeAccount(w, account)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.NoCreate, "no-create", false, "fail instead of creating a missing account")
	return cmd
}

// WagerOptions holds flags for the wager command.
type WagerOptions struct {
	*RootOptions
	Account    string
	Claim      string
	Deadline   string
	Confidence int
	Wager      int64
}

// NewWagerCommand creates the wager command.
func NewWagerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WagerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wager",
		Short: "Stake points on a new claim",
		Long: `Escrow a wager on a claim. The wager leaves the balance immediately and
is paid back double if the claim is resolved as correct.

Examples:
  deskctl wager --account Analyst_01 --claim "BTC above 100k" --deadline 2026-12-31 --confidence 70 --wager 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deadline, err := domain.ParseDate(opts.Deadline)
			if err != nil {
				return ledgerError("invalid wager", err)
			}
			draft := domain.PredictionDraft{
				AccountKey: domain.AccountKey(opts.Account),
				Claim:      opts.Claim,
				Deadline:   deadline,
				Confidence: opts.Confidence,
				Wager:      opts.Wager,
			}
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				prediction, err := svc.PlaceWager(ctx, draft)
				if err != nil {
					return ledgerError("wager rejected", err)
				}
				return render(cmd.OutOrStdout(), opts.RootOptions, prediction, func(w io.Writer) error {
					return writePrediction(w, prediction)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account key (required)")
	cmd.Flags().StringVar(&opts.Claim, "claim", "", "the claim being staked (required)")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline as YYYY-MM-DD (required)")
	cmd.Flags().IntVar(&opts.Confidence, "confidence", 50, "stated confidence, 0-100")
	cmd.Flags().Int64Var(&opts.Wager, "wager", 0, "points to stake (required)")
	for _, name := range []string{"account", "claim", "deadline", "wager"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Won  bool
	Lost bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <id> --won|--lost",
		Short: "Settle an open prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				prediction, err := svc.Resolve(ctx, args[0], opts.Won)
				if err != nil {
					return ledgerError("resolution rejected", err)
				}
				return render(cmd.OutOrStdout(), opts.RootOptions, prediction, func(w io.Writer) error {
					return writePrediction(w, prediction)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Won, "won", false, "the claim came true")
	cmd.Flags().BoolVar(&opts.Lost, "lost", false, "the claim did not come true")
	cmd.MarkFlagsMutuallyExclusive("won", "lost")
	cmd.MarkFlagsOneRequired("won", "lost")
	return cmd
}

// NewOpenCommand creates the open command.
func NewOpenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "List open positions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				predictions, err := svc.ListOpen(ctx)
				if err != nil {
					return ledgerError("listing failed", err)
				}
				return renderPredictions(cmd, opts, predictions, 0)
			})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent resolutions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				predictions, err := svc.ListResolved(ctx, limit)
				if err != nil {
					return ledgerError("listing failed", err)
				}
				return renderPredictions(cmd, opts, predictions, limit)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of resolutions to show (default LEDGER_HISTORY_LIMIT)")
	return cmd
}

// NewPositionsCommand creates the positions command.
func NewPositionsCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "positions <key>",
		Short: "List one analyst's predictions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				predictions, err := svc.ListByAccount(ctx, domain.AccountKey(args[0]), limit)
				if err != nil {
					return ledgerError("listing failed", err)
				}
				return renderPredictions(cmd, opts, predictions, limit)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of predictions (0 for all)")
	return cmd
}

func renderPredictions(cmd *cobra.Command, opts *RootOptions, predictions []domain.Prediction, limit int) error {
	return render(cmd.OutOrStdout(), opts, types.NewListResponse(predictions, limit), func(w io.Writer) error {
		return writePredictions(w, predictions)
	})
}

// NewRecordCommand creates the record command.
func NewRecordCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "record <key>",
		Short: "Show an analyst's track record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				record, err := svc.TrackRecord(ctx, domain.AccountKey(args[0]))
				if err != nil {
					return ledgerError("track record unavailable", err)
				}
				return render(cmd.OutOrStdout(), opts, record, func(w io.Writer) error {
					_, err := fmt.Fprintf(w,
						"%s\n  balance          %d\n  open             %d (escrowed %d)\n  correct          %d\n  incorrect        %d\n  net payout       %+d\n  accuracy         %s\n  mean confidence  %s%%\n  calibration gap  %s\n",
						record.AccountKey, record.Balance, record.Open, record.Escrowed, record.Correct, record.Incorrect,
						record.NetPayout, record.Accuracy.StringFixed(4), record.MeanConfidence.StringFixed(2), record.CalibrationGap.StringFixed(4))
					return err
				})
			})
		},
	}
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show ledger totals and check conservation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, svc service.LedgerService) error {
				summary, err := svc.Summary(ctx)
				if err != nil {
					return ledgerError("summary unavailable", err)
				}
				resp := types.NewSummaryResponse(*summary)
				if err := render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) error {
					_, err := fmt.Fprintf(w,
						"accounts     %d\nbalances     %d\nescrowed     %d\nnet payout   %+d\nconserved    %t (%d of %d)\n",
						resp.Accounts, resp.TotalBalance, resp.Escrowed, resp.NetPayout, resp.Conserved, resp.Circulating, resp.Expected)
					return err
				}); err != nil {
					return err
				}
				if !resp.Conserved {
					return NewExitError(ExitFailure, "ledger conservation violated")
				}
				return nil
			})
		},
	}
}
