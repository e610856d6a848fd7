// internal/repository/ledger_repo.go
package repository

import (
	"context"

	"futures-desk/internal/domain"
)

// LedgerRepository answers questions spanning both tables.
type LedgerRepository interface {
	// Summary reads account count, balances, escrow and net payouts in one statement.
	Summary(ctx context.Context, q DBExecutor) (*domain.LedgerSummary, error)
}
