// internal/repository/sqlstore/ledger_sql.go
package sqlstore

import (
	"context"
	"fmt"

	"futures-desk/internal/domain"
	"futures-desk/internal/repository"
)

// LedgerRepository implements repository.LedgerRepository over SQL.
type LedgerRepository struct{}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository() repository.LedgerRepository {
	return &LedgerRepository{}
}

type summaryRow struct {
	Accounts     int64 `db:"accounts"`
	TotalBalance int64 `db:"total_balance"`
	Escrowed     int64 `db:"escrowed"`
	NetPayout    int64 `db:"net_payout"`
}

// Summary uses a single statement so every figure comes from the same snapshot.
func (r *LedgerRepository) Summary(ctx context.Context, q repository.DBExecutor) (*domain.LedgerSummary, error) {
	query := q.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM accounts) AS accounts,
			(SELECT CAST(COALESCE(SUM(balance), 0) AS BIGINT) FROM accounts) AS total_balance,
			(SELECT CAST(COALESCE(SUM(wager), 0) AS BIGINT) FROM predictions WHERE status = ?) AS escrowed,
			(SELECT CAST(COALESCE(SUM(CASE WHEN outcome = ? THEN wager WHEN outcome = ? THEN -wager ELSE 0 END), 0) AS BIGINT)
			   FROM predictions) AS net_payout`)

	var row summaryRow
	err := q.GetContext(ctx, &row, query,
		string(domain.PredictionStatusOpen),
		string(domain.OutcomeCorrect),
		string(domain.OutcomeIncorrect),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger summary: %w", err)
	}
	return &domain.LedgerSummary{
		Accounts:     row.Accounts,
		TotalBalance: row.TotalBalance,
		Escrowed:     row.Escrowed,
		NetPayout:    row.NetPayout,
	}, nil
}
