// internal/repository/sqlstore/rows.go
package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"futures-desk/internal/domain"
)

// Timestamps are stored as unix milliseconds and deadlines as YYYY-MM-DD
// text so the same statements work on PostgreSQL and SQLite.

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type accountRow struct {
	Key       string `db:"key"`
	Balance   int64  `db:"balance"`
	CreatedAt int64  `db:"created_at"`
}

func (r accountRow) toDomain() *domain.Account {
	return &domain.Account{
		Key:       domain.AccountKey(r.Key),
		Balance:   r.Balance,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

type predictionRow struct {
	ID         string        `db:"id"`
	AccountKey string        `db:"account_key"`
	Claim      string        `db:"claim"`
	Deadline   string        `db:"deadline"`
	Confidence int           `db:"confidence"`
	Wager      int64         `db:"wager"`
	Status     string        `db:"status"`
	Outcome    string        `db:"outcome"`
	CreatedAt  int64         `db:"created_at"`
	ResolvedAt sql.NullInt64 `db:"resolved_at"`
}

func (r predictionRow) toDomain() (domain.Prediction, error) {
	deadline, err := time.Parse(domain.DateLayout, r.Deadline)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction %s has malformed deadline %q: %w", r.ID, r.Deadline, err)
	}
	p := domain.Prediction{
		ID:         r.ID,
		AccountKey: domain.AccountKey(r.AccountKey),
		Claim:      r.Claim,
		Deadline:   deadline,
		Confidence: r.Confidence,
		Wager:      r.Wager,
		Status:     domain.PredictionStatus(r.Status),
		Outcome:    domain.Outcome(r.Outcome),
		CreatedAt:  fromMillis(r.CreatedAt),
	}
	if r.ResolvedAt.Valid {
		resolvedAt := fromMillis(r.ResolvedAt.Int64)
		p.ResolvedAt = &resolvedAt
	}
	return p, nil
}

func toDomainPredictions(rows []predictionRow) ([]domain.Prediction, error) {
	out := make([]domain.Prediction, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
