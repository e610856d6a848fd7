// internal/repository/sqlstore/prediction_sql.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"futures-desk/internal/domain"
	"futures-desk/internal/repository"
	"futures-desk/internal/util"
)

const predictionColumns = `id, account_key, claim, deadline, confidence, wager, status, outcome, created_at, resolved_at`

// PredictionRepository implements repository.PredictionRepository over SQL.
type PredictionRepository struct{}

// NewPredictionRepository creates a new PredictionRepository.
func NewPredictionRepository() repository.PredictionRepository {
	return &PredictionRepository{}
}

// CreatePrediction inserts a new prediction record.
func (r *PredictionRepository) CreatePrediction(ctx context.Context, q repository.DBExecutor, p *domain.Prediction) error {
	query := q.Rebind(`INSERT INTO predictions (` + predictionColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`)
	_, err := q.ExecContext(ctx, query,
		p.ID,
		string(p.AccountKey),
		p.Claim,
		p.Deadline.Format(domain.DateLayout),
		p.Confidence,
		p.Wager,
		string(p.Status),
		string(p.Outcome),
		toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// GetPrediction retrieves a prediction by ID.
func (r *PredictionRepository) GetPrediction(ctx context.Context, q repository.DBExecutor, id string) (*domain.Prediction, error) {
	var row predictionRow
	query := q.Rebind(`SELECT ` + predictionColumns + ` FROM predictions WHERE id = ?`)
	if err := q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get prediction %s: %w", id, err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkResolved only touches rows still Open, which makes settlement a
// compare-and-swap on status.
func (r *PredictionRepository) MarkResolved(ctx context.Context, q repository.DBExecutor, id string, outcome domain.Outcome, resolvedAt time.Time) error {
	query := q.Rebind(`UPDATE predictions SET status = ?, outcome = ?, resolved_at = ?
              WHERE id = ? AND status = ?`)
	result, err := q.ExecContext(ctx, query,
		string(domain.PredictionStatusResolved),
		string(outcome),
		toMillis(resolvedAt),
		id,
		string(domain.PredictionStatusOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve prediction %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after resolving prediction %s: %w", id, err)
	}
	if rowsAffected == 1 {
		return nil
	}
	if _, err := r.GetPrediction(ctx, q, id); err != nil {
		return err
	}
	return util.ErrAlreadyResolved
}

// ListByStatus retrieves predictions in one status, newest first.
func (r *PredictionRepository) ListByStatus(ctx context.Context, q repository.DBExecutor, status domain.PredictionStatus, limit int) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE status = ? ORDER BY created_at DESC, id DESC`
	args := []interface{}{string(status)}
	query, args = withLimit(query, args, limit)

	rows := []predictionRow{}
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list %s predictions: %w", status, err)
	}
	return toDomainPredictions(rows)
}

// ListByAccount retrieves an account's predictions, newest first.
func (r *PredictionRepository) ListByAccount(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, limit int) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE account_key = ? ORDER BY created_at DESC, id DESC`
	args := []interface{}{string(key)}
	query, args = withLimit(query, args, limit)

	rows := []predictionRow{}
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list predictions for account '%s': %w", key, err)
	}
	return toDomainPredictions(rows)
}

func withLimit(query string, args []interface{}, limit int) (string, []interface{}) {
	if limit <= 0 {
		return query, args
	}
	return query + ` LIMIT ?`, append(args, limit)
}
