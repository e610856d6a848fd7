// internal/repository/prediction_repo.go
package repository

import (
	"context"
	"time"

	"futures-desk/internal/domain"
)

// PredictionRepository persists predictions and their lifecycle state.
type PredictionRepository interface {
	// CreatePrediction inserts an Open prediction.
	CreatePrediction(ctx context.Context, q DBExecutor, prediction *domain.Prediction) error
	// GetPrediction returns the prediction or util.ErrNotFound.
	GetPrediction(ctx context.Context, q DBExecutor, id string) (*domain.Prediction, error)
	// MarkResolved moves an Open prediction to Resolved with the given outcome.
	// It returns util.ErrAlreadyResolved when the row is no longer Open.
	MarkResolved(ctx context.Context, q DBExecutor, id string, outcome domain.Outcome, resolvedAt time.Time) error
	// ListByStatus returns predictions in the given status, newest first.
	// A limit <= 0 returns every row.
	ListByStatus(ctx context.Context, q DBExecutor, status domain.PredictionStatus, limit int) ([]domain.Prediction, error)
	// ListByAccount returns the account's predictions, newest first.
	ListByAccount(ctx context.Context, q DBExecutor, key domain.AccountKey, limit int) ([]domain.Prediction, error)
}
