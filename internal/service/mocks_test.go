// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"futures-desk/internal/domain"
	"futures-desk/internal/repository"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

func (m *MockDBExecutor) Rebind(query string) string {
	return query
}

// MockAccountRepository is a mock implementation of repository.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) CreateAccountIfAbsent(ctx context.Context, q repository.DBExecutor, account *domain.Account) (bool, error) {
	args := m.Called(ctx, q, account)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) GetAccount(ctx context.Context, q repository.DBExecutor, key domain.AccountKey) (*domain.Account, error) {
	args := m.Called(ctx, q, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Debit(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, amount int64) error {
	args := m.Called(ctx, q, key, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) Credit(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, amount int64) error {
	args := m.Called(ctx, q, key, amount)
	return args.Error(0)
}

// MockPredictionRepository is a mock implementation of repository.PredictionRepository.
type MockPredictionRepository struct {
	mock.Mock
}

func (m *MockPredictionRepository) CreatePrediction(ctx context.Context, q repository.DBExecutor, p *domain.Prediction) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

func (m *MockPredictionRepository) GetPrediction(ctx context.Context, q repository.DBExecutor, id string) (*domain.Prediction, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) MarkResolved(ctx context.Context, q repository.DBExecutor, id string, outcome domain.Outcome, resolvedAt time.Time) error {
	args := m.Called(ctx, q, id, outcome, resolvedAt)
	return args.Error(0)
}

func (m *MockPredictionRepository) ListByStatus(ctx context.Context, q repository.DBExecutor, status domain.PredictionStatus, limit int) ([]domain.Prediction, error) {
	args := m.Called(ctx, q, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) ListByAccount(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, limit int) ([]domain.Prediction, error) {
	args := m.Called(ctx, q, key, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Prediction), args.Error(1)
}

// MockLedgerRepository is a mock implementation of repository.LedgerRepository.
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Summary(ctx context.Context, q repository.DBExecutor) (*domain.LedgerSummary, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerSummary), args.Error(1)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implements repository.DBExecutor by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}
