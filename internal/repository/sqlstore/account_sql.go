// internal/repository/sqlstore/account_sql.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"futures-desk/internal/domain"
	"futures-desk/internal/repository"
	"futures-desk/internal/util"
)

// AccountRepository implements repository.AccountRepository over SQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccountIfAbsent relies on the primary key so a key is granted at most once,
// however many callers race on first use.
func (r *AccountRepository) CreateAccountIfAbsent(ctx context.Context, q repository.DBExecutor, account *domain.Account) (bool, error) {
	query := q.Rebind(`INSERT INTO accounts ("key", balance, created_at)
              VALUES (?, ?, ?) ON CONFLICT ("key") DO NOTHING`)
	result, err := q.ExecContext(ctx, query, string(account.Key), account.Balance, toMillis(account.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to create account '%s': %w", account.Key, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after creating account '%s': %w", account.Key, err)
	}
	return rowsAffected == 1, nil
}

// GetAccount retrieves an account by key.
func (r *AccountRepository) GetAccount(ctx context.Context, q repository.DBExecutor, key domain.AccountKey) (*domain.Account, error) {
	var row accountRow
	query := q.Rebind(`SELECT "key", balance, created_at FROM accounts WHERE "key" = ?`)
	if err := q.GetContext(ctx, &row, query, string(key)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account '%s': %w", key, err)
	}
	return row.toDomain(), nil
}

// Debit is a conditional update: the balance check and the subtraction are
// one statement, so the row can never go negative.
func (r *AccountRepository) Debit(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, amount int64) error {
	query := q.Rebind(`UPDATE accounts SET balance = balance - ? WHERE "key" = ? AND balance >= ?`)
	result, err := q.ExecContext(ctx, query, amount, string(key), amount)
	if err != nil {
		return fmt.Errorf("failed to debit account '%s': %w", key, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after debiting account '%s': %w", key, err)
	}
	if rowsAffected == 1 {
		return nil
	}
	if _, err := r.GetAccount(ctx, q, key); err != nil {
		return err
	}
	return util.ErrInsufficientFunds
}

// Credit adds amount to the account balance.
func (r *AccountRepository) Credit(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, amount int64) error {
	query := q.Rebind(`UPDATE accounts SET balance = balance + ? WHERE "key" = ?`)
	result, err := q.ExecContext(ctx, query, amount, string(key))
	if err != nil {
		return fmt.Errorf("failed to credit account '%s': %w", key, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after crediting account '%s': %w", key, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}
