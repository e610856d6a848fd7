// internal/repository/account_repo.go
package repository

import (
	"context"

	"futures-desk/internal/domain"
)

// AccountRepository persists account balances. Balance mutation is only
// reachable through the ledger service, which owns the account lock.
type AccountRepository interface {
	// CreateAccountIfAbsent inserts the account with its starting grant unless
	// the key already exists. It reports whether a row was inserted.
	CreateAccountIfAbsent(ctx context.Context, q DBExecutor, account *domain.Account) (bool, error)
	// GetAccount returns the account or util.ErrNotFound.
	GetAccount(ctx context.Context, q DBExecutor, key domain.AccountKey) (*domain.Account, error)
	// Debit subtracts amount if and only if the balance covers it, returning
	// util.ErrInsufficientFunds otherwise.
	Debit(ctx context.Context, q DBExecutor, key domain.AccountKey, amount int64) error
	// Credit adds amount to the balance.
	Credit(ctx context.Context, q DBExecutor, key domain.AccountKey, amount int64) error
}
