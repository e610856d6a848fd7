// internal/lock/lock.go

// Package lock serializes ledger mutations per account.
package lock

import "context"

// Locker grants exclusive access to a key. Unlock functions are safe to call
// more than once. Distinct keys never block each other.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AccountKey namespaces an account key inside a shared lock space.
func AccountKey(key string) string {
	return "account:" + key
}
