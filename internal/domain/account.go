// internal/domain/account.go
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"futures-desk/internal/util"
)

// StartingGrant is the balance every account receives on first reference.
const StartingGrant int64 = 1000

// MaxAccountKeyLength bounds the analyst codename.
const MaxAccountKeyLength = 128

// AccountKey identifies an analyst. It is opaque and case-sensitive; no proof
// of ownership is attached to it.
type AccountKey string

// ParseAccountKey validates a raw codename. The key is kept verbatim.
func ParseAccountKey(raw string) (AccountKey, error) {
	if strings.TrimSpace(raw) == "" {
		return "", util.Invalid("account_key", "must not be empty")
	}
	if utf8.RuneCountInString(raw) > MaxAccountKeyLength {
		return "", util.Invalid("account_key", "must be at most %d characters", MaxAccountKeyLength)
	}
	return AccountKey(raw), nil
}

func (k AccountKey) String() string { return string(k) }

// Account holds an analyst's spendable points.
type Account struct {
	Key       AccountKey `json:"key"`
	Balance   int64      `json:"balance"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewAccount creates an Account carrying the starting grant.
func NewAccount(key AccountKey) *Account {
	return &Account{
		Key:       key,
		Balance:   StartingGrant,
		CreatedAt: time.Now().UTC(),
	}
}

// CanAfford reports whether the balance covers amount.
func (a *Account) CanAfford(amount int64) bool {
	return amount <= a.Balance
}
