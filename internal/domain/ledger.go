// internal/domain/ledger.go
package domain

// LedgerSummary is a point-in-time read of every point in the system.
type LedgerSummary struct {
	Accounts     int64 `json:"accounts"`
	TotalBalance int64 `json:"total_balance"`
	Escrowed     int64 `json:"escrowed"`
	NetPayout    int64 `json:"net_payout"`
}

// Expected is the total the conservation law allows: the starting grants
// plus the net adjustments of every resolved prediction.
func (s LedgerSummary) Expected() int64 {
	return StartingGrant*s.Accounts + s.NetPayout
}

// Circulating is every point currently held in a balance or in escrow.
func (s LedgerSummary) Circulating() int64 {
	return s.TotalBalance + s.Escrowed
}

// Conserved reports whether no point was created or destroyed outside the
// grant and payout rules.
func (s LedgerSummary) Conserved() bool {
	return s.Circulating() == s.Expected()
}
