// internal/api/types/response.go
package types

import "futures-desk/internal/domain"

// ListResponse wraps a list of items with the limit that produced it.
// A zero Limit means the list is complete.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
	Limit int `json:"limit,omitempty"`
}

// NewListResponse builds a ListResponse, rendering nil as an empty list.
func NewListResponse[T any](items []T, limit int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Count: len(items), Limit: limit}
}

// SummaryResponse is the ledger summary together with its conservation check.
type SummaryResponse struct {
	domain.LedgerSummary
	Circulating int64 `json:"circulating"`
	Expected    int64 `json:"expected"`
	Conserved   bool  `json:"conserved"`
}

// NewSummaryResponse derives the conservation figures from s.
func NewSummaryResponse(s domain.LedgerSummary) SummaryResponse {
	return SummaryResponse{
		LedgerSummary: s,
		Circulating:   s.Circulating(),
		Expected:      s.Expected(),
		Conserved:     s.Conserved(),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
