// internal/domain/prediction.go
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"futures-desk/internal/util"
)

// DateLayout is the wire and storage layout of a prediction deadline.
const DateLayout = "2006-01-02"

// PredictionStatus is the lifecycle state of a prediction.
type PredictionStatus string

const (
	PredictionStatusOpen     PredictionStatus = "Open"
	PredictionStatusResolved PredictionStatus = "Resolved"
)

// Outcome is the settlement result. It is Unset exactly while the prediction is Open.
type Outcome string

const (
	OutcomeUnset     Outcome = "Unset"
	OutcomeCorrect   Outcome = "Correct"
	OutcomeIncorrect Outcome = "Incorrect"
)

// Prediction is a claim an analyst staked points on.
type Prediction struct {
	ID         string           `json:"id"`
	AccountKey AccountKey       `json:"account_key"`
	Claim      string           `json:"claim"`
	Deadline   time.Time        `json:"-"`
	Confidence int              `json:"confidence"`
	Wager      int64            `json:"wager"`
	Status     PredictionStatus `json:"status"`
	Outcome    Outcome          `json:"outcome"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// PredictionDraft carries the caller-supplied fields of a new prediction.
type PredictionDraft struct {
	AccountKey AccountKey
	Claim      string
	Deadline   time.Time
	Confidence int
	Wager      int64
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD deadline.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, util.Invalid("deadline", "must be a YYYY-MM-DD date")
	}
	return t, nil
}

// Validate checks the draft against the placement rules as of now.
// The balance check is left to the ledger, which holds the account lock.
func (d PredictionDraft) Validate(now time.Time) error {
	if _, err := ParseAccountKey(string(d.AccountKey)); err != nil {
		return err
	}
	if strings.TrimSpace(d.Claim) == "" {
		return util.Invalid("claim", "must not be empty")
	}
	if d.Wager <= 0 {
		return util.Invalid("wager", "must be positive, got %d", d.Wager)
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return util.Invalid("confidence", "must be within [0,100], got %d", d.Confidence)
	}
	if d.Deadline.IsZero() {
		return util.Invalid("deadline", "is required")
	}
	if DateOf(d.Deadline).Before(DateOf(now)) {
		return util.Invalid("deadline", "%s is in the past", DateOf(d.Deadline).Format(DateLayout))
	}
	return nil
}

// NewPrediction validates the draft and builds an Open prediction with a
// time-ordered identifier.
func NewPrediction(d PredictionDraft, now time.Time) (*Prediction, error) {
	if err := d.Validate(now); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate prediction id: %w", err)
	}
	return &Prediction{
		ID:         id.String(),
		AccountKey: d.AccountKey,
		Claim:      strings.TrimSpace(d.Claim),
		Deadline:   DateOf(d.Deadline),
		Confidence: d.Confidence,
		Wager:      d.Wager,
		Status:     PredictionStatusOpen,
		Outcome:    OutcomeUnset,
		CreatedAt:  now.UTC(),
	}, nil
}

// IsOpen reports whether the prediction still holds escrow.
func (p *Prediction) IsOpen() bool {
	return p.Status == PredictionStatusOpen
}

// Settle moves an Open prediction to Resolved and returns the credit owed to
// the owning account: twice the wager when won, nothing when lost.
func (p *Prediction) Settle(won bool, now time.Time) (int64, error) {
	if !p.IsOpen() {
		return 0, util.ErrAlreadyResolved
	}
	resolvedAt := now.UTC()
	p.Status = PredictionStatusResolved
	p.ResolvedAt = &resolvedAt
	if won {
		p.Outcome = OutcomeCorrect
	} else {
		p.Outcome = OutcomeIncorrect
	}
	return p.Payout(), nil
}

// Payout is the credit applied at resolution.
func (p *Prediction) Payout() int64 {
	if p.Outcome == OutcomeCorrect {
		return 2 * p.Wager
	}
	return 0
}

// NetAdjustment is the change to total points caused by settling this
// prediction: +wager when correct, -wager when incorrect, zero while open.
func (p *Prediction) NetAdjustment() int64 {
	switch p.Outcome {
	case OutcomeCorrect:
		return p.Wager
	case OutcomeIncorrect:
		return -p.Wager
	default:
		return 0
	}
}

// OutcomeFor maps a boolean verdict to its terminal outcome.
func OutcomeFor(won bool) Outcome {
	if won {
		return OutcomeCorrect
	}
	return OutcomeIncorrect
}

// MarshalJSON renders the deadline as a calendar date.
func (p Prediction) MarshalJSON() ([]byte, error) {
	type alias Prediction
	return json.Marshal(struct {
		alias
		Deadline string `json:"deadline"`
	}{alias(p), p.Deadline.Format(DateLayout)})
}
