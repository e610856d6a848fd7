// internal/domain/track_record.go
package domain

import (
	"github.com/shopspring/decimal"
)

// ratioPlaces is the precision of accuracy and calibration figures.
const ratioPlaces = 4

var hundred = decimal.NewFromInt(100)

// TrackRecord summarises how an analyst's staked claims turned out.
// Confidence never affects payouts; it only feeds the calibration figures.
type TrackRecord struct {
	AccountKey     AccountKey      `json:"account_key"`
	Balance        int64           `json:"balance"`
	Open           int             `json:"open"`
	Correct        int             `json:"correct"`
	Incorrect      int             `json:"incorrect"`
	Staked         int64           `json:"staked"`
	Escrowed       int64           `json:"escrowed"`
	NetPayout      int64           `json:"net_payout"`
	Accuracy       decimal.Decimal `json:"accuracy"`
	MeanConfidence decimal.Decimal `json:"mean_confidence"`
	CalibrationGap decimal.Decimal `json:"calibration_gap"`
}

// Resolved is the number of settled predictions.
func (r TrackRecord) Resolved() int {
	return r.Correct + r.Incorrect
}

// BuildTrackRecord folds the analyst's predictions into a TrackRecord.
// Predictions owned by other accounts are ignored.
func BuildTrackRecord(account Account, predictions []Prediction) TrackRecord {
	rec := TrackRecord{
		AccountKey:     account.Key,
		Balance:        account.Balance,
		Accuracy:       decimal.Zero,
		MeanConfidence: decimal.Zero,
		CalibrationGap: decimal.Zero,
	}

	confidenceSum := decimal.Zero
	for i := range predictions {
		p := &predictions[i]
		if p.AccountKey != account.Key {
			continue
		}
		rec.Staked += p.Wager
		rec.NetPayout += p.NetAdjustment()
		switch p.Outcome {
		case OutcomeCorrect:
			rec.Correct++
		case OutcomeIncorrect:
			rec.Incorrect++
		default:
			rec.Open++
			rec.Escrowed += p.Wager
			continue
		}
		confidenceSum = confidenceSum.Add(decimal.NewFromInt(int64(p.Confidence)))
	}

	resolved := rec.Resolved()
	if resolved == 0 {
		return rec
	}
	n := decimal.NewFromInt(int64(resolved))
	rec.Accuracy = decimal.NewFromInt(int64(rec.Correct)).DivRound(n, ratioPlaces)
	rec.MeanConfidence = confidenceSum.DivRound(n, ratioPlaces)
	rec.CalibrationGap = rec.MeanConfidence.DivRound(hundred, ratioPlaces).Sub(rec.Accuracy)
	return rec
}
