// internal/service/ledger_properties_test.go
package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-desk/internal/domain"
	"futures-desk/internal/lock"
	"futures-desk/internal/repository"
	"futures-desk/internal/repository/sqlstore"
	"futures-desk/internal/util"
	"futures-desk/pkg/db"
)

// stepClock advances by a millisecond on every reading so creation order is
// strictly increasing.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type sqliteLedger struct {
	LedgerService
	conn *sqlx.DB
}

type ledgerParts struct {
	accounts    repository.AccountRepository
	predictions repository.PredictionRepository
}

func newSQLiteLedger(t *testing.T, wrap func(*ledgerParts), opts ...Option) *sqliteLedger {
	t.Helper()
	conn, err := db.Open(db.Config{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	parts := &ledgerParts{
		accounts:    sqlstore.NewAccountRepository(),
		predictions: sqlstore.NewPredictionRepository(),
	}
	if wrap != nil {
		wrap(parts)
	}

	clock := &stepClock{now: fixedNow}
	opts = append([]Option{WithClock(clock.Now), WithLogger(discardLogger())}, opts...)
	svc := NewLedgerService(conn, conn, parts.accounts, parts.predictions, sqlstore.NewLedgerRepository(),
		db.BeginTx, db.CommitTx, db.RollbackTx, opts...)
	return &sqliteLedger{LedgerService: svc, conn: conn}
}

func (l *sqliteLedger) balance(t *testing.T, key domain.AccountKey) int64 {
	t.Helper()
	acct, err := l.GetAccount(context.Background(), key)
	require.NoError(t, err)
	return acct.Balance
}

func (l *sqliteLedger) requireConserved(t *testing.T) *domain.LedgerSummary {
	t.Helper()
	summary, err := l.Summary(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Conserved(), "circulating %d, expected %d", summary.Circulating(), summary.Expected())
	return summary
}

func draftFor(key domain.AccountKey, wager int64) domain.PredictionDraft {
	return domain.PredictionDraft{
		AccountKey: key,
		Claim:      "Rates will be cut in Q3",
		Deadline:   fixedNow.AddDate(0, 1, 0),
		Confidence: 65,
		Wager:      wager,
	}
}

// noLocker disables the account lock so only storage guards remain.
type noLocker struct{}

func (noLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func TestPayoutArithmetic(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	acct, err := l.GetOrCreateAccount(ctx, "Analyst_01")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acct.Balance)

	won, err := l.PlaceWager(ctx, draftFor("Analyst_01", 200))
	require.NoError(t, err)
	assert.Equal(t, int64(800), l.balance(t, "Analyst_01"))

	settled, err := l.Resolve(ctx, won.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCorrect, settled.Outcome)
	assert.Equal(t, int64(1200), l.balance(t, "Analyst_01"))

	lost, err := l.PlaceWager(ctx, draftFor("Analyst_01", 400))
	require.NoError(t, err)
	_, err = l.Resolve(ctx, lost.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(800), l.balance(t, "Analyst_01"))

	l.requireConserved(t)
}

func TestStartingGrantOnce(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acct, err := l.GetOrCreateAccount(ctx, "Analyst_01")
			if assert.NoError(t, err) {
				assert.Equal(t, int64(1000), acct.Balance)
			}
		}()
	}
	wg.Wait()

	_, err := l.PlaceWager(ctx, draftFor("Analyst_01", 300))
	require.NoError(t, err)
	acct, err := l.GetOrCreateAccount(ctx, "Analyst_01")
	require.NoError(t, err)
	assert.Equal(t, int64(700), acct.Balance, "a second lookup must not re-grant")

	summary := l.requireConserved(t)
	assert.Equal(t, int64(1), summary.Accounts)
}

func TestAccountCreationOutlivesCallerCancel(t *testing.T) {
	l := newSQLiteLedger(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acct, err := l.GetOrCreateAccount(ctx, "Analyst_01")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acct.Balance)
	assert.Equal(t, int64(1000), l.balance(t, "Analyst_01"))
}

func TestAccountKeysAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	_, err := l.PlaceWager(ctx, draftFor("analyst", 100))
	require.NoError(t, err)
	_, err = l.GetOrCreateAccount(ctx, "Analyst")
	require.NoError(t, err)

	assert.Equal(t, int64(900), l.balance(t, "analyst"))
	assert.Equal(t, int64(1000), l.balance(t, "Analyst"))
}

func TestConcurrentWagersNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	_, err := l.PlaceWager(ctx, draftFor("Analyst_01", 900))
	require.NoError(t, err)

	start := make(chan struct{})
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := l.PlaceWager(ctx, draftFor("Analyst_01", 60))
			errs <- err
		}()
	}
	close(start)

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, util.ErrInsufficientFunds):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(40), l.balance(t, "Analyst_01"))
	l.requireConserved(t)
}

// drainingDebits spends the whole balance between the service's balance
// check and its debit, as a competing writer would without the account lock.
type drainingDebits struct {
	repository.AccountRepository
}

func (d drainingDebits) Debit(ctx context.Context, q repository.DBExecutor, key domain.AccountKey, amount int64) error {
	acct, err := d.AccountRepository.GetAccount(ctx, q, key)
	if err != nil {
		return err
	}
	if err := d.AccountRepository.Debit(ctx, q, key, acct.Balance); err != nil {
		return err
	}
	return d.AccountRepository.Debit(ctx, q, key, amount)
}

func TestDebitRejectsStaleBalanceCheck(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, func(p *ledgerParts) {
		p.accounts = drainingDebits{p.accounts}
	}, WithLocker(noLocker{}))

	_, err := l.PlaceWager(ctx, draftFor("Analyst_01", 200))
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	assert.False(t, util.IsError(err, util.ErrStorageUnavailable))

	open, err := l.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// The whole transaction rolls back, first use of the account included.
	_, err = l.GetAccount(ctx, "Analyst_01")
	assert.ErrorIs(t, err, util.ErrNotFound)
	l.requireConserved(t)
}

func TestBalanceNeverNegativeUnderLoad(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.PlaceWager(ctx, draftFor("Analyst_01", 70))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, ok)
	assert.Equal(t, int64(20), l.balance(t, "Analyst_01"))
	open, err := l.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 14)
	l.requireConserved(t)
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	p, err := l.PlaceWager(ctx, draftFor("Analyst_01", 200))
	require.NoError(t, err)
	_, err = l.Resolve(ctx, p.ID, true)
	require.NoError(t, err)

	_, err = l.Resolve(ctx, p.ID, true)
	assert.ErrorIs(t, err, util.ErrAlreadyResolved)
	_, err = l.Resolve(ctx, p.ID, false)
	assert.ErrorIs(t, err, util.ErrAlreadyResolved)
	assert.Equal(t, int64(1200), l.balance(t, "Analyst_01"))

	_, err = l.Resolve(ctx, "no-such-prediction", true)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestConcurrentResolveSettlesOnce(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil, WithLocker(noLocker{}))

	p, err := l.PlaceWager(ctx, draftFor("Analyst_01", 250))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Resolve(ctx, p.ID, true)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var settled int
	for err := range results {
		if err == nil {
			settled++
			continue
		}
		assert.ErrorIs(t, err, util.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, int64(1250), l.balance(t, "Analyst_01"))
	l.requireConserved(t)
}

func TestConservationOverRandomHistory(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)
	rng := rand.New(rand.NewSource(42))
	keys := []domain.AccountKey{"alpha", "bravo", "charlie", "delta"}

	var open []string
	for step := 0; step < 200; step++ {
		if len(open) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(open))
			_, err := l.Resolve(ctx, open[i], rng.Intn(2) == 0)
			require.NoError(t, err)
			open = append(open[:i], open[i+1:]...)
		} else {
			key := keys[rng.Intn(len(keys))]
			p, err := l.PlaceWager(ctx, draftFor(key, int64(1+rng.Intn(400))))
			if err != nil {
				require.ErrorIs(t, err, util.ErrInsufficientFunds)
			} else {
				open = append(open, p.ID)
			}
		}
		l.requireConserved(t)
	}

	var minBalance int64
	require.NoError(t, l.conn.GetContext(ctx, &minBalance, `SELECT MIN(balance) FROM accounts`))
	assert.GreaterOrEqual(t, minBalance, int64(0))
}

// failingPredictions fails the write that follows the debit.
type failingPredictions struct {
	repository.PredictionRepository
}

func (failingPredictions) CreatePrediction(context.Context, repository.DBExecutor, *domain.Prediction) error {
	return errors.New("disk I/O error")
}

// failingCredits fails the payout that follows the status change.
type failingCredits struct {
	repository.AccountRepository
}

func (failingCredits) Credit(context.Context, repository.DBExecutor, domain.AccountKey, int64) error {
	return errors.New("disk I/O error")
}

func TestPlaceWagerIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, func(p *ledgerParts) {
		p.predictions = failingPredictions{p.predictions}
	})

	_, err := l.GetOrCreateAccount(ctx, "Analyst_01")
	require.NoError(t, err)

	_, err = l.PlaceWager(ctx, draftFor("Analyst_01", 200))
	assert.ErrorIs(t, err, util.ErrStorageUnavailable)
	assert.Equal(t, int64(1000), l.balance(t, "Analyst_01"), "the debit must roll back with the failed insert")

	summary := l.requireConserved(t)
	assert.Zero(t, summary.Escrowed)
}

func TestResolveIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, func(p *ledgerParts) {
		p.accounts = failingCredits{p.accounts}
	})

	p, err := l.PlaceWager(ctx, draftFor("Analyst_01", 200))
	require.NoError(t, err)

	_, err = l.Resolve(ctx, p.ID, true)
	assert.ErrorIs(t, err, util.ErrStorageUnavailable)

	open, err := l.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, p.ID, open[0].ID)
	assert.Equal(t, int64(800), l.balance(t, "Analyst_01"))

	// A lost resolution needs no credit and still goes through.
	_, err = l.Resolve(ctx, p.ID, false)
	require.NoError(t, err)
	l.requireConserved(t)
}

func TestListingOrderAndPartition(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	var ids []string
	for _, key := range []domain.AccountKey{"alpha", "bravo", "alpha"} {
		p, err := l.PlaceWager(ctx, draftFor(key, 100))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	open, err := l.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, predictionIDs(open))

	_, err = l.Resolve(ctx, ids[1], true)
	require.NoError(t, err)

	open, err = l.ListOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0]}, predictionIDs(open))

	resolved, err := l.ListResolved(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, predictionIDs(resolved))

	mine, err := l.ListByAccount(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0]}, predictionIDs(mine))

	latest, err := l.ListByAccount(ctx, "alpha", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2]}, predictionIDs(latest))
}

func TestResolvedHistoryLimits(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	for i := 0; i < 12; i++ {
		p, err := l.PlaceWager(ctx, draftFor("Analyst_01", 10))
		require.NoError(t, err)
		_, err = l.Resolve(ctx, p.ID, i%2 == 0)
		require.NoError(t, err)
	}

	history, err := l.ListResolved(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, DefaultHistoryLimit)

	all, err := l.ListResolved(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, all, 12)
	for _, p := range all {
		assert.Equal(t, domain.PredictionStatusResolved, p.Status)
		assert.NotNil(t, p.ResolvedAt)
	}
}

func TestTrackRecordAndSummary(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t, nil)

	outcomes := []bool{true, true, false}
	for _, won := range outcomes {
		p, err := l.PlaceWager(ctx, draftFor("Analyst_01", 100))
		require.NoError(t, err)
		_, err = l.Resolve(ctx, p.ID, won)
		require.NoError(t, err)
	}
	_, err := l.PlaceWager(ctx, draftFor("Analyst_01", 50))
	require.NoError(t, err)
	_, err = l.GetOrCreateAccount(ctx, "observer")
	require.NoError(t, err)

	record, err := l.TrackRecord(ctx, "Analyst_01")
	require.NoError(t, err)
	assert.Equal(t, 2, record.Correct)
	assert.Equal(t, 1, record.Incorrect)
	assert.Equal(t, 1, record.Open)
	assert.Equal(t, int64(50), record.Escrowed)
	assert.Equal(t, int64(100), record.NetPayout)
	assert.Equal(t, "0.6667", record.Accuracy.StringFixed(4))
	assert.Equal(t, int64(1050), record.Balance)

	summary := l.requireConserved(t)
	assert.Equal(t, int64(2), summary.Accounts)
	assert.Equal(t, int64(2050), summary.TotalBalance)
	assert.Equal(t, int64(50), summary.Escrowed)
	assert.Equal(t, int64(100), summary.NetPayout)

	_, err = l.TrackRecord(ctx, "nobody")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestLockFailureIsUnavailable(t *testing.T) {
	l := newSQLiteLedger(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	keyed := lock.NewKeyedMutex()
	unlock, err := keyed.Lock(context.Background(), lock.AccountKey("Analyst_01"))
	require.NoError(t, err)
	defer unlock()

	l.LedgerService = NewLedgerService(l.conn, l.conn, sqlstore.NewAccountRepository(), sqlstore.NewPredictionRepository(),
		sqlstore.NewLedgerRepository(), db.BeginTx, db.CommitTx, db.RollbackTx,
		WithLocker(keyed), WithLogger(discardLogger()), WithClock(func() time.Time { return fixedNow }))

	cancel()
	_, err = l.PlaceWager(ctx, draftFor("Analyst_01", 100))
	assert.ErrorIs(t, err, util.ErrStorageUnavailable)
}

func predictionIDs(ps []domain.Prediction) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}
