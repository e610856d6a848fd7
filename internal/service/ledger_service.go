// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"futures-desk/internal/domain"
	"futures-desk/internal/lock"
	"futures-desk/internal/repository"
	"futures-desk/internal/util"
	"futures-desk/pkg/db"
)

const (
	// DefaultHistoryLimit is the size of the resolved-predictions history.
	DefaultHistoryLimit = 10
	// MaxListLimit caps any caller-supplied list limit.
	MaxListLimit = 100
	// accountCreateTimeout bounds a shared first-use account creation.
	accountCreateTimeout = 10 * time.Second
)

// LedgerService escrows wagers and settles predictions. It is the only write
// path to account balances and prediction state.
type LedgerService interface {
	GetOrCreateAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error)
	GetAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error)
	PlaceWager(ctx context.Context, draft domain.PredictionDraft) (*domain.Prediction, error)
	Resolve(ctx context.Context, predictionID string, won bool) (*domain.Prediction, error)
	ListOpen(ctx context.Context) ([]domain.Prediction, error)
	ListResolved(ctx context.Context, limit int) ([]domain.Prediction, error)
	ListByAccount(ctx context.Context, key domain.AccountKey, limit int) ([]domain.Prediction, error)
	TrackRecord(ctx context.Context, key domain.AccountKey) (*domain.TrackRecord, error)
	Summary(ctx context.Context) (*domain.LedgerSummary, error)
}

// Option configures a ledgerService.
type Option func(*ledgerService)

// WithLocker replaces the in-process account lock, e.g. with a RedisLocker
// when several replicas share one database.
func WithLocker(l lock.Locker) Option {
	return func(s *ledgerService) { s.locker = l }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ledgerService) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ledgerService) { s.now = now }
}

// WithHistoryLimit sets the default ListResolved size.
func WithHistoryLimit(n int) Option {
	return func(s *ledgerService) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner     db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor     repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	accountRepo    repository.AccountRepository
	predictionRepo repository.PredictionRepository
	ledgerRepo     repository.LedgerRepository
	beginTx        db.BeginTxFunc
	commitTx       db.CommitTxFunc
	rollbackTx     db.RollbackTxFunc

	locker       lock.Locker
	accounts     singleflight.Group
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
	historyLimit int
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	predictionRepo repository.PredictionRepository,
	ledgerRepo repository.LedgerRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	opts ...Option,
) LedgerService {
	s := &ledgerService{
		dbBeginner:     dbBeginner,
		dbExecutor:     dbExecutor,
		accountRepo:    accountRepo,
		predictionRepo: predictionRepo,
		ledgerRepo:     ledgerRepo,
		beginTx:        beginTx,
		commitTx:       commitTx,
		rollbackTx:     rollbackTx,
		locker:         lock.NewKeyedMutex(),
		logger:         slog.Default(),
		tracer:         otel.Tracer("futures-desk/internal/service"),
		now:            time.Now,
		historyLimit:   DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateAccount returns the account, granting the starting balance on
// first use. Concurrent first uses of a key share one creation attempt, and
// the insert itself is a no-op when the key already exists.
func (s *ledgerService) GetOrCreateAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetOrCreateAccount",
		trace.WithAttributes(attribute.String("account.key", string(key))))
	defer span.End()

	if _, err := domain.ParseAccountKey(string(key)); err != nil {
		return nil, s.fail(span, err)
	}

	// The creation is shared by every concurrent caller of the key, so one
	// caller giving up must not fail the others.
	v, err, _ := s.accounts.Do(string(key), func() (interface{}, error) {
		createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), accountCreateTimeout)
		defer cancel()
		return s.ensureAccount(createCtx, s.dbExecutor, key)
	})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("get or create account: %w", storageErr(err)))
	}
	account := *v.(*domain.Account)
	return &account, nil
}

// GetAccount returns the account without granting anything.
func (s *ledgerService) GetAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetAccount",
		trace.WithAttributes(attribute.String("account.key", string(key))))
	defer span.End()

	if _, err := domain.ParseAccountKey(string(key)); err != nil {
		return nil, s.fail(span, fmt.Errorf("get account: %w", err))
	}

	account, err := s.accountRepo.GetAccount(ctx, s.dbExecutor, key)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("get account: %w", storageErr(err)))
	}
	return account, nil
}

// PlaceWager escrows the wager and records an Open prediction in one
// transaction, holding the account lock across the balance check and debit.
func (s *ledgerService) PlaceWager(ctx context.Context, draft domain.PredictionDraft) (*domain.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.PlaceWager", trace.WithAttributes(
		attribute.String("account.key", string(draft.AccountKey)),
		attribute.Int64("wager", draft.Wager),
	))
	defer span.End()

	prediction, err := domain.NewPrediction(draft, s.now())
	if err != nil {
		return nil, s.fail(span, err)
	}
	key := prediction.AccountKey

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(string(key)))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("place wager: failed to lock account '%s': %w", key, util.Unavailable(err)))
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("place wager: failed to begin transaction: %w", util.Unavailable(err)))
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, s.fail(span, fmt.Errorf("place wager: %w", util.Unavailable(fmt.Errorf("transaction controller does not implement DBExecutor"))))
	}

	account, err := s.ensureAccount(ctx, txExecutor, key)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("place wager: failed to load account '%s': %w", key, storageErr(err)))
	}
	if !account.CanAfford(prediction.Wager) {
		return nil, s.fail(span, fmt.Errorf("%w: balance is %d, wager is %d", util.ErrInsufficientFunds, account.Balance, prediction.Wager))
	}

	if err := s.accountRepo.Debit(ctx, txExecutor, key, prediction.Wager); err != nil {
		return nil, s.fail(span, fmt.Errorf("place wager: failed to debit account '%s': %w", key, storageErr(err)))
	}
	if err := s.predictionRepo.CreatePrediction(ctx, txExecutor, prediction); err != nil {
		return nil, s.fail(span, fmt.Errorf("place wager: failed to create prediction: %w", storageErr(err)))
	}

	if err := s.commitTx(txController); err != nil {
		return nil, s.fail(span, fmt.Errorf("place wager: failed to commit transaction: %w", util.Unavailable(err)))
	}

	s.logger.Info("wager escrowed",
		"account", key,
		"prediction_id", prediction.ID,
		"wager", prediction.Wager,
		"balance", account.Balance-prediction.Wager,
	)
	return prediction, nil
}

// Resolve settles an Open prediction. The status change and the payout
// commit together; a prediction can be settled at most once.
func (s *ledgerService) Resolve(ctx context.Context, predictionID string, won bool) (*domain.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Resolve", trace.WithAttributes(
		attribute.String("prediction.id", predictionID),
		attribute.Bool("won", won),
	))
	defer span.End()

	if predictionID == "" {
		return nil, s.fail(span, util.Invalid("id", "must not be empty"))
	}

	// The owning account is immutable, so it can be read before locking.
	existing, err := s.predictionRepo.GetPrediction(ctx, s.dbExecutor, predictionID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve: failed to get prediction %s: %w", predictionID, storageErr(err)))
	}
	if !existing.IsOpen() {
		return nil, s.fail(span, fmt.Errorf("resolve %s: %w", predictionID, util.ErrAlreadyResolved))
	}
	key := existing.AccountKey

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(string(key)))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve: failed to lock account '%s': %w", key, util.Unavailable(err)))
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve: failed to begin transaction: %w", util.Unavailable(err)))
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, s.fail(span, fmt.Errorf("resolve: %w", util.Unavailable(fmt.Errorf("transaction controller does not implement DBExecutor"))))
	}

	prediction, err := s.predictionRepo.GetPrediction(ctx, txExecutor, predictionID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve: failed to get prediction %s: %w", predictionID, storageErr(err)))
	}
	credit, err := prediction.Settle(won, s.now())
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve %s: %w", predictionID, err))
	}

	if err := s.predictionRepo.MarkResolved(ctx, txExecutor, predictionID, prediction.Outcome, *prediction.ResolvedAt); err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve %s: %w", predictionID, storageErr(err)))
	}
	if credit > 0 {
		if err := s.accountRepo.Credit(ctx, txExecutor, key, credit); err != nil {
			return nil, s.fail(span, fmt.Errorf("resolve: failed to credit account '%s': %w", key, storageErr(err)))
		}
	}

	if err := s.commitTx(txController); err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve: failed to commit transaction: %w", util.Unavailable(err)))
	}

	s.logger.Info("prediction resolved",
		"account", key,
		"prediction_id", predictionID,
		"outcome", prediction.Outcome,
		"payout", credit,
	)
	return prediction, nil
}

// ListOpen returns every Open prediction, newest first.
func (s *ledgerService) ListOpen(ctx context.Context) ([]domain.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ListOpen")
	defer span.End()

	predictions, err := s.predictionRepo.ListByStatus(ctx, s.dbExecutor, domain.PredictionStatusOpen, 0)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list open: %w", storageErr(err)))
	}
	return predictions, nil
}

// ListResolved returns the most recent resolved predictions, newest first.
// A limit <= 0 selects the configured history size.
func (s *ledgerService) ListResolved(ctx context.Context, limit int) ([]domain.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ListResolved")
	defer span.End()

	if limit <= 0 {
		limit = s.historyLimit
	}
	predictions, err := s.predictionRepo.ListByStatus(ctx, s.dbExecutor, domain.PredictionStatusResolved, capLimit(limit))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list resolved: %w", storageErr(err)))
	}
	return predictions, nil
}

// ListByAccount returns an analyst's predictions, newest first. A limit <= 0
// returns all of them.
func (s *ledgerService) ListByAccount(ctx context.Context, key domain.AccountKey, limit int) ([]domain.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ListByAccount",
		trace.WithAttributes(attribute.String("account.key", string(key))))
	defer span.End()

	if _, err := domain.ParseAccountKey(string(key)); err != nil {
		return nil, s.fail(span, fmt.Errorf("list by account: %w", err))
	}

	if limit > 0 {
		limit = capLimit(limit)
	}
	predictions, err := s.predictionRepo.ListByAccount(ctx, s.dbExecutor, key, limit)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list by account: %w", storageErr(err)))
	}
	return predictions, nil
}

// TrackRecord folds an existing account's predictions into its record.
func (s *ledgerService) TrackRecord(ctx context.Context, key domain.AccountKey) (*domain.TrackRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.TrackRecord",
		trace.WithAttributes(attribute.String("account.key", string(key))))
	defer span.End()

	if _, err := domain.ParseAccountKey(string(key)); err != nil {
		return nil, s.fail(span, fmt.Errorf("track record: %w", err))
	}

	account, err := s.accountRepo.GetAccount(ctx, s.dbExecutor, key)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("track record: %w", storageErr(err)))
	}
	predictions, err := s.predictionRepo.ListByAccount(ctx, s.dbExecutor, key, 0)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("track record: %w", storageErr(err)))
	}
	record := domain.BuildTrackRecord(*account, predictions)
	return &record, nil
}

// Summary reads the conservation totals.
func (s *ledgerService) Summary(ctx context.Context) (*domain.LedgerSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Summary")
	defer span.End()

	summary, err := s.ledgerRepo.Summary(ctx, s.dbExecutor)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("summary: %w", storageErr(err)))
	}
	if !summary.Conserved() {
		s.logger.Error("ledger conservation violated",
			"circulating", summary.Circulating(),
			"expected", summary.Expected(),
		)
	}
	return summary, nil
}

func (s *ledgerService) ensureAccount(ctx context.Context, q repository.DBExecutor, key domain.AccountKey) (*domain.Account, error) {
	created, err := s.accountRepo.CreateAccountIfAbsent(ctx, q, domain.NewAccount(key))
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("account granted", "account", key, "balance", domain.StartingGrant)
	}
	return s.accountRepo.GetAccount(ctx, q, key)
}

// fail records err on the span. Expected ledger conditions are not logged as errors.
func (s *ledgerService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if !util.IsDomainError(err) {
		s.logger.Error("ledger operation failed", "error", err)
	}
	return err
}

// storageErr keeps expected ledger conditions as they are and marks anything
// else as a storage failure.
func storageErr(err error) error {
	if util.IsDomainError(err) {
		return err
	}
	return util.Unavailable(err)
}

func capLimit(limit int) int {
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
