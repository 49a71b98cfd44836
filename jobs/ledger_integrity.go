package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/retail-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Verifier recomputes accumulator rows from confirmed journal lines.
type Verifier interface {
	Verify(ctx context.Context, period string, branchID *int64) ([]ledger.Drift, error)
}

// LedgerIntegrityJob reports accumulator drift. It never rewrites balances.
type LedgerIntegrityJob struct {
	Verifier Verifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Location *time.Location
	clock    func() time.Time
}

// NewLedgerIntegrityJob constructs the job handler. loc decides which month is
// current when a payload carries no period.
func NewLedgerIntegrityJob(verifier Verifier, logger *slog.Logger, metrics *jobmetrics.Metrics, loc *time.Location) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Verifier: verifier,
		Logger:   logger,
		Metrics:  metrics,
		Location: loc,
		clock:    time.Now,
	}
}

// Handle executes the integrity check for one period.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Verifier == nil {
		return errors.New("ledger integrity: verifier not configured")
	}
	var payload LedgerIntegrityPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run verifies the payload scope and returns the drifts found.
func (j *LedgerIntegrityJob) Run(ctx context.Context, payload LedgerIntegrityPayload) (drifts []ledger.Drift, resultErr error) {
	if payload.Period == "" {
		payload.Period = periods.FromDate(j.now()).String()
	}
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log().With(slog.String("period", payload.Period))
	if payload.BranchID != nil {
		logger = logger.With(slog.Int64("branch_id", *payload.BranchID))
	}

	drifts, err := j.Verifier.Verify(ctx, payload.Period, payload.BranchID)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidPeriod) {
			logger.Error("invalid integrity period", slog.Any("error", err))
			return nil, errors.Join(err, asynq.SkipRetry)
		}
		logger.Error("ledger verify failed", slog.Any("error", err))
		return nil, err
	}

	type scope struct {
		reason ledger.DriftReason
		branch int64
	}
	counts := make(map[scope]int)
	for _, d := range drifts {
		logger.Warn("ledger drift detected",
			slog.String("account_code", d.AccountCode),
			slog.Int64("account_id", d.AccountID),
			slog.Int64("branch_id", d.BranchID),
			slog.String("reason", string(d.Reason)),
			slog.String("stored_closing_debit", d.Stored.ClosingDebit.String()),
			slog.String("stored_closing_credit", d.Stored.ClosingCredit.String()),
			slog.String("expected_closing_debit", d.Expected.ClosingDebit.String()),
			slog.String("expected_closing_credit", d.Expected.ClosingCredit.String()),
		)
		counts[scope{reason: d.Reason, branch: d.BranchID}]++
	}
	for s, n := range counts {
		j.metrics().AddDrift(string(s.reason), s.branch, n)
	}
	logger.Info("ledger integrity check completed", slog.Int("drifts", len(drifts)))
	return drifts, nil
}

func (j *LedgerIntegrityJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	now := time.Now()
	if j.clock != nil {
		now = j.clock()
	}
	if j.Location != nil {
		now = now.In(j.Location)
	}
	return now
}
