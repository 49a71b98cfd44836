package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Invalidator is notified when cached report figures become stale.
type Invalidator interface {
	Bump(ctx context.Context) error
}

type Service struct {
	repo   Repository
	cache  Invalidator
	logger *slog.Logger
}

func NewService(repo Repository, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) ListBalances(ctx context.Context, filter Filter) ([]Balance, error) {
	if filter.Period != "" {
		if _, err := periods.Parse(filter.Period); err != nil {
			return nil, err
		}
	}
	return s.repo.ListBalances(ctx, filter)
}

// ClosePeriod blocks further postings into period for branchID.
func (s *Service) ClosePeriod(ctx context.Context, period string, branchID, actorID int64) error {
	return s.transition(ctx, period, branchID, actorID, periods.PeriodStatusClosed)
}

// ReopenPeriod accepts postings into a previously closed period again.
func (s *Service) ReopenPeriod(ctx context.Context, period string, branchID, actorID int64) error {
	return s.transition(ctx, period, branchID, actorID, periods.PeriodStatusOpen)
}

func (s *Service) transition(ctx context.Context, raw string, branchID, actorID int64, target periods.PeriodStatus) error {
	p, err := periods.Parse(raw)
	if err != nil {
		return err
	}
	if branchID <= 0 {
		return fmt.Errorf("%w: branch required", shared.ErrInvalidStatus)
	}
	period := p.String()
	var rows int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.PeriodStatusForUpdate(ctx, period, branchID)
		if err != nil {
			return err
		}
		if err := periods.ValidateTransition(current, target); err != nil {
			return err
		}
		if err := tx.SetPeriodStatus(ctx, period, branchID, target, actorID); err != nil {
			return err
		}
		rows, err = tx.MarkBalances(ctx, period, branchID, target)
		return err
	})
	if err != nil {
		return shared.WrapOp("ledger.period."+string(target), "", period, branchID, err)
	}
	s.logger.Info("ledger period status changed",
		slog.String("period", period),
		slog.Int64("branch_id", branchID),
		slog.String("status", string(target)),
		slog.Int64("rows", rows),
	)
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump", slog.Any("error", err))
		}
	}
	return nil
}

// Verify compares the accumulator against totals recomputed from confirmed lines.
// It only reads.
func (s *Service) Verify(ctx context.Context, raw string, branchID *int64) ([]Drift, error) {
	p, err := periods.Parse(raw)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.ListBalances(ctx, Filter{Period: p.String(), BranchID: branchID})
	if err != nil {
		return nil, shared.WrapOp("ledger.verify", "", p.String(), deref(branchID), err)
	}
	expected, err := s.repo.Recompute(ctx, p, branchID)
	if err != nil {
		return nil, shared.WrapOp("ledger.verify", "", p.String(), deref(branchID), err)
	}
	return Compare(stored, expected), nil
}

// Compare reports every key where stored rows and recomputed movements disagree.
func Compare(stored []Balance, expected []Movement) []Drift {
	byKey := make(map[Key]Balance, len(stored))
	for _, b := range stored {
		byKey[b.Key] = b
	}
	var drifts []Drift
	for _, m := range expected {
		b, ok := byKey[m.Key]
		if !ok {
			drifts = append(drifts, Drift{Key: m.Key, AccountCode: m.AccountCode, Reason: DriftMissing, Expected: m.Totals})
			continue
		}
		delete(byKey, m.Key)
		if !b.Totals.equal(m.Totals) {
			drifts = append(drifts, Drift{Key: m.Key, AccountCode: m.AccountCode, Reason: DriftMismatch, Stored: b.Totals, Expected: m.Totals})
			continue
		}
		debtor, creditor := shared.SplitBalance(m.Nature, m.ClosingDebit, m.ClosingCredit)
		if !debtor.Equal(b.DebtorBalance) || !creditor.Equal(b.CreditorBalance) {
			drifts = append(drifts, Drift{Key: m.Key, AccountCode: m.AccountCode, Reason: DriftSplit, Stored: b.Totals, Expected: m.Totals})
		}
	}
	for _, b := range stored {
		if _, orphan := byKey[b.Key]; orphan {
			drifts = append(drifts, Drift{Key: b.Key, AccountCode: b.AccountCode, Reason: DriftOrphan, Stored: b.Totals})
		}
	}
	return drifts
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
