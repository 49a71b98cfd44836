package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/cache"
)

const reportTrialBalance = "trial_balance"

// Cache is the versioned JSON cache the trial balance is stored in.
type Cache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (bool, error)
}

// Service builds the trial balance and the statements derived from it.
type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
	flight singleflight.Group
}

// NewService wires the report service. A nil cache computes every request.
func NewService(repo Repository, reportCache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: reportCache, logger: logger}
}

// TrialBalance aggregates confirmed lines of the range by account.
func (s *Service) TrialBalance(ctx context.Context, filter Filter) (TrialBalance, error) {
	from, to, err := validateRange(filter)
	if err != nil {
		return TrialBalance{}, err
	}
	level := filter.Level
	if level != nil && *level <= 0 {
		level = nil
	}
	parts := []string{
		"tb",
		from.Format(time.DateOnly),
		to.Format(time.DateOnly),
		cache.BranchToken(filter.BranchID),
		levelToken(level),
	}
	val, err, _ := s.singleflight(ctx, strings.Join(parts, ":"), func(ctx context.Context) (any, error) {
		return s.cachedTrialBalance(ctx, parts, from, to, filter.BranchID, level)
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return val.(TrialBalance), nil
}

// IncomeStatement derives income, expense and net result for the range.
func (s *Service) IncomeStatement(ctx context.Context, filter Filter) (IncomeStatement, error) {
	tb, err := s.TrialBalance(ctx, Filter{DateFrom: filter.DateFrom, DateTo: filter.DateTo, BranchID: filter.BranchID})
	if err != nil {
		return IncomeStatement{}, err
	}
	return BuildIncomeStatement(tb), nil
}

// BalanceSheet derives assets against liabilities, equity and the period result.
func (s *Service) BalanceSheet(ctx context.Context, filter Filter) (BalanceSheet, error) {
	tb, err := s.TrialBalance(ctx, Filter{DateFrom: filter.DateFrom, DateTo: filter.DateTo, BranchID: filter.BranchID})
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(tb), nil
}

// flightTimeout bounds a shared build once it no longer follows any caller.
const flightTimeout = time.Minute

// singleflight shares one build between identical callers. The build does not
// inherit the first caller's cancellation, so one caller leaving does not fail
// the others waiting on it.
func (s *Service) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.flight.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

// cachedTrialBalance serves from redis when possible. Redis failures fall back
// to computing from the database; they never fail the request.
func (s *Service) cachedTrialBalance(ctx context.Context, parts []string, from, to time.Time, branchID *int64, level *int) (TrialBalance, error) {
	compute := func(ctx context.Context) (TrialBalance, error) {
		start := time.Now()
		data, err := s.repo.Load(ctx, from, to, branchID)
		if err != nil {
			return TrialBalance{}, shared.WrapOp("reports.trial_balance", "", "", derefBranch(branchID), err)
		}
		tb := BuildTrialBalance(data, level)
		tb.DateFrom = from.Format(time.DateOnly)
		tb.DateTo = to.Format(time.DateOnly)
		tb.BranchID = branchID
		observeBuildDuration(reportTrialBalance, time.Since(start))
		return tb, nil
	}
	if s.cache == nil {
		return compute(ctx)
	}

	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", reportTrialBalance), slog.Any("error", err))
		return compute(ctx)
	}
	var (
		out     TrialBalance
		built   *TrialBalance
		loadErr error
	)
	hit, err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		tb, err := compute(ctx)
		if err != nil {
			loadErr = err
			return nil, err
		}
		built = &tb
		return tb, nil
	})
	if loadErr != nil {
		return TrialBalance{}, loadErr
	}
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", reportTrialBalance), slog.String("key", key), slog.Any("error", err))
		if built != nil {
			return *built, nil
		}
		return compute(ctx)
	}
	if hit {
		recordCacheHit(reportTrialBalance)
	} else {
		recordCacheMiss(reportTrialBalance)
	}
	return out, nil
}

func validateRange(filter Filter) (time.Time, time.Time, error) {
	if filter.DateFrom == nil || filter.DateTo == nil {
		return time.Time{}, time.Time{}, shared.ErrMissingDateRange
	}
	from, to := *filter.DateFrom, *filter.DateTo
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", shared.ErrInvalidDateRange,
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return from, to, nil
}

func levelToken(level *int) string {
	if level == nil {
		return "L*"
	}
	return "L" + strconv.Itoa(*level)
}

func derefBranch(branchID *int64) int64 {
	if branchID == nil {
		return 0
	}
	return *branchID
}
