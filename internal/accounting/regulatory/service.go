package regulatory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Service builds the monthly regulatory exports. Every operation validates the
// period before touching storage.
type Service struct {
	repo   Repository
	logger *slog.Logger
	flight singleflight.Group
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Journal exports every confirmed line of the period.
func (s *Service) Journal(ctx context.Context, period string, branchID *int64) (JournalReport, error) {
	var out JournalReport
	err := s.run(ctx, ReportJournal, period, branchID, func(ctx context.Context, p periods.Period, r Reader) error {
		var err error
		out, err = journal(ctx, r, p, branchID)
		return err
	})
	return out, err
}

// Ledger exports opening, movement and closing of every account touched in the period.
func (s *Service) Ledger(ctx context.Context, period string, branchID *int64) (LedgerReport, error) {
	var out LedgerReport
	err := s.run(ctx, ReportLedger, period, branchID, func(ctx context.Context, p periods.Period, r Reader) error {
		var err error
		out, err = ledger(ctx, r, p, branchID)
		return err
	})
	return out, err
}

// Sales exports the sales register.
func (s *Service) Sales(ctx context.Context, period string, branchID *int64) (Register, error) {
	return s.register(ctx, ReportSales, period, branchID)
}

// Purchases exports the purchase register.
func (s *Service) Purchases(ctx context.Context, period string, branchID *int64) (Register, error) {
	return s.register(ctx, ReportPurchases, period, branchID)
}

// flightTimeout bounds a shared declaration build.
const flightTimeout = time.Minute

// Declaration runs the four exports over one snapshot and summarises the tax
// position. Concurrent identical requests share one build.
func (s *Service) Declaration(ctx context.Context, period string, branchID *int64) (Declaration, error) {
	p, err := periods.Parse(period)
	if err != nil {
		return Declaration{}, err
	}
	key := p.String() + ":" + branchToken(branchID)
	resultChan := s.flight.DoChan(key, func() (any, error) {
		// The shared build outlives a cancelled first caller.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		var out Declaration
		err := s.run(flightCtx, ReportDeclaration, p.String(), branchID, func(ctx context.Context, p periods.Period, r Reader) error {
			var err error
			out, err = declaration(ctx, r, p, branchID)
			return err
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Declaration{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Declaration{}, res.Err
		}
		return res.Val.(Declaration), nil
	}
}

// Export builds one report by name. The declaration is included.
func (s *Service) Export(ctx context.Context, report Report, period string, branchID *int64) (any, error) {
	switch report {
	case ReportJournal:
		return s.Journal(ctx, period, branchID)
	case ReportLedger:
		return s.Ledger(ctx, period, branchID)
	case ReportSales:
		return s.Sales(ctx, period, branchID)
	case ReportPurchases:
		return s.Purchases(ctx, period, branchID)
	case ReportDeclaration:
		return s.Declaration(ctx, period, branchID)
	default:
		return nil, fmt.Errorf("%w: unknown report %q", ErrUnknownReport, report)
	}
}

func (s *Service) register(ctx context.Context, kind Report, period string, branchID *int64) (Register, error) {
	var out Register
	err := s.run(ctx, kind, period, branchID, func(ctx context.Context, p periods.Period, r Reader) error {
		var err error
		out, err = register(ctx, r, kind, p, branchID)
		return err
	})
	return out, err
}

func (s *Service) run(ctx context.Context, report Report, raw string, branchID *int64, fn func(context.Context, periods.Period, Reader) error) error {
	p, err := periods.Parse(raw)
	if err != nil {
		return err
	}
	err = s.repo.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		return fn(ctx, p, r)
	})
	if err != nil {
		return shared.WrapOp("regulatory."+string(report), "", p.String(), deref(branchID), err)
	}
	s.logger.Debug("regulatory report built", slog.String("report", string(report)), slog.String("period", p.String()))
	return nil
}

func journal(ctx context.Context, r Reader, p periods.Period, branchID *int64) (JournalReport, error) {
	from, to := p.Bounds()
	lines, err := r.JournalLines(ctx, from, to, branchID)
	if err != nil {
		return JournalReport{}, err
	}
	return BuildJournal(p.String(), branchID, lines), nil
}

func ledger(ctx context.Context, r Reader, p periods.Period, branchID *int64) (LedgerReport, error) {
	from, to := p.Bounds()
	activity, err := r.AccountActivity(ctx, from, to, branchID)
	if err != nil {
		return LedgerReport{}, err
	}
	return BuildLedger(p.String(), branchID, activity), nil
}

func register(ctx context.Context, r Reader, kind Report, p periods.Period, branchID *int64) (Register, error) {
	from, to := p.Bounds()
	docs, err := r.Documents(ctx, kind, from, to, branchID)
	if err != nil {
		return Register{}, err
	}
	return BuildRegister(kind, p.String(), branchID, docs), nil
}

func declaration(ctx context.Context, r Reader, p periods.Period, branchID *int64) (Declaration, error) {
	j, err := journal(ctx, r, p, branchID)
	if err != nil {
		return Declaration{}, err
	}
	l, err := ledger(ctx, r, p, branchID)
	if err != nil {
		return Declaration{}, err
	}
	sales, err := register(ctx, r, ReportSales, p, branchID)
	if err != nil {
		return Declaration{}, err
	}
	purchases, err := register(ctx, r, ReportPurchases, p, branchID)
	if err != nil {
		return Declaration{}, err
	}
	return Declaration{
		Period:    p.String(),
		BranchID:  branchID,
		Journal:   j,
		Ledger:    l,
		Sales:     sales,
		Purchases: purchases,
		Summary:   Summarize(sales, purchases),
	}, nil
}

func branchToken(branchID *int64) string {
	if branchID == nil {
		return "all"
	}
	return strconv.FormatInt(*branchID, 10)
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
