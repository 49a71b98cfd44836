package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/retail-ledger/internal/shared"
)

// Config carries the numbering and currency settings of the engine.
type Config struct {
	Prefix       string
	BaseCurrency string
	Location     *time.Location
}

// Observer is told about every entry that reached CONFIRMED.
type Observer interface {
	EntryConfirmed(operation string, automatic bool)
}

type Service struct {
	repo     Repository
	roles    mappings.Resolver
	cache    ledger.Invalidator
	locks    *internalShared.KeyedMutex
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func NewService(repo Repository, roles mappings.Resolver, cache ledger.Invalidator, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if roles == nil {
		roles = mappings.Static{}
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "JE"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		repo:     repo,
		roles:    roles,
		cache:    cache,
		locks:    &internalShared.KeyedMutex{},
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

func (s *Service) today() time.Time {
	return dateOnly(s.now().In(s.cfg.Location))
}

func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, shared.ErrInvalidDateRange
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListEntries(ctx, filter)
}

// GenerateSaleEntry books a sale: debit cash for the total, credit revenue for
// the subtotal and credit tax payable when tax is positive.
func (s *Service) GenerateSaleEntry(ctx context.Context, saleID, authorID int64) (Entry, error) {
	return s.generate(ctx, SourceSale, saleID, authorID)
}

// GeneratePurchaseEntry books a purchase: debit merchandise for the subtotal,
// debit tax receivable when tax is positive and credit payables for the total.
func (s *Service) GeneratePurchaseEntry(ctx context.Context, purchaseID, authorID int64) (Entry, error) {
	return s.generate(ctx, SourcePurchase, purchaseID, authorID)
}

func (s *Service) generate(ctx context.Context, kind SourceKind, id, authorID int64) (Entry, error) {
	op := "journals.generate_" + strings.ToLower(string(kind))
	date := s.today()
	var entry Entry
	var branchID int64
	err := s.withPostingTx(ctx, func(ctx context.Context, tx *postingTx) error {
		doc, err := tx.GetSource(ctx, kind, id)
		if err != nil {
			return err
		}
		branchID = doc.BranchID
		draft, natures, err := s.sourceEntry(ctx, tx, doc, date)
		if err != nil {
			return err
		}
		draft.AuthorID = authorID
		inserted, err := tx.insert(ctx, draft)
		if err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, kind, SourceRef(kind, id), inserted.ID); err != nil {
			if errors.Is(err, shared.ErrSourceConflict) {
				return fmt.Errorf("%w: %s %d", shared.ErrSourceAlreadyLinked, kind, id)
			}
			return err
		}
		if err := post(ctx, tx, inserted, natures); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, shared.WrapOp(op, "", periods.FromDate(date).String(), branchID, err)
	}
	s.logger.Info("journal entry generated",
		slog.String("number", entry.Number),
		slog.String("source", string(kind)),
		slog.Int64("source_id", id),
		slog.Int64("branch_id", entry.BranchID),
		slog.String("total", entry.TotalDebit.StringFixed(2)),
	)
	s.confirmed(entry)
	return entry, nil
}

// sourceEntry builds the balanced draft for a document. Every role account is
// resolved before anything is written.
func (s *Service) sourceEntry(ctx context.Context, tx TxRepository, doc SourceDocument, date time.Time) (Entry, map[int64]shared.Nature, error) {
	subtotal, tax, total := shared.Round2(doc.Subtotal), shared.Round2(doc.Tax), shared.Round2(doc.Total)
	currency := s.cfg.BaseCurrency
	var memo string
	if !total.IsPositive() {
		return Entry{}, nil, fmt.Errorf("%w: %s %s has no positive total", shared.ErrInvalidLine, doc.Kind, doc.Reference())
	}
	// Tax legs are optional; their account is still required.
	type leg struct {
		role          mappings.Role
		debit, credit decimal.Decimal
		optional      bool
	}
	var legs []leg
	switch doc.Kind {
	case SourceSale:
		if doc.Currency != "" {
			currency = doc.Currency
		}
		memo = "Sale " + doc.Reference()
		legs = []leg{
			{role: mappings.RoleSaleCash, debit: total},
			{role: mappings.RoleSaleRevenue, credit: subtotal},
			{role: mappings.RoleSaleTax, credit: tax, optional: true},
		}
	case SourcePurchase:
		if doc.Currency != "" && !strings.EqualFold(doc.Currency, s.cfg.BaseCurrency) {
			s.logger.Warn("purchase currency differs from ledger base currency",
				slog.Int64("purchase_id", doc.ID),
				slog.String("purchase_currency", doc.Currency),
				slog.String("ledger_currency", s.cfg.BaseCurrency),
			)
		}
		memo = "Purchase " + doc.Reference()
		legs = []leg{
			{role: mappings.RolePurchaseInventory, debit: subtotal},
			{role: mappings.RolePurchaseTax, debit: tax, optional: true},
			{role: mappings.RolePurchasePayable, credit: total},
		}
	default:
		return Entry{}, nil, fmt.Errorf("journals: unknown source kind %q", doc.Kind)
	}

	natures := make(map[int64]shared.Nature, len(legs))
	lines := make([]Line, 0, len(legs))
	for _, l := range legs {
		acc, err := s.roleAccount(ctx, tx, l.role)
		if err != nil {
			return Entry{}, nil, err
		}
		if l.optional && !l.debit.IsPositive() && !l.credit.IsPositive() {
			continue
		}
		if err := validateAmounts(len(lines), l.debit, l.credit); err != nil {
			return Entry{}, nil, err
		}
		natures[acc.ID] = acc.Nature
		lines = append(lines, Line{
			AccountID:    acc.ID,
			AccountCode:  acc.Code,
			LineOrder:    len(lines) + 1,
			Memo:         memo,
			Debit:        l.debit,
			Credit:       l.credit,
			Counterparty: doc.CounterpartyDoc,
			Currency:     currency,
		})
	}
	debit, credit := totals(lines)
	if !shared.Balanced(debit, credit) {
		return Entry{}, nil, fmt.Errorf("%w: %s %s differs by %s", shared.ErrImbalancedEntry, doc.Kind, doc.Reference(), debit.Sub(credit).StringFixed(2))
	}
	entry := Entry{
		EntryDate:   date,
		Memo:        memo,
		Reference:   doc.Reference(),
		BranchID:    doc.BranchID,
		Status:      StatusConfirmed,
		IsAutomatic: true,
		TotalDebit:  debit,
		TotalCredit: credit,
		Difference:  debit.Sub(credit),
		Lines:       lines,
	}
	docID := doc.ID
	if doc.Kind == SourceSale {
		entry.Operation = OperationSale
		entry.SaleID = &docID
	} else {
		entry.Operation = OperationPurchase
		entry.PurchaseID = &docID
	}
	return entry, natures, nil
}

func (s *Service) roleAccount(ctx context.Context, tx TxRepository, role mappings.Role) (accounts.Account, error) {
	code, err := s.roles.Code(ctx, role)
	if err != nil {
		return accounts.Account{}, err
	}
	acc, err := tx.AccountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return accounts.Account{}, fmt.Errorf("%w: account %s (%s)", shared.ErrMissingAccount, code, role)
		}
		return accounts.Account{}, err
	}
	if !acc.AcceptsPostings() {
		return accounts.Account{}, fmt.Errorf("%w: account %s (%s)", shared.ErrAccountNotPostable, code, role)
	}
	return acc, nil
}

// CreateManualEntry stores a manual entry. It is confirmed and posted only when
// requested and balanced; otherwise it stays DRAFT and the result carries the gap.
func (s *Service) CreateManualEntry(ctx context.Context, input ManualEntryInput) (ManualResult, error) {
	input.normalize()
	if err := input.Validate(s.validate); err != nil {
		return ManualResult{}, err
	}
	date := s.today()
	if input.EntryDate != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, input.EntryDate, s.cfg.Location)
		if err != nil {
			return ManualResult{}, fmt.Errorf("%w: entryDate %q", shared.ErrInvalidLine, input.EntryDate)
		}
		date = parsed
	}
	var result ManualResult
	err := s.withPostingTx(ctx, func(ctx context.Context, tx *postingTx) error {
		natures := make(map[int64]shared.Nature, len(input.Lines))
		lines := make([]Line, 0, len(input.Lines))
		for i, in := range input.Lines {
			acc, err := tx.AccountByID(ctx, in.AccountID)
			if err != nil {
				return err
			}
			if !acc.AcceptsPostings() {
				return fmt.Errorf("%w: account %s", shared.ErrAccountNotPostable, acc.Code)
			}
			natures[acc.ID] = acc.Nature
			currency := in.Currency
			if currency == "" {
				currency = s.cfg.BaseCurrency
			}
			lines = append(lines, Line{
				AccountID:    acc.ID,
				AccountCode:  acc.Code,
				LineOrder:    i + 1,
				Memo:         in.Memo,
				Debit:        shared.Round2(in.Debit),
				Credit:       shared.Round2(in.Credit),
				Counterparty: in.Counterparty,
				Currency:     currency,
			})
		}
		debit, credit := totals(lines)
		balanced := shared.Balanced(debit, credit)
		status := StatusDraft
		if input.Confirm && balanced {
			status = StatusConfirmed
		}
		inserted, err := tx.insert(ctx, Entry{
			EntryDate:   date,
			Memo:        input.Memo,
			Operation:   input.Operation,
			Reference:   input.Reference,
			BranchID:    input.BranchID,
			AuthorID:    input.AuthorID,
			Status:      status,
			TotalDebit:  debit,
			TotalCredit: credit,
			Difference:  debit.Sub(credit),
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		if status == StatusConfirmed {
			if err := post(ctx, tx, inserted, natures); err != nil {
				return err
			}
		}
		result = ManualResult{Entry: inserted, Balanced: balanced, Difference: inserted.Difference}
		return nil
	})
	if err != nil {
		return ManualResult{}, shared.WrapOp("journals.create_manual", "", periods.FromDate(date).String(), input.BranchID, err)
	}
	if result.Entry.Status == StatusConfirmed {
		s.confirmed(result.Entry)
	} else if input.Confirm {
		s.logger.Warn("manual entry left as draft",
			slog.String("number", result.Entry.Number),
			slog.String("difference", result.Difference.StringFixed(2)),
		)
	}
	return result, nil
}

// ConfirmEntry promotes a balanced DRAFT and posts its lines.
func (s *Service) ConfirmEntry(ctx context.Context, id, authorID int64) (Entry, error) {
	var (
		entry    Entry
		period   string
		branchID int64
	)
	err := s.withPostingTx(ctx, func(ctx context.Context, tx *postingTx) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		period, branchID = periods.FromDate(current.EntryDate).String(), current.BranchID
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: entry %s is %s", shared.ErrInvalidStatus, current.Number, current.Status)
		}
		debit, credit := totals(current.Lines)
		if !shared.Balanced(debit, credit) {
			return fmt.Errorf("%w: entry %s differs by %s", shared.ErrImbalancedEntry, current.Number, debit.Sub(credit).StringFixed(2))
		}
		natures, err := lineNatures(ctx, tx, current.Lines)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, current.ID, StatusConfirmed); err != nil {
			return err
		}
		current.Status = StatusConfirmed
		if err := post(ctx, tx, current, natures); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, shared.WrapOp("journals.confirm", "", period, branchID, err)
	}
	s.logger.Info("journal entry confirmed", slog.String("number", entry.Number), slog.Int64("author_id", authorID))
	s.confirmed(entry)
	return entry, nil
}

// ReverseEntry books a new CONFIRMED adjustment that mirrors a confirmed entry.
// The original row is left untouched.
func (s *Service) ReverseEntry(ctx context.Context, input ReverseInput) (Entry, error) {
	date := s.today()
	var (
		reversal Entry
		branchID int64
	)
	err := s.withPostingTx(ctx, func(ctx context.Context, tx *postingTx) error {
		original, err := tx.GetEntryForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		branchID = original.BranchID
		if original.Status != StatusConfirmed {
			return fmt.Errorf("%w: entry %s is %s", shared.ErrInvalidStatus, original.Number, original.Status)
		}
		reversed, err := tx.IsReversed(ctx, original.ID)
		if err != nil {
			return err
		}
		if reversed {
			return fmt.Errorf("%w: entry %s already reversed", shared.ErrInvalidStatus, original.Number)
		}
		natures, err := lineNatures(ctx, tx, original.Lines)
		if err != nil {
			return err
		}
		originalID := original.ID
		inserted, err := tx.insert(ctx, Entry{
			EntryDate:   date,
			Memo:        defaultReversalMemo(input.Memo, original.Number),
			Operation:   OperationAdjustment,
			Reference:   original.Number,
			ReversalOf:  &originalID,
			BranchID:    original.BranchID,
			AuthorID:    input.AuthorID,
			Status:      StatusConfirmed,
			TotalDebit:  original.TotalCredit,
			TotalCredit: original.TotalDebit,
			Difference:  original.TotalCredit.Sub(original.TotalDebit),
			Lines:       reverseLines(original.Lines),
		})
		if err != nil {
			return err
		}
		if err := post(ctx, tx, inserted, natures); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return Entry{}, shared.WrapOp("journals.reverse", "", periods.FromDate(date).String(), branchID, err)
	}
	s.logger.Info("journal entry reversed", slog.Int64("original_id", input.EntryID), slog.String("number", reversal.Number))
	s.confirmed(reversal)
	return reversal, nil
}

func (s *Service) confirmed(entry Entry) {
	if s.observer != nil {
		s.observer.EntryConfirmed(string(entry.Operation), entry.IsAutomatic)
	}
}

// withPostingTx runs fn in one transaction, releases numbering locks after the
// commit and bumps the report cache on success.
func (s *Service) withPostingTx(ctx context.Context, fn func(context.Context, *postingTx) error) error {
	var scope *postingTx
	defer func() {
		if scope != nil {
			scope.release()
		}
	}()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		scope = &postingTx{TxRepository: tx, svc: s}
		return fn(ctx, scope)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump", slog.Any("error", err))
		}
	}
	return nil
}

type postingTx struct {
	TxRepository
	svc  *Service
	held []func()
}

// insert numbers the entry under the (date, branch) lock and stores it with its lines.
func (p *postingTx) insert(ctx context.Context, entry Entry) (Entry, error) {
	key := internalShared.NumberingLockKey(entry.EntryDate, entry.BranchID)
	p.held = append(p.held, p.svc.locks.Lock(key))
	if err := p.LockNumbering(ctx, key); err != nil {
		return Entry{}, err
	}
	scope := NumberPrefix(p.svc.cfg.Prefix, entry.EntryDate, entry.BranchID)
	last, err := p.LastNumber(ctx, scope)
	if err != nil {
		return Entry{}, err
	}
	if entry.Number, err = NextNumber(scope, last); err != nil {
		return Entry{}, err
	}
	lines := entry.Lines
	inserted, err := p.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if err := p.InsertLines(ctx, inserted.ID, lines); err != nil {
		return Entry{}, err
	}
	for i := range lines {
		lines[i].EntryID = inserted.ID
	}
	inserted.Lines = lines
	return inserted, nil
}

func (p *postingTx) release() {
	for i := len(p.held) - 1; i >= 0; i-- {
		p.held[i]()
	}
	p.held = nil
}

func post(ctx context.Context, tx TxRepository, entry Entry, natures map[int64]shared.Nature) error {
	store := tx.Ledger()
	period := periods.FromDate(entry.EntryDate)
	for _, line := range entry.Lines {
		if _, err := ledger.PostLine(ctx, store, ledger.PostingLine{
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Nature:      natures[line.AccountID],
			BranchID:    entry.BranchID,
			Period:      period,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}); err != nil {
			return err
		}
	}
	return nil
}

func lineNatures(ctx context.Context, tx TxRepository, lines []Line) (map[int64]shared.Nature, error) {
	natures := make(map[int64]shared.Nature, len(lines))
	for _, line := range lines {
		if _, ok := natures[line.AccountID]; ok {
			continue
		}
		acc, err := tx.AccountByID(ctx, line.AccountID)
		if err != nil {
			return nil, err
		}
		if !acc.AcceptsPostings() {
			return nil, fmt.Errorf("%w: account %s", shared.ErrAccountNotPostable, acc.Code)
		}
		natures[acc.ID] = acc.Nature
	}
	return natures, nil
}

func reverseLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for i, line := range lines {
		out = append(out, Line{
			AccountID:    line.AccountID,
			AccountCode:  line.AccountCode,
			LineOrder:    i + 1,
			Memo:         line.Memo,
			Debit:        line.Credit,
			Credit:       line.Debit,
			Counterparty: line.Counterparty,
			Currency:     line.Currency,
		})
	}
	return out
}
