package journals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// memRepo keeps committed state; memTx buffers writes until commit so a failed
// callback leaves nothing behind. Reads see committed rows, like READ COMMITTED.
type memRepo struct {
	mu       sync.Mutex
	accounts map[int64]accounts.Account
	sources  map[SourceKind]map[int64]SourceDocument
	entries  map[int64]Entry
	links    map[string]int64
	ledger   *ledger.MemoryStore
	nextID   int64
	commits  int

	updateErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: map[int64]accounts.Account{},
		sources:  map[SourceKind]map[int64]SourceDocument{SourceSale: {}, SourcePurchase: {}},
		entries:  map[int64]Entry{},
		links:    map[string]int64{},
		ledger:   ledger.NewMemoryStore(),
		nextID:   1,
	}
}

func (m *memRepo) addAccount(id int64, code string, nature shared.Nature, category accounts.Category) {
	m.accounts[id] = accounts.Account{
		ID: id, Code: code, Name: "Account " + code, Level: 2, Nature: nature, Category: category,
		IsPostable: true, Status: accounts.StatusActive,
	}
}

// seedRoleAccounts installs the six role accounts of the base chart.
func (m *memRepo) seedRoleAccounts() {
	m.addAccount(1, "101", shared.NatureDebit, accounts.CategoryAsset)
	m.addAccount(2, "701", shared.NatureCredit, accounts.CategoryIncome)
	m.addAccount(3, "401", shared.NatureCredit, accounts.CategoryLiability)
	m.addAccount(4, "601", shared.NatureDebit, accounts.CategoryExpense)
	m.addAccount(5, "167", shared.NatureDebit, accounts.CategoryAsset)
	m.addAccount(6, "421", shared.NatureCredit, accounts.CategoryLiability)
}

func (m *memRepo) addSale(id, branchID int64, subtotal, tax, total string) {
	m.sources[SourceSale][id] = SourceDocument{
		Kind: SourceSale, ID: id, BranchID: branchID, DocumentType: "01", Series: "F001", Number: fmt.Sprint(id),
		CounterpartyDoc: "20100070970", Subtotal: decimal.RequireFromString(subtotal),
		Tax: decimal.RequireFromString(tax), Total: decimal.RequireFromString(total), Currency: "PEN", Status: "CONFIRMED",
	}
}

func (m *memRepo) addPurchase(id, branchID int64, subtotal, tax, total, currency string) {
	m.sources[SourcePurchase][id] = SourceDocument{
		Kind: SourcePurchase, ID: id, BranchID: branchID, DocumentType: "01", Series: "F002", Number: fmt.Sprint(id),
		CounterpartyDoc: "20512345678", Subtotal: decimal.RequireFromString(subtotal),
		Tax: decimal.RequireFromString(tax), Total: decimal.RequireFromString(total), Currency: currency, Status: "CONFIRMED",
	}
}

func (m *memRepo) committedEntries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (m *memRepo) balance(accountID int64, period string, branchID int64) ledger.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Rows[ledger.Key{AccountID: accountID, Period: period, BranchID: branchID}]
}

// recompute folds the committed confirmed lines of one key the way the ledger
// integrity check does: everything before the period opens it.
func (m *memRepo) recompute(accountID int64, period string, branchID int64) ledger.Totals {
	var out ledger.Totals
	for _, e := range m.committedEntries() {
		if e.Status != StatusConfirmed || e.BranchID != branchID {
			continue
		}
		entryPeriod := periods.FromDate(e.EntryDate).String()
		if entryPeriod > period {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID != accountID {
				continue
			}
			if entryPeriod < period {
				out.OpeningDebit = out.OpeningDebit.Add(l.Debit)
				out.OpeningCredit = out.OpeningCredit.Add(l.Credit)
			} else {
				out.PeriodDebit = out.PeriodDebit.Add(l.Debit)
				out.PeriodCredit = out.PeriodCredit.Add(l.Credit)
			}
		}
	}
	out.ClosingDebit = out.OpeningDebit.Add(out.PeriodDebit)
	out.ClosingCredit = out.OpeningCredit.Add(out.PeriodCredit)
	return out
}

func (m *memRepo) GetEntry(_ context.Context, id int64) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", shared.ErrEntryNotFound, id)
	}
	return e, nil
}

func (m *memRepo) ListEntries(_ context.Context, filter ListFilter) ([]Entry, error) {
	var out []Entry
	for _, e := range m.committedEntries() {
		if filter.BranchID != nil && e.BranchID != *filter.BranchID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Operation != "" && e.Operation != filter.Operation {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memTx{repo: m, pending: map[int64]Entry{}, links: map[string]int64{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range tx.pending {
		for _, existing := range m.entries {
			if existing.Number == e.Number && existing.ID != e.ID {
				return fmt.Errorf("duplicate key value violates unique constraint journal_entries_number_key: %s", e.Number)
			}
		}
	}
	for ref := range tx.links {
		if _, ok := m.links[ref]; ok {
			return shared.ErrSourceConflict
		}
	}
	for id, e := range tx.pending {
		m.entries[id] = e
	}
	for ref, id := range tx.links {
		m.links[ref] = id
	}
	if tx.store != nil {
		m.ledger = tx.store
	}
	m.commits++
	return nil
}

type memTx struct {
	repo    *memRepo
	pending map[int64]Entry
	links   map[string]int64
	store   *ledger.MemoryStore
}

func (t *memTx) LockNumbering(context.Context, string) error { return nil }

func (t *memTx) LastNumber(_ context.Context, scope string) (string, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	var last string
	consider := func(e Entry) {
		if strings.HasPrefix(e.Number, scope+"-") && e.Number > last {
			last = e.Number
		}
	}
	for _, e := range t.repo.entries {
		consider(e)
	}
	for _, e := range t.pending {
		consider(e)
	}
	return last, nil
}

func (t *memTx) AccountByID(_ context.Context, id int64) (accounts.Account, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	acc, ok := t.repo.accounts[id]
	if !ok {
		return accounts.Account{}, fmt.Errorf("%w: %d", shared.ErrAccountNotFound, id)
	}
	return acc, nil
}

func (t *memTx) AccountByCode(_ context.Context, code string) (accounts.Account, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, acc := range t.repo.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
}

func (t *memTx) GetSource(_ context.Context, kind SourceKind, id int64) (SourceDocument, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	doc, ok := t.repo.sources[kind][id]
	if !ok {
		return SourceDocument{}, fmt.Errorf("%w: %s %d", shared.ErrSourceNotFound, kind, id)
	}
	return doc, nil
}

func (t *memTx) InsertEntry(_ context.Context, entry Entry) (Entry, error) {
	t.repo.mu.Lock()
	entry.ID = t.repo.nextID
	t.repo.nextID++
	t.repo.mu.Unlock()
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	entry.Lines = nil
	t.pending[entry.ID] = entry
	return entry, nil
}

func (t *memTx) InsertLines(_ context.Context, entryID int64, lines []Line) error {
	e, ok := t.pending[entryID]
	if !ok {
		return fmt.Errorf("%w: %d", shared.ErrEntryNotFound, entryID)
	}
	e.Lines = nil
	for _, l := range lines {
		l.EntryID = entryID
		e.Lines = append(e.Lines, l)
	}
	t.pending[entryID] = e
	return nil
}

func (t *memTx) LinkSource(_ context.Context, kind SourceKind, ref uuid.UUID, entryID int64) error {
	key := string(kind) + "/" + ref.String()
	t.repo.mu.Lock()
	_, taken := t.repo.links[key]
	t.repo.mu.Unlock()
	if _, pending := t.links[key]; taken || pending {
		return shared.ErrSourceConflict
	}
	t.links[key] = entryID
	return nil
}

func (t *memTx) GetEntryForUpdate(_ context.Context, id int64) (Entry, error) {
	if e, ok := t.pending[id]; ok {
		return e, nil
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	e, ok := t.repo.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", shared.ErrEntryNotFound, id)
	}
	return e, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if t.repo.updateErr != nil {
		return t.repo.updateErr
	}
	e, err := t.GetEntryForUpdate(ctx, id)
	if err != nil {
		return err
	}
	e.Status = status
	t.pending[id] = e
	return nil
}

func (t *memTx) IsReversed(_ context.Context, id int64) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, e := range t.repo.entries {
		if e.ReversalOf != nil && *e.ReversalOf == id {
			return true, nil
		}
	}
	for _, e := range t.pending {
		if e.ReversalOf != nil && *e.ReversalOf == id {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Ledger() ledger.Store {
	if t.store == nil {
		t.repo.mu.Lock()
		t.store = t.repo.ledger.Clone()
		t.repo.mu.Unlock()
	}
	return t.store
}
