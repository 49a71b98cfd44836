package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Store is the transactional write side of the accumulator. Implementations must
// hold the row lock taken by AddMovement until the surrounding transaction ends.
type Store interface {
	PeriodStatus(ctx context.Context, period string, branchID int64) (periods.PeriodStatus, error)
	// AddMovement find-or-creates the row for key and adds the amounts to its
	// period and closing totals in a single statement.
	AddMovement(ctx context.Context, key Key, debit, credit decimal.Decimal) (Balance, error)
	SetSplit(ctx context.Context, key Key, debtor, creditor decimal.Decimal) error
	// RollForward adds the amounts to the opening and closing totals of every
	// row of the same account and branch in a later period, returning those rows.
	RollForward(ctx context.Context, key Key, debit, credit decimal.Decimal) ([]Balance, error)
}

// PostLine folds one journal line into its (account, period, branch) row.
func PostLine(ctx context.Context, store Store, line PostingLine) (Balance, error) {
	key := line.key()
	wrap := func(err error) error {
		return shared.WrapOp("ledger.post", line.AccountCode, key.Period, key.BranchID, err)
	}
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return Balance{}, fmt.Errorf("%w: negative amount for account %s", shared.ErrInvalidLine, line.AccountCode)
	}
	status, err := store.PeriodStatus(ctx, key.Period, key.BranchID)
	if err != nil {
		return Balance{}, wrap(err)
	}
	if status == periods.PeriodStatusClosed {
		return Balance{}, fmt.Errorf("%w: %s branch %d", shared.ErrPeriodClosed, key.Period, key.BranchID)
	}
	debit, credit := shared.Round2(line.Debit), shared.Round2(line.Credit)
	balance, err := store.AddMovement(ctx, key, debit, credit)
	if err != nil {
		return Balance{}, wrap(err)
	}
	balance.DebtorBalance, balance.CreditorBalance = shared.SplitBalance(line.Nature, balance.ClosingDebit, balance.ClosingCredit)
	if err := store.SetSplit(ctx, key, balance.DebtorBalance, balance.CreditorBalance); err != nil {
		return Balance{}, wrap(err)
	}
	// A back-dated line shifts the opening of every later period already posted.
	later, err := store.RollForward(ctx, key, debit, credit)
	if err != nil {
		return Balance{}, wrap(err)
	}
	for _, row := range later {
		debtor, creditor := shared.SplitBalance(line.Nature, row.ClosingDebit, row.ClosingCredit)
		if err := store.SetSplit(ctx, row.Key, debtor, creditor); err != nil {
			return Balance{}, shared.WrapOp("ledger.roll_forward", line.AccountCode, row.Period, row.BranchID, err)
		}
	}
	balance.AccountCode = line.AccountCode
	return balance, nil
}

// MemoryStore is a map backed Store for tests and dry runs. It is not safe for
// concurrent use; callers serialise access the way a transaction would.
type MemoryStore struct {
	Rows    map[Key]Balance
	Periods map[string]periods.PeriodStatus
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Rows: map[Key]Balance{}, Periods: map[string]periods.PeriodStatus{}}
}

func periodKey(period string, branchID int64) string {
	return fmt.Sprintf("%s/%d", period, branchID)
}

func (m *MemoryStore) PeriodStatus(_ context.Context, period string, branchID int64) (periods.PeriodStatus, error) {
	if status, ok := m.Periods[periodKey(period, branchID)]; ok {
		return status, nil
	}
	return periods.PeriodStatusOpen, nil
}

func (m *MemoryStore) AddMovement(_ context.Context, key Key, debit, credit decimal.Decimal) (Balance, error) {
	row, ok := m.Rows[key]
	if !ok {
		row = Balance{Key: key, Status: periods.PeriodStatusOpen}
		var latest string
		for k, prev := range m.Rows {
			if k.AccountID == key.AccountID && k.BranchID == key.BranchID && k.Period < key.Period && k.Period > latest {
				latest = k.Period
				row.OpeningDebit = prev.ClosingDebit
				row.OpeningCredit = prev.ClosingCredit
			}
		}
	}
	row.PeriodDebit = row.PeriodDebit.Add(debit)
	row.PeriodCredit = row.PeriodCredit.Add(credit)
	row.ClosingDebit = row.OpeningDebit.Add(row.PeriodDebit)
	row.ClosingCredit = row.OpeningCredit.Add(row.PeriodCredit)
	m.Rows[key] = row
	return row, nil
}

func (m *MemoryStore) RollForward(_ context.Context, key Key, debit, credit decimal.Decimal) ([]Balance, error) {
	var out []Balance
	for k, row := range m.Rows {
		if k.AccountID != key.AccountID || k.BranchID != key.BranchID || k.Period <= key.Period {
			continue
		}
		row.OpeningDebit = row.OpeningDebit.Add(debit)
		row.OpeningCredit = row.OpeningCredit.Add(credit)
		row.ClosingDebit = row.ClosingDebit.Add(debit)
		row.ClosingCredit = row.ClosingCredit.Add(credit)
		m.Rows[k] = row
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (m *MemoryStore) SetSplit(_ context.Context, key Key, debtor, creditor decimal.Decimal) error {
	row, ok := m.Rows[key]
	if !ok {
		return fmt.Errorf("ledger: no row for %+v", key)
	}
	row.DebtorBalance = debtor
	row.CreditorBalance = creditor
	m.Rows[key] = row
	return nil
}

// Clone returns a deep copy, used to emulate rollback.
func (m *MemoryStore) Clone() *MemoryStore {
	out := NewMemoryStore()
	for k, v := range m.Rows {
		out.Rows[k] = v
	}
	for k, v := range m.Periods {
		out.Periods[k] = v
	}
	return out
}
