package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(period string, nature shared.Nature, debit, credit string) PostingLine {
	p, err := periods.Parse(period)
	if err != nil {
		panic(err)
	}
	return PostingLine{AccountID: 7, AccountCode: "101", Nature: nature, BranchID: 1, Period: p, Debit: dec(debit), Credit: dec(credit)}
}

func TestPostLineAccumulatesWithinPeriod(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := PostLine(ctx, store, line("2024-10", shared.NatureDebit, "118.00", "0"))
	require.NoError(t, err)
	b, err := PostLine(ctx, store, line("2024-10", shared.NatureDebit, "0", "18.00"))
	require.NoError(t, err)

	require.True(t, b.PeriodDebit.Equal(dec("118")))
	require.True(t, b.PeriodCredit.Equal(dec("18")))
	require.True(t, b.ClosingDebit.Equal(dec("118")))
	require.True(t, b.DebtorBalance.Equal(dec("100")))
	require.True(t, b.CreditorBalance.IsZero())
	require.True(t, b.RollsForward())
	require.Equal(t, "101", b.AccountCode)

	stored := store.Rows[Key{AccountID: 7, Period: "2024-10", BranchID: 1}]
	require.True(t, stored.DebtorBalance.Equal(dec("100")))
}

func TestPostLineCarriesOpeningFromLatestPeriod(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := PostLine(ctx, store, line("2024-08", shared.NatureDebit, "50", "0"))
	require.NoError(t, err)
	_, err = PostLine(ctx, store, line("2024-09", shared.NatureDebit, "25", "10"))
	require.NoError(t, err)

	b, err := PostLine(ctx, store, line("2024-11", shared.NatureDebit, "5", "0"))
	require.NoError(t, err)
	require.True(t, b.OpeningDebit.Equal(dec("75")))
	require.True(t, b.OpeningCredit.Equal(dec("10")))
	require.True(t, b.ClosingDebit.Equal(dec("80")))
	require.True(t, b.DebtorBalance.Equal(dec("70")))
}

func TestPostLineRollsBackdatedMovementForward(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := PostLine(ctx, store, line("2024-10", shared.NatureDebit, "118", "0"))
	require.NoError(t, err)
	_, err = PostLine(ctx, store, line("2024-11", shared.NatureDebit, "0", "20"))
	require.NoError(t, err)

	sept, err := PostLine(ctx, store, line("2024-09", shared.NatureDebit, "50", "0"))
	require.NoError(t, err)
	require.True(t, sept.OpeningDebit.IsZero())
	require.True(t, sept.ClosingDebit.Equal(dec("50")))

	oct := store.Rows[Key{AccountID: 7, Period: "2024-10", BranchID: 1}]
	require.True(t, oct.OpeningDebit.Equal(dec("50")))
	require.True(t, oct.PeriodDebit.Equal(dec("118")))
	require.True(t, oct.ClosingDebit.Equal(dec("168")))
	require.True(t, oct.DebtorBalance.Equal(dec("168")))

	nov := store.Rows[Key{AccountID: 7, Period: "2024-11", BranchID: 1}]
	require.True(t, nov.OpeningDebit.Equal(dec("168")))
	require.True(t, nov.ClosingCredit.Equal(dec("20")))
	require.True(t, nov.DebtorBalance.Equal(dec("148")))

	other := store.Rows[Key{AccountID: 7, Period: "2024-09", BranchID: 1}]
	require.True(t, other.ClosingDebit.Equal(dec("50")), "rows at or before the posted period are untouched")
}

func TestPostLineRollForwardLeavesOtherBranches(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	other := line("2024-10", shared.NatureDebit, "40", "0")
	other.BranchID = 2
	_, err := PostLine(ctx, store, other)
	require.NoError(t, err)
	_, err = PostLine(ctx, store, line("2024-09", shared.NatureDebit, "50", "0"))
	require.NoError(t, err)

	b := store.Rows[Key{AccountID: 7, Period: "2024-10", BranchID: 2}]
	require.True(t, b.OpeningDebit.IsZero())
	require.True(t, b.ClosingDebit.Equal(dec("40")))
}

func TestPostLineSplitsByNature(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	b, err := PostLine(ctx, store, line("2024-10", shared.NatureCredit, "30", "100"))
	require.NoError(t, err)
	require.True(t, b.CreditorBalance.Equal(dec("70")))
	require.True(t, b.DebtorBalance.IsZero())

	b, err = PostLine(ctx, store, line("2024-10", shared.NatureCredit, "90", "0"))
	require.NoError(t, err)
	require.True(t, b.DebtorBalance.Equal(dec("20")))
	require.True(t, b.CreditorBalance.IsZero())
}

func TestPostLineRejectsClosedPeriod(t *testing.T) {
	store := NewMemoryStore()
	store.Periods[periodKey("2024-10", 1)] = periods.PeriodStatusClosed

	_, err := PostLine(context.Background(), store, line("2024-10", shared.NatureDebit, "10", "0"))
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
	require.Empty(t, store.Rows)
}

func TestPostLineRejectsNegativeAmounts(t *testing.T) {
	store := NewMemoryStore()
	_, err := PostLine(context.Background(), store, line("2024-10", shared.NatureDebit, "-1", "0"))
	require.ErrorIs(t, err, shared.ErrInvalidLine)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) SetSplit(context.Context, Key, decimal.Decimal, decimal.Decimal) error {
	return errors.New("connection reset")
}

func TestPostLineWrapsStoreFailures(t *testing.T) {
	store := failingStore{NewMemoryStore()}
	_, err := PostLine(context.Background(), store, line("2024-10", shared.NatureDebit, "10", "0"))
	require.Error(t, err)

	var opErr *shared.OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "ledger.post", opErr.Op)
	require.Equal(t, "101", opErr.AccountCode)
	require.Equal(t, "2024-10", opErr.Period)
}

func TestMemoryStoreCloneIsIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := PostLine(ctx, store, line("2024-10", shared.NatureDebit, "10", "0"))
	require.NoError(t, err)

	snapshot := store.Clone()
	_, err = PostLine(ctx, store, line("2024-10", shared.NatureDebit, "10", "0"))
	require.NoError(t, err)

	key := Key{AccountID: 7, Period: "2024-10", BranchID: 1}
	require.True(t, snapshot.Rows[key].PeriodDebit.Equal(dec("10")))
	require.True(t, store.Rows[key].PeriodDebit.Equal(dec("20")))
}
