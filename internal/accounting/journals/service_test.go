package journals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/retail-ledger/testing"
)

var fixedNow = time.Date(2024, 10, 19, 15, 30, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type bumpCounter struct {
	mu    sync.Mutex
	bumps int
}

func (b *bumpCounter) Bump(context.Context) error {
	b.mu.Lock()
	b.bumps++
	b.mu.Unlock()
	return nil
}

type observed struct {
	mu    sync.Mutex
	calls []string
}

func (o *observed) EntryConfirmed(operation string, automatic bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if automatic {
		operation += "/auto"
	}
	o.calls = append(o.calls, operation)
}

func newTestService(repo *memRepo) (*Service, *bumpCounter) {
	cache := &bumpCounter{}
	svc := NewService(repo, mappings.Static{}, cache, Config{Prefix: "JE", BaseCurrency: "PEN", Location: time.UTC}, nil)
	svc.WithNow(func() time.Time { return fixedNow })
	return svc, cache
}

func TestGenerateSaleEntryWithTax(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(10, 1, "100.00", "18.00", "118.00")
	svc, cache := newTestService(repo)
	obs := &observed{}
	svc.WithObserver(obs)

	entry, err := svc.GenerateSaleEntry(context.Background(), 10, 7)
	require.NoError(t, err)

	assert.Equal(t, "JE20241019B1-000001", entry.Number)
	assert.Equal(t, StatusConfirmed, entry.Status)
	assert.Equal(t, OperationSale, entry.Operation)
	assert.True(t, entry.IsAutomatic)
	assert.Equal(t, "F001-10", entry.Reference)
	assert.Equal(t, int64(7), entry.AuthorID)
	require.NotNil(t, entry.SaleID)
	assert.Equal(t, int64(10), *entry.SaleID)
	assert.True(t, entry.TotalDebit.Equal(dec("118")))
	assert.True(t, entry.TotalCredit.Equal(dec("118")))
	assert.True(t, entry.Difference.IsZero())

	require.Len(t, entry.Lines, 3)
	assert.Equal(t, "101", entry.Lines[0].AccountCode)
	assert.True(t, entry.Lines[0].Debit.Equal(dec("118")))
	assert.True(t, entry.Lines[0].Credit.IsZero())
	assert.Equal(t, "701", entry.Lines[1].AccountCode)
	assert.True(t, entry.Lines[1].Credit.Equal(dec("100")))
	assert.Equal(t, "401", entry.Lines[2].AccountCode)
	assert.True(t, entry.Lines[2].Credit.Equal(dec("18")))
	for i, line := range entry.Lines {
		assert.Equal(t, i+1, line.LineOrder)
		assert.Equal(t, "PEN", line.Currency)
		assert.Equal(t, "Sale F001-10", line.Memo)
	}

	cash := repo.balance(1, "2024-10", 1)
	assert.True(t, cash.DebtorBalance.Equal(dec("118")))
	revenue := repo.balance(2, "2024-10", 1)
	assert.True(t, revenue.CreditorBalance.Equal(dec("100")))
	tax := repo.balance(3, "2024-10", 1)
	assert.True(t, tax.CreditorBalance.Equal(dec("18")))
	assert.True(t, tax.RollsForward())

	assert.Equal(t, 1, cache.bumps)
	assert.Equal(t, []string{"SALE/auto"}, obs.calls)
}

func TestGenerateSaleEntryWithoutTaxHasTwoLines(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(11, 1, "50.00", "0", "50.00")
	svc, _ := newTestService(repo)

	entry, err := svc.GenerateSaleEntry(context.Background(), 11, 7)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	for _, line := range entry.Lines {
		assert.NotEqual(t, "401", line.AccountCode)
	}
	assert.True(t, entry.TotalDebit.Equal(dec("50")))
	assert.True(t, entry.TotalCredit.Equal(dec("50")))
}

func TestGenerateSaleEntryTwiceIsRejected(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(12, 1, "100.00", "18.00", "118.00")
	svc, _ := newTestService(repo)

	_, err := svc.GenerateSaleEntry(context.Background(), 12, 7)
	require.NoError(t, err)
	_, err = svc.GenerateSaleEntry(context.Background(), 12, 7)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
	assert.Equal(t, 409, shared.HTTPStatus(err))

	require.Len(t, repo.committedEntries(), 1)
	assert.True(t, repo.balance(1, "2024-10", 1).PeriodDebit.Equal(dec("118")))
}

func TestConcurrentSalesGetSequentialNumbers(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	const sales = 8
	for i := int64(1); i <= sales; i++ {
		repo.addSale(i, 1, "10.00", "1.80", "11.80")
	}
	svc, _ := newTestService(repo)

	var wg sync.WaitGroup
	errs := make(chan error, sales)
	for i := int64(1); i <= sales; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := svc.GenerateSaleEntry(context.Background(), id, 1); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries := repo.committedEntries()
	require.Len(t, entries, sales)
	for i, e := range entries {
		assert.Equal(t, FormatNumber("JE20241019B1", i+1), e.Number)
	}
	cash := repo.balance(1, "2024-10", 1)
	assert.True(t, cash.PeriodDebit.Equal(dec("94.40")))
}

func TestNumbersAreScopedPerBranch(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(1, 1, "10", "0", "10")
	repo.addSale(2, 2, "10", "0", "10")
	repo.addSale(3, 1, "10", "0", "10")
	svc, _ := newTestService(repo)

	var numbers []string
	for _, id := range []int64{1, 2, 3} {
		entry, err := svc.GenerateSaleEntry(context.Background(), id, 1)
		require.NoError(t, err)
		numbers = append(numbers, entry.Number)
	}
	assert.Equal(t, []string{"JE20241019B1-000001", "JE20241019B2-000001", "JE20241019B1-000002"}, numbers)
}

func TestGenerateSaleEntryMissingAccountLeavesNothing(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	delete(repo.accounts, 3)
	repo.addSale(13, 1, "100.00", "0", "100.00")
	svc, cache := newTestService(repo)

	_, err := svc.GenerateSaleEntry(context.Background(), 13, 7)
	require.ErrorIs(t, err, shared.ErrMissingAccount)
	assert.Contains(t, err.Error(), "401")

	assert.Empty(t, repo.committedEntries())
	assert.Empty(t, repo.ledger.Rows)
	assert.Empty(t, repo.links)
	assert.Equal(t, 0, cache.bumps)
}

func TestPostingFailureRollsBackEntry(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(14, 1, "100.00", "18.00", "118.00")
	repo.ledger.Periods["2024-10/1"] = "CLOSED"
	svc, _ := newTestService(repo)

	_, err := svc.GenerateSaleEntry(context.Background(), 14, 7)
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
	assert.Empty(t, repo.committedEntries())
	assert.Empty(t, repo.links)

	var opErr *shared.OpError
	if errors.As(err, &opErr) {
		t.Fatalf("domain errors are returned bare, got %v", opErr)
	}
}

func TestGenerateUnknownSale(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	svc, _ := newTestService(repo)

	_, err := svc.GenerateSaleEntry(context.Background(), 99, 7)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 404, shared.HTTPStatus(err))
}

func TestGeneratePurchaseEntry(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addPurchase(20, 1, "200.00", "36.00", "236.00", "USD")
	svc, _ := newTestService(repo)

	entry, err := svc.GeneratePurchaseEntry(context.Background(), 20, 7)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, OperationPurchase, entry.Operation)
	assert.Equal(t, "601", entry.Lines[0].AccountCode)
	assert.True(t, entry.Lines[0].Debit.Equal(dec("200")))
	assert.Equal(t, "167", entry.Lines[1].AccountCode)
	assert.True(t, entry.Lines[1].Debit.Equal(dec("36")))
	assert.Equal(t, "421", entry.Lines[2].AccountCode)
	assert.True(t, entry.Lines[2].Credit.Equal(dec("236")))
	for _, line := range entry.Lines {
		assert.Equal(t, "PEN", line.Currency)
	}
	payable := repo.balance(6, "2024-10", 1)
	assert.True(t, payable.CreditorBalance.Equal(dec("236")))
}

func TestGeneratePurchaseRequiresTaxAccountEvenWithoutTax(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	delete(repo.accounts, 5)
	repo.addPurchase(21, 1, "200.00", "0", "200.00", "PEN")
	svc, _ := newTestService(repo)

	_, err := svc.GeneratePurchaseEntry(context.Background(), 21, 7)
	require.ErrorIs(t, err, shared.ErrMissingAccount)
	assert.Empty(t, repo.committedEntries())
}

func TestGenerateRejectsInconsistentDocument(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(15, 1, "100.00", "18.00", "120.00")
	svc, _ := newTestService(repo)

	_, err := svc.GenerateSaleEntry(context.Background(), 15, 7)
	require.ErrorIs(t, err, shared.ErrImbalancedEntry)
	assert.Empty(t, repo.committedEntries())
}

func manualInput(confirm bool, debit, credit string) ManualEntryInput {
	return ManualEntryInput{
		Memo:      "Cash count adjustment",
		Operation: OperationCash,
		BranchID:  1,
		AuthorID:  3,
		Confirm:   confirm,
		Lines: []ManualLineInput{
			{AccountID: 1, Debit: dec(debit), Credit: decimal.Zero},
			{AccountID: 2, Debit: decimal.Zero, Credit: dec(credit)},
		},
	}
}

func TestCreateManualEntryBalancedConfirms(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	svc, _ := newTestService(repo)

	result, err := svc.CreateManualEntry(context.Background(), manualInput(true, "25.50", "25.50"))
	require.NoError(t, err)
	assert.True(t, result.Balanced)
	assert.Equal(t, StatusConfirmed, result.Entry.Status)
	assert.False(t, result.Entry.IsAutomatic)
	assert.True(t, repo.balance(1, "2024-10", 1).DebtorBalance.Equal(dec("25.50")))
}

func TestCreateManualEntryImbalancedStaysDraft(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	svc, _ := newTestService(repo)

	result, err := svc.CreateManualEntry(context.Background(), manualInput(true, "30.00", "25.50"))
	require.NoError(t, err)
	assert.False(t, result.Balanced)
	assert.Equal(t, StatusDraft, result.Entry.Status)
	assert.True(t, result.Difference.Equal(dec("4.50")))
	assert.Empty(t, repo.ledger.Rows)

	_, err = svc.ConfirmEntry(context.Background(), result.Entry.ID, 3)
	require.ErrorIs(t, err, shared.ErrImbalancedEntry)
}

func TestConfirmDraftPostsLines(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	svc, _ := newTestService(repo)

	result, err := svc.CreateManualEntry(context.Background(), manualInput(false, "12.00", "12.00"))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, result.Entry.Status)
	assert.Empty(t, repo.ledger.Rows)

	confirmed, err := svc.ConfirmEntry(context.Background(), result.Entry.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.True(t, repo.balance(2, "2024-10", 1).CreditorBalance.Equal(dec("12")))

	_, err = svc.ConfirmEntry(context.Background(), result.Entry.ID, 3)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestBackdatedEntriesRollLaterPeriodsForward(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(10, 1, "100.00", "18.00", "118.00")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GenerateSaleEntry(ctx, 10, 7)
	require.NoError(t, err)

	september := manualInput(true, "50.00", "50.00")
	september.EntryDate = "2024-09-15"
	_, err = svc.CreateManualEntry(ctx, september)
	require.NoError(t, err)

	august := manualInput(false, "12.00", "12.00")
	august.EntryDate = "2024-08-20"
	draft, err := svc.CreateManualEntry(ctx, august)
	require.NoError(t, err)
	_, err = svc.ConfirmEntry(ctx, draft.Entry.ID, 3)
	require.NoError(t, err)

	for _, accountID := range []int64{1, 2} {
		for _, period := range []string{"2024-08", "2024-09", "2024-10"} {
			stored := repo.balance(accountID, period, 1)
			want := repo.recompute(accountID, period, 1)
			assert.True(t, stored.OpeningDebit.Equal(want.OpeningDebit), "account %d %s opening debit %s want %s", accountID, period, stored.OpeningDebit, want.OpeningDebit)
			assert.True(t, stored.OpeningCredit.Equal(want.OpeningCredit), "account %d %s opening credit", accountID, period)
			assert.True(t, stored.ClosingDebit.Equal(want.ClosingDebit), "account %d %s closing debit", accountID, period)
			assert.True(t, stored.ClosingCredit.Equal(want.ClosingCredit), "account %d %s closing credit", accountID, period)
		}
	}

	cash := repo.balance(1, "2024-10", 1)
	assert.True(t, cash.OpeningDebit.Equal(dec("62")))
	assert.True(t, cash.ClosingDebit.Equal(dec("180")))
	assert.True(t, cash.DebtorBalance.Equal(dec("180")))
	revenue := repo.balance(2, "2024-10", 1)
	assert.True(t, revenue.CreditorBalance.Equal(dec("162")))
}

func TestConfirmFailureReportsEntryContext(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	input := manualInput(false, "12.00", "12.00")
	input.BranchID = 4
	input.EntryDate = "2024-09-03"
	draft, err := svc.CreateManualEntry(ctx, input)
	require.NoError(t, err)
	repo.updateErr = errors.New("conn closed")

	_, err = svc.ConfirmEntry(ctx, draft.Entry.ID, 3)
	require.Error(t, err)
	var opErr *shared.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, int64(4), opErr.BranchID)
	assert.Equal(t, "2024-09", opErr.Period)
}

func TestCreateManualEntryValidation(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.accounts[7] = repo.accounts[1]
	summary := repo.accounts[7]
	summary.ID, summary.Code, summary.IsPostable = 7, "10", false
	repo.accounts[7] = summary
	svc, _ := newTestService(repo)
	ctx := context.Background()

	in := manualInput(true, "10", "10")
	in.Lines = in.Lines[:1]
	_, err := svc.CreateManualEntry(ctx, in)
	assert.ErrorIs(t, err, shared.ErrTooFewLines)

	in = manualInput(true, "10", "10")
	in.Lines[0].Credit = dec("10")
	_, err = svc.CreateManualEntry(ctx, in)
	assert.ErrorIs(t, err, shared.ErrInvalidLine)

	in = manualInput(true, "-10", "10")
	_, err = svc.CreateManualEntry(ctx, in)
	assert.ErrorIs(t, err, shared.ErrInvalidLine)

	in = manualInput(true, "10", "10")
	in.Lines[0].AccountID = 7
	_, err = svc.CreateManualEntry(ctx, in)
	assert.ErrorIs(t, err, shared.ErrAccountNotPostable)

	in = manualInput(true, "10", "10")
	in.Lines[1].AccountID = 404
	_, err = svc.CreateManualEntry(ctx, in)
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)

	in = manualInput(true, "10", "10")
	in.Operation = "GIFT"
	_, err = svc.CreateManualEntry(ctx, in)
	assert.ErrorIs(t, err, shared.ErrInvalidLine)

	assert.Empty(t, repo.committedEntries())
}

func TestReverseEntryMirrorsOriginal(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(30, 1, "100.00", "18.00", "118.00")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	original, err := svc.GenerateSaleEntry(ctx, 30, 7)
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(ctx, ReverseInput{EntryID: original.ID, AuthorID: 7})
	require.NoError(t, err)
	assert.Equal(t, "JE20241019B1-000002", reversal.Number)
	assert.Equal(t, OperationAdjustment, reversal.Operation)
	assert.Equal(t, StatusConfirmed, reversal.Status)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, original.ID, *reversal.ReversalOf)
	assert.Equal(t, "Reversal of "+original.Number, reversal.Memo)
	require.Len(t, reversal.Lines, 3)
	assert.True(t, reversal.Lines[0].Credit.Equal(dec("118")))
	assert.True(t, reversal.Lines[1].Debit.Equal(dec("100")))

	cash := repo.balance(1, "2024-10", 1)
	assert.True(t, cash.DebtorBalance.IsZero())
	assert.True(t, cash.CreditorBalance.IsZero())
	assert.True(t, cash.PeriodDebit.Equal(dec("118")))
	assert.True(t, cash.PeriodCredit.Equal(dec("118")))

	stored, err := repo.GetEntry(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)

	_, err = svc.ReverseEntry(ctx, ReverseInput{EntryID: original.ID, AuthorID: 7})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReverseDraftIsRejected(t *testing.T) {
	repo := newMemRepo()
	repo.seedRoleAccounts()
	svc, _ := newTestService(repo)

	result, err := svc.CreateManualEntry(context.Background(), manualInput(false, "5", "5"))
	require.NoError(t, err)
	_, err = svc.ReverseEntry(context.Background(), ReverseInput{EntryID: result.Entry.ID})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestListEntriesRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(newMemRepo())
	from := fixedNow
	to := fixedNow.AddDate(0, 0, -1)
	_, err := svc.ListEntries(context.Background(), ListFilter{DateFrom: &from, DateTo: &to})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
}

func TestTodayFollowsConfiguredZone(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	repo := newMemRepo()
	repo.seedRoleAccounts()
	repo.addSale(40, 1, "10", "0", "10")
	svc := NewService(repo, nil, nil, Config{BaseCurrency: "PEN", Location: lima}, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 11, 1, 3, 0, 0, 0, time.UTC) })

	entry, err := svc.GenerateSaleEntry(context.Background(), 40, 1)
	require.NoError(t, err)
	assert.Equal(t, "JE20241031B1-000001", entry.Number)
	assert.True(t, repo.balance(1, "2024-10", 1).PeriodDebit.Equal(dec("10")))
}
