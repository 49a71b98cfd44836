package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/cache"
	_ "github.com/odyssey-erp/retail-ledger/testing"
)

type fakeRepo struct {
	data  Dataset
	err   error
	calls atomic.Int32
}

func (f *fakeRepo) Load(context.Context, time.Time, time.Time, *int64) (Dataset, error) {
	f.calls.Add(1)
	return f.data, f.err
}

type gatedRepo struct {
	data    Dataset
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) Load(ctx context.Context, _, _ time.Time, _ *int64) (Dataset, error) {
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	return g.data, nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func date(v string) *time.Time {
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		panic(err)
	}
	return &t
}

func ptr[T any](v T) *T { return &v }

func node(id int64, code, name string, level int, nature shared.Nature, category accounts.Category, parent *int64) ChartNode {
	return ChartNode{ID: id, Code: code, Name: name, Level: level, Nature: nature, Category: category, ParentID: parent}
}

// retailChart has five level-1 groups with one postable child each.
func retailChart() []ChartNode {
	return []ChartNode{
		node(1, "10", "Cash and equivalents", 1, shared.NatureDebit, accounts.CategoryAsset, nil),
		node(2, "101", "Cash", 2, shared.NatureDebit, accounts.CategoryAsset, ptr[int64](1)),
		node(3, "40", "Taxes payable", 1, shared.NatureCredit, accounts.CategoryLiability, nil),
		node(4, "401", "Tax payable", 2, shared.NatureCredit, accounts.CategoryLiability, ptr[int64](3)),
		node(5, "70", "Sales", 1, shared.NatureCredit, accounts.CategoryIncome, nil),
		node(6, "701", "Sales revenue", 2, shared.NatureCredit, accounts.CategoryIncome, ptr[int64](5)),
		node(7, "60", "Purchases", 1, shared.NatureDebit, accounts.CategoryExpense, nil),
		node(8, "601", "Merchandise", 2, shared.NatureDebit, accounts.CategoryExpense, ptr[int64](7)),
		node(9, "42", "Trade payables", 1, shared.NatureCredit, accounts.CategoryLiability, nil),
		node(10, "421", "Accounts payable", 2, shared.NatureCredit, accounts.CategoryLiability, ptr[int64](9)),
	}
}

// saleDataset is one sale of 100 + 18 tax.
func saleDataset() Dataset {
	return Dataset{
		Chart: retailChart(),
		Movements: []AccountMovement{
			{AccountID: 6, Debit: decimal.Zero, Credit: dec("100.00")},
			{AccountID: 2, Debit: dec("118.00"), Credit: decimal.Zero},
			{AccountID: 4, Debit: decimal.Zero, Credit: dec("18.00")},
		},
	}
}

func october() Filter {
	return Filter{DateFrom: date("2024-10-01"), DateTo: date("2024-10-31")}
}

func TestBuildTrialBalanceSplitsByNature(t *testing.T) {
	tb := BuildTrialBalance(saleDataset(), nil)

	require.Len(t, tb.Rows, 3)
	assert.Equal(t, []string{"101", "401", "701"}, []string{tb.Rows[0].Code, tb.Rows[1].Code, tb.Rows[2].Code})
	assert.True(t, tb.Rows[0].Debtor.Equal(dec("118")))
	assert.True(t, tb.Rows[0].Creditor.IsZero())
	assert.True(t, tb.Rows[1].Creditor.Equal(dec("18")))
	assert.True(t, tb.Rows[2].Creditor.Equal(dec("100")))

	assert.True(t, tb.TotalDebit.Equal(dec("118")))
	assert.True(t, tb.TotalCredit.Equal(dec("118")))
	assert.True(t, tb.TotalDebtor.Equal(dec("118")))
	assert.True(t, tb.TotalCreditor.Equal(dec("118")))
	assert.True(t, tb.Balanced)
}

func TestBuildTrialBalanceOmitsZeroMovement(t *testing.T) {
	data := saleDataset()
	data.Movements = append(data.Movements, AccountMovement{AccountID: 8, Debit: decimal.Zero, Credit: decimal.Zero})
	tb := BuildTrialBalance(data, nil)
	for _, row := range tb.Rows {
		assert.NotEqual(t, "601", row.Code)
	}
}

func TestBuildTrialBalanceFlagsImbalance(t *testing.T) {
	data := saleDataset()
	data.Movements[0].Credit = dec("99.00")
	tb := BuildTrialBalance(data, nil)
	assert.False(t, tb.Balanced)
}

func TestBuildTrialBalanceCreditorSideOfDebitAccount(t *testing.T) {
	data := Dataset{
		Chart: retailChart(),
		Movements: []AccountMovement{
			{AccountID: 2, Debit: dec("10"), Credit: dec("25")},
			{AccountID: 6, Debit: dec("15"), Credit: decimal.Zero},
		},
	}
	tb := BuildTrialBalance(data, nil)
	require.Len(t, tb.Rows, 2)
	assert.True(t, tb.Rows[0].Creditor.Equal(dec("15")), "cash overdrawn shows as creditor")
	assert.True(t, tb.Rows[1].Debtor.Equal(dec("15")), "revenue with debit excess shows as debtor")
	assert.True(t, tb.Balanced)
}

func TestBuildTrialBalanceRollsUpToLevel(t *testing.T) {
	tb := BuildTrialBalance(saleDataset(), ptr(1))

	require.Len(t, tb.Rows, 3)
	assert.Equal(t, "10", tb.Rows[0].Code)
	assert.Equal(t, 1, tb.Rows[0].Level)
	assert.True(t, tb.Rows[0].Debit.Equal(dec("118")))
	assert.Equal(t, "40", tb.Rows[1].Code)
	assert.Equal(t, "70", tb.Rows[2].Code)
	assert.True(t, tb.Balanced)
}

func TestAncestorAtStopsOnMissingParent(t *testing.T) {
	byID := map[int64]ChartNode{2: node(2, "101", "Cash", 2, shared.NatureDebit, accounts.CategoryAsset, ptr[int64](99))}
	assert.Equal(t, int64(2), ancestorAt(byID, 2, 1))
}

func TestStatementsFromTrialBalance(t *testing.T) {
	data := saleDataset()
	data.Movements = append(data.Movements,
		AccountMovement{AccountID: 8, Debit: dec("50.00"), Credit: decimal.Zero},
		AccountMovement{AccountID: 10, Debit: decimal.Zero, Credit: dec("50.00")},
	)
	tb := BuildTrialBalance(data, nil)
	require.True(t, tb.Balanced)

	pl := BuildIncomeStatement(tb)
	assert.True(t, pl.Income.Total.Equal(dec("100")))
	assert.True(t, pl.Expense.Total.Equal(dec("50")))
	assert.True(t, pl.NetResult.Equal(dec("50")))

	bs := BuildBalanceSheet(tb)
	assert.True(t, bs.Assets.Total.Equal(dec("118")))
	assert.True(t, bs.Liabilities.Total.Equal(dec("68")))
	assert.True(t, bs.CurrentResult.Equal(dec("50")))
	assert.True(t, bs.TotalLiabilitiesAndEquity.Equal(dec("118")))
	assert.True(t, bs.Balanced)
}

func TestTrialBalanceRequiresBothDates(t *testing.T) {
	repo := &fakeRepo{data: saleDataset()}
	svc := NewService(repo, nil, nil)

	_, err := svc.TrialBalance(context.Background(), Filter{DateTo: date("2024-10-31")})
	require.ErrorIs(t, err, shared.ErrMissingDateRange)
	_, err = svc.TrialBalance(context.Background(), Filter{DateFrom: date("2024-10-01")})
	require.ErrorIs(t, err, shared.ErrMissingDateRange)
	_, err = svc.TrialBalance(context.Background(), Filter{DateFrom: date("2024-11-01"), DateTo: date("2024-10-01")})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
	assert.Zero(t, repo.calls.Load())
}

func TestTrialBalanceWrapsRepositoryFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection reset")}
	svc := NewService(repo, nil, nil)

	_, err := svc.TrialBalance(context.Background(), october())
	var opErr *shared.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "reports.trial_balance", opErr.Op)
}

func TestSharedTrialBalanceSurvivesCancelledFirstCaller(t *testing.T) {
	repo := &gatedRepo{data: saleDataset(), entered: make(chan struct{}, 4), release: make(chan struct{})}
	svc := NewService(repo, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.TrialBalance(firstCtx, october())
		firstErr <- err
	}()
	<-repo.entered

	type result struct {
		tb  TrialBalance
		err error
	}
	second := make(chan result, 1)
	go func() {
		tb, err := svc.TrialBalance(context.Background(), october())
		second <- result{tb, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(repo.release)

	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.tb.Balanced)
	assert.NotEmpty(t, res.tb.Rows)
}

func newRedisCache(t *testing.T) (*cache.Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewVersioned(client, time.Minute), mr
}

func TestTrialBalanceServedFromCacheUntilBump(t *testing.T) {
	ctx := context.Background()
	versioned, _ := newRedisCache(t)
	repo := &fakeRepo{data: saleDataset()}
	svc := NewService(repo, versioned, nil)

	first, err := svc.TrialBalance(ctx, october())
	require.NoError(t, err)
	second, err := svc.TrialBalance(ctx, october())
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.calls.Load())
	require.Len(t, second.Rows, len(first.Rows))
	assert.True(t, second.TotalDebit.Equal(first.TotalDebit))
	assert.Equal(t, "2024-10-01", second.DateFrom)
	assert.True(t, second.Balanced)

	require.NoError(t, versioned.Bump(ctx))
	_, err = svc.TrialBalance(ctx, october())
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())
}

func TestTrialBalanceCacheKeyIncludesBranchAndLevel(t *testing.T) {
	ctx := context.Background()
	versioned, _ := newRedisCache(t)
	repo := &fakeRepo{data: saleDataset()}
	svc := NewService(repo, versioned, nil)

	_, err := svc.TrialBalance(ctx, october())
	require.NoError(t, err)
	branch := october()
	branch.BranchID = ptr[int64](2)
	_, err = svc.TrialBalance(ctx, branch)
	require.NoError(t, err)
	level := october()
	level.Level = ptr(1)
	rolled, err := svc.TrialBalance(ctx, level)
	require.NoError(t, err)

	assert.Equal(t, int32(3), repo.calls.Load())
	assert.Equal(t, "10", rolled.Rows[0].Code)
}

func TestTrialBalanceDegradesWhenCacheDown(t *testing.T) {
	versioned, mr := newRedisCache(t)
	mr.Close()
	repo := &fakeRepo{data: saleDataset()}
	svc := NewService(repo, versioned, nil)

	tb, err := svc.TrialBalance(context.Background(), october())
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.Equal(t, int32(1), repo.calls.Load())
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func get(t *testing.T, svc *Service, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandlerTrialBalance(t *testing.T) {
	svc := NewService(&fakeRepo{data: saleDataset()}, nil, nil)

	rec, env := get(t, svc, "/trial-balance?dateFrom=2024-10-01&dateTo=2024-10-31")
	require.Equal(t, http.StatusOK, rec.Code)
	var tb TrialBalance
	require.NoError(t, json.Unmarshal(env.Data, &tb))
	assert.True(t, tb.Balanced)
	assert.Len(t, tb.Rows, 3)

	rec, env = get(t, svc, "/trial-balance?dateTo=2024-10-31")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MISSING_DATE_RANGE", env.Error.Code)

	rec, _ = get(t, svc, "/trial-balance?dateFrom=01/10/2024&dateTo=2024-10-31")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerStatements(t *testing.T) {
	svc := NewService(&fakeRepo{data: saleDataset()}, nil, nil)

	rec, env := get(t, svc, "/income-statement?dateFrom=2024-10-01&dateTo=2024-10-31")
	require.Equal(t, http.StatusOK, rec.Code)
	var pl IncomeStatement
	require.NoError(t, json.Unmarshal(env.Data, &pl))
	assert.True(t, pl.NetResult.Equal(dec("100")))

	rec, env = get(t, svc, "/balance-sheet?dateFrom=2024-10-01&dateTo=2024-10-31")
	require.Equal(t, http.StatusOK, rec.Code)
	var bs BalanceSheet
	require.NoError(t, json.Unmarshal(env.Data, &bs))
	assert.True(t, bs.Balanced)
}
