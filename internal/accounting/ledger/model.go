package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Key identifies one accumulator row.
type Key struct {
	AccountID int64  `json:"accountId"`
	Period    string `json:"period"`
	BranchID  int64  `json:"branchId"`
}

// Totals are the cumulative figures of an accumulator row.
type Totals struct {
	OpeningDebit  decimal.Decimal `json:"openingDebit"`
	OpeningCredit decimal.Decimal `json:"openingCredit"`
	PeriodDebit   decimal.Decimal `json:"periodDebit"`
	PeriodCredit  decimal.Decimal `json:"periodCredit"`
	ClosingDebit  decimal.Decimal `json:"closingDebit"`
	ClosingCredit decimal.Decimal `json:"closingCredit"`
}

// RollsForward reports closing = opening + period on both sides.
func (t Totals) RollsForward() bool {
	return t.ClosingDebit.Equal(t.OpeningDebit.Add(t.PeriodDebit)) &&
		t.ClosingCredit.Equal(t.OpeningCredit.Add(t.PeriodCredit))
}

func (t Totals) equal(o Totals) bool {
	return t.OpeningDebit.Equal(o.OpeningDebit) && t.OpeningCredit.Equal(o.OpeningCredit) &&
		t.PeriodDebit.Equal(o.PeriodDebit) && t.PeriodCredit.Equal(o.PeriodCredit) &&
		t.ClosingDebit.Equal(o.ClosingDebit) && t.ClosingCredit.Equal(o.ClosingCredit)
}

// Balance is a general ledger accumulator row.
type Balance struct {
	Key
	Totals
	AccountCode     string               `json:"accountCode,omitempty"`
	DebtorBalance   decimal.Decimal      `json:"debtorBalance"`
	CreditorBalance decimal.Decimal      `json:"creditorBalance"`
	Status          periods.PeriodStatus `json:"status"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// PostingLine is one journal line as seen by the accumulator.
type PostingLine struct {
	AccountID   int64
	AccountCode string
	Nature      shared.Nature
	BranchID    int64
	Period      periods.Period
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

func (l PostingLine) key() Key {
	return Key{AccountID: l.AccountID, Period: l.Period.String(), BranchID: l.BranchID}
}

// Filter narrows ListBalances.
type Filter struct {
	Period    string
	BranchID  *int64
	AccountID *int64
}

// DriftReason classifies an integrity mismatch.
type DriftReason string

const (
	DriftMissing  DriftReason = "missing"
	DriftOrphan   DriftReason = "orphan"
	DriftMismatch DriftReason = "mismatch"
	DriftSplit    DriftReason = "split"
)

// Drift is an accumulator row that disagrees with the confirmed journal lines.
type Drift struct {
	Key
	AccountCode string      `json:"accountCode"`
	Reason      DriftReason `json:"reason"`
	Stored      Totals      `json:"stored"`
	Expected    Totals      `json:"expected"`
}

// Movement is the recomputed activity of one key.
type Movement struct {
	Key
	AccountCode string
	Nature      shared.Nature
	Totals
}
