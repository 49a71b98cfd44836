package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	DateFrom                  string           `json:"dateFrom"`
	DateTo                    string           `json:"dateTo"`
	Assets                    StatementSection `json:"assets"`
	Liabilities               StatementSection `json:"liabilities"`
	Equity                    StatementSection `json:"equity"`
	CurrentResult             decimal.Decimal  `json:"currentResult"`
	TotalLiabilitiesAndEquity decimal.Decimal  `json:"totalLiabilitiesAndEquity"`
	Balanced                  bool             `json:"balanced"`
}

// BuildBalanceSheet aggregates balances into assets, liabilities and equity. The
// period result from income and expense accounts is reported next to equity.
func BuildBalanceSheet(tb TrialBalance) BalanceSheet {
	assets := newSection("Assets")
	liabilities := newSection("Liabilities")
	equity := newSection("Equity")
	for _, row := range tb.Rows {
		switch row.Category {
		case accounts.CategoryAsset:
			assets.add(row, row.Debit.Sub(row.Credit))
		case accounts.CategoryLiability:
			liabilities.add(row, row.Credit.Sub(row.Debit))
		case accounts.CategoryEquity, accounts.CategoryResult:
			equity.add(row, row.Credit.Sub(row.Debit))
		}
	}
	result := BuildIncomeStatement(tb).NetResult
	total := liabilities.Total.Add(equity.Total).Add(result)
	return BalanceSheet{
		DateFrom:                  tb.DateFrom,
		DateTo:                    tb.DateTo,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentResult:             result,
		TotalLiabilitiesAndEquity: total,
		Balanced:                  shared.Balanced(assets.Total, total),
	}
}
