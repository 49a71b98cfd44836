package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
)

// StatementLine represents one account inside a statement section.
type StatementLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// StatementSection groups accounts by category.
type StatementSection struct {
	Label    string          `json:"label"`
	Accounts []StatementLine `json:"accounts"`
	Total    decimal.Decimal `json:"total"`
}

func (s *StatementSection) add(row TrialBalanceRow, amount decimal.Decimal) {
	s.Accounts = append(s.Accounts, StatementLine{Code: row.Code, Name: row.Name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

func newSection(label string) StatementSection {
	return StatementSection{Label: label, Accounts: []StatementLine{}}
}

// IncomeStatement contains the structured output for the report.
type IncomeStatement struct {
	DateFrom  string           `json:"dateFrom"`
	DateTo    string           `json:"dateTo"`
	Income    StatementSection `json:"income"`
	Expense   StatementSection `json:"expense"`
	NetResult decimal.Decimal  `json:"netResult"`
}

// BuildIncomeStatement splits trial balance rows into income and expense. Rows
// are already ordered by code.
func BuildIncomeStatement(tb TrialBalance) IncomeStatement {
	income := newSection("Income")
	expense := newSection("Expense")
	for _, row := range tb.Rows {
		switch row.Category {
		case accounts.CategoryIncome:
			income.add(row, row.Credit.Sub(row.Debit))
		case accounts.CategoryExpense:
			expense.add(row, row.Debit.Sub(row.Credit))
		}
	}
	return IncomeStatement{
		DateFrom:  tb.DateFrom,
		DateTo:    tb.DateTo,
		Income:    income,
		Expense:   expense,
		NetResult: income.Total.Sub(expense.Total),
	}
}
