package accounts

import "github.com/odyssey-erp/retail-ledger/internal/accounting/shared"

type seedAccount struct {
	Code         string
	Name         string
	Nature       shared.Nature
	Category     Category
	ExternalCode string
}

// Level-1 nodes use two-character codes; level-2 children extend their parent's code.
var baseChart = []seedAccount{
	{"10", "Cash and cash equivalents", shared.NatureDebit, CategoryAsset, "1"},
	{"12", "Trade receivables", shared.NatureDebit, CategoryAsset, "1"},
	{"16", "Other receivables", shared.NatureDebit, CategoryAsset, "1"},
	{"20", "Merchandise inventory", shared.NatureDebit, CategoryAsset, "1"},
	{"33", "Property, plant and equipment", shared.NatureDebit, CategoryAsset, "1"},
	{"40", "Taxes payable", shared.NatureCredit, CategoryLiability, "2"},
	{"41", "Payroll payable", shared.NatureCredit, CategoryLiability, "2"},
	{"42", "Trade payables", shared.NatureCredit, CategoryLiability, "2"},
	{"50", "Share capital", shared.NatureCredit, CategoryEquity, "3"},
	{"59", "Retained earnings", shared.NatureCredit, CategoryEquity, "3"},
	{"60", "Purchases", shared.NatureDebit, CategoryExpense, "6"},
	{"62", "Personnel expenses", shared.NatureDebit, CategoryExpense, "6"},
	{"63", "Third party services", shared.NatureDebit, CategoryExpense, "6"},
	{"69", "Cost of sales", shared.NatureDebit, CategoryExpense, "6"},
	{"70", "Sales", shared.NatureCredit, CategoryIncome, "7"},
	{"75", "Other operating income", shared.NatureCredit, CategoryIncome, "7"},
	{"89", "Result for the period", shared.NatureCredit, CategoryResult, "8"},

	{"101", "Cash", shared.NatureDebit, CategoryAsset, "1.1"},
	{"104", "Bank current accounts", shared.NatureDebit, CategoryAsset, "1.1"},
	{"121", "Invoices receivable", shared.NatureDebit, CategoryAsset, "1.2"},
	{"167", "Tax receivable", shared.NatureDebit, CategoryAsset, "1.3"},
	{"201", "Merchandise on hand", shared.NatureDebit, CategoryAsset, "1.4"},
	{"336", "Furniture and equipment", shared.NatureDebit, CategoryAsset, "1.5"},
	{"401", "Tax payable", shared.NatureCredit, CategoryLiability, "2.1"},
	{"411", "Salaries payable", shared.NatureCredit, CategoryLiability, "2.2"},
	{"421", "Accounts payable", shared.NatureCredit, CategoryLiability, "2.3"},
	{"501", "Paid-in capital", shared.NatureCredit, CategoryEquity, "3.1"},
	{"591", "Accumulated profits", shared.NatureCredit, CategoryEquity, "3.2"},
	{"601", "Merchandise", shared.NatureDebit, CategoryExpense, "6.1"},
	{"621", "Salaries", shared.NatureDebit, CategoryExpense, "6.2"},
	{"636", "Utilities", shared.NatureDebit, CategoryExpense, "6.3"},
	{"691", "Cost of merchandise sold", shared.NatureDebit, CategoryExpense, "6.9"},
	{"701", "Sales revenue", shared.NatureCredit, CategoryIncome, "7.1"},
	{"759", "Miscellaneous income", shared.NatureCredit, CategoryIncome, "7.5"},
	{"891", "Profit for the period", shared.NatureCredit, CategoryResult, "8.9"},
}

func seedLevel(code string) int {
	if len(code) <= 2 {
		return 1
	}
	return 2
}

// BaseChartSize is the number of accounts SeedBaseChart inserts.
func BaseChartSize() int {
	return len(baseChart)
}
