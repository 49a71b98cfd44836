package regulatory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Report names one of the monthly exports.
type Report string

const (
	ReportJournal     Report = "journal"
	ReportLedger      Report = "ledger"
	ReportSales       Report = "sales"
	ReportPurchases   Report = "purchases"
	ReportDeclaration Report = "declaration"
)

// Status codes printed on journal export rows.
const (
	StatusActive   = "1"
	StatusVoided   = "2"
	StatusAdjusted = "9"
)

// Taxable document types included in the sales and purchase registers.
var registerDocumentTypes = map[string]string{
	"01": "invoice",
	"03": "receipt",
	"07": "credit note",
	"08": "debit note",
}

// JournalLine is a confirmed entry line as stored.
type JournalLine struct {
	EntryID        int64
	EntryNumber    string
	EntryDate      time.Time
	EntryMemo      string
	Operation      string
	IsReversal     bool
	Reversed       bool
	LineOrder      int
	LineMemo       string
	AccountCode    string
	Currency       string
	DocumentType   string
	DocumentNumber string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

// JournalRow is one line of the journal export.
type JournalRow struct {
	OperationCode  string          `json:"operationCode"`
	LineNumber     int             `json:"lineNumber"`
	EntryNumber    string          `json:"entryNumber"`
	Date           string          `json:"date"`
	EntryMemo      string          `json:"entryMemo"`
	LineMemo       string          `json:"lineMemo"`
	AccountCode    string          `json:"accountCode"`
	Currency       string          `json:"currency"`
	DocumentType   string          `json:"documentType"`
	DocumentNumber string          `json:"documentNumber"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	StatusCode     string          `json:"statusCode"`
}

// JournalReport is the journal export of one period.
type JournalReport struct {
	Period      string          `json:"period"`
	BranchID    *int64          `json:"branchId,omitempty"`
	Rows        []JournalRow    `json:"rows"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
}

// AccountActivity is the per-account aggregate read for the ledger export.
type AccountActivity struct {
	AccountCode   string
	AccountName   string
	Nature        shared.Nature
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
	PeriodDebit   decimal.Decimal
	PeriodCredit  decimal.Decimal
}

// LedgerRow is one account of the ledger export.
type LedgerRow struct {
	AccountCode   string          `json:"accountCode"`
	AccountName   string          `json:"accountName"`
	Nature        shared.Nature   `json:"nature"`
	OpeningDebit  decimal.Decimal `json:"openingDebit"`
	OpeningCredit decimal.Decimal `json:"openingCredit"`
	PeriodDebit   decimal.Decimal `json:"periodDebit"`
	PeriodCredit  decimal.Decimal `json:"periodCredit"`
	ClosingDebit  decimal.Decimal `json:"closingDebit"`
	ClosingCredit decimal.Decimal `json:"closingCredit"`
	Debtor        decimal.Decimal `json:"debtor"`
	Creditor      decimal.Decimal `json:"creditor"`
}

// LedgerReport is the ledger export of one period.
type LedgerReport struct {
	Period            string          `json:"period"`
	BranchID          *int64          `json:"branchId,omitempty"`
	Rows              []LedgerRow     `json:"rows"`
	TotalPeriodDebit  decimal.Decimal `json:"totalPeriodDebit"`
	TotalPeriodCredit decimal.Decimal `json:"totalPeriodCredit"`
	TotalDebtor       decimal.Decimal `json:"totalDebtor"`
	TotalCreditor     decimal.Decimal `json:"totalCreditor"`
}

// Document is a sale or purchase as read from the commercial tables.
type Document struct {
	ID               int64
	IssueDate        time.Time
	DocumentType     string
	Series           string
	Number           string
	CounterpartyDoc  string
	CounterpartyName string
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	Currency         string
	Status           string
}

// RegisterRow is one document of a sales or purchase register.
type RegisterRow struct {
	Date             string          `json:"date"`
	DocumentType     string          `json:"documentType"`
	Series           string          `json:"series"`
	Number           string          `json:"number"`
	CounterpartyDoc  string          `json:"counterpartyDoc"`
	CounterpartyName string          `json:"counterpartyName"`
	TaxableBase      decimal.Decimal `json:"taxableBase"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
	Voided           bool            `json:"voided"`
}

// Register is the sales or purchase register of one period. Totals exclude
// voided documents.
type Register struct {
	Period    string          `json:"period"`
	BranchID  *int64          `json:"branchId,omitempty"`
	Kind      Report          `json:"kind"`
	Rows      []RegisterRow   `json:"rows"`
	TotalBase decimal.Decimal `json:"totalBase"`
	TotalTax  decimal.Decimal `json:"totalTax"`
	Total     decimal.Decimal `json:"total"`
}

// Summary carries the tax position of the period. A negative TaxPayable is a
// credit carried forward.
type Summary struct {
	SalesBase     decimal.Decimal `json:"salesBase"`
	SalesTax      decimal.Decimal `json:"salesTax"`
	PurchasesBase decimal.Decimal `json:"purchasesBase"`
	PurchasesTax  decimal.Decimal `json:"purchasesTax"`
	TaxPayable    decimal.Decimal `json:"taxPayable"`
}

// Declaration bundles the four exports of a period with its tax summary.
type Declaration struct {
	Period    string        `json:"period"`
	BranchID  *int64        `json:"branchId,omitempty"`
	Journal   JournalReport `json:"journal"`
	Ledger    LedgerReport  `json:"ledger"`
	Sales     Register      `json:"sales"`
	Purchases Register      `json:"purchases"`
	Summary   Summary       `json:"summary"`
}
