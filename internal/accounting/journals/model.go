package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
)

// Operation classifies the business event behind an entry.
type Operation string

const (
	OperationSale       Operation = "SALE"
	OperationPurchase   Operation = "PURCHASE"
	OperationCash       Operation = "CASH"
	OperationInventory  Operation = "INVENTORY"
	OperationAdjustment Operation = "ADJUSTMENT"
	OperationOther      Operation = "OTHER"
)

// Valid reports whether op is a known operation kind.
func (op Operation) Valid() bool {
	switch op {
	case OperationSale, OperationPurchase, OperationCash, OperationInventory, OperationAdjustment, OperationOther:
		return true
	}
	return false
}

// Entry is a journal entry header with its lines.
type Entry struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	EntryDate   time.Time       `json:"entryDate"`
	Memo        string          `json:"memo"`
	Operation   Operation       `json:"operation"`
	Reference   string          `json:"reference,omitempty"`
	SaleID      *int64          `json:"saleId,omitempty"`
	PurchaseID  *int64          `json:"purchaseId,omitempty"`
	ReversalOf  *int64          `json:"reversalOf,omitempty"`
	BranchID    int64           `json:"branchId"`
	AuthorID    int64           `json:"authorId"`
	Status      Status          `json:"status"`
	IsAutomatic bool            `json:"isAutomatic"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
	Difference  decimal.Decimal `json:"difference"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Lines       []Line          `json:"lines,omitempty"`
}

// Line stores a debit or a credit against one postable account.
type Line struct {
	ID           int64           `json:"id"`
	EntryID      int64           `json:"entryId"`
	AccountID    int64           `json:"accountId"`
	AccountCode  string          `json:"accountCode"`
	LineOrder    int             `json:"lineOrder"`
	Memo         string          `json:"memo,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Counterparty string          `json:"counterparty,omitempty"`
	Currency     string          `json:"currency"`
}

// totals sums debit and credit over lines.
func totals(lines []Line) (debit, credit decimal.Decimal) {
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// SourceKind names the commercial document that produced an automatic entry.
type SourceKind string

const (
	SourceSale     SourceKind = "SALE"
	SourcePurchase SourceKind = "PURCHASE"
)

// SourceDocument is the subset of a sale or purchase the ledger reads.
type SourceDocument struct {
	Kind             SourceKind
	ID               int64
	BranchID         int64
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

// Reference renders the printed document id, e.g. F001-123.
func (d SourceDocument) Reference() string {
	return d.Series + "-" + d.Number
}

var sourceNamespace = uuid.MustParse("6f1c9a2e-4b7d-5e8f-9a0b-1c2d3e4f5a6b")

// SourceRef is the stable link id for a document; one entry per document.
func SourceRef(kind SourceKind, id int64) uuid.UUID {
	return uuid.NewSHA1(sourceNamespace, []byte(string(kind)+":"+formatInt(id)))
}

// ListFilter narrows ListEntries; zero values are ignored.
type ListFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	BranchID  *int64
	Status    Status
	Operation Operation
	Limit     int
	Offset    int
}

// ManualResult reports what CreateManualEntry stored.
type ManualResult struct {
	Entry      Entry           `json:"entry"`
	Balanced   bool            `json:"balanced"`
	Difference decimal.Decimal `json:"difference"`
}
