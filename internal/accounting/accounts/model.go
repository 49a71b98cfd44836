package accounts

import (
	"time"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Category enumerates CoA categories.
type Category string

const (
	CategoryAsset     Category = "ASSET"
	CategoryLiability Category = "LIABILITY"
	CategoryEquity    Category = "EQUITY"
	CategoryIncome    Category = "INCOME"
	CategoryExpense   Category = "EXPENSE"
	CategoryResult    Category = "RESULT"
)

// Status enumerates account availability.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Account models a chart of accounts node.
type Account struct {
	ID           int64         `json:"id"`
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Level        int           `json:"level"`
	Nature       shared.Nature `json:"nature"`
	Category     Category      `json:"category"`
	IsPostable   bool          `json:"isPostable"`
	Status       Status        `json:"status"`
	ExternalCode string        `json:"externalCode,omitempty"`
	ParentID     *int64        `json:"parentId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// AcceptsPostings reports whether journal lines may target the account.
func (a Account) AcceptsPostings() bool {
	return a.IsPostable && a.Status == StatusActive
}

// Summary is the compact form used for parent/children references.
type Summary struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func (a Account) Summary() Summary {
	return Summary{ID: a.ID, Code: a.Code, Name: a.Name}
}

// Node is an account with its immediate hierarchy.
type Node struct {
	Account
	Parent   *Summary  `json:"parent,omitempty"`
	Children []Summary `json:"children"`
}

// Filter narrows ListAccounts; nil fields are ignored.
type Filter struct {
	Level    *int
	Category *Category
	Status   *Status
}
