package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Filter selects the trial balance range. Both dates are required.
type Filter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	BranchID *int64
	Level    *int
}

// ChartNode is the part of an account the reports need for roll-up and grouping.
type ChartNode struct {
	ID       int64             `json:"id"`
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Level    int               `json:"level"`
	Nature   shared.Nature     `json:"nature"`
	Category accounts.Category `json:"category"`
	ParentID *int64            `json:"parentId,omitempty"`
}

// AccountMovement is the confirmed debit and credit of one account in a range.
type AccountMovement struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Dataset is what the repository reads for one trial balance.
type Dataset struct {
	Chart     []ChartNode
	Movements []AccountMovement
}

// TrialBalanceRow is one account line of the report.
type TrialBalanceRow struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Level    int               `json:"level"`
	Nature   shared.Nature     `json:"nature"`
	Category accounts.Category `json:"category"`
	Debit    decimal.Decimal   `json:"debit"`
	Credit   decimal.Decimal   `json:"credit"`
	Debtor   decimal.Decimal   `json:"debtor"`
	Creditor decimal.Decimal   `json:"creditor"`
}

// TrialBalance is the report with grand totals.
type TrialBalance struct {
	DateFrom      string            `json:"dateFrom"`
	DateTo        string            `json:"dateTo"`
	BranchID      *int64            `json:"branchId,omitempty"`
	Level         *int              `json:"level,omitempty"`
	Rows          []TrialBalanceRow `json:"rows"`
	TotalDebit    decimal.Decimal   `json:"totalDebit"`
	TotalCredit   decimal.Decimal   `json:"totalCredit"`
	TotalDebtor   decimal.Decimal   `json:"totalDebtor"`
	TotalCreditor decimal.Decimal   `json:"totalCreditor"`
	Balanced      bool              `json:"balanced"`
}

// BuildTrialBalance folds movements into per-account rows. With a level, each
// movement is credited to its ancestor at that level; accounts at or above the
// level keep their own row. Accounts without movement are omitted.
func BuildTrialBalance(data Dataset, level *int) TrialBalance {
	byID := make(map[int64]ChartNode, len(data.Chart))
	for _, node := range data.Chart {
		byID[node.ID] = node
	}
	type sums struct{ debit, credit decimal.Decimal }
	acc := make(map[int64]*sums)
	for _, m := range data.Movements {
		target := m.AccountID
		if level != nil && *level > 0 {
			target = ancestorAt(byID, m.AccountID, *level)
		}
		s, ok := acc[target]
		if !ok {
			s = &sums{}
			acc[target] = s
		}
		s.debit = s.debit.Add(m.Debit)
		s.credit = s.credit.Add(m.Credit)
	}

	result := TrialBalance{Level: level, Rows: make([]TrialBalanceRow, 0, len(acc))}
	for id, s := range acc {
		if s.debit.IsZero() && s.credit.IsZero() {
			continue
		}
		node, ok := byID[id]
		if !ok {
			node = ChartNode{ID: id, Nature: shared.NatureDebit}
		}
		row := TrialBalanceRow{
			Code:     node.Code,
			Name:     node.Name,
			Level:    node.Level,
			Nature:   node.Nature,
			Category: node.Category,
			Debit:    s.debit,
			Credit:   s.credit,
		}
		row.Debtor, row.Creditor = shared.SplitBalance(node.Nature, s.debit, s.credit)
		result.Rows = append(result.Rows, row)
	}
	sort.Slice(result.Rows, func(i, j int) bool { return result.Rows[i].Code < result.Rows[j].Code })

	for _, row := range result.Rows {
		result.TotalDebit = result.TotalDebit.Add(row.Debit)
		result.TotalCredit = result.TotalCredit.Add(row.Credit)
		result.TotalDebtor = result.TotalDebtor.Add(row.Debtor)
		result.TotalCreditor = result.TotalCreditor.Add(row.Creditor)
	}
	result.Balanced = shared.Balanced(result.TotalDebit, result.TotalCredit) &&
		shared.Balanced(result.TotalDebtor, result.TotalCreditor)
	return result
}

// ancestorAt walks up from id until it reaches an account at level or above.
// The walk is bounded by the chart size.
func ancestorAt(byID map[int64]ChartNode, id int64, level int) int64 {
	current := id
	for steps := 0; steps <= len(byID); steps++ {
		node, ok := byID[current]
		if !ok || node.Level <= level || node.ParentID == nil {
			return current
		}
		if _, ok := byID[*node.ParentID]; !ok {
			return current
		}
		current = *node.ParentID
	}
	return current
}
