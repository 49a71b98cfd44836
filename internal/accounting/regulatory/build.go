package regulatory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

const (
	maxTextRunes     = 200
	noDocumentType   = "00"
	exportDateLayout = "02/01/2006"
)

// BuildJournal explodes confirmed entries into export rows. Lines must arrive
// ordered by entry date, entry number and line order; every entry takes the
// next operation code.
func BuildJournal(period string, branchID *int64, lines []JournalLine) JournalReport {
	report := JournalReport{Period: period, BranchID: branchID, Rows: make([]JournalRow, 0, len(lines))}
	var (
		seq       int
		lastEntry int64
	)
	for _, l := range lines {
		if seq == 0 || l.EntryID != lastEntry {
			seq++
			lastEntry = l.EntryID
		}
		docType := l.DocumentType
		if docType == "" {
			docType = noDocumentType
		}
		report.Rows = append(report.Rows, JournalRow{
			OperationCode:  OperationCode(seq),
			LineNumber:     l.LineOrder,
			EntryNumber:    l.EntryNumber,
			Date:           FormatDate(l.EntryDate),
			EntryMemo:      CleanText(l.EntryMemo),
			LineMemo:       CleanText(l.LineMemo),
			AccountCode:    l.AccountCode,
			Currency:       l.Currency,
			DocumentType:   docType,
			DocumentNumber: l.DocumentNumber,
			Debit:          l.Debit,
			Credit:         l.Credit,
			StatusCode:     statusCode(l),
		})
		report.TotalDebit = report.TotalDebit.Add(l.Debit)
		report.TotalCredit = report.TotalCredit.Add(l.Credit)
	}
	return report
}

func statusCode(l JournalLine) string {
	switch {
	case l.Reversed:
		return StatusVoided
	case l.IsReversal || l.Operation == "ADJUSTMENT":
		return StatusAdjusted
	default:
		return StatusActive
	}
}

// BuildLedger closes every touched account: closing = opening + period, split
// by nature.
func BuildLedger(period string, branchID *int64, activity []AccountActivity) LedgerReport {
	report := LedgerReport{Period: period, BranchID: branchID, Rows: make([]LedgerRow, 0, len(activity))}
	for _, a := range activity {
		row := LedgerRow{
			AccountCode:   a.AccountCode,
			AccountName:   CleanText(a.AccountName),
			Nature:        a.Nature,
			OpeningDebit:  a.OpeningDebit,
			OpeningCredit: a.OpeningCredit,
			PeriodDebit:   a.PeriodDebit,
			PeriodCredit:  a.PeriodCredit,
			ClosingDebit:  a.OpeningDebit.Add(a.PeriodDebit),
			ClosingCredit: a.OpeningCredit.Add(a.PeriodCredit),
		}
		row.Debtor, row.Creditor = shared.SplitBalance(a.Nature, row.ClosingDebit, row.ClosingCredit)
		report.Rows = append(report.Rows, row)
		report.TotalPeriodDebit = report.TotalPeriodDebit.Add(row.PeriodDebit)
		report.TotalPeriodCredit = report.TotalPeriodCredit.Add(row.PeriodCredit)
		report.TotalDebtor = report.TotalDebtor.Add(row.Debtor)
		report.TotalCreditor = report.TotalCreditor.Add(row.Creditor)
	}
	return report
}

// BuildRegister keeps taxable document types that are CONFIRMED or VOIDED.
func BuildRegister(kind Report, period string, branchID *int64, docs []Document) Register {
	reg := Register{Period: period, BranchID: branchID, Kind: kind, Rows: []RegisterRow{}}
	for _, d := range docs {
		if _, ok := registerDocumentTypes[d.DocumentType]; !ok {
			continue
		}
		status := strings.ToUpper(d.Status)
		if status != "CONFIRMED" && status != "VOIDED" {
			continue
		}
		row := RegisterRow{
			Date:             FormatDate(d.IssueDate),
			DocumentType:     d.DocumentType,
			Series:           d.Series,
			Number:           d.Number,
			CounterpartyDoc:  d.CounterpartyDoc,
			CounterpartyName: CleanText(d.CounterpartyName),
			TaxableBase:      shared.Round2(d.Subtotal),
			Tax:              shared.Round2(d.Tax),
			Total:            shared.Round2(d.Total),
			Currency:         d.Currency,
			Voided:           status == "VOIDED",
		}
		reg.Rows = append(reg.Rows, row)
		if row.Voided {
			continue
		}
		reg.TotalBase = reg.TotalBase.Add(row.TaxableBase)
		reg.TotalTax = reg.TotalTax.Add(row.Tax)
		reg.Total = reg.Total.Add(row.Total)
	}
	return reg
}

// Summarize computes the tax position from both registers.
func Summarize(sales, purchases Register) Summary {
	return Summary{
		SalesBase:     sales.TotalBase,
		SalesTax:      sales.TotalTax,
		PurchasesBase: purchases.TotalBase,
		PurchasesTax:  purchases.TotalTax,
		TaxPayable:    sales.TotalTax.Sub(purchases.TotalTax),
	}
}

// OperationCode renders the zero padded 10 digit sequence.
func OperationCode(seq int) string {
	return fmt.Sprintf("%010d", seq)
}

// FormatDate renders dd/mm/yyyy.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(exportDateLayout)
}

// CleanText NFC-normalises s, flattens delimiters and line breaks and truncates
// to 200 runes.
func CleanText(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '|', '\r', '\n', '\t':
			return ' '
		}
		return r
	}, s)
	if utf8.RuneCountInString(s) <= maxTextRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxTextRunes]))
}

func amount(v decimal.Decimal) string {
	return v.StringFixed(2)
}
