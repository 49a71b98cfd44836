package regulatory

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FileName returns the download name of a text export, e.g. LE202410_journal.txt.
func FileName(period string, report Report) string {
	return fmt.Sprintf("LE%s_%s.txt", strings.ReplaceAll(period, "-", ""), report)
}

func newWriter(w io.Writer) *csv.Writer {
	writer := csv.NewWriter(w)
	writer.Comma = '|'
	return writer
}

// WriteJournalText emits the journal export as pipe delimited text.
func WriteJournalText(w io.Writer, report JournalReport) error {
	writer := newWriter(w)
	defer writer.Flush()
	for _, row := range report.Rows {
		if err := writer.Write([]string{
			row.OperationCode,
			strconv.Itoa(row.LineNumber),
			row.EntryNumber,
			row.Date,
			row.EntryMemo,
			row.LineMemo,
			row.AccountCode,
			row.Currency,
			row.DocumentType,
			row.DocumentNumber,
			amount(row.Debit),
			amount(row.Credit),
			row.StatusCode,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteLedgerText emits the ledger export as pipe delimited text.
func WriteLedgerText(w io.Writer, report LedgerReport) error {
	writer := newWriter(w)
	defer writer.Flush()
	for _, row := range report.Rows {
		if err := writer.Write([]string{
			row.AccountCode,
			row.AccountName,
			string(row.Nature),
			amount(row.OpeningDebit),
			amount(row.OpeningCredit),
			amount(row.PeriodDebit),
			amount(row.PeriodCredit),
			amount(row.ClosingDebit),
			amount(row.ClosingCredit),
			amount(row.Debtor),
			amount(row.Creditor),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRegisterText emits a sales or purchase register as pipe delimited text.
// The last column is 1 for voided documents.
func WriteRegisterText(w io.Writer, reg Register) error {
	writer := newWriter(w)
	defer writer.Flush()
	for _, row := range reg.Rows {
		voided := "0"
		if row.Voided {
			voided = "1"
		}
		if err := writer.Write([]string{
			row.Date,
			row.DocumentType,
			row.Series,
			row.Number,
			row.CounterpartyDoc,
			row.CounterpartyName,
			amount(row.TaxableBase),
			amount(row.Tax),
			amount(row.Total),
			row.Currency,
			voided,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// RenderText renders any single export to bytes.
func RenderText(v any) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch report := v.(type) {
	case JournalReport:
		err = WriteJournalText(&buf, report)
	case LedgerReport:
		err = WriteLedgerText(&buf, report)
	case Register:
		err = WriteRegisterText(&buf, report)
	default:
		err = fmt.Errorf("regulatory: no text layout for %T", v)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
