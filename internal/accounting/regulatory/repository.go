package regulatory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/db"
)

// Reader exposes the queries behind the exports. Every method reads inside the
// snapshot it was handed.
type Reader interface {
	JournalLines(ctx context.Context, from, to time.Time, branchID *int64) ([]JournalLine, error)
	AccountActivity(ctx context.Context, from, to time.Time, branchID *int64) ([]AccountActivity, error)
	Documents(ctx context.Context, kind Report, from, to time.Time, branchID *int64) ([]Document, error)
}

// Repository opens consistent read snapshots.
type Repository interface {
	Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	return db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &reader{tx: tx})
	})
}

type reader struct {
	tx pgx.Tx
}

func (r *reader) JournalLines(ctx context.Context, from, to time.Time, branchID *int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.id, e.number, e.entry_date, e.memo, e.operation, e.reversal_of IS NOT NULL,
EXISTS (SELECT 1 FROM journal_entries rv WHERE rv.reversal_of = e.id AND rv.status = 'CONFIRMED'),
l.line_order, COALESCE(l.memo, ''), a.code, l.currency,
COALESCE(s.document_type, p.document_type, ''), COALESCE(e.reference, ''),
l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
LEFT JOIN sales s ON s.id = e.sale_id
LEFT JOIN purchases p ON p.id = e.purchase_id
WHERE e.status = 'CONFIRMED' AND e.entry_date BETWEEN $1 AND $2
  AND ($3::bigint IS NULL OR e.branch_id = $3)
ORDER BY e.entry_date, e.number, l.line_order`, from, to, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.EntryID, &l.EntryNumber, &l.EntryDate, &l.EntryMemo, &l.Operation, &l.IsReversal, &l.Reversed,
			&l.LineOrder, &l.LineMemo, &l.AccountCode, &l.Currency, &l.DocumentType, &l.DocumentNumber, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *reader) AccountActivity(ctx context.Context, from, to time.Time, branchID *int64) ([]AccountActivity, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.code, a.name, a.nature,
COALESCE(SUM(l.debit) FILTER (WHERE e.entry_date < $1), 0),
COALESCE(SUM(l.credit) FILTER (WHERE e.entry_date < $1), 0),
COALESCE(SUM(l.debit) FILTER (WHERE e.entry_date >= $1), 0),
COALESCE(SUM(l.credit) FILTER (WHERE e.entry_date >= $1), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.status = 'CONFIRMED' AND e.entry_date <= $2 AND ($3::bigint IS NULL OR e.branch_id = $3)
GROUP BY a.code, a.name, a.nature
HAVING COUNT(*) FILTER (WHERE e.entry_date >= $1) > 0
ORDER BY a.code`, from, to, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		var nature string
		if err := rows.Scan(&a.AccountCode, &a.AccountName, &nature, &a.OpeningDebit, &a.OpeningCredit, &a.PeriodDebit, &a.PeriodCredit); err != nil {
			return nil, err
		}
		a.Nature = shared.Nature(nature)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *reader) Documents(ctx context.Context, kind Report, from, to time.Time, branchID *int64) ([]Document, error) {
	var query string
	switch kind {
	case ReportSales:
		query = `SELECT id, issue_date, document_type, series, number, COALESCE(customer_doc, ''), COALESCE(customer_name, ''),
subtotal, tax_amount, total, COALESCE(currency, ''), status FROM sales`
	case ReportPurchases:
		query = `SELECT id, issue_date, document_type, series, number, COALESCE(supplier_doc, ''), COALESCE(supplier_name, ''),
subtotal, tax_amount, total, COALESCE(currency, ''), status FROM purchases`
	default:
		return nil, fmt.Errorf("regulatory: unknown register %q", kind)
	}
	query += ` WHERE issue_date BETWEEN $1 AND $2 AND ($3::bigint IS NULL OR branch_id = $3)
AND status IN ('CONFIRMED', 'VOIDED') AND document_type IN ('01', '03', '07', '08')
ORDER BY issue_date, series, number`
	rows, err := r.tx.Query(ctx, query, from, to, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.IssueDate, &d.DocumentType, &d.Series, &d.Number, &d.CounterpartyDoc, &d.CounterpartyName,
			&d.Subtotal, &d.Tax, &d.Total, &d.Currency, &d.Status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
