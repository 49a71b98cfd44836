package journals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	GetEntry(ctx context.Context, id int64) (Entry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	// LockNumbering blocks until no other transaction holds key.
	LockNumbering(ctx context.Context, key string) error
	LastNumber(ctx context.Context, scope string) (string, error)
	AccountByID(ctx context.Context, id int64) (accounts.Account, error)
	AccountByCode(ctx context.Context, code string) (accounts.Account, error)
	GetSource(ctx context.Context, kind SourceKind, id int64) (SourceDocument, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []Line) error
	LinkSource(ctx context.Context, kind SourceKind, ref uuid.UUID, entryID int64) error
	GetEntryForUpdate(ctx context.Context, id int64) (Entry, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	IsReversed(ctx context.Context, id int64) (bool, error)
	Ledger() ledger.Store
}

const entryColumns = `id, number, entry_date, memo, operation, COALESCE(reference, ''), sale_id, purchase_id, reversal_of,
branch_id, author_id, status, is_automatic, total_debit, total_credit, difference, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return getEntry(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id)
}

func (r *repository) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	args := []any{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += ` AND entry_date >= $` + strconv.Itoa(len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += ` AND entry_date <= $` + strconv.Itoa(len(args))
	}
	if filter.BranchID != nil {
		args = append(args, *filter.BranchID)
		query += ` AND branch_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Operation != "" {
		args = append(args, string(filter.Operation))
		query += ` AND operation = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY entry_date DESC, number DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, accounts: accounts.NewTxRepository(tx)})
	})
}

type txRepository struct {
	tx       pgx.Tx
	accounts accounts.TxRepository
}

func (r *txRepository) LockNumbering(ctx context.Context, key string) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func (r *txRepository) LastNumber(ctx context.Context, scope string) (string, error) {
	var number string
	err := r.tx.QueryRow(ctx, `SELECT number FROM journal_entries WHERE number LIKE $1 ESCAPE '\' ORDER BY number DESC LIMIT 1`, scopePattern(scope)).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// scopePattern is the LIKE pattern for every number of scope, with wildcards
// in the scope escaped.
func scopePattern(scope string) string {
	return likeEscaper.Replace(scope) + "-%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *txRepository) AccountByID(ctx context.Context, id int64) (accounts.Account, error) {
	return r.accounts.Get(ctx, id)
}

func (r *txRepository) AccountByCode(ctx context.Context, code string) (accounts.Account, error) {
	return r.accounts.GetByCode(ctx, code)
}

func (r *txRepository) GetSource(ctx context.Context, kind SourceKind, id int64) (SourceDocument, error) {
	var query string
	switch kind {
	case SourceSale:
		query = `SELECT id, branch_id, issue_date, document_type, series, number, COALESCE(customer_doc, ''), COALESCE(customer_name, ''),
subtotal, tax_amount, total, COALESCE(currency, ''), status FROM sales WHERE id=$1`
	case SourcePurchase:
		query = `SELECT id, branch_id, issue_date, document_type, series, number, COALESCE(supplier_doc, ''), COALESCE(supplier_name, ''),
subtotal, tax_amount, total, COALESCE(currency, ''), status FROM purchases WHERE id=$1`
	default:
		return SourceDocument{}, fmt.Errorf("journals: unknown source kind %q", kind)
	}
	doc := SourceDocument{Kind: kind}
	err := r.tx.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.BranchID, &doc.IssueDate, &doc.DocumentType, &doc.Series, &doc.Number,
		&doc.CounterpartyDoc, &doc.CounterpartyName, &doc.Subtotal, &doc.Tax, &doc.Total, &doc.Currency, &doc.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SourceDocument{}, fmt.Errorf("%w: %s %d", shared.ErrSourceNotFound, kind, id)
		}
		return SourceDocument{}, err
	}
	return doc, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, entry_date, memo, operation, reference, sale_id, purchase_id, reversal_of,
branch_id, author_id, status, is_automatic, total_debit, total_credit, difference)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9,$10,$11,$12,$13::numeric,$14::numeric,$15::numeric)
RETURNING id, created_at, updated_at`,
		entry.Number, entry.EntryDate, entry.Memo, string(entry.Operation), entry.Reference, entry.SaleID, entry.PurchaseID, entry.ReversalOf,
		entry.BranchID, nullInt(entry.AuthorID), string(entry.Status), entry.IsAutomatic,
		numeric(entry.TotalDebit), numeric(entry.TotalCredit), numeric(entry.Difference)).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_journal_reversal" {
			return Entry{}, fmt.Errorf("%w: entry already reversed", shared.ErrInvalidStatus)
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, account_id, line_order, memo, debit, credit, counterparty, currency)
VALUES ($1,$2,$3,NULLIF($4,''),$5::numeric,$6::numeric,NULLIF($7,''),$8)`,
			entryID, line.AccountID, line.LineOrder, line.Memo, numeric(line.Debit), numeric(line.Credit), line.Counterparty, line.Currency)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) LinkSource(ctx context.Context, kind SourceKind, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, entry_id) VALUES ($1,$2,$3)`, string(kind), ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links" {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	return getEntry(ctx, r.tx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", shared.ErrEntryNotFound, id)
	}
	return nil
}

func (r *txRepository) IsReversed(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM journal_entries WHERE reversal_of=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) Ledger() ledger.Store {
	return ledger.NewStore(r.tx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getEntry(ctx context.Context, q querier, query string, id int64) (Entry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %d", shared.ErrEntryNotFound, id)
		}
		return Entry{}, err
	}
	rows, err := q.Query(ctx, `SELECT l.id, l.entry_id, l.account_id, a.code, l.line_order, COALESCE(l.memo, ''), l.debit, l.credit,
COALESCE(l.counterparty, ''), l.currency
FROM journal_lines l JOIN accounts a ON a.id = l.account_id WHERE l.entry_id=$1 ORDER BY l.line_order ASC`, id)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.AccountCode, &line.LineOrder, &line.Memo,
			&line.Debit, &line.Credit, &line.Counterparty, &line.Currency); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var operation, status string
	var author *int64
	err := row.Scan(&e.ID, &e.Number, &e.EntryDate, &e.Memo, &operation, &e.Reference, &e.SaleID, &e.PurchaseID, &e.ReversalOf,
		&e.BranchID, &author, &status, &e.IsAutomatic, &e.TotalDebit, &e.TotalCredit, &e.Difference, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	if author != nil {
		e.AuthorID = *author
	}
	e.Operation = Operation(operation)
	e.Status = Status(status)
	return e, nil
}

func numeric(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

// dateOnly truncates t to midnight in its own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
