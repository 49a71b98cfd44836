package ledger

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/db"
)

type Repository interface {
	ListBalances(ctx context.Context, filter Filter) ([]Balance, error)
	// Recompute aggregates confirmed lines up to the end of period for every key
	// with activity inside the period.
	Recompute(ctx context.Context, period periods.Period, branchID *int64) ([]Movement, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type TxRepository interface {
	Store
	PeriodStatusForUpdate(ctx context.Context, period string, branchID int64) (periods.PeriodStatus, error)
	SetPeriodStatus(ctx context.Context, period string, branchID int64, status periods.PeriodStatus, actorID int64) error
	MarkBalances(ctx context.Context, period string, branchID int64, status periods.PeriodStatus) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListBalances(ctx context.Context, filter Filter) ([]Balance, error) {
	query := `SELECT b.account_id, a.code, b.period, b.branch_id, b.opening_debit, b.opening_credit, b.period_debit, b.period_credit,
b.closing_debit, b.closing_credit, b.debtor_balance, b.creditor_balance, b.status, b.updated_at
FROM ledger_balances b JOIN accounts a ON a.id = b.account_id WHERE 1=1`
	args := []any{}
	if filter.Period != "" {
		args = append(args, filter.Period)
		query += ` AND b.period = $` + strconv.Itoa(len(args))
	}
	if filter.BranchID != nil {
		args = append(args, *filter.BranchID)
		query += ` AND b.branch_id = $` + strconv.Itoa(len(args))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += ` AND b.account_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY b.period, a.code, b.branch_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		var status string
		if err := rows.Scan(&b.AccountID, &b.AccountCode, &b.Period, &b.BranchID, &b.OpeningDebit, &b.OpeningCredit,
			&b.PeriodDebit, &b.PeriodCredit, &b.ClosingDebit, &b.ClosingCredit, &b.DebtorBalance, &b.CreditorBalance,
			&status, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Status = periods.PeriodStatus(status)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) Recompute(ctx context.Context, period periods.Period, branchID *int64) ([]Movement, error) {
	first, last := period.Bounds()
	rows, err := r.db.Query(ctx, `SELECT l.account_id, a.code, a.nature, e.branch_id,
COALESCE(SUM(l.debit) FILTER (WHERE e.entry_date < $1), 0),
COALESCE(SUM(l.credit) FILTER (WHERE e.entry_date < $1), 0),
COALESCE(SUM(l.debit) FILTER (WHERE e.entry_date >= $1), 0),
COALESCE(SUM(l.credit) FILTER (WHERE e.entry_date >= $1), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.status = 'CONFIRMED' AND e.entry_date <= $2 AND ($3::bigint IS NULL OR e.branch_id = $3)
GROUP BY l.account_id, a.code, a.nature, e.branch_id
HAVING COUNT(*) FILTER (WHERE e.entry_date >= $1) > 0
ORDER BY a.code, e.branch_id`, first, last, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var nature string
		if err := rows.Scan(&m.AccountID, &m.AccountCode, &nature, &m.BranchID, &m.OpeningDebit, &m.OpeningCredit, &m.PeriodDebit, &m.PeriodCredit); err != nil {
			return nil, err
		}
		m.Period = period.String()
		m.Nature = shared.Nature(nature)
		m.ClosingDebit = m.OpeningDebit.Add(m.PeriodDebit)
		m.ClosingCredit = m.OpeningCredit.Add(m.PeriodCredit)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewStore binds the accumulator to a transaction owned by the caller.
func NewStore(tx pgx.Tx) Store {
	return &txRepository{tx: tx}
}

func (r *txRepository) PeriodStatus(ctx context.Context, period string, branchID int64) (periods.PeriodStatus, error) {
	return r.periodStatus(ctx, `SELECT status FROM ledger_periods WHERE period=$1 AND branch_id=$2 FOR SHARE`, period, branchID)
}

func (r *txRepository) PeriodStatusForUpdate(ctx context.Context, period string, branchID int64) (periods.PeriodStatus, error) {
	return r.periodStatus(ctx, `SELECT status FROM ledger_periods WHERE period=$1 AND branch_id=$2 FOR UPDATE`, period, branchID)
}

func (r *txRepository) periodStatus(ctx context.Context, query, period string, branchID int64) (periods.PeriodStatus, error) {
	var status string
	if err := r.tx.QueryRow(ctx, query, period, branchID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.PeriodStatusOpen, nil
		}
		return "", err
	}
	return periods.PeriodStatus(status), nil
}

// AddMovement upserts the row. A new row opens with the closing totals of the
// latest earlier period for the same account and branch.
func (r *txRepository) AddMovement(ctx context.Context, key Key, debit, credit decimal.Decimal) (Balance, error) {
	b := Balance{Key: key}
	var status string
	err := r.tx.QueryRow(ctx, `WITH prev AS (
	SELECT closing_debit, closing_credit FROM ledger_balances
	WHERE account_id = $1 AND branch_id = $3 AND period < $2::text
	ORDER BY period DESC LIMIT 1
)
INSERT INTO ledger_balances AS lb (account_id, period, branch_id, opening_debit, opening_credit, period_debit, period_credit,
	closing_debit, closing_credit, debtor_balance, creditor_balance, status, updated_at)
SELECT $1, $2::text, $3, COALESCE(prev.closing_debit, 0), COALESCE(prev.closing_credit, 0), $4::numeric, $5::numeric,
	COALESCE(prev.closing_debit, 0) + $4::numeric, COALESCE(prev.closing_credit, 0) + $5::numeric, 0, 0, 'OPEN', NOW()
FROM (SELECT 1) seed LEFT JOIN prev ON TRUE
ON CONFLICT (account_id, period, branch_id) DO UPDATE SET
	period_debit = lb.period_debit + EXCLUDED.period_debit,
	period_credit = lb.period_credit + EXCLUDED.period_credit,
	closing_debit = lb.opening_debit + lb.period_debit + EXCLUDED.period_debit,
	closing_credit = lb.opening_credit + lb.period_credit + EXCLUDED.period_credit,
	updated_at = NOW()
RETURNING opening_debit, opening_credit, period_debit, period_credit, closing_debit, closing_credit, status, updated_at`,
		key.AccountID, key.Period, key.BranchID, numeric(debit), numeric(credit)).
		Scan(&b.OpeningDebit, &b.OpeningCredit, &b.PeriodDebit, &b.PeriodCredit, &b.ClosingDebit, &b.ClosingCredit, &status, &b.UpdatedAt)
	if err != nil {
		return Balance{}, err
	}
	b.Status = periods.PeriodStatus(status)
	return b, nil
}

// RollForward shifts the opening and closing totals of later-period rows. The
// UPDATE takes their row locks, so they stay consistent until commit.
func (r *txRepository) RollForward(ctx context.Context, key Key, debit, credit decimal.Decimal) ([]Balance, error) {
	rows, err := r.tx.Query(ctx, `UPDATE ledger_balances SET
	opening_debit = opening_debit + $4::numeric,
	opening_credit = opening_credit + $5::numeric,
	closing_debit = closing_debit + $4::numeric,
	closing_credit = closing_credit + $5::numeric,
	updated_at = NOW()
WHERE account_id = $1 AND branch_id = $3 AND period > $2::text
RETURNING period, opening_debit, opening_credit, period_debit, period_credit, closing_debit, closing_credit, status, updated_at`,
		key.AccountID, key.Period, key.BranchID, numeric(debit), numeric(credit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		b := Balance{Key: Key{AccountID: key.AccountID, BranchID: key.BranchID}}
		var status string
		if err := rows.Scan(&b.Period, &b.OpeningDebit, &b.OpeningCredit, &b.PeriodDebit, &b.PeriodCredit,
			&b.ClosingDebit, &b.ClosingCredit, &status, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Status = periods.PeriodStatus(status)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (r *txRepository) SetSplit(ctx context.Context, key Key, debtor, creditor decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE ledger_balances SET debtor_balance=$4::numeric, creditor_balance=$5::numeric
WHERE account_id=$1 AND period=$2 AND branch_id=$3`, key.AccountID, key.Period, key.BranchID, numeric(debtor), numeric(creditor))
	return err
}

func (r *txRepository) SetPeriodStatus(ctx context.Context, period string, branchID int64, status periods.PeriodStatus, actorID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_periods (period, branch_id, status, changed_by, changed_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (period, branch_id) DO UPDATE SET status=EXCLUDED.status, changed_by=EXCLUDED.changed_by, changed_at=EXCLUDED.changed_at`,
		period, branchID, string(status), nullInt(actorID), time.Now().UTC())
	return err
}

func (r *txRepository) MarkBalances(ctx context.Context, period string, branchID int64, status periods.PeriodStatus) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_balances SET status=$3, updated_at=NOW() WHERE period=$1 AND branch_id=$2`, period, branchID, string(status))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
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
