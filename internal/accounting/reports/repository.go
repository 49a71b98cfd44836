package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/db"
)

// Repository reads the chart and the confirmed movements of a date range.
type Repository interface {
	Load(ctx context.Context, from, to time.Time, branchID *int64) (Dataset, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx backed report reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Load runs both queries in one read-only snapshot so the chart and the
// movements agree.
func (r *repository) Load(ctx context.Context, from, to time.Time, branchID *int64) (Dataset, error) {
	var data Dataset
	err := db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		chart, err := loadChart(ctx, tx)
		if err != nil {
			return err
		}
		movements, err := loadMovements(ctx, tx, from, to, branchID)
		if err != nil {
			return err
		}
		data = Dataset{Chart: chart, Movements: movements}
		return nil
	})
	return data, err
}

func loadChart(ctx context.Context, tx pgx.Tx) ([]ChartNode, error) {
	rows, err := tx.Query(ctx, `SELECT id, code, name, level, nature, category, parent_id FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChartNode
	for rows.Next() {
		var node ChartNode
		var nature, category string
		if err := rows.Scan(&node.ID, &node.Code, &node.Name, &node.Level, &nature, &category, &node.ParentID); err != nil {
			return nil, err
		}
		node.Nature = shared.Nature(nature)
		node.Category = accounts.Category(category)
		out = append(out, node)
	}
	return out, rows.Err()
}

func loadMovements(ctx context.Context, tx pgx.Tx, from, to time.Time, branchID *int64) ([]AccountMovement, error) {
	rows, err := tx.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.status = 'CONFIRMED' AND e.entry_date BETWEEN $1 AND $2
  AND ($3::bigint IS NULL OR e.branch_id = $3)
GROUP BY l.account_id`, from, to, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMovement
	for rows.Next() {
		var m AccountMovement
		if err := rows.Scan(&m.AccountID, &m.Debit, &m.Credit); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
