package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filter Filter) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes chart operations inside a transaction.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Account, error)
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	Insert(ctx context.Context, acc Account) (Account, error)
	Update(ctx context.Context, acc Account) (Account, error)
	IsReferenced(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
	LockChart(ctx context.Context) error
}

const accountColumns = `id, code, name, COALESCE(description, ''), level, nature, category, is_postable, status, COALESCE(external_code, ''), parent_id, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}
	if filter.Level != nil {
		args = append(args, *filter.Level)
		query += ` AND level = $` + strconv.Itoa(len(args))
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		query += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY code ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.db, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return getAccount(ctx, r.db, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository exposes chart lookups to other packages sharing the same transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) Get(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.tx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.tx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) GetByCode(ctx context.Context, code string) (Account, error) {
	return getAccount(ctx, r.tx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
}

func (r *txRepository) Insert(ctx context.Context, acc Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, description, level, nature, category, is_postable, status, external_code, parent_id)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,NULLIF($9,''),$10) RETURNING id, created_at, updated_at`,
		acc.Code, acc.Name, acc.Description, acc.Level, string(acc.Nature), string(acc.Category), acc.IsPostable, string(acc.Status), acc.ExternalCode, acc.ParentID)
	if err := row.Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if isUniqueViolation(err, "accounts_code_key") {
			return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, acc.Code)
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) Update(ctx context.Context, acc Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts SET code=$2, name=$3, description=NULLIF($4,''), is_postable=$5, status=$6, external_code=NULLIF($7,''), parent_id=$8, updated_at=NOW()
WHERE id=$1 RETURNING updated_at`, acc.ID, acc.Code, acc.Name, acc.Description, acc.IsPostable, string(acc.Status), acc.ExternalCode, acc.ParentID)
	if err := row.Scan(&acc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		if isUniqueViolation(err, "accounts_code_key") {
			return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, acc.Code)
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}

// LockChart serialises concurrent seeders; plain inserts are still allowed to readers.
func (r *txRepository) LockChart(ctx context.Context) error {
	_, err := r.tx.Exec(ctx, `LOCK TABLE accounts IN SHARE ROW EXCLUSIVE MODE`)
	return err
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getAccount(ctx context.Context, q queryer, query string, arg any) (Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: %v", shared.ErrAccountNotFound, arg)
		}
		return Account{}, err
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	var nature, category, status string
	err := row.Scan(&acc.ID, &acc.Code, &acc.Name, &acc.Description, &acc.Level, &nature, &category,
		&acc.IsPostable, &status, &acc.ExternalCode, &acc.ParentID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	acc.Nature = shared.Nature(nature)
	acc.Category = Category(category)
	acc.Status = Status(status)
	return acc, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
