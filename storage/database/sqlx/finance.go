package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/finance"
)

const transactionColumns = `t.id, t.parent_id, u.username, t.student_name, t.transaction_type, t.amount,
t.description, t.payment_method, t.reference_number, t.due_date, t.date_created, t.status`

type financeRepository struct {
	exec core.DBExecutor
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(exec core.DBExecutor) *financeRepository {
	return &financeRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to finance.ErrNotFound
func (repo financeRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return finance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func scanTransaction(row rowScanner) (finance.Transaction, error) {
	var tx finance.Transaction
	err := row.Scan(
		&tx.ID, &tx.ParentID, &tx.ParentUsername, &tx.StudentName, &tx.Type, &tx.Amount,
		&tx.Description, &tx.PaymentMethod, &tx.ReferenceNumber, &tx.DueDate, &tx.DateCreated, &tx.Status,
	)
	return tx, err
}

func (repo financeRepository) CreateTransaction(ctx context.Context, tx finance.Transaction, exec ...core.DBExecutor) (finance.Transaction, error) {
	exe := getExec(repo.exec, exec)
	tx.ID = uuid.New().String()
	_, err := exe.ExecContext(ctx,
		`INSERT INTO "transaction" (id, parent_id, student_name, transaction_type, amount, description,
		                            payment_method, reference_number, due_date, date_created, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, tx.ParentID, tx.StudentName, tx.Type, tx.Amount, tx.Description,
		tx.PaymentMethod, tx.ReferenceNumber, tx.DueDate, tx.DateCreated.UTC(), tx.Status,
	)
	if err != nil {
		return finance.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return repo.GetTransaction(ctx, tx.ID, exec...)
}

func (repo financeRepository) QueryTransactions(ctx context.Context, filter *finance.QueryFilter, exec ...core.DBExecutor) ([]finance.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM "transaction" t JOIN "user" u ON u.id = t.parent_id WHERE true`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.Search != "" {
			ph := arg("%" + filter.Search + "%")
			query += ` AND (t.student_name ILIKE ` + ph + ` OR t.reference_number ILIKE ` + ph + ` OR u.username ILIKE ` + ph + `)`
		}
		if filter.Status != "" {
			query += ` AND t.status = ` + arg(filter.Status)
		}
	}
	query += ` ORDER BY t.date_created DESC`

	return repo.queryTransactions(ctx, getExec(repo.exec, exec), query, args...)
}

func (repo financeRepository) QueryTransactionsByParent(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]finance.Transaction, error) {
	return repo.queryTransactions(ctx, getExec(repo.exec, exec),
		`SELECT `+transactionColumns+` FROM "transaction" t JOIN "user" u ON u.id = t.parent_id
		 WHERE t.parent_id = $1 ORDER BY t.date_created DESC`, parentID)
}

func (repo financeRepository) queryTransactions(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) ([]finance.Transaction, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	defer func() { _ = rows.Close() }()

	var txs []finance.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "querying transactions")
		}
		txs = append(txs, tx)
	}
	return txs, errors.Wrap(rows.Err(), "querying transactions")
}

func (repo financeRepository) GetTransaction(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return finance.Transaction{}, finance.ErrNotFound
	}
	row := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM "transaction" t JOIN "user" u ON u.id = t.parent_id WHERE t.id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return finance.Transaction{}, repo.trapNoRowsErr(err, "finding transaction")
	}
	return tx, nil
}

func (repo financeRepository) UpdateTransaction(ctx context.Context, tx finance.Transaction, exec ...core.DBExecutor) (finance.Transaction, error) {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE "transaction"
		 SET parent_id = $2, student_name = $3, transaction_type = $4, amount = $5, description = $6,
		     payment_method = $7, due_date = $8, status = $9
		 WHERE id = $1`,
		tx.ID, tx.ParentID, tx.StudentName, tx.Type, tx.Amount, tx.Description,
		tx.PaymentMethod, tx.DueDate, tx.Status,
	)
	if err != nil {
		return finance.Transaction{}, errors.Wrap(err, "updating transaction")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return finance.Transaction{}, finance.ErrNotFound
	}
	return repo.GetTransaction(ctx, tx.ID, exec...)
}

func (repo financeRepository) DeleteTransaction(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM "transaction" WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting transaction")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return finance.ErrNotFound
	}
	return nil
}

func (repo financeRepository) NextReferenceNumber(ctx context.Context, year int, exec ...core.DBExecutor) (string, error) {
	// seeded from the highest sequence already issued for the year
	var seq int64
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`INSERT INTO counter (name, value)
		 VALUES ($1, (
			SELECT COALESCE(MAX(split_part(reference_number, '-', 3)::bigint), 0) + 1
			FROM "transaction" WHERE reference_number LIKE $2
		 ))
		 ON CONFLICT (name) DO UPDATE SET value = counter.value + 1
		 RETURNING value`,
		fmt.Sprintf("reference_number_%d", year), fmt.Sprintf("%s-%d-%%", finance.ReferencePrefix, year),
	).Scan(&seq)
	if err != nil {
		return "", errors.Wrap(err, "generating reference number")
	}
	return fmt.Sprintf("%s-%d-%05d", finance.ReferencePrefix, year, seq), nil
}

func (repo financeRepository) GetStats(ctx context.Context, exec ...core.DBExecutor) (finance.Stats, error) {
	var stats finance.Stats
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT COALESCE(sum(amount), 0),
		        COALESCE(sum(amount) FILTER (WHERE status = $1), 0),
		        COALESCE(sum(amount) FILTER (WHERE status IN ($2, $3)), 0)
		 FROM "transaction"`,
		finance.StatusPaid, finance.StatusPending, finance.StatusOverdue,
	).Scan(&stats.TotalRevenue, &stats.Collected, &stats.Pending)
	if err != nil {
		return finance.Stats{}, errors.Wrap(err, "computing finance stats")
	}
	return stats, nil
}
