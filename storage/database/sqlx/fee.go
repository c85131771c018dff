package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
)

type feeRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	Amount    float64   `db:"amount"`
	Status    string    `db:"status"`
	Date      time.Time `db:"date"`
}

func (r feeRow) fee() school.FeeRecord {
	return school.FeeRecord(r)
}

type feeRepository struct {
	db *sqlx.DB
}

var _ school.FeeRepository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFeeRecord(ctx context.Context, fee school.FeeRecord) (school.FeeRecord, error) {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO fees (id, student_id, amount, status, date)
		 VALUES (:id, :student_id, :amount, :status, :date)`,
		feeRow(fee),
	)
	if err != nil {
		return school.FeeRecord{}, errors.Wrap(err, "creating fee record")
	}
	return fee, nil
}

func buildFeeWhere(filter school.FeeFilter) *whereBuilder {
	wb := new(whereBuilder)
	if filter.StudentID != "" {
		wb.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		wb.add("status = ?", filter.Status)
	}
	return wb
}

func (repo *feeRepository) FilterFees(ctx context.Context, filter school.FeeFilter, opts core.QueryOptions) ([]school.FeeRecord, error) {
	wb := buildFeeWhere(filter)
	var rows []feeRow
	q := repo.db.Rebind("SELECT * FROM fees" + wb.clause() + optsClause(opts))
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "filtering fees")
	}
	fees := make([]school.FeeRecord, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, row.fee())
	}
	return fees, nil
}

func (repo *feeRepository) CountFees(ctx context.Context, filter school.FeeFilter) (int, error) {
	wb := buildFeeWhere(filter)
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM fees" + wb.clause())
	if err := repo.db.GetContext(ctx, &count, q, wb.args...); err != nil {
		return 0, errors.Wrap(err, "counting fees")
	}
	return count, nil
}

func (repo *feeRepository) DeleteFeeRecord(ctx context.Context, id string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM fees WHERE id = ?"), id)
	if err != nil {
		return false, errors.Wrap(err, "deleting fee record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "deleting fee record")
	}
	return n > 0, nil
}
