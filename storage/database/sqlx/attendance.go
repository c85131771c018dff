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

type attendanceRow struct {
	ID        string    `db:"id"`
	Date      time.Time `db:"date"`
	ClassID   string    `db:"class_id"`
	StudentID string    `db:"student_id"`
	Status    string    `db:"status"`
}

func (r attendanceRow) record() school.AttendanceRecord {
	return school.AttendanceRecord(r)
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ school.AttendanceRepository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// CreateAttendanceRecords inserts all records in one transaction; on any
// failure the transaction rolls back and nothing is stored.
func (repo *attendanceRepository) CreateAttendanceRecords(ctx context.Context, recs []school.AttendanceRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO attendance (id, date, class_id, student_id, status)
			 VALUES (:id, :date, :class_id, :student_id, :status)`,
			attendanceRow(rec),
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, errors.Wrap(err, "creating attendance record")
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing attendance records")
	}
	return len(recs), nil
}

func buildAttendanceWhere(filter school.AttendanceFilter) *whereBuilder {
	wb := new(whereBuilder)
	if filter.ClassID != "" {
		wb.add("class_id = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		wb.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		wb.add("status = ?", filter.Status)
	}
	if !filter.DateFrom.IsZero() {
		wb.add("date >= ?", filter.DateFrom.UTC())
	}
	if !filter.DateTo.IsZero() {
		wb.add("date <= ?", filter.DateTo.UTC())
	}
	return wb
}

func (repo *attendanceRepository) FilterAttendance(ctx context.Context, filter school.AttendanceFilter, opts core.QueryOptions) ([]school.AttendanceRecord, error) {
	wb := buildAttendanceWhere(filter)
	var rows []attendanceRow
	q := repo.db.Rebind("SELECT * FROM attendance" + wb.clause() + optsClause(opts))
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "filtering attendance")
	}
	recs := make([]school.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (repo *attendanceRepository) CountAttendance(ctx context.Context, filter school.AttendanceFilter) (int, error) {
	wb := buildAttendanceWhere(filter)
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM attendance" + wb.clause())
	if err := repo.db.GetContext(ctx, &count, q, wb.args...); err != nil {
		return 0, errors.Wrap(err, "counting attendance")
	}
	return count, nil
}

func (repo *attendanceRepository) DeleteAttendanceRecord(ctx context.Context, id string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM attendance WHERE id = ?"), id)
	if err != nil {
		return false, errors.Wrap(err, "deleting attendance record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "deleting attendance record")
	}
	return n > 0, nil
}
