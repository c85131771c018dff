package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
)

type classRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	TeacherID string    `db:"teacher_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r classRow) class() school.Class {
	return school.Class(r)
}

type classRepository struct {
	db *sqlx.DB
}

var _ school.ClassRepository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	if cls.ID == "" {
		cls.ID = uuid.NewString()
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO classes (id, name, teacher_id, created_at)
		 VALUES (:id, :name, :teacher_id, :created_at)`,
		classRow(cls),
	)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	var row classRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT * FROM classes WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return school.Class{}, school.ErrClassNotFound
	}
	if err != nil {
		return school.Class{}, errors.Wrap(err, "getting class by id")
	}
	return row.class(), nil
}

func buildClassWhere(filter school.ClassFilter) *whereBuilder {
	wb := new(whereBuilder)
	if filter.TeacherID != "" {
		wb.add("teacher_id = ?", filter.TeacherID)
	}
	return wb
}

func (repo *classRepository) FilterClasses(ctx context.Context, filter school.ClassFilter, opts core.QueryOptions) ([]school.Class, error) {
	wb := buildClassWhere(filter)
	var rows []classRow
	q := repo.db.Rebind("SELECT * FROM classes" + wb.clause() + optsClause(opts))
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "filtering classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo *classRepository) CountClasses(ctx context.Context, filter school.ClassFilter) (int, error) {
	wb := buildClassWhere(filter)
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM classes" + wb.clause())
	if err := repo.db.GetContext(ctx, &count, q, wb.args...); err != nil {
		return 0, errors.Wrap(err, "counting classes")
	}
	return count, nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM classes WHERE id = ?"), id)
	if err != nil {
		return false, errors.Wrap(err, "deleting class")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "deleting class")
	}
	return n > 0, nil
}
