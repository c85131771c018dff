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

type announcementRow struct {
	ID    string    `db:"id"`
	Title string    `db:"title"`
	Text  string    `db:"text"`
	Date  time.Time `db:"date"`
}

func (r announcementRow) announcement() school.Announcement {
	return school.Announcement(r)
}

type announcementRepository struct {
	db *sqlx.DB
}

var _ school.AnnouncementRepository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, ann school.Announcement) (school.Announcement, error) {
	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO announcements (id, title, text, date)
		 VALUES (:id, :title, :text, :date)`,
		announcementRow(ann),
	)
	if err != nil {
		return school.Announcement{}, errors.Wrap(err, "creating announcement")
	}
	return ann, nil
}

func buildAnnouncementWhere(filter school.AnnouncementFilter) *whereBuilder {
	wb := new(whereBuilder)
	if !filter.DateFrom.IsZero() {
		wb.add("date >= ?", filter.DateFrom.UTC())
	}
	if !filter.DateTo.IsZero() {
		wb.add("date <= ?", filter.DateTo.UTC())
	}
	return wb
}

func (repo *announcementRepository) FilterAnnouncements(ctx context.Context, filter school.AnnouncementFilter, opts core.QueryOptions) ([]school.Announcement, error) {
	wb := buildAnnouncementWhere(filter)
	var rows []announcementRow
	q := repo.db.Rebind("SELECT * FROM announcements" + wb.clause() + optsClause(opts))
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "filtering announcements")
	}
	anns := make([]school.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.announcement())
	}
	return anns, nil
}

func (repo *announcementRepository) CountAnnouncements(ctx context.Context, filter school.AnnouncementFilter) (int, error) {
	wb := buildAnnouncementWhere(filter)
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM announcements" + wb.clause())
	if err := repo.db.GetContext(ctx, &count, q, wb.args...); err != nil {
		return 0, errors.Wrap(err, "counting announcements")
	}
	return count, nil
}

func (repo *announcementRepository) DeleteAnnouncement(ctx context.Context, id string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM announcements WHERE id = ?"), id)
	if err != nil {
		return false, errors.Wrap(err, "deleting announcement")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "deleting announcement")
	}
	return n > 0, nil
}
