package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
)

func nowUTC() time.Time { return time.Now().UTC() }

func limitSlice(n int, length int) int {
	if n > 0 && n < length {
		return n
	}
	return length
}

// classes

type classRepository struct {
	db *classTable
}

var _ school.ClassRepository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db.class}
}

func (repo *classRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.NewString()
	}
	repo.db.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.table[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *classRepository) FilterClasses(_ context.Context, filter school.ClassFilter, opts core.QueryOptions) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.table))
	for _, cls := range repo.db.table {
		if filter.TeacherID != "" && cls.TeacherID != filter.TeacherID {
			continue
		}
		classes = append(classes, *cls)
	}

	for i := len(opts.Ordering) - 1; i >= 0; i-- {
		ord := opts.Ordering[i]
		switch ord.Field {
		case "created_at":
			sort.SliceStable(classes, func(i, j int) bool {
				if ord.Ascending {
					return classes[i].CreatedAt.Before(classes[j].CreatedAt)
				}
				return classes[i].CreatedAt.After(classes[j].CreatedAt)
			})
		case "name":
			sort.SliceStable(classes, func(i, j int) bool {
				if ord.Ascending {
					return classes[i].Name < classes[j].Name
				}
				return classes[i].Name > classes[j].Name
			})
		}
	}
	return classes[:limitSlice(opts.Limit, len(classes))], nil
}

func (repo *classRepository) CountClasses(ctx context.Context, filter school.ClassFilter) (int, error) {
	classes, err := repo.FilterClasses(ctx, filter, core.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(classes), nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	_, ok := repo.db.table[id]
	delete(repo.db.table, id)
	return ok, nil
}

// attendance

type attendanceRepository struct {
	db *attendanceTable
}

var _ school.AttendanceRepository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) CreateAttendanceRecords(_ context.Context, recs []school.AttendanceRecord) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// all-or-nothing under one lock
	for i := range recs {
		if recs[i].ID == "" {
			recs[i].ID = uuid.NewString()
		}
	}
	for i := range recs {
		rec := recs[i]
		repo.db.table[rec.ID] = &rec
	}
	return len(recs), nil
}

func (repo *attendanceRepository) FilterAttendance(_ context.Context, filter school.AttendanceFilter, opts core.QueryOptions) ([]school.AttendanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]school.AttendanceRecord, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		if filter.ClassID != "" && rec.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if !filter.DateFrom.IsZero() && rec.Date.Before(filter.DateFrom.UTC()) {
			continue
		}
		if !filter.DateTo.IsZero() && rec.Date.After(filter.DateTo.UTC()) {
			continue
		}
		recs = append(recs, *rec)
	}

	sortByDate(opts, func(asc bool) {
		sort.SliceStable(recs, func(i, j int) bool {
			if asc {
				return recs[i].Date.Before(recs[j].Date)
			}
			return recs[i].Date.After(recs[j].Date)
		})
	})
	return recs[:limitSlice(opts.Limit, len(recs))], nil
}

func (repo *attendanceRepository) CountAttendance(ctx context.Context, filter school.AttendanceFilter) (int, error) {
	recs, err := repo.FilterAttendance(ctx, filter, core.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (repo *attendanceRepository) DeleteAttendanceRecord(_ context.Context, id string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	_, ok := repo.db.table[id]
	delete(repo.db.table, id)
	return ok, nil
}

// fees

type feeRepository struct {
	db *feeTable
}

var _ school.FeeRepository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db.fee}
}

func (repo *feeRepository) CreateFeeRecord(_ context.Context, fee school.FeeRecord) (school.FeeRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	repo.db.table[fee.ID] = &fee
	return fee, nil
}

func (repo *feeRepository) FilterFees(_ context.Context, filter school.FeeFilter, opts core.QueryOptions) ([]school.FeeRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	fees := make([]school.FeeRecord, 0, len(repo.db.table))
	for _, fee := range repo.db.table {
		if filter.StudentID != "" && fee.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && fee.Status != filter.Status {
			continue
		}
		fees = append(fees, *fee)
	}

	sortByDate(opts, func(asc bool) {
		sort.SliceStable(fees, func(i, j int) bool {
			if asc {
				return fees[i].Date.Before(fees[j].Date)
			}
			return fees[i].Date.After(fees[j].Date)
		})
	})
	return fees[:limitSlice(opts.Limit, len(fees))], nil
}

func (repo *feeRepository) CountFees(ctx context.Context, filter school.FeeFilter) (int, error) {
	fees, err := repo.FilterFees(ctx, filter, core.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(fees), nil
}

func (repo *feeRepository) DeleteFeeRecord(_ context.Context, id string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	_, ok := repo.db.table[id]
	delete(repo.db.table, id)
	return ok, nil
}

// announcements

type announcementRepository struct {
	db *announcementTable
}

var _ school.AnnouncementRepository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db.announcement}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, ann school.Announcement) (school.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	repo.db.table[ann.ID] = &ann
	return ann, nil
}

func (repo *announcementRepository) FilterAnnouncements(_ context.Context, filter school.AnnouncementFilter, opts core.QueryOptions) ([]school.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	anns := make([]school.Announcement, 0, len(repo.db.table))
	for _, ann := range repo.db.table {
		if !filter.DateFrom.IsZero() && ann.Date.Before(filter.DateFrom.UTC()) {
			continue
		}
		if !filter.DateTo.IsZero() && ann.Date.After(filter.DateTo.UTC()) {
			continue
		}
		anns = append(anns, *ann)
	}

	sortByDate(opts, func(asc bool) {
		sort.SliceStable(anns, func(i, j int) bool {
			if asc {
				return anns[i].Date.Before(anns[j].Date)
			}
			return anns[i].Date.After(anns[j].Date)
		})
	})
	return anns[:limitSlice(opts.Limit, len(anns))], nil
}

func (repo *announcementRepository) CountAnnouncements(ctx context.Context, filter school.AnnouncementFilter) (int, error) {
	anns, err := repo.FilterAnnouncements(ctx, filter, core.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(anns), nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	_, ok := repo.db.table[id]
	delete(repo.db.table, id)
	return ok, nil
}

func sortByDate(opts core.QueryOptions, apply func(asc bool)) {
	for i := len(opts.Ordering) - 1; i >= 0; i-- {
		if ord := opts.Ordering[i]; ord.Field == "date" {
			apply(ord.Ascending)
		}
	}
}
