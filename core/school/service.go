package school

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/tsacademy/academia/core"
)

var (
	// errors
	ErrClassNotFound = errors.New("class not found")
)

type (
	ClassRepository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		FilterClasses(ctx context.Context, filter ClassFilter, opts core.QueryOptions) ([]Class, error)
		CountClasses(ctx context.Context, filter ClassFilter) (int, error)
		// DeleteClass is idempotent; the flag reports whether a row existed.
		// Attendance and fee records of a deleted class are NOT removed;
		// read paths must tolerate orphans.
		DeleteClass(ctx context.Context, id string) (bool, error)
	}

	AttendanceRepository interface {
		// CreateAttendanceRecords commits all records or none.
		CreateAttendanceRecords(ctx context.Context, recs []AttendanceRecord) (int, error)
		FilterAttendance(ctx context.Context, filter AttendanceFilter, opts core.QueryOptions) ([]AttendanceRecord, error)
		CountAttendance(ctx context.Context, filter AttendanceFilter) (int, error)
		DeleteAttendanceRecord(ctx context.Context, id string) (bool, error)
	}

	FeeRepository interface {
		CreateFeeRecord(ctx context.Context, fee FeeRecord) (FeeRecord, error)
		FilterFees(ctx context.Context, filter FeeFilter, opts core.QueryOptions) ([]FeeRecord, error)
		CountFees(ctx context.Context, filter FeeFilter) (int, error)
		DeleteFeeRecord(ctx context.Context, id string) (bool, error)
	}

	AnnouncementRepository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		FilterAnnouncements(ctx context.Context, filter AnnouncementFilter, opts core.QueryOptions) ([]Announcement, error)
		CountAnnouncements(ctx context.Context, filter AnnouncementFilter) (int, error)
		DeleteAnnouncement(ctx context.Context, id string) (bool, error)
	}

	// Service is the uniform data-access surface the dashboard API uses
	// instead of talking to the store directly. Operations never retry;
	// failures surface to the caller as-is.
	Service struct {
		classRepo ClassRepository
		attRepo   AttendanceRepository
		feeRepo   FeeRepository
		annRepo   AnnouncementRepository
	}
)

func NewService(
	classRepo ClassRepository,
	attRepo AttendanceRepository,
	feeRepo FeeRepository,
	annRepo AnnouncementRepository,
) *Service {
	return &Service{
		classRepo: classRepo,
		attRepo:   attRepo,
		feeRepo:   feeRepo,
		annRepo:   annRepo,
	}
}

// Classes

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	cls := Class{
		Name:      nc.Name,
		TeacherID: nc.TeacherID,
		CreatedAt: time.Now().UTC(),
	}
	return svc.classRepo.CreateClass(ctx, cls)
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.classRepo.GetClassByID(ctx, id)
}

func (svc *Service) Classes(ctx context.Context, filter ClassFilter, opts core.QueryOptions) ([]Class, error) {
	return svc.classRepo.FilterClasses(ctx, filter, opts)
}

func (svc *Service) ClassCount(ctx context.Context, filter ClassFilter) (int, error) {
	return svc.classRepo.CountClasses(ctx, filter)
}

func (svc *Service) DeleteClass(ctx context.Context, id string) (bool, error) {
	return svc.classRepo.DeleteClass(ctx, id)
}

// Attendance

// SubmitAttendance persists one record per sheet entry, all with the
// sheet's class and date. All-or-nothing: on error no record was stored.
func (svc *Service) SubmitAttendance(ctx context.Context, sheet AttendanceSheet) (int, error) {
	recs := make([]AttendanceRecord, 0, len(sheet.Entries))
	for _, entry := range sheet.Entries {
		recs = append(recs, AttendanceRecord{
			Date:      sheet.Date,
			ClassID:   sheet.ClassID,
			StudentID: entry.StudentID,
			Status:    entry.Status,
		})
	}
	return svc.attRepo.CreateAttendanceRecords(ctx, recs)
}

func (svc *Service) Attendance(ctx context.Context, filter AttendanceFilter, opts core.QueryOptions) ([]AttendanceRecord, error) {
	return svc.attRepo.FilterAttendance(ctx, filter, opts)
}

func (svc *Service) AttendanceCount(ctx context.Context, filter AttendanceFilter) (int, error) {
	return svc.attRepo.CountAttendance(ctx, filter)
}

func (svc *Service) DeleteAttendanceRecord(ctx context.Context, id string) (bool, error) {
	return svc.attRepo.DeleteAttendanceRecord(ctx, id)
}

// ExportAttendance renders the matching attendance records as an .xlsx
// register, most recent first.
func (svc *Service) ExportAttendance(ctx context.Context, filter AttendanceFilter) (*excelize.File, error) {
	recs, err := svc.attRepo.FilterAttendance(ctx, filter, core.QueryOptions{Ordering: []core.DBOrdering{core.ByDateDesc}})
	if err != nil {
		return nil, errors.Wrap(err, "filtering attendance")
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"Date", "Class", "Student", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err = f.SetCellValue(sheet, cell, h); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}
	for row, rec := range recs {
		values := []interface{}{rec.Date.Format("2006-01-02"), rec.ClassID, rec.StudentID, rec.Status}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err = f.SetCellValue(sheet, cell, v); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("writing row %d", row+2))
			}
		}
	}
	return f, nil
}

// Fees

func (svc *Service) CreateFee(ctx context.Context, nf NewFee) (FeeRecord, error) {
	fee := FeeRecord{
		StudentID: nf.StudentID,
		Amount:    nf.Amount,
		Status:    nf.Status,
		Date:      nf.Date,
	}
	return svc.feeRepo.CreateFeeRecord(ctx, fee)
}

func (svc *Service) Fees(ctx context.Context, filter FeeFilter, opts core.QueryOptions) ([]FeeRecord, error) {
	return svc.feeRepo.FilterFees(ctx, filter, opts)
}

func (svc *Service) FeeCount(ctx context.Context, filter FeeFilter) (int, error) {
	return svc.feeRepo.CountFees(ctx, filter)
}

func (svc *Service) DeleteFee(ctx context.Context, id string) (bool, error) {
	return svc.feeRepo.DeleteFeeRecord(ctx, id)
}

// Announcements

func (svc *Service) PublishAnnouncement(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	ann := Announcement{
		Title: na.Title,
		Text:  na.Text,
		Date:  na.Date,
	}
	return svc.annRepo.CreateAnnouncement(ctx, ann)
}

func (svc *Service) Announcements(ctx context.Context, filter AnnouncementFilter, opts core.QueryOptions) ([]Announcement, error) {
	return svc.annRepo.FilterAnnouncements(ctx, filter, opts)
}

func (svc *Service) AnnouncementCount(ctx context.Context, filter AnnouncementFilter) (int, error) {
	return svc.annRepo.CountAnnouncements(ctx, filter)
}

func (svc *Service) DeleteAnnouncement(ctx context.Context, id string) (bool, error) {
	return svc.annRepo.DeleteAnnouncement(ctx, id)
}
