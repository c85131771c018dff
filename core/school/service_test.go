package school_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
	dummydb "github.com/tsacademy/academia/storage/database/dummy"
)

func newService(t *testing.T) *school.Service {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	return school.NewService(
		dummydb.NewClassRepository(db),
		dummydb.NewAttendanceRepository(db),
		dummydb.NewFeeRepository(db),
		dummydb.NewAnnouncementRepository(db),
	)
}

func TestNewAttendanceSheet(t *testing.T) {
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	sheet := school.NewAttendanceSheet("cls1", day, []string{"s1", "s2", "s3"})

	require.Len(t, sheet.Entries, 3)
	for _, entry := range sheet.Entries {
		assert.Equal(t, school.AttendancePresent, entry.Status)
	}

	sheet.Mark("s2", school.AttendanceAbsent)
	assert.Equal(t, school.AttendanceAbsent, sheet.Entries[1].Status)
	assert.Equal(t, school.AttendancePresent, sheet.Entries[0].Status)

	// unknown student is a no-op
	sheet.Mark("nope", school.AttendanceAbsent)
	for _, entry := range sheet.Entries[2:] {
		assert.Equal(t, school.AttendancePresent, entry.Status)
	}
}

func TestService_SubmitAttendance(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	sheet := school.NewAttendanceSheet("cls1", day, []string{"s1", "s2", "s3"})
	sheet.Mark("s3", school.AttendanceAbsent)

	n, err := svc.SubmitAttendance(ctx, sheet)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := svc.Attendance(ctx, school.AttendanceFilter{ClassID: "cls1"}, core.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "cls1", rec.ClassID)
		assert.True(t, rec.Date.Equal(day))
	}

	absent, err := svc.Attendance(ctx, school.AttendanceFilter{ClassID: "cls1", Status: school.AttendanceAbsent}, core.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, "s3", absent[0].StudentID)
}

func TestService_ExportAttendance(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	older := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	_, err := svc.SubmitAttendance(ctx, school.NewAttendanceSheet("cls1", older, []string{"s1"}))
	require.NoError(t, err)
	_, err = svc.SubmitAttendance(ctx, school.NewAttendanceSheet("cls1", newer, []string{"s1"}))
	require.NoError(t, err)

	f, err := svc.ExportAttendance(ctx, school.AttendanceFilter{ClassID: "cls1"})
	require.NoError(t, err)
	sheet := f.GetSheetName(0)

	header, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	// most recent first
	firstDate, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", firstDate)
	secondDate, err := f.GetCellValue(sheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", secondDate)

	status, err := f.GetCellValue(sheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, school.AttendancePresent, status)
}

func TestService_DeleteClassIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cls, err := svc.CreateClass(ctx, school.NewClass{Name: "Form 1A", TeacherID: "t1"})
	require.NoError(t, err)

	existed, err := svc.DeleteClass(ctx, cls.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = svc.DeleteClass(ctx, cls.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestService_AnnouncementsOrderAndLimit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// empty board is an empty sequence, not an error
	anns, err := svc.Announcements(ctx, school.AnnouncementFilter{},
		core.QueryOptions{Ordering: []core.DBOrdering{core.ByDateDesc}, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, anns)

	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		_, err = svc.PublishAnnouncement(ctx, school.NewAnnouncement{
			Title: "Notice",
			Text:  "text",
			Date:  now.Add(time.Duration(-i) * time.Hour),
		})
		require.NoError(t, err)
	}

	anns, err = svc.Announcements(ctx, school.AnnouncementFilter{},
		core.QueryOptions{Ordering: []core.DBOrdering{core.ByDateDesc}, Limit: 3})
	require.NoError(t, err)
	require.Len(t, anns, 3)
	for i := 1; i < len(anns); i++ {
		assert.True(t, anns[i].Date.Before(anns[i-1].Date))
	}
}
