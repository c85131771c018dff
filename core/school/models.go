package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tsacademy/academia/core"
)

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// Fee statuses
const (
	FeePaid    = "paid"
	FeePending = "pending"
)

type (
	// Class groups students under a teacher. TeacherID references an
	// Identity with the teacher role; the store does not enforce it.
	Class struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		TeacherID string    `json:"teacher_id"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// AttendanceRecord is one student's status for one class on one day.
	// One record per (student, class, date) is expected; uniqueness is not
	// enforced and duplicates are a known gap.
	AttendanceRecord struct {
		ID        string    `json:"id"`
		Date      time.Time `json:"date"` // UTC
		ClassID   string    `json:"class_id"`
		StudentID string    `json:"student_id"`
		Status    string    `json:"status"`
	}

	FeeRecord struct {
		ID        string    `json:"id"`
		StudentID string    `json:"student_id"`
		Amount    float64   `json:"amount"`
		Status    string    `json:"status"`
		Date      time.Time `json:"date"` // UTC
	}

	// Announcement is global; it is not scoped to a class or role.
	Announcement struct {
		ID    string    `json:"id"`
		Title string    `json:"title"`
		Text  string    `json:"text"`
		Date  time.Time `json:"date"` // UTC
	}
)

// NewClass contains information needed to create a Class.
type NewClass struct {
	Name      string `json:"name" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.TeacherID = core.CleanString(nc.TeacherID)
	return validate.Struct(nc)
}

// AttendanceEntry is one student's status within an AttendanceSheet.
type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
}

// AttendanceSheet is a batch attendance submission for one class and day.
// It commits all-or-nothing.
type AttendanceSheet struct {
	ClassID string            `json:"class_id" validate:"required"`
	Date    time.Time         `json:"date"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// NewAttendanceSheet builds a sheet with one entry per student, everyone
// defaulted to present; callers mark absences before submitting.
func NewAttendanceSheet(classID string, date time.Time, studentIDs []string) AttendanceSheet {
	entries := make([]AttendanceEntry, 0, len(studentIDs))
	for _, id := range studentIDs {
		entries = append(entries, AttendanceEntry{StudentID: id, Status: AttendancePresent})
	}
	return AttendanceSheet{ClassID: classID, Date: date, Entries: entries}
}

// Mark overrides the status of one student on the sheet.
func (sh *AttendanceSheet) Mark(studentID, status string) {
	for i := range sh.Entries {
		if sh.Entries[i].StudentID == studentID {
			sh.Entries[i].Status = status
			return
		}
	}
}

func (sh *AttendanceSheet) Validate(validate *validator.Validate) error {
	sh.ClassID = core.CleanString(sh.ClassID)
	if sh.Date.IsZero() {
		sh.Date = time.Now().UTC()
	}
	return validate.Struct(sh)
}

// NewFee contains information needed to record a FeeRecord.
type NewFee struct {
	StudentID string    `json:"student_id" validate:"required"`
	Amount    float64   `json:"amount" validate:"gte=0"`
	Status    string    `json:"status" validate:"required,oneof=paid pending"`
	Date      time.Time `json:"date"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.StudentID = core.CleanString(nf.StudentID)
	if nf.Date.IsZero() {
		nf.Date = time.Now().UTC()
	}
	return validate.Struct(nf)
}

// NewAnnouncement contains information needed to publish an Announcement.
type NewAnnouncement struct {
	Title string    `json:"title" validate:"required"`
	Text  string    `json:"text" validate:"required"`
	Date  time.Time `json:"date"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Text = core.CleanString(na.Text)
	if na.Date.IsZero() {
		na.Date = time.Now().UTC()
	}
	return validate.Struct(na)
}

// Filters. Each is an exact-match conjunction over its non-empty fields.

type ClassFilter struct {
	TeacherID string `query:"teacher_id"`
}

type AttendanceFilter struct {
	ClassID   string    `query:"class_id"`
	StudentID string    `query:"student_id"`
	Status    string    `query:"status"`
	DateFrom  time.Time `query:"date_from"`
	DateTo    time.Time `query:"date_to"`
}

type FeeFilter struct {
	StudentID string `query:"student_id"`
	Status    string `query:"status"`
}

type AnnouncementFilter struct {
	DateFrom time.Time `query:"date_from"`
	DateTo   time.Time `query:"date_to"`
}
