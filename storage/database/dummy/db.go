package dummydb

import (
	"sync"

	"github.com/tsacademy/academia/core/school"
	"github.com/tsacademy/academia/core/user"
)

type (
	DB struct {
		user         *userTable
		class        *classTable
		attendance   *attendanceTable
		fee          *feeTable
		announcement *announcementTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.Identity
	}

	classTable struct {
		sync.RWMutex
		table map[string]*school.Class
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*school.AttendanceRecord
	}

	feeTable struct {
		sync.RWMutex
		table map[string]*school.FeeRecord
	}

	announcementTable struct {
		sync.RWMutex
		table map[string]*school.Announcement
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.Identity)},
		class:        &classTable{table: make(map[string]*school.Class)},
		attendance:   &attendanceTable{table: make(map[string]*school.AttendanceRecord)},
		fee:          &feeTable{table: make(map[string]*school.FeeRecord)},
		announcement: &announcementTable{table: make(map[string]*school.Announcement)},
	}
	return db, nil
}
