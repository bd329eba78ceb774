package inmemdb

import (
	"sync"

	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

type (
	// DB is a process-local store. Each table has its own lock; repositories hand out copies.
	DB struct {
		org         *orgTable
		roster      *rosterTable
		recitation  *recordTable
		message     *logTable
		integration *integrationTable
	}

	orgTable struct {
		sync.RWMutex
		orgs  map[string]*org.Organization
		users map[string]*org.User
	}

	// rosterTable guards courses, halaqat and students together so that seat assignment is atomic.
	rosterTable struct {
		sync.RWMutex
		courses  map[string]*roster.Course
		halaqat  map[string]*roster.Halaqa
		students map[string]*roster.Student
		plans    map[planKey]*roster.DailyPlan
	}

	planKey struct {
		courseID string
		date     string
	}

	recordTable struct {
		sync.RWMutex
		table map[recordKey]*recitation.Record
	}

	recordKey struct {
		studentID string
		date      string
	}

	logTable struct {
		sync.RWMutex
		logs []message.Log
	}

	integrationTable struct {
		sync.RWMutex
		connections map[string]*integration.Connection
		assets      map[string]*integration.Asset
	}
)

func Open() *DB {
	return &DB{
		org: &orgTable{
			orgs:  make(map[string]*org.Organization),
			users: make(map[string]*org.User),
		},
		roster: &rosterTable{
			courses:  make(map[string]*roster.Course),
			halaqat:  make(map[string]*roster.Halaqa),
			students: make(map[string]*roster.Student),
			plans:    make(map[planKey]*roster.DailyPlan),
		},
		recitation:  &recordTable{table: make(map[recordKey]*recitation.Record)},
		message:     &logTable{},
		integration: &integrationTable{
			connections: make(map[string]*integration.Connection),
			assets:      make(map[string]*integration.Asset),
		},
	}
}
