package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/roster"
)

type rosterRepository struct {
	db *rosterTable
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db.roster}
}

// Courses

func copyCourse(c *roster.Course) roster.Course {
	cc := *c
	cc.RecitationDays = append([]int(nil), c.RecitationDays...)
	return cc
}

func (repo *rosterRepository) CreateCourse(_ context.Context, c roster.Course) (roster.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	cc := copyCourse(&c)
	repo.db.courses[c.ID] = &cc
	return c, nil
}

func (repo *rosterRepository) UpdateCourse(_ context.Context, c roster.Course) (roster.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.courses[c.ID]; !ok {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	cc := copyCourse(&c)
	repo.db.courses[c.ID] = &cc
	return c, nil
}

func (repo *rosterRepository) GetCourse(_ context.Context, id string) (roster.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if c, ok := repo.db.courses[id]; ok {
		return copyCourse(c), nil
	}
	return roster.Course{}, roster.ErrCourseNotFound
}

func (repo *rosterRepository) QueryCourses(_ context.Context, orgID string) ([]roster.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	courses := make([]roster.Course, 0)
	for _, c := range repo.db.courses {
		if orgID == "" || c.OrgID == orgID {
			courses = append(courses, copyCourse(c))
		}
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].StartDate != courses[j].StartDate {
			return courses[i].StartDate > courses[j].StartDate
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

// Halaqat

func (repo *rosterRepository) CreateHalaqa(_ context.Context, h roster.Halaqa) (roster.Halaqa, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.halaqat[h.ID] = &h
	return h, nil
}

// UpdateHalaqa refuses to shrink the capacity below the seated students.
func (repo *rosterRepository) UpdateHalaqa(_ context.Context, h roster.Halaqa) (roster.Halaqa, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.halaqat[h.ID]; !ok {
		return roster.Halaqa{}, roster.ErrHalaqaNotFound
	}
	if repo.seated(h.ID) > h.Capacity {
		return roster.Halaqa{}, roster.ErrCapacityExceeded
	}
	repo.db.halaqat[h.ID] = &h
	return h, nil
}

func (repo *rosterRepository) GetHalaqa(_ context.Context, id string) (roster.Halaqa, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if h, ok := repo.db.halaqat[id]; ok {
		return *h, nil
	}
	return roster.Halaqa{}, roster.ErrHalaqaNotFound
}

func (repo *rosterRepository) QueryHalaqat(_ context.Context, filter roster.HalaqaFilter) ([]roster.Halaqa, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	halaqat := make([]roster.Halaqa, 0)
	for _, h := range repo.db.halaqat {
		switch {
		case filter.OrgID != "" && h.OrgID != filter.OrgID:
		case filter.CourseID != "" && h.CourseID != filter.CourseID:
		case filter.TeacherID != "" && h.TeacherID != filter.TeacherID:
		default:
			halaqat = append(halaqat, *h)
		}
	}
	sort.Slice(halaqat, func(i, j int) bool { return halaqat[i].Name < halaqat[j].Name })
	return halaqat, nil
}

// seated counts the students of a halaqa. Callers hold the lock.
func (repo *rosterRepository) seated(halaqaID string) int {
	n := 0
	for _, s := range repo.db.students {
		if s.HalaqaID == halaqaID {
			n++
		}
	}
	return n
}

// Students

func (repo *rosterRepository) CreateStudents(_ context.Context, students ...roster.Student) ([]roster.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	for i := range students {
		s := students[i]
		repo.db.students[s.ID] = &s
	}
	return students, nil
}

func (repo *rosterRepository) SetStudentStatus(_ context.Context, studentID string, status roster.StudentStatus, at time.Time) (roster.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	s, ok := repo.db.students[studentID]
	if !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	s.Status = status
	if status != roster.StatusAccepted {
		s.HalaqaID = ""
	}
	s.UpdatedAt = at
	return *s, nil
}

func (repo *rosterRepository) ClearStudentHalaqa(_ context.Context, studentID string, at time.Time) (roster.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	s, ok := repo.db.students[studentID]
	if !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	if s.HalaqaID != "" {
		s.HalaqaID = ""
		s.UpdatedAt = at
	}
	return *s, nil
}

func (repo *rosterRepository) GetStudent(_ context.Context, id string) (roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if s, ok := repo.db.students[id]; ok {
		return *s, nil
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) QueryStudents(_ context.Context, filter roster.StudentFilter) ([]roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	students := make([]roster.Student, 0)
	for _, s := range repo.db.students {
		switch {
		case filter.OrgID != "" && s.OrgID != filter.OrgID:
		case filter.CourseID != "" && s.CourseID != filter.CourseID:
		case filter.HalaqaID != "" && s.HalaqaID != filter.HalaqaID:
		case len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, s.Status):
		default:
			students = append(students, *s)
		}
	}
	sortStudents(students, filter.Ordering)
	return students, nil
}

// AssignStudent checks the seat and writes it under the same lock.
func (repo *rosterRepository) AssignStudent(_ context.Context, studentID, halaqaID string, at time.Time) (roster.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	s, ok := repo.db.students[studentID]
	if !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	if s.HalaqaID == halaqaID {
		return *s, nil
	}
	if err := repo.checkSeat(*s, halaqaID); err != nil {
		return roster.Student{}, err
	}
	s.HalaqaID = halaqaID
	s.UpdatedAt = at
	return *s, nil
}

func (repo *rosterRepository) checkSeat(s roster.Student, halaqaID string) error {
	h, ok := repo.db.halaqat[halaqaID]
	if !ok {
		return roster.ErrHalaqaNotFound
	}
	if s.Status != roster.StatusAccepted {
		return roster.ErrInvalidStatus
	}
	if repo.seated(halaqaID) >= h.Capacity {
		return roster.ErrCapacityExceeded
	}
	return nil
}

func hasStatus(statuses []roster.StudentStatus, st roster.StudentStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// sortStudents orders by the given fields (name, created_at), then by id.
func sortStudents(students []roster.Student, ordering []core.DBOrdering) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "name":
				less, greater = a.Name < b.Name, a.Name > b.Name
			case "created_at":
				less, greater = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.After(b.CreatedAt)
			case "status":
				less, greater = a.Status < b.Status, a.Status > b.Status
			default:
				continue
			}
			if !less && !greater {
				continue
			}
			if ord.Ascending {
				return less
			}
			return greater
		}
		return a.ID < b.ID
	})
}

// Daily plans

func (repo *rosterRepository) UpsertDailyPlan(_ context.Context, p roster.DailyPlan) (roster.DailyPlan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	key := planKey{p.CourseID, string(p.Date)}
	if old, ok := repo.db.plans[key]; ok {
		p.ID = old.ID
	}
	repo.db.plans[key] = &p
	return p, nil
}

func (repo *rosterRepository) GetDailyPlan(_ context.Context, courseID string, date core.Date) (roster.DailyPlan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.plans[planKey{courseID, string(date)}]; ok {
		return *p, nil
	}
	return roster.DailyPlan{}, roster.ErrPlanNotFound
}

func (repo *rosterRepository) QueryDailyPlans(_ context.Context, courseID string, from, to core.Date) ([]roster.DailyPlan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	plans := make([]roster.DailyPlan, 0)
	for _, p := range repo.db.plans {
		if p.CourseID != courseID {
			continue
		}
		if (from != "" && p.Date.Before(from)) || (to != "" && p.Date.After(to)) {
			continue
		}
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Date < plans[j].Date })
	return plans, nil
}
