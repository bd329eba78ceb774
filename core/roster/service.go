package roster

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
)

var (
	// errors
	ErrCourseNotFound    = &core.NotFoundError{Entity: "course"}
	ErrHalaqaNotFound    = &core.NotFoundError{Entity: "halaqa"}
	ErrStudentNotFound   = &core.NotFoundError{Entity: "student"}
	ErrPlanNotFound      = &core.NotFoundError{Entity: "daily plan"}
	ErrCapacityExceeded  = &core.ConflictError{Msg: "halaqa is at full capacity"}
	ErrInvalidStatus     = &core.ConflictError{Msg: "only accepted students can be assigned to a halaqa"}
	ErrCourseLimit       = &core.ConflictError{Msg: "course limit of the organization's plan reached"}
	ErrCourseMismatch    = &core.ConflictError{Msg: "student and halaqa belong to different courses"}
	ErrTeacherNotAllowed = core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "unknown teacher"})

	searchMinScore = .5
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, orgID string) ([]Course, error)

		CreateHalaqa(ctx context.Context, h Halaqa) (Halaqa, error)
		UpdateHalaqa(ctx context.Context, h Halaqa) (Halaqa, error)
		GetHalaqa(ctx context.Context, id string) (Halaqa, error)
		QueryHalaqat(ctx context.Context, filter HalaqaFilter) ([]Halaqa, error)

		CreateStudents(ctx context.Context, students ...Student) ([]Student, error)
		// SetStudentStatus writes the status and, unless it is ACCEPTED, clears the seat in one step.
		SetStudentStatus(ctx context.Context, studentID string, status StudentStatus, at time.Time) (Student, error)
		// ClearStudentHalaqa empties the seat, leaving the status untouched.
		ClearStudentHalaqa(ctx context.Context, studentID string, at time.Time) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		// AssignStudent seats an ACCEPTED student in the halaqa.
		// The capacity check and the write happen atomically: ErrCapacityExceeded | ErrInvalidStatus.
		AssignStudent(ctx context.Context, studentID, halaqaID string, at time.Time) (Student, error)

		UpsertDailyPlan(ctx context.Context, p DailyPlan) (DailyPlan, error)
		GetDailyPlan(ctx context.Context, courseID string, date core.Date) (DailyPlan, error)
		QueryDailyPlans(ctx context.Context, courseID string, from, to core.Date) ([]DailyPlan, error)
	}

	// Directory gives access to organizations and their users.
	Directory interface {
		GetOrganization(ctx context.Context, id string) (org.Organization, error)
		GetUser(ctx context.Context, id string) (org.User, error)
	}

	Service struct {
		repo     Repository
		dir      Directory
		validate *validator.Validate
		conf     *core.Config
	}
)

func NewService(repo Repository, dir Directory, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{repo: repo, dir: dir, validate: validate, conf: conf}
}

// Courses

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	o, err := svc.dir.GetOrganization(ctx, nc.OrgID)
	if err != nil {
		return Course{}, errors.Wrap(err, "getting organization")
	}
	if o.Plan == org.PlanFree && svc.conf.Plans.FreeMaxCourses > 0 {
		courses, err := svc.repo.QueryCourses(ctx, o.ID)
		if err != nil {
			return Course{}, errors.Wrap(err, "querying courses")
		}
		if len(courses) >= svc.conf.Plans.FreeMaxCourses {
			return Course{}, ErrCourseLimit
		}
	}

	now := time.Now().UTC()
	c := Course{
		ID:             core.NewID(),
		OrgID:          nc.OrgID,
		Name:           nc.Name,
		Type:           nc.Type,
		DailyAmount:    nc.DailyAmount,
		StartDate:      nc.StartDate,
		EndDate:        nc.EndDate,
		MidtermDate:    nc.MidtermDate,
		FinalExamDate:  nc.FinalExamDate,
		RecitationDays: nc.RecitationDays,
		PassingScore:   svc.conf.Roster.DefaultPassingScore,
		LogoURL:        nc.LogoURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(c.RecitationDays) == 0 {
		c.RecitationDays = append([]int(nil), svc.conf.Roster.DefaultRecitationDays...)
	}
	if nc.PassingScore != nil {
		c.PassingScore = *nc.PassingScore
	}
	if err := c.checkDates(); err != nil {
		return Course{}, err
	}
	return svc.repo.CreateCourse(ctx, c)
}

// UpdateCourse merges the set fields of uc into the course and revalidates the result.
func (svc *Service) UpdateCourse(ctx context.Context, courseID string, uc UpdateCourse) (Course, error) {
	if err := uc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	orig, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	c := uc.merge(orig)
	if err := c.checkDates(); err != nil {
		return Course{}, err
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) QueryCourses(ctx context.Context, orgID string) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, orgID)
}

// Halaqat

func (svc *Service) CreateHalaqa(ctx context.Context, nh NewHalaqa) (Halaqa, error) {
	if err := nh.Validate(svc.validate); err != nil {
		return Halaqa{}, err
	}
	c, err := svc.repo.GetCourse(ctx, nh.CourseID)
	if err != nil {
		return Halaqa{}, err
	}
	if err := svc.checkTeacher(ctx, c.OrgID, nh.TeacherID); err != nil {
		return Halaqa{}, err
	}

	now := time.Now().UTC()
	h := Halaqa{
		ID:        core.NewID(),
		OrgID:     c.OrgID,
		CourseID:  c.ID,
		Name:      nh.Name,
		TeacherID: nh.TeacherID,
		Capacity:  nh.Capacity,
		ChannelID: nh.ChannelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateHalaqa(ctx, h)
}

func (svc *Service) UpdateHalaqa(ctx context.Context, halaqaID string, uh UpdateHalaqa) (Halaqa, error) {
	if err := uh.Validate(svc.validate); err != nil {
		return Halaqa{}, err
	}
	h, err := svc.repo.GetHalaqa(ctx, halaqaID)
	if err != nil {
		return Halaqa{}, err
	}
	if uh.Name != nil {
		h.Name = core.CleanString(*uh.Name)
	}
	if uh.TeacherID != nil {
		if err := svc.checkTeacher(ctx, h.OrgID, *uh.TeacherID); err != nil {
			return Halaqa{}, err
		}
		h.TeacherID = *uh.TeacherID
	}
	if uh.Capacity != nil {
		seated, err := svc.repo.QueryStudents(ctx, StudentFilter{HalaqaID: h.ID})
		if err != nil {
			return Halaqa{}, errors.Wrap(err, "querying seated students")
		}
		if *uh.Capacity < len(seated) {
			return Halaqa{}, core.NewValidationError(nil, core.FieldError{
				Field: "capacity",
				Error: "capacity cannot be lower than the number of seated students",
			})
		}
		h.Capacity = *uh.Capacity
	}
	if uh.ChannelID != nil {
		h.ChannelID = core.CleanString(*uh.ChannelID)
	}
	h.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateHalaqa(ctx, h)
}

func (svc *Service) checkTeacher(ctx context.Context, orgID, teacherID string) error {
	usr, err := svc.dir.GetUser(ctx, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return ErrTeacherNotAllowed
		}
		return errors.Wrap(err, "getting teacher")
	}
	if usr.OrgID != orgID {
		return ErrTeacherNotAllowed
	}
	return nil
}

func (svc *Service) GetHalaqa(ctx context.Context, id string) (Halaqa, error) {
	return svc.repo.GetHalaqa(ctx, id)
}

func (svc *Service) QueryHalaqat(ctx context.Context, filter HalaqaFilter) ([]Halaqa, error) {
	return svc.repo.QueryHalaqat(ctx, filter)
}

// TeacherHalaqat returns the circles led by the teacher.
func (svc *Service) TeacherHalaqat(ctx context.Context, teacherID string) ([]Halaqa, error) {
	return svc.repo.QueryHalaqat(ctx, HalaqaFilter{TeacherID: teacherID})
}

// TeacherCount returns the number of distinct teachers leading a circle of the course.
func (svc *Service) TeacherCount(ctx context.Context, courseID string) (int, error) {
	halaqat, err := svc.repo.QueryHalaqat(ctx, HalaqaFilter{CourseID: courseID})
	if err != nil {
		return 0, err
	}
	teachers := make(map[string]struct{}, len(halaqat))
	for _, h := range halaqat {
		teachers[h.TeacherID] = struct{}{}
	}
	return len(teachers), nil
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	c, err := svc.repo.GetCourse(ctx, ns.CourseID)
	if err != nil {
		return Student{}, err
	}
	students, err := svc.repo.CreateStudents(ctx, svc.newStudent(c, ns.Name, ns.Phone, ns.Gender, time.Now().UTC()))
	if err != nil {
		return Student{}, err
	}
	return students[0], nil
}

func (svc *Service) newStudent(c Course, name, phone string, gender Gender, now time.Time) Student {
	return Student{
		ID:        core.NewID(),
		OrgID:     c.OrgID,
		CourseID:  c.ID,
		Name:      core.CleanString(name),
		Phone:     core.CleanString(phone),
		Gender:    gender,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ImportStudents inserts one NEW student per row. Rows are never deduplicated.
func (svc *Service) ImportStudents(ctx context.Context, orgID, courseID string, rows []ImportRow) (int, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if c.OrgID != orgID {
		return 0, ErrCourseNotFound
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	students := make([]Student, 0, len(rows))
	for i, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "row " + strconv.Itoa(i+1) + ": name is required"})
		}
		if !row.Gender.Valid() {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "gender", Error: "row " + strconv.Itoa(i+1) + ": invalid gender"})
		}
		students = append(students, svc.newStudent(c, row.Name, row.Phone, row.Gender, now))
	}
	created, err := svc.repo.CreateStudents(ctx, students...)
	if err != nil {
		return 0, errors.Wrap(err, "creating students")
	}
	return len(created), nil
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

// AssignStudentToHalaqa seats an accepted student in the halaqa. Re-assigning to the same halaqa is a no-op.
func (svc *Service) AssignStudentToHalaqa(ctx context.Context, studentID, halaqaID string) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	h, err := svc.repo.GetHalaqa(ctx, halaqaID)
	if err != nil {
		return Student{}, err
	}
	if s.Status != StatusAccepted {
		return Student{}, ErrInvalidStatus
	}
	if s.CourseID != h.CourseID {
		return Student{}, ErrCourseMismatch
	}
	if s.HalaqaID == h.ID {
		return s, nil
	}
	return svc.repo.AssignStudent(ctx, s.ID, h.ID, time.Now().UTC())
}

// UnassignStudent removes the student from their halaqa.
func (svc *Service) UnassignStudent(ctx context.Context, studentID string) (Student, error) {
	return svc.repo.ClearStudentHalaqa(ctx, studentID, time.Now().UTC())
}

// ChangeStudentStatus allows any transition. Leaving ACCEPTED clears the halaqa seat.
func (svc *Service) ChangeStudentStatus(ctx context.Context, studentID string, status StudentStatus) (Student, error) {
	if !status.Valid() {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: statusText})
	}
	return svc.repo.SetStudentStatus(ctx, studentID, status, time.Now().UTC())
}

// SearchStudents ranks the organization's students by name similarity with the query.
func (svc *Service) SearchStudents(ctx context.Context, orgID, query string, limit int) ([]StudentMatch, error) {
	query = core.CleanString(query, true /* lower */)
	if query == "" {
		return []StudentMatch{}, nil
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{OrgID: orgID})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	qChars := strings.Split(query, "")
	matches := make([]StudentMatch, 0)
	for _, s := range students {
		name := strings.ToLower(s.Name)
		var score float64
		if strings.Contains(name, query) || strings.Contains(s.Phone, query) {
			score = 1
		} else {
			score = difflib.NewMatcher(qChars, strings.Split(name, "")).Ratio()
		}
		if score >= searchMinScore {
			matches = append(matches, StudentMatch{Student: s, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Student.Name < matches[j].Student.Name
		}
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Daily plans

// SetDailyPlan creates or replaces the plan of the course for the given date. A replaced plan keeps its id.
func (svc *Service) SetDailyPlan(ctx context.Context, courseID string, np NewDailyPlan) (DailyPlan, error) {
	if err := np.Validate(svc.validate); err != nil {
		return DailyPlan{}, err
	}
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return DailyPlan{}, err
	}
	if !c.Active(np.Date) {
		return DailyPlan{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must fall within the course"})
	}
	return svc.repo.UpsertDailyPlan(ctx, DailyPlan{
		ID:       core.NewID(),
		CourseID: c.ID,
		Date:     np.Date,
		Text:     np.Text,
		IsExam:   np.IsExam,
	})
}

func (svc *Service) GetDailyPlan(ctx context.Context, courseID string, date core.Date) (DailyPlan, error) {
	return svc.repo.GetDailyPlan(ctx, courseID, date)
}

func (svc *Service) QueryDailyPlans(ctx context.Context, courseID string, from, to core.Date) ([]DailyPlan, error) {
	return svc.repo.QueryDailyPlans(ctx, courseID, from, to)
}
