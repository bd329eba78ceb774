package pgdb

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/roster"
)

const (
	courseColumns  = "id, org_id, name, type, daily_amount, start_date, end_date, midterm_date, final_exam_date, recitation_days, passing_score, logo_url, created_at, updated_at"
	halaqaColumns  = "id, org_id, course_id, name, teacher_id, capacity, channel_id, created_at, updated_at"
	studentColumns = "id, org_id, course_id, name, phone, gender, status, halaqa_id, created_at, updated_at"
)

type (
	courseRow struct {
		ID             string            `db:"id"`
		OrgID          string            `db:"org_id"`
		Name           string            `db:"name"`
		Type           roster.CourseType `db:"type"`
		DailyAmount    string            `db:"daily_amount"`
		StartDate      core.Date         `db:"start_date"`
		EndDate        core.Date         `db:"end_date"`
		MidtermDate    core.Date         `db:"midterm_date"`
		FinalExamDate  core.Date         `db:"final_exam_date"`
		RecitationDays pq.Int64Array     `db:"recitation_days"`
		PassingScore   int               `db:"passing_score"`
		LogoURL        null.String       `db:"logo_url"`
		CreatedAt      time.Time         `db:"created_at"`
		UpdatedAt      time.Time         `db:"updated_at"`
	}

	halaqaRow struct {
		ID        string      `db:"id"`
		OrgID     string      `db:"org_id"`
		CourseID  string      `db:"course_id"`
		Name      string      `db:"name"`
		TeacherID string      `db:"teacher_id"`
		Capacity  int         `db:"capacity"`
		ChannelID null.String `db:"channel_id"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}

	studentRow struct {
		ID        string               `db:"id"`
		OrgID     string               `db:"org_id"`
		CourseID  string               `db:"course_id"`
		Name      string               `db:"name"`
		Phone     string               `db:"phone"`
		Gender    roster.Gender        `db:"gender"`
		Status    roster.StudentStatus `db:"status"`
		HalaqaID  null.String          `db:"halaqa_id"`
		CreatedAt time.Time            `db:"created_at"`
		UpdatedAt time.Time            `db:"updated_at"`
	}
)

func (r courseRow) course() roster.Course {
	days := make([]int, len(r.RecitationDays))
	for i, d := range r.RecitationDays {
		days[i] = int(d)
	}
	return roster.Course{
		ID:             r.ID,
		OrgID:          r.OrgID,
		Name:           r.Name,
		Type:           r.Type,
		DailyAmount:    r.DailyAmount,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		MidtermDate:    r.MidtermDate,
		FinalExamDate:  r.FinalExamDate,
		RecitationDays: days,
		PassingScore:   r.PassingScore,
		LogoURL:        r.LogoURL.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func recitationDays(days []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(days))
	for i, d := range days {
		arr[i] = int64(d)
	}
	return arr
}

func (r halaqaRow) halaqa() roster.Halaqa {
	return roster.Halaqa{
		ID:        r.ID,
		OrgID:     r.OrgID,
		CourseID:  r.CourseID,
		Name:      r.Name,
		TeacherID: r.TeacherID,
		Capacity:  r.Capacity,
		ChannelID: r.ChannelID.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r studentRow) student() roster.Student {
	return roster.Student{
		ID:        r.ID,
		OrgID:     r.OrgID,
		CourseID:  r.CourseID,
		Name:      r.Name,
		Phone:     r.Phone,
		Gender:    r.Gender,
		Status:    r.Status,
		HalaqaID:  r.HalaqaID.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type rosterRepository struct {
	db *sqlx.DB
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *sqlx.DB) roster.Repository {
	return &rosterRepository{db: db}
}

// Courses

func (repo *rosterRepository) CreateCourse(ctx context.Context, c roster.Course) (roster.Course, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO courses ("+courseColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		c.ID, c.OrgID, c.Name, c.Type, c.DailyAmount, c.StartDate, c.EndDate, c.MidtermDate, c.FinalExamDate,
		recitationDays(c.RecitationDays), c.PassingScore, nullString(c.LogoURL), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return roster.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *rosterRepository) UpdateCourse(ctx context.Context, c roster.Course) (roster.Course, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE courses SET name = $2, type = $3, daily_amount = $4, start_date = $5, end_date = $6, midterm_date = $7,
		final_exam_date = $8, recitation_days = $9, passing_score = $10, logo_url = $11, updated_at = $12 WHERE id = $1`,
		c.ID, c.Name, c.Type, c.DailyAmount, c.StartDate, c.EndDate, c.MidtermDate, c.FinalExamDate,
		recitationDays(c.RecitationDays), c.PassingScore, nullString(c.LogoURL), c.UpdatedAt)
	if err != nil {
		return roster.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	return c, nil
}

func (repo *rosterRepository) GetCourse(ctx context.Context, id string) (roster.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id); err != nil {
		if isNoRows(err) {
			return roster.Course{}, roster.ErrCourseNotFound
		}
		return roster.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.course(), nil
}

func (repo *rosterRepository) QueryCourses(ctx context.Context, orgID string) ([]roster.Course, error) {
	var w where
	if orgID != "" {
		w.add("org_id = ?", orgID)
	}
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+courseColumns+" FROM courses"+w.String()+" ORDER BY start_date DESC, id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]roster.Course, len(rows))
	for i, r := range rows {
		courses[i] = r.course()
	}
	return courses, nil
}

// Halaqat

func (repo *rosterRepository) CreateHalaqa(ctx context.Context, h roster.Halaqa) (roster.Halaqa, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO halaqat ("+halaqaColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		h.ID, h.OrgID, h.CourseID, h.Name, h.TeacherID, h.Capacity, nullString(h.ChannelID), h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return roster.Halaqa{}, errors.Wrap(err, "inserting halaqa")
	}
	return h, nil
}

// UpdateHalaqa refuses to shrink the capacity below the seated students.
func (repo *rosterRepository) UpdateHalaqa(ctx context.Context, h roster.Halaqa) (roster.Halaqa, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE halaqat SET name = $2, teacher_id = $3, capacity = $4, channel_id = $5, updated_at = $6
		WHERE id = $1 AND (SELECT COUNT(*) FROM students WHERE halaqa_id = $1) <= $4`,
		h.ID, h.Name, h.TeacherID, h.Capacity, nullString(h.ChannelID), h.UpdatedAt)
	if err != nil {
		return roster.Halaqa{}, errors.Wrap(err, "updating halaqa")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return roster.Halaqa{}, errors.Wrap(err, "updating halaqa")
	}
	if n == 0 {
		if _, err = repo.GetHalaqa(ctx, h.ID); err != nil {
			return roster.Halaqa{}, err
		}
		return roster.Halaqa{}, roster.ErrCapacityExceeded
	}
	return h, nil
}

func (repo *rosterRepository) GetHalaqa(ctx context.Context, id string) (roster.Halaqa, error) {
	var row halaqaRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+halaqaColumns+" FROM halaqat WHERE id = $1", id); err != nil {
		if isNoRows(err) {
			return roster.Halaqa{}, roster.ErrHalaqaNotFound
		}
		return roster.Halaqa{}, errors.Wrap(err, "selecting halaqa")
	}
	return row.halaqa(), nil
}

func (repo *rosterRepository) QueryHalaqat(ctx context.Context, filter roster.HalaqaFilter) ([]roster.Halaqa, error) {
	var w where
	if filter.OrgID != "" {
		w.add("org_id = ?", filter.OrgID)
	}
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.TeacherID != "" {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	var rows []halaqaRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+halaqaColumns+" FROM halaqat"+w.String()+" ORDER BY name", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting halaqat")
	}
	halaqat := make([]roster.Halaqa, len(rows))
	for i, r := range rows {
		halaqat[i] = r.halaqa()
	}
	return halaqat, nil
}

// Students

func (repo *rosterRepository) CreateStudents(ctx context.Context, students ...roster.Student) ([]roster.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO students ("+studentColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)")
	if err != nil {
		return nil, errors.Wrap(err, "preparing student insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range students {
		_, err = stmt.ExecContext(ctx, s.ID, s.OrgID, s.CourseID, s.Name, s.Phone, s.Gender, s.Status,
			nullString(s.HalaqaID), s.CreatedAt, s.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "inserting student")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing students")
	}
	return students, nil
}

func (repo *rosterRepository) SetStudentStatus(ctx context.Context, studentID string, status roster.StudentStatus, at time.Time) (roster.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE students SET status = $2::text,
		halaqa_id = CASE WHEN $2::text = 'ACCEPTED' THEN halaqa_id END, updated_at = $3
		WHERE id = $1 RETURNING `+studentColumns,
		studentID, status, at)
	if err != nil {
		if isNoRows(err) {
			return roster.Student{}, roster.ErrStudentNotFound
		}
		return roster.Student{}, errors.Wrap(err, "updating student status")
	}
	return row.student(), nil
}

func (repo *rosterRepository) ClearStudentHalaqa(ctx context.Context, studentID string, at time.Time) (roster.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE students SET halaqa_id = NULL,
		updated_at = CASE WHEN halaqa_id IS NULL THEN updated_at ELSE $2 END
		WHERE id = $1 RETURNING `+studentColumns,
		studentID, at)
	if err != nil {
		if isNoRows(err) {
			return roster.Student{}, roster.ErrStudentNotFound
		}
		return roster.Student{}, errors.Wrap(err, "clearing student halaqa")
	}
	return row.student(), nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	var row studentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		if isNoRows(err) {
			return roster.Student{}, roster.ErrStudentNotFound
		}
		return roster.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.student(), nil
}

var studentOrderFields = map[string]bool{"name": true, "created_at": true, "status": true}

func (repo *rosterRepository) QueryStudents(ctx context.Context, filter roster.StudentFilter) ([]roster.Student, error) {
	var w where
	if filter.OrgID != "" {
		w.add("org_id = ?", filter.OrgID)
	}
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.HalaqaID != "" {
		w.add("halaqa_id = ?", filter.HalaqaID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		w.add("status = ANY(?)", pq.Array(statuses))
	}

	order := make([]string, 0, len(filter.Ordering)+1)
	for _, ord := range filter.Ordering {
		if studentOrderFields[ord.Field] {
			order = append(order, ord.String())
		}
	}
	order = append(order, "id ASC")

	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM students" + w.String() + " ORDER BY " + strings.Join(order, ", ")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]roster.Student, len(rows))
	for i, r := range rows {
		students[i] = r.student()
	}
	return students, nil
}

// AssignStudent locks the halaqa row so that concurrent assignments to it are serialized,
// then seats the student only if the count is below capacity.
func (repo *rosterRepository) AssignStudent(ctx context.Context, studentID, halaqaID string, at time.Time) (roster.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return roster.Student{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var current studentRow
	if err = tx.GetContext(ctx, &current, "SELECT "+studentColumns+" FROM students WHERE id = $1 FOR UPDATE", studentID); err != nil {
		if isNoRows(err) {
			return roster.Student{}, roster.ErrStudentNotFound
		}
		return roster.Student{}, errors.Wrap(err, "selecting student")
	}
	if current.HalaqaID.String == halaqaID {
		return current.student(), nil
	}

	var capacity int
	if err = tx.GetContext(ctx, &capacity, "SELECT capacity FROM halaqat WHERE id = $1 FOR UPDATE", halaqaID); err != nil {
		if isNoRows(err) {
			return roster.Student{}, roster.ErrHalaqaNotFound
		}
		return roster.Student{}, errors.Wrap(err, "selecting halaqa")
	}
	if current.Status != roster.StatusAccepted {
		return roster.Student{}, roster.ErrInvalidStatus
	}

	var row studentRow
	err = tx.GetContext(ctx, &row,
		`UPDATE students SET halaqa_id = $2, updated_at = $3
		WHERE id = $1 AND (SELECT COUNT(*) FROM students WHERE halaqa_id = $2) < $4
		RETURNING `+studentColumns,
		studentID, halaqaID, at, capacity)
	if err != nil {
		if isNoRows(err) {
			return roster.Student{}, roster.ErrCapacityExceeded
		}
		return roster.Student{}, errors.Wrap(err, "assigning student")
	}
	if err = tx.Commit(); err != nil {
		return roster.Student{}, errors.Wrap(err, "committing assignment")
	}
	return row.student(), nil
}

// Daily plans

const planColumns = "id, course_id, date, text, is_exam"

func (repo *rosterRepository) UpsertDailyPlan(ctx context.Context, p roster.DailyPlan) (roster.DailyPlan, error) {
	var saved roster.DailyPlan
	err := repo.db.GetContext(ctx, &saved,
		`INSERT INTO daily_plans (`+planColumns+`) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_id, date) DO UPDATE SET text = EXCLUDED.text, is_exam = EXCLUDED.is_exam
		RETURNING `+planColumns,
		p.ID, p.CourseID, p.Date, p.Text, p.IsExam)
	if err != nil {
		return roster.DailyPlan{}, errors.Wrap(err, "upserting daily plan")
	}
	return saved, nil
}

func (repo *rosterRepository) GetDailyPlan(ctx context.Context, courseID string, date core.Date) (roster.DailyPlan, error) {
	var p roster.DailyPlan
	err := repo.db.GetContext(ctx, &p, "SELECT "+planColumns+" FROM daily_plans WHERE course_id = $1 AND date = $2", courseID, date)
	if err != nil {
		if isNoRows(err) {
			return roster.DailyPlan{}, roster.ErrPlanNotFound
		}
		return roster.DailyPlan{}, errors.Wrap(err, "selecting daily plan")
	}
	return p, nil
}

func (repo *rosterRepository) QueryDailyPlans(ctx context.Context, courseID string, from, to core.Date) ([]roster.DailyPlan, error) {
	var w where
	w.add("course_id = ?", courseID)
	if from != "" {
		w.add("date >= ?", from)
	}
	if to != "" {
		w.add("date <= ?", to)
	}
	plans := make([]roster.DailyPlan, 0)
	if err := repo.db.SelectContext(ctx, &plans, "SELECT "+planColumns+" FROM daily_plans"+w.String()+" ORDER BY date", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting daily plans")
	}
	return plans, nil
}
