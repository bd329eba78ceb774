package inmemdb

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

// Seed loads the demo fixtures: two organizations, their staff, two courses with three circles,
// five students, a month of daily plans around ref and the last five days of records for s1 and s2.
// Every seeded user gets the given password.
func Seed(db *DB, password string, ref core.Date) error {
	now := time.Now().UTC()

	orgs := []org.Organization{
		{ID: "org1", Name: "مركز النور القرآني", Plan: org.PlanPro, CreatedAt: now},
		{ID: "org2", Name: "جمعية الفرقان", Plan: org.PlanFree, CreatedAt: now},
	}
	users := []org.User{
		{ID: "u1", OrgID: "org1", Name: "أحمد المدير", Email: "admin@platform.com", Role: org.RolePlatformAdmin},
		{ID: "u2", OrgID: "org1", Name: "الشيخ عمر", Email: "manager@alnoor.com", Role: org.RoleOrgAdmin},
		{ID: "u3", OrgID: "org1", Name: "المشرف خالد", Email: "coord@alnoor.com", Role: org.RoleCoordinator},
		{ID: "u4", OrgID: "org1", Name: "المعلم عثمان", Email: "teacher@alnoor.com", Role: org.RoleTeacher},
		{ID: "u5", OrgID: "org1", Name: "معلم آخر", Email: "teacher2@alnoor.com", Role: org.RoleTeacher},
	}
	courses := []roster.Course{
		{
			ID:             "c1",
			OrgID:          "org1",
			Name:           "دورة سورة البقرة المكثفة",
			Type:           roster.CourseSurahSingle,
			DailyAmount:    "وجه واحد",
			StartDate:      "2023-10-01",
			EndDate:        "2023-12-30",
			MidtermDate:    "2023-11-15",
			FinalExamDate:  "2023-12-28",
			RecitationDays: []int{0, 1, 2, 3, 4},
			PassingScore:   8,
		},
		{
			ID:             "c2",
			OrgID:          "org1",
			Name:           "حفظ جزء عم وتبارك",
			Type:           roster.CourseJuzRange,
			DailyAmount:    "نصف وجه",
			StartDate:      "2023-09-15",
			EndDate:        "2023-11-15",
			MidtermDate:    "2023-10-15",
			FinalExamDate:  "2023-11-14",
			RecitationDays: []int{0, 1, 2, 3, 4},
			PassingScore:   7,
		},
	}
	halaqat := []roster.Halaqa{
		{ID: "h1", OrgID: "org1", CourseID: "c1", Name: "حلقة الصديق", TeacherID: "u4", Capacity: 15, ChannelID: "-100123456789"},
		{ID: "h2", OrgID: "org1", CourseID: "c1", Name: "حلقة الفاروق", TeacherID: "u5", Capacity: 15, ChannelID: "-100987654321"},
		{ID: "h3", OrgID: "org1", CourseID: "c2", Name: "براعم القرآن", TeacherID: "u4", Capacity: 20},
	}
	students := []roster.Student{
		{ID: "s1", OrgID: "org1", CourseID: "c1", Name: "محمد علي", Phone: "0501234567", Gender: roster.Male, Status: roster.StatusAccepted, HalaqaID: "h1"},
		{ID: "s2", OrgID: "org1", CourseID: "c1", Name: "عبدالله عمر", Phone: "0507654321", Gender: roster.Male, Status: roster.StatusAccepted, HalaqaID: "h1"},
		{ID: "s3", OrgID: "org1", CourseID: "c1", Name: "سارة أحمد", Phone: "0509988776", Gender: roster.Female, Status: roster.StatusAccepted, HalaqaID: "h2"},
		{ID: "s4", OrgID: "org1", CourseID: "c1", Name: "يوسف حسن", Phone: "0501122334", Gender: roster.Male, Status: roster.StatusNew},
		{ID: "s5", OrgID: "org1", CourseID: "c1", Name: "خالد وليد", Phone: "0555555555", Gender: roster.Male, Status: roster.StatusAccepted, HalaqaID: "h1"},
	}

	db.org.Lock()
	for i := range orgs {
		o := orgs[i]
		db.org.orgs[o.ID] = &o
	}
	for i := range users {
		u := users[i]
		u.CreatedAt, u.UpdatedAt = now, now
		if err := u.SetPassword(password); err != nil {
			db.org.Unlock()
			return errors.Wrap(err, "hashing password")
		}
		db.org.users[u.ID] = &u
	}
	db.org.Unlock()

	db.roster.Lock()
	for i := range courses {
		c := courses[i]
		c.CreatedAt, c.UpdatedAt = now, now
		db.roster.courses[c.ID] = &c
	}
	for i := range halaqat {
		h := halaqat[i]
		h.CreatedAt, h.UpdatedAt = now, now
		db.roster.halaqat[h.ID] = &h
	}
	for i := range students {
		s := students[i]
		s.CreatedAt, s.UpdatedAt = now, now
		db.roster.students[s.ID] = &s
	}
	for i := 0; i < 30; i++ {
		p := roster.DailyPlan{
			ID:       core.NewID(),
			CourseID: "c1",
			Date:     ref.AddDays(i - 15),
			Text:     fmt.Sprintf("الصفحة %d من سورة البقرة", i+1),
			IsExam:   i%10 == 0 && i != 0,
		}
		db.roster.plans[planKey{p.CourseID, string(p.Date)}] = &p
	}
	db.roster.Unlock()

	db.recitation.Lock()
	defer db.recitation.Unlock()
	for i := 0; i < 5; i++ {
		date := ref.AddDays(-i)
		s1 := recitation.Record{
			ID:         fmt.Sprintf("r_s1_%d", i),
			StudentID:  "s1",
			Date:       date,
			Attendance: recitation.Present,
			Recited:    recitation.RecitedYes,
			Score:      9 + i%2,
			Rating:     recitation.Excellent,
			UpdatedAt:  now,
		}
		s2 := recitation.Record{
			ID:         fmt.Sprintf("r_s2_%d", i),
			StudentID:  "s2",
			Date:       date,
			Attendance: recitation.Present,
			Recited:    recitation.RecitedYes,
			Score:      8,
			Rating:     recitation.Good,
			UpdatedAt:  now,
		}
		if i == 1 {
			s2.Attendance = recitation.Absent
			s2.Recited = recitation.RecitedNo
			s2.Score = 0
			s2.Rating = recitation.NeedsWork
		}
		db.recitation.table[recordKey{s1.StudentID, string(date)}] = &s1
		db.recitation.table[recordKey{s2.StudentID, string(date)}] = &s2
	}
	return nil
}
