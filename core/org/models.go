package org

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/halaqat/core"
)

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro:
		return true
	}
	return false
}

type Feature string

const (
	FeatureGoogleIntegration Feature = "google_integration"
	FeatureMessaging         Feature = "messaging"
	FeatureCertificates      Feature = "certificates"
)

// Allows reports whether the plan tier unlocks the feature.
func (p Plan) Allows(f Feature) bool {
	switch f {
	case FeatureGoogleIntegration:
		return p == PlanPro
	case FeatureMessaging, FeatureCertificates:
		return p.Valid()
	}
	return false
}

type Role string

const (
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
	RoleOrgAdmin      Role = "ORG_ADMIN"
	RoleCoordinator   Role = "COORDINATOR"
	RoleTeacher       Role = "TEACHER"
)

var (
	AllRoles = []Role{RolePlatformAdmin, RoleOrgAdmin, RoleCoordinator, RoleTeacher}

	rolePriorities = map[Role]int{
		RolePlatformAdmin: 40,
		RoleOrgAdmin:      30,
		RoleCoordinator:   20,
		RoleTeacher:       10,
	}
)

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

func (r Role) Priority() int {
	return rolePriorities[r]
}

// Capability is a permission checked by the presentation layer before calling a service.
type Capability string

const (
	CapManagePlatform     Capability = "manage:platform"
	CapManageCourses      Capability = "manage:courses"
	CapManageIntegrations Capability = "manage:integrations"
	CapManageRoster       Capability = "manage:roster"
	CapSendMessages       Capability = "send:messages"
	CapViewReports        Capability = "view:reports"
	CapIssueCertificates  Capability = "issue:certificates"
	CapRecordRecitation   Capability = "record:recitation"
)

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	switch c {
	case CapManagePlatform:
		return r == RolePlatformAdmin
	case CapManageCourses, CapManageIntegrations:
		return r == RolePlatformAdmin || r == RoleOrgAdmin
	case CapManageRoster, CapSendMessages, CapViewReports, CapIssueCertificates:
		return r == RolePlatformAdmin || r == RoleOrgAdmin || r == RoleCoordinator
	case CapRecordRecitation:
		return r.Valid()
	}
	return false
}

type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Plan      Plan      `json:"plan" db:"plan"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

type User struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"org_id" db:"org_id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) Can(c Capability) bool {
	return u.Role.Can(c)
}

func (u User) Person() core.Person {
	return core.Person{ID: u.ID, Name: u.Name, Email: u.Email, OrgID: u.OrgID, Role: string(u.Role)}
}

// NewOrganization contains information needed to create a new Organization.
type NewOrganization struct {
	Name string `json:"name" validate:"required,notblank"`
	Plan Plan   `json:"plan" validate:"required,plan"`
}

func (no *NewOrganization) Validate(validate *validator.Validate) error {
	no.Name = core.CleanString(no.Name)
	return validate.Struct(no)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	OrgID           string `json:"org_id" validate:"required"`
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// GetFilter selects a single User. Only one field is expected to be set.
type GetFilter struct {
	ID    string
	Email string
}

type UserFilter struct {
	OrgID string
	Roles []Role
}

// Stats are the dashboard counters of an organization.
type Stats struct {
	ActiveCourses int `json:"active_courses"`
	TotalStudents int `json:"total_students"`
	TotalTeachers int `json:"total_teachers"`
}
