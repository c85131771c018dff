package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-playground/validator/v10"

	"github.com/tsacademy/academia/core"
)

// Roles. The set is closed: an identity carrying anything else is a
// configuration error upstream, never a runtime branch.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

// KnownRole reports whether role is part of the closed role set.
func KnownRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Identity is the authenticated principal. Role is immutable
// post-creation; it drives which section tree and data filters apply.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	ClassID      string    `json:"class_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (idt *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	idt.PasswordHash = hash
	return nil
}

func (idt *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(idt.PasswordHash, []byte(pwd))
}

func (idt *Identity) IsAdmin() bool   { return idt.Role == RoleAdmin }
func (idt *Identity) IsTeacher() bool { return idt.Role == RoleTeacher }
func (idt *Identity) IsStudent() bool { return idt.Role == RoleStudent }

// NewIdentity contains information needed to enroll a new Identity.
type NewIdentity struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,role"`
	ClassID         string `json:"class_id" validate:"omitempty"`
}

func (ni *NewIdentity) Validate(validate *validator.Validate, svc *Service) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Email = core.CleanString(ni.Email, true /* lower */)

	if err := validate.Struct(ni); err != nil {
		return err
	}
	return svc.checkUniqueness(ni.Email)
}

// UpdateIdentity defines what may be modified on an existing Identity.
// Role is deliberately absent: it is fixed at enrollment.
type UpdateIdentity struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	ClassID         string `json:"class_id"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (ui *UpdateIdentity) Validate(origIdt Identity, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(ui.Name)
	if name != "" {
		ui.Name = name
	} else {
		ui.Name = origIdt.Name
	}

	email := core.CleanString(ui.Email, true /* lower */)
	if email != "" {
		ui.Email = email
	} else {
		ui.Email = origIdt.Email
	}

	if err := validate.Struct(ui); err != nil {
		return err
	}
	return svc.checkUniqueness(ui.Email, origIdt)
}

type ResetIdentityPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetIdentityPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// QueryFilter applies an AND operation on its non-empty fields.
// Search does a case-insensitive match on Name or Email.
type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	ClassID     string    `query:"class_id"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.ClassID == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
