package account

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/thejadex/RE-VLab/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var Roles = []string{RoleStudent, RoleAdmin}

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	DateJoined   time.Time `json:"date_joined"` // UTC
	LastLogin    time.Time `json:"last_login"`  // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// DisplayName is the full name, or the username when no name is set.
func (a Account) DisplayName() string {
	if name := a.FullName(); name != "" {
		return name
	}
	return a.Username
}

type Profile struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Role      string    `json:"role"`
	StudentID string    `json:"student_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Principal is an Account together with its Profile: who is acting and with which capabilities.
type Principal struct {
	Account Account `json:"account"`
	Profile Profile `json:"profile"`
}

func (p Principal) ID() int64 { return p.Account.ID }

func (p Principal) IsAdmin() bool {
	return p.Profile.Role == RoleAdmin || p.Account.IsSuperuser
}

func (p Principal) IsStudent() bool {
	return !p.IsAdmin()
}

// NewAccount contains the registration data of a new student.
type NewAccount struct {
	Username    string `json:"username" validate:"required,max=150,username"`
	FirstName   string `json:"first_name" validate:"required,max=30"`
	LastName    string `json:"last_name" validate:"required,max=30"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password1   string `json:"password1" validate:"required"`
	Password2   string `json:"password2" validate:"required,eqfield=Password1"`
	IsSuperuser bool   `json:"-"`
}

func (na *NewAccount) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, na.Username)
}

// Seed describes an account created from the command line (superusers, sample data).
// Seeds skip the password policy.
type Seed struct {
	Username    string
	FirstName   string
	LastName    string
	Email       string
	Password    string
	IsSuperuser bool
	StudentID   string // generated when empty
}

type GetFilter struct {
	ID              int64
	Username        string
	UsernameOrEmail string
}

type QueryFilter struct {
	IsSuperuser *bool
}

// PrincipalFilter selects accounts through their profile; results are ordered by newest profile first.
type PrincipalFilter struct {
	Role  string
	Limit int
}

// FixReport summarizes a FixSuperuserProfiles run.
type FixReport struct {
	Created   []string
	Fixed     []string
	Unchanged []string
}
