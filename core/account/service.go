package account

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("account not found")
	ErrProfileNotFound    = core.NewNotFoundError("profile not found")
	ErrUsernameExists     = errors.New("a user with that username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDeactivated = errors.New("account deactivated")

	maxStudentIDAttempts = 20
	studentIDFunc        = func() string { return fmt.Sprintf("STU%06d", rand.Intn(1000000)) } // mockable
	NowFunc              = time.Now                                                            // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, exec ...core.DBExecutor) error
		CreateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
		UpdateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
		GetAccount(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Account, error)
		QueryAccounts(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Account, error)

		CreateProfile(ctx context.Context, prof Profile, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, prof Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, accountID int64, exec ...core.DBExecutor) (Profile, error)
		StudentIDExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
		// QueryPrincipals joins accounts and profiles, newest profile first.
		QueryPrincipals(ctx context.Context, filter PrincipalFilter, exec ...core.DBExecutor) ([]Principal, error)
		CountProfiles(ctx context.Context, role string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
		tx   core.Transactor
	}
)

func NewService(repo Repository, tx core.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

func (svc *Service) CheckUniqueness(ctx context.Context, username string) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, username); err != nil {
		if err == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return errors.Wrap(err, "checking username uniqueness")
	}
	return nil
}

// CreateAccount creates the Account and its Profile in one transaction.
// Superusers get an admin profile; everybody else is a student with a generated student id.
func (svc *Service) CreateAccount(ctx context.Context, na NewAccount) (Principal, error) {
	acc := Account{
		Username:    na.Username,
		FirstName:   na.FirstName,
		LastName:    na.LastName,
		Email:       na.Email,
		IsSuperuser: na.IsSuperuser,
		IsActive:    true,
		DateJoined:  NowFunc().UTC(),
	}
	if err := acc.SetPassword(na.Password1); err != nil {
		return Principal{}, errors.Wrap(err, "hashing password")
	}

	var p Principal
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.createPrincipal(ctx, acc, "", exec); err != nil {
			return err
		}
		return nil
	})
	return p, err
}

func (svc *Service) createPrincipal(ctx context.Context, acc Account, studentID string, exec core.DBExecutor) (Principal, error) {
	acc, err := svc.repo.CreateAccount(ctx, acc, exec)
	if err != nil {
		return Principal{}, errors.Wrap(err, "creating account")
	}
	prof, err := svc.newProfile(ctx, acc, studentID, exec)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Account: acc, Profile: prof}, nil
}

func (svc *Service) newProfile(ctx context.Context, acc Account, studentID string, exec core.DBExecutor) (Profile, error) {
	prof := Profile{
		AccountID: acc.ID,
		Role:      RoleStudent,
		CreatedAt: NowFunc().UTC(),
	}
	if acc.IsSuperuser {
		prof.Role = RoleAdmin
	} else {
		if studentID == "" {
			var err error
			if studentID, err = svc.generateStudentID(ctx, exec); err != nil {
				return Profile{}, err
			}
		}
		prof.StudentID = studentID
	}
	prof, err := svc.repo.CreateProfile(ctx, prof, exec)
	return prof, errors.Wrap(err, "creating profile")
}

// generateStudentID draws "STU" + 6 digits until it finds an unused one, giving up after maxStudentIDAttempts.
func (svc *Service) generateStudentID(ctx context.Context, exec core.DBExecutor) (string, error) {
	for i := 0; i < maxStudentIDAttempts; i++ {
		sid := studentIDFunc()
		exists, err := svc.repo.StudentIDExists(ctx, sid, exec)
		if err != nil {
			return "", errors.Wrap(err, "checking student id")
		}
		if !exists {
			return sid, nil
		}
	}
	return "", core.NewResourceExhaustedError(
		fmt.Sprintf("could not generate a unique student id after %d attempts", maxStudentIDAttempts))
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, username, pwd string) (Principal, error) {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, errors.Wrap(err, "finding account by username")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	if !acc.IsActive {
		return Principal{}, ErrAccountDeactivated
	}

	acc.LastLogin = NowFunc().UTC()
	if acc, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return Principal{}, errors.Wrap(err, "setting last login")
	}
	return svc.principal(ctx, acc)
}

// GetPrincipal resolves the capabilities of an account once per request.
// A missing profile is created, and a superuser whose profile is not admin is promoted.
func (svc *Service) GetPrincipal(ctx context.Context, accountID int64) (Principal, error) {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: accountID})
	if err != nil {
		return Principal{}, errors.Wrap(err, "finding account by ID")
	}
	return svc.principal(ctx, acc)
}

func (svc *Service) principal(ctx context.Context, acc Account) (Principal, error) {
	prof, err := svc.repo.GetProfile(ctx, acc.ID)
	switch {
	case err == nil && (!acc.IsSuperuser || prof.Role == RoleAdmin):
		return Principal{Account: acc, Profile: prof}, nil
	case err != nil && errors.Cause(err) != ErrProfileNotFound:
		return Principal{}, errors.Wrap(err, "finding profile")
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		prof, _, err = svc.healProfile(ctx, acc, exec)
		return err
	})
	if err != nil {
		return Principal{}, err
	}
	return Principal{Account: acc, Profile: prof}, nil
}

type healResult int

const (
	profileUnchanged healResult = iota
	profileCreated
	profileFixed
)

func (svc *Service) healProfile(ctx context.Context, acc Account, exec core.DBExecutor) (Profile, healResult, error) {
	prof, err := svc.repo.GetProfile(ctx, acc.ID, exec)
	if err != nil {
		if errors.Cause(err) != ErrProfileNotFound {
			return Profile{}, profileUnchanged, errors.Wrap(err, "finding profile")
		}
		prof, err = svc.newProfile(ctx, acc, "", exec)
		return prof, profileCreated, err
	}
	if acc.IsSuperuser && prof.Role != RoleAdmin {
		prof.Role = RoleAdmin
		prof, err = svc.repo.UpdateProfile(ctx, prof, exec)
		return prof, profileFixed, errors.Wrap(err, "promoting profile")
	}
	return prof, profileUnchanged, nil
}

// FixSuperuserProfiles makes sure every superuser has an admin profile.
func (svc *Service) FixSuperuserProfiles(ctx context.Context) (FixReport, error) {
	var report FixReport
	isSuper := true
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		superusers, err := svc.repo.QueryAccounts(ctx, QueryFilter{IsSuperuser: &isSuper}, exec)
		if err != nil {
			return errors.Wrap(err, "querying superusers")
		}
		for _, acc := range superusers {
			_, res, err := svc.healProfile(ctx, acc, exec)
			if err != nil {
				return err
			}
			switch res {
			case profileCreated:
				report.Created = append(report.Created, acc.Username)
			case profileFixed:
				report.Fixed = append(report.Fixed, acc.Username)
			default:
				report.Unchanged = append(report.Unchanged, acc.Username)
			}
		}
		return nil
	})
	return report, err
}

// EnsureAccount returns the account named by seed.Username, creating it (with its profile) if it does not exist.
func (svc *Service) EnsureAccount(ctx context.Context, seed Seed) (Principal, bool, error) {
	uname := core.CleanString(seed.Username, true /* lower */)
	acc, err := svc.repo.GetAccount(ctx, GetFilter{Username: uname})
	if err == nil {
		p, err := svc.principal(ctx, acc)
		return p, false, err
	}
	if errors.Cause(err) != ErrNotFound {
		return Principal{}, false, errors.Wrap(err, "finding account by username")
	}

	acc = Account{
		Username:    uname,
		FirstName:   core.CleanString(seed.FirstName),
		LastName:    core.CleanString(seed.LastName),
		Email:       core.CleanString(seed.Email, true /* lower */),
		IsSuperuser: seed.IsSuperuser,
		IsActive:    true,
		DateJoined:  NowFunc().UTC(),
	}
	if err = acc.SetPassword(seed.Password); err != nil {
		return Principal{}, false, errors.Wrap(err, "hashing password")
	}

	var p Principal
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		p, err = svc.createPrincipal(ctx, acc, seed.StudentID, exec)
		return err
	})
	return p, err == nil, err
}

// CreateSuperuser creates a superuser, or promotes the existing account with that username.
func (svc *Service) CreateSuperuser(ctx context.Context, username, email, pwd string) (Principal, error) {
	p, created, err := svc.EnsureAccount(ctx, Seed{Username: username, Email: email, Password: pwd, IsSuperuser: true})
	if err != nil || created {
		return p, err
	}

	acc := p.Account
	acc.IsSuperuser = true
	acc.IsActive = true
	if email = core.CleanString(email, true /* lower */); email != "" {
		acc.Email = email
	}
	if err = acc.SetPassword(pwd); err != nil {
		return Principal{}, errors.Wrap(err, "hashing password")
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if acc, err = svc.repo.UpdateAccount(ctx, acc, exec); err != nil {
			return errors.Wrap(err, "updating account")
		}
		p.Account = acc
		p.Profile, _, err = svc.healProfile(ctx, acc, exec)
		return err
	})
	return p, err
}

// SetPassword sets a new password on the account matching the username or email.
func (svc *Service) SetPassword(ctx context.Context, usernameOrEmail, pwd string) error {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{UsernameOrEmail: core.CleanString(usernameOrEmail, true /* lower */)})
	if err != nil {
		return err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = svc.repo.UpdateAccount(ctx, acc)
	return errors.Wrap(err, "updating account")
}

func (svc *Service) GetByUsername(ctx context.Context, username string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
}

// ListByRole returns every account holding the role; exec lets callers read inside their transaction.
func (svc *Service) ListByRole(ctx context.Context, role string, exec ...core.DBExecutor) ([]Principal, error) {
	return svc.repo.QueryPrincipals(ctx, PrincipalFilter{Role: role}, exec...)
}

func (svc *Service) RecentStudents(ctx context.Context, limit int) ([]Principal, error) {
	return svc.repo.QueryPrincipals(ctx, PrincipalFilter{Role: RoleStudent, Limit: limit})
}

func (svc *Service) CountStudents(ctx context.Context) (int, error) {
	return svc.repo.CountProfiles(ctx, RoleStudent)
}

func (svc *Service) Get(ctx context.Context, id int64, exec ...core.DBExecutor) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id}, exec...)
}
