package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
)

const (
	accountColumns = `a.id, a.username, a.first_name, a.last_name, a.email, a.password_hash,
		a.is_superuser, a.is_active, a.date_joined, a.last_login`
	profileColumns = `p.id AS profile_id, p.account_id, p.role, p.student_id, p.created_at`
)

type (
	accountRow struct {
		ID           int64     `db:"id"`
		Username     string    `db:"username"`
		FirstName    string    `db:"first_name"`
		LastName     string    `db:"last_name"`
		Email        string    `db:"email"`
		PasswordHash []byte    `db:"password_hash"`
		IsSuperuser  bool      `db:"is_superuser"`
		IsActive     bool      `db:"is_active"`
		DateJoined   time.Time `db:"date_joined"`
		LastLogin    null.Time `db:"last_login"`
	}

	profileRow struct {
		ProfileID int64       `db:"profile_id"`
		AccountID int64       `db:"account_id"`
		Role      string      `db:"role"`
		StudentID null.String `db:"student_id"`
		CreatedAt time.Time   `db:"created_at"`
	}

	principalRow struct {
		accountRow
		profileRow
	}
)

func (r accountRow) toAccount() account.Account {
	return account.Account{
		ID:           r.ID,
		Username:     r.Username,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		IsSuperuser:  r.IsSuperuser,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		DateJoined:   r.DateJoined.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func (r profileRow) toProfile() account.Profile {
	return account.Profile{
		ID:        r.ProfileID,
		AccountID: r.AccountID,
		Role:      r.Role,
		StudentID: r.StudentID.String,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// isUniqueViolation reports a Postgres unique_violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

type accountRepository struct {
	repository
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(exec core.DBExecutor) *accountRepository {
	return &accountRepository{repository{exec: exec}}
}

func (repo accountRepository) CheckUsernameUniqueness(ctx context.Context, username string, exec ...core.DBExecutor) error {
	var exists bool
	err := repo.queryRow(ctx, repo.getExec(exec), `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = ?)`, username).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if exists {
		return account.ErrUsernameExists
	}
	return nil
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	err := repo.queryRow(ctx, repo.getExec(exec), `
		INSERT INTO accounts (username, first_name, last_name, email, password_hash, is_superuser, is_active, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		acc.Username, acc.FirstName, acc.LastName, acc.Email, acc.PasswordHash,
		acc.IsSuperuser, acc.IsActive, acc.DateJoined.UTC(), null.NewTime(acc.LastLogin.UTC(), !acc.LastLogin.IsZero()),
	).Scan(&acc.ID)
	if err != nil {
		if isUniqueViolation(err, "accounts_username_key") {
			return account.Account{}, account.ErrUsernameExists
		}
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	n, err := repo.execute(ctx, repo.getExec(exec), `
		UPDATE accounts SET username = ?, first_name = ?, last_name = ?, email = ?, password_hash = ?,
			is_superuser = ?, is_active = ?, last_login = ?
		WHERE id = ?`,
		acc.Username, acc.FirstName, acc.LastName, acc.Email, acc.PasswordHash,
		acc.IsSuperuser, acc.IsActive, null.NewTime(acc.LastLogin.UTC(), !acc.LastLogin.IsZero()), acc.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "accounts_username_key") {
			return account.Account{}, account.ErrUsernameExists
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

func (repo accountRepository) GetAccount(ctx context.Context, filter account.GetFilter, exec ...core.DBExecutor) (account.Account, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("a.id = ?", filter.ID)
	case filter.Username != "":
		w.add("a.username = ?", filter.Username)
	case filter.UsernameOrEmail != "":
		w.add("(a.username = ? OR a.email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return account.Account{}, account.ErrNotFound
	}

	var rows []accountRow
	q := `SELECT ` + accountColumns + ` FROM accounts a` + w.String() + ` ORDER BY a.id LIMIT 1`
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return account.Account{}, errors.Wrap(err, "selecting account")
	}
	if len(rows) == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return rows[0].toAccount(), nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, filter account.QueryFilter, exec ...core.DBExecutor) ([]account.Account, error) {
	var w where
	if filter.IsSuperuser != nil {
		w.add("a.is_superuser = ?", *filter.IsSuperuser)
	}

	var rows []accountRow
	q := `SELECT ` + accountColumns + ` FROM accounts a` + w.String() + ` ORDER BY a.id`
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting accounts")
	}
	accs := make([]account.Account, 0, len(rows))
	for _, r := range rows {
		accs = append(accs, r.toAccount())
	}
	return accs, nil
}

func (repo accountRepository) CreateProfile(ctx context.Context, prof account.Profile, exec ...core.DBExecutor) (account.Profile, error) {
	err := repo.queryRow(ctx, repo.getExec(exec), `
		INSERT INTO profiles (account_id, role, student_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		prof.AccountID, prof.Role, null.NewString(prof.StudentID, prof.StudentID != ""), prof.CreatedAt.UTC(),
	).Scan(&prof.ID)
	if err != nil {
		return account.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return prof, nil
}

func (repo accountRepository) UpdateProfile(ctx context.Context, prof account.Profile, exec ...core.DBExecutor) (account.Profile, error) {
	n, err := repo.execute(ctx, repo.getExec(exec), `UPDATE profiles SET role = ?, student_id = ? WHERE id = ?`,
		prof.Role, null.NewString(prof.StudentID, prof.StudentID != ""), prof.ID)
	if err != nil {
		return account.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n == 0 {
		return account.Profile{}, account.ErrProfileNotFound
	}
	return prof, nil
}

func (repo accountRepository) GetProfile(ctx context.Context, accountID int64, exec ...core.DBExecutor) (account.Profile, error) {
	var rows []profileRow
	q := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.account_id = ?`
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, accountID); err != nil {
		return account.Profile{}, errors.Wrap(err, "selecting profile")
	}
	if len(rows) == 0 {
		return account.Profile{}, account.ErrProfileNotFound
	}
	return rows[0].toProfile(), nil
}

func (repo accountRepository) StudentIDExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := repo.queryRow(ctx, repo.getExec(exec), `SELECT EXISTS (SELECT 1 FROM profiles WHERE student_id = ?)`, studentID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, errors.Wrap(err, "checking student id")
	}
	return exists, nil
}

func (repo accountRepository) QueryPrincipals(ctx context.Context, filter account.PrincipalFilter, exec ...core.DBExecutor) ([]account.Principal, error) {
	var w where
	if filter.Role != "" {
		w.add("p.role = ?", filter.Role)
	}

	var rows []principalRow
	q := `SELECT ` + accountColumns + `, ` + profileColumns + `
		FROM profiles p JOIN accounts a ON a.id = p.account_id` + w.String() + `
		ORDER BY p.created_at DESC, p.id DESC` + limitOffset(filter.Limit, 0)
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting principals")
	}
	ps := make([]account.Principal, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, account.Principal{Account: r.accountRow.toAccount(), Profile: r.profileRow.toProfile()})
	}
	return ps, nil
}

func (repo accountRepository) CountProfiles(ctx context.Context, role string, exec ...core.DBExecutor) (int, error) {
	var w where
	if role != "" {
		w.add("p.role = ?", role)
	}
	n, err := repo.count(ctx, repo.getExec(exec), `SELECT COUNT(*) FROM profiles p`+w.String(), w.args...)
	return n, errors.Wrap(err, "counting profiles")
}
