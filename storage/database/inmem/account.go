package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
)

var errStudentIDExists = errors.New("student id already in use")

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) usernameTaken(username string, excludedID int64) bool {
	for _, acc := range repo.db.accounts {
		if acc.Username == username && acc.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *accountRepository) CheckUsernameUniqueness(_ context.Context, username string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.usernameTaken(username, 0) {
		return account.ErrUsernameExists
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.usernameTaken(acc.Username, 0) {
		return account.Account{}, account.ErrUsernameExists
	}
	acc.ID = repo.db.nextID("accounts")
	put(txOf(exec), repo.db.accounts, acc.ID, acc)
	return acc, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.accounts[acc.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	if repo.usernameTaken(acc.Username, acc.ID) {
		return account.Account{}, account.ErrUsernameExists
	}
	put(txOf(exec), repo.db.accounts, acc.ID, acc)
	return acc, nil
}

func (repo *accountRepository) sortedAccounts() []account.Account {
	accs := make([]account.Account, 0, len(repo.db.accounts))
	for _, acc := range repo.db.accounts {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].ID < accs[j].ID })
	return accs
}

func (repo *accountRepository) GetAccount(_ context.Context, filter account.GetFilter, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != 0 {
		if acc, ok := repo.db.accounts[filter.ID]; ok {
			return acc, nil
		}
		return account.Account{}, account.ErrNotFound
	}
	for _, acc := range repo.sortedAccounts() {
		switch {
		case filter.Username != "" && acc.Username == filter.Username:
			return acc, nil
		case filter.UsernameOrEmail != "" && (acc.Username == filter.UsernameOrEmail || acc.Email == filter.UsernameOrEmail):
			return acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) QueryAccounts(_ context.Context, filter account.QueryFilter, _ ...core.DBExecutor) ([]account.Account, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	accs := make([]account.Account, 0)
	for _, acc := range repo.sortedAccounts() {
		if filter.IsSuperuser != nil && acc.IsSuperuser != *filter.IsSuperuser {
			continue
		}
		accs = append(accs, acc)
	}
	return accs, nil
}

func (repo *accountRepository) profileOf(accountID int64) (account.Profile, bool) {
	for _, prof := range repo.db.profiles {
		if prof.AccountID == accountID {
			return prof, true
		}
	}
	return account.Profile{}, false
}

func (repo *accountRepository) studentIDTaken(studentID string, excludedID int64) bool {
	if studentID == "" {
		return false
	}
	for _, prof := range repo.db.profiles {
		if prof.StudentID == studentID && prof.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *accountRepository) CreateProfile(_ context.Context, prof account.Profile, exec ...core.DBExecutor) (account.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.accounts[prof.AccountID]; !ok {
		return account.Profile{}, account.ErrNotFound
	}
	if _, ok := repo.profileOf(prof.AccountID); ok {
		return account.Profile{}, errors.New("account already has a profile")
	}
	if repo.studentIDTaken(prof.StudentID, 0) {
		return account.Profile{}, errStudentIDExists
	}
	prof.ID = repo.db.nextID("profiles")
	put(txOf(exec), repo.db.profiles, prof.ID, prof)
	return prof, nil
}

func (repo *accountRepository) UpdateProfile(_ context.Context, prof account.Profile, exec ...core.DBExecutor) (account.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[prof.ID]; !ok {
		return account.Profile{}, account.ErrProfileNotFound
	}
	if repo.studentIDTaken(prof.StudentID, prof.ID) {
		return account.Profile{}, errStudentIDExists
	}
	put(txOf(exec), repo.db.profiles, prof.ID, prof)
	return prof, nil
}

func (repo *accountRepository) GetProfile(_ context.Context, accountID int64, _ ...core.DBExecutor) (account.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if prof, ok := repo.profileOf(accountID); ok {
		return prof, nil
	}
	return account.Profile{}, account.ErrProfileNotFound
}

func (repo *accountRepository) StudentIDExists(_ context.Context, studentID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.studentIDTaken(studentID, 0), nil
}

func (repo *accountRepository) QueryPrincipals(_ context.Context, filter account.PrincipalFilter, _ ...core.DBExecutor) ([]account.Principal, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ps := make([]account.Principal, 0)
	for _, prof := range repo.db.profiles {
		if filter.Role != "" && prof.Role != filter.Role {
			continue
		}
		acc, ok := repo.db.accounts[prof.AccountID]
		if !ok {
			continue
		}
		ps = append(ps, account.Principal{Account: acc, Profile: prof})
	}
	sort.Slice(ps, func(i, j int) bool {
		pi, pj := ps[i].Profile, ps[j].Profile
		if !pi.CreatedAt.Equal(pj.CreatedAt) {
			return pi.CreatedAt.After(pj.CreatedAt)
		}
		return pi.ID > pj.ID
	})
	return paginate(ps, 0, filter.Limit), nil
}

func (repo *accountRepository) CountProfiles(_ context.Context, role string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, prof := range repo.db.profiles {
		if role == "" || prof.Role == role {
			n++
		}
	}
	return n, nil
}
