package inmemdb

import (
	"context"
	"sort"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

type scenarioRepository struct {
	db *DB
}

var _ scenario.Repository = (*scenarioRepository)(nil) // interface compliance check

func NewScenarioRepository(db *DB) *scenarioRepository {
	return &scenarioRepository{db: db}
}

func (repo *scenarioRepository) CreateScenario(_ context.Context, sc scenario.Scenario, exec ...core.DBExecutor) (scenario.Scenario, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sc.ID = repo.db.nextID("scenarios")
	put(txOf(exec), repo.db.scenarios, sc.ID, sc)
	return sc, nil
}

func (repo *scenarioRepository) UpdateScenario(_ context.Context, sc scenario.Scenario, exec ...core.DBExecutor) (scenario.Scenario, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.scenarios[sc.ID]; !ok {
		return scenario.Scenario{}, scenario.ErrNotFound
	}
	put(txOf(exec), repo.db.scenarios, sc.ID, sc)
	return sc, nil
}

func (repo *scenarioRepository) DeleteScenario(_ context.Context, id int64, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.scenarios[id]; !ok {
		return scenario.ErrNotFound
	}
	remove(txOf(exec), repo.db.scenarios, id)
	repo.db.deleteSubmissions(txOf(exec), func(sub submission.Submission) bool { return sub.ScenarioID == id })
	return nil
}

func (repo *scenarioRepository) GetScenario(_ context.Context, filter scenario.GetFilter, _ ...core.DBExecutor) (scenario.Scenario, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sc, ok := repo.db.scenarios[filter.ID]
	if !ok || (filter.ActiveOnly && !sc.IsActive) {
		return scenario.Scenario{}, scenario.ErrNotFound
	}
	return sc, nil
}

// query returns the scenarios matching filter, newest first. Callers hold db.mu.
func (repo *scenarioRepository) query(filter scenario.QueryFilter) []scenario.Scenario {
	scs := make([]scenario.Scenario, 0)
	for _, sc := range repo.db.scenarios {
		if filter.ActiveOnly && !sc.IsActive {
			continue
		}
		if filter.CreatedBy != 0 && sc.CreatedBy != filter.CreatedBy {
			continue
		}
		scs = append(scs, sc)
	}
	sort.Slice(scs, func(i, j int) bool {
		if !scs[i].CreatedAt.Equal(scs[j].CreatedAt) {
			return scs[i].CreatedAt.After(scs[j].CreatedAt)
		}
		return scs[i].ID > scs[j].ID
	})
	return scs
}

func (repo *scenarioRepository) QueryScenarios(_ context.Context, filter scenario.QueryFilter, _ ...core.DBExecutor) ([]scenario.Scenario, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return paginate(repo.query(filter), 0, filter.Limit), nil
}

func (repo *scenarioRepository) CountScenarios(_ context.Context, filter scenario.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *scenarioRepository) QueryForStudent(_ context.Context, studentID int64, _ ...core.DBExecutor) ([]scenario.Listed, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make(map[int64]submission.Submission)
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID {
			subs[sub.ScenarioID] = sub
		}
	}

	scs := repo.query(scenario.QueryFilter{ActiveOnly: true})
	listed := make([]scenario.Listed, 0, len(scs))
	for _, sc := range scs {
		l := scenario.Listed{Scenario: sc}
		if sub, ok := subs[sc.ID]; ok {
			l.SubmissionID = sub.ID
			l.SubmissionStatus = sub.Status
		}
		listed = append(listed, l)
	}
	return listed, nil
}
