package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/scenario"
)

const scenarioColumns = `s.id, s.title, s.difficulty, s.introduction, s.aim, s.objectives, s.description,
	s.is_active, s.created_by, s.created_at, s.updated_at`

type (
	scenarioRow struct {
		ID           int64     `db:"id"`
		Title        string    `db:"title"`
		Difficulty   string    `db:"difficulty"`
		Introduction string    `db:"introduction"`
		Aim          string    `db:"aim"`
		Objectives   string    `db:"objectives"`
		Description  string    `db:"description"`
		IsActive     bool      `db:"is_active"`
		CreatedBy    int64     `db:"created_by"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	listedRow struct {
		scenarioRow
		SubmissionID     null.Int64  `db:"submission_id"`
		SubmissionStatus null.String `db:"submission_status"`
	}
)

func (r scenarioRow) toScenario() scenario.Scenario {
	return scenario.Scenario{
		ID:           r.ID,
		Title:        r.Title,
		Difficulty:   r.Difficulty,
		Introduction: r.Introduction,
		Aim:          r.Aim,
		Objectives:   r.Objectives,
		Description:  r.Description,
		IsActive:     r.IsActive,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type scenarioRepository struct {
	repository
}

var _ scenario.Repository = (*scenarioRepository)(nil) // interface compliance check

func NewScenarioRepository(exec core.DBExecutor) *scenarioRepository {
	return &scenarioRepository{repository{exec: exec}}
}

func (repo scenarioRepository) CreateScenario(ctx context.Context, sc scenario.Scenario, exec ...core.DBExecutor) (scenario.Scenario, error) {
	err := repo.queryRow(ctx, repo.getExec(exec), `
		INSERT INTO scenarios (title, difficulty, introduction, aim, objectives, description, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		sc.Title, sc.Difficulty, sc.Introduction, sc.Aim, sc.Objectives, sc.Description,
		sc.IsActive, sc.CreatedBy, sc.CreatedAt.UTC(), sc.UpdatedAt.UTC(),
	).Scan(&sc.ID)
	if err != nil {
		return scenario.Scenario{}, errors.Wrap(err, "inserting scenario")
	}
	return sc, nil
}

func (repo scenarioRepository) UpdateScenario(ctx context.Context, sc scenario.Scenario, exec ...core.DBExecutor) (scenario.Scenario, error) {
	n, err := repo.execute(ctx, repo.getExec(exec), `
		UPDATE scenarios SET title = ?, difficulty = ?, introduction = ?, aim = ?, objectives = ?, description = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		sc.Title, sc.Difficulty, sc.Introduction, sc.Aim, sc.Objectives, sc.Description,
		sc.IsActive, sc.UpdatedAt.UTC(), sc.ID,
	)
	if err != nil {
		return scenario.Scenario{}, errors.Wrap(err, "updating scenario")
	}
	if n == 0 {
		return scenario.Scenario{}, scenario.ErrNotFound
	}
	return sc, nil
}

// DeleteScenario relies on ON DELETE CASCADE for the submissions.
func (repo scenarioRepository) DeleteScenario(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, repo.getExec(exec), `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting scenario")
	}
	if n == 0 {
		return scenario.ErrNotFound
	}
	return nil
}

func (repo scenarioRepository) GetScenario(ctx context.Context, filter scenario.GetFilter, exec ...core.DBExecutor) (scenario.Scenario, error) {
	var w where
	w.add("s.id = ?", filter.ID)
	if filter.ActiveOnly {
		w.add("s.is_active")
	}

	var rows []scenarioRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, `SELECT `+scenarioColumns+` FROM scenarios s`+w.String(), w.args...); err != nil {
		return scenario.Scenario{}, errors.Wrap(err, "selecting scenario")
	}
	if len(rows) == 0 {
		return scenario.Scenario{}, scenario.ErrNotFound
	}
	return rows[0].toScenario(), nil
}

func (repo scenarioRepository) filter(filter scenario.QueryFilter) *where {
	w := new(where)
	if filter.ActiveOnly {
		w.add("s.is_active")
	}
	if filter.CreatedBy != 0 {
		w.add("s.created_by = ?", filter.CreatedBy)
	}
	return w
}

func (repo scenarioRepository) QueryScenarios(ctx context.Context, filter scenario.QueryFilter, exec ...core.DBExecutor) ([]scenario.Scenario, error) {
	w := repo.filter(filter)
	q := `SELECT ` + scenarioColumns + ` FROM scenarios s` + w.String() +
		` ORDER BY s.created_at DESC, s.id DESC` + limitOffset(filter.Limit, 0)

	var rows []scenarioRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting scenarios")
	}
	scs := make([]scenario.Scenario, 0, len(rows))
	for _, r := range rows {
		scs = append(scs, r.toScenario())
	}
	return scs, nil
}

func (repo scenarioRepository) CountScenarios(ctx context.Context, filter scenario.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.filter(filter)
	n, err := repo.count(ctx, repo.getExec(exec), `SELECT COUNT(*) FROM scenarios s`+w.String(), w.args...)
	return n, errors.Wrap(err, "counting scenarios")
}

func (repo scenarioRepository) QueryForStudent(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]scenario.Listed, error) {
	q := `SELECT ` + scenarioColumns + `, sub.id AS submission_id, sub.status AS submission_status
		FROM scenarios s
		LEFT JOIN submissions sub ON sub.scenario_id = s.id AND sub.student_id = ?
		WHERE s.is_active
		ORDER BY s.created_at DESC, s.id DESC`

	var rows []listedRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting active scenarios")
	}
	listed := make([]scenario.Listed, 0, len(rows))
	for _, r := range rows {
		listed = append(listed, scenario.Listed{
			Scenario:         r.scenarioRow.toScenario(),
			SubmissionID:     r.SubmissionID.Int64,
			SubmissionStatus: r.SubmissionStatus.String,
		})
	}
	return listed, nil
}
