package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

const (
	submissionColumns = `sub.id, sub.scenario_id, sub.student_id, sub.status, sub.submitted_at, sub.created_at, sub.updated_at`
	summarySelect     = `SELECT ` + submissionColumns + `,
			s.title AS scenario_title,
			a.username AS student_username, a.first_name AS student_first_name, a.last_name AS student_last_name,
			(SELECT COUNT(*) FROM requirements r WHERE r.submission_id = sub.id) AS requirement_count
		FROM submissions sub
		JOIN scenarios s ON s.id = sub.scenario_id
		JOIN accounts a ON a.id = sub.student_id`
	requirementColumns = `id, submission_id, requirement_type, title, description, priority, created_at, updated_at`
	srsColumns         = `id, submission_id, introduction, overall_description, system_features,
		external_interface_requirements, non_functional_requirements, other_requirements, created_at, updated_at`
)

type (
	submissionRow struct {
		ID          int64     `db:"id"`
		ScenarioID  int64     `db:"scenario_id"`
		StudentID   int64     `db:"student_id"`
		Status      string    `db:"status"`
		SubmittedAt null.Time `db:"submitted_at"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	summaryRow struct {
		submissionRow
		ScenarioTitle    string `db:"scenario_title"`
		StudentUsername  string `db:"student_username"`
		StudentFirstName string `db:"student_first_name"`
		StudentLastName  string `db:"student_last_name"`
		RequirementCount int    `db:"requirement_count"`
	}

	requirementRow struct {
		ID           int64     `db:"id"`
		SubmissionID int64     `db:"submission_id"`
		Type         string    `db:"requirement_type"`
		Title        string    `db:"title"`
		Description  string    `db:"description"`
		Priority     string    `db:"priority"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	feedbackRow struct {
		ID            int64     `db:"id"`
		SubmissionID  int64     `db:"submission_id"`
		Type          string    `db:"feedback_type"`
		Title         string    `db:"title"`
		Content       string    `db:"content"`
		AdminID       int64     `db:"admin_id"`
		IsRead        bool      `db:"is_read"`
		CreatedAt     time.Time `db:"created_at"`
		ScenarioTitle string    `db:"scenario_title"`
	}

	srsRow struct {
		ID                            int64     `db:"id"`
		SubmissionID                  int64     `db:"submission_id"`
		Introduction                  string    `db:"introduction"`
		OverallDescription            string    `db:"overall_description"`
		SystemFeatures                string    `db:"system_features"`
		ExternalInterfaceRequirements string    `db:"external_interface_requirements"`
		NonFunctionalRequirements     string    `db:"non_functional_requirements"`
		OtherRequirements             string    `db:"other_requirements"`
		CreatedAt                     time.Time `db:"created_at"`
		UpdatedAt                     time.Time `db:"updated_at"`
	}

	scenarioStatRow struct {
		ScenarioID int64  `db:"scenario_id"`
		Title      string `db:"title"`
		Total      int    `db:"total"`
		Submitted  int    `db:"submitted"`
		Draft      int    `db:"draft"`
	}

	statusCountRow struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
)

func (r submissionRow) toSubmission() submission.Submission {
	sub := submission.Submission{
		ID:         r.ID,
		ScenarioID: r.ScenarioID,
		StudentID:  r.StudentID,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.SubmittedAt.Valid {
		t := r.SubmittedAt.Time.UTC()
		sub.SubmittedAt = &t
	}
	return sub
}

func (r summaryRow) toSummary() submission.Summary {
	student := account.Account{Username: r.StudentUsername, FirstName: r.StudentFirstName, LastName: r.StudentLastName}
	return submission.Summary{
		Submission:       r.submissionRow.toSubmission(),
		ScenarioTitle:    r.ScenarioTitle,
		StudentUsername:  r.StudentUsername,
		StudentName:      student.DisplayName(),
		RequirementCount: r.RequirementCount,
	}
}

func (r requirementRow) toRequirement() submission.Requirement {
	return submission.Requirement{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		Type:         r.Type,
		Title:        r.Title,
		Description:  r.Description,
		Priority:     r.Priority,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r srsRow) toSRS() submission.SRSDocument {
	return submission.SRSDocument{
		ID:                            r.ID,
		SubmissionID:                  r.SubmissionID,
		Introduction:                  r.Introduction,
		OverallDescription:            r.OverallDescription,
		SystemFeatures:                r.SystemFeatures,
		ExternalInterfaceRequirements: r.ExternalInterfaceRequirements,
		NonFunctionalRequirements:     r.NonFunctionalRequirements,
		OtherRequirements:             r.OtherRequirements,
		CreatedAt:                     r.CreatedAt.UTC(),
		UpdatedAt:                     r.UpdatedAt.UTC(),
	}
}

type submissionRepository struct {
	repository
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{repository{exec: exec}}
}

// GetOrCreateSubmission leans on the (scenario_id, student_id) unique constraint, so concurrent first visits share one row.
func (repo submissionRepository) GetOrCreateSubmission(ctx context.Context, scenarioID, studentID int64, exec ...core.DBExecutor) (submission.Submission, error) {
	ex := repo.getExec(exec)
	now := time.Now().UTC()
	_, err := repo.execute(ctx, ex, `
		INSERT INTO submissions (scenario_id, student_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (scenario_id, student_id) DO NOTHING`,
		scenarioID, studentID, submission.StatusDraft, now, now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return submission.Submission{}, scenario.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}

	var rows []submissionRow
	q := `SELECT ` + submissionColumns + ` FROM submissions sub WHERE sub.scenario_id = ? AND sub.student_id = ?`
	if err = repo.selectRows(ctx, ex, &rows, q, scenarioID, studentID); err != nil {
		return submission.Submission{}, errors.Wrap(err, "selecting submission")
	}
	if len(rows) == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return rows[0].toSubmission(), nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, filter submission.GetFilter, exec ...core.DBExecutor) (submission.Submission, error) {
	q := `SELECT ` + submissionColumns + ` FROM submissions sub WHERE sub.id = ?`
	if filter.ForUpdate {
		q += ` FOR UPDATE`
	}

	var rows []submissionRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, filter.ID); err != nil {
		return submission.Submission{}, errors.Wrap(err, "selecting submission")
	}
	if len(rows) == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return rows[0].toSubmission(), nil
}

func (repo submissionRepository) UpdateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	var submittedAt null.Time
	if sub.SubmittedAt != nil {
		submittedAt = null.TimeFrom(sub.SubmittedAt.UTC())
	}
	n, err := repo.execute(ctx, repo.getExec(exec),
		`UPDATE submissions SET status = ?, submitted_at = ?, updated_at = ? WHERE id = ?`,
		sub.Status, submittedAt, sub.UpdatedAt.UTC(), sub.ID)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return sub, nil
}

func (repo submissionRepository) filter(filter submission.QueryFilter) *where {
	w := new(where)
	if filter.ID != 0 {
		w.add("sub.id = ?", filter.ID)
	}
	if filter.StudentID != 0 {
		w.add("sub.student_id = ?", filter.StudentID)
	}
	if filter.ScenarioID != 0 {
		w.add("sub.scenario_id = ?", filter.ScenarioID)
	}
	if len(filter.Statuses) > 0 {
		w.add("sub.status IN (?)", filter.Statuses)
	}
	if filter.Search != "" {
		kw := likePattern(filter.Search)
		w.add("(a.username ILIKE ? OR a.first_name ILIKE ? OR a.last_name ILIKE ? OR s.title ILIKE ?)", kw, kw, kw, kw)
	}
	return w
}

func (repo submissionRepository) QuerySummaries(ctx context.Context, filter submission.QueryFilter, exec ...core.DBExecutor) ([]submission.Summary, error) {
	order := ` ORDER BY sub.updated_at DESC, sub.id DESC`
	if filter.OrderBy.Field == "submitted_at" {
		order = ` ORDER BY sub.submitted_at DESC NULLS LAST, sub.id DESC`
	}
	w := repo.filter(filter)
	q := summarySelect + w.String() + order + limitOffset(filter.Limit, filter.Offset)

	var rows []summaryRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	sums := make([]submission.Summary, 0, len(rows))
	for _, r := range rows {
		sums = append(sums, r.toSummary())
	}
	return sums, nil
}

func (repo submissionRepository) CountSubmissions(ctx context.Context, filter submission.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.filter(filter)
	q := `SELECT COUNT(*) FROM submissions sub
		JOIN scenarios s ON s.id = sub.scenario_id
		JOIN accounts a ON a.id = sub.student_id` + w.String()
	n, err := repo.count(ctx, repo.getExec(exec), q, w.args...)
	return n, errors.Wrap(err, "counting submissions")
}

func (repo submissionRepository) CountByStatus(ctx context.Context, studentID int64, exec ...core.DBExecutor) (submission.StatusCounts, error) {
	var w where
	if studentID != 0 {
		w.add("student_id = ?", studentID)
	}

	var rows []statusCountRow
	q := `SELECT status, COUNT(*) AS count FROM submissions` + w.String() + ` GROUP BY status`
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return submission.StatusCounts{}, errors.Wrap(err, "counting submissions by status")
	}

	var counts submission.StatusCounts
	for _, r := range rows {
		switch r.Status {
		case submission.StatusDraft:
			counts.Draft = r.Count
		case submission.StatusSubmitted:
			counts.Submitted = r.Count
		case submission.StatusFeedbackReceived:
			counts.FeedbackReceived = r.Count
		}
	}
	return counts, nil
}

func (repo submissionRepository) QueryScenarioStats(ctx context.Context, exec ...core.DBExecutor) ([]submission.ScenarioStat, error) {
	q := `SELECT s.id AS scenario_id, s.title,
			COUNT(sub.id) AS total,
			COUNT(sub.id) FILTER (WHERE sub.status = ?) AS submitted,
			COUNT(sub.id) FILTER (WHERE sub.status = ?) AS draft
		FROM scenarios s
		LEFT JOIN submissions sub ON sub.scenario_id = s.id
		WHERE s.is_active
		GROUP BY s.id, s.title
		ORDER BY s.title, s.id`

	var rows []scenarioStatRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, submission.StatusSubmitted, submission.StatusDraft); err != nil {
		return nil, errors.Wrap(err, "selecting scenario statistics")
	}
	stats := make([]submission.ScenarioStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, submission.ScenarioStat(r))
	}
	return stats, nil
}

func (repo submissionRepository) CreateRequirement(ctx context.Context, req submission.Requirement, exec ...core.DBExecutor) (submission.Requirement, error) {
	err := repo.queryRow(ctx, repo.getExec(exec), `
		INSERT INTO requirements (submission_id, requirement_type, title, description, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		req.SubmissionID, req.Type, req.Title, req.Description, req.Priority, req.CreatedAt.UTC(), req.UpdatedAt.UTC(),
	).Scan(&req.ID)
	if err != nil {
		return submission.Requirement{}, errors.Wrap(err, "inserting requirement")
	}
	return req, nil
}

func (repo submissionRepository) UpdateRequirement(ctx context.Context, req submission.Requirement, exec ...core.DBExecutor) (submission.Requirement, error) {
	n, err := repo.execute(ctx, repo.getExec(exec), `
		UPDATE requirements SET requirement_type = ?, title = ?, description = ?, priority = ?, updated_at = ?
		WHERE id = ?`,
		req.Type, req.Title, req.Description, req.Priority, req.UpdatedAt.UTC(), req.ID)
	if err != nil {
		return submission.Requirement{}, errors.Wrap(err, "updating requirement")
	}
	if n == 0 {
		return submission.Requirement{}, submission.ErrRequirementNotFound
	}
	return req, nil
}

func (repo submissionRepository) DeleteRequirement(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, repo.getExec(exec), `DELETE FROM requirements WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	if n == 0 {
		return submission.ErrRequirementNotFound
	}
	return nil
}

func (repo submissionRepository) GetRequirement(ctx context.Context, id int64, exec ...core.DBExecutor) (submission.Requirement, error) {
	var rows []requirementRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, `SELECT `+requirementColumns+` FROM requirements WHERE id = ?`, id); err != nil {
		return submission.Requirement{}, errors.Wrap(err, "selecting requirement")
	}
	if len(rows) == 0 {
		return submission.Requirement{}, submission.ErrRequirementNotFound
	}
	return rows[0].toRequirement(), nil
}

func (repo submissionRepository) QueryRequirements(ctx context.Context, submissionID int64, exec ...core.DBExecutor) ([]submission.Requirement, error) {
	q := `SELECT ` + requirementColumns + ` FROM requirements WHERE submission_id = ?
		ORDER BY requirement_type, created_at DESC, id DESC`

	var rows []requirementRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, submissionID); err != nil {
		return nil, errors.Wrap(err, "selecting requirements")
	}
	reqs := make([]submission.Requirement, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequirement())
	}
	return reqs, nil
}

func (repo submissionRepository) CountRequirements(ctx context.Context, submissionID int64, exec ...core.DBExecutor) (int, error) {
	n, err := repo.count(ctx, repo.getExec(exec), `SELECT COUNT(*) FROM requirements WHERE submission_id = ?`, submissionID)
	return n, errors.Wrap(err, "counting requirements")
}

func (repo submissionRepository) CreateFeedback(ctx context.Context, fb submission.Feedback, exec ...core.DBExecutor) (submission.Feedback, error) {
	err := repo.queryRow(ctx, repo.getExec(exec), `
		INSERT INTO feedback (submission_id, feedback_type, title, content, admin_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		fb.SubmissionID, fb.Type, fb.Title, fb.Content, fb.AdminID, fb.IsRead, fb.CreatedAt.UTC(),
	).Scan(&fb.ID)
	if err != nil {
		return submission.Feedback{}, errors.Wrap(err, "inserting feedback")
	}
	return fb, nil
}

func (repo submissionRepository) QueryFeedback(ctx context.Context, filter submission.FeedbackFilter, exec ...core.DBExecutor) ([]submission.Feedback, error) {
	var w where
	if filter.SubmissionID != 0 {
		w.add("f.submission_id = ?", filter.SubmissionID)
	}
	if filter.AdminID != 0 {
		w.add("f.admin_id = ?", filter.AdminID)
	}
	q := `SELECT f.id, f.submission_id, f.feedback_type, f.title, f.content, f.admin_id, f.is_read, f.created_at,
			s.title AS scenario_title
		FROM feedback f
		JOIN submissions sub ON sub.id = f.submission_id
		JOIN scenarios s ON s.id = sub.scenario_id` + w.String() + `
		ORDER BY f.created_at DESC, f.id DESC` + limitOffset(filter.Limit, 0)

	var rows []feedbackRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting feedback")
	}
	fbs := make([]submission.Feedback, 0, len(rows))
	for _, r := range rows {
		fb := submission.Feedback(r)
		fb.CreatedAt = fb.CreatedAt.UTC()
		fbs = append(fbs, fb)
	}
	return fbs, nil
}

func (repo submissionRepository) MarkFeedbackRead(ctx context.Context, submissionID int64, exec ...core.DBExecutor) (int, error) {
	n, err := repo.execute(ctx, repo.getExec(exec),
		`UPDATE feedback SET is_read = TRUE WHERE submission_id = ? AND NOT is_read`, submissionID)
	return n, errors.Wrap(err, "marking feedback read")
}

func (repo submissionRepository) GetSRS(ctx context.Context, submissionID int64, exec ...core.DBExecutor) (submission.SRSDocument, error) {
	var rows []srsRow
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, `SELECT `+srsColumns+` FROM srs_documents WHERE submission_id = ?`, submissionID); err != nil {
		return submission.SRSDocument{}, errors.Wrap(err, "selecting SRS document")
	}
	if len(rows) == 0 {
		return submission.SRSDocument{}, submission.ErrSRSNotFound
	}
	return rows[0].toSRS(), nil
}

func (repo submissionRepository) SaveSRS(ctx context.Context, doc submission.SRSDocument, exec ...core.DBExecutor) (submission.SRSDocument, error) {
	err := repo.queryRow(ctx, repo.getExec(exec), `
		INSERT INTO srs_documents (submission_id, introduction, overall_description, system_features,
			external_interface_requirements, non_functional_requirements, other_requirements, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (submission_id) DO UPDATE SET
			introduction = EXCLUDED.introduction,
			overall_description = EXCLUDED.overall_description,
			system_features = EXCLUDED.system_features,
			external_interface_requirements = EXCLUDED.external_interface_requirements,
			non_functional_requirements = EXCLUDED.non_functional_requirements,
			other_requirements = EXCLUDED.other_requirements,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		doc.SubmissionID, doc.Introduction, doc.OverallDescription, doc.SystemFeatures,
		doc.ExternalInterfaceRequirements, doc.NonFunctionalRequirements, doc.OtherRequirements,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return submission.SRSDocument{}, errors.Wrap(err, "saving SRS document")
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}
