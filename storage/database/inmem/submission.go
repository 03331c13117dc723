package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) GetOrCreateSubmission(_ context.Context, scenarioID, studentID int64, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, sub := range repo.db.submissions {
		if sub.ScenarioID == scenarioID && sub.StudentID == studentID {
			return sub, nil
		}
	}
	if _, ok := repo.db.scenarios[scenarioID]; !ok {
		return submission.Submission{}, scenario.ErrNotFound
	}

	now := nowUTC()
	sub := submission.Submission{
		ID:         repo.db.nextID("submissions"),
		ScenarioID: scenarioID,
		StudentID:  studentID,
		Status:     submission.StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	put(txOf(exec), repo.db.submissions, sub.ID, sub)
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, filter submission.GetFilter, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[filter.ID]; ok {
		return sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) UpdateSubmission(_ context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	put(txOf(exec), repo.db.submissions, sub.ID, sub)
	return sub, nil
}

func (repo *submissionRepository) summarize(sub submission.Submission) submission.Summary {
	sum := submission.Summary{Submission: sub}
	sum.ScenarioTitle = repo.db.scenarios[sub.ScenarioID].Title
	if acc, ok := repo.db.accounts[sub.StudentID]; ok {
		sum.StudentUsername = acc.Username
		sum.StudentName = acc.DisplayName()
	}
	for _, r := range repo.db.requirements {
		if r.SubmissionID == sub.ID {
			sum.RequirementCount++
		}
	}
	return sum
}

func (repo *submissionRepository) matches(sub submission.Submission, filter submission.QueryFilter) bool {
	switch {
	case filter.ID != 0 && sub.ID != filter.ID,
		filter.StudentID != 0 && sub.StudentID != filter.StudentID,
		filter.ScenarioID != 0 && sub.ScenarioID != filter.ScenarioID:
		return false
	}
	if len(filter.Statuses) > 0 {
		var ok bool
		for _, st := range filter.Statuses {
			if sub.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		acc := repo.db.accounts[sub.StudentID]
		fields := []string{acc.Username, acc.FirstName, acc.LastName, repo.db.scenarios[sub.ScenarioID].Title}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), kw) {
				return true
			}
		}
		return false
	}
	return true
}

// query returns the matching submissions, newest first on filter.OrderBy. Callers hold db.mu.
func (repo *submissionRepository) query(filter submission.QueryFilter) []submission.Submission {
	subs := make([]submission.Submission, 0)
	for _, sub := range repo.db.submissions {
		if repo.matches(sub, filter) {
			subs = append(subs, sub)
		}
	}

	bySubmitted := filter.OrderBy.Field == "submitted_at"
	sort.Slice(subs, func(i, j int) bool {
		ti, tj := subs[i].UpdatedAt, subs[j].UpdatedAt
		if bySubmitted {
			si, sj := subs[i].SubmittedAt, subs[j].SubmittedAt
			if si == nil || sj == nil {
				if (si == nil) != (sj == nil) {
					return sj == nil // unsubmitted last
				}
				return subs[i].ID > subs[j].ID
			}
			ti, tj = *si, *sj
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return subs[i].ID > subs[j].ID
	})
	return subs
}

func (repo *submissionRepository) QuerySummaries(_ context.Context, filter submission.QueryFilter, _ ...core.DBExecutor) ([]submission.Summary, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := paginate(repo.query(filter), filter.Offset, filter.Limit)
	sums := make([]submission.Summary, 0, len(subs))
	for _, sub := range subs {
		sums = append(sums, repo.summarize(sub))
	}
	return sums, nil
}

func (repo *submissionRepository) CountSubmissions(_ context.Context, filter submission.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *submissionRepository) CountByStatus(_ context.Context, studentID int64, _ ...core.DBExecutor) (submission.StatusCounts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var counts submission.StatusCounts
	for _, sub := range repo.db.submissions {
		if studentID != 0 && sub.StudentID != studentID {
			continue
		}
		switch sub.Status {
		case submission.StatusDraft:
			counts.Draft++
		case submission.StatusSubmitted:
			counts.Submitted++
		case submission.StatusFeedbackReceived:
			counts.FeedbackReceived++
		}
	}
	return counts, nil
}

func (repo *submissionRepository) QueryScenarioStats(_ context.Context, _ ...core.DBExecutor) ([]submission.ScenarioStat, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stats := make([]submission.ScenarioStat, 0)
	for _, sc := range repo.db.scenarios {
		if !sc.IsActive {
			continue
		}
		st := submission.ScenarioStat{ScenarioID: sc.ID, Title: sc.Title}
		for _, sub := range repo.db.submissions {
			if sub.ScenarioID != sc.ID {
				continue
			}
			st.Total++
			switch sub.Status {
			case submission.StatusSubmitted:
				st.Submitted++
			case submission.StatusDraft:
				st.Draft++
			}
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Title != stats[j].Title {
			return stats[i].Title < stats[j].Title
		}
		return stats[i].ScenarioID < stats[j].ScenarioID
	})
	return stats, nil
}

func (repo *submissionRepository) CreateRequirement(_ context.Context, req submission.Requirement, exec ...core.DBExecutor) (submission.Requirement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[req.SubmissionID]; !ok {
		return submission.Requirement{}, submission.ErrNotFound
	}
	req.ID = repo.db.nextID("requirements")
	put(txOf(exec), repo.db.requirements, req.ID, req)
	return req, nil
}

func (repo *submissionRepository) UpdateRequirement(_ context.Context, req submission.Requirement, exec ...core.DBExecutor) (submission.Requirement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.requirements[req.ID]; !ok {
		return submission.Requirement{}, submission.ErrRequirementNotFound
	}
	put(txOf(exec), repo.db.requirements, req.ID, req)
	return req, nil
}

func (repo *submissionRepository) DeleteRequirement(_ context.Context, id int64, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.requirements[id]; !ok {
		return submission.ErrRequirementNotFound
	}
	remove(txOf(exec), repo.db.requirements, id)
	return nil
}

func (repo *submissionRepository) GetRequirement(_ context.Context, id int64, _ ...core.DBExecutor) (submission.Requirement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if req, ok := repo.db.requirements[id]; ok {
		return req, nil
	}
	return submission.Requirement{}, submission.ErrRequirementNotFound
}

func (repo *submissionRepository) QueryRequirements(_ context.Context, submissionID int64, _ ...core.DBExecutor) ([]submission.Requirement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reqs := make([]submission.Requirement, 0)
	for _, r := range repo.db.requirements {
		if r.SubmissionID == submissionID {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		ri, rj := reqs[i], reqs[j]
		switch {
		case ri.Type != rj.Type:
			return ri.Type < rj.Type
		case !ri.CreatedAt.Equal(rj.CreatedAt):
			return ri.CreatedAt.After(rj.CreatedAt)
		}
		return ri.ID > rj.ID
	})
	return reqs, nil
}

func (repo *submissionRepository) CountRequirements(_ context.Context, submissionID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, r := range repo.db.requirements {
		if r.SubmissionID == submissionID {
			n++
		}
	}
	return n, nil
}

func (repo *submissionRepository) CreateFeedback(_ context.Context, fb submission.Feedback, exec ...core.DBExecutor) (submission.Feedback, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[fb.SubmissionID]; !ok {
		return submission.Feedback{}, submission.ErrNotFound
	}
	fb.ID = repo.db.nextID("feedback")
	fb.ScenarioTitle = ""
	put(txOf(exec), repo.db.feedback, fb.ID, fb)
	return fb, nil
}

func (repo *submissionRepository) QueryFeedback(_ context.Context, filter submission.FeedbackFilter, _ ...core.DBExecutor) ([]submission.Feedback, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fbs := make([]submission.Feedback, 0)
	for _, fb := range repo.db.feedback {
		if filter.SubmissionID != 0 && fb.SubmissionID != filter.SubmissionID {
			continue
		}
		if filter.AdminID != 0 && fb.AdminID != filter.AdminID {
			continue
		}
		sub := repo.db.submissions[fb.SubmissionID]
		fb.ScenarioTitle = repo.db.scenarios[sub.ScenarioID].Title
		fbs = append(fbs, fb)
	}
	sort.Slice(fbs, func(i, j int) bool {
		if !fbs[i].CreatedAt.Equal(fbs[j].CreatedAt) {
			return fbs[i].CreatedAt.After(fbs[j].CreatedAt)
		}
		return fbs[i].ID > fbs[j].ID
	})
	return paginate(fbs, 0, filter.Limit), nil
}

func (repo *submissionRepository) MarkFeedbackRead(_ context.Context, submissionID int64, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, fb := range repo.db.feedback {
		if fb.SubmissionID == submissionID && !fb.IsRead {
			fb.IsRead = true
			put(txOf(exec), repo.db.feedback, id, fb)
			n++
		}
	}
	return n, nil
}

func (repo *submissionRepository) GetSRS(_ context.Context, submissionID int64, _ ...core.DBExecutor) (submission.SRSDocument, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, doc := range repo.db.srsDocuments {
		if doc.SubmissionID == submissionID {
			return doc, nil
		}
	}
	return submission.SRSDocument{}, submission.ErrSRSNotFound
}

func (repo *submissionRepository) SaveSRS(_ context.Context, doc submission.SRSDocument, exec ...core.DBExecutor) (submission.SRSDocument, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[doc.SubmissionID]; !ok {
		return submission.SRSDocument{}, submission.ErrNotFound
	}
	for id, existing := range repo.db.srsDocuments {
		if existing.SubmissionID == doc.SubmissionID {
			doc.ID = id
			doc.CreatedAt = existing.CreatedAt
		}
	}
	if doc.ID == 0 {
		doc.ID = repo.db.nextID("srs_documents")
	}
	put(txOf(exec), repo.db.srsDocuments, doc.ID, doc)
	return doc, nil
}
