package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/scenario"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("submission not found")
	ErrRequirementNotFound = core.NewNotFoundError("requirement not found")
	ErrSRSNotFound         = core.NewNotFoundError("SRS document not found")

	errNotOwner         = core.NewPermissionError("you can only modify your own submissions")
	errAccessDenied     = core.NewPermissionError("access denied")
	errAdminOnly        = core.NewPermissionError("only admins can do this")
	errNotDraft         = core.NewInvalidStateError("Cannot modify submitted requirements.")
	errAlreadySubmitted = core.NewInvalidStateError("This submission has already been submitted.")
	errNoRequirements   = core.NewInvalidStateError("Please add at least one requirement before submitting.")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// GetOrCreateSubmission returns the (scenario, student) submission, creating a draft if there is none.
		GetOrCreateSubmission(ctx context.Context, scenarioID, studentID int64, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		QuerySummaries(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Summary, error)
		CountSubmissions(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		// CountByStatus counts the submissions of studentID, or all of them when studentID is 0.
		CountByStatus(ctx context.Context, studentID int64, exec ...core.DBExecutor) (StatusCounts, error)
		// QueryScenarioStats returns one row per active scenario, ordered by title.
		QueryScenarioStats(ctx context.Context, exec ...core.DBExecutor) ([]ScenarioStat, error)

		CreateRequirement(ctx context.Context, req Requirement, exec ...core.DBExecutor) (Requirement, error)
		UpdateRequirement(ctx context.Context, req Requirement, exec ...core.DBExecutor) (Requirement, error)
		DeleteRequirement(ctx context.Context, id int64, exec ...core.DBExecutor) error
		GetRequirement(ctx context.Context, id int64, exec ...core.DBExecutor) (Requirement, error)
		// QueryRequirements orders by requirement type, then newest first.
		QueryRequirements(ctx context.Context, submissionID int64, exec ...core.DBExecutor) ([]Requirement, error)
		CountRequirements(ctx context.Context, submissionID int64, exec ...core.DBExecutor) (int, error)

		CreateFeedback(ctx context.Context, fb Feedback, exec ...core.DBExecutor) (Feedback, error)
		// QueryFeedback returns the newest feedback first, with the scenario title filled in.
		QueryFeedback(ctx context.Context, filter FeedbackFilter, exec ...core.DBExecutor) ([]Feedback, error)
		MarkFeedbackRead(ctx context.Context, submissionID int64, exec ...core.DBExecutor) (int, error)

		GetSRS(ctx context.Context, submissionID int64, exec ...core.DBExecutor) (SRSDocument, error)
		// SaveSRS inserts or updates the submission's document.
		SaveSRS(ctx context.Context, doc SRSDocument, exec ...core.DBExecutor) (SRSDocument, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		scSvc    *scenario.Service
		accSvc   *account.Service
		notifSvc *notification.Service
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	scSvc *scenario.Service,
	accSvc *account.Service,
	notifSvc *notification.Service,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, tx: tx, scSvc: scSvc, accSvc: accSvc, notifSvc: notifSvc, validate: validate}
}

// Workspace opens the scenario for p. Students get (or start) their submission; admins only see the scenario.
func (svc *Service) Workspace(ctx context.Context, p account.Principal, scenarioID int64) (Workspace, error) {
	sc, err := svc.scSvc.GetActive(ctx, scenarioID)
	if err != nil {
		return Workspace{}, err
	}
	if p.IsAdmin() {
		return Workspace{Scenario: sc, IsAdminView: true, Requirements: GroupRequirements(nil)}, nil
	}

	sub, err := svc.GetOrCreate(ctx, sc.ID, p.ID())
	if err != nil {
		return Workspace{}, err
	}
	reqs, err := svc.repo.QueryRequirements(ctx, sub.ID)
	if err != nil {
		return Workspace{}, errors.Wrap(err, "querying requirements")
	}
	return Workspace{Scenario: sc, Submission: &sub, Requirements: GroupRequirements(reqs)}, nil
}

func (svc *Service) GetOrCreate(ctx context.Context, scenarioID, studentID int64) (Submission, error) {
	sub, err := svc.repo.GetOrCreateSubmission(ctx, scenarioID, studentID)
	return sub, errors.Wrap(err, "getting or creating submission")
}

// lockOwned loads the submission for update and checks p may edit it.
func (svc *Service) lockOwned(ctx context.Context, p account.Principal, id int64, exec core.DBExecutor) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, GetFilter{ID: id, ForUpdate: true}, exec)
	if err != nil {
		return Submission{}, err
	}
	if sub.StudentID != p.ID() {
		return Submission{}, errNotOwner
	}
	return sub, nil
}

// Submit moves a draft with at least one requirement to submitted and notifies every admin.
func (svc *Service) Submit(ctx context.Context, p account.Principal, id int64) (Submission, error) {
	var (
		sub    Submission
		outbox notification.Outbox
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if sub, err = svc.lockOwned(ctx, p, id, exec); err != nil {
			return err
		}
		if !sub.IsDraft() {
			return errAlreadySubmitted
		}
		n, err := svc.repo.CountRequirements(ctx, sub.ID, exec)
		if err != nil {
			return errors.Wrap(err, "counting requirements")
		}
		if n == 0 {
			return errNoRequirements
		}

		now := nowFunc().UTC()
		sub.Status = StatusSubmitted
		sub.SubmittedAt = &now
		sub.UpdatedAt = now
		if sub, err = svc.repo.UpdateSubmission(ctx, sub, exec); err != nil {
			return errors.Wrap(err, "updating submission")
		}

		sc, err := svc.scSvc.Get(ctx, sub.ScenarioID, exec)
		if err != nil {
			return errors.Wrap(err, "finding scenario")
		}
		admins, err := svc.accSvc.ListByRole(ctx, account.RoleAdmin, exec)
		if err != nil {
			return errors.Wrap(err, "listing admins")
		}
		return svc.notifSvc.Notify(ctx, &outbox, admins, notification.Notice{
			Title:   "New Submission for Review",
			Message: fmt.Sprintf("%s submitted requirements for %s", p.Account.DisplayName(), sc.Title),
			Link:    fmt.Sprintf("/submissions/%d/", sub.ID),
		}, exec)
	})
	if err != nil {
		return Submission{}, err
	}
	svc.notifSvc.Flush(&outbox)
	return sub, nil
}

// AttachFeedback records an admin's feedback, sets the status to feedback_received and notifies the student.
// Feedback may be given repeatedly; the status then stays feedback_received.
func (svc *Service) AttachFeedback(ctx context.Context, p account.Principal, id int64, data FeedbackData) (Feedback, error) {
	if !p.IsAdmin() {
		return Feedback{}, errAdminOnly
	}
	if err := data.Validate(svc.validate); err != nil {
		return Feedback{}, err
	}

	var (
		fb     Feedback
		outbox notification.Outbox
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		sub, err := svc.repo.GetSubmission(ctx, GetFilter{ID: id, ForUpdate: true}, exec)
		if err != nil {
			return err
		}

		now := nowFunc().UTC()
		fb, err = svc.repo.CreateFeedback(ctx, Feedback{
			SubmissionID: sub.ID,
			Type:         data.Type,
			Title:        data.Title,
			Content:      data.Content,
			AdminID:      p.ID(),
			CreatedAt:    now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating feedback")
		}

		sub.Status = StatusFeedbackReceived
		sub.UpdatedAt = now
		if _, err = svc.repo.UpdateSubmission(ctx, sub, exec); err != nil {
			return errors.Wrap(err, "updating submission")
		}

		sc, err := svc.scSvc.Get(ctx, sub.ScenarioID, exec)
		if err != nil {
			return errors.Wrap(err, "finding scenario")
		}
		fb.ScenarioTitle = sc.Title
		student, err := svc.accSvc.Get(ctx, sub.StudentID, exec)
		if err != nil {
			return errors.Wrap(err, "finding student")
		}
		return svc.notifSvc.Notify(ctx, &outbox, []account.Principal{{Account: student}}, notification.Notice{
			Title:   "New Feedback Received",
			Message: fmt.Sprintf("You have received feedback for %s", sc.Title),
			Link:    fmt.Sprintf("/submissions/%d/", sub.ID),
		}, exec)
	})
	if err != nil {
		return Feedback{}, err
	}
	svc.notifSvc.Flush(&outbox)
	return fb, nil
}

// AddRequirement validates data, then appends it to p's draft.
func (svc *Service) AddRequirement(ctx context.Context, p account.Principal, submissionID int64, data RequirementData) (Requirement, error) {
	if err := data.Validate(svc.validate); err != nil {
		return Requirement{}, err
	}
	var req Requirement
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		sub, err := svc.lockOwned(ctx, p, submissionID, exec)
		if err != nil {
			return err
		}
		if !sub.IsDraft() {
			return errNotDraft
		}

		now := nowFunc().UTC()
		req = Requirement{SubmissionID: sub.ID, CreatedAt: now, UpdatedAt: now}
		data.apply(&req)
		if req, err = svc.repo.CreateRequirement(ctx, req, exec); err != nil {
			return errors.Wrap(err, "creating requirement")
		}
		return svc.touch(ctx, sub, now, exec)
	})
	return req, err
}

// GetRequirement returns a requirement its owner may still edit.
func (svc *Service) GetRequirement(ctx context.Context, p account.Principal, id int64) (Requirement, error) {
	var req Requirement
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		req, _, err = svc.lockRequirement(ctx, p, id, exec)
		return err
	})
	return req, err
}

func (svc *Service) EditRequirement(ctx context.Context, p account.Principal, id int64, data RequirementData) (Requirement, error) {
	if err := data.Validate(svc.validate); err != nil {
		return Requirement{}, err
	}
	var req Requirement
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var (
			sub Submission
			err error
		)
		if req, sub, err = svc.lockRequirement(ctx, p, id, exec); err != nil {
			return err
		}

		now := nowFunc().UTC()
		data.apply(&req)
		req.UpdatedAt = now
		if req, err = svc.repo.UpdateRequirement(ctx, req, exec); err != nil {
			return errors.Wrap(err, "updating requirement")
		}
		return svc.touch(ctx, sub, now, exec)
	})
	return req, err
}

func (svc *Service) DeleteRequirement(ctx context.Context, p account.Principal, id int64) (Requirement, error) {
	var req Requirement
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var (
			sub Submission
			err error
		)
		if req, sub, err = svc.lockRequirement(ctx, p, id, exec); err != nil {
			return err
		}
		if err = svc.repo.DeleteRequirement(ctx, req.ID, exec); err != nil {
			return errors.Wrap(err, "deleting requirement")
		}
		return svc.touch(ctx, sub, nowFunc().UTC(), exec)
	})
	return req, err
}

func (svc *Service) lockRequirement(ctx context.Context, p account.Principal, id int64, exec core.DBExecutor) (Requirement, Submission, error) {
	req, err := svc.repo.GetRequirement(ctx, id, exec)
	if err != nil {
		return Requirement{}, Submission{}, err
	}
	sub, err := svc.lockOwned(ctx, p, req.SubmissionID, exec)
	if err != nil {
		return Requirement{}, Submission{}, err
	}
	if !sub.IsDraft() {
		return Requirement{}, Submission{}, errNotDraft
	}
	return req, sub, nil
}

// touch bumps updated_at, which orders the admin submission list.
func (svc *Service) touch(ctx context.Context, sub Submission, now time.Time, exec core.DBExecutor) error {
	sub.UpdatedAt = now
	_, err := svc.repo.UpdateSubmission(ctx, sub, exec)
	return errors.Wrap(err, "updating submission")
}

func (svc *Service) getSummary(ctx context.Context, id int64) (Summary, error) {
	sums, err := svc.repo.QuerySummaries(ctx, QueryFilter{ID: id, Limit: 1})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying submission")
	}
	if len(sums) == 0 {
		return Summary{}, ErrNotFound
	}
	return sums[0], nil
}

// Detail is visible to admins and to the owning student.
func (svc *Service) Detail(ctx context.Context, p account.Principal, id int64) (Detail, error) {
	sum, err := svc.getSummary(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !p.IsAdmin() && sum.StudentID != p.ID() {
		return Detail{}, errAccessDenied
	}

	reqs, err := svc.repo.QueryRequirements(ctx, id)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying requirements")
	}
	fbs, err := svc.repo.QueryFeedback(ctx, FeedbackFilter{SubmissionID: id})
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying feedback")
	}
	if fbs == nil {
		fbs = []Feedback{}
	}

	d := Detail{Submission: sum, Requirements: GroupRequirements(reqs), Feedback: fbs}
	doc, err := svc.repo.GetSRS(ctx, id)
	switch {
	case err == nil:
		d.SRS = &doc
	case errors.Cause(err) != ErrSRSNotFound:
		return Detail{}, errors.Wrap(err, "finding SRS document")
	}
	return d, nil
}

// MarkFeedbackRead flags the submission's feedback as read once an admin has opened it.
func (svc *Service) MarkFeedbackRead(ctx context.Context, p account.Principal, id int64) (int, error) {
	if !p.IsAdmin() {
		return 0, errAdminOnly
	}
	return svc.repo.MarkFeedbackRead(ctx, id)
}

// GetSRS returns the submission's document, or a blank unsaved one.
func (svc *Service) GetSRS(ctx context.Context, p account.Principal, submissionID int64) (SRSDocument, error) {
	sub, err := svc.repo.GetSubmission(ctx, GetFilter{ID: submissionID})
	if err != nil {
		return SRSDocument{}, err
	}
	if !p.IsAdmin() && sub.StudentID != p.ID() {
		return SRSDocument{}, errAccessDenied
	}

	doc, err := svc.repo.GetSRS(ctx, sub.ID)
	if errors.Cause(err) == ErrSRSNotFound {
		return SRSDocument{SubmissionID: sub.ID}, nil
	}
	return doc, err
}

// SaveSRS can be used by the owner whatever the submission's status.
func (svc *Service) SaveSRS(ctx context.Context, p account.Principal, submissionID int64, data SRSData) (SRSDocument, error) {
	var doc SRSDocument
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		sub, err := svc.lockOwned(ctx, p, submissionID, exec)
		if err != nil {
			return err
		}

		now := nowFunc().UTC()
		doc, err = svc.repo.GetSRS(ctx, sub.ID, exec)
		if err != nil {
			if errors.Cause(err) != ErrSRSNotFound {
				return errors.Wrap(err, "finding SRS document")
			}
			doc = SRSDocument{SubmissionID: sub.ID, CreatedAt: now}
		}
		data.apply(&doc)
		doc.UpdatedAt = now
		doc, err = svc.repo.SaveSRS(ctx, doc, exec)
		return errors.Wrap(err, "saving SRS document")
	})
	return doc, err
}

// AdminList is the review queue: filtered and paginated submissions plus global statistics.
func (svc *Service) AdminList(ctx context.Context, p account.Principal, filter AdminListFilter) (AdminList, error) {
	if !p.IsAdmin() {
		return AdminList{}, errAdminOnly
	}

	counts, err := svc.repo.CountByStatus(ctx, 0)
	if err != nil {
		return AdminList{}, errors.Wrap(err, "counting submissions")
	}
	stats, err := svc.repo.QueryScenarioStats(ctx)
	if err != nil {
		return AdminList{}, errors.Wrap(err, "querying scenario statistics")
	}

	qf := QueryFilter{ScenarioID: filter.ScenarioID, Search: core.CleanString(filter.Search)}
	if filter.Status != "" {
		qf.Statuses = []string{filter.Status}
	}
	total, err := svc.repo.CountSubmissions(ctx, qf)
	if err != nil {
		return AdminList{}, errors.Wrap(err, "counting submissions")
	}
	page := core.NewPage(filter.Page, AdminPageSize, total)

	listF := qf
	listF.OrderBy = core.DBOrdering{Field: "updated_at"}
	listF.Limit, listF.Offset = page.Size, page.Offset()
	subs, err := svc.repo.QuerySummaries(ctx, listF)
	if err != nil {
		return AdminList{}, errors.Wrap(err, "querying submissions")
	}

	// recent submitted rows of the filtered set
	var recent []Summary
	if filter.Status == "" || filter.Status == StatusSubmitted {
		recentF := qf
		recentF.Statuses = []string{StatusSubmitted}
		recentF.OrderBy = core.DBOrdering{Field: "submitted_at"}
		recentF.Limit = 5
		if recent, err = svc.repo.QuerySummaries(ctx, recentF); err != nil {
			return AdminList{}, errors.Wrap(err, "querying recent submissions")
		}
	}

	return AdminList{
		Submissions: nonNil(subs),
		Page:        page,
		Stats: AdminStats{
			Total:     counts.Total(),
			Pending:   counts.Submitted,
			Completed: counts.FeedbackReceived,
			Draft:     counts.Draft,
		},
		ScenarioStats: stats,
		Recent:        nonNil(recent),
	}, nil
}

func nonNil(sums []Summary) []Summary {
	if sums == nil {
		return []Summary{}
	}
	return sums
}

func (svc *Service) ListForStudent(ctx context.Context, studentID int64) ([]Summary, error) {
	return svc.repo.QuerySummaries(ctx, QueryFilter{StudentID: studentID})
}

// RecentSubmitted returns the latest submitted rows (studentID 0 means every student).
func (svc *Service) RecentSubmitted(ctx context.Context, studentID int64, limit int) ([]Summary, error) {
	sums, err := svc.repo.QuerySummaries(ctx, QueryFilter{
		StudentID: studentID,
		Statuses:  []string{StatusSubmitted},
		OrderBy:   core.DBOrdering{Field: "submitted_at"},
		Limit:     limit,
	})
	return nonNil(sums), err
}

func (svc *Service) RecentFeedbackBy(ctx context.Context, adminID int64, limit int) ([]Feedback, error) {
	return svc.repo.QueryFeedback(ctx, FeedbackFilter{AdminID: adminID, Limit: limit})
}

// CountByStatus counts the submissions of studentID, or all of them when studentID is 0.
func (svc *Service) CountByStatus(ctx context.Context, studentID int64) (StatusCounts, error) {
	return svc.repo.CountByStatus(ctx, studentID)
}
