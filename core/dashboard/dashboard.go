// Package dashboard computes the read-only landing page statistics of students and admins.
package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

const (
	recentLimit       = 5
	activityPerSource = 3

	ActivityScenarioCreated   = "scenario_created"
	ActivityFeedbackGiven     = "feedback_given"
	ActivityStudentRegistered = "student_registered"
)

type (
	Student struct {
		ActiveSubmissions    []submission.Summary `json:"active_submissions"`
		CompletedScenarios   []int64              `json:"completed_scenarios"`
		CompletedCount       int                  `json:"completed_count"`
		ProgressPercentage   int                  `json:"progress_percentage"`
		RecentActivities     []submission.Summary `json:"recent_activities"`
		FeedbackCount        int                  `json:"feedback_count"`
		TotalScenarios       int                  `json:"total_scenarios"`
		DraftSubmissions     int                  `json:"draft_submissions"`
		CompletedSubmissions int                  `json:"completed_submissions"`
	}

	Admin struct {
		TotalScenarios    int                  `json:"total_scenarios"`
		TotalStudents     int                  `json:"total_students"`
		TotalSubmissions  int                  `json:"total_submissions"`
		PendingReviews    int                  `json:"pending_reviews"`
		RecentSubmissions []submission.Summary `json:"recent_submissions"`
		RecentActivities  []Activity           `json:"recent_activities"`
	}

	Activity struct {
		Type        string    `json:"type"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Time        time.Time `json:"time"`
	}

	Service struct {
		accSvc *account.Service
		scSvc  *scenario.Service
		subSvc *submission.Service
	}
)

func NewService(accSvc *account.Service, scSvc *scenario.Service, subSvc *submission.Service) *Service {
	return &Service{accSvc: accSvc, scSvc: scSvc, subSvc: subSvc}
}

// Progress counts each completed scenario as 1 and each draft with at least one requirement as 0.5,
// over the number of active scenarios, rounded half to even.
func Progress(completed int, partial float64, totalActive int) int {
	if totalActive <= 0 {
		return 0
	}
	return int(math.RoundToEven((float64(completed) + partial) / float64(totalActive) * 100))
}

func (svc *Service) Student(ctx context.Context, p account.Principal) (Student, error) {
	total, err := svc.scSvc.Count(ctx, true /* activeOnly */)
	if err != nil {
		return Student{}, errors.Wrap(err, "counting active scenarios")
	}
	subs, err := svc.subSvc.ListForStudent(ctx, p.ID())
	if err != nil {
		return Student{}, errors.Wrap(err, "listing submissions")
	}
	recent, err := svc.subSvc.RecentSubmitted(ctx, p.ID(), recentLimit)
	if err != nil {
		return Student{}, errors.Wrap(err, "listing recent submissions")
	}

	d := Student{
		ActiveSubmissions:  []submission.Summary{},
		CompletedScenarios: []int64{},
		RecentActivities:   recent,
		TotalScenarios:     total,
	}
	var partial float64
	seen := make(map[int64]bool)
	for _, s := range subs {
		switch s.Status {
		case submission.StatusDraft:
			d.DraftSubmissions++
			if len(d.ActiveSubmissions) < recentLimit {
				d.ActiveSubmissions = append(d.ActiveSubmissions, s)
			}
			if s.RequirementCount > 0 {
				partial += 0.5
			}
		case submission.StatusSubmitted, submission.StatusFeedbackReceived:
			d.CompletedSubmissions++
			if s.Status == submission.StatusFeedbackReceived {
				d.FeedbackCount++
			}
			if !seen[s.ScenarioID] {
				seen[s.ScenarioID] = true
				d.CompletedScenarios = append(d.CompletedScenarios, s.ScenarioID)
			}
		}
	}
	d.CompletedCount = len(d.CompletedScenarios)
	d.ProgressPercentage = Progress(d.CompletedCount, partial, total)
	return d, nil
}

func (svc *Service) Admin(ctx context.Context, p account.Principal) (Admin, error) {
	var (
		d   Admin
		err error
	)
	if d.TotalScenarios, err = svc.scSvc.Count(ctx, false /* activeOnly */); err != nil {
		return Admin{}, errors.Wrap(err, "counting scenarios")
	}
	if d.TotalStudents, err = svc.accSvc.CountStudents(ctx); err != nil {
		return Admin{}, errors.Wrap(err, "counting students")
	}
	counts, err := svc.subSvc.CountByStatus(ctx, 0)
	if err != nil {
		return Admin{}, errors.Wrap(err, "counting submissions")
	}
	d.TotalSubmissions = counts.Total()
	d.PendingReviews = counts.Submitted
	if d.RecentSubmissions, err = svc.subSvc.RecentSubmitted(ctx, 0, recentLimit); err != nil {
		return Admin{}, errors.Wrap(err, "listing recent submissions")
	}
	if d.RecentActivities, err = svc.activities(ctx, p); err != nil {
		return Admin{}, err
	}
	return d, nil
}

// activities merges the three activity sources, newest first.
func (svc *Service) activities(ctx context.Context, p account.Principal) ([]Activity, error) {
	var scenarios, feedback, students []Activity

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scs, err := svc.scSvc.RecentByCreator(gctx, p.ID(), activityPerSource)
		if err != nil {
			return errors.Wrap(err, "listing recent scenarios")
		}
		for _, sc := range scs {
			scenarios = append(scenarios, Activity{
				Type:        ActivityScenarioCreated,
				Title:       "New scenario created",
				Description: sc.Title,
				Time:        sc.CreatedAt,
			})
		}
		return nil
	})
	g.Go(func() error {
		fbs, err := svc.subSvc.RecentFeedbackBy(gctx, p.ID(), activityPerSource)
		if err != nil {
			return errors.Wrap(err, "listing recent feedback")
		}
		for _, fb := range fbs {
			feedback = append(feedback, Activity{
				Type:        ActivityFeedbackGiven,
				Title:       "Submission reviewed",
				Description: "Feedback for " + fb.ScenarioTitle,
				Time:        fb.CreatedAt,
			})
		}
		return nil
	})
	g.Go(func() error {
		ps, err := svc.accSvc.RecentStudents(gctx, activityPerSource)
		if err != nil {
			return errors.Wrap(err, "listing recent students")
		}
		for _, sp := range ps {
			students = append(students, Activity{
				Type:        ActivityStudentRegistered,
				Title:       "New student registered",
				Description: sp.Account.DisplayName(),
				Time:        sp.Profile.CreatedAt,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	acts := make([]Activity, 0, len(scenarios)+len(feedback)+len(students))
	acts = append(acts, scenarios...)
	acts = append(acts, feedback...)
	acts = append(acts, students...)
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Time.After(acts[j].Time) })
	if len(acts) > recentLimit {
		acts = acts[:recentLimit]
	}
	return acts, nil
}
