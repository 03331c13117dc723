package submission_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/submission"
	testutil "github.com/thejadex/RE-VLab/tests"
)

var env = testutil.NewEnv()

func TestService_GetOrCreate_concurrent(t *testing.T) {
	env.Reset()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)

	var (
		wg  sync.WaitGroup
		ids = make([]int64, 8)
	)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := env.SubmissionSvc.GetOrCreate(context.Background(), sc.ID, student.ID())
			assert.NoError(t, err)
			ids[i] = sub.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	counts, err := env.SubmissionSvc.CountByStatus(context.Background(), student.ID())
	require.NoError(t, err)
	assert.Equal(t, submission.StatusCounts{Draft: 1}, counts)
}

func TestService_lifecycle(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	intruder := testutil.CreateStudent(t, env, "villain", "", "")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	sub := testutil.StartSubmission(t, env, student, sc)
	env.Mail.Reset()

	data := submission.RequirementData{Type: submission.TypeFunctional, Title: "Search", Description: "Search books"}
	require.NoError(t, data.Validate(env.Validate))
	assert.Equal(t, submission.PriorityMedium, data.Priority)

	// nothing to submit yet
	_, err := env.SubmissionSvc.Submit(ctx, student, sub.ID)
	assert.True(t, core.IsInvalidState(err))
	unsubmitted, err := env.SubmissionSvc.Detail(ctx, student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusDraft, unsubmitted.Submission.Status)
	assert.Nil(t, unsubmitted.Submission.SubmittedAt)
	assert.Empty(t, env.Mail.SentMessages())

	_, err = env.SubmissionSvc.AddRequirement(ctx, intruder, sub.ID, data)
	assert.True(t, core.IsPermissionError(err))

	req, err := env.SubmissionSvc.AddRequirement(ctx, student, sub.ID, data)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, req.SubmissionID)

	data.Title = "Search by author"
	edited, err := env.SubmissionSvc.EditRequirement(ctx, student, req.ID, data)
	require.NoError(t, err)
	assert.Equal(t, "Search by author", edited.Title)
	assert.Equal(t, req.CreatedAt, edited.CreatedAt)

	_, err = env.SubmissionSvc.EditRequirement(ctx, intruder, req.ID, data)
	assert.True(t, core.IsPermissionError(err))
	_, err = env.SubmissionSvc.GetRequirement(ctx, student, 999)
	assert.Equal(t, submission.ErrRequirementNotFound, err)

	extra := testutil.AddRequirement(t, env, student, sub, submission.TypeBusiness, "Fees")
	_, err = env.SubmissionSvc.DeleteRequirement(ctx, student, extra.ID)
	require.NoError(t, err)

	_, err = env.SubmissionSvc.Submit(ctx, intruder, sub.ID)
	assert.True(t, core.IsPermissionError(err))

	submitted, err := env.SubmissionSvc.Submit(ctx, student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	// admins are told
	list, err := env.NotificationSvc.List(ctx, admin.ID(), 1)
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, "New Submission for Review", list.Notifications[0].Title)
	assert.Equal(t, "Hero Student submitted requirements for Library System", list.Notifications[0].Message)
	assert.Equal(t, fmt.Sprintf("/submissions/%d/", sub.ID), list.Notifications[0].Link)
	assert.Len(t, env.Mail.SentMessages(), 1)

	// frozen once submitted
	_, err = env.SubmissionSvc.Submit(ctx, student, sub.ID)
	assert.True(t, core.IsInvalidState(err))
	_, err = env.SubmissionSvc.AddRequirement(ctx, student, sub.ID, data)
	assert.True(t, core.IsInvalidState(err))
	_, err = env.SubmissionSvc.EditRequirement(ctx, student, req.ID, data)
	assert.True(t, core.IsInvalidState(err))
	_, err = env.SubmissionSvc.DeleteRequirement(ctx, student, req.ID)
	assert.True(t, core.IsInvalidState(err))

	// feedback
	fbData := submission.FeedbackData{Type: "General", Title: " Good ", Content: "Well done"}
	require.NoError(t, fbData.Validate(env.Validate))
	_, err = env.SubmissionSvc.AttachFeedback(ctx, student, sub.ID, fbData)
	assert.True(t, core.IsPermissionError(err))

	fb, err := env.SubmissionSvc.AttachFeedback(ctx, admin, sub.ID, fbData)
	require.NoError(t, err)
	assert.Equal(t, "Good", fb.Title)
	assert.Equal(t, "Library System", fb.ScenarioTitle)
	assert.False(t, fb.IsRead)
	testutil.GiveFeedback(t, env, admin, sub, "Again")

	list, err = env.NotificationSvc.List(ctx, student.ID(), 1)
	require.NoError(t, err)
	require.Len(t, list.Notifications, 3) // scenario + two reviews
	assert.Equal(t, "New Feedback Received", list.Notifications[0].Title)
	assert.Equal(t, "You have received feedback for Library System", list.Notifications[0].Message)

	detail, err := env.SubmissionSvc.Detail(ctx, student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusFeedbackReceived, detail.Submission.Status)
	assert.Equal(t, 1, detail.Submission.RequirementCount)
	assert.Equal(t, "hero", detail.Submission.StudentUsername)
	assert.Len(t, detail.Feedback, 2)
	assert.Nil(t, detail.SRS)

	_, err = env.SubmissionSvc.Detail(ctx, intruder, sub.ID)
	assert.True(t, core.IsPermissionError(err))

	_, err = env.SubmissionSvc.MarkFeedbackRead(ctx, student, sub.ID)
	assert.True(t, core.IsPermissionError(err))
	n, err := env.SubmissionSvc.MarkFeedbackRead(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_SRS(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	intruder := testutil.CreateStudent(t, env, "villain", "", "")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	sub := testutil.StartSubmission(t, env, student, sc)

	blank, err := env.SubmissionSvc.GetSRS(ctx, student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.SRSDocument{SubmissionID: sub.ID}, blank)

	_, err = env.SubmissionSvc.GetSRS(ctx, intruder, sub.ID)
	assert.True(t, core.IsPermissionError(err))
	_, err = env.SubmissionSvc.SaveSRS(ctx, intruder, sub.ID, submission.SRSData{Introduction: "x"})
	assert.True(t, core.IsPermissionError(err))

	doc, err := env.SubmissionSvc.SaveSRS(ctx, student, sub.ID, submission.SRSData{Introduction: "Intro"})
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)

	// still editable once the submission is reviewed
	testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Search")
	testutil.Submit(t, env, student, sub)
	testutil.GiveFeedback(t, env, admin, sub, "Good")

	updated, err := env.SubmissionSvc.SaveSRS(ctx, student, sub.ID, submission.SRSData{Introduction: "Intro v2", SystemFeatures: "Search"})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, updated.ID)
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)

	got, err := env.SubmissionSvc.GetSRS(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro v2", got.Introduction)
	assert.Equal(t, "Search", got.SystemFeatures)

	detail, err := env.SubmissionSvc.Detail(ctx, admin, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.SRS)
	assert.Equal(t, updated.ID, detail.SRS.ID)

	_, err = env.SubmissionSvc.GetSRS(ctx, student, 999)
	assert.True(t, core.IsNotFound(err))
}

func TestService_AdminList(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	library := testutil.CreateScenario(t, env, admin, "Library System", true)
	clinic := testutil.CreateScenario(t, env, admin, "Clinic Booking", true)

	for i := 0; i < 13; i++ {
		student := testutil.CreateStudent(t, env, fmt.Sprintf("student%02d", i), "", "")
		sub := testutil.StartSubmission(t, env, student, library)
		if i%2 == 0 {
			testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Search")
			testutil.Submit(t, env, student, sub)
		}
	}
	ada := testutil.CreateStudent(t, env, "ada", "Ada", "Lovelace")
	adaSub := testutil.StartSubmission(t, env, ada, clinic)

	_, err := env.SubmissionSvc.AdminList(ctx, ada, submission.AdminListFilter{})
	assert.True(t, core.IsPermissionError(err))

	list, err := env.SubmissionSvc.AdminList(ctx, admin, submission.AdminListFilter{})
	require.NoError(t, err)
	assert.Equal(t, submission.AdminStats{Total: 14, Pending: 7, Draft: 7}, list.Stats)
	assert.Len(t, list.Submissions, submission.AdminPageSize)
	assert.Equal(t, adaSub.ID, list.Submissions[0].ID, "most recently updated first")
	assert.Equal(t, 2, list.Page.NumPages)
	assert.Len(t, list.Recent, 5)

	require.Len(t, list.ScenarioStats, 2)
	assert.Equal(t, "Clinic Booking", list.ScenarioStats[0].Title)
	assert.Equal(t, submission.ScenarioStat{ScenarioID: library.ID, Title: "Library System", Total: 13, Submitted: 7, Draft: 6},
		list.ScenarioStats[1])

	list, err = env.SubmissionSvc.AdminList(ctx, admin, submission.AdminListFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, list.Submissions, 2)

	list, err = env.SubmissionSvc.AdminList(ctx, admin, submission.AdminListFilter{Status: submission.StatusDraft})
	require.NoError(t, err)
	assert.Len(t, list.Submissions, 7)
	assert.Empty(t, list.Recent)

	list, err = env.SubmissionSvc.AdminList(ctx, admin, submission.AdminListFilter{Search: "LOVELACE"})
	require.NoError(t, err)
	require.Len(t, list.Submissions, 1)
	assert.Equal(t, adaSub.ID, list.Submissions[0].ID)

	list, err = env.SubmissionSvc.AdminList(ctx, admin, submission.AdminListFilter{ScenarioID: library.ID, Search: "student0"})
	require.NoError(t, err)
	assert.Len(t, list.Submissions, 10)
}

func TestService_rejectsInvalidPayloads(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	sub := testutil.StartSubmission(t, env, student, sc)
	req := testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Search")

	reqTests := []struct {
		name string
		data submission.RequirementData
	}{
		{name: "unknown type", data: submission.RequirementData{Type: "bogus", Title: "T", Description: "D"}},
		{name: "unknown priority", data: submission.RequirementData{Type: submission.TypeFunctional, Title: "T", Description: "D", Priority: "urgent"}},
		{name: "blank title", data: submission.RequirementData{Type: submission.TypeFunctional, Title: "  ", Description: "D"}},
		{name: "blank description", data: submission.RequirementData{Type: submission.TypeBusiness, Title: "T"}},
	}
	for _, tt := range reqTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.SubmissionSvc.AddRequirement(ctx, student, sub.ID, tt.data)
			assert.IsType(t, validator.ValidationErrors{}, err)
			_, err = env.SubmissionSvc.EditRequirement(ctx, student, req.ID, tt.data)
			assert.IsType(t, validator.ValidationErrors{}, err)
		})
	}

	detail, err := env.SubmissionSvc.Detail(ctx, student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Submission.RequirementCount)
	assert.Equal(t, 1, detail.Requirements.Len())
	assert.Equal(t, "Search", detail.Requirements.Functional[0].Title)

	testutil.Submit(t, env, student, sub)
	_, err = env.SubmissionSvc.AttachFeedback(ctx, admin, sub.ID, submission.FeedbackData{Type: "praise", Title: "T", Content: "C"})
	assert.IsType(t, validator.ValidationErrors{}, err)
	_, err = env.SubmissionSvc.AttachFeedback(ctx, admin, sub.ID, submission.FeedbackData{Type: submission.FeedbackGeneral, Title: "T"})
	assert.IsType(t, validator.ValidationErrors{}, err)

	detail, err = env.SubmissionSvc.Detail(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, detail.Submission.Status)
	assert.Empty(t, detail.Feedback)
}

func TestService_Detail_ordering(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	sub := testutil.StartSubmission(t, env, student, sc)

	f1 := testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Search")
	b1 := testutil.AddRequirement(t, env, student, sub, submission.TypeBusiness, "Fees")
	f2 := testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Borrow")
	n1 := testutil.AddRequirement(t, env, student, sub, submission.TypeNonFunctional, "Uptime")
	f3 := testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Return")
	b2 := testutil.AddRequirement(t, env, student, sub, submission.TypeBusiness, "Membership")
	testutil.Submit(t, env, student, sub)

	fb1 := testutil.GiveFeedback(t, env, admin, sub, "First")
	fb2 := testutil.GiveFeedback(t, env, admin, sub, "Second")
	fb3 := testutil.GiveFeedback(t, env, admin, sub, "Third")

	ids := func(reqs []submission.Requirement) []int64 {
		out := make([]int64, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, r.ID)
		}
		return out
	}

	for _, p := range []struct {
		name string
		who  account.Principal
	}{{"student", student}, {"admin", admin}} {
		t.Run(p.name, func(t *testing.T) {
			detail, err := env.SubmissionSvc.Detail(ctx, p.who, sub.ID)
			require.NoError(t, err)
			assert.Equal(t, []int64{f3.ID, f2.ID, f1.ID}, ids(detail.Requirements.Functional))
			assert.Equal(t, []int64{n1.ID}, ids(detail.Requirements.NonFunctional))
			assert.Equal(t, []int64{b2.ID, b1.ID}, ids(detail.Requirements.Business))
			assert.Equal(t, 6, detail.Submission.RequirementCount)

			fbIDs := make([]int64, 0, len(detail.Feedback))
			for _, fb := range detail.Feedback {
				fbIDs = append(fbIDs, fb.ID)
			}
			assert.Equal(t, []int64{fb3.ID, fb2.ID, fb1.ID}, fbIDs)
		})
	}
}

func TestGroupRequirements(t *testing.T) {
	reqs := []submission.Requirement{
		{ID: 1, Type: submission.TypeBusiness},
		{ID: 2, Type: submission.TypeFunctional},
		{ID: 3, Type: submission.TypeFunctional},
		{ID: 4, Type: submission.TypeNonFunctional},
	}
	g := submission.GroupRequirements(reqs)
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []submission.Requirement{reqs[1], reqs[2]}, g.Functional)
	assert.Equal(t, []submission.Requirement{reqs[3]}, g.NonFunctional)
	assert.Equal(t, []submission.Requirement{reqs[0]}, g.Business)

	empty := submission.GroupRequirements(nil)
	assert.NotNil(t, empty.Functional)
	assert.Zero(t, empty.Len())
}
