package sqlxrepos_test

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
	emailsvc "github.com/thejadex/RE-VLab/services/email"
	"github.com/thejadex/RE-VLab/storage/database"
	sqlxrepos "github.com/thejadex/RE-VLab/storage/database/sqlx"
	testutil "github.com/thejadex/RE-VLab/tests"
)

// openTestDB connects to the database named by TEST_POSTGRES_DSN and resets its schema.
func openTestDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.RunGoose(db.DB, "reset"))
	require.NoError(t, database.Migrate(db.DB))
	return db
}

func TestRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	conf := testutil.NewConfig()
	tx := database.NewTransactor(db)
	validate, _ := testutil.NewValidator()

	accSvc := account.NewService(sqlxrepos.NewAccountRepository(db), tx)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)
	scSvc := scenario.NewService(sqlxrepos.NewScenarioRepository(db), tx, accSvc, notifSvc, validate)
	subSvc := submission.NewService(sqlxrepos.NewSubmissionRepository(db), tx, scSvc, accSvc, notifSvc, validate)

	admin, err := accSvc.CreateSuperuser(ctx, "admin", "admin@revlab.test", "Root-pwd-987")
	require.NoError(t, err)
	student, _, err := accSvc.EnsureAccount(ctx, account.Seed{
		Username: "hero", FirstName: "Hero", LastName: "Student", Email: "hero@revlab.test", Password: "Secret-pwd-123",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^STU\d{6}$`, student.Profile.StudentID)

	err = accSvc.CheckUniqueness(ctx, "hero")
	_, isValidation := err.(*core.ValidationError)
	assert.True(t, isValidation)

	_, err = accSvc.Authenticate(ctx, "HERO", "Secret-pwd-123")
	require.NoError(t, err)

	active := true
	sc, err := scSvc.Create(ctx, admin, scenario.Data{
		Title: "Library System", Difficulty: scenario.DifficultyBeginner,
		Introduction: "i", Aim: "a", Objectives: "o", Description: "d", IsActive: &active,
	})
	require.NoError(t, err)
	unread, err := notifSvc.UnreadCount(ctx, student.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	sub, err := subSvc.GetOrCreate(ctx, sc.ID, student.ID())
	require.NoError(t, err)
	again, err := subSvc.GetOrCreate(ctx, sc.ID, student.ID())
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)

	_, err = subSvc.Submit(ctx, student, sub.ID)
	assert.True(t, core.IsInvalidState(err))

	addReq := func(typ, title string) submission.Requirement {
		req, err := subSvc.AddRequirement(ctx, student, sub.ID, submission.RequirementData{
			Type: typ, Title: title, Description: title + " description", Priority: submission.PriorityHigh,
		})
		require.NoError(t, err)
		return req
	}
	search := addReq(submission.TypeFunctional, "Search")
	fees := addReq(submission.TypeBusiness, "Fees")
	borrow := addReq(submission.TypeFunctional, "Borrow")
	_, err = subSvc.AddRequirement(ctx, student, sub.ID, submission.RequirementData{Type: "bogus", Title: "X", Description: "Y"})
	assert.Error(t, err)

	_, err = subSvc.SaveSRS(ctx, student, sub.ID, submission.SRSData{Introduction: "Intro"})
	require.NoError(t, err)
	_, err = subSvc.Submit(ctx, student, sub.ID)
	require.NoError(t, err)
	giveFeedback := func(title string) submission.Feedback {
		fb, err := subSvc.AttachFeedback(ctx, admin, sub.ID, submission.FeedbackData{
			Type: submission.FeedbackGeneral, Title: title, Content: "Well done",
		})
		require.NoError(t, err)
		return fb
	}
	good := giveFeedback("Good")
	better := giveFeedback("Better")

	detail, err := subSvc.Detail(ctx, student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusFeedbackReceived, detail.Submission.Status)
	assert.Equal(t, "Library System", detail.Submission.ScenarioTitle)
	assert.Equal(t, 3, detail.Submission.RequirementCount)
	require.Len(t, detail.Requirements.Functional, 2)
	assert.Equal(t, borrow.ID, detail.Requirements.Functional[0].ID)
	assert.Equal(t, search.ID, detail.Requirements.Functional[1].ID)
	require.Len(t, detail.Requirements.Business, 1)
	assert.Equal(t, fees.ID, detail.Requirements.Business[0].ID)
	require.Len(t, detail.Feedback, 2)
	assert.Equal(t, better.ID, detail.Feedback[0].ID)
	assert.Equal(t, good.ID, detail.Feedback[1].ID)
	require.NotNil(t, detail.SRS)
	assert.Equal(t, "Intro", detail.SRS.Introduction)

	list, err := subSvc.AdminList(ctx, admin, submission.AdminListFilter{Search: "hero"})
	require.NoError(t, err)
	assert.Len(t, list.Submissions, 1)
	assert.Equal(t, submission.AdminStats{Total: 1, Completed: 1}, list.Stats)

	notifs, err := notifSvc.List(ctx, student.ID(), 1)
	require.NoError(t, err)
	require.Len(t, notifs.Notifications, 3)
	n, err := notifSvc.MarkRead(ctx, student.ID(), notifs.IDs())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = scSvc.Delete(ctx, admin, sc.ID)
	require.NoError(t, err)
	_, err = subSvc.Detail(ctx, admin, sub.ID)
	assert.True(t, core.IsNotFound(err))
}
