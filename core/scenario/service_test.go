package scenario_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
	testutil "github.com/thejadex/RE-VLab/tests"
)

var env = testutil.NewEnv()

func TestData_Validate(t *testing.T) {
	inactive := false
	tests := []struct {
		name       string
		data       scenario.Data
		wantErr    bool
		wantDiff   string
		wantActive bool
	}{
		{
			name:       "defaults",
			data:       scenario.Data{Title: " T ", Introduction: "i", Aim: "a", Objectives: "o", Description: "d"},
			wantDiff:   scenario.DifficultyIntermediate,
			wantActive: true,
		},
		{
			name:     "explicit",
			data:     scenario.Data{Title: "T", Difficulty: "ADVANCED", Introduction: "i", Aim: "a", Objectives: "o", Description: "d", IsActive: &inactive},
			wantDiff: scenario.DifficultyAdvanced,
		},
		{
			name:    "blank fields",
			data:    scenario.Data{Title: "   ", Introduction: "i", Aim: "a", Objectives: "o", Description: "d"},
			wantErr: true,
		},
		{
			name:    "unknown difficulty",
			data:    scenario.Data{Title: "T", Difficulty: "expert", Introduction: "i", Aim: "a", Objectives: "o", Description: "d"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(env.Validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "T", tt.data.Title)
			assert.Equal(t, tt.wantDiff, tt.data.Difficulty)
			require.NotNil(t, tt.data.IsActive)
			assert.Equal(t, tt.wantActive, *tt.data.IsActive)
		})
	}
}

func TestService_Create(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")

	_, err := env.ScenarioSvc.Create(ctx, student, scenario.Data{Title: "Nope"})
	assert.True(t, core.IsPermissionError(err))

	t.Run("rolled back with its notifications", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := env.ScenarioSvc.Create(cctx, admin, scenario.Data{
			Title: "Cancelled", Introduction: "i", Aim: "a", Objectives: "o", Description: "d",
		})
		require.Error(t, err)

		n, err := env.ScenarioSvc.Count(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, n)
		unread, err := env.NotificationSvc.UnreadCount(ctx, student.ID())
		require.NoError(t, err)
		assert.Zero(t, unread)
		assert.Empty(t, env.Mail.SentMessages())
	})

	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	assert.Equal(t, admin.ID(), sc.CreatedBy)
	assert.False(t, sc.CreatedAt.IsZero())

	unread, err := env.NotificationSvc.UnreadCount(ctx, student.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	require.Len(t, env.Mail.SentMessages(), 1)
}

func TestService_listing(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	other := testutil.CreateAdmin(t, env, "other")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")

	first := testutil.CreateScenario(t, env, admin, "First", true)
	second := testutil.CreateScenario(t, env, other, "Second", true)
	hidden := testutil.CreateScenario(t, env, admin, "Hidden", false)

	all, err := env.ScenarioSvc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, hidden.ID, all[0].ID, "newest first")

	n, err := env.ScenarioSvc.Count(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recent, err := env.ScenarioSvc.RecentByCreator(ctx, admin.ID(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, hidden.ID, recent[0].ID)

	_, err = env.ScenarioSvc.GetActive(ctx, hidden.ID)
	assert.Equal(t, scenario.ErrNotFound, err)
	got, err := env.ScenarioSvc.Get(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, hidden, got)

	testutil.StartSubmission(t, env, student, first)
	listed, err := env.ScenarioSvc.ListActive(ctx, student.ID())
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID)
	assert.Equal(t, scenario.StatusNotStarted, listed[0].SubmissionStatus)
	assert.Zero(t, listed[0].SubmissionID)
	assert.Equal(t, first.ID, listed[1].ID)
	assert.Equal(t, submission.StatusDraft, listed[1].SubmissionStatus)
	assert.NotZero(t, listed[1].SubmissionID)
}

func TestService_UpdateDelete(t *testing.T) {
	env.Reset()
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	sub := testutil.StartSubmission(t, env, student, sc)
	testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Search")

	data := scenario.Data{Title: "Renamed", Difficulty: scenario.DifficultyAdvanced, Introduction: "i", Aim: "a", Objectives: "o", Description: "d"}
	require.NoError(t, data.Validate(env.Validate))

	_, err := env.ScenarioSvc.Update(ctx, student, sc.ID, data)
	assert.True(t, core.IsPermissionError(err))
	_, err = env.ScenarioSvc.Update(ctx, admin, 999, data)
	assert.True(t, core.IsNotFound(err))

	updated, err := env.ScenarioSvc.Update(ctx, admin, sc.ID, data)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, sc.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(sc.UpdatedAt))

	_, err = env.ScenarioSvc.Delete(ctx, student, sc.ID)
	assert.True(t, core.IsPermissionError(err))

	deleted, err := env.ScenarioSvc.Delete(ctx, admin, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", deleted.Title)

	_, err = env.ScenarioSvc.Get(ctx, sc.ID)
	assert.True(t, core.IsNotFound(err))
	_, err = env.SubmissionSvc.Detail(ctx, admin, sub.ID)
	assert.True(t, core.IsNotFound(err))

	_, err = env.ScenarioSvc.Delete(ctx, admin, sc.ID)
	assert.True(t, core.IsNotFound(err))
}
