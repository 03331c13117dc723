package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
	testutil "github.com/thejadex/RE-VLab/tests"
)

func Test_scenarioApi_list(t *testing.T) {
	env.Reset()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	active := testutil.CreateScenario(t, env, admin, "Library System", true)
	testutil.CreateScenario(t, env, admin, "Hidden System", false)

	t.Run("student sees active scenarios with their status", func(t *testing.T) {
		rec := do(http.MethodGet, "/scenarios/", getToken(t, student))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var listed []scenario.Listed
		unmarshal(t, rec, &listed)
		require.Len(t, listed, 1)
		assert.Equal(t, active.ID, listed[0].ID)
		assert.Equal(t, scenario.StatusNotStarted, listed[0].SubmissionStatus)

		testutil.StartSubmission(t, env, student, active)
		rec = do(http.MethodGet, "/scenarios/", getToken(t, student))
		unmarshal(t, rec, &listed)
		require.Len(t, listed, 1)
		assert.Equal(t, submission.StatusDraft, listed[0].SubmissionStatus)
	})

	t.Run("admin is redirected", func(t *testing.T) {
		rec := do(http.MethodGet, "/scenarios/", getToken(t, admin))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin-panel/scenarios/", rec.Header().Get("Location"))
	})

	t.Run("admin list includes inactive scenarios", func(t *testing.T) {
		rec := do(http.MethodGet, "/admin-panel/scenarios/", getToken(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)

		var all []scenario.Scenario
		unmarshal(t, rec, &all)
		assert.Len(t, all, 2)
	})
}

func Test_scenarioApi_create(t *testing.T) {
	env.Reset()
	admin := testutil.CreateAdmin(t, env, "admin")
	student1 := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	student2 := testutil.CreateStudent(t, env, "villain", "", "")
	adminToken := getToken(t, admin)

	valid := map[string]interface{}{
		"title":        "  Online Bookstore ",
		"introduction": "intro",
		"aim":          "aim",
		"objectives":   "objectives",
		"description":  "description",
	}
	withField := func(key string, val interface{}) []byte {
		data := make(map[string]interface{}, len(valid)+1)
		for k, v := range valid {
			data[k] = v
		}
		data[key] = val
		return marchallObj(t, data)
	}
	path := "/admin-panel/scenarios/create/"

	runHTTPTests(t, []httpTest{
		{
			name:     "students are forbidden",
			method:   http.MethodPost,
			path:     path,
			token:    getToken(t, student1),
			body:     marchallObj(t, valid),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "required fields",
			method:   http.MethodPost,
			path:     path,
			token:    adminToken,
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title":        "this field is required",
				"introduction": "this field is required",
				"aim":          "this field is required",
				"objectives":   "this field is required",
				"description":  "this field is required",
			}),
		},
		{
			name:     "invalid difficulty",
			method:   http.MethodPost,
			path:     path,
			token:    adminToken,
			body:     withField("difficulty", "expert"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"difficulty": "select a valid choice"}),
		},
	})

	t.Run("active scenario notifies every student", func(t *testing.T) {
		env.Mail.Reset()
		rec := do(http.MethodPost, path, adminToken, marchallObj(t, valid))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var sc scenario.Scenario
		unmarshal(t, rec, &sc)
		assert.Equal(t, "Online Bookstore", sc.Title)
		assert.Equal(t, scenario.DifficultyIntermediate, sc.Difficulty)
		assert.True(t, sc.IsActive)
		assert.Equal(t, admin.ID(), sc.CreatedBy)

		for _, s := range []int64{student1.ID(), student2.ID()} {
			list, err := env.NotificationSvc.List(context.Background(), s, 1)
			require.NoError(t, err)
			require.Len(t, list.Notifications, 1)
			n := list.Notifications[0]
			assert.Equal(t, "New Scenario Available", n.Title)
			assert.Equal(t, `A new scenario "Online Bookstore" has been added and is ready for you to work on.`, n.Message)
			assert.Equal(t, fmt.Sprintf("/scenarios/%d/", sc.ID), n.Link)
		}
		// admins are not notified
		n, err := env.NotificationSvc.UnreadCount(context.Background(), admin.ID())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, env.Mail.SentMessages(), 2)
	})

	t.Run("inactive scenario notifies nobody", func(t *testing.T) {
		env.Mail.Reset()
		rec := do(http.MethodPost, path, adminToken, withField("is_active", false))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		n, err := env.NotificationSvc.UnreadCount(context.Background(), student1.ID())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Empty(t, env.Mail.SentMessages())
	})
}

func Test_scenarioApi_editAndDelete(t *testing.T) {
	env.Reset()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	sub := testutil.StartSubmission(t, env, student, sc)
	testutil.AddRequirement(t, env, student, sub, submission.TypeFunctional, "Search books")
	adminToken := getToken(t, admin)
	editPath := fmt.Sprintf("/admin-panel/scenarios/%d/edit/", sc.ID)

	rec := do(http.MethodGet, editPath, adminToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, sc)}, rec)

	rec = do(http.MethodPost, editPath, adminToken, marchallObj(t, map[string]interface{}{
		"title":        "Library System v2",
		"difficulty":   "advanced",
		"introduction": "intro",
		"aim":          "aim",
		"objectives":   "objectives",
		"description":  "description",
		"is_active":    false,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated scenario.Scenario
	unmarshal(t, rec, &updated)
	assert.Equal(t, "Library System v2", updated.Title)
	assert.Equal(t, scenario.DifficultyAdvanced, updated.Difficulty)
	assert.False(t, updated.IsActive)

	// inactive scenarios are hidden from students
	rec = do(http.MethodGet, fmt.Sprintf("/scenarios/%d/", sc.ID), getToken(t, student))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(http.MethodPost, fmt.Sprintf("/admin-panel/scenarios/%d/delete/", sc.ID), getToken(t, student))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodPost, fmt.Sprintf("/admin-panel/scenarios/%d/delete/", sc.ID), adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(http.MethodGet, editPath, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(http.MethodGet, fmt.Sprintf("/submissions/%d/", sub.ID), adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_scenarioApi_workspace(t *testing.T) {
	env.Reset()
	admin := testutil.CreateAdmin(t, env, "admin")
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	sc := testutil.CreateScenario(t, env, admin, "Library System", true)
	token := getToken(t, student)
	path := fmt.Sprintf("/scenarios/%d/", sc.ID)

	rec := do(http.MethodGet, path, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ws submission.Workspace
	unmarshal(t, rec, &ws)
	assert.False(t, ws.IsAdminView)
	require.NotNil(t, ws.Submission)
	assert.Equal(t, submission.StatusDraft, ws.Submission.Status)
	assert.Equal(t, student.ID(), ws.Submission.StudentID)
	assert.Zero(t, ws.Requirements.Len())

	// the same submission is reused
	rec = do(http.MethodGet, path, token)
	var again submission.Workspace
	unmarshal(t, rec, &again)
	require.NotNil(t, again.Submission)
	assert.Equal(t, ws.Submission.ID, again.Submission.ID)

	rec = do(http.MethodGet, path, getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var adminWs submission.Workspace
	unmarshal(t, rec, &adminWs)
	assert.True(t, adminWs.IsAdminView)
	assert.Nil(t, adminWs.Submission)

	runHTTPTests(t, []httpTest{
		{name: "unknown scenario", method: http.MethodGet, path: "/scenarios/999/", token: token, wantCode: http.StatusNotFound},
		{name: "bad id", method: http.MethodGet, path: "/scenarios/abc/", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
	})
}
