package tests

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/thejadex/RE-VLab/apps/api/echo"
	"github.com/thejadex/RE-VLab/core/account"
	inmemdb "github.com/thejadex/RE-VLab/storage/database/inmem"
	testutil "github.com/thejadex/RE-VLab/tests"
)

const testPassword = "Blue-Harbor-42"

func Test_home(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to RE-VLab!", rec.Body.String())
}

func Test_accountApi_register(t *testing.T) {
	env.Reset()
	testutil.CreateStudent(t, env, "taken", "Taken", "User")

	body := func(uname, pwd1, pwd2 string) []byte {
		return marchallObj(t, map[string]string{
			"username":   uname,
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      uname + "@revlab.test",
			"password1":  pwd1,
			"password2":  pwd2,
		})
	}

	tests := []httpTest{
		{
			name:     "required fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username":   "this field is required",
				"first_name": "this field is required",
				"last_name":  "this field is required",
				"email":      "this field is required",
				"password1":  "this field is required",
				"password2":  "this field is required",
			}),
		},
		{
			name:     "short password",
			body:     body("newbie", "abc12", "abc12"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"password1": "this password is too short. It must contain at least 8 characters",
			}),
		},
		{
			name:     "numeric password",
			body:     body("newbie", "9081726354", "9081726354"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password1": "this password is entirely numeric"}),
		},
		{
			name:     "duplicate username",
			body:     body("Taken", testPassword, testPassword),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "a user with that username already exists"}),
		},
		{
			name:     "malformed body",
			body:     []byte(`{"username":`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/register/"
		t.Run(tt.name, func(t *testing.T) {
			rec := do(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("creates a student and logs in", func(t *testing.T) {
		rec := do(http.MethodPost, "/register/", "", body("NewBie", testPassword, testPassword))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "newbie", resp.Principal.Account.Username)
		assert.Equal(t, account.RoleStudent, resp.Principal.Profile.Role)
		assert.Regexp(t, regexp.MustCompile(`^STU\d{6}$`), resp.Principal.Profile.StudentID)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == echoapi.SessionCookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)

		rec = do(http.MethodGet, "/api/sidebar/", resp.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_accountApi_login(t *testing.T) {
	env.Reset()
	testutil.CreateAccount(t, env, account.Seed{Username: "ada", Email: "ada@revlab.test", Password: testPassword})
	naughty := testutil.CreateAccount(t, env, account.Seed{Username: "ndog", Email: "ndog@revlab.test", Password: testPassword})

	repo := inmemdb.NewAccountRepository(env.DB)
	acc := naughty.Account
	acc.IsActive = false
	_, err := repo.UpdateAccount(context.Background(), acc)
	require.NoError(t, err)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name:     "required fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown username",
			body:     login("nobody", testPassword),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: account.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "wrong password",
			body:     login("ada", "not-the-password"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: account.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "deactivated account",
			body:     login("ndog", testPassword),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/login/"
		t.Run(tt.name, func(t *testing.T) {
			rec := do(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success (case-insensitive username)", func(t *testing.T) {
		rec := do(http.MethodPost, "/login/", "", login(" ADA ", testPassword))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "ada", resp.Principal.Account.Username)
		assert.False(t, resp.Principal.Account.LastLogin.IsZero())
	})
}

func Test_authMiddleware(t *testing.T) {
	env.Reset()
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	token := getToken(t, student)

	runHTTPTests(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/api/sidebar/",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "garbage token",
			method:   http.MethodGet,
			path:     "/api/sidebar/",
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name:     "valid token",
			method:   http.MethodGet,
			path:     "/api/sidebar/",
			token:    token,
			wantCode: http.StatusOK,
		},
	})

	t.Run("session cookie", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/sidebar/")
		req.AddCookie(&http.Cookie{Name: echoapi.SessionCookieName, Value: token})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		p := student
		forged, err := echoapi.GenerateToken("another-key", echoapi.NewClaims(env.Conf, p, mustSession(t, p)))
		require.NoError(t, err)
		rec := do(http.MethodGet, "/api/sidebar/", forged)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_accountApi_logout(t *testing.T) {
	env.Reset()
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	token := getToken(t, student)

	rec := do(http.MethodPost, "/logout/", token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// the session is gone: the token is no longer accepted
	rec = do(http.MethodGet, "/api/sidebar/", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), marchallObj(t, errInvalidToken))
	assert.NoError(t, err)
	assert.True(t, ok)
}

func Test_accountApi_toggleTheme(t *testing.T) {
	env.Reset()
	student := testutil.CreateStudent(t, env, "hero", "Hero", "Student")
	token := getToken(t, student)

	runHTTPTests(t, []httpTest{
		{
			name:     "dark",
			method:   http.MethodPost,
			path:     "/api/toggle-theme/",
			token:    token,
			body:     []byte(`{"theme":"dark"}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":true,"theme":"dark"}`),
		},
		{
			name:     "unknown theme",
			method:   http.MethodPost,
			path:     "/api/toggle-theme/",
			token:    token,
			body:     []byte(`{"theme":"neon"}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":false}`),
		},
		{
			name:     "malformed body",
			method:   http.MethodPost,
			path:     "/api/toggle-theme/",
			token:    token,
			body:     []byte(`{"theme":`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":false}`),
		},
	})

	rec := do(http.MethodGet, "/api/sidebar/", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var sidebar echoapi.SidebarResponse
	unmarshal(t, rec, &sidebar)
	assert.Equal(t, "dark", sidebar.Theme)

	rec = do(http.MethodPost, "/api/toggle-theme/", token, []byte(`{}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"success":true,"theme":"light"}`)}, rec)
}
