package echoweb_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/user"
	"github.com/wartburg/mcsp/tests"
)

func TestLogin(t *testing.T) {
	app := setup(t)
	staff := testutil.CreateStaff(t, app.usrRepo, "teacher")
	testutil.CreateUser(t, app.usrRepo, "Not Staff", "plain", "plain@wartburg.edu", testutil.StaffPassword, nil, true)
	testutil.CreateUser(t, app.usrRepo, "Gone", "gone", "gone@wartburg.edu", testutil.StaffPassword, []string{user.RoleStaff}, false)

	form := func(uname, pwd, next string) url.Values {
		v := url.Values{"username": {uname}, "password": {pwd}}
		if next != "" {
			v.Set("next", next)
		}
		return v
	}

	tests := []httpTest{
		{name: "login page", path: "/login", wantTmpl: "login/login.html", wantBody: []string{`name="username"`, `name="password"`}},
		{name: "already logged in", path: "/login", usr: &staff, wantCode: http.StatusFound, wantLoc: "/teacher"},
		{
			name: "missing password", method: http.MethodPost, path: "/login", body: form("teacher", "", ""),
			wantTmpl: "login/login.html", wantBody: []string{"this field is required"},
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/login", body: form("teacher", "nope", ""),
			wantTmpl: "login/login.html", wantBody: []string{"please enter a correct username and password"},
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/login", body: form("gone", testutil.StaffPassword, ""),
			wantTmpl: "login/login.html", wantBody: []string{user.ErrAccountDeactivated.Error()},
		},
		{
			name: "not staff", method: http.MethodPost, path: "/login", body: form("plain", testutil.StaffPassword, ""),
			wantTmpl: "login/login.html", wantBody: []string{"this account cannot access the teacher pages"},
		},
		{
			name: "success", method: http.MethodPost, path: "/login", body: form("teacher", testutil.StaffPassword, ""),
			wantCode: http.StatusFound, wantLoc: "/teacher",
		},
		{
			name: "success by email", method: http.MethodPost, path: "/login", body: form("TEACHER@wartburg.edu", testutil.StaffPassword, "/teacher/courses"),
			wantCode: http.StatusFound, wantLoc: "/teacher/courses",
		},
		{
			name: "external next", method: http.MethodPost, path: "/login", body: form("teacher", testutil.StaffPassword, "//evil.example.com"),
			wantCode: http.StatusFound, wantLoc: "/teacher",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.run(t, tt)
			if tt.wantLoc != "" && tt.method == http.MethodPost {
				var session *http.Cookie
				for _, c := range rec.Result().Cookies() {
					if c.Name == "session" {
						session = c
					}
				}
				require.NotNil(t, session, "session cookie not set")
				assert.True(t, session.HttpOnly)
				assert.NotEmpty(t, session.Value)
			}
		})
	}
}

func TestLogin_sessionWorks(t *testing.T) {
	app := setup(t)
	testutil.CreateStaff(t, app.usrRepo, "teacher")

	rec := app.postForm(t, "/login", url.Values{"username": {"teacher"}, "password": {testutil.StaffPassword}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.AddCookie(cookie)
	rec = app.do(t, req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Prof teacher")
}

func TestLogout(t *testing.T) {
	app := setup(t)
	staff := testutil.CreateStaff(t, app.usrRepo, "teacher")

	rec := app.postForm(t, "/logout", url.Values{}, &staff)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie not cleared")
}

func TestStaffRequired(t *testing.T) {
	app := setup(t)
	plain := testutil.CreateUser(t, app.usrRepo, "Not Staff", "plain", "plain@wartburg.edu", "", nil, true)
	gone := testutil.CreateUser(t, app.usrRepo, "Gone", "gone", "gone@wartburg.edu", "", []string{user.RoleStaff}, false)
	deleted := user.User{ID: 99, Roles: []string{user.RoleStaff}}

	paths := []string{
		"/teacher",
		"/teacher/profile",
		"/teacher/courses",
		"/teacher/course/create",
		"/teacher/course/1",
		"/teacher/course/1/edit",
		"/teacher/assignments",
	}
	users := map[string]*user.User{"anonymous": nil, "not staff": &plain, "deactivated": &gone, "unknown user": &deleted}

	for uname, usr := range users {
		for _, p := range paths {
			t.Run(uname+" "+p, func(t *testing.T) {
				app.run(t, httpTest{path: p, usr: usr, wantCode: http.StatusFound, wantLoc: "/login?next=" + url.QueryEscape(p)})
			})
		}
	}

	t.Run("tampered token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: "not.a.token"})
		rec := app.do(t, req, nil)
		assert.Equal(t, http.StatusFound, rec.Code)
	})

	t.Run("post redirects too", func(t *testing.T) {
		rec := app.postForm(t, "/teacher/course/1/delete", url.Values{}, nil)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?next="+url.QueryEscape("/teacher/course/1/delete"), rec.Header().Get("Location"))
	})
}

func TestCSRF(t *testing.T) {
	app := setup(t, func(conf *core.Config) {
		conf.TestMode = false
		conf.Debug = true
	})
	testutil.CreateStaff(t, app.usrRepo, "teacher")

	rec := app.postForm(t, "/login", url.Values{"username": {"teacher"}, "password": {testutil.StaffPassword}}, nil)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	// the login page hands out the token
	rec = app.get(t, "/login", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	token, _ := app.lastRendered(t).data["csrf_token"].(string)
	assert.NotEmpty(t, token)
}
