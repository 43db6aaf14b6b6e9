package echoweb_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"syscall"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoweb "github.com/wartburg/mcsp/apps/web/echo"
	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
	cachesvc "github.com/wartburg/mcsp/services/cache"
	emailsvc "github.com/wartburg/mcsp/services/email"
	inmemdb "github.com/wartburg/mcsp/storage/database/inmem"
	"github.com/wartburg/mcsp/storage/files"
	"github.com/wartburg/mcsp/tests"
)

type rendered struct {
	name string
	data echo.Map
}

type testApp struct {
	conf       *core.Config
	server     *echoweb.Server
	usrRepo    user.Repository
	courseRepo course.Repository
	courseSvc  *course.Service
	rendered   []rendered
}

func setup(t *testing.T, confOpts ...func(*core.Config)) *testApp {
	return setupWithUsers(t, nil, confOpts...)
}

// setupWithUsers lets wrapUsers decorate the user repository seen by the server.
func setupWithUsers(t *testing.T, wrapUsers func(user.Repository) user.Repository, confOpts ...func(*core.Config)) *testApp {
	conf := testutil.Config(t)
	for _, opt := range confOpts {
		opt(conf)
	}
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)
	store, err := files.NewLocal(conf.Uploads.Dir)
	require.NoError(t, err)

	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	var svcUsrRepo user.Repository = usrRepo
	if wrapUsers != nil {
		svcUsrRepo = wrapUsers(usrRepo)
	}
	usrSvc := user.NewService(svcUsrRepo)
	courseSvc := course.NewService(conf, courseRepo, db, store, cachesvc.NewMemoryCache(), mailSvc, logger)

	server, err := echoweb.NewServer(conf, logger, validate, translator, usrSvc, courseSvc)
	require.NoError(t, err)

	app := &testApp{
		conf:       conf,
		server:     server,
		usrRepo:    usrRepo,
		courseRepo: courseRepo,
		courseSvc:  courseSvc,
	}
	server.OnRender(func(name string, data echo.Map) {
		app.rendered = append(app.rendered, rendered{name: name, data: data})
	})
	return app
}

// lastRendered returns the last rendered page.
func (app *testApp) lastRendered(t *testing.T) rendered {
	require.NotEmpty(t, app.rendered, "no page rendered")
	return app.rendered[len(app.rendered)-1]
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     url.Values
	usr      *user.User
	wantCode int
	wantLoc  string
	wantTmpl string
	wantBody []string
}

func (app *testApp) sessionCookie(t *testing.T, usr user.User) *http.Cookie {
	token, err := echoweb.GenerateToken(app.conf, usr)
	require.NoError(t, err)
	return &http.Cookie{Name: "session", Value: token}
}

func (app *testApp) do(t *testing.T, req *http.Request, usr *user.User) *httptest.ResponseRecorder {
	if usr != nil {
		req.AddCookie(app.sessionCookie(t, *usr))
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) get(t *testing.T, path string, usr *user.User) *httptest.ResponseRecorder {
	return app.do(t, httptest.NewRequest(http.MethodGet, path, nil), usr)
}

func (app *testApp) postForm(t *testing.T, path string, data url.Values, usr *user.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(data.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return app.do(t, req, usr)
}

type upload struct {
	field, filename string
	content         []byte
}

func (app *testApp) postMultipart(t *testing.T, path string, fields url.Values, file *upload, usr *user.User) *httptest.ResponseRecorder {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	if file != nil {
		fw, err := w.CreateFormFile(file.field, file.filename)
		require.NoError(t, err)
		_, err = fw.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return app.do(t, req, usr)
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	app.rendered = nil
	var rec *httptest.ResponseRecorder
	switch tt.method {
	case "", http.MethodGet:
		rec = app.get(t, tt.path, tt.usr)
	default:
		rec = app.postForm(t, tt.path, tt.body, tt.usr)
	}
	checkResponse(t, app, tt, rec)
	return rec
}

func checkResponse(t *testing.T, app *testApp, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	if tt.wantLoc != "" {
		assert.Equal(t, tt.wantLoc, rec.Header().Get(echo.HeaderLocation))
	}
	if tt.wantTmpl != "" {
		assert.Equal(t, tt.wantTmpl, app.lastRendered(t).name)
	}
	for _, s := range tt.wantBody {
		assert.Contains(t, rec.Body.String(), s)
	}
}

func courseIDs(courses []course.Course) []int {
	ids := make([]int, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestStatic(t *testing.T) {
	app := setup(t)
	rec := app.get(t, "/static/app.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/css")
}

func TestNotFound(t *testing.T) {
	app := setup(t)
	app.run(t, httpTest{name: "unknown path", path: "/nope", wantCode: http.StatusNotFound, wantTmpl: "errors/error.html", wantBody: []string{"404"}})
}

// lostDBUsers fails every lookup the way the sql repositories do once the database is gone.
type lostDBUsers struct {
	user.Repository
}

func (lostDBUsers) GetUser(context.Context, user.GetFilter, ...core.DBExecutor) (user.User, error) {
	return user.User{}, core.NewShutdownError("getting user: database connection lost")
}

func TestShutdownOnLostDatabase(t *testing.T) {
	app := setupWithUsers(t, func(repo user.Repository) user.Repository { return lostDBUsers{repo} })
	staff := testutil.CreateStaff(t, app.usrRepo, "teacher")

	select {
	case sig := <-app.server.ShutdownSignal():
		t.Fatalf("unexpected shutdown signal %v", sig)
	default:
	}

	app.run(t, httpTest{path: "/teacher", usr: &staff, wantCode: http.StatusInternalServerError, wantTmpl: "errors/error.html"})

	select {
	case sig := <-app.server.ShutdownSignal():
		assert.Equal(t, syscall.SIGTERM, sig)
	default:
		t.Error("server was not asked to shut down")
	}

	// anonymous pages never touch the user repository
	app.run(t, httpTest{path: "/login", wantTmpl: "login/login.html"})
}
