package echoweb

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
	appfs "github.com/wartburg/mcsp/fs"
)

type Server struct {
	conf       *core.Config
	app        *echo.Echo
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
	usrSvc     *user.Service
	courseSvc  *course.Service
	renderer   *renderer
	shutdown   chan os.Signal
	errors     chan error
}

func NewServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	usrSvc *user.Service,
	courseSvc *course.Service,
) (*Server, error) {
	s := &Server{
		conf:       conf,
		app:        echo.New(),
		logger:     logger,
		validate:   validate,
		translator: translator,
		usrSvc:     usrSvc,
		courseSvc:  courseSvc,
		shutdown:   make(chan os.Signal, 1),
		errors:     make(chan error, 1),
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.conf.AppName, s.logger, s.signalShutdown)

	rdr, err := newRenderer(s.app)
	if err != nil {
		return err
	}
	s.renderer = rdr
	s.app.Renderer = rdr

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.conf.Uploads.MaxSize > 0 {
		// room for the other form fields
		s.app.Use(middleware.BodyLimit(fmt.Sprintf("%dK", s.conf.Uploads.MaxSize>>10+1024)))
	}
	s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        func(echo.Context) bool { return s.conf.TestMode },
		TokenLookup:    "form:" + csrfField,
		ContextKey:     csrfContextKey,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
	}))
	s.app.Use(sessionMiddleware(s.conf, s.usrSvc))

	static, err := fs.Sub(appfs.FS, "static")
	if err != nil {
		return err
	}
	s.app.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	s.app.GET("/", func(ctx echo.Context) error {
		return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_home_page"))
	})
	s.app.GET("/login", s.loginPage).Name = "login_page"
	s.app.POST("/login", s.login).Name = "login_page"
	s.app.POST("/logout", s.logout).Name = "logout"

	tg := s.app.Group("/teacher", staffRequired)
	tg.GET("", s.homePage).Name = "staff_home_page"
	tg.GET("/profile", s.profilePage).Name = "staff_profile_page"
	registerCourseRoutes(tg, s)
	registerAssignmentRoutes(tg, s)
	registerHandoutRoutes(tg, s)
	return nil
}

// Start listens on server.addr and blocks; see Errors & ShutdownSignal.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error               { return s.errors }
func (s *Server) ShutdownSignal() <-chan os.Signal   { return s.shutdown }
func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.app.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Reverse returns the path of the named route.
func (s *Server) Reverse(name string, params ...interface{}) string {
	return s.app.Reverse(name, params...)
}

// OnRender registers fn to be called with every rendered page and its data.
func (s *Server) OnRender(fn func(name string, data echo.Map)) {
	s.renderer.observe = fn
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}
