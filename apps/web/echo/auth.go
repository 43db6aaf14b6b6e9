package echoweb

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/user"
)

const (
	sessionCookie  = "session"
	contextUserKey = "user"
	csrfField      = "csrf_token"
	csrfContextKey = "csrf"
)

var errNotStaff = "this account cannot access the teacher pages"

// Claims represents the session claims stored in the session cookie.
type Claims struct {
	jwt.StandardClaims
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func newClaims(conf *core.Config, usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(conf.Server.SessionExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Roles:    usr.Roles,
	}
}

// GenerateToken returns the signed session token of usr.
func GenerateToken(conf *core.Config, usr user.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(conf, usr))
	ss, err := token.SignedString([]byte(conf.SecretKey))
	return ss, errors.Wrap(err, "signing token")
}

func parseToken(conf *core.Config, ss string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(ss, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func setSessionCookie(ctx echo.Context, conf *core.Config, token string, maxAge int) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !(conf.Debug || conf.TestMode),
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionMiddleware loads the active user of a valid session cookie into the context.
// Invalid or expired sessions are treated as anonymous.
func sessionMiddleware(conf *core.Config, svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookie, err := ctx.Cookie(sessionCookie)
			if err != nil || cookie.Value == "" {
				return next(ctx)
			}
			claims, err := parseToken(conf, cookie.Value)
			if err != nil {
				return next(ctx)
			}
			uid, err := strconv.Atoi(claims.Subject)
			if err != nil {
				return next(ctx)
			}

			usr, err := svc.GetByID(ctx.Request().Context(), uid)
			switch {
			case err == nil:
				if usr.IsActive {
					ctx.Set(contextUserKey, usr)
				}
			case errors.Cause(err) != user.ErrNotFound:
				return errors.Wrap(err, "loading session user")
			}
			return next(ctx)
		}
	}
}

func contextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	return usr, ok
}

// staffRequired redirects anonymous & non-staff users to the login page.
func staffRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if usr, ok := contextUser(ctx); ok && usr.IsStaff() {
			return next(ctx)
		}
		return ctx.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(ctx.Request().URL.RequestURI()))
	}
}

// safeNext only allows local redirects.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

// Handlers

func (s *Server) loginPage(ctx echo.Context) error {
	next := safeNext(ctx.QueryParam("next"), s.app.Reverse("staff_home_page"))
	if usr, ok := contextUser(ctx); ok && usr.IsStaff() {
		return ctx.Redirect(http.StatusFound, next)
	}
	return s.render(ctx, http.StatusOK, "login/login.html", echo.Map{
		"form": user.LoginRequest{},
		"next": next,
	})
}

func (s *Server) login(ctx echo.Context) error {
	next := safeNext(ctx.FormValue("next"), s.app.Reverse("staff_home_page"))
	form := new(user.LoginRequest)
	if err := ctx.Bind(form); err != nil {
		return err
	}

	renderErr := func(msg string, fldErrs map[string]string) error {
		form.Password = ""
		return s.render(ctx, http.StatusOK, "login/login.html", echo.Map{
			"form":   form,
			"next":   next,
			"error":  msg,
			"errors": fldErrs,
		})
	}

	if err := form.Validate(s.validate); err != nil {
		vErr, ok := core.TranslateValidationErrors(err, s.translator).(*core.ValidationError)
		if !ok {
			return err
		}
		return renderErr("", vErr.FieldMap())
	}

	usr, err := s.usrSvc.Authenticate(ctx.Request().Context(), form.Username, form.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrAuthenticationFailed, user.ErrAccountDeactivated:
			return renderErr(err.Error(), nil)
		}
		return err
	}
	if !usr.IsStaff() {
		return renderErr(errNotStaff, nil)
	}

	token, err := GenerateToken(s.conf, usr)
	if err != nil {
		return err
	}
	setSessionCookie(ctx, s.conf, token, int(s.conf.Server.SessionExpirationDelta/time.Second))
	return ctx.Redirect(http.StatusFound, next)
}

func (s *Server) logout(ctx echo.Context) error {
	setSessionCookie(ctx, s.conf, "", -1)
	return ctx.Redirect(http.StatusFound, s.app.Reverse("login_page"))
}
