package echoweb

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wartburg/mcsp/core"
)

// render renders a page with the data shared by every page: the current user,
// their courses for the navbar and the CSRF token.
func (s *Server) render(ctx echo.Context, code int, name string, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}
	data["app_name"] = s.conf.AppName
	data["csrf_field"] = csrfField
	data["csrf_token"], _ = ctx.Get(csrfContextKey).(string)
	if usr, ok := contextUser(ctx); ok {
		data["user"] = usr
		if _, ok := data["current_courses"]; !ok && usr.IsStaff() {
			courses, err := s.courseSvc.ListForInstructor(ctx.Request().Context(), usr.ID)
			if err != nil {
				return err
			}
			data["current_courses"] = courses
		}
	}
	return ctx.Render(code, name, data)
}

// formErrors returns the field errors of a validation error, or err itself.
func (s *Server) formErrors(err error) (map[string]string, error) {
	vErr, ok := core.TranslateValidationErrors(err, s.translator).(*core.ValidationError)
	if !ok {
		return nil, err
	}
	return vErr.FieldMap(), nil
}

// paramID parses a numeric path param; anything else is a 404.
func paramID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (s *Server) homePage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "teacher_view/home.html", nil)
}

func (s *Server) profilePage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "teacher_view/profile.html", nil)
}
