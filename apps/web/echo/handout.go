package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core/course"
)

func registerHandoutRoutes(g *echo.Group, s *Server) {
	g.POST("/course/:course_id/handouts", s.addHandout).Name = "staff_add_handout"
	g.GET("/course/:course_id/handouts/:handout_id", s.downloadHandout).Name = "staff_download_handout"
	g.POST("/course/:course_id/handouts/:handout_id/delete", s.deleteHandout).Name = "staff_delete_handout"
}

func (s *Server) addHandout(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}

	form := &course.NewHandout{Title: ctx.FormValue("title")}
	fh, err := ctx.FormFile("handout")
	switch err {
	case nil:
		form.File = fh
	case http.ErrMissingFile, http.ErrNotMultipart:
	default:
		return errors.Wrap(err, "reading uploaded file")
	}

	if err = form.Validate(s.validate, s.conf.Uploads.MaxSize); err != nil {
		fldErrs, err := s.formErrors(err)
		if err != nil {
			return err
		}
		return s.renderCoursePage(ctx, crs, echo.Map{
			"handout_form":   form,
			"handout_errors": fldErrs,
		})
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	usr, _ := contextUser(ctx)
	if _, err = s.courseSvc.AddHandout(ctx.Request().Context(), usr.ID, crs.ID, *form, f); err != nil {
		return errors.Wrap(err, "adding handout")
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_course_page", crs.ID))
}

func (s *Server) downloadHandout(ctx echo.Context) error {
	courseID, err := paramID(ctx, "course_id")
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "handout_id")
	if err != nil {
		return err
	}

	usr, _ := contextUser(ctx)
	h, rc, err := s.courseSvc.OpenHandout(ctx.Request().Context(), usr.ID, courseID, id)
	if err != nil {
		return err
	}
	defer rc.Close()

	ct := h.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", h.Filename))
	return ctx.Stream(http.StatusOK, ct, rc)
}

func (s *Server) deleteHandout(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "handout_id")
	if err != nil {
		return err
	}
	usr, _ := contextUser(ctx)
	if err = s.courseSvc.DeleteHandout(ctx.Request().Context(), usr.ID, crs.ID, id); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_course_page", crs.ID))
}
