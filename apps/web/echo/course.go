package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core/course"
)

func registerCourseRoutes(g *echo.Group, s *Server) {
	g.GET("/courses", s.coursesPage).Name = "staff_courses_page"
	g.GET("/course/create", s.addCoursePage).Name = "staff_add_course_page"
	g.POST("/course/create", s.addCourse).Name = "staff_add_course_page"
	g.GET("/course/:course_id", s.coursePage).Name = "staff_course_page"
	g.GET("/course/:course_id/edit", s.editCoursePage).Name = "staff_edit_course_page"
	g.POST("/course/:course_id/edit", s.editCourse).Name = "staff_edit_course_page"
	g.POST("/course/:course_id/delete", s.deleteCourse).Name = "staff_delete_course"
}

// ctxCourse returns the course of the :course_id param, if taught by the current user.
func (s *Server) ctxCourse(ctx echo.Context) (course.Course, error) {
	id, err := paramID(ctx, "course_id")
	if err != nil {
		return course.Course{}, err
	}
	usr, _ := contextUser(ctx)
	return s.courseSvc.Get(ctx.Request().Context(), usr.ID, id)
}

func (s *Server) coursesPage(ctx echo.Context) error {
	usr, _ := contextUser(ctx)
	courses, err := s.courseSvc.ListForInstructor(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return s.render(ctx, http.StatusOK, "teacher_view/course/courses.html", echo.Map{
		"current_courses": courses,
		"all_courses":     courses,
	})
}

// renderCoursePage renders the course page; data may carry the add assignment/handout forms & their errors.
func (s *Server) renderCoursePage(ctx echo.Context, crs course.Course, data echo.Map) error {
	reqCtx := ctx.Request().Context()
	assignments, err := s.courseSvc.Assignments(reqCtx, crs.ID)
	if err != nil {
		return err
	}
	handouts, err := s.courseSvc.Handouts(reqCtx, crs.ID)
	if err != nil {
		return err
	}
	students, err := s.courseSvc.Students(reqCtx, crs.ID)
	if err != nil {
		return err
	}

	if data == nil {
		data = echo.Map{}
	}
	data["course"] = crs
	data["assignments"] = assignments
	data["handouts"] = handouts
	data["students"] = students
	if _, ok := data["assignment_form"]; !ok {
		data["assignment_form"] = course.NewAssignment{}
	}
	if _, ok := data["handout_form"]; !ok {
		data["handout_form"] = course.NewHandout{}
	}
	return s.render(ctx, http.StatusOK, "teacher_view/course/view.html", data)
}

func (s *Server) coursePage(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}
	return s.renderCoursePage(ctx, crs, nil)
}

func (s *Server) addCoursePage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "teacher_view/course/create.html", echo.Map{
		"file_form": course.NewCourseFile{},
	})
}

func (s *Server) addCourse(ctx echo.Context) error {
	form := new(course.NewCourseFile)
	fh, err := ctx.FormFile("source_file")
	switch err {
	case nil:
		form.SourceFile = fh
	case http.ErrMissingFile, http.ErrNotMultipart:
	default:
		return errors.Wrap(err, "reading uploaded file")
	}

	renderErrs := func(err error) error {
		fldErrs, err := s.formErrors(err)
		if err != nil {
			return err
		}
		return s.render(ctx, http.StatusOK, "teacher_view/course/create.html", echo.Map{
			"file_form": form,
			"errors":    fldErrs,
		})
	}

	if err = form.Validate(s.validate, s.conf.Uploads.MaxSize); err != nil {
		return renderErrs(err)
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	usr, _ := contextUser(ctx)
	crs, err := s.courseSvc.Import(ctx.Request().Context(), usr, fh.Filename, f)
	if err != nil {
		return renderErrs(err)
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_course_page", crs.ID))
}

func (s *Server) editCoursePage(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}
	return s.render(ctx, http.StatusOK, "teacher_view/course/edit.html", echo.Map{
		"course":    crs,
		"edit_form": course.EditCourseFrom(crs),
	})
}

func (s *Server) editCourse(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}

	form := new(course.EditCourse)
	if err = ctx.Bind(form); err != nil {
		return err
	}
	if err = form.Validate(s.validate); err != nil {
		fldErrs, err := s.formErrors(err)
		if err != nil {
			return err
		}
		return s.render(ctx, http.StatusOK, "teacher_view/course/edit.html", echo.Map{
			"course":    crs,
			"edit_form": form,
			"errors":    fldErrs,
		})
	}

	usr, _ := contextUser(ctx)
	if crs, err = s.courseSvc.Update(ctx.Request().Context(), usr.ID, crs.ID, *form); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_course_page", crs.ID))
}

func (s *Server) deleteCourse(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}
	usr, _ := contextUser(ctx)
	if err = s.courseSvc.Delete(ctx.Request().Context(), usr.ID, crs.ID); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_courses_page"))
}
