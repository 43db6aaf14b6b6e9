package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core/course"
)

func registerAssignmentRoutes(g *echo.Group, s *Server) {
	g.GET("/assignments", s.assignmentsPage).Name = "staff_assignments_page"
	g.POST("/course/:course_id/assignments", s.addAssignment).Name = "staff_add_assignment"
	g.POST("/course/:course_id/assignments/:assignment_id/delete", s.deleteAssignment).Name = "staff_delete_assignment"
}

func (s *Server) assignmentsPage(ctx echo.Context) error {
	usr, _ := contextUser(ctx)
	groups, err := s.courseSvc.AssignmentsForInstructor(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return s.render(ctx, http.StatusOK, "teacher_view/assignment/list.html", echo.Map{
		"course_assignments": groups,
	})
}

func (s *Server) addAssignment(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}

	form := new(course.NewAssignment)
	if err = ctx.Bind(form); err != nil {
		return err
	}
	if err = form.Validate(s.validate); err != nil {
		fldErrs, err := s.formErrors(err)
		if err != nil {
			return err
		}
		return s.renderCoursePage(ctx, crs, echo.Map{
			"assignment_form":   form,
			"assignment_errors": fldErrs,
		})
	}

	usr, _ := contextUser(ctx)
	if _, err = s.courseSvc.AddAssignment(ctx.Request().Context(), usr.ID, crs.ID, *form); err != nil {
		return errors.Wrap(err, "adding assignment")
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_course_page", crs.ID))
}

func (s *Server) deleteAssignment(ctx echo.Context) error {
	crs, err := s.ctxCourse(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "assignment_id")
	if err != nil {
		return err
	}
	usr, _ := contextUser(ctx)
	if err = s.courseSvc.DeleteAssignment(ctx.Request().Context(), usr.ID, crs.ID, id); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, s.app.Reverse("staff_course_page", crs.ID))
}
