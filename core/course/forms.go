package course

import (
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wartburg/mcsp/core"
)

const dateLayout = "2006-01-02"

var (
	rosterExts = map[string]bool{".xls": true, ".html": true, ".htm": true}

	errRosterExt       = "upload an .xls class list exported from the registrar"
	errFileTooLarge    = "the file is too large"
	errEmptyUpload     = "the submitted file is empty"
	errDisplayAfterDue = "the display date cannot be after the due date"
)

// NewCourseFile is the course creation form: a registrar class list upload.
type NewCourseFile struct {
	SourceFile *multipart.FileHeader `form:"source_file" validate:"required"`
}

func (f *NewCourseFile) Validate(validate *validator.Validate, maxSize int64) error {
	if err := validate.Struct(f); err != nil {
		return err
	}
	fieldErr := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "source_file", Error: msg})
	}
	if !rosterExts[strings.ToLower(filepath.Ext(f.SourceFile.Filename))] {
		return fieldErr(errRosterExt)
	}
	if f.SourceFile.Size == 0 {
		return fieldErr(errEmptyUpload)
	}
	if maxSize > 0 && f.SourceFile.Size > maxSize {
		return fieldErr(errFileTooLarge)
	}
	return nil
}

// EditCourse is the course metadata form.
type EditCourse struct {
	Title string `form:"title" validate:"required,max=100"`
	Code  string `form:"code" validate:"required,max=20"`
	Term  string `form:"term" validate:"required,max=50"`
}

func (ec *EditCourse) Validate(validate *validator.Validate) error {
	ec.Title = core.CleanString(ec.Title)
	ec.Code = core.CleanString(ec.Code)
	ec.Term = core.CleanString(ec.Term)
	return validate.Struct(ec)
}

// EditCourseFrom returns the form prefilled with the course values.
func EditCourseFrom(c Course) EditCourse {
	return EditCourse{Title: c.Title, Code: c.Code, Term: c.Term}
}

// NewAssignment is the assignment creation form. Dates use the "2006-01-02" layout.
// An empty DisplayDate defaults to today, or to the due date if that comes first.
type NewAssignment struct {
	Title       string `form:"title" validate:"required,max=50"`
	Description string `form:"description" validate:"max=5000"`
	DueDate     string `form:"due_date" validate:"required,datetime=2006-01-02"`
	DisplayDate string `form:"display_date" validate:"omitempty,datetime=2006-01-02"`

	due, display time.Time
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = strings.TrimSpace(na.Description)
	na.DueDate = strings.TrimSpace(na.DueDate)
	na.DisplayDate = strings.TrimSpace(na.DisplayDate)
	if err := validate.Struct(na); err != nil {
		return err
	}

	na.due, _ = time.Parse(dateLayout, na.DueDate)
	if na.DisplayDate == "" {
		now := nowFunc().UTC()
		na.display = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if na.display.After(na.due) {
			na.display = na.due
		}
	} else {
		na.display, _ = time.Parse(dateLayout, na.DisplayDate)
	}
	if na.display.After(na.due) {
		return core.NewValidationError(nil, core.FieldError{Field: "display_date", Error: errDisplayAfterDue})
	}
	return nil
}

// NewHandout is the handout upload form.
type NewHandout struct {
	Title string                `form:"title" validate:"required,max=25"`
	File  *multipart.FileHeader `form:"handout" validate:"required"`
}

func (nh *NewHandout) Validate(validate *validator.Validate, maxSize int64) error {
	nh.Title = core.CleanString(nh.Title)
	if err := validate.Struct(nh); err != nil {
		return err
	}
	if maxSize > 0 && nh.File.Size > maxSize {
		return core.NewValidationError(nil, core.FieldError{Field: "handout", Error: errFileTooLarge})
	}
	return nil
}
