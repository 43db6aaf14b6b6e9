package course

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/roster"
	"github.com/wartburg/mcsp/core/user"
)

const (
	// storage prefixes
	SourceFilesPrefix = "class_htmls"
	HandoutsPrefix    = "handouts"

	// max column sizes
	maxTitleLen = 100
	maxCodeLen  = 20
	maxTermLen  = 50
	maxFileLen  = 255
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrHandoutNotFound    = errors.New("handout not found")

	nowFunc = time.Now // mockable
)

type (
	GetFilter struct {
		ID           int
		InstructorID int // 0: any instructor
	}

	QueryFilter struct {
		InstructorID int
	}

	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse deletes the course with its assignments, handouts & enrollments.
		DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) error

		// UpsertStudent matches an existing student by number, then by email.
		UpsertStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		EnrollStudents(ctx context.Context, courseID int, studentIDs []int, exec ...core.DBExecutor) error
		QueryStudents(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Student, error)

		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, courseIDs []int, exec ...core.DBExecutor) ([]Assignment, error)
		DeleteAssignment(ctx context.Context, courseID, id int, exec ...core.DBExecutor) error

		CreateHandout(ctx context.Context, h Handout, exec ...core.DBExecutor) (Handout, error)
		GetHandout(ctx context.Context, courseID, id int, exec ...core.DBExecutor) (Handout, error)
		QueryHandouts(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Handout, error)
		DeleteHandout(ctx context.Context, courseID, id int, exec ...core.DBExecutor) error

		// StoredFiles returns every storage key referenced by courses & handouts.
		StoredFiles(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		files    core.FileStorage
		cache    core.Cache
		cacheTTL time.Duration
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	tx core.Transactor,
	files core.FileStorage,
	cache core.Cache,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		files:    files,
		cache:    cache,
		cacheTTL: conf.Redis.CourseCacheTTL,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func instructorCacheKey(instructorID int) string {
	return "courses:instructor:" + strconv.Itoa(instructorID)
}

func (svc *Service) invalidate(ctx context.Context, instructorID int) {
	if err := svc.cache.Delete(ctx, instructorCacheKey(instructorID)); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating course cache: %v", err), err)
	}
}

// ListForInstructor returns the instructor's courses (navbar & courses page), with student counts.
func (svc *Service) ListForInstructor(ctx context.Context, instructorID int) ([]Course, error) {
	key := instructorCacheKey(instructorID)

	var courses []Course
	err := svc.cache.GetJSON(ctx, key, &courses)
	if err == nil {
		return courses, nil
	}
	if errors.Cause(err) != core.ErrCacheMiss {
		svc.logger.Warn(fmt.Sprintf("reading course cache: %v", err), err)
	}

	courses, err = svc.repo.QueryCourses(ctx, QueryFilter{InstructorID: instructorID})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	if err = svc.cache.SetJSON(ctx, key, courses, svc.cacheTTL); err != nil {
		svc.logger.Warn(fmt.Sprintf("writing course cache: %v", err), err)
	}
	return courses, nil
}

// Get returns the course only if it is taught by instructorID.
func (svc *Service) Get(ctx context.Context, instructorID, courseID int) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{ID: courseID, InstructorID: instructorID})
}

func (svc *Service) Students(ctx context.Context, courseID int) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, courseID)
}

// Import creates a course from a registrar class list and enrolls its students.
// The upload is stored first and removed again if the import fails.
func (svc *Service) Import(ctx context.Context, instructor user.User, filename string, r io.ReadSeeker) (Course, error) {
	rst, err := roster.Parse(filename, r)
	if err != nil {
		switch errors.Cause(err) {
		case roster.ErrEmptyFile, roster.ErrNoRoster:
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "source_file", Error: err.Error()})
		}
		return Course{}, core.NewValidationError(err, core.FieldError{Field: "source_file", Error: "the file could not be read as a class list"})
	}
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return Course{}, errors.Wrap(err, "rewinding upload")
	}

	key, err := svc.files.Save(ctx, SourceFilesPrefix, path.Base(filename), r)
	if err != nil {
		return Course{}, errors.Wrap(err, "storing upload")
	}

	now := nowFunc().UTC()
	crs := Course{
		Title:        clipWords(rst.Title, maxTitleLen),
		Code:         clipWords(rst.Code, maxCodeLen),
		Term:         clipWords(rst.Term, maxTermLen),
		InstructorID: instructor.ID,
		SourceFile:   key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var txErr error
		if crs, txErr = svc.repo.CreateCourse(ctx, crs, exec); txErr != nil {
			return errors.Wrap(txErr, "creating course")
		}
		ids := make([]int, 0, len(rst.Students))
		for _, rs := range rst.Students {
			st, txErr := svc.repo.UpsertStudent(ctx, Student{
				Number:    rs.Number,
				FirstName: rs.FirstName,
				LastName:  rs.LastName,
				Email:     rs.Email,
				ClassYear: rs.ClassYear,
				Major:     rs.Major,
			}, exec)
			if txErr != nil {
				return errors.Wrap(txErr, "upserting student")
			}
			ids = append(ids, st.ID)
		}
		if txErr = svc.repo.EnrollStudents(ctx, crs.ID, ids, exec); txErr != nil {
			return errors.Wrap(txErr, "enrolling students")
		}
		crs.NumStudents = len(ids)
		return nil
	})
	if err != nil {
		svc.deleteFiles(ctx, key)
		return Course{}, err
	}

	svc.invalidate(ctx, instructor.ID)
	svc.notifyImported(instructor, crs, path.Base(filename), r)
	return crs, nil
}

// notifyImported mails the import summary to the instructor, with the class list attached.
func (svc *Service) notifyImported(instructor user.User, crs Course, filename string, r io.ReadSeeker) {
	if instructor.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: instructor.Name, Address: instructor.Email}},
		Subject:      "Roster imported: " + crs.Code,
		TemplateName: "roster_imported",
		TemplateData: map[string]interface{}{
			"Name":        instructor.DisplayName(),
			"CourseTitle": crs.Title,
			"CourseCode":  crs.Code,
			"CourseURL":   "/teacher/course/" + strconv.Itoa(crs.ID),
			"NumStudents": crs.NumStudents,
		},
	}
	_, err := r.Seek(0, io.SeekStart)
	if err == nil {
		err = msg.Attach(r, filename)
	}
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("attaching class list %q: %v", filename, err), err)
	}
	svc.mailSvc.SendMessages(msg)
}

// Update saves validated course metadata.
func (svc *Service) Update(ctx context.Context, instructorID, courseID int, ec EditCourse) (Course, error) {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return Course{}, err
	}
	crs.Title = ec.Title
	crs.Code = ec.Code
	crs.Term = ec.Term
	crs.UpdatedAt = nowFunc().UTC()
	if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	svc.invalidate(ctx, instructorID)
	return crs, nil
}

// Delete removes the course, its assignments & handouts, then their stored files.
func (svc *Service) Delete(ctx context.Context, instructorID, courseID int) error {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return err
	}
	handouts, err := svc.repo.QueryHandouts(ctx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying handouts")
	}
	if err = svc.repo.DeleteCourse(ctx, crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}

	keys := make([]string, 0, len(handouts)+1)
	if crs.SourceFile != "" {
		keys = append(keys, crs.SourceFile)
	}
	for _, h := range handouts {
		keys = append(keys, h.File)
	}
	svc.deleteFiles(ctx, keys...)
	svc.invalidate(ctx, instructorID)
	return nil
}

func (svc *Service) deleteFiles(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := svc.files.Delete(ctx, key); err != nil && errors.Cause(err) != core.ErrFileNotFound {
			svc.logger.Warn(fmt.Sprintf("deleting stored file %q: %v", key, err), err)
		}
	}
}

// Assignments

func (svc *Service) Assignments(ctx context.Context, courseID int) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, []int{courseID})
}

// AssignmentsForInstructor returns the assignments of every course taught by instructorID, grouped by course.
func (svc *Service) AssignmentsForInstructor(ctx context.Context, instructorID int) ([]CourseAssignments, error) {
	courses, err := svc.ListForInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	assignments, err := svc.repo.QueryAssignments(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	byCourse := make(map[int][]Assignment, len(courses))
	for _, a := range assignments {
		byCourse[a.CourseID] = append(byCourse[a.CourseID], a)
	}
	groups := make([]CourseAssignments, 0, len(courses))
	for _, c := range courses {
		groups = append(groups, CourseAssignments{Course: c, Assignments: byCourse[c.ID]})
	}
	return groups, nil
}

// AddAssignment creates an assignment from a validated form.
func (svc *Service) AddAssignment(ctx context.Context, instructorID, courseID int, na NewAssignment) (Assignment, error) {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return Assignment{}, err
	}
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:    crs.ID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.due,
		DisplayDate: na.display,
	})
	return a, errors.Wrap(err, "creating assignment")
}

func (svc *Service) DeleteAssignment(ctx context.Context, instructorID, courseID, assignmentID int) error {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, crs.ID, assignmentID)
}

// Handouts

func (svc *Service) Handouts(ctx context.Context, courseID int) ([]Handout, error) {
	return svc.repo.QueryHandouts(ctx, courseID)
}

// AddHandout stores the uploaded file and records the handout.
func (svc *Service) AddHandout(ctx context.Context, instructorID, courseID int, nh NewHandout, r io.Reader) (Handout, error) {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return Handout{}, err
	}

	filename := clip(path.Base(nh.File.Filename), maxFileLen)
	key, err := svc.files.Save(ctx, path.Join(HandoutsPrefix, strconv.Itoa(crs.ID)), filename, r)
	if err != nil {
		return Handout{}, errors.Wrap(err, "storing handout")
	}

	h, err := svc.repo.CreateHandout(ctx, Handout{
		CourseID:    crs.ID,
		Title:       nh.Title,
		File:        key,
		Filename:    filename,
		ContentType: nh.File.Header.Get("Content-Type"),
		CreatedAt:   nowFunc().UTC(),
	})
	if err != nil {
		svc.deleteFiles(ctx, key)
		return Handout{}, errors.Wrap(err, "creating handout")
	}
	return h, nil
}

// OpenHandout returns the handout & its content. The caller must close the reader.
func (svc *Service) OpenHandout(ctx context.Context, instructorID, courseID, handoutID int) (Handout, io.ReadCloser, error) {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return Handout{}, nil, err
	}
	h, err := svc.repo.GetHandout(ctx, crs.ID, handoutID)
	if err != nil {
		return Handout{}, nil, err
	}
	rc, err := svc.files.Open(ctx, h.File)
	if err != nil {
		if errors.Cause(err) == core.ErrFileNotFound {
			return Handout{}, nil, ErrHandoutNotFound
		}
		return Handout{}, nil, errors.Wrap(err, "opening handout")
	}
	return h, rc, nil
}

func (svc *Service) DeleteHandout(ctx context.Context, instructorID, courseID, handoutID int) error {
	crs, err := svc.Get(ctx, instructorID, courseID)
	if err != nil {
		return err
	}
	h, err := svc.repo.GetHandout(ctx, crs.ID, handoutID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteHandout(ctx, crs.ID, h.ID); err != nil {
		return errors.Wrap(err, "deleting handout")
	}
	svc.deleteFiles(ctx, h.File)
	return nil
}

// SweepOrphans deletes stored uploads older than maxAge that no course or handout references.
func (svc *Service) SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := svc.repo.StoredFiles(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing referenced files")
	}
	referenced := make(map[string]bool, len(keys))
	for _, k := range keys {
		referenced[k] = true
	}

	cutoff := nowFunc().Add(-maxAge)
	var deleted int
	for _, prefix := range []string{SourceFilesPrefix, HandoutsPrefix} {
		stored, err := svc.files.List(ctx, prefix)
		if err != nil {
			return deleted, errors.Wrapf(err, "listing %s", prefix)
		}
		for _, f := range stored {
			if referenced[f.Key] || f.ModTime.After(cutoff) {
				continue
			}
			if err = svc.files.Delete(ctx, f.Key); err != nil {
				return deleted, errors.Wrapf(err, "deleting %s", f.Key)
			}
			deleted++
		}
	}
	return deleted, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// clipWords is clip that backs off to the last word boundary when one exists.
func clipWords(s string, n int) string {
	c := clip(s, n)
	if len(c) == len(s) || s[len(c)] == ' ' {
		return c
	}
	if idx := strings.LastIndexByte(c, ' '); idx > 0 {
		return strings.TrimRight(c[:idx], " ")
	}
	return c
}
