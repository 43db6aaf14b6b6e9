package course_test

import (
	"context"
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
	cachesvc "github.com/wartburg/mcsp/services/cache"
	emailsvc "github.com/wartburg/mcsp/services/email"
	inmemdb "github.com/wartburg/mcsp/storage/database/inmem"
	"github.com/wartburg/mcsp/storage/files"
	"github.com/wartburg/mcsp/tests"
)

type fixture struct {
	svc     *course.Service
	repo    course.Repository
	usrRepo user.Repository
	store   core.FileStorage
	teacher user.User
	other   user.User
}

func setup(t *testing.T, wrap ...func(course.Repository) course.Repository) fixture {
	conf := testutil.Config(t)
	db := inmemdb.Open()
	var repo course.Repository = inmemdb.NewCourseRepository(db)
	for _, w := range wrap {
		repo = w(repo)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	store, err := files.NewLocal(conf.Uploads.Dir)
	require.NoError(t, err)

	emailsvc.ResetSentMessages()
	svc := course.NewService(conf, repo, db, store, cachesvc.NewMemoryCache(), emailsvc.NewConsoleServiceMock(conf), testutil.Logger(conf))
	return fixture{
		svc:     svc,
		repo:    repo,
		usrRepo: usrRepo,
		store:   store,
		teacher: testutil.CreateStaff(t, usrRepo, "teacher"),
		other:   testutil.CreateStaff(t, usrRepo, "other"),
	}
}

func (f fixture) storedFiles(t *testing.T, prefix string) []core.StoredFile {
	stored, err := f.store.List(context.Background(), prefix)
	require.NoError(t, err)
	return stored
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	courses, err := f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, courses)

	crs, err := f.svc.Import(ctx, f.teacher, "CS_260.xls", strings.NewReader(testutil.CS260Roster))
	require.NoError(t, err)
	assert.Equal(t, 1, crs.ID)
	assert.Equal(t, "CS 260", crs.Code)
	assert.Equal(t, "Data Structures", crs.Title)
	assert.Equal(t, "Fall 2019", crs.Term)
	assert.Equal(t, f.teacher.ID, crs.InstructorID)
	assert.Equal(t, 3, crs.NumStudents)

	// upload kept under the class lists prefix
	stored := f.storedFiles(t, course.SourceFilesPrefix)
	require.Len(t, stored, 1)
	assert.Equal(t, crs.SourceFile, stored[0].Key)

	// the navbar cache was invalidated
	courses, err = f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 3, courses[0].NumStudents)

	students, err := f.svc.Students(ctx, crs.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(students))
	for _, s := range students {
		names = append(names, s.SortName())
	}
	assert.Equal(t, []string{"Doe, Jane", "Lee, Ann", "Smith, John"}, names)

	sent := emailsvc.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, f.teacher.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "3 student(s)")
	assert.Contains(t, sent[0].TextContent, "http://testserver/teacher/course/1")
	require.Len(t, sent[0].Attachments, 1)
	at := sent[0].Attachments[0]
	assert.Equal(t, "CS_260.xls", at.Filename)
	assert.Equal(t, "text/html; charset=utf-8", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, testutil.CS260Roster, string(content))
}

func TestService_Import_dedupesStudents(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	crs260, err := f.svc.Import(ctx, f.teacher, "CS_260.xls", strings.NewReader(testutil.CS260Roster))
	require.NoError(t, err)
	crs220, err := f.svc.Import(ctx, f.teacher, "CS_220_May.xls", strings.NewReader(testutil.CS220Roster))
	require.NoError(t, err)
	assert.Equal(t, "CS 220", crs220.Code)
	assert.Equal(t, "May", crs220.Term)

	s260, err := f.svc.Students(ctx, crs260.ID)
	require.NoError(t, err)
	s220, err := f.svc.Students(ctx, crs220.ID)
	require.NoError(t, err)
	require.Len(t, s220, 2)

	// Jane Doe (1001) is a single student enrolled in both courses
	assert.Equal(t, s260[0].ID, s220[0].ID)
	assert.Equal(t, "1001", s220[0].Number)
}

func TestService_Import_invalidFile(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name     string
		content  string
		wantFlds map[string]string
	}{
		{name: "empty", content: "", wantFlds: map[string]string{"source_file": "the submitted file is empty"}},
		{name: "no roster", content: "<p>hello</p>", wantFlds: map[string]string{"source_file": "no student roster was found in the file"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Import(ctx, f.teacher, "CS_260.xls", strings.NewReader(tt.content))
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "unexpected error %v", err)
			assert.Equal(t, tt.wantFlds, vErr.FieldMap())
		})
	}

	courses, err := f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.Empty(t, f.storedFiles(t, course.SourceFilesPrefix))
}

type failingEnrollRepo struct {
	course.Repository
}

func (r failingEnrollRepo) EnrollStudents(context.Context, int, []int, ...core.DBExecutor) error {
	return errors.New("enroll failed")
}

func TestService_Import_rollsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t, func(r course.Repository) course.Repository { return failingEnrollRepo{r} })

	_, err := f.svc.Import(ctx, f.teacher, "CS_260.xls", strings.NewReader(testutil.CS260Roster))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enroll failed")

	courses, err := f.repo.QueryCourses(ctx, course.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.Empty(t, f.storedFiles(t, course.SourceFilesPrefix))
	assert.Empty(t, emailsvc.GetSentMessages())
}

func TestService_scopedToInstructor(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	mine := testutil.CreateCourse(t, f.repo, "Intro", "CS 120", "Fall", f.teacher.ID)
	theirs := testutil.CreateCourse(t, f.repo, "Calculus", "MA 151", "Fall", f.other.ID)

	courses, err := f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, mine.ID, courses[0].ID)

	_, err = f.svc.Get(ctx, f.teacher.ID, theirs.ID)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = f.svc.Update(ctx, f.teacher.ID, theirs.ID, course.EditCourse{Title: "Mine now", Code: "X", Term: "Y"})
	assert.Equal(t, course.ErrNotFound, err)
	assert.Equal(t, course.ErrNotFound, f.svc.Delete(ctx, f.teacher.ID, theirs.ID))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	crs := testutil.CreateCourse(t, f.repo, "Intro", "CS 120", "Fall", f.teacher.ID)

	// warm the cache
	_, err := f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, f.teacher.ID, crs.ID, course.EditCourse{Title: "Intro to CS", Code: "CS 121", Term: "Spring"})
	require.NoError(t, err)
	assert.Equal(t, "Intro to CS", updated.Title)

	courses, err := f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS 121", courses[0].Code)
	assert.Equal(t, "Spring", courses[0].Term)
}

func fileHeader(filename, contentType string, size int64) *multipart.FileHeader {
	return &multipart.FileHeader{
		Filename: filename,
		Header:   textproto.MIMEHeader{"Content-Type": {contentType}},
		Size:     size,
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	crs, err := f.svc.Import(ctx, f.teacher, "CS_260.xls", strings.NewReader(testutil.CS260Roster))
	require.NoError(t, err)
	_, err = f.svc.AddHandout(ctx, f.teacher.ID, crs.ID, course.NewHandout{Title: "Syllabus", File: fileHeader("syllabus.pdf", "application/pdf", 3)}, strings.NewReader("pdf"))
	require.NoError(t, err)
	testutil.CreateAssignment(t, f.repo, crs.ID, "HW1", time.Now())

	require.NoError(t, f.svc.Delete(ctx, f.teacher.ID, crs.ID))

	_, err = f.svc.Get(ctx, f.teacher.ID, crs.ID)
	assert.Equal(t, course.ErrNotFound, err)
	assignments, err := f.svc.Assignments(ctx, crs.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.Empty(t, f.storedFiles(t, course.SourceFilesPrefix))
	assert.Empty(t, f.storedFiles(t, course.HandoutsPrefix))

	courses, err := f.svc.ListForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestService_Assignments(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	validate, translator := testutil.Validator()

	crs1 := testutil.CreateCourse(t, f.repo, "Intro", "CS 120", "Fall", f.teacher.ID)
	crs2 := testutil.CreateCourse(t, f.repo, "Data Structures", "CS 260", "Fall", f.teacher.ID)
	theirs := testutil.CreateCourse(t, f.repo, "Calculus", "MA 151", "Fall", f.other.ID)
	testutil.CreateAssignment(t, f.repo, theirs.ID, "Not mine", time.Now())

	tests := []struct {
		name     string
		form     course.NewAssignment
		wantFlds map[string]string
	}{
		{name: "title required", form: course.NewAssignment{DueDate: "2019-10-01"}, wantFlds: map[string]string{"title": "this field is required"}},
		{
			name:     "title too long",
			form:     course.NewAssignment{Title: strings.Repeat("x", 51), DueDate: "2019-10-01"},
			wantFlds: map[string]string{"title": "title must be a maximum of 50 characters in length"},
		},
		{name: "due date required", form: course.NewAssignment{Title: "HW"}, wantFlds: map[string]string{"due_date": "this field is required"}},
		{
			name:     "display after due",
			form:     course.NewAssignment{Title: "HW", DueDate: "2019-10-01", DisplayDate: "2019-10-02"},
			wantFlds: map[string]string{"display_date": "the display date cannot be after the due date"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := tt.form
			err := form.Validate(validate)
			vErr, ok := core.TranslateValidationErrors(err, translator).(*core.ValidationError)
			require.True(t, ok, "unexpected error %v", err)
			assert.Equal(t, tt.wantFlds, vErr.FieldMap())
		})
	}

	hw1 := course.NewAssignment{Title: "HW1", Description: "Chapter 1", DueDate: "2019-10-08", DisplayDate: "2019-10-01"}
	require.NoError(t, hw1.Validate(validate))
	a1, err := f.svc.AddAssignment(ctx, f.teacher.ID, crs1.ID, hw1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 10, 8, 0, 0, 0, 0, time.UTC), a1.DueDate)
	assert.Equal(t, time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC), a1.DisplayDate)

	lab := course.NewAssignment{Title: "Lab 1", DueDate: "2019-09-01"}
	require.NoError(t, lab.Validate(validate))
	a2, err := f.svc.AddAssignment(ctx, f.teacher.ID, crs2.ID, lab)
	require.NoError(t, err)
	assert.Equal(t, a2.DueDate, a2.DisplayDate, "display date defaults to the due date when it is already past")

	_, err = f.svc.AddAssignment(ctx, f.teacher.ID, theirs.ID, hw1)
	assert.Equal(t, course.ErrNotFound, err)

	// course pages only list their own assignments
	assignments, err := f.svc.Assignments(ctx, crs1.ID)
	require.NoError(t, err)
	assert.Equal(t, []course.Assignment{a1}, assignments)

	groups, err := f.svc.AssignmentsForInstructor(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, crs1.ID, groups[0].Course.ID)
	assert.Equal(t, []course.Assignment{a1}, groups[0].Assignments)
	assert.Equal(t, []course.Assignment{a2}, groups[1].Assignments)

	assert.Equal(t, course.ErrAssignmentNotFound, f.svc.DeleteAssignment(ctx, f.teacher.ID, crs2.ID, a1.ID))
	require.NoError(t, f.svc.DeleteAssignment(ctx, f.teacher.ID, crs1.ID, a1.ID))
	assignments, err = f.svc.Assignments(ctx, crs1.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestService_Handouts(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	crs := testutil.CreateCourse(t, f.repo, "Intro", "CS 120", "Fall", f.teacher.ID)

	h, err := f.svc.AddHandout(ctx, f.teacher.ID, crs.ID, course.NewHandout{Title: "Syllabus", File: fileHeader("syllabus.txt", "text/plain", 11)}, strings.NewReader("hello class"))
	require.NoError(t, err)
	assert.Equal(t, "syllabus.txt", h.Filename)
	assert.Equal(t, "text/plain", h.ContentType)

	_, _, err = f.svc.OpenHandout(ctx, f.other.ID, crs.ID, h.ID)
	assert.Equal(t, course.ErrNotFound, err)

	got, rc, err := f.svc.OpenHandout(ctx, f.teacher.ID, crs.ID, h.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, h, got)
	assert.Equal(t, "hello class", string(data))

	require.NoError(t, f.svc.DeleteHandout(ctx, f.teacher.ID, crs.ID, h.ID))
	assert.Equal(t, course.ErrHandoutNotFound, f.svc.DeleteHandout(ctx, f.teacher.ID, crs.ID, h.ID))
	assert.Empty(t, f.storedFiles(t, course.HandoutsPrefix))
}

func TestService_SweepOrphans(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	crs, err := f.svc.Import(ctx, f.teacher, "CS_260.xls", strings.NewReader(testutil.CS260Roster))
	require.NoError(t, err)
	_, err = f.store.Save(ctx, course.SourceFilesPrefix, "orphan.xls", strings.NewReader("orphan"))
	require.NoError(t, err)
	_, err = f.store.Save(ctx, course.HandoutsPrefix+"/99", "orphan.pdf", strings.NewReader("orphan"))
	require.NoError(t, err)

	// nothing old enough yet
	n, err := f.svc.SweepOrphans(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.svc.SweepOrphans(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored := f.storedFiles(t, course.SourceFilesPrefix)
	require.Len(t, stored, 1)
	assert.Equal(t, crs.SourceFile, stored[0].Key)
}

func TestNewCourseFile_Validate(t *testing.T) {
	validate, translator := testutil.Validator()

	tests := []struct {
		name     string
		file     *multipart.FileHeader
		wantFlds map[string]string
	}{
		{name: "missing", wantFlds: map[string]string{"source_file": "this field is required"}},
		{name: "bad extension", file: fileHeader("roster.pdf", "application/pdf", 10), wantFlds: map[string]string{"source_file": "upload an .xls class list exported from the registrar"}},
		{name: "empty", file: fileHeader("roster.xls", "application/vnd.ms-excel", 0), wantFlds: map[string]string{"source_file": "the submitted file is empty"}},
		{name: "too large", file: fileHeader("roster.xls", "application/vnd.ms-excel", 2<<20), wantFlds: map[string]string{"source_file": "the file is too large"}},
		{name: "valid xls", file: fileHeader("CS_260.XLS", "application/vnd.ms-excel", 10)},
		{name: "valid html", file: fileHeader("CS_260.htm", "text/html", 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := course.NewCourseFile{SourceFile: tt.file}
			err := form.Validate(validate, 1<<20)
			if tt.wantFlds == nil {
				assert.NoError(t, err)
				return
			}
			vErr, ok := core.TranslateValidationErrors(err, translator).(*core.ValidationError)
			require.True(t, ok, "unexpected error %v", err)
			assert.Equal(t, tt.wantFlds, vErr.FieldMap())
		})
	}
}

func TestEditCourse_Validate(t *testing.T) {
	validate, translator := testutil.Validator()

	tests := []struct {
		name     string
		form     course.EditCourse
		wantFlds map[string]string
	}{
		{name: "valid", form: course.EditCourse{Title: "Intro", Code: "CS 120", Term: "Fall"}},
		{name: "missing code", form: course.EditCourse{Title: "Intro", Term: "Fall"}, wantFlds: map[string]string{"code": "this field is required"}},
		{name: "blank title", form: course.EditCourse{Title: "   ", Code: "CS 120", Term: "Fall"}, wantFlds: map[string]string{"title": "this field is required"}},
		{
			name:     "code too long",
			form:     course.EditCourse{Title: "Intro", Code: strings.Repeat("C", 21), Term: "Fall"},
			wantFlds: map[string]string{"code": "code must be a maximum of 20 characters in length"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := tt.form
			err := form.Validate(validate)
			if tt.wantFlds == nil {
				assert.NoError(t, err)
				return
			}
			vErr, ok := core.TranslateValidationErrors(err, translator).(*core.ValidationError)
			require.True(t, ok, "unexpected error %v", err)
			assert.Equal(t, tt.wantFlds, vErr.FieldMap())
		})
	}
}
