// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
	logsvc "github.com/wartburg/mcsp/services/logger"
)

// StaffPassword is the password of the users created by CreateStaff.
const StaffPassword = "Teach3r!Pass"

// CS260Roster is a registrar class list as exported by the registrar (an HTML table served as .xls).
const CS260Roster = `<html><body>
<table>
  <tr><td>Course:</td><td>CS 260</td><td>Term:</td><td>Fall 2019</td></tr>
  <tr><td>Title:</td><td>Data Structures</td></tr>
</table>
<table>
  <tr><th>ID</th><th>Name</th><th>Class</th><th>Major</th><th>Email</th></tr>
  <tr><td>1001</td><td>Doe, Jane</td><td>SO</td><td>Computer Science</td><td>jane.doe@wartburg.edu</td></tr>
  <tr><td>1002</td><td>Smith, John</td><td>JR</td><td>Mathematics</td><td>john.smith@wartburg.edu</td></tr>
  <tr><td>1003</td><td>Lee, Ann</td><td>FR</td><td>Biology</td><td>ann.lee@wartburg.edu</td></tr>
</table>
</body></html>`

// CS220Roster shares student 1001 with CS260Roster.
const CS220Roster = `<table>
  <tr><th>Student ID</th><th>Last Name</th><th>First Name</th><th>E-mail</th></tr>
  <tr><td>1001</td><td>Doe</td><td>Jane</td><td>jane.doe@wartburg.edu</td></tr>
  <tr><td>2001</td><td>Hopper</td><td>Grace</td><td>grace.hopper@wartburg.edu</td></tr>
</table>`

// Config returns the configuration used by tests; uploads go to a per-test temp dir.
func Config(t *testing.T) *core.Config {
	return &core.Config{
		TestMode:        true,
		Env:             "TEST",
		Build:           "test",
		AppName:         "Wartburg MCSP Teachers",
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://testserver",
		WorkDir:         core.Getwd(),
		Server: core.ServerConfig{
			Host:                   "testserver",
			SessionExpirationDelta: time.Hour,
			DisableReqLogs:         true,
		},
		Database: core.DatabaseConfig{InMemory: true},
		Uploads: core.UploadsConfig{
			Backend: "local",
			Dir:     t.TempDir(),
			MaxSize: 1 << 20,
		},
		Redis: core.RedisConfig{CourseCacheTTL: time.Minute},
		Jobs:  core.JobsConfig{OrphanMaxAge: time.Hour},
	}
}

// Logger returns a logger that discards everything.
func Logger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
	logger.Enable(false)
	return logger
}

// Validator returns a validator with every app validator registered.
func Validator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidate(translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStaff creates an active staff user with StaffPassword.
func CreateStaff(t *testing.T, repo user.Repository, uname string) user.User {
	return CreateUser(t, repo, "Prof "+uname, uname, uname+"@wartburg.edu", StaffPassword, []string{user.RoleStaff}, true)
}

func CreateCourse(t *testing.T, repo course.Repository, title, code, term string, instructorID int) course.Course {
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:        title,
		Code:         code,
		Term:         term,
		InstructorID: instructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateAssignment(t *testing.T, repo course.Repository, courseID int, title string, due time.Time) course.Assignment {
	a, err := repo.CreateAssignment(context.Background(), course.Assignment{
		CourseID:    courseID,
		Title:       title,
		DueDate:     due.UTC(),
		DisplayDate: due.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}
