package echoweb_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wartburg/mcsp/tests"
)

func TestHandouts(t *testing.T) {
	app := setup(t)
	staff := testutil.CreateStaff(t, app.usrRepo, "teacher")
	other := testutil.CreateStaff(t, app.usrRepo, "other")
	crs := testutil.CreateCourse(t, app.courseRepo, "Intro", "CS 120", "Fall", staff.ID)
	coursePath := "/teacher/course/" + itoa(crs.ID)

	t.Run("title required", func(t *testing.T) {
		app.rendered = nil
		rec := app.postMultipart(t, coursePath+"/handouts", url.Values{}, &upload{"handout", "syllabus.txt", []byte("hello")}, &staff)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]string{"title": "this field is required"}, app.lastRendered(t).data["handout_errors"])
	})

	rec := app.postMultipart(t, coursePath+"/handouts", url.Values{"title": {"Syllabus"}}, &upload{"handout", "syllabus.txt", []byte("hello class")}, &staff)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, coursePath, rec.Header().Get("Location"))

	handouts, err := app.courseSvc.Handouts(context.Background(), crs.ID)
	require.NoError(t, err)
	require.Len(t, handouts, 1)
	h := handouts[0]
	assert.Equal(t, "Syllabus", h.Title)
	assert.Equal(t, "syllabus.txt", h.Filename)

	downloadPath := coursePath + "/handouts/" + itoa(h.ID)
	rec = app.get(t, downloadPath, &staff)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello class", rec.Body.String())
	assert.Equal(t, `attachment; filename="syllabus.txt"`, rec.Header().Get("Content-Disposition"))

	// other instructors cannot reach it
	rec = app.get(t, downloadPath, &other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.postForm(t, downloadPath+"/delete", url.Values{}, &staff)
	assert.Equal(t, http.StatusFound, rec.Code)
	rec = app.get(t, downloadPath, &staff)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("long filename", func(t *testing.T) {
		filename := strings.Repeat("notes-", 50) + ".txt"
		rec := app.postMultipart(t, coursePath+"/handouts", url.Values{"title": {"Notes"}}, &upload{"handout", filename, []byte("notes")}, &staff)
		require.Equal(t, http.StatusFound, rec.Code)

		handouts, err := app.courseSvc.Handouts(context.Background(), crs.ID)
		require.NoError(t, err)
		require.Len(t, handouts, 1)
		assert.Equal(t, filename[:255], handouts[0].Filename)
		assert.LessOrEqual(t, len(handouts[0].File), 255)

		rec = app.get(t, coursePath+"/handouts/"+itoa(handouts[0].ID), &staff)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "notes", rec.Body.String())
	})
}
