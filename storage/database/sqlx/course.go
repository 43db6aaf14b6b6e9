package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
)

const courseSelect = `SELECT c.id, c.title, c.code, c.term, c.instructor_id, c.source_file, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM course_student cs WHERE cs.course_id = c.id) AS num_students
	FROM course c`

type (
	courseRow struct {
		ID           int         `db:"id"`
		Title        string      `db:"title"`
		Code         string      `db:"code"`
		Term         string      `db:"term"`
		InstructorID null.Int    `db:"instructor_id"`
		SourceFile   null.String `db:"source_file"`
		NumStudents  int         `db:"num_students"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	studentRow struct {
		ID        int         `db:"id"`
		Number    null.String `db:"student_number"`
		FirstName string      `db:"first_name"`
		LastName  string      `db:"last_name"`
		Email     string      `db:"email"`
		ClassYear string      `db:"class_year"`
		Major     string      `db:"major"`
	}

	assignmentRow struct {
		ID          int       `db:"id"`
		CourseID    int       `db:"course_id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		DueDate     null.Time `db:"due_date"`
		DisplayDate null.Time `db:"display_date"`
	}

	handoutRow struct {
		ID          int       `db:"id"`
		CourseID    int       `db:"course_id"`
		Title       string    `db:"title"`
		File        string    `db:"file"`
		Filename    string    `db:"filename"`
		ContentType string    `db:"content_type"`
		CreatedAt   time.Time `db:"created_at"`
	}
)

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Code:         r.Code,
		Term:         r.Term,
		InstructorID: r.InstructorID.Int,
		SourceFile:   r.SourceFile.String,
		NumStudents:  r.NumStudents,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r studentRow) student() course.Student {
	return course.Student{
		ID:        r.ID,
		Number:    r.Number.String,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		ClassYear: r.ClassYear,
		Major:     r.Major,
	}
}

func (r assignmentRow) assignment() course.Assignment {
	return course.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.Time.UTC(),
		DisplayDate: r.DisplayDate.Time.UTC(),
	}
}

func (r handoutRow) handout() course.Handout {
	return course.Handout{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		File:        r.File,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func trapNoRows(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return wrapErr(err, msg)
}

// Courses

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	err := sqlx.GetContext(ctx, extContext(repo.db, exec), &c.ID,
		`INSERT INTO course (title, code, term, instructor_id, source_file, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.Title, c.Code, c.Term, null.NewInt(c.InstructorID, c.InstructorID != 0),
		null.NewString(c.SourceFile, c.SourceFile != ""), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, wrapErr(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	query := courseSelect + ` WHERE c.id = $1`
	args := []interface{}{filter.ID}
	if filter.InstructorID != 0 {
		query += ` AND c.instructor_id = $2`
		args = append(args, filter.InstructorID)
	}

	var row courseRow
	if err := sqlx.GetContext(ctx, extContext(repo.db, exec), &row, query, args...); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	query := courseSelect
	var args []interface{}
	if filter.InstructorID != 0 {
		query += ` WHERE c.instructor_id = $1`
		args = append(args, filter.InstructorID)
	}
	query += ` ORDER BY c.id`

	var rows []courseRow
	if err := sqlx.SelectContext(ctx, extContext(repo.db, exec), &rows, query, args...); err != nil {
		return nil, wrapErr(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	res, err := extContext(repo.db, exec).ExecContext(ctx,
		`UPDATE course SET title = $2, code = $3, term = $4, instructor_id = $5, source_file = $6, updated_at = $7 WHERE id = $1`,
		c.ID, c.Title, c.Code, c.Term, null.NewInt(c.InstructorID, c.InstructorID != 0),
		null.NewString(c.SourceFile, c.SourceFile != ""), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, wrapErr(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) error {
	_, err := extContext(repo.db, exec).ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	return wrapErr(err, "deleting course")
}

// Students

func (repo courseRepository) UpsertStudent(ctx context.Context, s course.Student, exec ...core.DBExecutor) (course.Student, error) {
	ext := extContext(repo.db, exec)

	if s.Number != "" {
		err := sqlx.GetContext(ctx, ext, &s.ID,
			`INSERT INTO student (student_number, first_name, last_name, email, class_year, major)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (student_number) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
				email = EXCLUDED.email, class_year = EXCLUDED.class_year, major = EXCLUDED.major
			RETURNING id`,
			s.Number, s.FirstName, s.LastName, s.Email, s.ClassYear, s.Major,
		)
		return s, wrapErr(err, "upserting student by number")
	}

	if s.Email != "" {
		err := sqlx.GetContext(ctx, ext, &s.ID,
			`UPDATE student SET first_name = $2, last_name = $3, class_year = $4, major = $5
			WHERE id = (SELECT id FROM student WHERE lower(email) = lower($1) ORDER BY id LIMIT 1) RETURNING id`,
			s.Email, s.FirstName, s.LastName, s.ClassYear, s.Major,
		)
		if err == nil {
			return s, nil
		}
		if err != sql.ErrNoRows {
			return course.Student{}, wrapErr(err, "upserting student by email")
		}
	}

	err := sqlx.GetContext(ctx, ext, &s.ID,
		`INSERT INTO student (first_name, last_name, email, class_year, major) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.FirstName, s.LastName, s.Email, s.ClassYear, s.Major,
	)
	return s, wrapErr(err, "inserting student")
}

func (repo courseRepository) EnrollStudents(ctx context.Context, courseID int, studentIDs []int, exec ...core.DBExecutor) error {
	if len(studentIDs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(studentIDs))
	for _, id := range studentIDs {
		ids = append(ids, int64(id))
	}
	_, err := extContext(repo.db, exec).ExecContext(ctx,
		`INSERT INTO course_student (course_id, student_id) SELECT $1, unnest($2::integer[]) ON CONFLICT DO NOTHING`,
		courseID, pq.Int64Array(ids),
	)
	return wrapErr(err, "enrolling students")
}

func (repo courseRepository) QueryStudents(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Student, error) {
	var rows []studentRow
	err := sqlx.SelectContext(ctx, extContext(repo.db, exec), &rows,
		`SELECT s.id, s.student_number, s.first_name, s.last_name, s.email, s.class_year, s.major
		FROM student s JOIN course_student cs ON cs.student_id = s.id
		WHERE cs.course_id = $1 ORDER BY s.last_name, s.first_name, s.id`,
		courseID,
	)
	if err != nil {
		return nil, wrapErr(err, "querying students")
	}
	students := make([]course.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

// Assignments

func (repo courseRepository) CreateAssignment(ctx context.Context, a course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	err := sqlx.GetContext(ctx, extContext(repo.db, exec), &a.ID,
		`INSERT INTO assignment (course_id, title, description, due_date, display_date) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.CourseID, a.Title, a.Description, nullTime(a.DueDate), nullTime(a.DisplayDate),
	)
	if err != nil {
		return course.Assignment{}, wrapErr(err, "inserting assignment")
	}
	return a, nil
}

func (repo courseRepository) QueryAssignments(ctx context.Context, courseIDs []int, exec ...core.DBExecutor) ([]course.Assignment, error) {
	ids := make([]int64, 0, len(courseIDs))
	for _, id := range courseIDs {
		ids = append(ids, int64(id))
	}
	var rows []assignmentRow
	err := sqlx.SelectContext(ctx, extContext(repo.db, exec), &rows,
		`SELECT id, course_id, title, description, due_date, display_date FROM assignment
		WHERE course_id = ANY($1) ORDER BY due_date NULLS LAST, id`,
		pq.Int64Array(ids),
	)
	if err != nil {
		return nil, wrapErr(err, "querying assignments")
	}
	assignments := make([]course.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}

func (repo courseRepository) DeleteAssignment(ctx context.Context, courseID, id int, exec ...core.DBExecutor) error {
	res, err := extContext(repo.db, exec).ExecContext(ctx, `DELETE FROM assignment WHERE id = $1 AND course_id = $2`, id, courseID)
	if err != nil {
		return wrapErr(err, "deleting assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrAssignmentNotFound
	}
	return nil
}

// Handouts

func (repo courseRepository) CreateHandout(ctx context.Context, h course.Handout, exec ...core.DBExecutor) (course.Handout, error) {
	err := sqlx.GetContext(ctx, extContext(repo.db, exec), &h.ID,
		`INSERT INTO handout (course_id, title, file, filename, content_type, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		h.CourseID, h.Title, h.File, h.Filename, h.ContentType, h.CreatedAt.UTC(),
	)
	if err != nil {
		return course.Handout{}, wrapErr(err, "inserting handout")
	}
	return h, nil
}

func (repo courseRepository) GetHandout(ctx context.Context, courseID, id int, exec ...core.DBExecutor) (course.Handout, error) {
	var row handoutRow
	err := sqlx.GetContext(ctx, extContext(repo.db, exec), &row,
		`SELECT id, course_id, title, file, filename, content_type, created_at FROM handout WHERE id = $1 AND course_id = $2`,
		id, courseID,
	)
	if err != nil {
		return course.Handout{}, trapNoRows(err, course.ErrHandoutNotFound, "getting handout")
	}
	return row.handout(), nil
}

func (repo courseRepository) QueryHandouts(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Handout, error) {
	var rows []handoutRow
	err := sqlx.SelectContext(ctx, extContext(repo.db, exec), &rows,
		`SELECT id, course_id, title, file, filename, content_type, created_at FROM handout WHERE course_id = $1 ORDER BY created_at, id`,
		courseID,
	)
	if err != nil {
		return nil, wrapErr(err, "querying handouts")
	}
	handouts := make([]course.Handout, 0, len(rows))
	for _, r := range rows {
		handouts = append(handouts, r.handout())
	}
	return handouts, nil
}

func (repo courseRepository) DeleteHandout(ctx context.Context, courseID, id int, exec ...core.DBExecutor) error {
	res, err := extContext(repo.db, exec).ExecContext(ctx, `DELETE FROM handout WHERE id = $1 AND course_id = $2`, id, courseID)
	if err != nil {
		return wrapErr(err, "deleting handout")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrHandoutNotFound
	}
	return nil
}

func (repo courseRepository) StoredFiles(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var keys []string
	err := sqlx.SelectContext(ctx, extContext(repo.db, exec), &keys,
		`SELECT source_file FROM course WHERE source_file IS NOT NULL UNION ALL SELECT file FROM handout`,
	)
	return keys, wrapErr(err, "querying stored files")
}
