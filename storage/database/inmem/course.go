package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func withCount(t tables, c course.Course) course.Course {
	c.NumStudents = len(t.enrollments[c.ID])
	return c
}

// Courses

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.write(exec, func(t tables) {
		c.ID = t.nextID("course")
		c.NumStudents = 0
		t.courses[c.ID] = c
	})
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	var c course.Course
	var ok bool
	repo.db.read(exec, func(t tables) {
		c, ok = t.courses[filter.ID]
		if ok && filter.InstructorID != 0 && c.InstructorID != filter.InstructorID {
			ok = false
		}
		if ok {
			c = withCount(t, c)
		}
	})
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	repo.db.read(exec, func(t tables) {
		for _, c := range t.courses {
			if filter.InstructorID == 0 || c.InstructorID == filter.InstructorID {
				courses = append(courses, withCount(t, c))
			}
		}
	})
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	var ok bool
	repo.db.write(exec, func(t tables) {
		if _, ok = t.courses[c.ID]; ok {
			t.courses[c.ID] = c
		}
	})
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.write(exec, func(t tables) {
		deleteCourse(t, id)
	})
	return nil
}

// deleteCourse cascades to assignments, handouts & enrollments.
func deleteCourse(t tables, id int) {
	delete(t.courses, id)
	delete(t.enrollments, id)
	for aid, a := range t.assignments {
		if a.CourseID == id {
			delete(t.assignments, aid)
		}
	}
	for hid, h := range t.handouts {
		if h.CourseID == id {
			delete(t.handouts, hid)
		}
	}
}

// Students

func (repo *courseRepository) UpsertStudent(_ context.Context, s course.Student, exec ...core.DBExecutor) (course.Student, error) {
	repo.db.write(exec, func(t tables) {
		s.ID = 0
		for _, existing := range sortedStudents(t) {
			if s.Number != "" && existing.Number == s.Number {
				s.ID = existing.ID
				break
			}
			if s.Number == "" && s.Email != "" && strings.EqualFold(existing.Email, s.Email) {
				s.ID = existing.ID
				if existing.Number != "" {
					s.Number = existing.Number
				}
				break
			}
		}
		if s.ID == 0 {
			s.ID = t.nextID("student")
		}
		t.students[s.ID] = s
	})
	return s, nil
}

func (repo *courseRepository) EnrollStudents(_ context.Context, courseID int, studentIDs []int, exec ...core.DBExecutor) error {
	repo.db.write(exec, func(t tables) {
		enrolled, ok := t.enrollments[courseID]
		if !ok {
			enrolled = make(map[int]bool, len(studentIDs))
			t.enrollments[courseID] = enrolled
		}
		for _, id := range studentIDs {
			enrolled[id] = true
		}
	})
	return nil
}

func (repo *courseRepository) QueryStudents(_ context.Context, courseID int, exec ...core.DBExecutor) ([]course.Student, error) {
	students := make([]course.Student, 0)
	repo.db.read(exec, func(t tables) {
		for id := range t.enrollments[courseID] {
			if s, ok := t.students[id]; ok {
				students = append(students, s)
			}
		}
	})
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return students, nil
}

func sortedStudents(t tables) []course.Student {
	students := make([]course.Student, 0, len(t.students))
	for _, s := range t.students {
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students
}

// Assignments

func (repo *courseRepository) CreateAssignment(_ context.Context, a course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	var ok bool
	repo.db.write(exec, func(t tables) {
		if _, ok = t.courses[a.CourseID]; ok {
			a.ID = t.nextID("assignment")
			t.assignments[a.ID] = a
		}
	})
	if !ok {
		return course.Assignment{}, course.ErrNotFound
	}
	return a, nil
}

func (repo *courseRepository) QueryAssignments(_ context.Context, courseIDs []int, exec ...core.DBExecutor) ([]course.Assignment, error) {
	wanted := make(map[int]bool, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = true
	}

	assignments := make([]course.Assignment, 0)
	repo.db.read(exec, func(t tables) {
		for _, a := range t.assignments {
			if wanted[a.CourseID] {
				assignments = append(assignments, a)
			}
		}
	})
	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
	return assignments, nil
}

func (repo *courseRepository) DeleteAssignment(_ context.Context, courseID, id int, exec ...core.DBExecutor) error {
	var ok bool
	repo.db.write(exec, func(t tables) {
		var a course.Assignment
		if a, ok = t.assignments[id]; ok && a.CourseID == courseID {
			delete(t.assignments, id)
		} else {
			ok = false
		}
	})
	if !ok {
		return course.ErrAssignmentNotFound
	}
	return nil
}

// Handouts

func (repo *courseRepository) CreateHandout(_ context.Context, h course.Handout, exec ...core.DBExecutor) (course.Handout, error) {
	var ok bool
	repo.db.write(exec, func(t tables) {
		if _, ok = t.courses[h.CourseID]; ok {
			h.ID = t.nextID("handout")
			t.handouts[h.ID] = h
		}
	})
	if !ok {
		return course.Handout{}, course.ErrNotFound
	}
	return h, nil
}

func (repo *courseRepository) GetHandout(_ context.Context, courseID, id int, exec ...core.DBExecutor) (course.Handout, error) {
	var h course.Handout
	var ok bool
	repo.db.read(exec, func(t tables) {
		h, ok = t.handouts[id]
	})
	if !ok || h.CourseID != courseID {
		return course.Handout{}, course.ErrHandoutNotFound
	}
	return h, nil
}

func (repo *courseRepository) QueryHandouts(_ context.Context, courseID int, exec ...core.DBExecutor) ([]course.Handout, error) {
	handouts := make([]course.Handout, 0)
	repo.db.read(exec, func(t tables) {
		for _, h := range t.handouts {
			if h.CourseID == courseID {
				handouts = append(handouts, h)
			}
		}
	})
	sort.Slice(handouts, func(i, j int) bool { return handouts[i].ID < handouts[j].ID })
	return handouts, nil
}

func (repo *courseRepository) DeleteHandout(_ context.Context, courseID, id int, exec ...core.DBExecutor) error {
	var ok bool
	repo.db.write(exec, func(t tables) {
		var h course.Handout
		if h, ok = t.handouts[id]; ok && h.CourseID == courseID {
			delete(t.handouts, id)
		} else {
			ok = false
		}
	})
	if !ok {
		return course.ErrHandoutNotFound
	}
	return nil
}

func (repo *courseRepository) StoredFiles(_ context.Context, exec ...core.DBExecutor) ([]string, error) {
	var keys []string
	repo.db.read(exec, func(t tables) {
		for _, c := range t.courses {
			if c.SourceFile != "" {
				keys = append(keys, c.SourceFile)
			}
		}
		for _, h := range t.handouts {
			keys = append(keys, h.File)
		}
	})
	sort.Strings(keys)
	return keys, nil
}
