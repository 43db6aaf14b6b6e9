package course

import (
	"fmt"
	"time"
)

type (
	Course struct {
		ID           int       `json:"id"`
		Title        string    `json:"title"`
		Code         string    `json:"code"`
		Term         string    `json:"term"`
		InstructorID int       `json:"instructor_id"` // 0: no instructor
		SourceFile   string    `json:"source_file"`   // storage key of the uploaded class list
		NumStudents  int       `json:"num_students"`  // populated by queries
		CreatedAt    time.Time `json:"created_at"`    // UTC
		UpdatedAt    time.Time `json:"updated_at"`    // UTC
	}

	Student struct {
		ID        int    `json:"id"`
		Number    string `json:"student_number"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		ClassYear string `json:"class_year"`
		Major     string `json:"major"`
	}

	Assignment struct {
		ID          int       `json:"id"`
		CourseID    int       `json:"course_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		DueDate     time.Time `json:"due_date"`
		DisplayDate time.Time `json:"display_date"`
	}

	Handout struct {
		ID          int       `json:"id"`
		CourseID    int       `json:"course_id"`
		Title       string    `json:"title"`
		File        string    `json:"file"` // storage key
		Filename    string    `json:"filename"`
		ContentType string    `json:"content_type"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// CourseAssignments groups assignments under their course.
	CourseAssignments struct {
		Course      Course
		Assignments []Assignment
	}
)

func (c Course) String() string {
	if c.Code == "" {
		return c.Title
	}
	return fmt.Sprintf("%s: %s", c.Code, c.Title)
}

func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// SortName is the "Last, First" form used on class lists.
func (s Student) SortName() string {
	if s.FirstName == "" || s.LastName == "" {
		return s.FullName()
	}
	return s.LastName + ", " + s.FirstName
}
