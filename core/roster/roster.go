// Package roster reads registrar class list exports into a Roster.
//
// Two formats are accepted: the HTML table the registrar serves with an .xls
// extension, and genuine BIFF (.xls) workbooks.
package roster

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

var (
	ErrEmptyFile = errors.New("the submitted file is empty")
	ErrNoRoster  = errors.New("no student roster was found in the file")

	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

type (
	Student struct {
		Number    string
		FirstName string
		LastName  string
		Email     string
		ClassYear string
		Major     string
	}

	Roster struct {
		Code     string
		Title    string
		Term     string
		Students []Student
	}
)

// Parse reads a class list. filename is only used for the course code & term fallbacks.
func Parse(filename string, r io.ReadSeeker) (Roster, error) {
	head := make([]byte, len(ole2Magic))
	n, err := io.ReadFull(r, head)
	if n == 0 {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return Roster{}, ErrEmptyFile
		}
		return Roster{}, errors.Wrap(err, "reading file header")
	}
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return Roster{}, errors.Wrap(err, "rewinding file")
	}

	var grid [][]string
	if bytes.Equal(head[:n], ole2Magic) {
		grid, err = readXLS(r)
	} else {
		grid, err = readHTML(r)
	}
	if err != nil {
		return Roster{}, err
	}
	return interpret(grid, filename)
}

var (
	codeLabels  = map[string]bool{"course": true, "course code": true, "section": true}
	titleLabels = map[string]bool{"title": true, "course title": true}
	termLabels  = map[string]bool{"term": true}
)

const (
	colNumber = iota
	colName
	colFirstName
	colLastName
	colEmail
	colClassYear
	colMajor
)

var headerCols = map[string]int{
	"id":             colNumber,
	"student id":     colNumber,
	"student number": colNumber,
	"name":           colName,
	"student name":   colName,
	"first name":     colFirstName,
	"last name":      colLastName,
	"email":          colEmail,
	"e-mail":         colEmail,
	"class":          colClassYear,
	"year":           colClassYear,
	"class year":     colClassYear,
	"major":          colMajor,
}

func interpret(grid [][]string, filename string) (Roster, error) {
	var rst Roster

	header, cols := -1, map[int]int(nil)
	for i, row := range grid {
		if cols = headerColumns(row); cols != nil {
			header = i
			break
		}
		readLabels(row, &rst)
	}
	if header < 0 {
		return Roster{}, ErrNoRoster
	}

	seen := make(map[string]bool)
	for _, row := range grid[header+1:] {
		st, ok := readStudent(row, cols)
		if !ok {
			continue
		}
		key := strings.ToLower(st.Number)
		if key == "" {
			key = strings.ToLower(st.Email)
		}
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		rst.Students = append(rst.Students, st)
	}

	code, term := fromFilename(filename)
	if rst.Code == "" {
		rst.Code = code
	}
	if rst.Term == "" {
		rst.Term = term
	}
	if rst.Title == "" {
		rst.Code, rst.Title = splitCode(rst.Code)
	}
	if rst.Title == "" {
		rst.Title = rst.Code
	}
	return rst, nil
}

// splitCode splits "CS 260 01 Introduction to Computing" into the leading
// "SUBJ NNN [SS]" code and the title that follows it.
func splitCode(s string) (code, title string) {
	tokens := strings.Fields(s)
	if len(tokens) < 3 || !isLetters(tokens[0]) || !startsWithDigit(tokens[1]) {
		return s, ""
	}
	n := 2
	if isSection(tokens[2]) {
		n = 3
	}
	return strings.Join(tokens[:n], " "), strings.Join(tokens[n:], " ")
}

// isSection reports whether s looks like a section number: "01", "2", "L1".
func isSection(s string) bool {
	if len(s) > 3 {
		return false
	}
	digit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			return false
		}
	}
	return digit
}

// readLabels picks course metadata from "Label:" cells. The value is the next non-empty cell,
// or the remainder of the cell for "Label: value".
func readLabels(row []string, rst *Roster) {
	for i, cell := range row {
		idx := strings.Index(cell, ":")
		if idx <= 0 {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(cell[:idx]))
		value := strings.TrimSpace(cell[idx+1:])
		if value == "" {
			for _, next := range row[i+1:] {
				if next != "" {
					value = next
					break
				}
			}
		}
		if value == "" {
			continue
		}
		switch {
		case codeLabels[label] && rst.Code == "":
			rst.Code = value
		case titleLabels[label] && rst.Title == "":
			rst.Title = value
		case termLabels[label] && rst.Term == "":
			rst.Term = value
		}
	}
}

// headerColumns returns {column index: column kind} if row is the roster header.
func headerColumns(row []string) map[int]int {
	cols := make(map[int]int)
	have := make(map[int]bool)
	for i, cell := range row {
		kind, ok := headerCols[strings.ToLower(strings.TrimSuffix(cell, ":"))]
		if !ok || have[kind] {
			continue
		}
		cols[i] = kind
		have[kind] = true
	}
	if have[colName] || (have[colFirstName] && have[colLastName]) {
		return cols
	}
	return nil
}

func readStudent(row []string, cols map[int]int) (Student, bool) {
	var st Student
	var name string
	for i, kind := range cols {
		if i >= len(row) {
			continue
		}
		val := row[i]
		switch kind {
		case colNumber:
			st.Number = val
		case colName:
			name = val
		case colFirstName:
			st.FirstName = val
		case colLastName:
			st.LastName = val
		case colEmail:
			st.Email = strings.ToLower(val)
		case colClassYear:
			st.ClassYear = val
		case colMajor:
			st.Major = val
		}
	}
	if name != "" && st.FirstName == "" && st.LastName == "" {
		st.FirstName, st.LastName = SplitName(name)
	}
	if st.FirstName == "" && st.LastName == "" {
		return Student{}, false
	}
	return st, true
}

// SplitName splits "Last, First" or "First Last" into first & last names.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if idx := strings.Index(name, ","); idx >= 0 {
		return strings.TrimSpace(name[idx+1:]), strings.TrimSpace(name[:idx])
	}
	if idx := strings.LastIndex(name, " "); idx >= 0 {
		return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+1:])
	}
	return name, ""
}

// fromFilename guesses code & term from names like "CS_220_May.xls".
func fromFilename(filename string) (code, term string) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return "", ""
	}
	if len(tokens) >= 2 && isLetters(tokens[0]) && startsWithDigit(tokens[1]) {
		return strings.ToUpper(tokens[0]) + " " + tokens[1], strings.Join(tokens[2:], " ")
	}
	return strings.Join(tokens, " "), ""
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// normalize collapses whitespace (nbsp included) and trims the cell.
func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
