package roster

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, name string) (Roster, error) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return Parse(name, bytes.NewReader(data))
}

func TestParse_labelsAndRoster(t *testing.T) {
	rst, err := parseFixture(t, "CS_260.xls")
	require.NoError(t, err)

	assert.Equal(t, "CS 260 01", rst.Code)
	assert.Equal(t, "Data Structures", rst.Title)
	assert.Equal(t, "Fall 2019", rst.Term)
	assert.Equal(t, []Student{
		{Number: "1001", FirstName: "Jane", LastName: "Doe", Email: "jane.doe@wartburg.edu", ClassYear: "SO", Major: "Computer Science"},
		{Number: "1002", FirstName: "John", LastName: "Smith", Email: "john.smith@wartburg.edu", ClassYear: "JR", Major: "Mathematics"},
		{Number: "1003", FirstName: "Martin", LastName: "Van Buren", Email: "martin.vanburen@wartburg.edu", ClassYear: "SR", Major: "History"},
	}, rst.Students)
}

func TestParse_biffWorkbook(t *testing.T) {
	rst, err := parseFixture(t, "HIST_101.xls")
	require.NoError(t, err)

	assert.Equal(t, "HIST 101 02", rst.Code)
	assert.Equal(t, "World History", rst.Title)
	assert.Equal(t, "Spring 2020", rst.Term)
	assert.Equal(t, []Student{
		{Number: "2001", FirstName: "Grace", LastName: "Hopper", Email: "grace.hopper@wartburg.edu", ClassYear: "SR", Major: "Mathematics"},
		{Number: "2002", FirstName: "Alan", LastName: "Turing", Email: "alan.turing@wartburg.edu", ClassYear: "JR", Major: "Computer Science"},
		{Number: "2003", FirstName: "Kurt", LastName: "Gödel", Email: "kurt.goedel@wartburg.edu", ClassYear: "SO", Major: "Philosophy"},
	}, rst.Students)
}

func TestParse_brokenWorkbooks(t *testing.T) {
	whole, err := os.ReadFile(filepath.Join("testdata", "HIST_101.xls"))
	require.NoError(t, err)
	corrupt, err := os.ReadFile(filepath.Join("testdata", "corrupt.xls"))
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := Parse("HIST_101.xls", bytes.NewReader(whole[:512]))
		assert.Equal(t, ErrNoRoster, err)
	})
	t.Run("shared string out of range", func(t *testing.T) {
		_, err := Parse("corrupt.xls", bytes.NewReader(corrupt))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading xls workbook")
	})
}

func TestParse_codeWithTitle(t *testing.T) {
	html := `<table>
<tr><td>Course: CS 260 01 Introduction to Computing</td><td>Term:</td><td>Fall 2019</td></tr>
<tr><th>Name</th><th>Email</th></tr>
<tr><td>Doe, Jane</td><td>jane.doe@wartburg.edu</td></tr>
</table>`
	rst, err := Parse("upload.xls", bytes.NewReader([]byte(html)))
	require.NoError(t, err)
	assert.Equal(t, "CS 260 01", rst.Code)
	assert.Equal(t, "Introduction to Computing", rst.Title)
	assert.Equal(t, "Fall 2019", rst.Term)
	require.Len(t, rst.Students, 1)
}

func TestParse_filenameFallbacks(t *testing.T) {
	rst, err := parseFixture(t, "CS_220_May.xls")
	require.NoError(t, err)

	assert.Equal(t, "CS 220", rst.Code)
	assert.Equal(t, "CS 220", rst.Title)
	assert.Equal(t, "May", rst.Term)
	require.Len(t, rst.Students, 2)
	assert.Equal(t, Student{FirstName: "Ada", LastName: "Lovelace", Email: "ada@wartburg.edu"}, rst.Students[0])
}

func TestParse_errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "empty file", content: "", wantErr: ErrEmptyFile},
		{name: "no table", content: "<html><body><p>Nothing here</p></body></html>", wantErr: ErrNoRoster},
		{name: "table without header", content: "<table><tr><td>Course:</td><td>CS 101</td></tr></table>", wantErr: ErrNoRoster},
		{name: "plain text", content: "just some text", wantErr: ErrNoRoster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("upload.xls", bytes.NewReader([]byte(tt.content)))
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestParse_headerOnly(t *testing.T) {
	rst, err := Parse("MATH 101.html", bytes.NewReader([]byte("<table><tr><th>Student Name</th></tr></table>")))
	require.NoError(t, err)
	assert.Equal(t, "MATH 101", rst.Code)
	assert.Equal(t, "", rst.Term)
	assert.Empty(t, rst.Students)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, in, wantFirst, wantLast string
	}{
		{name: "last, first", in: "Doe, Jane", wantFirst: "Jane", wantLast: "Doe"},
		{name: "last, first middle", in: "Doe, Jane Q", wantFirst: "Jane Q", wantLast: "Doe"},
		{name: "first last", in: "Jane Doe", wantFirst: "Jane", wantLast: "Doe"},
		{name: "single word", in: "Cher", wantFirst: "Cher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := SplitName(tt.in)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func Test_splitCode(t *testing.T) {
	tests := []struct {
		in, wantCode, wantTitle string
	}{
		{in: "CS 260 01 Introduction to Computing", wantCode: "CS 260 01", wantTitle: "Introduction to Computing"},
		{in: "CS 260 Data Structures", wantCode: "CS 260", wantTitle: "Data Structures"},
		{in: "BIO 151 L1 Lab", wantCode: "BIO 151 L1", wantTitle: "Lab"},
		{in: "CS 260 01", wantCode: "CS 260 01"},
		{in: "CS 260", wantCode: "CS 260"},
		{in: "Senior Seminar", wantCode: "Senior Seminar"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			code, title := splitCode(tt.in)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantTitle, title)
		})
	}
}

func Test_fromFilename(t *testing.T) {
	tests := []struct {
		in, wantCode, wantTerm string
	}{
		{in: "CS_220_May.xls", wantCode: "CS 220", wantTerm: "May"},
		{in: "/tmp/uploads/cs-260.xls", wantCode: "CS 260"},
		{in: "roster.xls", wantCode: "roster"},
		{in: "IS_310_Fall_2019.htm", wantCode: "IS 310", wantTerm: "Fall 2019"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			code, term := fromFilename(tt.in)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantTerm, term)
		})
	}
}
