package roster

import (
	"io"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
)

// readXLS reads the first sheet of a BIFF workbook. Rows without cells come back nil.
func readXLS(r io.ReadSeeker) (grid [][]string, err error) {
	// the decoder panics on some malformed workbooks
	defer func() {
		if rec := recover(); rec != nil {
			grid, err = nil, errors.Errorf("reading xls workbook: %v", rec)
		}
	}()

	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "opening xls workbook")
	}
	if wb == nil {
		return nil, ErrNoRoster
	}
	sheet := wb.GetSheet(0)
	if sheet == nil || sheet.MaxRow == 0 {
		return nil, ErrNoRoster
	}

	grid = wb.ReadAllCells(int(sheet.MaxRow) + 1)
	for _, row := range grid {
		for j := range row {
			row[j] = normalize(row[j])
		}
	}
	return grid, nil
}
