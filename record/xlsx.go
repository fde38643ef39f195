package record

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// xlsxSource reads the first sheet of a spreadsheet workbook through
// excelize's streaming row iterator.
type xlsxSource struct {
	f      *excelize.File
	rows   *excelize.Rows
	header map[string]int
	name   string
	row    int
}

func openWorkbook(path, target string) (source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pkgerrors.NewParseError(path, 0, "cannot open workbook: "+err.Error())
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "workbook has no sheets")
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "cannot iterate sheet "+sheet+": "+err.Error())
	}

	if !rows.Next() {
		_ = rows.Close()
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "workbook sheet "+sheet+" is empty")
	}
	headerRow, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "cannot read header: "+err.Error())
	}
	header, err := indexHeader(path, headerRow, target)
	if err != nil {
		_ = rows.Close()
		_ = f.Close()
		return nil, err
	}

	return &xlsxSource{f: f, rows: rows, header: header, name: path}, nil
}

func (s *xlsxSource) next() (*CustomerRecord, error) {
	for s.rows.Next() {
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, pkgerrors.NewParseError(s.name, s.row+1, "unreadable row: "+err.Error())
		}
		if emptyRow(cols) {
			// Workbooks commonly carry trailing blank rows.
			continue
		}
		s.row++

		rec, err := fromRow(s.header, cols)
		if err != nil {
			return nil, &RowError{Row: s.row, CustomerID: cellValue(s.header, cols, IDField), Err: err}
		}
		return rec, nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, pkgerrors.NewParseError(s.name, s.row, "row iteration failed: "+err.Error())
	}
	return nil, io.EOF
}

func (s *xlsxSource) close() error {
	_ = s.rows.Close()
	return s.f.Close()
}

func emptyRow(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
