package sheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned by ReadFile for extensions it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// ReadFile reads path as a workbook (.xlsx, .xlsm) or a CSV file, chosen by
// extension.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, "")
	case ".csv", ".txt":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadXLSX reads one sheet of a workbook. An empty sheet name selects the
// first sheet. Numeric cells become CellNumber, text cells CellString.
func ReadXLSX(r io.Reader, sheet string) ([]Row, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rows := make([]Row, len(raw))
	for ri, values := range raw {
		row := make(Row, len(values))
		for ci, v := range values {
			if strings.TrimSpace(v) == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, err
			}
			typ, err := wb.GetCellType(sheet, name)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", name, err)
			}
			row[ci] = xlsxCell(typ, v)
		}
		rows[ri] = row
	}
	return rows, nil
}

func xlsxCell(typ excelize.CellType, v string) Cell {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate, excelize.CellTypeFormula:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return Number(f)
		}
	}
	return String(v)
}

// ReadCSV reads comma-separated rows. Every non-blank field is a string
// cell; the normalizer converts numeric columns itself. A leading UTF-8
// byte order mark is dropped.
func ReadCSV(r io.Reader) ([]Row, error) {
	br := stripUTF8BOM(bufio.NewReader(r))
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, Strings(rec...))
	}
	return rows, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}
