// Package sheet turns rows of loosely typed spreadsheet cells into
// canonical requirement rows.
package sheet

import (
	"strconv"
	"strings"
)

// CellKind is the dynamic type of a cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
)

// Cell is one typed spreadsheet value.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

// Row is one spreadsheet row in column order.
type Row []Cell

func Empty() Cell           { return Cell{} }
func String(s string) Cell  { return Cell{Kind: CellString, Str: s} }
func Number(f float64) Cell { return Cell{Kind: CellNumber, Num: f} }

// Strings builds a row of string cells; "" becomes an empty cell.
func Strings(vals ...string) Row {
	row := make(Row, len(vals))
	for i, v := range vals {
		if v == "" {
			row[i] = Empty()
			continue
		}
		row[i] = String(v)
	}
	return row
}

// Text returns the cell as trimmed text. Numbers use the shortest
// representation that round-trips.
func (c Cell) Text() string {
	switch c.Kind {
	case CellString:
		return strings.TrimSpace(c.Str)
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// IsBlank reports whether the cell holds nothing but whitespace.
func (c Cell) IsBlank() bool {
	return c.Text() == ""
}

// At returns the cell at column i, or an empty cell past the row's end.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Empty()
	}
	return r[i]
}
