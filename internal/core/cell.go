package core

import (
	"slices"
	"strconv"
)

// CellKind identifies which variant a Cell holds.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	default:
		return "empty"
	}
}

// Cell is a single spreadsheet value: text, a number, or nothing.
// The zero value is an empty cell.
type Cell struct {
	kind CellKind
	text string
	num  float64
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: CellText, text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: CellNumber, num: f} }

// Empty returns an empty cell.
func Empty() Cell { return Cell{} }

func (c Cell) Kind() CellKind { return c.kind }

func (c Cell) IsEmpty() bool { return c.kind == CellEmpty }

// Float returns the numeric value and whether the cell is a number.
func (c Cell) Float() (float64, bool) { return c.num, c.kind == CellNumber }

// String renders the cell the way it appears in the table and in exports.
// Numbers use the shortest decimal form that round-trips (1, 2.5, 0.1).
func (c Cell) String() string {
	switch c.kind {
	case CellText:
		return c.text
	case CellNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal compares kind and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case CellText:
		return c.text == o.text
	case CellNumber:
		return c.num == o.num
	default:
		return true
	}
}

// Row is an ordered list of cells. Rows held by a Table are never modified in
// place; the helpers below always return a fresh slice.
type Row []Cell

// RowOf builds a row of text cells, mapping "" to Empty.
func RowOf(values ...string) Row {
	r := make(Row, len(values))
	for i, v := range values {
		if v != "" {
			r[i] = Text(v)
		}
	}
	return r
}

// Strings returns the rendered value of every cell.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// Index returns the position of the first cell equal to c, or -1.
func (r Row) Index(c Cell) int {
	return slices.IndexFunc(r, c.Equal)
}

// Append returns a copy of r with cells added at the end.
func (r Row) Append(cells ...Cell) Row {
	out := make(Row, len(r), len(r)+len(cells))
	copy(out, r)
	return append(out, cells...)
}

// Set returns a copy of r with position i set to c, padding with empty cells
// when i is past the end.
func (r Row) Set(i int, c Cell) Row {
	n := max(len(r), i+1)
	out := make(Row, n)
	copy(out, r)
	out[i] = c
	return out
}

// Remove returns a copy of r without position i.
func (r Row) Remove(i int) Row {
	out := make(Row, 0, len(r)-1)
	out = append(out, r[:i]...)
	return append(out, r[i+1:]...)
}

// Equal reports whether both rows hold equal cells.
func (r Row) Equal(o Row) bool {
	return slices.EqualFunc(r, o, Cell.Equal)
}

// trimTrailingEmpty drops empty cells from the end of r without copying.
func trimTrailingEmpty(r Row) Row {
	n := len(r)
	for n > 0 && r[n-1].IsEmpty() {
		n--
	}
	return r[:n]
}
