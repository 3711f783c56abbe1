package core

import "slices"

// Table is a decoded sheet: a header row followed by data rows.
//
// Table values are immutable by convention. Operations that change a table
// return a new value in which only the changed rows are new slices; every
// other row shares its backing array with the input.
type Table struct {
	header Row
	data   []Row
	loaded bool
}

// NewTable builds a table from array-of-arrays rows. The first row is the
// header. Calling it with no rows returns the empty table.
func NewTable(rows ...Row) Table {
	if len(rows) == 0 {
		return Table{}
	}
	return Table{
		header: rows[0],
		data:   slices.Clone(rows[1:]),
		loaded: true,
	}
}

// TableFromRecords builds a table of text cells from string records.
func TableFromRecords(records [][]string) Table {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = RowOf(rec...)
	}
	return NewTable(rows...)
}

// IsEmpty reports whether no sheet has been loaded into the table.
func (t Table) IsEmpty() bool { return !t.loaded }

func (t Table) Header() Row { return t.header }

// Data returns the data rows. The returned slice is a copy; the rows are not.
func (t Table) Data() []Row { return slices.Clone(t.data) }

// DataLen is the number of data rows, excluding the header.
func (t Table) DataLen() int { return len(t.data) }

// Len counts header plus data rows.
func (t Table) Len() int {
	if !t.loaded {
		return 0
	}
	return len(t.data) + 1
}

// Width is the length of the longest row, header included.
func (t Table) Width() int {
	w := len(t.header)
	for _, r := range t.data {
		w = max(w, len(r))
	}
	return w
}

// Row returns data row i, 1-based.
func (t Table) Row(i int) (Row, error) {
	if err := t.checkRow(i); err != nil {
		return nil, err
	}
	return t.data[i-1], nil
}

// Rows returns header and data rows as one array-of-arrays.
func (t Table) Rows() []Row {
	if !t.loaded {
		return nil
	}
	out := make([]Row, 0, len(t.data)+1)
	out = append(out, t.header)
	return append(out, t.data...)
}

// Records is the string view of Rows.
func (t Table) Records() [][]string {
	rows := t.Rows()
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Strings()
	}
	return out
}

// Equal reports whether both tables hold equal cells in every row.
func (t Table) Equal(o Table) bool {
	return t.loaded == o.loaded &&
		t.header.Equal(o.header) &&
		slices.EqualFunc(t.data, o.data, Row.Equal)
}

func (t Table) checkRow(i int) error {
	if !t.loaded {
		return ErrEmptyTable
	}
	if i < 1 || i > len(t.data) {
		return &RowRangeError{Row: i, Rows: len(t.data)}
	}
	return nil
}

// withRow returns a copy of t whose data row i (1-based) is r.
func (t Table) withRow(i int, r Row) Table {
	data := slices.Clone(t.data)
	data[i-1] = r
	t.data = data
	return t
}

func (t Table) withHeader(h Row) Table {
	t.header = h
	return t
}
