package core

import "fmt"

// Labels written by the annotators.
const (
	StatusLabel = "Status"
	UsedLabel   = "Used"
)

// Policy selects how the Used marker is laid out in the table.
type Policy string

const (
	// PolicyShared keeps a single Status column and writes Used into it.
	PolicyShared Policy = "shared"

	// PolicyAppend adds a Status header cell and a Used row cell on every
	// Add, so repeated adds widen the table.
	PolicyAppend Policy = "append"
)

// ParsePolicy accepts "shared" or "append". The empty string means shared.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyShared:
		return PolicyShared, nil
	case PolicyAppend:
		return PolicyAppend, nil
	}
	return "", fmt.Errorf("unknown annotation policy %q", s)
}

// Annotator marks and unmarks data rows. Row indices are 1-based over the
// data rows. Both mutators return changed=false together with the input
// table when the call does nothing.
type Annotator interface {
	Policy() Policy
	AddUsed(t Table, row int) (Table, bool, error)
	RemoveUsed(t Table, row int) (Table, bool, error)
	IsUsed(t Table, row int) bool
}

// NewAnnotator returns the annotator for p; unknown policies get shared.
func NewAnnotator(p Policy) Annotator {
	if p == PolicyAppend {
		return appendAnnotator{}
	}
	return sharedAnnotator{}
}

// Toggle removes the marker from a used row and adds it otherwise.
func Toggle(a Annotator, t Table, row int) (Table, bool, error) {
	if a.IsUsed(t, row) {
		return a.RemoveUsed(t, row)
	}
	return a.AddUsed(t, row)
}

var (
	usedCell   = Text(UsedLabel)
	statusCell = Text(StatusLabel)
)

type appendAnnotator struct{}

func (appendAnnotator) Policy() Policy { return PolicyAppend }

func (appendAnnotator) AddUsed(t Table, row int) (Table, bool, error) {
	r, err := t.Row(row)
	if err != nil {
		return t, false, err
	}
	return t.withHeader(t.header.Append(statusCell)).withRow(row, r.Append(usedCell)), true, nil
}

func (appendAnnotator) RemoveUsed(t Table, row int) (Table, bool, error) {
	r, err := t.Row(row)
	if err != nil {
		return t, false, err
	}
	i := r.Index(usedCell)
	if i < 0 {
		return t, false, nil
	}
	return t.withRow(row, r.Remove(i)), true, nil
}

func (appendAnnotator) IsUsed(t Table, row int) bool {
	r, err := t.Row(row)
	return err == nil && r.Index(usedCell) >= 0
}

type sharedAnnotator struct{}

func (sharedAnnotator) Policy() Policy { return PolicyShared }

func (sharedAnnotator) AddUsed(t Table, row int) (Table, bool, error) {
	r, err := t.Row(row)
	if err != nil {
		return t, false, err
	}

	col := markerColumn(t)
	if col < 0 {
		// New column goes past the widest row so no existing value is overwritten.
		col = t.Width()
		t = t.withHeader(t.header.Set(col, statusCell))
	} else if col < len(r) && r[col].Equal(usedCell) {
		return t, false, nil
	}
	return t.withRow(row, r.Set(col, usedCell)), true, nil
}

func (sharedAnnotator) RemoveUsed(t Table, row int) (Table, bool, error) {
	r, err := t.Row(row)
	if err != nil {
		return t, false, err
	}

	col := markerColumn(t)
	if col < 0 || col >= len(r) || !r[col].Equal(usedCell) {
		return t, false, nil
	}
	if col == len(r)-1 {
		// Drop the padding AddUsed put in front of the marker as well.
		return t.withRow(row, trimTrailingEmpty(r.Remove(col))), true, nil
	}
	return t.withRow(row, r.Set(col, Empty())), true, nil
}

func (sharedAnnotator) IsUsed(t Table, row int) bool {
	r, err := t.Row(row)
	if err != nil {
		return false
	}
	col := markerColumn(t)
	return col >= 0 && col < len(r) && r[col].Equal(usedCell)
}

// markerColumn is the first "Status" column holding nothing but Used
// markers and blanks, or -1. A "Status" column that came with the sheet and
// carries other values is user data and is never written to.
func markerColumn(t Table) int {
	for col, h := range t.header {
		if h.Equal(statusCell) && onlyMarkers(t.data, col) {
			return col
		}
	}
	return -1
}

func onlyMarkers(rows []Row, col int) bool {
	for _, r := range rows {
		if col < len(r) && !r[col].IsEmpty() && !r[col].Equal(usedCell) {
			return false
		}
	}
	return true
}
