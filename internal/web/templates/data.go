// Package templates holds the templ components rendered by the web server.
// The *_templ.go files are generated from the .templ sources; run
// `templ generate` after editing them.
package templates

//go:generate templ generate

import "fmt"

// PageData is everything the index page shows.
type PageData struct {
	Table TableData
	// Alert is rendered above the drop zone when set.
	Alert *AlertData
}

// AlertData is a user-facing error.
type AlertData struct {
	Message string
	Action  string
	Code    string
}

// TableData is the rendered projection of a session's table.
type TableData struct {
	FileName string
	Version  int
	Header   []string
	Rows     []RowData
	// Width is the widest row, header included. Shorter rows are padded so
	// the action column lines up.
	Width int
}

// RowData is one data row. Index is the 1-based row number used in the
// row action URLs.
type RowData struct {
	Index int
	Cells []string
	Used  bool
}

// HeaderCells is the header padded to Width.
func (d TableData) HeaderCells() []string {
	return padCells(d.Header, d.Width)
}

// CellsOf is r's cells padded to Width.
func (d TableData) CellsOf(r RowData) []string {
	return padCells(r.Cells, d.Width)
}

// ActionURL is where the row's toggle form posts.
func (r RowData) ActionURL() string {
	if r.Used {
		return fmt.Sprintf("/rows/%d/used/remove", r.Index)
	}
	return fmt.Sprintf("/rows/%d/used", r.Index)
}

func padCells(cells []string, width int) []string {
	out := make([]string, max(width, len(cells)))
	copy(out, cells)
	return out[:max(width, 0)]
}
