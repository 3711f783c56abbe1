// Package application is the terminal browser for a single spreadsheet: it
// shows the first sheet as a table, toggles the Used marker per row and
// writes the result to CSV.
package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxColumnWidth = 32
	minGridHeight  = 3
	// chromeHeight is the space taken by title, border, status and help.
	chromeHeight = 9
)

// Options configures a browser.
type Options struct {
	Path       string
	Decoder    core.Decoder
	Annotator  core.Annotator
	Exporter   core.Exporter
	ExportPath string
	Timeout    time.Duration
}

type Model struct {
	opts     Options
	menu     Menu
	grid     table.Model
	table    core.Table
	fileName string
	status   string
	err      error
	loading  bool
}

func New(opts Options) Model {
	if opts.ExportPath == "" {
		opts.ExportPath = core.ExportFileName
	}
	if opts.Annotator == nil {
		opts.Annotator = core.NewAnnotator(core.PolicyShared)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	grid := table.New(
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(tableStyles()),
	)

	return Model{
		opts:    opts,
		menu:    buildMenu(),
		grid:    grid,
		loading: opts.Path != "",
	}
}

// Run starts the browser on the alternate screen and blocks until it quits.
func Run(opts Options) error {
	_, err := tea.NewProgram(New(opts), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	if m.opts.Path == "" {
		return nil
	}
	return LoadFile(m.opts.Decoder, m.opts.Path, m.opts.Timeout)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.grid.SetHeight(max(msg.Height-chromeHeight, minGridHeight))
		m.grid.SetWidth(max(msg.Width-2, 0))
		return m, nil

	case LoadedMsg:
		m.loading = false
		m.table = msg.Table
		m.fileName = msg.Name
		m.err = nil
		m.status = fmt.Sprintf("Loaded %d rows", msg.Table.DataLen())
		m.refresh()
		return m, nil

	case DoneMsg:
		m.err = nil
		m.status = string(msg)
		return m, nil

	case ErrMsg:
		m.loading = false
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		if action := m.menu.Match(msg); action != nil {
			cmd := action(&m)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.grid, cmd = m.grid.Update(msg)
	return m, cmd
}

// Table is the current, possibly annotated, table.
func (m Model) Table() core.Table { return m.table }

// Selected is the 1-based data row under the cursor, or 0 with no rows.
func (m Model) Selected() int {
	if m.table.DataLen() == 0 {
		return 0
	}
	return m.grid.Cursor() + 1
}

func (m *Model) toggleSelected() tea.Cmd {
	row := m.Selected()
	if row == 0 {
		return nil
	}
	next, changed, err := core.Toggle(m.opts.Annotator, m.table, row)
	if err != nil {
		m.err = err
		return nil
	}
	m.err = nil
	if !changed {
		m.status = fmt.Sprintf("Row %d unchanged", row)
		return nil
	}

	m.table = next
	m.refresh()
	if m.opts.Annotator.IsUsed(next, row) {
		m.status = fmt.Sprintf("Row %d marked used", row)
	} else {
		m.status = fmt.Sprintf("Row %d unmarked", row)
	}
	return nil
}

func (m *Model) export() tea.Cmd {
	if m.table.IsEmpty() {
		m.err = core.ErrEmptyTable
		return nil
	}
	return ExportFile(m.opts.Exporter, m.table, m.opts.ExportPath)
}

// refresh rebuilds the grid from m.table, keeping the cursor. Rows are
// cleared first so the grid never renders a row wider than its columns.
func (m *Model) refresh() {
	width := m.table.Width()
	data := m.table.Data()

	header := padTo(m.table.Header().Strings(), width)
	rows := make([]table.Row, len(data))
	for i, r := range data {
		rows[i] = append(table.Row{strconv.Itoa(i + 1)}, padTo(r.Strings(), width)...)
	}

	cols := make([]table.Column, 0, width+1)
	cols = append(cols, table.Column{Title: "#", Width: columnWidth(rows, 0, "#")})
	for c, title := range header {
		cols = append(cols, table.Column{Title: title, Width: columnWidth(rows, c+1, title)})
	}

	cursor := m.grid.Cursor()
	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
	m.grid.SetCursor(cursor)
}

func padTo(cells []string, width int) []string {
	for len(cells) < width {
		cells = append(cells, "")
	}
	return cells
}

func columnWidth(rows []table.Row, col int, title string) int {
	w := lipgloss.Width(title)
	for _, r := range rows {
		w = max(w, lipgloss.Width(r[col]))
	}
	return min(max(w, 1), maxColumnWidth)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("sheetmark"))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(SubtitleStyle.Render("Loading " + m.opts.Path + "..."))
		b.WriteString("\n")
	case m.table.IsEmpty():
		b.WriteString(SubtitleStyle.Render("No table loaded"))
		b.WriteString("\n")
	default:
		b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s · %d rows · %s policy",
			m.fileName, m.table.DataLen(), m.opts.Annotator.Policy())))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(m.grid.View()))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + core.FormatUserError(m.err)))
	} else if m.status != "" {
		b.WriteString(SuccessStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(m.menu.Help()))
	b.WriteString("\n")

	return b.String()
}
