package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/sheetmark/internal/core"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// DoneMsg reports a finished command to the status line.
type DoneMsg string

// ErrMsg reports a failed command to the status line.
type ErrMsg struct{ Err error }

// LoadedMsg carries a freshly decoded table.
type LoadedMsg struct {
	Name  string
	Table core.Table
}

// LoadFile decodes path with decoder, giving up after timeout.
func LoadFile(decoder core.Decoder, path string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		data, err := os.ReadFile(path)
		if err != nil {
			return ErrMsg{Err: err}
		}
		name := filepath.Base(path)
		table, err := decoder.Decode(ctx, name, data)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrMsg{Err: fmt.Errorf("decode timed out after %v", timeout)}
			}
			return ErrMsg{Err: err}
		}
		return LoadedMsg{Name: name, Table: table}
	}
}

// ExportFile writes t to path as CSV.
func ExportFile(exporter core.Exporter, t core.Table, path string) tea.Cmd {
	return func() tea.Msg {
		var buf bytes.Buffer
		if err := exporter.WriteCSV(&buf, t); err != nil {
			return ErrMsg{Err: err}
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return ErrMsg{Err: err}
		}
		return DoneMsg(fmt.Sprintf("Wrote %s (%s)", path, humanize.Bytes(uint64(buf.Len()))))
	}
}
