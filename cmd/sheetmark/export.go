package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newExportCmd(s *settings) *cobra.Command {
	var output string
	var marks string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Mark rows as used and write the table as CSV",
		Long: `Decode the first sheet of file, add the Used marker to each row listed
in --mark and write the result as CSV.

Example: sheetmark export orders.xlsx --mark 1,3 -o export.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := parseMarks(marks)
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), s, args[0], rows, output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", core.ExportFileName, `Output file path ("-" for stdout)`)
	cmd.Flags().StringVar(&marks, "mark", "", "Comma-separated 1-based data rows to mark as used")

	return cmd
}

func runExport(ctx context.Context, s *settings, path string, marks []int, output string, stdout io.Writer) error {
	annotator, err := s.annotator()
	if err != nil {
		return err
	}
	exporter, err := s.exporter()
	if err != nil {
		return err
	}

	table, err := readTable(ctx, s, path)
	if err != nil {
		return err
	}

	for _, row := range marks {
		table, _, err = annotator.AddUsed(table, row)
		if err != nil {
			return fmt.Errorf("mark row %d: %w", row, err)
		}
	}

	if output == "-" {
		return exporter.WriteCSV(stdout, table)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := exporter.WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("export written", "path", output, "rows", table.DataLen(), "marked", len(marks))
	return nil
}

// readTable decodes the first sheet of path, applying the configured size
// limit and decode timeout.
func readTable(ctx context.Context, s *settings, path string) (core.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return core.Table{}, err
	}
	if limit := s.cfg.Upload.MaxFileSize; info.Size() > limit {
		return core.Table{}, fmt.Errorf("%s is %s, limit %s: %w", path,
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(limit)), core.ErrFileTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.Table{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()
	return core.NewDecoder().Decode(ctx, filepath.Base(path), data)
}

// parseMarks parses "1,3, 5" into row numbers. Duplicates are kept so the
// append policy can widen a row more than once.
func parseMarks(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	rows := make([]int, 0, len(parts))
	for _, p := range parts {
		row, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || row < 1 {
			return nil, fmt.Errorf("invalid row %q in --mark", p)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
