package main

import (
	"github.com/JonMunkholm/sheetmark/internal/application"
	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/spf13/cobra"
)

func newBrowseCmd(s *settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "browse [file]",
		Short: "Browse the first sheet and toggle Used interactively",
		Long: `Open file in a terminal table. Arrow keys move, u toggles the Used
marker on the selected row, e writes the table to --output and q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			annotator, err := s.annotator()
			if err != nil {
				return err
			}
			exporter, err := s.exporter()
			if err != nil {
				return err
			}
			return application.Run(application.Options{
				Path:       args[0],
				Decoder:    core.NewDecoder(),
				Annotator:  annotator,
				Exporter:   exporter,
				ExportPath: output,
				Timeout:    s.cfg.Upload.Timeout,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", core.ExportFileName, "Export file path")

	return cmd
}
