package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/sheetmark/internal/config"
	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// settings are the table options shared by every subcommand. Flags
// override the values loaded from the environment.
type settings struct {
	cfg     *config.Config
	policy  string
	quoting string
}

func main() {
	// A missing .env is fine here; the environment still applies.
	_ = godotenv.Load()

	s := &settings{}

	rootCmd := &cobra.Command{
		Use:   "sheetmark",
		Short: "Mark spreadsheet rows as used and export them to CSV",
		Long: `sheetmark reads the first sheet of an .xls, .xlsx or .csv file,
marks rows with a Used status and writes the table back out as CSV.

Defaults come from the same environment as the server
(ANNOTATION_POLICY, EXPORT_QUOTING, UPLOAD_MAX_FILE_SIZE, LOG_LEVEL).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

			if !cmd.Flags().Changed("policy") {
				s.policy = cfg.Table.AnnotationPolicy
			}
			if !cmd.Flags().Changed("quoting") {
				s.quoting = cfg.Table.ExportQuoting
			}
			s.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.policy, "policy", "shared", "Annotation policy: shared or append")
	rootCmd.PersistentFlags().StringVar(&s.quoting, "quoting", "rfc4180", "Export quoting: rfc4180 or legacy")

	rootCmd.AddCommand(
		newExportCmd(s),
		newBrowseCmd(s),
	)

	if err := rootCmd.Execute(); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, "Error:", core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func (s *settings) annotator() (core.Annotator, error) {
	p, err := core.ParsePolicy(s.policy)
	if err != nil {
		return nil, err
	}
	return core.NewAnnotator(p), nil
}

func (s *settings) exporter() (core.Exporter, error) {
	q, err := core.ParseQuoting(s.quoting)
	if err != nil {
		return core.Exporter{}, err
	}
	return core.Exporter{Quoting: q}, nil
}
