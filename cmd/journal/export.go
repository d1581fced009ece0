package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/internal/export"
	"github.com/amirk1998/secure-journal/internal/models"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries to JSON, CSV or PDF",
	Long: `Writes the entries in the selected range to a file in the export directory.
With --media the document and every decrypted attachment are bundled into a zip archive.
A .sha256 checksum is written next to each export.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		rangeFlag, _ := cmd.Flags().GetString("range")
		withMedia, _ := cmd.Flags().GetBool("media")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		preset, err := export.ParsePreset(rangeFlag)
		if err != nil {
			return err
		}
		req := export.Request{Preset: preset, Format: format, IncludeMedia: withMedia}

		// explicit dates override --range
		if req.Start, req.End, err = dayRange(cmd); err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, app *application) error {
			entries, err := app.journal.Search(ctx, models.Criteria{})
			if err != nil {
				return err
			}

			artifact, err := app.exporter.Export(ctx, entries, req)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d entries to %s\n", artifact.Entries, artifact.Path)
			fmt.Printf("SHA-256: %s\n", artifact.SHA256)
			return nil
		})
	},
}

var verifyExportCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Check an export against its checksum file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			if err := app.exporter.Verify(args[0]); err != nil {
				return err
			}
			fmt.Println("Checksum OK.")
			return nil
		})
	},
}

var cleanExportsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove exports older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			days := app.config.ExportRetentionDays
			if cmd.Flags().Changed("days") {
				days, _ = cmd.Flags().GetInt("days")
			}
			removed, err := app.exporter.CleanOld(days)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d exports older than %s.\n", removed, time.Duration(days)*24*time.Hour)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().String("format", string(export.FormatJSON), "json, csv or pdf")
	exportCmd.Flags().String("range", string(export.PresetAll), "all, last_7_days, last_30_days, last_90_days or this_year")
	exportCmd.Flags().String("from", "", "First day to include (YYYY-MM-DD)")
	exportCmd.Flags().String("to", "", "Last day to include (YYYY-MM-DD)")
	exportCmd.Flags().Bool("media", false, "Bundle attachments into a zip archive")

	cleanExportsCmd.Flags().Int("days", 0, "Retention in days (defaults to JOURNAL_EXPORT_RETENTION_DAYS)")

	exportCmd.AddCommand(verifyExportCmd)
	exportCmd.AddCommand(cleanExportsCmd)
}
