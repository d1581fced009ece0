package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/internal/notifylog"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the journal database",
	Long:  `Provides commands for inspecting and upgrading the encrypted journal database schema.`,
}

var dbUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the database schema to the latest version",
	Long: `Opens the database at JOURNAL_DB_PATH and applies every pending schema migration.
A database written by a newer build is refused rather than modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			current, err := app.migrator.Current(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database at %s is at schema version %d.\n", app.config.DBPath, current)
			return nil
		})
	},
}

var dbVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the schema version of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			current, err := app.migrator.Current(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("current: %d\nlatest:  %d\n", current, app.migrator.Latest())
			return nil
		})
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Inspect the reminder delivery log",
}

var notifyLogCmd = &cobra.Command{
	Use:   "log [title] [message]",
	Short: "Append a delivery record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		return withApp(cmd, func(ctx context.Context, app *application) error {
			return app.notify.LogEvent(ctx, args[0], args[1], models.NotificationStatus(status))
		})
	},
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivery records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		filters := notifylog.QueryFilters{
			Status: models.NotificationStatus(strings.ToUpper(status)),
			Limit:  limit,
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			records, err := app.notify.Query(ctx, filters)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No notifications found.")
				return nil
			}
			for _, n := range records {
				fmt.Printf("%s | %s | %s | %s\n",
					n.CreatedAt.Local().Format(time.RFC3339), n.Status, n.Title, n.Message)
			}
			return nil
		})
	},
}

var notifyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete delivery records older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			retention := time.Duration(app.config.NotificationRetentionDays) * 24 * time.Hour
			removed, err := app.notify.Prune(ctx, retention)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d notification records.\n", removed)
			return nil
		})
	},
}

var notifyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report repeated delivery failures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetDuration("window")
		threshold, _ := cmd.Flags().GetInt("threshold")
		return withApp(cmd, func(ctx context.Context, app *application) error {
			report, err := notifylog.NewMonitor(app.notify, window, threshold).DetectFailedDeliveries(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("last %s: %d records, %d delivered, %d failed\n",
				report.Window, report.Total, report.Delivered, report.Failed)
			if report.Alert {
				fmt.Println("ALERT: reminders are failing to deliver")
			}
			return nil
		})
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage stored attachments",
}

var reclaimMediaCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Delete attachments that no entry references",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		return withApp(cmd, func(ctx context.Context, app *application) error {
			n, err := app.vault.ReclaimOrphans(ctx, olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("Reclaimed %d attachments from %s.\n", n, app.vault.Dir())
			return nil
		})
	},
}

func init() {
	dbCmd.AddCommand(dbUpgradeCmd)
	dbCmd.AddCommand(dbVersionCmd)

	notifyLogCmd.Flags().String("status", string(models.NotificationDelivered), "SCHEDULED, DELIVERED or FAILED")
	notifyListCmd.Flags().String("status", "", "Only records with this status")
	notifyListCmd.Flags().Int("limit", 0, "Maximum number of records (default 100)")
	notifyCheckCmd.Flags().Duration("window", 24*time.Hour, "How far back to look")
	notifyCheckCmd.Flags().Int("threshold", 5, "Failures that raise an alert")

	notifyCmd.AddCommand(notifyLogCmd)
	notifyCmd.AddCommand(notifyListCmd)
	notifyCmd.AddCommand(notifyPruneCmd)
	notifyCmd.AddCommand(notifyCheckCmd)

	reclaimMediaCmd.Flags().Duration("older-than", 24*time.Hour, "Keep unlinked attachments newer than this")
	mediaCmd.AddCommand(reclaimMediaCmd)
}
