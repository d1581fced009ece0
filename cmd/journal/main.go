package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/pkg/errors"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "journal",
	Short:         "An encrypted, local-first personal journal",
	Long:          `Stores journal entries, moods, tags and media in a SQLCipher database with per-entry field encryption.`,
	Version:       fmt.Sprintf("v%s", version),
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of journal",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(moodsCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(habitsCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(mediaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.UserMessage(err))
		stop()
		os.Exit(1)
	}
}
