package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/internal/models"
)

var moodsCmd = &cobra.Command{
	Use:   "moods",
	Short: "Manage the mood catalog",
}

var listMoodsCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog moods",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			moods, err := app.moods.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println("ID | Label | Level | Emoji | Color")
			for _, m := range moods {
				fmt.Printf("%d | %s | %s | %s | %s\n", m.ID, m.Label, m.Level, m.Emoji, m.Color)
			}
			return nil
		})
	},
}

var saveMoodCmd = &cobra.Command{
	Use:   "save [label]",
	Short: "Add a mood, or update it when --id is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("id")
		level, _ := cmd.Flags().GetString("level")
		emoji, _ := cmd.Flags().GetString("emoji")
		color, _ := cmd.Flags().GetString("color")

		m := &models.Mood{
			ID:    id,
			Label: args[0],
			Level: models.MoodLevel(strings.ToUpper(strings.TrimSpace(level))),
			Emoji: emoji,
			Color: color,
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			id, err := app.journal.SaveMood(ctx, m)
			if err != nil {
				return err
			}
			fmt.Printf("Mood %d saved.\n", id)
			return nil
		})
	},
}

var deleteMoodCmd = &cobra.Command{
	Use:   "delete [mood-id]",
	Short: "Remove a mood; entries keep their recorded label and level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			if err := app.moods.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Mood %d deleted.\n", id)
			return nil
		})
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage the tag catalog",
}

var listTagsCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with their usage counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			tags, err := app.tags.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println("ID | Label | Entries")
			for _, t := range tags {
				fmt.Printf("%d | %s | %d\n", t.ID, t.Label, t.UsageCount)
			}
			return nil
		})
	},
}

var saveTagCmd = &cobra.Command{
	Use:   "save [label]",
	Short: "Add a tag, or rename it when --id is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("id")
		t := &models.Tag{ID: id, Label: args[0]}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			id, err := app.journal.SaveTag(ctx, t)
			if err != nil {
				return err
			}
			fmt.Printf("Tag %d saved.\n", id)
			return nil
		})
	},
}

var deleteTagCmd = &cobra.Command{
	Use:   "delete [tag-id]",
	Short: "Remove a tag from the catalog and from every entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			if err := app.tags.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Tag %d deleted.\n", id)
			return nil
		})
	},
}

func init() {
	saveMoodCmd.Flags().Int64("id", 0, "Existing mood to update")
	saveMoodCmd.Flags().String("level", string(models.MoodNeutral), "EXCELLENT, GOOD, NEUTRAL, POOR or TERRIBLE")
	saveMoodCmd.Flags().String("emoji", "", "Emoji shown next to the label")
	saveMoodCmd.Flags().String("color", "#9E9E9E", "Display color as #RRGGBB")

	saveTagCmd.Flags().Int64("id", 0, "Existing tag to rename")

	moodsCmd.AddCommand(listMoodsCmd)
	moodsCmd.AddCommand(saveMoodCmd)
	moodsCmd.AddCommand(deleteMoodCmd)

	tagsCmd.AddCommand(listTagsCmd)
	tagsCmd.AddCommand(saveTagCmd)
	tagsCmd.AddCommand(deleteTagCmd)
}
