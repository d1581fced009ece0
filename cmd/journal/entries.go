package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/pkg/errors"
)

const dayLayout = "2006-01-02"

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Manage journal entries",
	Long:  `Create, list, search, update, and delete journal entries.`,
}

var addEntryCmd = &cobra.Command{
	Use:   "add",
	Short: "Write a new entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			e := &models.Entry{}
			if err := applyEntryFlags(ctx, cmd, app, e); err != nil {
				return err
			}
			created, err := app.journal.Create(ctx, e)
			if err != nil {
				return err
			}
			fmt.Printf("Entry %d created.\n", created.ID)
			return nil
		})
	},
}

var editEntryCmd = &cobra.Command{
	Use:   "edit [entry-id]",
	Short: "Update an existing entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			e, err := app.journal.Get(ctx, id)
			if err != nil {
				return err
			}
			if e.DecryptErr != nil {
				return e.DecryptErr
			}
			if err := applyEntryFlags(ctx, cmd, app, e); err != nil {
				return err
			}
			if err := app.journal.Update(ctx, e); err != nil {
				return err
			}
			fmt.Printf("Entry %d updated.\n", e.ID)
			return nil
		})
	},
}

var getEntryCmd = &cobra.Command{
	Use:   "get [entry-id]",
	Short: "Show an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			e, err := app.journal.Get(ctx, id)
			if err != nil {
				return err
			}
			if e.DecryptErr != nil {
				fmt.Fprintln(os.Stderr, errors.UserMessage(e.DecryptErr))
			}
			output, err := json.MarshalIndent(e, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format entry output: %w", err)
			}
			fmt.Println(string(output))
			return nil
		})
	},
}

var deleteEntryCmd = &cobra.Command{
	Use:   "delete [entry-id]",
	Short: "Delete an entry and its media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			if err := app.journal.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Entry %d deleted.\n", id)
			return nil
		})
	},
}

var searchEntriesCmd = &cobra.Command{
	Use:     "search",
	Aliases: []string{"list"},
	Short:   "List entries matching the given filters",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			entries, err := app.journal.Search(ctx, c)
			if err != nil {
				return err
			}
			printEntries(entries)
			return nil
		})
	},
}

var watchEntriesCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print matching entries again every time the journal changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			go app.limiter.StartCleanupWorker(ctx, time.Hour)

			stream := app.journal.Watch(ctx, c)
			defer stream.Close()
			for res := range stream.C {
				if res.Err != nil {
					return res.Err
				}
				fmt.Printf("--- %s ---\n", time.Now().Format(time.RFC3339))
				printEntries(res.Value)
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{addEntryCmd, editEntryCmd} {
		cmd.Flags().String("title", "", "Entry title")
		cmd.Flags().String("content", "", "Entry body")
		cmd.Flags().String("mood", "", "Mood label from the catalog")
		cmd.Flags().StringSlice("tags", nil, "Tag labels")
		cmd.Flags().StringSlice("emotions", nil, "Secondary emotions")
		cmd.Flags().StringSlice("factors", nil, "Contributing factors")
		cmd.Flags().StringArray("media", nil, "Attachment as type:path, e.g. photo:./beach.jpg")
		cmd.Flags().Bool("encrypt", false, "Encrypt title, content and media")
		cmd.Flags().Bool("pin", false, "Pin the entry")
		cmd.Flags().Bool("favorite", false, "Mark the entry as favorite")
		cmd.Flags().String("place", "", "Location name")
		cmd.Flags().Float64("lat", 0, "Location latitude")
		cmd.Flags().Float64("lon", 0, "Location longitude")
	}
	addEntryCmd.MarkFlagRequired("title")
	addEntryCmd.MarkFlagRequired("mood")

	addFilterFlags(searchEntriesCmd)
	addFilterFlags(watchEntriesCmd)

	entriesCmd.AddCommand(addEntryCmd)
	entriesCmd.AddCommand(editEntryCmd)
	entriesCmd.AddCommand(getEntryCmd)
	entriesCmd.AddCommand(deleteEntryCmd)
	entriesCmd.AddCommand(searchEntriesCmd)
	entriesCmd.AddCommand(watchEntriesCmd)
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("text", "", "Substring of title or content")
	cmd.Flags().String("from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last day to include (YYYY-MM-DD)")
	cmd.Flags().StringSlice("level", nil, "Mood levels, e.g. GOOD,EXCELLENT")
	cmd.Flags().String("tags", "", "Substring of the entry's tags")
	cmd.Flags().Bool("has-media", false, "Only entries with (or, when false, without) media")
	cmd.Flags().Bool("pinned", false, "Filter on the pinned flag")
	cmd.Flags().Bool("favorite", false, "Filter on the favorite flag")
	cmd.Flags().Int("limit", 0, "Maximum number of entries")
}

// applyEntryFlags copies every flag the user set onto e
func applyEntryFlags(ctx context.Context, cmd *cobra.Command, app *application, e *models.Entry) error {
	flags := cmd.Flags()

	if flags.Changed("title") {
		e.Title, _ = flags.GetString("title")
	}
	if flags.Changed("content") {
		e.Content, _ = flags.GetString("content")
	}
	if flags.Changed("mood") {
		label, _ := flags.GetString("mood")
		id, err := resolveMood(ctx, app, label)
		if err != nil {
			return err
		}
		e.MoodID = id
	}
	if flags.Changed("tags") {
		e.Tags, _ = flags.GetStringSlice("tags")
	}
	if flags.Changed("emotions") {
		e.SecondaryEmotions, _ = flags.GetStringSlice("emotions")
	}
	if flags.Changed("factors") {
		e.Factors, _ = flags.GetStringSlice("factors")
	}
	if flags.Changed("encrypt") {
		e.IsEncrypted, _ = flags.GetBool("encrypt")
	}
	if flags.Changed("pin") {
		e.IsPinned, _ = flags.GetBool("pin")
	}
	if flags.Changed("favorite") {
		e.IsFavorite, _ = flags.GetBool("favorite")
	}
	if flags.Changed("place") || flags.Changed("lat") || flags.Changed("lon") {
		name, _ := flags.GetString("place")
		lat, _ := flags.GetFloat64("lat")
		lon, _ := flags.GetFloat64("lon")
		e.Location = &models.Location{Name: name, Latitude: lat, Longitude: lon}
	}
	if flags.Changed("media") {
		values, _ := flags.GetStringArray("media")
		for _, v := range values {
			att, err := storeMedia(ctx, app, v, e.IsEncrypted)
			if err != nil {
				return err
			}
			e.Media = append(e.Media, att)
		}
	}
	return nil
}

func storeMedia(ctx context.Context, app *application, value string, encrypt bool) (models.MediaAttachment, error) {
	kind, path, ok := strings.Cut(value, ":")
	if !ok {
		return models.MediaAttachment{}, fmt.Errorf("media must be given as type:path, got %q", value)
	}
	mediaType, err := models.ParseMediaType(kind)
	if err != nil {
		return models.MediaAttachment{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return models.MediaAttachment{}, fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	return app.vault.Put(ctx, mediaType, f, encrypt)
}

func resolveMood(ctx context.Context, app *application, label string) (int64, error) {
	moods, err := app.moods.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range moods {
		if strings.EqualFold(m.Label, strings.TrimSpace(label)) {
			return m.ID, nil
		}
	}
	return 0, errors.NewAppError(errors.ErrNotFound, fmt.Sprintf("unknown mood %q", label), 404)
}

func criteriaFromFlags(cmd *cobra.Command) (models.Criteria, error) {
	flags := cmd.Flags()
	var c models.Criteria

	c.Text, _ = flags.GetString("text")
	c.Tags, _ = flags.GetString("tags")
	c.Limit, _ = flags.GetInt("limit")

	var err error
	if c.Start, c.End, err = dayRange(cmd); err != nil {
		return c, err
	}

	levels, _ := flags.GetStringSlice("level")
	for _, l := range levels {
		lvl := models.MoodLevel(strings.ToUpper(strings.TrimSpace(l)))
		if !lvl.Valid() {
			return c, fmt.Errorf("unknown mood level %q", l)
		}
		c.MoodLevels = append(c.MoodLevels, lvl)
	}

	c.HasMedia = optionalBool(cmd, "has-media")
	c.Pinned = optionalBool(cmd, "pinned")
	c.Favorite = optionalBool(cmd, "favorite")
	return c, nil
}

// dayRange reads --from and --to as whole local days, both inclusive
func dayRange(cmd *cobra.Command) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		t, err := time.ParseInLocation(dayLayout, from, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --from date: %w", err)
		}
		start = &t
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		t, err := time.ParseInLocation(dayLayout, to, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --to date: %w", err)
		}
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
		end = &t
	}
	return start, end, nil
}

// optionalBool is nil unless the flag was given
func optionalBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry ID: %q", s)
	}
	return id, nil
}

func printEntries(entries []models.Entry) {
	if len(entries) == 0 {
		fmt.Println("No entries found.")
		return
	}

	fmt.Println("ID | Created At | Mood | Title | Tags | Flags")
	fmt.Println("------------------------------------------------------------")
	for _, e := range entries {
		title := e.Title
		if e.DecryptErr != nil {
			title = "<" + errors.UserMessage(e.DecryptErr) + ">"
		}
		fmt.Printf("%d | %s | %s (%s) | %s | %s | %s\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.MoodLabel, e.MoodLevel,
			title, strings.Join(e.Tags, ","), entryFlags(e))
	}
}

func entryFlags(e models.Entry) string {
	var flags []string
	if e.IsPinned {
		flags = append(flags, "pinned")
	}
	if e.IsFavorite {
		flags = append(flags, "favorite")
	}
	if e.IsEncrypted {
		flags = append(flags, "encrypted")
	}
	if len(e.Media) > 0 {
		flags = append(flags, fmt.Sprintf("%d media", len(e.Media)))
	}
	return strings.Join(flags, ",")
}
