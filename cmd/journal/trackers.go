package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/internal/models"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Track goals",
}

var addGoalCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		target, _ := cmd.Flags().GetInt("target")
		g := &models.Goal{Title: args[0], Description: description, Target: target}

		if due, _ := cmd.Flags().GetString("due"); due != "" {
			t, err := time.ParseInLocation(dayLayout, due, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --due date: %w", err)
			}
			g.Deadline = &t
		}

		return withApp(cmd, func(ctx context.Context, app *application) error {
			id, err := app.trackers.CreateGoal(ctx, g)
			if err != nil {
				return err
			}
			fmt.Printf("Goal %d created.\n", id)
			return nil
		})
	},
}

var progressGoalCmd = &cobra.Command{
	Use:   "progress [goal-id]",
	Short: "Move a goal forward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		delta, _ := cmd.Flags().GetInt("by")
		return withApp(cmd, func(ctx context.Context, app *application) error {
			g, err := app.trackers.AddProgress(ctx, id, delta)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d/%d", g.Title, g.Progress, g.Target)
			if g.Completed {
				fmt.Print(" (completed)")
			}
			fmt.Println()
			return nil
		})
	},
}

var listGoalsCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			goals, err := app.trackers.ListGoals(ctx)
			if err != nil {
				return err
			}
			if len(goals) == 0 {
				fmt.Println("No goals found.")
				return nil
			}
			fmt.Println("ID | Title | Progress | Deadline")
			for _, g := range goals {
				deadline := "-"
				if g.Deadline != nil {
					deadline = g.Deadline.Local().Format(dayLayout)
				}
				fmt.Printf("%d | %s | %d/%d | %s\n", g.ID, g.Title, g.Progress, g.Target, deadline)
			}
			return nil
		})
	},
}

var deleteGoalCmd = &cobra.Command{
	Use:   "delete [goal-id]",
	Short: "Delete a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			return app.trackers.DeleteGoal(ctx, id)
		})
	},
}

var habitsCmd = &cobra.Command{
	Use:   "habits",
	Short: "Track habits and streaks",
}

var addHabitCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, _ := cmd.Flags().GetString("frequency")
		h := &models.Habit{Name: args[0], Frequency: models.HabitFrequency(strings.ToUpper(freq))}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			id, err := app.trackers.CreateHabit(ctx, h)
			if err != nil {
				return err
			}
			fmt.Printf("Habit %d created.\n", id)
			return nil
		})
	},
}

var doneHabitCmd = &cobra.Command{
	Use:   "done [habit-id]",
	Short: "Record a completion for today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			h, err := app.trackers.CompleteHabit(ctx, id, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("%s: streak %d (best %d)\n", h.Name, h.CurrentStreak, h.BestStreak)
			return nil
		})
	},
}

var listHabitsCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			habits, err := app.trackers.ListHabits(ctx)
			if err != nil {
				return err
			}
			if len(habits) == 0 {
				fmt.Println("No habits found.")
				return nil
			}
			fmt.Println("ID | Name | Frequency | Streak | Best")
			for _, h := range habits {
				fmt.Printf("%d | %s | %s | %d | %d\n", h.ID, h.Name, h.Frequency, h.CurrentStreak, h.BestStreak)
			}
			return nil
		})
	},
}

var deleteHabitCmd = &cobra.Command{
	Use:   "delete [habit-id]",
	Short: "Delete a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *application) error {
			return app.trackers.DeleteHabit(ctx, id)
		})
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List unlocked achievements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *application) error {
			achievements, err := app.trackers.ListAchievements(ctx)
			if err != nil {
				return err
			}
			for _, a := range achievements {
				if a.UnlockedAt == nil {
					continue
				}
				fmt.Printf("%s | %s | %s\n", a.UnlockedAt.Local().Format(dayLayout), a.Title, a.Description)
			}
			return nil
		})
	},
}

func init() {
	addGoalCmd.Flags().String("description", "", "What the goal is about")
	addGoalCmd.Flags().Int("target", 1, "Progress needed to complete the goal")
	addGoalCmd.Flags().String("due", "", "Deadline (YYYY-MM-DD)")
	progressGoalCmd.Flags().Int("by", 1, "Amount of progress, negative to undo")

	addHabitCmd.Flags().String("frequency", string(models.HabitDaily), "DAILY or WEEKLY")

	goalsCmd.AddCommand(addGoalCmd)
	goalsCmd.AddCommand(progressGoalCmd)
	goalsCmd.AddCommand(listGoalsCmd)
	goalsCmd.AddCommand(deleteGoalCmd)

	habitsCmd.AddCommand(addHabitCmd)
	habitsCmd.AddCommand(doneHabitCmd)
	habitsCmd.AddCommand(listHabitsCmd)
	habitsCmd.AddCommand(deleteHabitCmd)
}
