package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openrove/openrove/pkg/journal"
)

func newEpisodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Inspect recorded mission episodes",
		Long: `Inspect the episode journal.

Every mission run is recorded as an episode: its outcome, the task tree
the executive built while pursuing the goals, and the telemetry events
emitted along the way.`,
	}

	cmd.AddCommand(newEpisodesListCommand())
	cmd.AddCommand(newEpisodesShowCommand())
	cmd.AddCommand(newEpisodesPruneCommand())

	return cmd
}

func newEpisodesListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded episodes",
		Long:  `List recorded episodes, newest first.`,
		Example: `  # List the most recent episodes
  rove episodes list

  # Only failed episodes
  rove episodes list --status failed

  # Machine readable
  rove episodes list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var filter *journal.EpisodeStatus
			if status != "" {
				s := journal.EpisodeStatus(status)
				filter = &s
			}
			episodes, err := store.ListEpisodes(ctx, filter, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(episodes, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("%-36s %-20s %-10s %-25s %s\n", "ID", "MISSION", "STATUS", "STARTED", "DURATION")
			for _, ep := range episodes {
				duration := "-"
				if ep.CompletedAt != nil {
					duration = ep.CompletedAt.Sub(ep.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Printf("%-36s %-20s %-10s %-25s %s\n",
					ep.ID, ep.Mission, ep.Status, ep.StartedAt.Format(time.RFC3339), duration)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, running, succeeded, failed, aborted)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of episodes to list")

	return cmd
}

func newEpisodesShowCommand() *cobra.Command {
	var events int

	cmd := &cobra.Command{
		Use:   "show <episode-id>",
		Short: "Show one episode with its task tree",
		Long: `Show a recorded episode: its outcome and the task tree the executive
built while pursuing the mission's goals. Task nesting mirrors the goal
hierarchy, so a fetch task shows the navigation and grasp tasks it spawned.`,
		Example: `  # Show an episode
  rove episodes show 3f6c9a40-77f2-4af1-9a93-0d6e2f3f9d11

  # Include the 50 most recent journal events
  rove episodes show 3f6c9a40-77f2-4af1-9a93-0d6e2f3f9d11 --events 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ep, err := store.GetEpisode(ctx, args[0])
			if err != nil {
				return err
			}
			tasks, err := store.ListTasksByEpisode(ctx, ep.ID)
			if err != nil {
				return err
			}
			var records []*journal.EventRecord
			if events > 0 {
				records, err = store.ListEvents(ctx, &ep.ID, nil, nil, events, 0)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				data, err := json.MarshalIndent(struct {
					Episode *journal.Episode       `json:"episode"`
					Tasks   []*journal.TaskRecord  `json:"tasks"`
					Events  []*journal.EventRecord `json:"events,omitempty"`
				}{ep, tasks, records}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			printEpisode(ep)
			if len(tasks) > 0 {
				fmt.Println("\nTasks:")
				for _, task := range tasks {
					printTask(task)
				}
			}
			if len(records) > 0 {
				fmt.Println("\nEvents (newest first):")
				for _, ev := range records {
					fmt.Printf("  %s  %-7s %-25s %s\n",
						ev.Timestamp.Format(time.RFC3339), ev.Level, ev.Type, ev.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&events, "events", 0, "include the N most recent journal events")

	return cmd
}

func printEpisode(ep *journal.Episode) {
	fmt.Printf("Episode:  %s\n", ep.ID)
	fmt.Printf("Mission:  %s\n", ep.Mission)
	fmt.Printf("Status:   %s\n", ep.Status)
	fmt.Printf("Started:  %s\n", ep.StartedAt.Format(time.RFC3339))
	if ep.CompletedAt != nil {
		fmt.Printf("Duration: %s\n", ep.CompletedAt.Sub(ep.StartedAt).Round(time.Millisecond))
	}
	if ep.FailureKind != nil {
		fmt.Printf("Failure:  %s\n", *ep.FailureKind)
	}
	if ep.Error != nil {
		fmt.Printf("Error:    %s\n", *ep.Error)
	}
}

func printTask(task *journal.TaskRecord) {
	marker := "✓"
	switch task.Status {
	case journal.TaskStatusFailed:
		marker = "✗"
	case journal.TaskStatusActive:
		marker = "-"
	}

	indent := strings.Repeat("  ", strings.Count(task.Path, "/"))
	fmt.Printf("  %s%s %s", indent, marker, task.Name)
	if task.FailureKind != nil {
		fmt.Printf(" [%s]", *task.FailureKind)
	}
	if task.EndedAt != nil {
		fmt.Printf(" (%s)", task.EndedAt.Sub(task.StartedAt).Round(time.Millisecond))
	}
	fmt.Println()
}

func newEpisodesPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old episodes and events",
		Long: `Delete finished episodes older than the retention window, along with
their tasks and events. Running and pending episodes are kept. The window
defaults to the journal's configured prune_after.`,
		Example: `  # Prune with the configured retention
  rove episodes prune

  # Prune everything older than two days
  rove episodes prune --older-than 48h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			retention := olderThan
			if retention == 0 {
				retention = cfg.Journal.PruneAfter.Duration()
			}
			if retention <= 0 {
				return errors.New("no retention window configured, pass --older-than")
			}
			cutoff := time.Now().Add(-retention)

			// Collect candidates first so deletions do not shift pagination.
			var candidates []string
			for offset := 0; ; offset += 100 {
				page, err := store.ListEpisodes(ctx, nil, 100, offset)
				if err != nil {
					return err
				}
				for _, ep := range page {
					if ep.Status == journal.EpisodeStatusPending || ep.Status == journal.EpisodeStatusRunning {
						continue
					}
					if ep.StartedAt.Before(cutoff) {
						candidates = append(candidates, ep.ID)
					}
				}
				if len(page) < 100 {
					break
				}
			}

			for _, id := range candidates {
				if err := store.DeleteEpisode(ctx, id); err != nil {
					return err
				}
			}
			pruned, err := store.PruneEvents(ctx, cutoff)
			if err != nil {
				return err
			}

			fmt.Printf("✓ Deleted %d episodes and pruned %d events older than %s\n",
				len(candidates), pruned, retention)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention window (defaults to the configured prune_after)")

	return cmd
}
