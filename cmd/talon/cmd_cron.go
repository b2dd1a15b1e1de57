package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"talon/pkg/calls"
	"talon/pkg/config"
)

// newCronCmd creates the "talon cron" subcommand tree.
func newCronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled gateway jobs",
	}
	cmd.AddCommand(
		newCronListCmd(),
		newCronAddCmd(),
		newCronRemoveCmd(),
		newCronRunCmd(),
		newCronRunsCmd(),
		newCronApplyCmd(),
	)
	return cmd
}

func newCronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			jobs, err := calls.NewCron(s.client).List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tSESSION\tENABLED")
			for _, j := range jobs {
				enabled := ""
				if j.Enabled {
					enabled = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Name, j.Schedule, j.Session, enabled)
			}
			return w.Flush()
		},
	}
}

func newCronAddCmd() *cobra.Command {
	var job calls.CronJob
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Schedule a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job.Name = args[0]
			job.Enabled = true
			if job.Schedule == "" {
				return fmt.Errorf("--schedule is required")
			}

			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			id, err := calls.NewCron(s.client).Add(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&job.Schedule, "schedule", "", "cron expression")
	cmd.Flags().StringVar(&job.Session, "session", "", "session the job posts into")
	cmd.Flags().StringVar(&job.Prompt, "prompt", "", "prompt text the job sends")
	return cmd
}

func newCronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return calls.NewCron(s.client).Remove(cmd.Context(), args[0])
		},
	}
}

func newCronRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Trigger a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return calls.NewCron(s.client).Run(cmd.Context(), args[0])
		},
	}
}

func newCronRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs <id>",
		Short: "Show a job's execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			runs, err := calls.NewCron(s.client).Runs(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tERROR")
			for _, r := range runs {
				started := ""
				if r.StartedAt != 0 {
					started = time.UnixMilli(r.StartedAt).Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", started, r.Status, r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	return cmd
}

// newCronApplyCmd syncs jobs from a YAML batch file: jobs present in the
// file are created, existing jobs with matching names are updated.
func newCronApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file.yaml>",
		Short: "Sync scheduled jobs from a batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := config.LoadCronBatch(args[0])
			if err != nil {
				return err
			}

			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			cron := calls.NewCron(s.client)
			existing, err := cron.List(cmd.Context())
			if err != nil {
				return err
			}
			byName := make(map[string]calls.CronJob, len(existing))
			for _, j := range existing {
				byName[j.Name] = j
			}

			out := cmd.OutOrStdout()
			for _, job := range batch.Jobs {
				if prev, ok := byName[job.Name]; ok {
					job.ID = prev.ID
					if err := cron.Update(cmd.Context(), job); err != nil {
						return fmt.Errorf("update %q: %w", job.Name, err)
					}
					fmt.Fprintf(out, "updated %s\n", job.Name)
					continue
				}
				if _, err := cron.Add(cmd.Context(), job); err != nil {
					return fmt.Errorf("add %q: %w", job.Name, err)
				}
				fmt.Fprintf(out, "created %s\n", job.Name)
			}
			return nil
		},
	}
}
