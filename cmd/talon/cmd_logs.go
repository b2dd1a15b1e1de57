package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"talon/pkg/config"
	"talon/pkg/eventlog"
)

// logsConfig holds flags for the logs command.
type logsConfig struct {
	session string
	typ     string
	tail    int
}

// newLogsCmd creates the "talon logs" subcommand. It reads the local event
// log without connecting to the gateway.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recorded stream events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			fileCfg, err := config.Load(path)
			if err != nil {
				return err
			}
			dbPath := fileCfg.Log.Path
			if dbPath == "" {
				dbPath = eventlog.DefaultDBPath()
			}

			r, err := eventlog.NewReader(dbPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer r.Close()

			events, err := r.Query(cmd.Context(), eventlog.QueryOpts{
				SessionKey: cfg.session,
				Type:       cfg.typ,
				Limit:      cfg.tail,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tSESSION\tRUN\tPAYLOAD")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("15:04:05"), e.Type, e.SessionKey, e.RunID, e.Payload)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&cfg.session, "session", "s", "", "filter by session key")
	cmd.Flags().StringVarP(&cfg.typ, "type", "t", "", "filter by event type")
	cmd.Flags().IntVarP(&cfg.tail, "tail", "n", 50, "maximum events to show")
	return cmd
}
