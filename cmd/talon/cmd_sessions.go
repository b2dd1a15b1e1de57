package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"talon/pkg/calls"
)

// newSessionsCmd creates the "talon sessions" subcommand tree.
func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage gateway sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(),
		newSessionsLabelCmd(),
		newSessionsPinCmd(),
		newSessionsResetCmd(),
		newSessionsDeleteCmd(),
	)
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			sessions, err := calls.NewSessions(s.client).List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLABEL\tAGENT\tPINNED")
			for _, sess := range sessions {
				pinned := ""
				if sess.Pinned {
					pinned = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sess.Key, sess.Label, sess.Agent, pinned)
			}
			return w.Flush()
		},
	}
}

func newSessionsLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label <key> <label>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return calls.NewSessions(s.client).Patch(cmd.Context(), args[0], calls.PatchOptions{Label: &args[1]})
		},
	}
}

func newSessionsPinCmd() *cobra.Command {
	var unpin bool
	cmd := &cobra.Command{
		Use:   "pin <key>",
		Short: "Pin or unpin a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			pinned := !unpin
			return calls.NewSessions(s.client).Patch(cmd.Context(), args[0], calls.PatchOptions{Pinned: &pinned})
		},
	}
	cmd.Flags().BoolVar(&unpin, "remove", false, "unpin instead of pin")
	return cmd
}

func newSessionsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Clear a session's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return calls.NewSessions(s.client).Reset(cmd.Context(), args[0])
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return calls.NewSessions(s.client).Delete(cmd.Context(), args[0])
		},
	}
}
