package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"talon/pkg/calls"
)

// newAgentsCmd creates the "talon agents" subcommand tree.
func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect the gateway's configured agents",
	}
	cmd.AddCommand(newAgentsListCmd(), newAgentsIdentityCmd())
	return cmd
}

func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			agents, err := calls.NewAgents(s.client).List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL\tDEFAULT")
			for _, a := range agents {
				def := ""
				if a.Default {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Model, def)
			}
			return w.Flush()
		},
	}
}

func newAgentsIdentityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity [agent-id]",
		Short: "Show an agent's presented persona",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			agentID := ""
			if len(args) == 1 {
				agentID = args[0]
			}
			id, err := calls.NewAgents(s.client).Identity(cmd.Context(), agentID)
			if err != nil {
				return err
			}
			if id.Emoji != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id.Emoji, id.Name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), id.Name)
			}
			return nil
		},
	}
}
