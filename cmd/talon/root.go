package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"talon/internal/version"
)

// newRootCmd creates the root talon command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "talon",
		Short:         "Remote control client for an AI-agent gateway",
		Long:          "talon connects to an agent gateway over one WebSocket,\nstreams reconciled chat output, and manages sessions, agents,\nskills, and scheduled jobs.",
		Version:       fmt.Sprintf("talon %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newChatCmd(),
		newSessionsCmd(),
		newAgentsCmd(),
		newSkillsCmd(),
		newCronCmd(),
		newStatusCmd(),
		newLogsCmd(),
	)

	return cmd
}
