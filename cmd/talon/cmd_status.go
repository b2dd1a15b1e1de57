package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"talon/pkg/calls"
)

// newStatusCmd creates the "talon status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check gateway connectivity and liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			hb, err := calls.NewHealth(s.client).LastHeartbeat(cmd.Context())
			if err != nil {
				return err
			}
			if hb.Time().IsZero() {
				fmt.Fprintln(out, "gateway up, no heartbeat recorded")
				return nil
			}
			fmt.Fprintf(out, "gateway up, last heartbeat %s ago (%s)\n",
				time.Since(hb.Time()).Round(time.Second), hb.Status)
			return nil
		},
	}
}
