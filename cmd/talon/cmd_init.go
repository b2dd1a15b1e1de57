package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"talon/pkg/config"
)

// initConfig holds flags for the init command.
type initConfig struct {
	url      string
	token    string
	password string
	force    bool
}

// newInitCmd creates the "talon init" subcommand.
func newInitCmd() *cobra.Command {
	var cfg initConfig

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the talon config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !cfg.force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			fileCfg := config.Default()
			if cfg.url != "" {
				fileCfg.Gateway.URL = cfg.url
			}
			switch {
			case cfg.password != "":
				fileCfg.Gateway.AuthMode = "password"
				fileCfg.Gateway.Password = cfg.password
			case cfg.token != "":
				fileCfg.Gateway.AuthMode = "token"
				fileCfg.Gateway.Token = cfg.token
			}

			if err := config.Save(path, fileCfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.url, "url", "", "gateway URL (ws:// or wss://)")
	cmd.Flags().StringVar(&cfg.token, "token", "", "gateway auth token")
	cmd.Flags().StringVar(&cfg.password, "password", "", "gateway password (selects password auth)")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite an existing config")
	return cmd
}
