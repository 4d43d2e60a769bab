package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deobf/x86emu/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			if err := config.Default().Save(positional[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", positional[0])
			return nil
		},
	})

	return cmd
}
