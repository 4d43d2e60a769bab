package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEmulateCmd(opts *options) *cobra.Command {
	var (
		rva  string
		args []string
	)

	cmd := &cobra.Command{
		Use:   "emulate <image>",
		Short: "Run one constant stub and print the recovered value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			log := opts.logger(cmd)

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			start, err := parseUint32(rva)
			if err != nil {
				return fmt.Errorf("invalid --rva: %w", err)
			}
			stubArgs, err := parseArgs(args)
			if err != nil {
				return err
			}

			img, err := opts.loadImage(positional[0])
			if err != nil {
				return err
			}
			log.Debug("loaded image", "path", positional[0], "sections", len(img.Sections), "size", img.Len())

			emulator, cursor := newEmulator(cmd, img, cfg)
			value, err := emulator.Emulate(start, stubArgs)
			if err != nil {
				log.Error("emulation failed", "rva", fmt.Sprintf("%08X", start), "err", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "0x%08X\n", value)

			log.Debug("emulation finished",
				"rva", fmt.Sprintf("%08X", start),
				"instructions", emulator.InstructionCount(),
				"args", len(stubArgs))
			if c := cursor.Cache(); c != nil {
				stats := c.Stats()
				log.Debug("block cache", "reads", stats.Reads, "hits", stats.Hits, "misses", stats.Misses)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rva, "rva", "", "RVA of the stub (required)")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "Stub argument, in call order (repeatable)")
	_ = cmd.MarkFlagRequired("rva")
	return cmd
}
