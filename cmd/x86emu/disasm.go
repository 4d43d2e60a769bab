package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deobf/x86emu/insts"
)

func newDisasmCmd(opts *options) *cobra.Command {
	var rva string

	cmd := &cobra.Command{
		Use:   "disasm <image>",
		Short: "List the body of a constant stub without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			start, err := parseUint32(rva)
			if err != nil {
				return fmt.Errorf("invalid --rva: %w", err)
			}
			img, err := opts.loadImage(positional[0])
			if err != nil {
				return err
			}

			emulator, _ := newEmulator(cmd, img, cfg)
			out := cmd.OutOrStdout()
			return emulator.Walk(start, func(inst *insts.Instruction) error {
				code := img.Read(uint64(inst.Offset), inst.Len)
				ref, _, err := insts.Disassemble(code, uint64(inst.Offset))
				if err != nil {
					ref = "?"
				}
				_, err = fmt.Fprintf(out, "%08X  % -18X %-24s ; %s\n", inst.Offset, code, inst, ref)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&rva, "rva", "", "RVA of the stub (required)")
	_ = cmd.MarkFlagRequired("rva")
	return cmd
}
