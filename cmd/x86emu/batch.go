package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deobf/x86emu/config"
	"github.com/deobf/x86emu/loader"
)

// site is one line of a sites file: a stub RVA and its call arguments.
type site struct {
	line int
	rva  uint32
	args []uint32
}

// result is the outcome of one site.
type result struct {
	value uint32
	err   error
}

func newBatchCmd(opts *options) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "batch <image> <sites>",
		Short: "Run many stubs; each sites line is \"RVA [ARG...]\"",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, positional []string) error {
			log := opts.logger(cmd)

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			img, err := opts.loadImage(positional[0])
			if err != nil {
				return err
			}
			sites, err := readSites(positional[1])
			if err != nil {
				return err
			}

			results := runSites(cmd, img, cfg, sites, workers)

			failed := 0
			out := cmd.OutOrStdout()
			for i, s := range sites {
				r := results[i]
				if r.err != nil {
					failed++
					log.Warn("site failed", "line", s.line, "rva", fmt.Sprintf("%08X", s.rva), "err", r.err)
					fmt.Fprintf(out, "%08X error\n", s.rva)
					continue
				}
				fmt.Fprintf(out, "%08X 0x%08X\n", s.rva, r.value)
			}

			log.Debug("batch finished", "sites", len(sites), "failed", failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d sites failed", failed, len(sites))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "j", runtime.NumCPU(), "Number of concurrent emulators")
	return cmd
}

// runSites shares sites across workers. Each worker owns one emulator and
// one cursor, so no register file is ever shared.
func runSites(cmd *cobra.Command, img *loader.Image, cfg *config.Config, sites []site, workers int) []result {
	results := make([]result, len(sites))
	if workers < 1 {
		workers = 1
	}
	if workers > 1 && cfg.Trace {
		// Interleaved traces from several workers are unreadable.
		cfg = cfg.Clone()
		cfg.Trace = false
	}

	next := make(chan int)
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			emulator, _ := newEmulator(cmd, img, cfg)
			for i := range next {
				v, err := emulator.Emulate(sites[i].rva, sites[i].args)
				results[i] = result{value: v, err: err}
			}
			return nil
		})
	}

	for i := range sites {
		next <- i
	}
	close(next)
	_ = g.Wait()

	return results
}

// readSites parses a sites file. Blank lines and lines starting with '#'
// are skipped.
func readSites(path string) ([]site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sites file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sites []site
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		rva, err := parseUint32(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid RVA %q: %w", path, line, fields[0], err)
		}
		args, err := parseArgs(fields[1:])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		sites = append(sites, site{line: line, rva: rva, args: args})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return sites, nil
}
