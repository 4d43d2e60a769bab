// Package main provides the x86emu command line tool, which recovers the
// constants computed by Confuser's native x86 stubs.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deobf/x86emu/config"
	"github.com/deobf/x86emu/emu"
	"github.com/deobf/x86emu/loader"
)

// options are the flags shared by every command that reads an image.
type options struct {
	configPath string
	rawBase    string
	trace      bool
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "x86emu",
		Short:         "Recover constants from Confuser x86 constant stubs",
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to JSON configuration file")
	pf.StringVar(&opts.rawBase, "raw-base", "", "Treat the input as a flat dump mapped at this RVA instead of a PE file")
	pf.BoolVar(&opts.trace, "trace", false, "Print every executed instruction")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newEmulateCmd(opts),
		newDisasmCmd(opts),
		newBatchCmd(opts),
		newConfigCmd(),
	)
	return rootCmd
}

// logger returns a text logger on the command's error stream.
func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, or returns defaults, and applies --trace.
func (o *options) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}
	if o.trace {
		cfg.Trace = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadImage opens the input as a PE file, or as a raw dump with --raw-base.
func (o *options) loadImage(path string) (*loader.Image, error) {
	if o.rawBase == "" {
		return loader.Load(path)
	}

	base, err := parseUint32(o.rawBase)
	if err != nil {
		return nil, fmt.Errorf("invalid --raw-base: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw image: %w", err)
	}
	return loader.NewRawImage(data, base), nil
}

// newEmulator builds an emulator with its own cursor over img.
func newEmulator(cmd *cobra.Command, img *loader.Image, cfg *config.Config) (*emu.Emulator, *loader.Cursor) {
	var cursorOpts []loader.CursorOption
	if cfg.Cache.Enabled {
		cursorOpts = append(cursorOpts, loader.WithBlockCache(cfg.CacheGeometry()))
	}
	cursor := img.NewCursor(cursorOpts...)

	emuOpts := []emu.EmulatorOption{emu.WithMaxInstructions(cfg.MaxInstructions)}
	if cfg.Trace {
		emuOpts = append(emuOpts, emu.WithTrace(cmd.ErrOrStderr()))
	}
	return emu.NewEmulator(cursor, emuOpts...), cursor
}

// parseUint32 accepts decimal, 0x-prefixed hex and h-suffixed hex.
func parseUint32(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutSuffix(strings.ToLower(s), "h"); ok && rest != "" {
		v, err := strconv.ParseUint(rest, 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

func parseArgs(values []string) ([]uint32, error) {
	args := make([]uint32, 0, len(values))
	for _, s := range values {
		v, err := parseUint32(s)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", s, err)
		}
		args = append(args, v)
	}
	return args, nil
}
