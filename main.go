// Package main provides the entry point for x86emu.
// x86emu recovers the constants hidden behind Confuser's native x86 stubs.
//
// For the full CLI, use: go run ./cmd/x86emu
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("x86emu - Confuser constant stub emulator")
	fmt.Println("")
	fmt.Println("Usage: x86emu <command> [options] <image>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  emulate    Run one stub and print the recovered constant")
	fmt.Println("  disasm     List a stub body without running it")
	fmt.Println("  batch      Run every stub listed in a sites file")
	fmt.Println("  config     Write a default configuration file")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/x86emu --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/x86emu' instead.")
	}
}
