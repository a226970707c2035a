package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverFlag string

var rootCmd = &cobra.Command{
	Use:   "crucible",
	Short: "Crucible - sandboxed code execution with live output streaming",
	Long: `Crucible runs untrusted Lua snippets under wall-clock and memory limits,
streams their output to any number of live viewers, and relays interactive
input prompts back to the running code.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "http://localhost:8080", "Crucible server base URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
