package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fathom/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "fathom",
	Short: "Fathom runtime trace toolkit",
	Long:  `Fathom records, converts, and inspects execution traces of the fathom numeric runtime`,
}

// main wires the subcommands and persistent flags, then executes the root
// command. Execution errors exit with status code 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(versionCmd)

	// Global flags
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show command phase timings")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a cpu profile of fathom itself to the given path")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile of fathom itself to the given path")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace of fathom itself to the given path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// setupColor applies the persistent --color flag to the color package.
func setupColor(cmd *cobra.Command) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
